package web

import (
	"net/http"
	"runtime"
	"runtime/debug"
	"time"
)

const serviceName = "gpsdxo-mon"

type AboutResponse struct {
	Service   string `json:"service"`
	NowUTC    string `json:"now_utc"`
	Version   string `json:"version"`
	GoVersion string `json:"go_version"`
	Commit    string `json:"commit,omitempty"`
	Dirty     bool   `json:"dirty,omitempty"`
}

// AboutHandler reports the build. version is the release string baked into
// the binary; the VCS fields come from the embedded build info.
func AboutHandler(version string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !allowGet(w, r) {
			return
		}
		resp := AboutResponse{
			Service:   serviceName,
			NowUTC:    time.Now().UTC().Format(time.RFC3339Nano),
			Version:   version,
			GoVersion: runtime.Version(),
		}
		if bi, ok := debug.ReadBuildInfo(); ok && bi != nil {
			for _, s := range bi.Settings {
				switch s.Key {
				case "vcs.revision":
					resp.Commit = s.Value
				case "vcs.modified":
					resp.Dirty = s.Value == "true"
				}
			}
		}
		writeJSON(w, resp)
	})
}
