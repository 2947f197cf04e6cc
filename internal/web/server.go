package web

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gpsdxo-mon/internal/series"
)

const (
	defaultSpan = 300 * time.Second
	maxSpan     = 24 * time.Hour
)

// Options selects the optional pieces of the HTTP surface.
type Options struct {
	Logs     *LogBuffer
	Gatherer prometheus.Gatherer
	Version  string
}

// Point is one sample on the wire: unix seconds and value.
type Point struct {
	T float64 `json:"t"`
	V float64 `json:"v"`
}

func Handler(status *Status, store *series.Store, opts Options) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		if !allowGet(w, r) {
			return
		}
		writeJSON(w, status.Snapshot(time.Now().UTC()))
	})

	mux.HandleFunc("/api/series", func(w http.ResponseWriter, r *http.Request) {
		if !allowGet(w, r) {
			return
		}
		q := r.URL.Query()
		m, err := series.ParseMetric(strings.TrimSpace(q.Get("metric")))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		var samples []series.Sample
		switch span := strings.TrimSpace(q.Get("span")); span {
		case "all":
			samples = store.Samples(m)
		case "":
			samples = store.Window(m, time.Now(), defaultSpan)
		default:
			d, err := time.ParseDuration(span)
			if err != nil || d <= 0 || d > maxSpan {
				http.Error(w, "span must be \"all\" or a positive duration up to 24h", http.StatusBadRequest)
				return
			}
			samples = store.Window(m, time.Now(), d)
		}
		points := make([]Point, 0, len(samples))
		for _, s := range samples {
			points = append(points, Point{T: float64(s.Time.UnixNano()) / 1e9, V: s.Value})
		}
		writeJSON(w, points)
	})

	if opts.Logs != nil {
		mux.Handle("/api/logs", opts.Logs.Handler())
	}
	if opts.Gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}
	mux.Handle("/api/about", AboutHandler(opts.Version))

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if !allowGet(w, r) {
			return
		}
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = fmt.Fprintf(w, "<!doctype html><html><head><meta charset=\"utf-8\"><title>GPSDXO</title></head><body>")
		_, _ = fmt.Fprintf(w, "<h1>GPSDXO</h1><table>")
		for _, row := range store.Table() {
			_, _ = fmt.Fprintf(w, "<tr><td>%s</td><td>%s</td></tr>", html.EscapeString(row.Name), html.EscapeString(row.Value))
		}
		_, _ = fmt.Fprintf(w, "</table><p>See <a href=\"/api/status\">/api/status</a>.</p></body></html>")
	})

	return mux
}

func allowGet(w http.ResponseWriter, r *http.Request) bool {
	if r.Method == http.MethodGet {
		return true
	}
	w.Header().Set("Allow", http.MethodGet)
	http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	return false
}

func writeJSON(w http.ResponseWriter, v any) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		http.Error(w, "marshal failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(b)
	_, _ = w.Write([]byte("\n"))
}

// Serve runs the HTTP server until ctx ends. It returns ctx.Err() after a
// graceful shutdown, or the listen error.
func Serve(ctx context.Context, listenAddr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              listenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       30 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
