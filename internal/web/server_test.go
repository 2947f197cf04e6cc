package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"gpsdxo-mon/internal/gpsdxo"
	"gpsdxo-mon/internal/series"
	"gpsdxo-mon/internal/telemetry"
)

type fakeDevice struct{ snap gpsdxo.Snapshot }

func (f fakeDevice) Snapshot() gpsdxo.Snapshot { return f.snap }

func newTestServer(t *testing.T, store *series.Store, opts Options) *httptest.Server {
	t.Helper()
	st := NewStatus(fakeDevice{snap: gpsdxo.Snapshot{Device: "/dev/ttyUSB0", Baud: 115200, State: "reading", Lines: 3}}, store)
	st.SetMode("live")
	ts := httptest.NewServer(Handler(st, store, opts))
	t.Cleanup(ts.Close)
	return ts
}

func getJSON(t *testing.T, url string, out any) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("get %s: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode == http.StatusOK {
		if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
			t.Fatalf("content-type=%q", ct)
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode json: %v", err)
		}
	}
	return resp
}

func TestAPIStatus(t *testing.T) {
	store := series.NewStore(series.DefaultCapacity)
	store.Apply(time.Now(), telemetry.CurrentFrequency{Hz: 80000001})
	store.Apply(time.Now(), telemetry.DAC1{Value: 12})
	ts := newTestServer(t, store, Options{})

	var snap StatusSnapshot
	resp := getJSON(t, ts.URL+"/api/status", &snap)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status code=%d", resp.StatusCode)
	}
	if snap.Service != "gpsdxo-mon" || snap.Mode != "live" {
		t.Fatalf("snap=%+v", snap)
	}
	if snap.Device == nil || snap.Device.Device != "/dev/ttyUSB0" || snap.Device.Lines != 3 {
		t.Fatalf("device=%+v", snap.Device)
	}
	if len(snap.Table) != 6 || snap.Table[0].Value != "80000001" || snap.Table[3].Value != "12" {
		t.Fatalf("table=%+v", snap.Table)
	}
	if snap.Latest.CurrentHz == nil || *snap.Latest.CurrentHz != 80000001 {
		t.Fatalf("latest=%+v", snap.Latest)
	}
	if snap.Totals["current"] != 1 || snap.Totals["deviation_ppb"] != 0 || len(snap.Totals) != 4 {
		t.Fatalf("totals=%v", snap.Totals)
	}
}

func TestAPIStatus_MethodNotAllowed(t *testing.T) {
	ts := newTestServer(t, series.NewStore(0), Options{})
	resp, err := http.Post(ts.URL+"/api/status", "application/json", strings.NewReader("{}"))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("status code=%d", resp.StatusCode)
	}
	if resp.Header.Get("Allow") != http.MethodGet {
		t.Fatalf("allow=%q", resp.Header.Get("Allow"))
	}
}

func TestAPISeries(t *testing.T) {
	store := series.NewStore(series.DefaultCapacity)
	now := time.Now()
	store.Apply(now.Add(-10*time.Minute), telemetry.Deviation{PPB: 0.1})
	store.Apply(now.Add(-2*time.Second), telemetry.Deviation{PPB: 0.5})
	store.Apply(now.Add(-1*time.Second), telemetry.Deviation{PPB: 0.25})
	ts := newTestServer(t, store, Options{})

	var points []Point
	resp := getJSON(t, ts.URL+"/api/series?metric=deviation_ppb&span=60s", &points)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status code=%d", resp.StatusCode)
	}
	if len(points) != 2 || points[0].V != 0.5 || points[1].V != 0.25 {
		t.Fatalf("points=%+v", points)
	}
	if points[0].T >= points[1].T {
		t.Fatalf("times not ascending: %+v", points)
	}

	var all []Point
	getJSON(t, ts.URL+"/api/series?metric=deviation_ppb&span=1h", &all)
	if len(all) != 3 {
		t.Fatalf("all=%+v", all)
	}

	var retained []Point
	getJSON(t, ts.URL+"/api/series?metric=deviation_ppb&span=all", &retained)
	if len(retained) != 3 || retained[0].V != 0.1 {
		t.Fatalf("retained=%+v", retained)
	}

	var empty []Point
	getJSON(t, ts.URL+"/api/series?metric=current", &empty)
	if empty == nil || len(empty) != 0 {
		t.Fatalf("empty=%+v", empty)
	}
}

func TestAPISeries_BadRequest(t *testing.T) {
	ts := newTestServer(t, series.NewStore(0), Options{})
	for _, q := range []string{"", "?metric=bogus", "?metric=current&span=abc", "?metric=current&span=-1s", "?metric=current&span=48h"} {
		resp := getJSON(t, ts.URL+"/api/series"+q, nil)
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("%q status code=%d", q, resp.StatusCode)
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "gpsdxo_test_total", Help: "test"})
	reg.MustRegister(c)
	c.Add(2)

	ts := newTestServer(t, series.NewStore(0), Options{Gatherer: reg})
	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("get metrics: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "gpsdxo_test_total 2") {
		t.Fatalf("body=%s", body)
	}
}

func TestMetricsEndpoint_AbsentWithoutGatherer(t *testing.T) {
	ts := newTestServer(t, series.NewStore(0), Options{})
	resp := getJSON(t, ts.URL+"/metrics", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status code=%d", resp.StatusCode)
	}
}

func TestRootPage(t *testing.T) {
	store := series.NewStore(0)
	store.Apply(time.Now(), telemetry.DAC2{Value: 99})
	ts := newTestServer(t, store, Options{})

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("get root: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "<td>99</td>") {
		t.Fatalf("status=%d body=%s", resp.StatusCode, body)
	}

	nf := getJSON(t, ts.URL+"/nope", nil)
	if nf.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown path status=%d", nf.StatusCode)
	}
}

func TestAPIAbout(t *testing.T) {
	ts := newTestServer(t, series.NewStore(0), Options{Version: "1.2.3"})
	var about AboutResponse
	getJSON(t, ts.URL+"/api/about", &about)
	if about.Service != "gpsdxo-mon" || about.Version != "1.2.3" || about.GoVersion == "" {
		t.Fatalf("about=%+v", about)
	}
}

func TestServe_StopsOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Serve(ctx, addr, http.NotFoundHandler())
	}()

	deadline := time.Now().Add(2 * time.Second)
	for {
		resp, err := http.Get(fmt.Sprintf("http://%s/", addr))
		if err == nil {
			resp.Body.Close()
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("server never came up: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("err=%v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Serve did not return")
	}
}

func TestLogBuffer_CollectsLines(t *testing.T) {
	b := NewLogBuffer(3)
	_, _ = b.Write([]byte("one\ntw"))
	_, _ = b.Write([]byte("o\r\n\nthree\n"))
	lines, dropped := b.Snapshot(10)
	if dropped != 0 || strings.Join(lines, ",") != "one,two,three" {
		t.Fatalf("lines=%q dropped=%d", lines, dropped)
	}

	_, _ = b.Write([]byte("four\nfive\n"))
	lines, dropped = b.Snapshot(0)
	if dropped != 2 || strings.Join(lines, ",") != "three,four,five" {
		t.Fatalf("lines=%q dropped=%d", lines, dropped)
	}
}

func TestLogBuffer_AsLoggerOutput(t *testing.T) {
	b := NewLogBuffer(10)
	l := log.New(b, "", 0)
	l.Printf("gpsdxo open device=%s", "/dev/ttyUSB0")
	lines, _ := b.Snapshot(1)
	if len(lines) != 1 || lines[0] != "gpsdxo open device=/dev/ttyUSB0" {
		t.Fatalf("lines=%q", lines)
	}
}

func TestAPILogs(t *testing.T) {
	logs := NewLogBuffer(10)
	_, _ = logs.Write([]byte("a\nb\nc\n"))
	ts := newTestServer(t, series.NewStore(0), Options{Logs: logs})

	var out LogsResponse
	getJSON(t, ts.URL+"/api/logs?tail=2", &out)
	if strings.Join(out.Lines, ",") != "b,c" {
		t.Fatalf("lines=%q", out.Lines)
	}

	resp, err := http.Get(ts.URL + "/api/logs?format=text")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "a\nb\nc\n" {
		t.Fatalf("body=%q", body)
	}

	bad := getJSON(t, ts.URL+"/api/logs?tail=0", nil)
	if bad.StatusCode != http.StatusBadRequest {
		t.Fatalf("status code=%d", bad.StatusCode)
	}
}
