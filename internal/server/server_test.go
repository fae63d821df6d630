package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/MrWong99/interviewpilot/internal/health"
	"github.com/MrWong99/interviewpilot/internal/observe"
)

type fakeController struct {
	mu        sync.Mutex
	listening bool
	resets    int
	err       error
}

func (c *fakeController) Listening() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.listening
}

func (c *fakeController) SetListening(_ context.Context, on bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.listening = on
	return nil
}

func (c *fakeController) ToggleListening(_ context.Context) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return false, c.err
	}
	c.listening = !c.listening
	return c.listening, nil
}

func (c *fakeController) Reset(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.resets++
	return nil
}

func testMetrics(t *testing.T) *observe.Metrics {
	t.Helper()
	m, err := observe.NewMetrics(sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewManualReader())))
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m
}

func newTestServer(t *testing.T, ctrl Controller, opts ...Option) *httptest.Server {
	t.Helper()
	opts = append([]Option{WithMetrics(testMetrics(t))}, opts...)
	srv := httptest.NewServer(New("127.0.0.1:0", ctrl, opts...).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, url string) (int, stateResponse) {
	t.Helper()
	req, err := http.NewRequest(method, url, nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	var body stateResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return resp.StatusCode, body
}

func TestControl_ListenAndPause(t *testing.T) {
	t.Parallel()

	ctrl := &fakeController{}
	srv := newTestServer(t, ctrl)

	code, body := do(t, http.MethodPost, srv.URL+"/control/listen")
	if code != http.StatusOK || !body.Listening || body.Action != "listen" {
		t.Errorf("listen = %d %+v", code, body)
	}
	if !ctrl.Listening() {
		t.Error("controller not listening after /control/listen")
	}

	code, body = do(t, http.MethodPost, srv.URL+"/control/pause")
	if code != http.StatusOK || body.Listening || body.Action != "pause" {
		t.Errorf("pause = %d %+v", code, body)
	}
	if ctrl.Listening() {
		t.Error("controller still listening after /control/pause")
	}
}

func TestControl_Toggle(t *testing.T) {
	t.Parallel()

	ctrl := &fakeController{listening: true}
	srv := newTestServer(t, ctrl)

	if _, body := do(t, http.MethodPost, srv.URL+"/control/toggle"); body.Listening {
		t.Errorf("first toggle listening = true, want false")
	}
	if _, body := do(t, http.MethodPost, srv.URL+"/control/toggle"); !body.Listening {
		t.Errorf("second toggle listening = false, want true")
	}
}

func TestControl_ResetAndState(t *testing.T) {
	t.Parallel()

	ctrl := &fakeController{listening: true}
	srv := newTestServer(t, ctrl)

	code, body := do(t, http.MethodPost, srv.URL+"/control/reset")
	if code != http.StatusOK || body.Action != "reset" || !body.Listening {
		t.Errorf("reset = %d %+v", code, body)
	}
	if ctrl.resets != 1 {
		t.Errorf("resets = %d, want 1", ctrl.resets)
	}

	if _, body := do(t, http.MethodGet, srv.URL+"/control/state"); !body.Listening {
		t.Errorf("state listening = false, want true")
	}
}

func TestControl_ErrorStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"generic", errors.New("aggregator stopped"), http.StatusInternalServerError},
		{"deadline", context.DeadlineExceeded, http.StatusServiceUnavailable},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := newTestServer(t, &fakeController{err: tc.err})
			resp, err := http.Post(srv.URL+"/control/reset", "application/json", nil)
			if err != nil {
				t.Fatalf("POST: %v", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != tc.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tc.want)
			}
			var body errorResponse
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Error != tc.err.Error() {
				t.Errorf("error = %q, want %q", body.Error, tc.err.Error())
			}
		})
	}
}

func TestControl_MethodNotAllowed(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &fakeController{})
	resp, err := http.Get(srv.URL + "/control/reset")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusMethodNotAllowed)
	}
}

func TestRoutes_HealthMetricsFeed(t *testing.T) {
	t.Parallel()

	feed := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "feed")
	})
	srv := newTestServer(t, &fakeController{},
		WithHealth(health.New(health.Condition("pipeline", "down", func() bool { return true }))),
		WithFeed(feed),
		WithMetricsHandler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, "# metrics\n")
		})),
	)

	tests := []struct {
		path     string
		wantBody string
	}{
		{"/healthz", `"status":"ok"`},
		{"/readyz", `"pipeline":"ok"`},
		{"/metrics", "# metrics"},
		{"/results", "feed"},
	}
	for _, tc := range tests {
		t.Run(tc.path, func(t *testing.T) {
			resp, err := http.Get(srv.URL + tc.path)
			if err != nil {
				t.Fatalf("GET: %v", err)
			}
			defer resp.Body.Close()
			data, _ := io.ReadAll(resp.Body)
			if resp.StatusCode != http.StatusOK {
				t.Errorf("status = %d, want 200", resp.StatusCode)
			}
			if !strings.Contains(string(data), tc.wantBody) {
				t.Errorf("body = %q, want to contain %q", data, tc.wantBody)
			}
		})
	}
}

func TestRoutes_NoFeedConfigured(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &fakeController{})
	resp, err := http.Get(srv.URL + "/results")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestServe_StopsOnContextCancel(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	s := New(ln.Addr().String(), &fakeController{}, WithMetrics(testMetrics(t)))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	url := "http://" + ln.Addr().String() + "/healthz"
	deadline := time.Now().Add(5 * time.Second)
	for {
		resp, err := http.Get(url)
		if err == nil {
			resp.Body.Close()
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("server never became reachable: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve returned %v, want nil", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestRun_ListenError(t *testing.T) {
	t.Parallel()

	s := New("256.0.0.1:bad", &fakeController{}, WithMetrics(testMetrics(t)))
	if err := s.Run(context.Background()); err == nil {
		t.Fatal("Run on an invalid address returned nil")
	}
}
