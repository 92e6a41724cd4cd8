package chi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	chiRouter "github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kailas-cloud/matchdex/internal/store"
)

// fakeProbe reports a fixed readiness state.
type fakeProbe struct {
	state store.Readiness
}

func (f *fakeProbe) Ready(_ context.Context) store.Readiness { return f.state }

func (f *fakeProbe) WaitForReady(_ context.Context, _ time.Duration) error { return nil }

func newTestServer(state store.Readiness) *httptest.Server {
	s := NewServer(&fakeProbe{state: state}, zap.NewNop())
	r := chiRouter.NewRouter()
	s.Routes(r)
	return httptest.NewServer(r)
}

func getJSON(t *testing.T, url string) (int, map[string]string) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return resp.StatusCode, body
}

func TestHealthAlwaysOK(t *testing.T) {
	ts := newTestServer(store.NotReady)
	defer ts.Close()

	status, body := getJSON(t, ts.URL+"/health")
	if status != http.StatusOK {
		t.Errorf("status = %d, want 200", status)
	}
	if body["status"] != "ok" {
		t.Errorf("body = %v", body)
	}
}

func TestReadyStates(t *testing.T) {
	tests := []struct {
		state      store.Readiness
		wantStatus int
	}{
		{store.Ready, http.StatusOK},
		{store.NotReady, http.StatusServiceUnavailable},
		{store.Unknown, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			ts := newTestServer(tt.state)
			defer ts.Close()

			status, body := getJSON(t, ts.URL+"/ready")
			if status != tt.wantStatus {
				t.Errorf("status = %d, want %d", status, tt.wantStatus)
			}
			if body["status"] != string(tt.state) {
				t.Errorf("body status = %q, want %q", body["status"], tt.state)
			}
		})
	}
}

func TestMetricsEndpointServes(t *testing.T) {
	ts := newTestServer(store.Ready)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}
