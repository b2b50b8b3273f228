package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/MrWong99/sooshi/internal/config"
)

func pass(_ context.Context) error { return nil }

func TestHealthz_AlwaysReturns200(t *testing.T) {
	t.Parallel()
	h := New(Checker{Name: "ollama", Check: func(context.Context) error { return errors.New("down") }})

	rec := httptest.NewRecorder()
	h.Healthz(rec, httptest.NewRequest("GET", "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	var body report
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if body.Status != "ok" || len(body.Checks) != 0 {
		t.Errorf("status = %q, want %q", body.Status, "ok")
	}
}

func TestReadyz(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		checkers   []Checker
		wantStatus int
		wantBody   string
		wantChecks map[string]string // name -> expected error, "" for a pass
	}{
		{
			name:       "no checkers",
			wantStatus: http.StatusOK,
			wantBody:   "ok",
			wantChecks: map[string]string{},
		},
		{
			name: "all pass",
			checkers: []Checker{
				{Name: "ollama", Check: pass},
				{Name: "whisper", Check: pass},
			},
			wantStatus: http.StatusOK,
			wantBody:   "ok",
			wantChecks: map[string]string{"ollama": "", "whisper": ""},
		},
		{
			name: "one fails",
			checkers: []Checker{
				{Name: "ollama", Check: func(context.Context) error { return errors.New("connection refused") }},
				{Name: "whisper", Check: pass},
			},
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   "fail",
			wantChecks: map[string]string{"ollama": "connection refused", "whisper": ""},
		},
		{
			name: "all fail",
			checkers: []Checker{
				{Name: "coqui", Check: func(context.Context) error { return errors.New("timeout") }},
				{Name: "whisper", Check: func(context.Context) error { return errors.New("no route") }},
			},
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   "fail",
			wantChecks: map[string]string{"coqui": "timeout", "whisper": "no route"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			rec := httptest.NewRecorder()
			New(tc.checkers...).Readyz(rec, httptest.NewRequest("GET", "/readyz", nil))

			if rec.Code != tc.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
			var body report
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("decode JSON: %v", err)
			}
			if body.Status != tc.wantBody {
				t.Errorf("status = %q, want %q", body.Status, tc.wantBody)
			}
			if len(body.Checks) != len(tc.wantChecks) {
				t.Errorf("checks = %v, want %d entries", body.Checks, len(tc.wantChecks))
			}
			for name, wantErr := range tc.wantChecks {
				got, ok := body.Checks[name]
				if !ok {
					t.Errorf("check %s missing", name)
					continue
				}
				wantStatus := "ok"
				if wantErr != "" {
					wantStatus = "fail"
				}
				if got.Status != wantStatus || got.Error != wantErr {
					t.Errorf("check %s = %+v, want status %q error %q", name, got, wantStatus, wantErr)
				}
			}
		})
	}
}

func TestRegister_RoutesWork(t *testing.T) {
	t.Parallel()
	mux := http.NewServeMux()
	New(Checker{Name: "test", Check: pass}).Register(mux)

	for _, path := range []string{"/healthz", "/readyz"} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest("GET", path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("%s status = %d, want %d", path, rec.Code, http.StatusOK)
		}
	}
}

func TestReadyz_RespectsContextCancellation(t *testing.T) {
	t.Parallel()
	h := New(Checker{Name: "slow", Check: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest("GET", "/readyz", nil).WithContext(ctx))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}

func TestReadyz_PerCheckTimeout(t *testing.T) {
	t.Parallel()
	h := New(Checker{Name: "hung", Check: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}})
	h.timeout = 10 * time.Millisecond

	rep := h.run(context.Background())
	if rep.Status != "fail" || rep.Checks["hung"].Error != context.DeadlineExceeded.Error() {
		t.Errorf("report = %+v, want hung to hit its deadline", rep)
	}
}

func TestReachable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		status  int
		wantErr bool
	}{
		{"ok", http.StatusOK, false},
		{"method not allowed still up", http.StatusMethodNotAllowed, false},
		{"server error", http.StatusBadGateway, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
			}))
			defer srv.Close()

			err := Reachable("whisper", srv.URL, srv.Client()).Check(context.Background())
			if (err != nil) != tc.wantErr {
				t.Errorf("err = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}

	t.Run("unreachable", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()
		if err := Reachable("coqui", url, nil).Check(context.Background()); err == nil {
			t.Error("expected error for closed server")
		}
	})
}

func TestBackendCheckers(t *testing.T) {
	t.Parallel()

	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
	}))
	defer srv.Close()

	local := config.Default()
	local.Ollama.BaseURL = srv.URL + "/"
	local.Coqui.URL = srv.URL + "/coqui"
	local.Whisper.URL = srv.URL + "/inference"

	cloud := config.Default()
	cloud.Provider = config.ProviderCloud
	cloud.Whisper.URL = srv.URL + "/inference"

	names := func(cs []Checker) []string {
		var out []string
		for _, c := range cs {
			out = append(out, c.Name)
		}
		return out
	}

	lc := BackendCheckers(local, srv.Client())
	if got := names(lc); len(got) != 3 || got[0] != "ollama" || got[1] != "coqui" || got[2] != "whisper" {
		t.Errorf("local checkers = %v", got)
	}
	if got := names(BackendCheckers(cloud, srv.Client())); len(got) != 1 || got[0] != "whisper" {
		t.Errorf("cloud checkers = %v", got)
	}

	if err := lc[0].Check(context.Background()); err != nil {
		t.Fatalf("ollama check: %v", err)
	}
	if len(paths) != 1 || paths[0] != "/api/tags" {
		t.Errorf("ollama probe paths = %v, want [/api/tags]", paths)
	}
}
