package observe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// instrumented serves mux through Middleware with fresh metrics and a
// recording global tracer. Tests using it must not run in parallel.
func instrumented(t *testing.T, mux *http.ServeMux) (http.Handler, *sdkmetric.ManualReader, *tracetest.InMemoryExporter) {
	t.Helper()
	m, reader := newTestMetrics(t)

	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})
	return Middleware(m)(mux), reader, exp
}

func TestMiddleware_SpanNamedAfterRoute(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /persona/{age}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	h, _, exp := instrumented(t, mux)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/persona/8", nil))

	spans := exp.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("spans = %d, want 1", len(spans))
	}
	if spans[0].Name != "GET /persona/{age}" {
		t.Errorf("span name = %q", spans[0].Name)
	}
	var status int64
	for _, a := range spans[0].Attributes {
		if a.Key == "http.response.status_code" {
			status = a.Value.AsInt64()
		}
	}
	if status != http.StatusNotFound {
		t.Errorf("http.response.status_code = %d, want 404", status)
	}
}

func TestMiddleware_RecordsRouteAndStatusClass(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /persona/{age}", func(http.ResponseWriter, *http.Request) {})
	mux.HandleFunc("POST /voice/chat", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	h, reader, _ := instrumented(t, mux)

	for _, req := range []*http.Request{
		httptest.NewRequest("GET", "/persona/8", nil),
		httptest.NewRequest("GET", "/persona/40", nil),
		httptest.NewRequest("POST", "/voice/chat", nil),
		httptest.NewRequest("GET", "/nope", nil),
	} {
		h.ServeHTTP(httptest.NewRecorder(), req)
	}

	rm := collect(t, reader)
	routes := countBy(t, rm, "sooshi.http.request.duration", "route")
	if routes["GET /persona/{age}"] != 2 || routes["POST /voice/chat"] != 1 {
		t.Errorf("samples by route = %v", routes)
	}
	classes := countBy(t, rm, "sooshi.http.request.duration", "status")
	if classes["2xx"] != 2 || classes["5xx"] != 1 || classes["4xx"] != 1 {
		t.Errorf("samples by status class = %v", classes)
	}
}

func TestMiddleware_ContinuesIncomingTrace(t *testing.T) {
	const traceID = "4bf92f3577b34da6a3ce929d0e0e4736"

	var seen string
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(_ http.ResponseWriter, r *http.Request) {
		seen = TraceID(r.Context())
	})
	h, _, _ := instrumented(t, mux)

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("traceparent", "00-"+traceID+"-00f067aa0ba902b7-01")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if seen != traceID {
		t.Errorf("trace ID in handler = %q, want %q", seen, traceID)
	}
	if got := rec.Header().Get("traceparent"); len(got) < 36 || got[3:35] != traceID {
		t.Errorf("response traceparent = %q, want trace %s", got, traceID)
	}
}

func TestMiddleware_RequestID(t *testing.T) {
	const valid = "7f1c7a0e-3c1b-4d51-9b8a-1f2e3d4c5b6a"

	tests := []struct {
		name   string
		header string
		keep   bool
	}{
		{"generated", "", false},
		{"propagated", valid, true},
		{"garbage replaced", "not a uuid", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var seen string
			mux := http.NewServeMux()
			mux.HandleFunc("/", func(_ http.ResponseWriter, r *http.Request) {
				seen = RequestID(r.Context())
			})
			h, _, _ := instrumented(t, mux)

			req := httptest.NewRequest("GET", "/", nil)
			if tc.header != "" {
				req.Header.Set(RequestIDHeader, tc.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if len(seen) != 36 {
				t.Fatalf("request ID %q is not a UUID", seen)
			}
			if tc.keep && seen != tc.header {
				t.Errorf("request ID = %q, want %q", seen, tc.header)
			}
			if !tc.keep && seen == tc.header {
				t.Errorf("request ID %q was not replaced", seen)
			}
			if got := rec.Header().Get(RequestIDHeader); got != seen {
				t.Errorf("response %s = %q, want %q", RequestIDHeader, got, seen)
			}
		})
	}
}

func TestStatusClass(t *testing.T) {
	t.Parallel()
	for code, want := range map[int]string{200: "2xx", 204: "2xx", 413: "4xx", 422: "4xx", 500: "5xx"} {
		if got := statusClass(code); got != want {
			t.Errorf("statusClass(%d) = %q, want %q", code, got, want)
		}
	}
}
