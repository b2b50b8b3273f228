package resilience

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/MrWong99/sooshi/internal/aiprovider/mock"
	"github.com/MrWong99/sooshi/internal/config"
	"github.com/MrWong99/sooshi/internal/observe"
	"github.com/MrWong99/sooshi/pkg/provider"
	"github.com/MrWong99/sooshi/pkg/types"
)

var genReq = types.GenerationRequest{
	Messages:    []types.Message{{Role: types.RoleUser, Content: "hi"}},
	Temperature: 0.7,
	MaxTokens:   10,
}

// flaky fails the first n GenerateText calls with a connection error.
type flaky struct {
	*mock.Adapter
	n     int32
	calls atomic.Int32
}

func (f *flaky) GenerateText(ctx context.Context, req types.GenerationRequest) (string, error) {
	if f.calls.Add(1) <= f.n {
		return "", errDial
	}
	return f.Adapter.GenerateText(ctx, req)
}

func TestGuard_RetriesConnectionFailures(t *testing.T) {
	t.Parallel()
	next := &flaky{Adapter: &mock.Adapter{Reply: "hello"}, n: 2}
	g := NewGuard(next, nil, fastRetry(3))

	reply, err := g.GenerateText(context.Background(), genReq)
	if err != nil || reply != "hello" {
		t.Fatalf("GenerateText = %q, %v", reply, err)
	}
	if got := next.calls.Load(); got != 3 {
		t.Errorf("calls = %d, want 3", got)
	}
}

func TestGuard_DoesNotRetryResponseErrors(t *testing.T) {
	t.Parallel()
	respErr := provider.Response("mock", "synthesize", 500, errors.New("boom"))
	next := &mock.Adapter{SynthesizeErr: respErr}
	g := NewGuard(next, nil, fastRetry(3))

	_, err := g.SynthesizeSpeech(context.Background(), types.SpeechRequest{Text: "hi"})
	if !errors.Is(err, provider.ErrResponse) {
		t.Fatalf("err = %v, want response error", err)
	}
	if got := len(next.Calls()); got != 1 {
		t.Errorf("calls = %d, want 1", got)
	}
}

func TestGuard_PassesThroughIdentity(t *testing.T) {
	t.Parallel()
	next := &mock.Adapter{AdapterKind: config.ProviderCloud, DisplayName: "OpenAI (GPT-4 + TTS)", Transcript: "hey"}
	g := NewGuard(next, nil, RetryConfig{})
	if g.Kind() != config.ProviderCloud || g.Name() != "OpenAI (GPT-4 + TTS)" {
		t.Errorf("identity = %q/%q", g.Kind(), g.Name())
	}
	if g.Unwrap() != next {
		t.Error("Unwrap returned a different adapter")
	}
	tr, err := g.TranscribeSpeech(context.Background(), []byte{1})
	if err != nil || tr.Text != "hey" {
		t.Errorf("TranscribeSpeech = %+v, %v", tr, err)
	}
}

func TestMiddleware_SharesBreakerAcrossAdapters(t *testing.T) {
	t.Parallel()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	mw := Middleware(config.RetryConfig{
		MaxAttempts:      1,
		BreakerThreshold: 2,
		BreakerReset:     time.Hour,
	}, m)
	if mw == nil {
		t.Fatal("Middleware returned nil with the breaker enabled")
	}

	first := &mock.Adapter{GenerateErr: errDial}
	second := &mock.Adapter{Reply: "unreachable"}
	g1, g2 := mw(first), mw(second)
	ctx := context.Background()

	for range 2 {
		if _, err := g1.GenerateText(ctx, genReq); !errors.Is(err, provider.ErrConnection) {
			t.Fatalf("err = %v, want connection error", err)
		}
	}

	_, err = g2.GenerateText(ctx, genReq)
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("err = %v, want circuit open", err)
	}
	if !errors.Is(err, provider.ErrConnection) {
		t.Errorf("err = %v, want it reported as a connection error", err)
	}
	if got := len(second.Calls()); got != 0 {
		t.Errorf("second adapter was called %d times while the circuit was open", got)
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	var opened int64
	for _, sm := range rm.ScopeMetrics {
		for _, met := range sm.Metrics {
			if met.Name != "sooshi.resilience.breaker_transitions" {
				continue
			}
			for _, dp := range met.Data.(metricdata.Sum[int64]).DataPoints {
				if to, _ := dp.Attributes.Value("to"); to.AsString() == "open" {
					opened += dp.Value
				}
			}
		}
	}
	if opened != 1 {
		t.Errorf("open transitions = %d, want 1", opened)
	}
}

func TestMiddleware_Disabled(t *testing.T) {
	t.Parallel()
	if mw := Middleware(config.RetryConfig{MaxAttempts: 1}, nil); mw != nil {
		t.Error("Middleware should be nil when retries and breaker are both off")
	}
	if mw := Middleware(config.RetryConfig{MaxAttempts: 3}, nil); mw == nil {
		t.Error("Middleware should be non-nil when retries are on")
	}
}
