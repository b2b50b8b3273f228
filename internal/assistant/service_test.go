package assistant_test

import (
	"context"
	"errors"
	"slices"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/MrWong99/sooshi/internal/aiprovider/mock"
	"github.com/MrWong99/sooshi/internal/assistant"
	"github.com/MrWong99/sooshi/internal/config"
	"github.com/MrWong99/sooshi/internal/observe"
	"github.com/MrWong99/sooshi/pkg/provider"
	"github.com/MrWong99/sooshi/pkg/types"
)

func newTestMetrics(t *testing.T) (*observe.Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

func newService(t *testing.T, a *mock.Adapter, opts ...assistant.Option) *assistant.Service {
	t.Helper()
	m, _ := newTestMetrics(t)
	svc, err := assistant.New(a, append([]assistant.Option{assistant.WithMetrics(m)}, opts...)...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return svc
}

func TestNew_NilAdapter(t *testing.T) {
	t.Parallel()
	if _, err := assistant.New(nil); err == nil {
		t.Fatal("expected error for nil adapter")
	}
}

func TestChat_BuildsMessageSequence(t *testing.T) {
	t.Parallel()

	history := []types.Message{
		{Role: types.RoleUser, Content: "a"},
		{Role: types.RoleAssistant, Content: "b"},
	}
	tests := []struct {
		name string
		opts []assistant.ChatOption
		want []types.Message
	}{
		{
			name: "user only",
			want: []types.Message{{Role: types.RoleUser, Content: "hello"}},
		},
		{
			name: "system prompt",
			opts: []assistant.ChatOption{assistant.WithSystemPrompt("S")},
			want: []types.Message{
				{Role: types.RoleSystem, Content: "S"},
				{Role: types.RoleUser, Content: "hello"},
			},
		},
		{
			name: "system prompt and history",
			opts: []assistant.ChatOption{assistant.WithSystemPrompt("S"), assistant.WithHistory(history)},
			want: []types.Message{
				{Role: types.RoleSystem, Content: "S"},
				{Role: types.RoleUser, Content: "a"},
				{Role: types.RoleAssistant, Content: "b"},
				{Role: types.RoleUser, Content: "hello"},
			},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			a := &mock.Adapter{Reply: "hi"}
			svc := newService(t, a)

			reply, err := svc.Chat(context.Background(), "hello", tc.opts...)
			if err != nil || reply != "hi" {
				t.Fatalf("Chat = %q, %v", reply, err)
			}
			if len(a.GenerateRequests) != 1 {
				t.Fatalf("GenerateText called %d times, want 1", len(a.GenerateRequests))
			}
			if got := a.GenerateRequests[0].Messages; !slices.Equal(got, tc.want) {
				t.Errorf("messages = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestChat_GenerationDefaults(t *testing.T) {
	t.Parallel()

	a := &mock.Adapter{}
	svc := newService(t, a, assistant.WithGeneration(config.GenerationConfig{MaxTokens: 200, Temperature: 0.4}))
	ctx := context.Background()

	_, _ = svc.Chat(ctx, "one")
	_, _ = svc.Chat(ctx, "two", assistant.WithTemperature(1.2), assistant.WithJSONResponse())

	if got := a.GenerateRequests[0]; got.MaxTokens != 200 || got.Temperature != 0.4 {
		t.Errorf("defaults = %d/%.1f, want 200/0.4", got.MaxTokens, got.Temperature)
	}
	if got := a.GenerateRequests[1].Temperature; got != 1.2 {
		t.Errorf("override temperature = %.1f, want 1.2", got)
	}
	if a.GenerateRequests[0].JSONResponse || !a.GenerateRequests[1].JSONResponse {
		t.Error("JSON mode must follow WithJSONResponse per call")
	}

	b := &mock.Adapter{}
	_, _ = newService(t, b).Chat(ctx, "three")
	if got := b.GenerateRequests[0]; got.MaxTokens != 500 || got.Temperature != 0.7 {
		t.Errorf("built-in defaults = %d/%.1f, want 500/0.7", got.MaxTokens, got.Temperature)
	}
}

func TestChat_PassesReplyAndErrorsThrough(t *testing.T) {
	t.Parallel()

	a := &mock.Adapter{Reply: "```json\n{not json"}
	reply, err := newService(t, a).Chat(context.Background(), "x")
	if err != nil || reply != "```json\n{not json" {
		t.Errorf("Chat = %q, %v; want the raw reply", reply, err)
	}

	connErr := provider.Connection("ollama", "generate", errors.New("refused"))
	b := &mock.Adapter{GenerateErr: connErr}
	if _, err := newService(t, b).Chat(context.Background(), "x"); !errors.Is(err, provider.ErrConnection) {
		t.Errorf("err = %v, want connection error", err)
	}
}

func TestTextToSpeech(t *testing.T) {
	t.Parallel()

	a := &mock.Adapter{Audio: []byte("RIFF")}
	svc := newService(t, a)

	audio, err := svc.TextToSpeech(context.Background(), "hello", "alloy")
	if err != nil || string(audio) != "RIFF" {
		t.Fatalf("TextToSpeech = %q, %v", audio, err)
	}
	if got := a.SpeechRequests[0]; got.Text != "hello" || got.Voice != "alloy" {
		t.Errorf("speech request = %+v", got)
	}

	for _, text := range []string{"", "   "} {
		_, err := svc.TextToSpeech(context.Background(), text, "")
		if !errors.Is(err, assistant.ErrEmptyText) || !errors.Is(err, provider.ErrInvalidInput) {
			t.Errorf("TextToSpeech(%q): err = %v, want ErrEmptyText", text, err)
		}
	}
	if len(a.SpeechRequests) != 1 {
		t.Errorf("backend called %d times, want 1", len(a.SpeechRequests))
	}
}

func TestSpeechToText(t *testing.T) {
	t.Parallel()

	a := &mock.Adapter{Transcript: "hi there"}
	text, err := newService(t, a).SpeechToText(context.Background(), []byte{1, 2})
	if err != nil || text != "hi there" {
		t.Errorf("SpeechToText = %q, %v", text, err)
	}

	silent := &mock.Adapter{}
	text, err = newService(t, silent).SpeechToText(context.Background(), []byte{0})
	if err != nil || text != "" {
		t.Errorf("silent SpeechToText = %q, %v; want empty and nil", text, err)
	}
}

func TestActiveProvider(t *testing.T) {
	t.Parallel()
	a := &mock.Adapter{AdapterKind: config.ProviderCloud, DisplayName: "OpenAI (GPT-4 + TTS)"}
	svc := newService(t, a)
	if svc.ActiveProvider() != config.ProviderCloud {
		t.Errorf("ActiveProvider() = %q", svc.ActiveProvider())
	}
	if svc.ActiveProviderName() != "OpenAI (GPT-4 + TTS)" {
		t.Errorf("ActiveProviderName() = %q", svc.ActiveProviderName())
	}
}
