package persona_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/MrWong99/sooshi/internal/aiprovider/mock"
	"github.com/MrWong99/sooshi/internal/assistant"
	"github.com/MrWong99/sooshi/internal/observe"
	"github.com/MrWong99/sooshi/internal/persona"
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

func fallbacks(t *testing.T, reader *sdkmetric.ManualReader) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == "sooshi.persona.extraction_fallbacks" {
				for _, dp := range m.Data.(metricdata.Sum[int64]).DataPoints {
					total += dp.Value
				}
			}
		}
	}
	return total
}

// newEngine wires an Engine to a mock adapter through a real assistant.Service.
func newEngine(t *testing.T, a *mock.Adapter) (*persona.Engine, *sdkmetric.ManualReader) {
	t.Helper()
	m, reader := newTestMetrics(t)
	svc, err := assistant.New(a, assistant.WithMetrics(m))
	if err != nil {
		t.Fatalf("assistant.New: %v", err)
	}
	e, err := persona.New(persona.WithChat(svc), persona.WithMetrics(m))
	if err != nil {
		t.Fatalf("persona.New: %v", err)
	}
	return e, reader
}

func TestNew_BuiltinTable(t *testing.T) {
	t.Parallel()
	e, err := persona.New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for _, g := range persona.AgeGroups() {
		p := e.Profile(g)
		if p.Tone == "" || p.LanguageLevel == "" || p.Vocabulary == "" || len(p.Examples) == 0 {
			t.Errorf("profile %s is incomplete: %+v", g, p)
		}
	}
	if p := e.Profile(persona.Senior); p.Pace == "" {
		t.Error("senior profile has no pace")
	}
}

func TestNew_InvalidTable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name, yaml, wantSub string
	}{
		{"unknown field", "profiles: {}\nextra: 1\n", "extra"},
		{"missing group", "profiles:\n  kids: {tone: a, language_level: b, vocabulary: c}\nquestions:\n  young_adult: [{step: 1, question: q}]\n", "missing teens"},
		{"unknown group", "profiles:\n  toddlers: {tone: a}\n", "toddlers"},
		{"no default questions", "profiles: {}\n", "questions: missing young_adult"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := persona.New(persona.WithTable(strings.NewReader(tc.yaml)))
			if err == nil || !strings.Contains(err.Error(), tc.wantSub) {
				t.Errorf("err = %v, want it to contain %q", err, tc.wantSub)
			}
		})
	}
}

func TestForAge(t *testing.T) {
	t.Parallel()
	e, err := persona.New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if tone := e.ForAge(8).Tone; !strings.Contains(tone, "encouraging") {
		t.Errorf("ForAge(8).Tone = %q, want it to contain encouraging", tone)
	}
	if e.ForAge(6).Tone != e.ForAge(11).Tone {
		t.Error("ages in the same bracket got different profiles")
	}
	if e.ForAge(3).Tone != e.Profile(persona.Senior).Tone {
		t.Error("ForAge(3) did not map to the senior profile")
	}

	p := e.ForAge(8)
	p.Examples[0] = "changed"
	if e.ForAge(8).Examples[0] == "changed" {
		t.Error("Profile leaked the shared table")
	}
}

func TestQuestions(t *testing.T) {
	t.Parallel()
	e, err := persona.New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	kids := e.Questions(persona.Kids)
	if len(kids) != 3 || !strings.Contains(kids[0].Prompt, "Sooshi") || !kids[0].VoiceEnabled {
		t.Errorf("kids questions = %+v", kids)
	}
	if kids[1].MaxSelections != 3 || len(kids[1].Options) != 6 {
		t.Errorf("kids step 2 = %+v", kids[1])
	}

	ya := e.Questions(persona.YoungAdult)
	for _, g := range []persona.AgeGroup{persona.Adult, persona.MiddleAge, persona.Senior} {
		got := e.Questions(g)
		if len(got) != len(ya) || got[0].Prompt != ya[0].Prompt {
			t.Errorf("Questions(%s) did not fall back to young_adult", g)
		}
	}
	if e.Questions(persona.Teens)[0].Prompt == ya[0].Prompt {
		t.Error("teens got the fallback questions")
	}
}

func TestSystemPromptForAge(t *testing.T) {
	t.Parallel()
	e, err := persona.New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got := e.SystemPromptForAge(8, "")
	if !strings.Contains(got, "USER AGE GROUP: kids") || !strings.Contains(got, "encouraging") {
		t.Errorf("prompt = %s", got)
	}
}

func TestExtractProfile_Success(t *testing.T) {
	t.Parallel()

	reply := "```json\n" + `{
		"passions": ["Art", "Design"],
		"skills": [{"skill": "Drawing", "level": "beginner"}],
		"goals": "Learn digital art",
		"time_commitment": "30 minutes/day",
		"learning_style": "Visual",
		"motivation": "creative expression"
	}` + "\n```"
	a := &mock.Adapter{Reply: reply}
	e, reader := newEngine(t, a)
	history := []types.Message{
		{Role: types.RoleAssistant, Content: "What do you love?"},
		{Role: types.RoleUser, Content: "Drawing!"},
	}

	got := e.ExtractProfile(context.Background(), persona.Kids, history)
	if len(got.Passions) != 2 || got.Skills[0].Skill != "Drawing" || got.LearningStyle != "visual" {
		t.Errorf("extraction = %+v", got)
	}
	if n := fallbacks(t, reader); n != 0 {
		t.Errorf("fallbacks = %d, want 0", n)
	}

	req := a.GenerateRequests[0]
	if req.Temperature != 0.3 || !req.JSONResponse {
		t.Errorf("temperature = %v, json = %v, want 0.3 in JSON mode", req.Temperature, req.JSONResponse)
	}
	if req.Messages[0].Role != types.RoleSystem || !strings.Contains(req.Messages[0].Content, "kids user") {
		t.Errorf("first message = %+v, want the extraction instruction", req.Messages[0])
	}
	if req.Messages[1].Content != "What do you love?" || req.Messages[2].Content != "Drawing!" {
		t.Errorf("history not forwarded in order: %+v", req.Messages)
	}
}

func TestExtractProfile_FallsBack(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		adapter *mock.Adapter
	}{
		{"malformed json", &mock.Adapter{Reply: `{"passions": ["Art"`}},
		{"prose", &mock.Adapter{Reply: "Sure! The user likes art."}},
		{"wrong field type", &mock.Adapter{Reply: `{"passions": "Art"}`}},
		{"bad learning style", &mock.Adapter{Reply: `{"learning_style": "osmosis"}`}},
		{"unnamed skill", &mock.Adapter{Reply: `{"skills": [{"level": "expert"}]}`}},
		{"trailing data", &mock.Adapter{Reply: `{"goals": "x"} {"goals": "y"}`}},
		{"chat error", &mock.Adapter{GenerateErr: provider.Connection("ollama", "generate", errors.New("refused"))}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			e, reader := newEngine(t, tc.adapter)
			got := e.ExtractProfile(context.Background(), persona.Teens, nil)
			want := persona.DefaultExtraction()
			if got.Passions == nil || got.Skills == nil || len(got.Passions) != 0 || len(got.Skills) != 0 ||
				got.Goals != want.Goals || got.LearningStyle != want.LearningStyle {
				t.Errorf("extraction = %+v, want the default", got)
			}
			if n := fallbacks(t, reader); n != 1 {
				t.Errorf("fallbacks = %d, want 1", n)
			}
		})
	}
}

func TestExtractProfile_NoChat(t *testing.T) {
	t.Parallel()
	m, reader := newTestMetrics(t)
	e, err := persona.New(persona.WithMetrics(m))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got := e.ExtractProfile(context.Background(), persona.Adult, nil)
	if len(got.Passions) != 0 || got.Passions == nil {
		t.Errorf("extraction = %+v, want the default", got)
	}
	if n := fallbacks(t, reader); n != 1 {
		t.Errorf("fallbacks = %d, want 1", n)
	}
}
