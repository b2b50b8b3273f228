package persona

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/sooshi/internal/observe"
)

//go:embed personas.yaml
var builtinTable []byte

// Profile is the speaking style used for one age group. Empty optional fields
// are left out of the rendered system prompt.
type Profile struct {
	Tone           string   `yaml:"tone"            json:"tone"`
	LanguageLevel  string   `yaml:"language_level"  json:"language_level"`
	EmojiFrequency string   `yaml:"emoji_frequency" json:"emoji_frequency"`
	SentenceLength string   `yaml:"sentence_length" json:"sentence_length,omitempty"`
	Vocabulary     string   `yaml:"vocabulary"      json:"vocabulary"`
	Focus          string   `yaml:"focus"           json:"focus,omitempty"`
	Pace           string   `yaml:"pace"            json:"pace,omitempty"`
	References     string   `yaml:"references"      json:"references,omitempty"`
	Examples       []string `yaml:"examples"        json:"examples"`
}

// clone returns a copy that shares no slices with p.
func (p Profile) clone() Profile {
	p.Examples = slices.Clone(p.Examples)
	return p
}

// Question is one onboarding step.
type Question struct {
	Step          int      `yaml:"step"           json:"step"`
	Prompt        string   `yaml:"question"       json:"question"`
	InputType     string   `yaml:"input_type"     json:"input_type"`
	Options       []Choice `yaml:"options"        json:"options,omitempty"`
	MaxSelections int      `yaml:"max_selections" json:"max_selections,omitempty"`
	VoiceEnabled  bool     `yaml:"voice_enabled"  json:"voice_enabled,omitempty"`
	Placeholder   string   `yaml:"placeholder"    json:"placeholder,omitempty"`
}

// Choice is one selectable answer of a [Question].
type Choice struct {
	Label    string `yaml:"label"    json:"label"`
	Value    string `yaml:"value"    json:"value"`
	Emoji    string `yaml:"emoji"    json:"emoji,omitempty"`
	Trending bool   `yaml:"trending" json:"trending,omitempty"`
}

type table struct {
	Profiles  map[AgeGroup]Profile    `yaml:"profiles"`
	Questions map[AgeGroup][]Question `yaml:"questions"`
}

// parseTable decodes and checks a persona table. Every group needs a profile
// and the default group needs a question set.
func parseTable(r io.Reader) (*table, error) {
	var t table
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&t); err != nil {
		return nil, fmt.Errorf("persona: decode table: %w", err)
	}

	var errs []error
	for g := range t.Profiles {
		if !g.IsValid() {
			errs = append(errs, fmt.Errorf("profiles: unknown age group %q", g))
		}
	}
	for g := range t.Questions {
		if !g.IsValid() {
			errs = append(errs, fmt.Errorf("questions: unknown age group %q", g))
		}
	}
	for _, g := range AgeGroups() {
		p, ok := t.Profiles[g]
		switch {
		case !ok:
			errs = append(errs, fmt.Errorf("profiles: missing %s", g))
		case p.Tone == "" || p.LanguageLevel == "" || p.Vocabulary == "":
			errs = append(errs, fmt.Errorf("profiles.%s: tone, language_level and vocabulary are required", g))
		}
	}
	if len(t.Questions[DefaultGroup]) == 0 {
		errs = append(errs, fmt.Errorf("questions: missing %s", DefaultGroup))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("persona: invalid table: %w", err)
	}
	return &t, nil
}

// Engine answers persona lookups from a static table and extracts learner
// profiles through a [Chatter]. It is immutable after construction and safe
// for concurrent use.
type Engine struct {
	profiles  map[AgeGroup]Profile
	questions map[AgeGroup][]Question
	chat      Chatter
	metrics   *observe.Metrics
	tableSrc  io.Reader
}

// Option configures an [Engine].
type Option func(*Engine)

// WithChat sets the backend used by [Engine.ExtractProfile]. Without one,
// extraction always yields [DefaultExtraction].
func WithChat(c Chatter) Option {
	return func(e *Engine) { e.chat = c }
}

// WithMetrics records extraction fallbacks into m instead of
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(e *Engine) {
		if m != nil {
			e.metrics = m
		}
	}
}

// WithTable replaces the built-in persona table.
func WithTable(r io.Reader) Option {
	return func(e *Engine) { e.tableSrc = r }
}

// New returns an Engine loaded from the built-in table unless [WithTable] is
// given.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{}
	for _, o := range opts {
		o(e)
	}
	if e.tableSrc == nil {
		e.tableSrc = bytes.NewReader(builtinTable)
	}
	t, err := parseTable(e.tableSrc)
	if err != nil {
		return nil, err
	}
	e.tableSrc = nil
	e.profiles = t.Profiles
	e.questions = t.Questions
	if e.metrics == nil {
		e.metrics = observe.DefaultMetrics()
	}
	return e, nil
}

// Profile returns the style for group, or the default group's style when
// group is unknown.
func (e *Engine) Profile(group AgeGroup) Profile {
	p, ok := e.profiles[group]
	if !ok {
		p = e.profiles[DefaultGroup]
	}
	return p.clone()
}

// ForAge returns the style for the group containing age.
func (e *Engine) ForAge(age int) Profile {
	return e.Profile(GroupForAge(age))
}

// Questions returns the onboarding questions for group. Groups without their
// own set get the default group's questions.
func (e *Engine) Questions(group AgeGroup) []Question {
	qs, ok := e.questions[group]
	if !ok || len(qs) == 0 {
		qs = e.questions[DefaultGroup]
	}
	out := make([]Question, len(qs))
	for i, q := range qs {
		q.Options = slices.Clone(q.Options)
		out[i] = q
	}
	return out
}

// SystemPromptForAge renders the system prompt for the group containing age.
func (e *Engine) SystemPromptForAge(age int, extraContext string) string {
	g := GroupForAge(age)
	return BuildSystemPrompt(g, e.Profile(g), extraContext)
}
