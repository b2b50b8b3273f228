package persona

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/MrWong99/sooshi/internal/assistant"
	"github.com/MrWong99/sooshi/internal/observe"
	"github.com/MrWong99/sooshi/pkg/types"
)

// Chatter is the text generation dependency of [Engine.ExtractProfile].
// *assistant.Service satisfies it.
type Chatter interface {
	Chat(ctx context.Context, userMessage string, opts ...assistant.ChatOption) (string, error)
}

// extractionTemperature keeps the structured reply close to deterministic.
const extractionTemperature = 0.3

// extractionRequest is the user turn that follows the instruction and history.
const extractionRequest = "Return the JSON object for this conversation now."

// errExtractionParse marks a reply that is not a valid profile object. It is
// logged and never returned to callers.
var errExtractionParse = errors.New("persona: extraction reply is not a valid profile")

// Learning styles accepted in [Extraction.LearningStyle].
var learningStyles = []string{"visual", "hands-on", "theoretical", "mentorship"}

// Skill is one self-reported skill and its level.
type Skill struct {
	Skill string `json:"skill"`
	Level string `json:"level"`
}

// Extraction is the structured learner profile read from an onboarding
// conversation.
type Extraction struct {
	Passions       []string `json:"passions"`
	Skills         []Skill  `json:"skills"`
	Goals          string   `json:"goals"`
	TimeCommitment string   `json:"time_commitment"`
	LearningStyle  string   `json:"learning_style"`
	Motivation     string   `json:"motivation"`
}

// DefaultExtraction is returned whenever extraction fails: no passions, no
// skills and empty text fields. Slices are non-nil so the value encodes as
// empty JSON arrays.
func DefaultExtraction() Extraction {
	return Extraction{
		Passions: []string{},
		Skills:   []Skill{},
	}
}

// extractionInstruction returns the system prompt that asks for the profile.
func extractionInstruction(group AgeGroup) string {
	return fmt.Sprintf(`Analyze this onboarding conversation with a %s user and extract:

1. Interests/Passions (as array of strings)
2. Skills (as array of {skill: string, level: string})
3. Goals (as single string)
4. Time commitment (as string)
5. Learning style (as string: visual, hands-on, theoretical, mentorship)
6. Motivation (why they're here)

For kids/teens: Simplify and focus on fun interests
For adults: Focus on career and ROI
For seniors: Focus on enjoyment and community

Return ONLY a JSON object, no other text.

Example output:
{
  "passions": ["Art", "Design"],
  "skills": [{"skill": "Drawing", "level": "beginner"}],
  "goals": "Learn digital art",
  "time_commitment": "30 minutes/day",
  "learning_style": "visual",
  "motivation": "creative expression"
}`, group)
}

// ExtractProfile asks the model to summarise history as an [Extraction]. It
// never fails: a chat error, a missing backend, or a reply that does not
// decode and validate all yield [DefaultExtraction].
func (e *Engine) ExtractProfile(ctx context.Context, group AgeGroup, history []types.Message) Extraction {
	log := observe.Logger(ctx)
	fallback := func(reason string, err error) Extraction {
		log.Warn("profile extraction fell back to default",
			"age_group", string(group),
			"reason", reason,
			"err", err,
		)
		e.metrics.RecordExtractionFallback(ctx, string(group))
		return DefaultExtraction()
	}

	if e.chat == nil {
		return fallback("no chat backend", nil)
	}
	reply, err := e.chat.Chat(ctx, extractionRequest,
		assistant.WithSystemPrompt(extractionInstruction(group)),
		assistant.WithHistory(history),
		assistant.WithTemperature(extractionTemperature),
		assistant.WithJSONResponse(),
	)
	if err != nil {
		return fallback("chat failed", err)
	}
	ex, err := parseExtraction(reply)
	if err != nil {
		return fallback("invalid reply", err)
	}
	log.Debug("profile extracted",
		"age_group", string(group),
		"passions", len(ex.Passions),
		"skills", len(ex.Skills),
	)
	return ex
}

// parseExtraction decodes and validates a model reply. The reply may be
// wrapped in a markdown code fence.
func parseExtraction(reply string) (Extraction, error) {
	body := stripCodeFence(reply)
	if !strings.HasPrefix(body, "{") {
		return Extraction{}, fmt.Errorf("%w: not a JSON object", errExtractionParse)
	}

	var ex Extraction
	dec := json.NewDecoder(strings.NewReader(body))
	if err := dec.Decode(&ex); err != nil {
		return Extraction{}, fmt.Errorf("%w: %v", errExtractionParse, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return Extraction{}, fmt.Errorf("%w: trailing data after object", errExtractionParse)
	}

	if ex.Passions == nil {
		ex.Passions = []string{}
	}
	if ex.Skills == nil {
		ex.Skills = []Skill{}
	}
	for i, s := range ex.Skills {
		if strings.TrimSpace(s.Skill) == "" {
			return Extraction{}, fmt.Errorf("%w: skills[%d] has no name", errExtractionParse, i)
		}
	}
	ex.LearningStyle = strings.ToLower(strings.TrimSpace(ex.LearningStyle))
	if ex.LearningStyle != "" && !slices.Contains(learningStyles, ex.LearningStyle) {
		return Extraction{}, fmt.Errorf("%w: learning_style %q is not one of %s",
			errExtractionParse, ex.LearningStyle, strings.Join(learningStyles, ", "))
	}
	return ex, nil
}

// stripCodeFence removes a surrounding ``` or ```json fence.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = ""
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
