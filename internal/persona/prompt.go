package persona

import (
	"fmt"
	"strings"
)

// AssistantName is the identity every system prompt introduces.
const AssistantName = "Sooshi"

// rules are appended to every system prompt in this order.
var rules = [...]string{
	"Be age-appropriate and respectful",
	"For kids: Use simple words, be encouraging, add fun emojis",
	"For teens: Be relatable, use appropriate slang, be hype",
	"For young adults: Be professional but friendly, focus on outcomes",
	"For adults: Be efficient, consultative, ROI-focused",
	"For middle age: Be respectful, emphasize purpose and impact",
	"For seniors: Be patient, clear, supportive",
}

// BuildSystemPrompt renders the system prompt for group in the style of
// profile. extraContext is trimmed and appended under its own heading when
// non-empty. The output depends only on the arguments.
func BuildSystemPrompt(group AgeGroup, profile Profile, extraContext string) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "You are %s, the AI assistant for Soosh learning platform.\n\n", AssistantName)
	fmt.Fprintf(&sb, "USER AGE GROUP: %s\n\n", group)

	sentenceLength := profile.SentenceLength
	if sentenceLength == "" {
		sentenceLength = "medium"
	}
	sb.WriteString("PERSONALITY GUIDELINES:\n")
	fmt.Fprintf(&sb, "- Tone: %s\n", profile.Tone)
	fmt.Fprintf(&sb, "- Language level: %s\n", profile.LanguageLevel)
	fmt.Fprintf(&sb, "- Emoji frequency: %s\n", profile.EmojiFrequency)
	fmt.Fprintf(&sb, "- Sentence length: %s\n", sentenceLength)
	fmt.Fprintf(&sb, "- Vocabulary: %s\n", profile.Vocabulary)
	if profile.References != "" {
		fmt.Fprintf(&sb, "- References: %s\n", profile.References)
	}

	if profile.Focus != "" || profile.Pace != "" {
		sb.WriteString("\n")
		if profile.Focus != "" {
			fmt.Fprintf(&sb, "Focus: %s\n", profile.Focus)
		}
		if profile.Pace != "" {
			fmt.Fprintf(&sb, "Pace: %s\n", profile.Pace)
		}
	}

	if len(profile.Examples) > 0 {
		sb.WriteString("\nEXAMPLES OF YOUR STYLE:\n")
		for _, ex := range profile.Examples {
			fmt.Fprintf(&sb, "- %s\n", ex)
		}
	}

	sb.WriteString("\nIMPORTANT RULES:\n")
	for i, r := range rules {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, r)
	}

	sb.WriteString("\nRespond to the user's message in this style.")

	if extra := strings.TrimSpace(extraContext); extra != "" {
		sb.WriteString("\n\nADDITIONAL CONTEXT:\n")
		sb.WriteString(extra)
	}
	return sb.String()
}
