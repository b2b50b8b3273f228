// Package persona adapts Sooshi to the caller's age bracket. It maps an age
// to one of six groups and derives from the group a speaking style, a system
// prompt, an onboarding questionnaire, content filters, and the parental
// consent policy. All tables are static; the only network call is
// [Engine.ExtractProfile].
package persona

import (
	"fmt"
	"strings"
)

// AgeGroup is one of six non-overlapping age brackets.
type AgeGroup string

const (
	Kids       AgeGroup = "kids"        // 5-12
	Teens      AgeGroup = "teens"       // 13-17
	YoungAdult AgeGroup = "young_adult" // 18-24
	Adult      AgeGroup = "adult"       // 25-44
	MiddleAge  AgeGroup = "middle_age"  // 45-60
	Senior     AgeGroup = "senior"      // 61+
)

// DefaultGroup stands in for any group without a table entry.
const DefaultGroup = YoungAdult

// AgeGroups lists every group from youngest to oldest.
func AgeGroups() []AgeGroup {
	return []AgeGroup{Kids, Teens, YoungAdult, Adult, MiddleAge, Senior}
}

// IsValid reports whether g is one of the six groups.
func (g AgeGroup) IsValid() bool {
	switch g {
	case Kids, Teens, YoungAdult, Adult, MiddleAge, Senior:
		return true
	}
	return false
}

// ParseAgeGroup parses a group name case-insensitively.
func ParseAgeGroup(s string) (AgeGroup, error) {
	g := AgeGroup(strings.ToLower(strings.TrimSpace(s)))
	if !g.IsValid() {
		return "", fmt.Errorf("persona: unknown age group %q", s)
	}
	return g, nil
}

// GroupForAge returns the bracket containing age. The brackets are [5,12],
// [13,17], [18,24], [25,44], [45,60] and [61,∞). Ages below 5, negatives
// included, fall outside every youth bracket and map to [Senior].
func GroupForAge(age int) AgeGroup {
	switch {
	case age < 5:
		return Senior
	case age <= 12:
		return Kids
	case age <= 17:
		return Teens
	case age <= 24:
		return YoungAdult
	case age <= 44:
		return Adult
	case age <= 60:
		return MiddleAge
	default:
		return Senior
	}
}
