package persona

import "slices"

// ConsentLevel is how much parental involvement an account needs.
type ConsentLevel string

const (
	ConsentNone    ConsentLevel = "none"
	ConsentPartial ConsentLevel = "partial"
	ConsentFull    ConsentLevel = "full"
)

// ConsentPolicy describes the parental consent rules for one age group.
type ConsentPolicy struct {
	Required           bool         `json:"required"`
	Level              ConsentLevel `json:"level"`
	RestrictedFeatures []string     `json:"features_restricted"`
	Message            string       `json:"message,omitempty"`
}

var consentPolicies = map[AgeGroup]ConsentPolicy{
	Kids: {
		Required: true,
		Level:    ConsentFull,
		RestrictedFeatures: []string{
			"payments",
			"direct_messaging",
			"external_links",
			"profile_public",
		},
		Message: "For safety, we need a parent or guardian to set up and manage your account.",
	},
	Teens: {
		Required:           true,
		Level:              ConsentPartial,
		RestrictedFeatures: []string{"payments_over_50", "mentor_sessions_unsupervised"},
		Message:            "We may need parental consent for some features.",
	},
}

// Consent returns the consent policy for group. Groups from young_adult up
// need no consent.
func Consent(group AgeGroup) ConsentPolicy {
	p, ok := consentPolicies[group]
	if !ok {
		return ConsentPolicy{Level: ConsentNone, RestrictedFeatures: []string{}}
	}
	p.RestrictedFeatures = slices.Clone(p.RestrictedFeatures)
	return p
}
