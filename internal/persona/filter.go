package persona

import "slices"

// Item is a piece of catalogue content subject to age filtering.
type Item struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	Difficulty      string `json:"difficulty"`
	DurationMinutes int    `json:"duration_minutes"`
	ContentRating   string `json:"content_rating,omitempty"`
}

// ContentFilter is the static predicate for one age group. A nil
// Difficulties or zero MaxDurationMinutes leaves that field unfiltered.
type ContentFilter struct {
	Difficulties       []string `json:"difficulties,omitempty"`
	MaxDurationMinutes int      `json:"max_duration_minutes,omitempty"`
}

var contentFilters = map[AgeGroup]ContentFilter{
	Kids:  {Difficulties: []string{"beginner"}, MaxDurationMinutes: 30},
	Teens: {Difficulties: []string{"beginner", "intermediate"}, MaxDurationMinutes: 60},
}

// FilterFor returns the predicate applied to group. Groups without one get
// the zero filter, which keeps everything.
func FilterFor(group AgeGroup) ContentFilter {
	f := contentFilters[group]
	f.Difficulties = slices.Clone(f.Difficulties)
	return f
}

// Allows reports whether item passes every active predicate of f.
func (f ContentFilter) Allows(item Item) bool {
	if f.Difficulties != nil && !slices.Contains(f.Difficulties, item.Difficulty) {
		return false
	}
	if f.MaxDurationMinutes > 0 && item.DurationMinutes > f.MaxDurationMinutes {
		return false
	}
	return true
}

// FilterByAge returns the items suitable for group in their original order.
// The input is not modified. Filtering an already filtered slice again
// yields the same items.
func FilterByAge(items []Item, group AgeGroup) []Item {
	f := contentFilters[group]
	out := make([]Item, 0, len(items))
	for _, it := range items {
		if f.Allows(it) {
			out = append(out, it)
		}
	}
	return out
}
