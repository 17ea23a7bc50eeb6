package types

import "strings"

// SkillSet is an ordered, deduplicated list of skill terms.
type SkillSet struct {
	terms []string
}

// NewSkillSet trims the raw terms, drops empty ones and removes
// case-insensitive duplicates, keeping the first spelling seen.
func NewSkillSet(raw ...string) SkillSet {
	seen := make(map[string]bool, len(raw))
	terms := make([]string, 0, len(raw))
	for _, r := range raw {
		term := strings.Join(strings.Fields(r), " ")
		if term == "" {
			continue
		}
		key := strings.ToLower(term)
		if seen[key] {
			continue
		}
		seen[key] = true
		terms = append(terms, term)
	}
	return SkillSet{terms: terms}
}

// ParseSkillSet splits a comma-separated list into a SkillSet.
func ParseSkillSet(csv string) SkillSet {
	return NewSkillSet(strings.Split(csv, ",")...)
}

// Terms returns a copy of the skill terms in order.
func (s SkillSet) Terms() []string {
	out := make([]string, len(s.terms))
	copy(out, s.terms)
	return out
}

// Len returns the number of terms.
func (s SkillSet) Len() int {
	return len(s.terms)
}

// Empty reports whether the set has no terms.
func (s SkillSet) Empty() bool {
	return len(s.terms) == 0
}

func (s SkillSet) String() string {
	return strings.Join(s.terms, ", ")
}
