package store

import (
	"slices"
	"strings"
)

// DedupeStrings removes empty and repeated values, ignoring case, and keeps
// the first spelling.
func DedupeStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		k := strings.ToLower(strings.TrimSpace(v))
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, v)
	}
	return out
}

// SortCandidates orders candidates by similarity, then quality score, then
// alias count, then lowest id, so equal inputs always pick the same entity.
func SortCandidates(c []Candidate) {
	slices.SortStableFunc(c, func(a, b Candidate) int {
		switch {
		case a.Similarity != b.Similarity:
			if a.Similarity > b.Similarity {
				return -1
			}
			return 1
		case a.Entity.QualityScore != b.Entity.QualityScore:
			if a.Entity.QualityScore > b.Entity.QualityScore {
				return -1
			}
			return 1
		case len(a.Entity.Aliases) != len(b.Entity.Aliases):
			return len(b.Entity.Aliases) - len(a.Entity.Aliases)
		}
		switch {
		case a.Entity.ID < b.Entity.ID:
			return -1
		case a.Entity.ID > b.Entity.ID:
			return 1
		}
		return 0
	})
}
