package store

import (
	"slices"
	"testing"

	"github.com/OFFIS-RIT/dishgraph/backend/pkg/common"
)

func TestDedupeStrings(t *testing.T) {
	got := DedupeStrings([]string{"Franklin BBQ", "", "franklin bbq", " ", "La Barbecue"})
	want := []string{"Franklin BBQ", "La Barbecue"}
	if !slices.Equal(got, want) {
		t.Fatalf("DedupeStrings() = %v, want %v", got, want)
	}
	if DedupeStrings(nil) != nil {
		t.Fatal("expected nil for empty input")
	}
}

func TestSortCandidates(t *testing.T) {
	c := []Candidate{
		{Entity: common.Entity{ID: 5}, Similarity: 0.8},
		{Entity: common.Entity{ID: 4, QualityScore: 1}, Similarity: 0.8},
		{Entity: common.Entity{ID: 3, Aliases: []string{"a"}}, Similarity: 0.8},
		{Entity: common.Entity{ID: 2}, Similarity: 0.8},
		{Entity: common.Entity{ID: 1}, Similarity: 0.75},
		{Entity: common.Entity{ID: 9}, Similarity: 0.9},
	}
	SortCandidates(c)

	var ids []int64
	for _, x := range c {
		ids = append(ids, x.Entity.ID)
	}
	want := []int64{9, 4, 3, 2, 5, 1}
	if !slices.Equal(ids, want) {
		t.Fatalf("order = %v, want %v", ids, want)
	}
}

func TestListLimit(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{0, DefaultListLimit},
		{-3, DefaultListLimit},
		{10, 10},
		{MaxListLimit + 1, MaxListLimit},
	}
	for _, tt := range tests {
		if got := ListLimit(tt.in); got != tt.want {
			t.Fatalf("ListLimit(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
