package trgm

import (
	"math"
	"testing"
)

func TestSimilarity(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"word", "two words", 4.0 / 11.0},
		{"franklin bbq", "Franklin BBQ", 1},
		{"taco", "pizza", 0},
		{"", "taco", 0},
		{"!!!", "???", 0},
	}
	for _, tt := range tests {
		got := Similarity(tt.a, tt.b)
		if math.Abs(got-tt.want) > 1e-9 {
			t.Fatalf("Similarity(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
		if rev := Similarity(tt.b, tt.a); math.Abs(rev-got) > 1e-9 {
			t.Fatalf("Similarity is not symmetric for %q, %q", tt.a, tt.b)
		}
	}
}

func TestSimilarity_NearDuplicates(t *testing.T) {
	if s := Similarity("franklin barbecue", "franklin barbeque"); s < 0.7 {
		t.Fatalf("expected spelling variant above 0.7, got %v", s)
	}
	if s := Similarity("franklin bbq", "la barbecue"); s >= 0.7 {
		t.Fatalf("expected different restaurants below 0.7, got %v", s)
	}
}

func TestTrigrams(t *testing.T) {
	got := Trigrams("cat")
	for _, want := range []string{"  c", " ca", "cat", "at "} {
		if _, ok := got[want]; !ok {
			t.Fatalf("missing trigram %q in %v", want, got)
		}
	}
	if len(got) != 4 {
		t.Fatalf("expected 4 trigrams, got %d", len(got))
	}
}
