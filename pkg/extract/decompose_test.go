package extract

import (
	"slices"
	"strings"
	"testing"
)

func TestDecompose(t *testing.T) {
	tests := []struct {
		name        string
		phrase      string
		attributes  []string
		wantPrimary string
		wantCats    []string
	}{
		{
			name:        "suffix chain with modifier noun",
			phrase:      "nashville hot chicken sandwich",
			wantPrimary: "nashville hot chicken sandwich",
			wantCats:    []string{"nashville hot chicken sandwich", "hot chicken sandwich", "chicken sandwich", "sandwich", "chicken"},
		},
		{
			name:        "attribute stripped with known parent",
			phrase:      "house-made carnitas taco",
			attributes:  []string{"house-made"},
			wantPrimary: "carnitas taco",
			wantCats:    []string{"carnitas taco", "taco", "carnitas", "pork"},
		},
		{
			name:        "regional dish implies broader category",
			phrase:      "Tonkotsu Ramen",
			wantPrimary: "tonkotsu ramen",
			wantCats:    []string{"tonkotsu ramen", "ramen", "noodle soup"},
		},
		{
			name:        "compound tail is atomic",
			phrase:      "spicy pad thai",
			attributes:  []string{"spicy"},
			wantPrimary: "pad thai",
			wantCats:    []string{"pad thai", "noodle"},
		},
		{
			name:        "plural head singularised",
			phrase:      "chicken wings",
			wantPrimary: "chicken wing",
			wantCats:    []string{"chicken wing", "wing", "chicken"},
		},
		{
			name:        "uncountable head kept",
			phrase:      "the carnitas",
			wantPrimary: "carnitas",
			wantCats:    []string{"carnitas", "pork"},
		},
		{
			name:        "only attributes",
			phrase:      "spicy",
			attributes:  []string{"spicy"},
			wantPrimary: "",
			wantCats:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Decompose(tt.phrase, tt.attributes)
			if got.Primary != tt.wantPrimary {
				t.Fatalf("Primary = %q, want %q", got.Primary, tt.wantPrimary)
			}
			if !slices.Equal(got.Categories, tt.wantCats) {
				t.Fatalf("Categories = %q, want %q", got.Categories, tt.wantCats)
			}
		})
	}
}

func TestDecompose_AttributesNeverInCategories(t *testing.T) {
	phrases := []struct {
		phrase string
		attrs  []string
	}{
		{"vegan burger", []string{"vegan"}},
		{"spicy fried chicken sandwich", []string{"spicy"}},
		{"wood-fired neapolitan pizza", []string{"wood-fired"}},
		{"italian sub sandwich", []string{"italian"}},
	}
	for _, p := range phrases {
		d := Decompose(p.phrase, p.attrs)
		for _, c := range append([]string{d.Primary}, d.Categories...) {
			for _, a := range p.attrs {
				if slices.Contains(strings.Fields(c), a) {
					t.Fatalf("Decompose(%q) leaked attribute %q in %q", p.phrase, a, c)
				}
			}
		}
	}
}
