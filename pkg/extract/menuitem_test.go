package extract

import "testing"

func TestIsMenuItem(t *testing.T) {
	tests := []struct {
		name     string
		term     string
		sentence string
		siblings []string
		want     bool
	}{
		{name: "ordered specific dish", term: "pad thai", sentence: "I ordered the pad thai", want: true},
		{name: "specialize in cuisine", term: "thai food", sentence: "They specialize in Thai food", want: false},
		{name: "broad category", term: "seafood", sentence: "great seafood here", want: false},
		{name: "plural is general", term: "taco", sentence: "the tacos here are great", want: false},
		{name: "singular with determiner", term: "brisket", sentence: "their brisket is great", want: true},
		{name: "known for cue", term: "brisket", sentence: "they are known for brisket", want: true},
		{name: "kinds of cue", term: "ramen", sentence: "they have all kinds of ramen", want: false},
		{
			name:     "general sibling of specific term",
			term:     "ramen",
			sentence: "ramen is good here",
			siblings: []string{"tonkotsu ramen", "ramen"},
			want:     false,
		},
		{name: "default ordered framing", term: "burrito", sentence: "got burrito yesterday", want: true},
		{name: "default general framing", term: "burrito", sentence: "burrito is life", want: false},
		{name: "empty term", term: "", sentence: "anything", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsMenuItem(tt.term, tt.sentence, tt.siblings); got != tt.want {
				t.Fatalf("IsMenuItem(%q, %q) = %v, want %v", tt.term, tt.sentence, got, tt.want)
			}
		})
	}
}
