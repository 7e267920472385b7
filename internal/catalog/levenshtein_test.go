package catalog

import "testing"

func TestLevenshteinDistance(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "abc", 0},
		{"", "abc", 3},
		{"abc", "", 3},
		{"kitten", "sitting", 3},
		{"flaw", "lawn", 2},
		{"transformer", "tranformer", 1},
		{"method", "methods", 1},
		{"gross", "großen", 3},
	}
	for _, tt := range tests {
		if got := LevenshteinDistance(tt.a, tt.b); got != tt.want {
			t.Errorf("LevenshteinDistance(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestLevenshteinDistanceSymmetric(t *testing.T) {
	pairs := [][2]string{
		{"retrieval", "retreival"},
		{"citation", "citations"},
		{"a", "xyz"},
	}
	for _, p := range pairs {
		if d1, d2 := LevenshteinDistance(p[0], p[1]), LevenshteinDistance(p[1], p[0]); d1 != d2 {
			t.Errorf("distance not symmetric for %q/%q: %d vs %d", p[0], p[1], d1, d2)
		}
	}
}
