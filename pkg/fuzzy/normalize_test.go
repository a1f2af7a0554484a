package fuzzy

import "testing"

func TestNormalizeTitle(t *testing.T) {
	n := NewNormalizer()

	tests := []struct {
		name  string
		title string
		want  string
	}{
		{"plain", "Bohemian Rhapsody", "bohemian rhapsody"},
		{"feat credit", "Empire State of Mind (feat. Alicia Keys)", "empire state of mind"},
		{"ft credit", "Song ft. Someone", "song"},
		{"remaster marker", "Come Together (Remastered 2009)", "come together"},
		{"radio edit marker", "Around the World [Radio Edit]", "around the world"},
		{"accents dropped", "Déjà Vu", "deja vu"},
		{"punctuation dropped", "Help!", "help"},
		{"whitespace collapsed", "  Two   Words  ", "two words"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := n.NormalizeTitle(tt.title); got != tt.want {
				t.Errorf("NormalizeTitle(%q) = %q, want %q", tt.title, got, tt.want)
			}
		})
	}
}

func TestNormalizeArtist(t *testing.T) {
	n := NewNormalizer()

	tests := []struct {
		artist string
		want   string
	}{
		{"Simon and Garfunkel", "simon & garfunkel"},
		{"Beyoncé", "beyonce"},
		{"AC/DC", "ac dc"},
	}

	for _, tt := range tests {
		if got := n.NormalizeArtist(tt.artist); got != tt.want {
			t.Errorf("NormalizeArtist(%q) = %q, want %q", tt.artist, got, tt.want)
		}
	}
}

func TestCalculateSimilarity(t *testing.T) {
	n := NewNormalizer()

	tests := []struct {
		name string
		s1   string
		s2   string
		min  float64
		max  float64
	}{
		{"identical", "hello world", "hello world", 1.0, 1.0},
		{"empty", "", "something", 0.0, 0.0},
		{"close", "bohemian rhapsody", "bohemian rapsody", 0.9, 1.0},
		{"unrelated", "abcdef", "uvwxyz", 0.0, 0.2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := n.CalculateSimilarity(tt.s1, tt.s2)
			if got < tt.min || got > tt.max {
				t.Errorf("CalculateSimilarity(%q, %q) = %f, want in [%f, %f]",
					tt.s1, tt.s2, got, tt.min, tt.max)
			}
		})
	}
}
