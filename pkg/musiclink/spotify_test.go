package musiclink

import (
	"context"
	"errors"
	"testing"
)

func TestSpotifyResolverCanResolve(t *testing.T) {
	r := NewSpotifyResolver()

	tests := []struct {
		url  string
		want bool
	}{
		{"https://open.spotify.com/track/4uLU6hMCjMI75M1A2tKUQC", true},
		{"https://open.spotify.com/intl-de/track/4uLU6hMCjMI75M1A2tKUQC", true},
		{"https://spotify.com/track/4uLU6hMCjMI75M1A2tKUQC", true},
		{"spotify:track:4uLU6hMCjMI75M1A2tKUQC", true},
		{"https://open.spotify.com/playlist/37i9dQZF1DXcBWIGoYBM5M", false},
		{"https://open.spotify.com/album/1DFixLWuPkv3KT3TnV35m3", false},
		{"https://youtu.be/dQw4w9WgXcQ", false},
		{"not a url", false},
	}

	for _, tt := range tests {
		if got := r.CanResolve(tt.url); got != tt.want {
			t.Errorf("CanResolve(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}
}

func TestSpotifyResolverResolve(t *testing.T) {
	r := NewSpotifyResolver()

	tests := []struct {
		name    string
		url     string
		want    string
		wantErr bool
	}{
		{
			name: "track url",
			url:  "https://open.spotify.com/track/4uLU6hMCjMI75M1A2tKUQC",
			want: "4uLU6hMCjMI75M1A2tKUQC",
		},
		{
			name: "locale segment",
			url:  "https://open.spotify.com/intl-de/track/4uLU6hMCjMI75M1A2tKUQC",
			want: "4uLU6hMCjMI75M1A2tKUQC",
		},
		{
			name: "query params ignored",
			url:  "https://open.spotify.com/track/4uLU6hMCjMI75M1A2tKUQC?si=xyz",
			want: "4uLU6hMCjMI75M1A2tKUQC",
		},
		{
			name: "uri form",
			url:  "spotify:track:4uLU6hMCjMI75M1A2tKUQC",
			want: "4uLU6hMCjMI75M1A2tKUQC",
		},
		{
			name:    "id too short",
			url:     "https://open.spotify.com/track/tooshort",
			wantErr: true,
		},
		{
			name:    "id too long",
			url:     "https://open.spotify.com/track/4uLU6hMCjMI75M1A2tKUQCextra",
			wantErr: true,
		},
		{
			name:    "no track segment",
			url:     "https://open.spotify.com/playlist/37i9dQZF1DXcBWIGoYBM5M",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Resolve(context.Background(), tt.url)

			if tt.wantErr {
				if !errors.Is(err, ErrUnresolvable) {
					t.Errorf("expected ErrUnresolvable, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve(%q) failed: %v", tt.url, err)
			}
			if got != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.url, got, tt.want)
			}
		})
	}
}

func TestParseSpotifyTrackID(t *testing.T) {
	id, ok := ParseSpotifyTrackID("https://open.spotify.com/track/4uLU6hMCjMI75M1A2tKUQC")
	if !ok || id != "4uLU6hMCjMI75M1A2tKUQC" {
		t.Errorf("got (%q, %v)", id, ok)
	}

	if _, ok := ParseSpotifyTrackID("https://example.com/other"); ok {
		t.Error("non-spotify text should not parse")
	}
}
