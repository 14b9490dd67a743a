package session

import (
	"errors"
	"strings"
	"testing"
)

func TestQualify(t *testing.T) {
	if got := Qualify("Ann", "u-1"); got != "u-1::Ann" {
		t.Errorf("Qualify = %q, want u-1::Ann", got)
	}
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"u-1::Ann", "Ann"},
		{"Ann", "Ann"},
		{"u-1::Ann::Lee", "Ann::Lee"},
		{"u-1::", "u-1::"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := DisplayName(tt.in); got != tt.want {
				t.Errorf("DisplayName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeDisplayName(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr error
	}{
		{"plain", "Ann", "Ann", nil},
		{"trimmed", "  Ann \n", "Ann", nil},
		{"control runes dropped", "An\x07n", "Ann", nil},
		{"nfc", "Café", "Café", nil},
		{"truncated", strings.Repeat("a", 30), strings.Repeat("a", MaxDisplayNameLen), nil},
		{"emoji counted by rune", strings.Repeat("🎉", 25), strings.Repeat("🎉", MaxDisplayNameLen), nil},
		{"empty", "   ", "", ErrEmptyDisplayName},
		{"only control", "\x01\x02", "", ErrEmptyDisplayName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeDisplayName(tt.in)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("NormalizeDisplayName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestBackoffDelay(t *testing.T) {
	base, maxDelay := DefaultConfig().BaseDelay, DefaultConfig().MaxDelay
	tests := []struct {
		attempt int
		want    string
	}{
		{0, "1s"},
		{1, "1s"},
		{2, "2s"},
		{3, "4s"},
		{4, "5s"},
		{40, "5s"},
		{400, "5s"},
	}

	for _, tt := range tests {
		if got := backoffDelay(tt.attempt, base, maxDelay).String(); got != tt.want {
			t.Errorf("backoffDelay(%d) = %s, want %s", tt.attempt, got, tt.want)
		}
	}
}
