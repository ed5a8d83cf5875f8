package services

import (
	"strings"
	"testing"
)

func TestShortURL(t *testing.T) {
	tests := []struct {
		origin   string
		name     string
		isPublic bool
		want     string
	}{
		{"http://localhost:4000", "docs", false, "http://localhost:4000/r/docs"},
		{"http://localhost:4000/", "docs", true, "http://localhost:4000/u/docs"},
		{"https://l.example.com", "my link", false, "https://l.example.com/r/my%20link"},
		{"https://l.example.com", "a/b", true, "https://l.example.com/u/a%2Fb"},
	}

	for _, tt := range tests {
		if got := ShortURL(tt.origin, tt.name, tt.isPublic); got != tt.want {
			t.Errorf("ShortURL(%q, %q, %v) = %q, want %q", tt.origin, tt.name, tt.isPublic, got, tt.want)
		}
	}
}

func TestSuggestName(t *testing.T) {
	tests := map[string]string{
		"Go Documentation":         "go-documentation",
		"  --Hello, World!--  ":    "hello-world",
		"Привет мир":               "",
		"v1.2 Release Notes (RC)":  "v1-2-release-notes-rc",
		strings.Repeat("ab ", 30): strings.Repeat("ab-", 16) + "ab",
	}

	for title, want := range tests {
		if got := SuggestName(title); got != want {
			t.Errorf("SuggestName(%q) = %q, want %q", title, got, want)
		}
	}
}
