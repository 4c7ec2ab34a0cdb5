package textutil

import (
	"strings"
	"testing"
)

func TestSanitizeFileName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Café del Mar", "Cafe del Mar"},
		{"AC/DC: Back in Black?", "AC-DC- Back in Black"},
		{"  <Track>\t1 ", "Track1"},
		{"..", ""},
		{"", ""},
		{"Über*Song", "Uber-Song"},
	}
	for _, tc := range tests {
		if got := SanitizeFileName(tc.in); got != tc.want {
			t.Fatalf("SanitizeFileName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSanitizeFileNameTruncates(t *testing.T) {
	got := SanitizeFileName(strings.Repeat("é", 200))
	if len(got) > maxFileNameBytes {
		t.Fatalf("expected at most %d bytes, got %d", maxFileNameBytes, len(got))
	}
	if got != strings.Repeat("e", maxFileNameBytes) {
		t.Fatalf("unexpected truncated name %q", got)
	}
}
