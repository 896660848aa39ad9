package textutil

import "testing"

func TestSanitizeFileName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  demo.mp3 ", "demo.mp3"},
		{"a/b\\c.wav", "a-b-c.wav"},
		{"what?.flac", "what.flac"},
		{"tab\tbeat.mp3", "tabbeat.mp3"},
		{"", ""},
		// "e" + combining acute accent composes to a single rune under NFC.
		{"café.mp3", "café.mp3"},
	}
	for _, tc := range tests {
		if got := SanitizeFileName(tc.in); got != tc.want {
			t.Fatalf("SanitizeFileName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestIsSlug(t *testing.T) {
	valid := []string{"rap", "afro", "rnb", "lo-fi", "trap_2"}
	for _, v := range valid {
		if !IsSlug(v) {
			t.Fatalf("expected %q to be a slug", v)
		}
	}
	invalid := []string{"", "Rap", "-rap", "_x", "r&b", "a b", "../x", ".hidden"}
	for _, v := range invalid {
		if IsSlug(v) {
			t.Fatalf("expected %q to be rejected", v)
		}
	}
}
