package main

import "testing"

func TestNormalizePasteText(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"a\r\nb", "a\nb"},
		{"a\rb", "a\nb"},
		{"a\nb\r", "a\nb\n"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := string(normalizePasteText([]byte(tt.in))); got != tt.want {
			t.Errorf("normalizePasteText(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
	if got := capPasteText([]byte("abcdef"), 4); string(got) != "abcd" {
		t.Fatalf("capPasteText = %q", got)
	}
}
