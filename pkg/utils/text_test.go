package utils

import (
	"testing"
)

func TestTruncate(t *testing.T) {
	if Truncate("hello", 10) != "hello" {
		t.Error("short string unchanged")
	}
	if Truncate("hello world", 5) != "hello..." {
		t.Errorf("got %s", Truncate("hello world", 5))
	}
	if Truncate("x", 0) != "x" {
		t.Error("maxLen 0 returns as-is")
	}
	if got := Truncate("धारा 420", 4); got != "धारा..." {
		t.Errorf("multibyte truncate: got %q", got)
	}
}

func TestTruncateRunes(t *testing.T) {
	if got := TruncateRunes("abcdef", 3); got != "abc" {
		t.Errorf("got %q", got)
	}
	if got := TruncateRunes("abc", 0); got != "abc" {
		t.Errorf("maxLen 0: got %q", got)
	}
}

func TestCollapseBlankLines(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"a\n\n\nb", "a\nb"},
		{"a\n\nb\n\nc", "a\nb\nc"},
		{"  a\r\n\r\nb  ", "a\nb"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := CollapseBlankLines(tt.in); got != tt.want {
			t.Errorf("CollapseBlankLines(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNonEmptyLines(t *testing.T) {
	got := NonEmptyLines("  one \n\n two\n   \nthree")
	if len(got) != 3 || got[0] != "one" || got[1] != "two" || got[2] != "three" {
		t.Errorf("got %q", got)
	}
	if len(NonEmptyLines("\n \n")) != 0 {
		t.Error("blank input should yield no lines")
	}
}
