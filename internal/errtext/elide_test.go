package errtext

import (
	"strings"
	"testing"
)

func TestElideShortStringUnchanged(t *testing.T) {
	if got := Elide("boom", DBLimit); got != "boom" {
		t.Fatalf("want unchanged, got %q", got)
	}
}

func TestElideKeepsPrefixAndSuffix(t *testing.T) {
	s := strings.Repeat("a", 200) + "MIDDLE" + strings.Repeat("z", 200)
	got := Elide(s, DBLimit)
	if len([]rune(got)) > DBLimit {
		t.Fatalf("elided string exceeds limit: %d", len(got))
	}
	if !strings.HasPrefix(got, "aaa") || !strings.HasSuffix(got, "zzz") {
		t.Fatalf("want prefix and suffix preserved, got %q", got)
	}
	if !strings.Contains(got, " ... ") {
		t.Fatalf("want middle ellipsis, got %q", got)
	}
}
