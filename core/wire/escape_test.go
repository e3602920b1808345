/*
 * Copyright (c) 2024, NVIDIA CORPORATION. All rights reserved.
 */
package wire

import (
	"math/rand"
	"strings"
	"testing"
)

func TestEscapeUnescapeFixedCases(t *testing.T) {
	cases := []string{
		"",
		"plain",
		"a,b|c[d]e<f>g{h}i=j;k#l:m~n^o*p\\q",
		string(rune(0x01)) + string(rune(0x1f)) + "x",
		"^", "*", "\\",
	}
	for _, s := range cases {
		got := Unescape(Escape(s))
		if got != s {
			t.Fatalf("round-trip failed for %q: escaped=%q got=%q", s, Escape(s), got)
		}
	}
}

func TestEscapeUnescapeRandom(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	alphabet := []byte("abc,|[]<>{}=;#:~^*\\\x01\x02\x1f def")
	for i := 0; i < 2000; i++ {
		n := r.Intn(20)
		var b strings.Builder
		for j := 0; j < n; j++ {
			b.WriteByte(alphabet[r.Intn(len(alphabet))])
		}
		s := b.String()
		if strings.ContainsRune(s, 0) {
			continue // property excludes NUL-containing strings
		}
		if got := Unescape(Escape(s)); got != s {
			t.Fatalf("round-trip failed for %q: got %q", s, got)
		}
	}
}

func TestEmptyAndNullMarkers(t *testing.T) {
	if Escape("") != "^" {
		t.Fatalf("empty string must escape to bare ^, got %q", Escape(""))
	}
	if EscapeOrNull(nil) != "*" {
		t.Fatalf("nil must escape to bare *, got %q", EscapeOrNull(nil))
	}
	v := "hi"
	if got := UnescapeOrNull(EscapeOrNull(&v)); got == nil || *got != "hi" {
		t.Fatalf("non-nil round-trip failed: %v", got)
	}
	if got := UnescapeOrNull("*"); got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
}
