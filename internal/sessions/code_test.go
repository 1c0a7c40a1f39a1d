package sessions

import (
	"strings"
	"testing"
)

func TestGenerateJoinCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		code, err := GenerateJoinCode(6)
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if len(code) != 6 {
			t.Fatalf("expected 6 characters, got %q", code)
		}
		for _, ch := range code {
			if !strings.ContainsRune(codeAlphabet, ch) {
				t.Fatalf("character %q outside alphabet", ch)
			}
		}
		seen[code] = true
	}
	if len(seen) < 2 {
		t.Fatal("codes should not repeat constantly")
	}
}

func TestGenerateJoinCodeDefaultsLength(t *testing.T) {
	code, err := GenerateJoinCode(0)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(code) != 6 {
		t.Fatalf("expected default length 6, got %d", len(code))
	}
}

func TestNormalizeJoinCode(t *testing.T) {
	if got := NormalizeJoinCode("  ab3xyz "); got != "AB3XYZ" {
		t.Fatalf("unexpected normalization %q", got)
	}
}
