package token

import (
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestIssueDecodeRoundTrip(t *testing.T) {
	ids := []string{
		"123e4567-e89b-42d3-a456-426614174000",
		"00000000-0000-4000-8000-000000000000",
		"ffffffff-ffff-4fff-bfff-ffffffffffff",
	}
	for i := 0; i < 10; i++ {
		ids = append(ids, uuid.NewString())
	}

	for _, id := range ids {
		got, err := Decode(Issue(id))
		if err != nil {
			t.Fatalf("Decode(Issue(%q)) returned error: %v", id, err)
		}
		if got != id {
			t.Fatalf("round trip mismatch: got %q want %q", got, id)
		}
	}
}

func TestDecodeRejectsMalformed(t *testing.T) {
	cases := map[string]string{
		"not base64":      "!!!not-base64!!!",
		"empty":           "",
		"plain text":      Issue("hello world"),
		"missing hyphens": Issue("123e4567e89b42d3a456426614174000"),
		"version 1":       Issue("123e4567-e89b-12d3-a456-426614174000"),
		"bad variant":     Issue("123e4567-e89b-42d3-c456-426614174000"),
		"truncated":       Issue("123e4567-e89b-42d3-a456-4266141740"),
		"non-hex":         Issue("123e4567-e89b-42d3-a456-42661417400g"),
	}

	for name, tok := range cases {
		if _, err := Decode(tok); !errors.Is(err, ErrMalformedToken) {
			t.Errorf("%s: expected ErrMalformedToken, got %v", name, err)
		}
	}
}

// A token is 48 base64 characters with no padding, so every single-character
// substitution either breaks decoding, breaks the subject shape, or yields a
// different (well-formed) subject that a store lookup would reject. No
// padding-neutral substitutions exist for 36-byte inputs.
func TestDecodeSingleCharacterMutation(t *testing.T) {
	const id = "123e4567-e89b-42d3-a456-426614174000"
	tok := Issue(id)
	if len(tok) != 48 {
		t.Fatalf("expected 48-char token, got %d", len(tok))
	}

	const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"
	for i := 0; i < len(tok); i++ {
		for _, c := range alphabet {
			if byte(c) == tok[i] {
				continue
			}
			mutated := tok[:i] + string(c) + tok[i+1:]
			got, err := Decode(mutated)
			if err == nil && got == id {
				t.Fatalf("mutation at %d (%c) still decodes to the original subject", i, c)
			}
		}
	}
}
