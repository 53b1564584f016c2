package orchestrator

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestQueryParser_Parse_EmptyQuery(t *testing.T) {
	qp := NewQueryParser()
	parsed := qp.Parse("")

	if parsed.Original != "" || parsed.Lowered != "" {
		t.Errorf("expected empty forms, got %+v", parsed)
	}
	if parsed.Normalized != "" {
		t.Errorf("expected empty normalized, got %q", parsed.Normalized)
	}
	if len(parsed.Tokens) != 0 {
		t.Errorf("expected no tokens, got %v", parsed.Tokens)
	}
}

func TestQueryParser_Parse_WhitespaceOnly(t *testing.T) {
	qp := NewQueryParser()
	parsed := qp.Parse("   \t ")

	if parsed.Normalized != "" {
		t.Errorf("expected empty normalized, got %q", parsed.Normalized)
	}
	if len(parsed.Tokens) != 0 {
		t.Errorf("expected no tokens, got %v", parsed.Tokens)
	}
}

func TestQueryParser_Parse_SimpleQuery(t *testing.T) {
	qp := NewQueryParser()
	parsed := qp.Parse("Sourdough Recipe")

	if parsed.Original != "Sourdough Recipe" {
		t.Errorf("expected original preserved, got %q", parsed.Original)
	}
	if parsed.Lowered != "sourdough recipe" {
		t.Errorf("expected lowered 'sourdough recipe', got %q", parsed.Lowered)
	}
	if len(parsed.Tokens) != 2 || parsed.Tokens[0] != "sourdough" || parsed.Tokens[1] != "recipe" {
		t.Errorf("expected [sourdough recipe], got %v", parsed.Tokens)
	}
}

func TestQueryParser_Parse_LoweredKeepsSpacing(t *testing.T) {
	qp := NewQueryParser()
	parsed := qp.Parse("  Near   Me ")

	// The classifier matches on Lowered, so it must not be reshaped.
	if parsed.Lowered != "  near   me " {
		t.Errorf("expected lowered to keep raw spacing, got %q", parsed.Lowered)
	}
	if parsed.Normalized != "near me" {
		t.Errorf("expected normalized 'near me', got %q", parsed.Normalized)
	}
}

func TestQueryParser_Parse_StopWordRemoval(t *testing.T) {
	qp := NewQueryParser()
	parsed := qp.Parse("what to wear to a wedding")

	for _, tok := range parsed.Tokens {
		if tok == "to" || tok == "a" {
			t.Errorf("stop word %q should be removed, got %v", tok, parsed.Tokens)
		}
	}
	if len(parsed.Tokens) != 3 {
		t.Errorf("expected [what wear wedding], got %v", parsed.Tokens)
	}
}

func TestQueryParser_Parse_AllStopWords(t *testing.T) {
	qp := NewQueryParser()
	parsed := qp.Parse("is it the")

	if len(parsed.Tokens) != 0 {
		t.Errorf("expected no tokens, got %v", parsed.Tokens)
	}
	if parsed.Normalized != "is it the" {
		t.Errorf("normalized should keep stop words, got %q", parsed.Normalized)
	}
}

func TestQueryParser_Parse_PunctuationTrimming(t *testing.T) {
	qp := NewQueryParser()
	parsed := qp.Parse("Is LOL passive-aggressive?!")

	want := []string{"lol", "passive-aggressive"}
	if len(parsed.Tokens) != len(want) {
		t.Fatalf("expected %v, got %v", want, parsed.Tokens)
	}
	for i := range want {
		if parsed.Tokens[i] != want[i] {
			t.Errorf("token %d: expected %q, got %q", i, want[i], parsed.Tokens[i])
		}
	}
}

func TestQueryParser_Parse_NonASCII(t *testing.T) {
	qp := NewQueryParser()
	parsed := qp.Parse("Café CRÈME 你好")

	if parsed.Lowered != "café crème 你好" {
		t.Errorf("unexpected lowered %q", parsed.Lowered)
	}
	if len(parsed.Tokens) != 3 {
		t.Errorf("expected 3 tokens, got %v", parsed.Tokens)
	}
}

func TestQueryParser_Parse_SymbolsOnly(t *testing.T) {
	qp := NewQueryParser()
	parsed := qp.Parse("!!! ???")

	if parsed.Normalized != "!!! ???" {
		t.Errorf("unexpected normalized %q", parsed.Normalized)
	}
	if len(parsed.Tokens) != 0 {
		t.Errorf("expected no tokens, got %v", parsed.Tokens)
	}
}

func TestQueryParser_Parse_TruncatesLongQueries(t *testing.T) {
	qp := NewQueryParser()
	raw := strings.Repeat("é", 400) // 800 bytes
	parsed := qp.Parse(raw)

	if len(parsed.Normalized) > 512 {
		t.Errorf("expected normalized capped at 512 bytes, got %d", len(parsed.Normalized))
	}
	if !utf8.ValidString(parsed.Normalized) {
		t.Error("truncation split a rune")
	}
	if parsed.Lowered != strings.ToLower(raw) {
		t.Error("lowered form must not be truncated")
	}
}

func TestTruncateUTF8(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"hello", 10, "hello"},
		{"hello", 3, "hel"},
		{"héllo", 2, "h"},
		{"héllo", 3, "hé"},
		{"", 5, ""},
	}
	for _, tt := range tests {
		if got := truncateUTF8(tt.in, tt.n); got != tt.want {
			t.Errorf("truncateUTF8(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}
