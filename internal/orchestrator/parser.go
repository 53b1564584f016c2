package orchestrator

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/shubhsaxena/search-layout/internal/models"
)

type QueryParser struct {
	stopWords map[string]bool
	maxLen    int
}

func NewQueryParser() *QueryParser {
	stops := map[string]bool{
		"the": true, "a": true, "an": true, "and": true, "or": true,
		"but": true, "in": true, "on": true, "at": true, "to": true,
		"for": true, "of": true, "with": true, "by": true, "is": true,
		"it": true, "this": true, "that": true, "are": true, "was": true,
		"be": true, "has": true, "had": true, "do": true, "does": true,
		"i": true, "my": true, "me": true,
	}
	return &QueryParser{stopWords: stops, maxLen: 512}
}

var multiSpacePattern = regexp.MustCompile(`\s+`)

// Parse derives the classifier input and the analytics forms of rawQuery.
// Lowered is the raw query lower-cased and nothing else, so keyword matching
// sees exactly what the user typed.
func (qp *QueryParser) Parse(rawQuery string) *models.ParsedQuery {
	parsed := &models.ParsedQuery{
		Original: rawQuery,
		Lowered:  strings.ToLower(rawQuery),
	}

	normalized := multiSpacePattern.ReplaceAllString(parsed.Lowered, " ")
	normalized = strings.TrimSpace(normalized)
	if len(normalized) > qp.maxLen {
		normalized = truncateUTF8(normalized, qp.maxLen)
	}
	parsed.Normalized = normalized
	if normalized == "" {
		return parsed
	}

	var tokens []string
	for _, w := range strings.Fields(normalized) {
		cleaned := strings.TrimFunc(w, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if cleaned != "" && !qp.stopWords[cleaned] {
			tokens = append(tokens, cleaned)
		}
	}
	parsed.Tokens = tokens

	return parsed
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune.
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func utf8RuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
