package cart

import (
	"html"
	"regexp"
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/unicode/norm"
)

var strictPolicy = bluemonday.StrictPolicy()

// markupPattern matches complete tags and comments. A "<" that does not open one is
// plain text and must survive sanitising.
var markupPattern = regexp.MustCompile(`<(?:!--[\s\S]*?-->|[/!?]?[A-Za-z][^<>]*>)`)

// maxSanitizePasses bounds the fixed-point loop; every pass that changes the text
// shortens it or only rewrites whitespace.
const maxSanitizePasses = 8

// SanitizeText turns customer free text into a single safe line: entities are decoded,
// markup, control and bidi-override characters, markdown emphasis (* _ ~ `) and bullet
// glyphs are removed, whitespace runs (newlines included) collapse to one space, and the
// result is capped at limit runes. The passes repeat until the text stops changing, so
// SanitizeText(SanitizeText(s)) == SanitizeText(s).
func SanitizeText(s string, limit int) string {
	for i := 0; i < maxSanitizePasses; i++ {
		next := capRunes(sanitizePass(s), limit)
		if next == s {
			break
		}
		s = next
	}
	return s
}

func sanitizePass(s string) string {
	if s == "" {
		return ""
	}
	s = html.UnescapeString(norm.NFC.String(s))

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '\n' || r == '\r' || r == '\t':
			b.WriteRune(' ')
		case unicode.IsControl(r):
		case unicode.Is(unicode.Cf, r) && r != '\u200c' && r != '\u200d':
		case strings.ContainsRune("*_~`•", r):
		default:
			b.WriteRune(r)
		}
	}
	s = stripMarkup(b.String())
	return strings.Join(strings.Fields(s), " ")
}

// stripMarkup removes tags (and script/style bodies) while keeping every text character,
// including a bare "<" or "&".
func stripMarkup(s string) string {
	if !strings.ContainsAny(s, "<>&") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 16)
	last := 0
	for _, m := range markupPattern.FindAllStringIndex(s, -1) {
		b.WriteString(html.EscapeString(s[last:m[0]]))
		b.WriteString(s[m[0]:m[1]])
		last = m[1]
	}
	b.WriteString(html.EscapeString(s[last:]))
	return html.UnescapeString(strictPolicy.Sanitize(b.String()))
}

func capRunes(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return strings.TrimSpace(string(runes[:limit]))
}
