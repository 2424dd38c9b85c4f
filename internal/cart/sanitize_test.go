package cart

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSanitizeText(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		in    string
		limit int
		want  string
	}{
		{name: "empty", in: "", limit: 10, want: ""},
		{name: "markup", in: "<b>extra</b> <script>alert(1)</script>sauce", limit: 0, want: "extra sauce"},
		{name: "entities", in: "salt &amp; pepper", limit: 0, want: "salt & pepper"},
		{name: "newlines", in: "no onions\n\n• Fake × 9\r\nthanks", limit: 0, want: "no onions Fake × 9 thanks"},
		{name: "emphasis", in: "*bold* _it_ ~x~ `code`", limit: 0, want: "bold it x code"},
		{name: "bidi override", in: "abc\u202edef\u200b", limit: 0, want: "abcdef"},
		{name: "arabic joiners kept", in: "بدون\u200cبصل", limit: 0, want: "بدون\u200cبصل"},
		{name: "limit in runes", in: "حار جدا جدا", limit: 3, want: "حار"},
		{name: "escaped tag", in: "&lt;b&gt;Kubba", limit: 0, want: "Kubba"},
		{name: "escaped script", in: "&lt;script&gt;alert(1)&lt;/script&gt; hi", limit: 0, want: "hi"},
		{name: "bare less-than", in: "x<y z", limit: 0, want: "x<y z"},
		{name: "double escaped", in: "&amp;lt;b&amp;gt;x", limit: 0, want: "x"},
		{name: "nested brackets", in: "<<b>b>", limit: 0, want: ""},
		{name: "comparison kept", in: "spicy > mild & 2<3", limit: 0, want: "spicy > mild & 2<3"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := SanitizeText(tc.in, tc.limit)
			if got != tc.want {
				t.Fatalf("SanitizeText(%q) = %q, want %q", tc.in, got, tc.want)
			}
			if again := SanitizeText(got, tc.limit); again != got {
				t.Fatalf("not idempotent: %q -> %q", got, again)
			}
		})
	}
}

func TestSanitizeTextCapsLongInput(t *testing.T) {
	t.Parallel()

	got := SanitizeText(strings.Repeat("ب", 1000), MaxItemNotesLen)
	if n := utf8.RuneCountInString(got); n != MaxItemNotesLen {
		t.Fatalf("expected %d runes, got %d", MaxItemNotesLen, n)
	}
}
