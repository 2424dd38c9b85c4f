package badge

import (
	"bytes"
	"fmt"
	"io"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Rewrite parses an HTML document or fragment from r, syncs its badges to count and
// writes the result to w. Fragments stay fragments.
func Rewrite(w io.Writer, r io.Reader, count int) error {
	raw, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("badge: read: %w", err)
	}
	if isDocument(raw) {
		return rewriteDocument(w, raw, count)
	}
	return rewriteFragment(w, raw, count)
}

func rewriteDocument(w io.Writer, raw []byte, count int) error {
	root, err := html.Parse(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("badge: parse document: %w", err)
	}
	Sync(goquery.NewDocumentFromNode(root).Selection, count)
	return html.Render(w, root)
}

func rewriteFragment(w io.Writer, raw []byte, count int) error {
	context := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(bytes.NewReader(raw), context)
	if err != nil {
		return fmt.Errorf("badge: parse fragment: %w", err)
	}
	for _, n := range nodes {
		context.AppendChild(n)
	}
	Sync(goquery.NewDocumentFromNode(context).Selection, count)
	for c := context.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(w, c); err != nil {
			return err
		}
	}
	return nil
}

func isDocument(raw []byte) bool {
	head := bytes.ToLower(bytes.TrimSpace(raw))
	if len(head) > 64 {
		head = head[:64]
	}
	return bytes.HasPrefix(head, []byte("<!doctype")) || bytes.HasPrefix(head, []byte("<html"))
}
