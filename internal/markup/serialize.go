package markup

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ErrNoDocumentElement is returned when a parsed document has no <html> element.
var ErrNoDocumentElement = errors.New("document has no html element")

// Serialize parses markup as HTML and renders it back as the doctype (when
// present), a newline, and the outer markup of the <html> element.
//
// The parser repairs the tree the same way a browser does, so messages about
// unclosed or misnested tags may disappear and positions refer to the
// serialized text rather than the original file.
func Serialize(markup string) (string, error) {
	doc, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return "", fmt.Errorf("failed to parse markup: %w", err)
	}

	var doctype, root *html.Node
	for c := doc.FirstChild; c != nil; c = c.NextSibling {
		switch {
		case c.Type == html.DoctypeNode && doctype == nil:
			doctype = c
		case c.Type == html.ElementNode && c.DataAtom == atom.Html && root == nil:
			root = c
		}
	}
	if root == nil {
		return "", ErrNoDocumentElement
	}

	var b strings.Builder
	if doctype != nil {
		if err := html.Render(&b, doctype); err != nil {
			return "", fmt.Errorf("failed to render doctype: %w", err)
		}
	}
	b.WriteString("\n")
	if err := html.Render(&b, root); err != nil {
		return "", fmt.Errorf("failed to render document: %w", err)
	}
	return b.String(), nil
}

// Title returns the trimmed text of the first <title> element, or "".
func Title(markup string) string {
	tokenizer := html.NewTokenizer(strings.NewReader(markup))
	inTitle := false
	var b strings.Builder
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return strings.Join(strings.Fields(b.String()), " ")
		case html.StartTagToken:
			name, _ := tokenizer.TagName()
			if atom.Lookup(name) == atom.Title {
				inTitle = true
			}
		case html.EndTagToken:
			name, _ := tokenizer.TagName()
			if inTitle && atom.Lookup(name) == atom.Title {
				return strings.Join(strings.Fields(b.String()), " ")
			}
		case html.TextToken:
			if inTitle {
				b.Write(tokenizer.Text())
			}
		}
	}
}
