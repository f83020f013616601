package normalize

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// StripHTML removes every markup tag from fragment and collapses runs of
// whitespace into a single space. Block-level tags and line breaks become a
// space; inline tags such as <b> or <span> are removed without one, so
// "Tot<i>al</i>" stays "Total". Character references are decoded ("AT&amp;T"
// reads "AT&T"). Script and style bodies are dropped along with their tags.
func StripHTML(fragment string) string {
	z := html.NewTokenizer(strings.NewReader(fragment))
	var b strings.Builder
	skip := 0
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			// io.EOF or malformed input; either way we keep what was read.
			return CollapseWhitespace(b.String())
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			a := atom.Lookup(name)
			if a == atom.Script || a == atom.Style {
				switch {
				case tt == html.StartTagToken:
					skip++
				case tt == html.EndTagToken && skip > 0:
					skip--
				}
			}
			if breaksText(a) {
				b.WriteByte(' ')
			}
		}
	}
}

// breaksText reports whether a tag separates the text on either side of it.
func breaksText(a atom.Atom) bool {
	switch a {
	case atom.Script, atom.Style, atom.Html, atom.Head, atom.Body, atom.Title,
		atom.P, atom.Div, atom.Br, atom.Hr, atom.Pre, atom.Blockquote, atom.Address,
		atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6,
		atom.Ul, atom.Ol, atom.Li, atom.Dl, atom.Dt, atom.Dd,
		atom.Table, atom.Caption, atom.Thead, atom.Tbody, atom.Tfoot, atom.Tr, atom.Td, atom.Th,
		atom.Section, atom.Article, atom.Header, atom.Footer, atom.Nav, atom.Aside, atom.Main,
		atom.Figure, atom.Figcaption, atom.Form, atom.Fieldset, atom.Center:
		return true
	}
	return false
}

// CollapseWhitespace replaces every run of whitespace with one space and trims
// the ends.
func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
