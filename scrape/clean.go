package scrape

import (
	"bytes"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Page is the readable content of a fetched document.
type Page struct {
	Text   string
	Images []string
}

var droppedElements = map[atom.Atom]bool{
	atom.Script: true,
	atom.Style:  true,
	atom.Header: true,
	atom.Footer: true,
	atom.Nav:    true,
	atom.Aside:  true,
}

// Clean reduces an HTML document to its visible text, one trimmed line per
// text block. Image sources are collected from the whole document, including
// the parts that are dropped from the text.
func Clean(doc []byte) (*Page, error) {
	root, err := html.Parse(bytes.NewReader(doc))
	if err != nil {
		return nil, errors.Wrap(err, "parsing HTML")
	}

	page := &Page{Images: []string{}}
	collectImages(root, page)

	var chunks []string
	collectText(root, &chunks)

	page.Text = joinLines(strings.Join(chunks, "\n"))
	return page, nil
}

func collectImages(n *html.Node, page *Page) {
	if n.Type == html.ElementNode && n.DataAtom == atom.Img {
		for _, attr := range n.Attr {
			if attr.Key == "src" && attr.Val != "" {
				page.Images = append(page.Images, attr.Val)
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectImages(c, page)
	}
}

func collectText(n *html.Node, chunks *[]string) {
	switch n.Type {
	case html.ElementNode:
		if droppedElements[n.DataAtom] {
			return
		}
	case html.TextNode:
		*chunks = append(*chunks, n.Data)
		return
	case html.CommentNode, html.DoctypeNode:
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, chunks)
	}
}

func joinLines(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}
