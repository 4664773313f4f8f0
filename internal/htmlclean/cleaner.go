// Package htmlclean normalizes portal markup: it strips scripts, styles,
// hidden nodes and comments, collapses whitespace, and degrades to a plain
// whitespace-collapse when structured parsing is impossible.
package htmlclean

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
)

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	newlinesRe   = regexp.MustCompile(`\n{3,}`)

	textPolicy = bluemonday.StrictPolicy()
)

// strippedElements are removed wholesale, including their content.
var strippedElements = map[string]bool{
	"script": true,
	"style":  true,
	"meta":   true,
	"link":   true,
	"iframe": true,
}

// voidElements may stay in the tree even when they carry no text.
var voidElements = map[string]bool{
	"br":    true,
	"hr":    true,
	"img":   true,
	"input": true,
	"meta":  true,
}

// preservedText elements keep their whitespace untouched.
var preservedText = map[string]bool{
	"pre":  true,
	"code": true,
}

// Clean normalizes an HTML fragment. It never fails: when the markup cannot
// be parsed into a tree the raw text is whitespace-collapsed instead. Clean
// is idempotent.
func Clean(rawHTML string) string {
	if strings.TrimSpace(rawHTML) == "" {
		return ""
	}

	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return CollapseWhitespace(rawHTML)
	}

	cleanNode(doc)

	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return CollapseWhitespace(rawHTML)
	}

	out := newlinesRe.ReplaceAllString(buf.String(), "\n\n")
	return strings.TrimSpace(out)
}

// CollapseWhitespace reduces every whitespace run to a single space.
func CollapseWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// ExtractText returns the visible text of an HTML fragment with tags,
// scripts and styles removed and whitespace collapsed.
func ExtractText(rawHTML string) string {
	if rawHTML == "" {
		return ""
	}
	stripped := textPolicy.Sanitize(rawHTML)
	return CollapseWhitespace(html.UnescapeString(stripped))
}

// cleanNode prunes and normalizes the subtree rooted at n. Children are
// processed post-order so emptied parents cascade out in a single pass.
func cleanNode(n *html.Node) {
	var next *html.Node
	for c := n.FirstChild; c != nil; c = next {
		next = c.NextSibling

		switch c.Type {
		case html.CommentNode:
			n.RemoveChild(c)
			continue
		case html.ElementNode:
			if strippedElements[c.Data] || isHidden(c) {
				n.RemoveChild(c)
				continue
			}
			cleanNode(c)
			if removableWhenEmpty(c) && !hasContent(c) {
				n.RemoveChild(c)
			}
		case html.TextNode:
			if !preservedText[parentTag(c)] {
				c.Data = whitespaceRe.ReplaceAllString(strings.TrimSpace(c.Data), " ")
				if c.Data == "" {
					n.RemoveChild(c)
				}
			}
		}
	}
}

// isHidden reports whether an element is inline-styled invisible.
func isHidden(n *html.Node) bool {
	for _, attr := range n.Attr {
		if attr.Key != "style" {
			continue
		}
		style := strings.ReplaceAll(strings.ToLower(attr.Val), " ", "")
		if strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden") {
			return true
		}
	}
	return false
}

// removableWhenEmpty reports whether an empty element carries no meaning.
// Document scaffolding stays so re-cleaning parses identically.
func removableWhenEmpty(n *html.Node) bool {
	switch n.Data {
	case "html", "head", "body":
		return false
	}
	return !voidElements[n.Data]
}

// hasContent reports whether an element holds any text, image, or void
// descendant worth keeping.
func hasContent(n *html.Node) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.TextNode:
			if strings.TrimSpace(c.Data) != "" {
				return true
			}
		case html.ElementNode:
			if c.Data == "img" || voidElements[c.Data] || hasContent(c) {
				return true
			}
		}
	}
	return false
}

func parentTag(n *html.Node) string {
	if n.Parent != nil && n.Parent.Type == html.ElementNode {
		return n.Parent.Data
	}
	return ""
}
