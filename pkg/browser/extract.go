package browser

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// DefaultExtractMaxLength bounds how much page text a single extraction
// returns. Pages routinely carry far more text than a model turn can use.
const DefaultExtractMaxLength = 20000

// extractReadableText parses rawHTML and reduces it to readable text:
// scripts, styles, and other non-content elements are dropped, block
// elements become line breaks, and links keep their destination inline.
// Output is truncated at maxLength characters with a trailing notice.
func extractReadableText(rawHTML string, maxLength int) (string, error) {
	if maxLength <= 0 {
		maxLength = DefaultExtractMaxLength
	}

	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	var builder strings.Builder
	if title := documentTitle(doc); title != "" {
		builder.WriteString(title)
		builder.WriteString("\n\n")
	}

	renderText(doc, &builder)

	text := collapseBlankLines(builder.String())
	if len(text) > maxLength {
		text = text[:maxLength] +
			fmt.Sprintf("\n\n[Content truncated: %d of %d characters shown]", maxLength, len(text))
	}
	return text, nil
}

// renderText walks the tree appending text content, inserting newlines
// around block elements.
func renderText(n *html.Node, builder *strings.Builder) {
	switch n.Type {
	case html.CommentNode:
		return
	case html.TextNode:
		text := strings.TrimSpace(n.Data)
		if text != "" {
			builder.WriteString(text)
			builder.WriteString(" ")
		}
		return
	case html.ElementNode:
		tag := strings.ToLower(n.Data)
		if nonContentElement(tag) {
			return
		}
		if blockElement(tag) {
			builder.WriteString("\n")
		}
		if tag == "a" {
			renderLink(n, builder)
			return
		}
		if tag == "li" {
			builder.WriteString("- ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			renderText(c, builder)
		}
		if blockElement(tag) {
			builder.WriteString("\n")
		}
		return
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		renderText(c, builder)
	}
}

// renderLink writes the link's text followed by its destination, so the
// model can navigate to what it reads about.
func renderLink(n *html.Node, builder *strings.Builder) {
	var href string
	for _, attr := range n.Attr {
		if strings.ToLower(attr.Key) == "href" {
			href = attr.Val
			break
		}
	}

	var inner strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		renderText(c, &inner)
	}
	text := strings.TrimSpace(inner.String())

	switch {
	case text == "" && href == "":
		return
	case href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:"):
		builder.WriteString(text)
		builder.WriteString(" ")
	case text == "":
		builder.WriteString(href)
		builder.WriteString(" ")
	default:
		fmt.Fprintf(builder, "%s (%s) ", text, href)
	}
}

// nonContentElement reports elements whose subtree carries no readable
// content.
func nonContentElement(tag string) bool {
	switch tag {
	case "script", "style", "noscript", "iframe", "embed", "object", "svg", "head", "template":
		return true
	}
	return false
}

// blockElement reports elements that should break the text flow.
func blockElement(tag string) bool {
	switch tag {
	case "div", "p", "section", "article", "header", "footer", "nav", "main",
		"aside", "h1", "h2", "h3", "h4", "h5", "h6", "ul", "ol", "li",
		"table", "tr", "td", "th", "form", "fieldset", "blockquote", "pre", "br":
		return true
	}
	return false
}

// documentTitle returns the contents of the first <title> element.
func documentTitle(doc *html.Node) string {
	var title string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if title != "" {
			return
		}
		if n.Type == html.ElementNode && n.Data == "title" {
			if n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
				title = strings.TrimSpace(n.FirstChild.Data)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return title
}

// collapseBlankLines squeezes runs of blank lines down to one and trims
// trailing whitespace from each line.
func collapseBlankLines(s string) string {
	lines := strings.Split(s, "\n")
	var out []string
	blank := false
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if strings.TrimSpace(line) == "" {
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		blank = false
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
