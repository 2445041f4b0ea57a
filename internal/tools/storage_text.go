package tools

import (
	"fmt"
	"html"
	"strings"
	"unicode"

	xhtml "golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// storageToText flattens a Confluence storage-format body to readable plain
// text: block elements become line breaks, list items become "- " bullets,
// link targets collapse to their titles, and macro bodies keep their
// whitespace.
func storageToText(input string) (string, error) {
	// Storage format embeds plain text in CDATA blocks (code macros in
	// particular). Unwrap them so the HTML parser sees the payload.
	clean := unwrapCDATA(input)

	nodes, err := xhtml.ParseFragment(strings.NewReader(clean), &xhtml.Node{Type: xhtml.ElementNode, DataAtom: atom.Div, Data: "div"})
	if err != nil {
		return "", fmt.Errorf("failed to parse storage body: %w", err)
	}

	b := &textBuilder{}
	for _, n := range nodes {
		b.walk(n, false)
	}
	return strings.TrimSpace(b.finalize()), nil
}

func unwrapCDATA(s string) string {
	const open = "<![CDATA["
	const close = "]]>"
	for {
		i := strings.Index(s, open)
		if i < 0 {
			return s
		}
		j := strings.Index(s[i+len(open):], close)
		if j < 0 {
			return s
		}
		j = i + len(open) + j
		s = s[:i] + s[i+len(open):j] + s[j+len(close):]
	}
}

type textBuilder struct {
	sb         strings.Builder
	listDepth  int
	needSpace  bool
	lastNL     bool
	trailingNL int
}

func (b *textBuilder) walk(n *xhtml.Node, inPre bool) {
	switch n.Type {
	case xhtml.TextNode:
		b.writeText(n.Data, inPre)
		return
	case xhtml.ElementNode:
		tag := strings.ToLower(strings.TrimSpace(n.Data))

		// The tokenizer keeps namespaced Confluence tags as-is
		// (e.g. "ac:structured-macro", "ri:page").
		if tag == "br" {
			b.newline(1)
			return
		}

		block := isBlockTag(tag)
		if block {
			b.newline(1)
		}

		nextInPre := inPre || tag == "pre" || tag == "code" || strings.Contains(tag, "plain-text-body")

		switch tag {
		case "ul", "ol":
			b.listDepth++
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				b.walk(c, nextInPre)
			}
			if b.listDepth > 0 {
				b.listDepth--
			}
			b.newline(1)
			return
		case "li":
			b.newline(1)
			if b.listDepth > 1 {
				b.sb.WriteString(strings.Repeat("  ", b.listDepth-1))
			}
			b.sb.WriteString("- ")
			b.needSpace = false
			b.lastNL = false
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				b.walk(c, nextInPre)
			}
			b.newline(1)
			return
		case "ri:url":
			if v := attrVal(n, "ri:value"); v != "" {
				b.writeText(v, inPre)
			}
		case "ri:page":
			if v := attrVal(n, "ri:content-title"); v != "" {
				b.writeText(v, inPre)
			}
		case "ri:attachment":
			if v := attrVal(n, "ri:filename"); v != "" {
				b.writeText(v, inPre)
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			b.walk(c, nextInPre)
		}

		if block {
			b.newline(2)
		}
	}
}

func attrVal(n *xhtml.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return strings.TrimSpace(a.Val)
		}
	}
	return ""
}

func isBlockTag(tag string) bool {
	switch tag {
	case "p", "div", "section", "article", "header", "footer",
		"h1", "h2", "h3", "h4", "h5", "h6",
		"pre", "blockquote",
		"table", "thead", "tbody", "tfoot", "tr", "th", "td",
		"ac:structured-macro", "ac:rich-text-body", "ac:plain-text-body":
		return true
	default:
		return false
	}
}

func (b *textBuilder) writeText(s string, inPre bool) {
	if s == "" {
		return
	}
	s = html.UnescapeString(s)
	s = strings.ReplaceAll(s, " ", " ")

	if inPre {
		if b.needSpace {
			b.sb.WriteByte(' ')
			b.trailingNL = 0
			b.lastNL = false
		}
		b.sb.WriteString(s)
		b.needSpace = false
		b.lastNL = strings.HasSuffix(s, "\n")
		b.trailingNL = countTrailingNewlines(s)
		return
	}

	for _, r := range s {
		if unicode.IsSpace(r) {
			b.needSpace = true
			continue
		}
		if b.needSpace && b.sb.Len() > 0 && !b.lastNL {
			b.sb.WriteByte(' ')
		}
		b.needSpace = false
		b.lastNL = false
		b.trailingNL = 0
		b.sb.WriteRune(r)
	}
}

func (b *textBuilder) newline(n int) {
	if n <= 0 {
		return
	}
	b.needSpace = false
	if b.trailingNL >= n {
		b.lastNL = true
		return
	}
	for i := 0; i < n-b.trailingNL; i++ {
		b.sb.WriteByte('\n')
		b.trailingNL++
	}
	b.lastNL = true
}

func (b *textBuilder) finalize() string {
	raw := b.sb.String()
	lines := strings.Split(raw, "\n")
	for i := range lines {
		lines[i] = strings.TrimRightFunc(lines[i], unicode.IsSpace)
	}
	return collapseBlankLines(strings.Join(lines, "\n"), 2)
}

func collapseBlankLines(s string, max int) string {
	if max < 1 {
		max = 1
	}
	maxNewlines := max + 1
	nl := 0
	var out strings.Builder
	out.Grow(len(s))
	for _, r := range s {
		if r == '\n' {
			nl++
			if nl > maxNewlines {
				continue
			}
			out.WriteRune(r)
			continue
		}
		nl = 0
		out.WriteRune(r)
	}
	return out.String()
}

func countTrailingNewlines(s string) int {
	n := 0
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] != '\n' {
			break
		}
		n++
	}
	return n
}
