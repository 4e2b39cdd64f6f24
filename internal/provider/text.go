package provider

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Document is a parsed HTML notification body.
type Document struct {
	root *html.Node
}

// ParseHTML parses an HTML body. The tokenizer is lenient, so any input
// yields a document.
func ParseHTML(body string) (*Document, error) {
	root, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return nil, err
	}
	return &Document{root: root}, nil
}

// Labeled is a bold label with the text that follows it.
type Labeled struct {
	Label string
	Value string
}

// BoldLabels returns every <b>/<strong> element with the text immediately
// following it, up to the next line break or bold element. Vendors that
// render "Label: value" forms from templates use this layout.
func (d *Document) BoldLabels() []Labeled {
	var out []Labeled
	walk(d.root, func(n *html.Node) bool {
		if n.Type != html.ElementNode || (n.DataAtom != atom.B && n.DataAtom != atom.Strong) {
			return true
		}
		out = append(out, Labeled{
			Label: CleanLine(textOf(n)),
			Value: CleanLine(siblingText(n)),
		})
		return false
	})
	return out
}

// Tables returns the text of every table cell, grouped by table and row.
func (d *Document) Tables() [][][]string {
	var tables [][][]string
	walk(d.root, func(n *html.Node) bool {
		if n.Type != html.ElementNode || n.DataAtom != atom.Table {
			return true
		}
		var rows [][]string
		walk(n, func(r *html.Node) bool {
			if r.Type != html.ElementNode || r.DataAtom != atom.Tr {
				return true
			}
			var cells []string
			for c := r.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.ElementNode && (c.DataAtom == atom.Td || c.DataAtom == atom.Th) {
					cells = append(cells, CleanLine(textOf(c)))
				}
			}
			rows = append(rows, cells)
			return false
		})
		tables = append(tables, rows)
		return false
	})
	return tables
}

// Pre returns the text of the first <pre> element.
func (d *Document) Pre() (string, bool) {
	var out string
	found := false
	walk(d.root, func(n *html.Node) bool {
		if found {
			return false
		}
		if n.Type == html.ElementNode && n.DataAtom == atom.Pre {
			out, found = textOf(n), true
			return false
		}
		return true
	})
	return out, found
}

// Text renders the document as plain text, one block element per line.
func (d *Document) Text() string {
	var b strings.Builder
	var render func(*html.Node)
	render = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
			return
		case html.ElementNode:
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Head:
				return
			case atom.Br:
				b.WriteByte('\n')
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			render(c)
		}
		if n.Type == html.ElementNode && isBlock(n.DataAtom) {
			b.WriteByte('\n')
		}
	}
	render(d.root)
	return collapseBlankLines(b.String())
}

func isBlock(a atom.Atom) bool {
	switch a {
	case atom.P, atom.Div, atom.Tr, atom.Li, atom.Table, atom.Pre,
		atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
		return true
	}
	return false
}

// walk visits n and its descendants depth first. visit returns false to
// skip a node's children.
func walk(n *html.Node, visit func(*html.Node) bool) {
	if !visit(n) {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, visit)
	}
}

func textOf(n *html.Node) string {
	var b strings.Builder
	walk(n, func(c *html.Node) bool {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
		if c.Type == html.ElementNode && c.DataAtom == atom.Br {
			b.WriteByte('\n')
		}
		return true
	})
	return b.String()
}

// siblingText collects text after n until a line break or another label.
func siblingText(n *html.Node) string {
	var b strings.Builder
	for s := n.NextSibling; s != nil; s = s.NextSibling {
		if s.Type == html.ElementNode {
			switch s.DataAtom {
			case atom.Br, atom.B, atom.Strong, atom.P, atom.Div, atom.Table:
				return b.String()
			}
		}
		if s.Type == html.TextNode {
			b.WriteString(s.Data)
			continue
		}
		b.WriteString(textOf(s))
	}
	return b.String()
}

var spaceRun = regexp.MustCompile(`[ \t\x{00a0}]+`)

// CleanLine trims a value and collapses internal whitespace, including the
// non-breaking spaces HTML templates are full of.
func CleanLine(s string) string {
	s = strings.NewReplacer("\r", "", "\n", " ").Replace(s)
	return strings.TrimSpace(spaceRun.ReplaceAllString(s, " "))
}

func collapseBlankLines(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	blank := false
	for _, l := range lines {
		l = strings.TrimRight(spaceRun.ReplaceAllString(l, " "), " ")
		if strings.TrimSpace(l) == "" {
			if blank {
				continue
			}
			blank = true
			out = append(out, "")
			continue
		}
		blank = false
		out = append(out, strings.TrimSpace(l))
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

// Field returns the value after the first line starting with label,
// matched case-insensitively after leading whitespace.
func Field(text, label string) (string, bool) {
	values := Fields(text, label)
	if len(values) == 0 {
		return "", false
	}
	return values[0], true
}

// Fields returns the values after every line starting with label.
func Fields(text, label string) []string {
	var out []string
	lower := strings.ToLower(label)
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(strings.TrimRight(line, "\r"))
		if len(trimmed) < len(label) || strings.ToLower(trimmed[:len(label)]) != lower {
			continue
		}
		out = append(out, CleanLine(trimmed[len(label):]))
	}
	return out
}
