// Package feeds contains the thin clients for the auxiliary data sources:
// the bors merge queue page, rollup membership, the crater queue page, and
// the rfcbot FCP feed. Each client returns a parsed snapshot or an error;
// rows that fail to parse are skipped and logged, never fatal to the page.
package feeds

import (
	"strings"

	"golang.org/x/net/html"
)

// attrValue returns the value of the named attribute, or "".
func attrValue(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attrValue(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

// findElement walks the tree depth-first for the first element with the
// given tag for which match returns true.
func findElement(n *html.Node, tag string, match func(*html.Node) bool) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag && (match == nil || match(n)) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, tag, match); found != nil {
			return found
		}
	}
	return nil
}

// childElements returns the direct child elements with the given tag.
func childElements(n *html.Node, tag string) []*html.Node {
	var res []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == tag {
			res = append(res, c)
		}
	}
	return res
}

// nodeText returns the concatenated text content of a node.
func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

// tableRows returns the tr elements of the table's tbody (or of the table
// itself when the parser did not synthesize a tbody).
func tableRows(table *html.Node) []*html.Node {
	body := findElement(table, "tbody", nil)
	if body == nil {
		body = table
	}
	return childElements(body, "tr")
}

// rowCells returns the text of each td cell of a row.
func rowCells(row *html.Node) []string {
	tds := childElements(row, "td")
	cells := make([]string, 0, len(tds))
	for _, td := range tds {
		cells = append(cells, nodeText(td))
	}
	return cells
}
