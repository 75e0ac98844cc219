package inspect

import (
	"fmt"
	"slices"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const (
	CodeTitle      = "document-title"
	CodeLang       = "html-lang"
	CodeImageAlt   = "image-alt"
	CodeLinkName   = "link-name"
	CodeInputLabel = "input-label"

	TypeError   = "error"
	TypeWarning = "warning"
)

type rule struct {
	code  string
	check func(root *html.Node) []Issue
}

var defaultRules = []rule{
	{CodeTitle, checkTitle},
	{CodeLang, checkLang},
	{CodeImageAlt, checkImageAlt},
	{CodeLinkName, checkLinkName},
	{CodeInputLabel, checkInputLabel},
}

func checkTitle(root *html.Node) []Issue {
	for n := range root.Descendants() {
		if n.DataAtom == atom.Title && strings.TrimSpace(text(n)) != "" {
			return nil
		}
	}
	return []Issue{{
		Code:     CodeTitle,
		Type:     TypeError,
		Message:  "Document has no title element or the title is empty",
		Selector: "html > head",
	}}
}

func checkLang(root *html.Node) []Issue {
	for n := range root.Descendants() {
		if n.DataAtom != atom.Html {
			continue
		}
		if strings.TrimSpace(attr(n, "lang")) != "" {
			return nil
		}
		return []Issue{{
			Code:     CodeLang,
			Type:     TypeError,
			Message:  "The html element has no lang attribute",
			Selector: "html",
		}}
	}
	return nil
}

func checkImageAlt(root *html.Node) []Issue {
	var ret []Issue
	for n := range root.Descendants() {
		if n.DataAtom != atom.Img || hasAttr(n, "alt") || attr(n, "role") == "presentation" {
			continue
		}
		ret = append(ret, Issue{
			Code:     CodeImageAlt,
			Type:     TypeError,
			Message:  "Image has no alt attribute",
			Selector: selector(n),
		})
	}
	return ret
}

func checkLinkName(root *html.Node) []Issue {
	var ret []Issue
	for n := range root.Descendants() {
		if n.DataAtom != atom.A || !hasAttr(n, "href") || accessibleName(n) != "" {
			continue
		}
		ret = append(ret, Issue{
			Code:     CodeLinkName,
			Type:     TypeError,
			Message:  "Link has no discernible text",
			Selector: selector(n),
		})
	}
	return ret
}

func checkInputLabel(root *html.Node) []Issue {
	labelled := make(map[string]bool)
	for n := range root.Descendants() {
		if n.DataAtom == atom.Label && attr(n, "for") != "" {
			labelled[attr(n, "for")] = true
		}
	}

	var ret []Issue
	for n := range root.Descendants() {
		if !labellable(n) {
			continue
		}
		if attr(n, "aria-label") != "" || attr(n, "aria-labelledby") != "" || attr(n, "title") != "" {
			continue
		}
		if id := attr(n, "id"); id != "" && labelled[id] {
			continue
		}
		if insideLabel(n) {
			continue
		}
		ret = append(ret, Issue{
			Code:     CodeInputLabel,
			Type:     TypeError,
			Message:  fmt.Sprintf("Form field <%s> has no label", n.Data),
			Selector: selector(n),
		})
	}
	return ret
}

func labellable(n *html.Node) bool {
	switch n.DataAtom {
	case atom.Select, atom.Textarea:
		return true
	case atom.Input:
		switch strings.ToLower(attr(n, "type")) {
		case "hidden", "submit", "reset", "button", "image":
			return false
		}
		return true
	default:
		return false
	}
}

func insideLabel(n *html.Node) bool {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.DataAtom == atom.Label {
			return true
		}
	}
	return false
}

func accessibleName(n *html.Node) string {
	if v := strings.TrimSpace(attr(n, "aria-label")); v != "" {
		return v
	}
	if v := strings.TrimSpace(attr(n, "title")); v != "" {
		return v
	}
	if v := strings.TrimSpace(text(n)); v != "" {
		return v
	}
	for d := range n.Descendants() {
		if d.DataAtom == atom.Img {
			if v := strings.TrimSpace(attr(d, "alt")); v != "" {
				return v
			}
		}
	}
	return ""
}

func text(n *html.Node) string {
	var sb strings.Builder
	for d := range n.Descendants() {
		if d.Type == html.TextNode {
			sb.WriteString(d.Data)
		}
	}
	return sb.String()
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if a.Key == key {
			return true
		}
	}
	return false
}

// selector returns a CSS selector of n, anchored at the closest ancestor
// with an id.
func selector(n *html.Node) string {
	var parts []string
	for e := n; e != nil && e.Type == html.ElementNode; e = e.Parent {
		if id := attr(e, "id"); id != "" {
			parts = append(parts, "#"+id)
			break
		}
		part := e.Data
		if pos, count := position(e); count > 1 {
			part = fmt.Sprintf("%s:nth-of-type(%d)", e.Data, pos)
		}
		parts = append(parts, part)
	}
	slices.Reverse(parts)
	return strings.Join(parts, " > ")
}

// position returns the 1-based index of n among its siblings of the same
// type and the number of such siblings.
func position(n *html.Node) (int, int) {
	if n.Parent == nil {
		return 1, 1
	}
	var pos, count int
	for s := range n.Parent.ChildNodes() {
		if s.Type != html.ElementNode || s.Data != n.Data {
			continue
		}
		count++
		if s == n {
			pos = count
		}
	}
	return pos, count
}
