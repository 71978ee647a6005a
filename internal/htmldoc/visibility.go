package htmldoc

import (
	"strings"

	"stripedl/internal/dom"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Elements that never render a box.
var nonRendered = map[string]bool{
	"head": true, "script": true, "style": true, "template": true, "noscript": true, "title": true,
}

// visible approximates offsetParent !== null: the element and every ancestor
// render, and the element is not <html> or <body>.
func visible(n *html.Node) bool {
	if n == nil || n.Type != html.ElementNode || n.Data == "html" || n.Data == "body" {
		return false
	}
	for p := n; p != nil; p = p.Parent {
		if p.Type != html.ElementNode {
			continue
		}
		if nonRendered[p.Data] {
			return false
		}
		if _, ok := attr(p, "hidden"); ok {
			return false
		}
		if style, ok := attr(p, "style"); ok && hidesElement(style) {
			return false
		}
	}
	return true
}

func hidesElement(style string) bool {
	s := strings.ToLower(strings.ReplaceAll(style, " ", ""))
	return strings.Contains(s, "display:none")
}

func describe(s *goquery.Selection) dom.ElementInfo {
	n := s.Get(0)
	if n == nil {
		return dom.ElementInfo{}
	}
	class, _ := attr(n, "class")
	role, _ := attr(n, "role")
	return dom.ElementInfo{
		Tag:     n.Data,
		Text:    s.Text(),
		Class:   class,
		Role:    role,
		Visible: visible(n),
	}
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}
