package parser

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/IshaanNene/bookgoat/internal/config"
)

// cssValue returns the value of the rule.Index-th element matched by the
// rule's CSS selector.
func cssValue(doc *goquery.Document, rule config.FieldRule) (string, bool) {
	sel := doc.Find(rule.Selector)
	if rule.Index >= sel.Length() {
		return "", false
	}
	return selectionValue(sel.Eq(rule.Index), rule.Attribute)
}

func selectionValue(sel *goquery.Selection, attribute string) (string, bool) {
	switch attribute {
	case "", "text":
		return strings.TrimSpace(sel.Text()), true
	case "html", "innerHTML":
		val, err := sel.Html()
		return val, err == nil
	case "outerHTML":
		val, err := goquery.OuterHtml(sel)
		return val, err == nil
	default:
		val, ok := sel.Attr(attribute)
		return strings.TrimSpace(val), ok
	}
}
