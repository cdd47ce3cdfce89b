package parser

import (
	"fmt"
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/IshaanNene/bookgoat/internal/config"
)

// xpathValue returns the value of the rule.Index-th node matched by the
// rule's XPath expression. An invalid expression is returned as an error.
func xpathValue(root *html.Node, rule config.FieldRule) (string, bool, error) {
	nodes, err := htmlquery.QueryAll(root, rule.Selector)
	if err != nil {
		return "", false, fmt.Errorf("invalid xpath %q: %w", rule.Selector, err)
	}
	if rule.Index >= len(nodes) {
		return "", false, nil
	}

	node := nodes[rule.Index]
	switch rule.Attribute {
	case "", "text":
		return strings.TrimSpace(htmlquery.InnerText(node)), true, nil
	case "html", "innerHTML":
		return htmlquery.OutputHTML(node, false), true, nil
	case "outerHTML":
		return htmlquery.OutputHTML(node, true), true, nil
	default:
		for _, attr := range node.Attr {
			if attr.Key == rule.Attribute {
				return strings.TrimSpace(attr.Val), true, nil
			}
		}
		return "", false, nil
	}
}
