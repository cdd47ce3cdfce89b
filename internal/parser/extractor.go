package parser

import (
	"bytes"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"golang.org/x/net/html"

	"github.com/IshaanNene/bookgoat/internal/config"
	"github.com/IshaanNene/bookgoat/internal/types"
)

// DefaultTimestampLayout is used by timestamp rules without a layout.
const DefaultTimestampLayout = "2006-01-02 15:04:05"

// Extractor applies an ordered list of field rules to a page. The record's
// keys follow the rule order, so every record from one Extractor has the
// same columns.
type Extractor struct {
	rules    []config.FieldRule
	patterns map[string]*regexp.Regexp
	now      func() time.Time
	logger   *slog.Logger
}

// NewExtractor creates an Extractor for rules. Patterns are compiled up front.
func NewExtractor(rules []config.FieldRule, logger *slog.Logger) (*Extractor, error) {
	patterns, err := compilePatterns(rules)
	if err != nil {
		return nil, err
	}
	return &Extractor{
		rules:    rules,
		patterns: patterns,
		now:      time.Now,
		logger:   logger.With("component", "extractor"),
	}, nil
}

// SetClock replaces the time source used by timestamp rules.
func (e *Extractor) SetClock(now func() time.Time) {
	e.now = now
}

// Parse implements Parser. An optional field that cannot be found is set to
// types.NotAvailable; a missing required field fails the whole record.
func (e *Extractor) Parse(page *types.Page) (*types.Record, error) {
	rec := types.NewRecord(page.URL)
	var root *html.Node

	for _, rule := range e.rules {
		var (
			val string
			ok  bool
		)

		switch rule.Type {
		case config.RuleStatic:
			val, ok = rule.Value, true

		case config.RuleTimestamp:
			layout := rule.Layout
			if layout == "" {
				layout = DefaultTimestampLayout
			}
			val, ok = e.now().Format(layout), true

		case config.RuleSourceURL:
			val, ok = page.URL, true

		case config.RuleXPath:
			if root == nil {
				n, err := html.Parse(bytes.NewReader(page.Body))
				if err != nil {
					return nil, &types.ParseError{URL: page.URL, Err: err}
				}
				root = n
			}
			var err error
			val, ok, err = xpathValue(root, rule)
			if err != nil {
				return nil, &types.ParseError{URL: page.URL, Field: rule.Name, Selector: rule.Selector, Err: err}
			}

		default:
			doc, err := page.Document()
			if err != nil {
				return nil, &types.ParseError{URL: page.URL, Err: err}
			}
			val, ok = cssValue(doc, rule)
		}

		if !ok {
			if rule.Required {
				return nil, &types.ParseError{
					URL:      page.URL,
					Field:    rule.Name,
					Selector: rule.Selector,
					Err:      fmt.Errorf("%w: index %d", types.ErrMissingField, rule.Index),
				}
			}
			e.logger.Debug("optional field not found", "url", page.URL, "field", rule.Name)
			rec.Set(rule.Name, types.NotAvailable)
			continue
		}

		val = clean(val, rule, e.patterns[rule.Pattern])
		if rule.Absolute && val != "" {
			val = page.ResolveURL(val)
		}
		rec.Set(rule.Name, val)
	}

	return rec, nil
}
