package parser

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/IshaanNene/bookgoat/internal/config"
)

// compilePatterns compiles the pattern of every rule that has one, keyed
// by the pattern text.
func compilePatterns(rules []config.FieldRule) (map[string]*regexp.Regexp, error) {
	cache := make(map[string]*regexp.Regexp)
	for _, rule := range rules {
		if rule.Pattern == "" {
			continue
		}
		if _, ok := cache[rule.Pattern]; ok {
			continue
		}
		re, err := regexp.Compile(rule.Pattern)
		if err != nil {
			return nil, fmt.Errorf("field %q: invalid regex %q: %w", rule.Name, rule.Pattern, err)
		}
		cache[rule.Pattern] = re
	}
	return cache, nil
}

// clean applies the rule's prefix strip and pattern replacement to a raw
// extracted value.
func clean(val string, rule config.FieldRule, re *regexp.Regexp) string {
	if rule.StripPrefix != "" {
		val = strings.TrimSpace(strings.Replace(val, rule.StripPrefix, "", 1))
	}
	if re != nil {
		val = strings.TrimSpace(re.ReplaceAllString(val, rule.Replace))
	}
	return val
}
