package config

import (
	"fmt"
	"regexp"

	"github.com/spf13/viper"
)

// Field rule types.
const (
	RuleCSS       = "css"
	RuleXPath     = "xpath"
	RuleStatic    = "static"
	RuleTimestamp = "timestamp"
	RuleSourceURL = "source_url"
)

// SelectorSet holds the selectors for one target site: the search flow used
// to resolve identifiers and the field rules used to extract detail records.
type SelectorSet struct {
	CloseButton  string      `mapstructure:"close_button"  yaml:"close_button"`
	SearchBox    string      `mapstructure:"search_box"    yaml:"search_box"`
	SubmitButton string      `mapstructure:"submit_button" yaml:"submit_button"`
	Ratings      string      `mapstructure:"ratings"       yaml:"ratings"`
	Fields       []FieldRule `mapstructure:"fields"        yaml:"fields"`
}

// FieldRule defines how a single output field is extracted.
type FieldRule struct {
	Name        string `mapstructure:"name"         yaml:"name"`
	Type        string `mapstructure:"type"         yaml:"type"` // css, xpath, static, timestamp, source_url
	Selector    string `mapstructure:"selector"     yaml:"selector"`
	Attribute   string `mapstructure:"attribute"    yaml:"attribute"`
	Index       int    `mapstructure:"index"        yaml:"index"`
	StripPrefix string `mapstructure:"strip_prefix" yaml:"strip_prefix"`
	Pattern     string `mapstructure:"pattern"      yaml:"pattern"`
	Replace     string `mapstructure:"replace"      yaml:"replace"`
	Absolute    bool   `mapstructure:"absolute"     yaml:"absolute"`
	Required    bool   `mapstructure:"required"     yaml:"required"`
	Value       string `mapstructure:"value"        yaml:"value"`
	Layout      string `mapstructure:"layout"       yaml:"layout"`
}

// LoadSelectors reads a selector set from a YAML file.
func LoadSelectors(path string) (*SelectorSet, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read selectors file: %w", err)
	}

	var set SelectorSet
	if err := v.Unmarshal(&set); err != nil {
		return nil, fmt.Errorf("unmarshal selectors: %w", err)
	}
	if err := ValidateSelectors(&set); err != nil {
		return nil, err
	}
	return &set, nil
}

// ValidateSelectors checks a selector set for missing or malformed rules.
func ValidateSelectors(set *SelectorSet) error {
	if set.SearchBox == "" {
		return fmt.Errorf("selectors: search_box must be set")
	}
	if set.SubmitButton == "" {
		return fmt.Errorf("selectors: submit_button must be set")
	}
	if len(set.Fields) == 0 {
		return fmt.Errorf("selectors: at least one field rule is required")
	}

	seen := make(map[string]bool, len(set.Fields))
	for i, rule := range set.Fields {
		if rule.Name == "" {
			return fmt.Errorf("selectors: field %d has no name", i)
		}
		if seen[rule.Name] {
			return fmt.Errorf("selectors: duplicate field %q", rule.Name)
		}
		seen[rule.Name] = true

		switch rule.Type {
		case "", RuleCSS, RuleXPath:
			if rule.Selector == "" {
				return fmt.Errorf("selectors: field %q needs a selector", rule.Name)
			}
		case RuleStatic, RuleTimestamp, RuleSourceURL:
		default:
			return fmt.Errorf("selectors: field %q has unknown type %q", rule.Name, rule.Type)
		}
		if rule.Index < 0 {
			return fmt.Errorf("selectors: field %q has negative index", rule.Name)
		}
		if rule.Pattern != "" {
			if _, err := regexp.Compile(rule.Pattern); err != nil {
				return fmt.Errorf("selectors: field %q pattern: %w", rule.Name, err)
			}
		}
	}
	return nil
}
