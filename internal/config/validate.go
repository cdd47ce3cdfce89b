package config

import (
	"fmt"
	"net/url"
)

// Validate checks the configuration for invalid values.
func Validate(cfg *Config) error {
	if cfg.Engine.BatchSize < 1 {
		return fmt.Errorf("engine.batch_size must be >= 1, got %d", cfg.Engine.BatchSize)
	}
	if cfg.Engine.BatchSize > 100 {
		return fmt.Errorf("engine.batch_size must be <= 100, got %d", cfg.Engine.BatchSize)
	}
	if cfg.Engine.InterBatchDelay < 0 {
		return fmt.Errorf("engine.inter_batch_delay must be >= 0")
	}
	if cfg.Engine.StagePause < 0 {
		return fmt.Errorf("engine.stage_pause must be >= 0")
	}

	if cfg.Browser.RequestTimeout <= 0 {
		return fmt.Errorf("browser.request_timeout must be > 0")
	}
	if cfg.Browser.ElementTimeout <= 0 {
		return fmt.Errorf("browser.element_timeout must be > 0")
	}
	if cfg.Browser.RatingsTimeout <= 0 {
		return fmt.Errorf("browser.ratings_timeout must be > 0")
	}
	if cfg.Browser.ViewportWidth < 0 || cfg.Browser.ViewportHeight < 0 {
		return fmt.Errorf("browser viewport must be non-negative")
	}

	if cfg.Fetcher.Type != "http" && cfg.Fetcher.Type != "browser" {
		return fmt.Errorf("fetcher.type must be 'http' or 'browser', got %q", cfg.Fetcher.Type)
	}
	if cfg.Fetcher.MaxBodySize <= 0 {
		return fmt.Errorf("fetcher.max_body_size must be > 0")
	}
	if cfg.Fetcher.MaxRedirects < 0 {
		return fmt.Errorf("fetcher.max_redirects must be >= 0")
	}

	if cfg.Proxy.Enabled {
		if cfg.Proxy.Rotation != "round_robin" && cfg.Proxy.Rotation != "random" {
			return fmt.Errorf("proxy.rotation must be 'round_robin' or 'random', got %q", cfg.Proxy.Rotation)
		}
		for _, proxyURL := range cfg.Proxy.URLs {
			if _, err := url.Parse(proxyURL); err != nil {
				return fmt.Errorf("invalid proxy URL %q: %w", proxyURL, err)
			}
		}
	}

	if err := ValidateURL(cfg.Site.BaseURL); err != nil {
		return fmt.Errorf("site.base_url: %w", err)
	}
	if cfg.Site.SelectorsFile == "" {
		return fmt.Errorf("site.selectors_file must be set")
	}

	if cfg.Input.ISBNColumn == "" {
		return fmt.Errorf("input.isbn_column must be set")
	}
	if cfg.Output.URLFile == "" || cfg.Output.DetailFile == "" {
		return fmt.Errorf("output.url_file and output.detail_file must be set")
	}

	validFormats := map[string]bool{
		"json": true, "jsonl": true, "csv": true,
	}
	if !validFormats[cfg.Output.Format] {
		return fmt.Errorf("output.format %q is not supported (valid: json, jsonl, csv)", cfg.Output.Format)
	}

	if cfg.Storage.MongoURI != "" {
		if cfg.Storage.MongoDatabase == "" || cfg.Storage.MongoCollection == "" {
			return fmt.Errorf("storage.mongo_database and storage.mongo_collection are required with mongo_uri")
		}
	}

	if cfg.Cache.RedisAddr != "" && cfg.Cache.TTL < 0 {
		return fmt.Errorf("cache.ttl must be >= 0")
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be debug/info/warn/error, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" && cfg.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be 'text' or 'json', got %q", cfg.Logging.Format)
	}

	if cfg.Metrics.Enabled {
		if cfg.Metrics.Port < 1 || cfg.Metrics.Port > 65535 {
			return fmt.Errorf("metrics.port must be 1-65535, got %d", cfg.Metrics.Port)
		}
	}

	return nil
}

// ValidateURL checks if a URL string is a usable absolute http(s) URL.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}
