package main

import (
	"fmt"
	"io"
	"net/http"

	"gopkg.in/yaml.v3"

	"github.com/IshaanNene/bookgoat/internal/config"
)

func httpStatusText(code int) string {
	if text := http.StatusText(code); text != "" {
		return text
	}
	return "Unknown"
}

func printConfig(w io.Writer, cfg *config.Config) {
	fmt.Fprintf(w, "Engine:\n")
	fmt.Fprintf(w, "  Batch Size:         %d\n", cfg.Engine.BatchSize)
	fmt.Fprintf(w, "  Inter-batch Delay:  %s\n", cfg.Engine.InterBatchDelay)
	fmt.Fprintf(w, "  Stage Pause:        %s\n", cfg.Engine.StagePause)
	fmt.Fprintf(w, "  Respect robots.txt: %v\n", cfg.Engine.RespectRobotsTxt)
	fmt.Fprintf(w, "  Exclude URLs:       %v\n", cfg.Engine.ExcludeURLSubstrings)
	fmt.Fprintf(w, "\nBrowser:\n")
	fmt.Fprintf(w, "  Headless:           %v\n", cfg.Browser.Headless)
	fmt.Fprintf(w, "  Stealth:            %v\n", cfg.Browser.Stealth)
	fmt.Fprintf(w, "  Request Timeout:    %s\n", cfg.Browser.RequestTimeout)
	fmt.Fprintf(w, "  Element Timeout:    %s\n", cfg.Browser.ElementTimeout)
	fmt.Fprintf(w, "  Ratings Timeout:    %s\n", cfg.Browser.RatingsTimeout)
	fmt.Fprintf(w, "  Viewport:           %dx%d\n", cfg.Browser.ViewportWidth, cfg.Browser.ViewportHeight)
	fmt.Fprintf(w, "  User Agents:        %d configured\n", len(cfg.Browser.UserAgents))
	fmt.Fprintf(w, "\nFetcher:\n")
	fmt.Fprintf(w, "  Type:               %s\n", cfg.Fetcher.Type)
	fmt.Fprintf(w, "  Max Body Size:      %d bytes\n", cfg.Fetcher.MaxBodySize)
	fmt.Fprintf(w, "\nProxy:\n")
	fmt.Fprintf(w, "  Enabled:            %v\n", cfg.Proxy.Enabled)
	fmt.Fprintf(w, "  Rotation:           %s\n", cfg.Proxy.Rotation)
	fmt.Fprintf(w, "  Count:              %d\n", len(cfg.Proxy.URLs))
	fmt.Fprintf(w, "\nSite:\n")
	fmt.Fprintf(w, "  Base URL:           %s\n", cfg.Site.BaseURL)
	fmt.Fprintf(w, "  Selectors:          %s\n", cfg.Site.SelectorsFile)
	fmt.Fprintf(w, "\nInput:\n")
	fmt.Fprintf(w, "  ISBN File:          %s\n", cfg.Input.ISBNFile)
	fmt.Fprintf(w, "  ISBN Column:        %s\n", cfg.Input.ISBNColumn)
	fmt.Fprintf(w, "\nOutput:\n")
	fmt.Fprintf(w, "  URL Dataset:        %s/%s\n", cfg.Output.URLDir, cfg.Output.URLFile)
	fmt.Fprintf(w, "  Detail Dataset:     %s/%s\n", cfg.Output.DetailDir, cfg.Output.DetailFile)
	fmt.Fprintf(w, "  Format:             %s\n", cfg.Output.Format)
	fmt.Fprintf(w, "\nStorage:\n")
	fmt.Fprintf(w, "  MongoDB:            %v\n", cfg.Storage.MongoURI != "")
	fmt.Fprintf(w, "\nCache:\n")
	fmt.Fprintf(w, "  Redis:              %s\n", orNone(cfg.Cache.RedisAddr))
	fmt.Fprintf(w, "  TTL:                %s\n", cfg.Cache.TTL)
	fmt.Fprintf(w, "\nMetrics:\n")
	fmt.Fprintf(w, "  Enabled:            %v\n", cfg.Metrics.Enabled)
	fmt.Fprintf(w, "  Port:               %d\n", cfg.Metrics.Port)
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

// writeConfigYAML writes cfg in the config file format, so the output can
// be saved and used with --config.
func writeConfigYAML(w io.Writer, cfg *config.Config) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return enc.Close()
}
