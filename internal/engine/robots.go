package engine

import (
	"context"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/IshaanNene/bookgoat/internal/types"
)

// PageFetcher retrieves a page over plain HTTP.
type PageFetcher interface {
	Fetch(ctx context.Context, rawURL string) (*types.Page, error)
}

// RobotsManager fetches and caches robots.txt per host and answers whether
// a URL may be visited.
type RobotsManager struct {
	agent   string
	fetcher PageFetcher
	logger  *slog.Logger

	mu    sync.Mutex
	cache map[string]*robotsData
}

type robotsData struct {
	disallowed []string
	allowed    []string
	crawlDelay time.Duration
}

// NewRobotsManager creates a RobotsManager that matches groups for agent
// (and "*").
func NewRobotsManager(agent string, fetcher PageFetcher, logger *slog.Logger) *RobotsManager {
	return &RobotsManager{
		agent:   strings.ToLower(agent),
		fetcher: fetcher,
		logger:  logger.With("component", "robots"),
		cache:   make(map[string]*robotsData),
	}
}

// Filter returns the URLs robots.txt allows, plus the highest crawl-delay
// seen across their hosts.
func (rm *RobotsManager) Filter(ctx context.Context, urls []string) (allowed []string, crawlDelay time.Duration) {
	allowed = make([]string, 0, len(urls))
	for _, u := range urls {
		ok, delay := rm.check(ctx, u)
		if delay > crawlDelay {
			crawlDelay = delay
		}
		if !ok {
			rm.logger.Info("url disallowed by robots.txt", "url", u)
			continue
		}
		allowed = append(allowed, u)
	}
	return allowed, crawlDelay
}

func (rm *RobotsManager) check(ctx context.Context, rawURL string) (bool, time.Duration) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return true, 0
	}

	data := rm.data(ctx, u.Scheme+"://"+u.Host)
	if data == nil {
		return true, 0 // unreachable robots.txt allows everything
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}

	// allow rules take precedence
	for _, pattern := range data.allowed {
		if matchRobotsPattern(pattern, path) {
			return true, data.crawlDelay
		}
	}
	for _, pattern := range data.disallowed {
		if matchRobotsPattern(pattern, path) {
			return false, data.crawlDelay
		}
	}
	return true, data.crawlDelay
}

func (rm *RobotsManager) data(ctx context.Context, origin string) *robotsData {
	rm.mu.Lock()
	data, ok := rm.cache[origin]
	rm.mu.Unlock()
	if ok {
		return data
	}

	page, err := rm.fetcher.Fetch(ctx, origin+"/robots.txt")
	if err != nil || !page.IsSuccess() {
		if err != nil {
			rm.logger.Debug("robots.txt unavailable", "origin", origin, "error", err)
		}
		data = nil
	} else {
		data = parseRobotsTxt(string(page.Body), rm.agent)
	}

	rm.mu.Lock()
	rm.cache[origin] = data
	rm.mu.Unlock()
	return data
}

// parseRobotsTxt collects the rules of every group addressed to agent or "*".
func parseRobotsTxt(content, agent string) *robotsData {
	data := &robotsData{}
	inGroup := false
	lastWasAgent := false

	for _, line := range strings.Split(content, "\n") {
		if idx := strings.Index(line, "#"); idx >= 0 {
			line = line[:idx]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)

		switch key {
		case "user-agent":
			ua := strings.ToLower(value)
			match := ua == "*" || (agent != "" && strings.Contains(ua, agent))
			// consecutive user-agent lines share one group
			if lastWasAgent {
				inGroup = inGroup || match
			} else {
				inGroup = match
			}
			lastWasAgent = true
			continue
		case "disallow":
			if inGroup && value != "" {
				data.disallowed = append(data.disallowed, value)
			}
		case "allow":
			if inGroup && value != "" {
				data.allowed = append(data.allowed, value)
			}
		case "crawl-delay":
			if inGroup {
				if secs, err := strconv.ParseFloat(value, 64); err == nil && secs > 0 {
					data.crawlDelay = time.Duration(secs * float64(time.Second))
				}
			}
		}
		lastWasAgent = false
	}
	return data
}

// matchRobotsPattern checks if a URL path matches a robots.txt pattern.
// Supports * (any sequence) and $ (end of URL) wildcards.
func matchRobotsPattern(pattern, path string) bool {
	if pattern == "" {
		return false
	}

	endsWithDollar := strings.HasSuffix(pattern, "$")
	if endsWithDollar {
		pattern = pattern[:len(pattern)-1]
	}

	if strings.Contains(pattern, "*") {
		return matchWildcard(pattern, path, endsWithDollar)
	}

	if endsWithDollar {
		return path == pattern
	}
	return strings.HasPrefix(path, pattern)
}

func matchWildcard(pattern, path string, mustEnd bool) bool {
	parts := strings.Split(pattern, "*")
	pos := 0

	for i, part := range parts {
		if part == "" {
			continue
		}
		idx := strings.Index(path[pos:], part)
		if idx < 0 {
			return false
		}
		if i == 0 && idx != 0 {
			return false
		}
		pos += idx + len(part)
	}

	if mustEnd {
		return pos == len(path) || parts[len(parts)-1] == ""
	}
	return true
}
