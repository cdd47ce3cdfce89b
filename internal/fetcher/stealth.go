package fetcher

import (
	"fmt"
	"math/rand"

	"github.com/IshaanNene/bookgoat/internal/config"
)

// defaultUserAgent is used when no user agents are configured.
const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Profile is the browser identity presented by one session.
type Profile struct {
	UserAgent      string
	ViewportWidth  int
	ViewportHeight int
	Language       string
	Stealth        bool
}

// NewProfile picks a random user agent from cfg and fills the viewport.
func NewProfile(cfg *config.BrowserConfig) Profile {
	w, h := cfg.ViewportWidth, cfg.ViewportHeight
	if w <= 0 || h <= 0 {
		w, h = 1920, 1080
	}
	return Profile{
		UserAgent:      RandomUserAgent(cfg.UserAgents),
		ViewportWidth:  w,
		ViewportHeight: h,
		Language:       "en-US",
		Stealth:        cfg.Stealth,
	}
}

// WindowSize returns the window-size launch flag value.
func (p Profile) WindowSize() string {
	return fmt.Sprintf("%d,%d", p.ViewportWidth, p.ViewportHeight)
}

// RandomUserAgent returns a random entry of agents, or a default.
func RandomUserAgent(agents []string) string {
	if len(agents) == 0 {
		return defaultUserAgent
	}
	return agents[rand.Intn(len(agents))]
}
