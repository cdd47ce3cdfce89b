package config

import (
	"time"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Config is the root configuration for bookgoat.
type Config struct {
	Engine  EngineConfig  `mapstructure:"engine"  yaml:"engine"`
	Browser BrowserConfig `mapstructure:"browser" yaml:"browser"`
	Fetcher FetcherConfig `mapstructure:"fetcher" yaml:"fetcher"`
	Proxy   ProxyConfig   `mapstructure:"proxy"   yaml:"proxy"`
	Site    SiteConfig    `mapstructure:"site"    yaml:"site"`
	Input   InputConfig   `mapstructure:"input"   yaml:"input"`
	Output  OutputConfig  `mapstructure:"output"  yaml:"output"`
	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`
	Cache   CacheConfig   `mapstructure:"cache"   yaml:"cache"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// EngineConfig controls batching and pacing.
type EngineConfig struct {
	BatchSize            int           `mapstructure:"batch_size"             yaml:"batch_size"`
	InterBatchDelay      time.Duration `mapstructure:"inter_batch_delay"      yaml:"inter_batch_delay"`
	StagePause           time.Duration `mapstructure:"stage_pause"            yaml:"stage_pause"`
	RespectRobotsTxt     bool          `mapstructure:"respect_robots_txt"     yaml:"respect_robots_txt"`
	ExcludeURLSubstrings []string      `mapstructure:"exclude_url_substrings" yaml:"exclude_url_substrings"`
}

// BrowserConfig controls the per-item browser sessions.
type BrowserConfig struct {
	Headless       bool          `mapstructure:"headless"        yaml:"headless"`
	Bin            string        `mapstructure:"bin"             yaml:"bin"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	ElementTimeout time.Duration `mapstructure:"element_timeout" yaml:"element_timeout"`
	RatingsTimeout time.Duration `mapstructure:"ratings_timeout" yaml:"ratings_timeout"`
	ViewportWidth  int           `mapstructure:"viewport_width"  yaml:"viewport_width"`
	ViewportHeight int           `mapstructure:"viewport_height" yaml:"viewport_height"`
	Stealth        bool          `mapstructure:"stealth"         yaml:"stealth"`
	UserAgents     []string      `mapstructure:"user_agents"     yaml:"user_agents"`
}

// FetcherConfig controls how detail pages are retrieved.
type FetcherConfig struct {
	Type            string `mapstructure:"type"             yaml:"type"`
	FollowRedirects bool   `mapstructure:"follow_redirects" yaml:"follow_redirects"`
	MaxRedirects    int    `mapstructure:"max_redirects"    yaml:"max_redirects"`
	MaxBodySize     int64  `mapstructure:"max_body_size"    yaml:"max_body_size"`
	TLSInsecure     bool   `mapstructure:"tls_insecure"     yaml:"tls_insecure"`
}

// ProxyConfig controls proxy rotation.
type ProxyConfig struct {
	Enabled  bool     `mapstructure:"enabled"  yaml:"enabled"`
	Rotation string   `mapstructure:"rotation" yaml:"rotation"`
	URLs     []string `mapstructure:"urls"     yaml:"urls"`
}

// SiteConfig identifies the target retailer.
type SiteConfig struct {
	BaseURL       string `mapstructure:"base_url"       yaml:"base_url"`
	SelectorsFile string `mapstructure:"selectors_file" yaml:"selectors_file"`
}

// InputConfig locates the identifier list.
type InputConfig struct {
	ISBNFile   string `mapstructure:"isbn_file"   yaml:"isbn_file"`
	ISBNColumn string `mapstructure:"isbn_column" yaml:"isbn_column"`
}

// OutputConfig controls where stage results are written.
type OutputConfig struct {
	URLDir     string `mapstructure:"url_dir"     yaml:"url_dir"`
	URLFile    string `mapstructure:"url_file"    yaml:"url_file"`
	DetailDir  string `mapstructure:"detail_dir"  yaml:"detail_dir"`
	DetailFile string `mapstructure:"detail_file" yaml:"detail_file"`
	Format     string `mapstructure:"format"      yaml:"format"`
}

// StorageConfig controls the optional database sink.
type StorageConfig struct {
	MongoURI        string `mapstructure:"mongo_uri"        yaml:"mongo_uri"`
	MongoDatabase   string `mapstructure:"mongo_database"   yaml:"mongo_database"`
	MongoCollection string `mapstructure:"mongo_collection" yaml:"mongo_collection"`
}

// CacheConfig controls the optional ISBN resolution cache.
type CacheConfig struct {
	RedisAddr string        `mapstructure:"redis_addr" yaml:"redis_addr"`
	RedisDB   int           `mapstructure:"redis_db"   yaml:"redis_db"`
	TTL       time.Duration `mapstructure:"ttl"        yaml:"ttl"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	Output string `mapstructure:"output" yaml:"output"`
	File   string `mapstructure:"file"   yaml:"file"`
}

// MetricsConfig controls Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Port    int    `mapstructure:"port"    yaml:"port"`
	Path    string `mapstructure:"path"    yaml:"path"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Engine: EngineConfig{
			BatchSize:            10,
			InterBatchDelay:      2 * time.Second,
			StagePause:           2 * time.Second,
			ExcludeURLSubstrings: []string{"/search?"},
		},
		Browser: BrowserConfig{
			Headless:       true,
			RequestTimeout: 120 * time.Second,
			ElementTimeout: 60 * time.Second,
			RatingsTimeout: 15 * time.Second,
			ViewportWidth:  1920,
			ViewportHeight: 1080,
			Stealth:        true,
			UserAgents: []string{
				"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
				"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
				"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			},
		},
		Fetcher: FetcherConfig{
			Type:            "browser",
			FollowRedirects: true,
			MaxRedirects:    10,
			MaxBodySize:     10 * 1024 * 1024, // 10MB
		},
		Proxy: ProxyConfig{
			Rotation: "round_robin",
		},
		Site: SiteConfig{
			BaseURL:       "https://www.kobo.com/us/en",
			SelectorsFile: "html_selectors.yaml",
		},
		Input: InputConfig{
			ISBNFile:   "ISBN13_Kobo - ISBN13_Kobo.csv",
			ISBNColumn: "isbn13",
		},
		Output: OutputConfig{
			URLDir:     "dynamic url datasets",
			URLFile:    "isbn13 url datasets",
			DetailDir:  "isbn13 datasets",
			DetailFile: "isbn13 book datasets",
			Format:     "csv",
		},
		Storage: StorageConfig{
			MongoDatabase:   "bookgoat",
			MongoCollection: "books",
		},
		Cache: CacheConfig{
			TTL: 7 * 24 * time.Hour,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
			Path:    "/metrics",
		},
	}
}
