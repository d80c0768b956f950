// Package config handles TOML-based configuration for the extraction pipeline.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds the extraction tunables. All fields have compiled-in
// defaults; a config file only overrides what it names.
type Config struct {
	// TimeoutSeconds bounds every upstream HTTP fetch. Timeouts collapse
	// to an empty extraction result, never an error.
	TimeoutSeconds int `toml:"timeout_seconds"`
	// Concurrency caps simultaneous per-host extractions.
	Concurrency int `toml:"concurrency"`
	// CacheTTLSeconds controls how long extraction results are reused.
	CacheTTLSeconds int `toml:"cache_ttl_seconds"`
	// UserAgents is the rotation pool for hosts that block scrapers.
	UserAgents []string `toml:"user_agents"`
	// Bait filters out decoy media some hosts serve to scrapers.
	Bait BaitPolicy `toml:"bait"`
}

// BaitPolicy is the deny list for known placeholder test videos.
// It is a heuristic tied to observed decoy content, so it stays
// configurable rather than hard-coded.
type BaitPolicy struct {
	Filenames []string `toml:"filenames"`
	Domains   []string `toml:"domains"`
}

// IsBait reports whether a candidate media URL looks like a known decoy.
func (p BaitPolicy) IsBait(source string) bool {
	lower := strings.ToLower(source)
	for _, fn := range p.Filenames {
		if strings.Contains(lower, strings.ToLower(fn)) {
			return true
		}
	}
	host := hostOf(source)
	for _, dom := range p.Domains {
		if strings.Contains(host, dom) {
			return true
		}
	}
	return false
}

func hostOf(source string) string {
	rest := source
	if i := strings.Index(rest, "://"); i >= 0 {
		rest = rest[i+3:]
	} else {
		return ""
	}
	if i := strings.IndexAny(rest, "/?#"); i >= 0 {
		rest = rest[:i]
	}
	return rest
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		TimeoutSeconds:  30,
		Concurrency:     8,
		CacheTTLSeconds: 600,
		UserAgents: []string{
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
			"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.2 Safari/605.1.15",
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36 Edg/120.0.0.0",
			"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		},
		Bait: BaitPolicy{
			Filenames: []string{
				"BigBuckBunny",
				"Big_Buck_Bunny_1080_10s_5MB",
				"bbb.mp4",
			},
			Domains: []string{
				"test-videos.co.uk",
				"sample-videos.com",
				"commondatastorage.googleapis.com",
			},
		},
	}
}

// Timeout returns the per-fetch timeout as a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// CacheTTL returns the extraction cache TTL as a duration.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// Load reads a config file and merges it with defaults. A missing file
// is not an error; defaults are returned unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if cfg.TimeoutSeconds <= 0 {
		cfg.TimeoutSeconds = Default().TimeoutSeconds
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = Default().Concurrency
	}
	return cfg, nil
}
