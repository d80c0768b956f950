// Package extractor resolves host-specific embed URLs into playable video
// sources. Each host has its own extractor; the Set dispatches by host name
// and guarantees that no failure crosses its boundary as an error.
package extractor

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/EnricoBaivo/anyflix/internal/config"
	"github.com/EnricoBaivo/anyflix/internal/m3u8"
	"github.com/EnricoBaivo/anyflix/internal/models"
	"github.com/EnricoBaivo/anyflix/internal/util"
)

// Failure causes, distinguished internally so tests can tell them apart.
// At the Set boundary all of them collapse to an empty result.
var (
	// ErrNotFound means a selector, regex or pattern did not match.
	ErrNotFound = errors.New("extractor: pattern not found")
	// ErrUpstream means a non-2xx status or transport error.
	ErrUpstream = errors.New("extractor: upstream request failed")
	// ErrMalformed means an encoded payload failed to decode.
	ErrMalformed = errors.New("extractor: malformed encoded data")
)

// Func is a single host extractor. Implementations may return an error;
// only the dispatcher converts that to an empty result.
type Func func(ctx context.Context, url string, headers map[string]string) ([]models.VideoSource, error)

// MetadataResolver is the general-purpose, metadata-based tool tried
// before every bespoke scrape. An empty result is the normal
// "not applicable" signal.
type MetadataResolver interface {
	Resolve(ctx context.Context, url string) ([]models.VideoSource, error)
}

// Options configures a Set. Zero values fall back to shared defaults.
type Options struct {
	// Client follows redirects; NoRedirectClient exposes Location headers.
	Client           *http.Client
	NoRedirectClient *http.Client
	// Resolver is optional; nil disables the metadata-first tier.
	Resolver MetadataResolver
	// Bait filters decoy media URLs.
	Bait config.BaitPolicy
	// UserAgents rotate on hosts that block scrapers.
	UserAgents []string
	// CacheTTL controls result reuse; zero disables caching.
	CacheTTL time.Duration
}

// Set holds the per-host extractors plus the clients and policies they
// share. Each extraction call owns its own buffers and results, so one
// Set is safe for concurrent use.
type Set struct {
	client     *http.Client
	noRedirect *http.Client
	resolver   MetadataResolver
	bait       config.BaitPolicy
	userAgents []string
	playlists  *m3u8.Client
	cache      *resultCache
	registry   map[string]Func
}

// NewSet builds the extractor registry.
func NewSet(opts Options) *Set {
	s := &Set{
		client:     opts.Client,
		noRedirect: opts.NoRedirectClient,
		resolver:   opts.Resolver,
		bait:       opts.Bait,
		userAgents: opts.UserAgents,
	}
	if s.client == nil {
		s.client = util.GetSharedClient()
	}
	if s.noRedirect == nil {
		s.noRedirect = util.GetNoRedirectClient()
	}
	if len(s.userAgents) == 0 {
		s.userAgents = config.Default().UserAgents
	}
	s.playlists = m3u8.NewClient(s.client)
	if opts.CacheTTL > 0 {
		s.cache = newResultCache(opts.CacheTTL, 200)
	}

	s.registry = map[string]Func{
		"doodstream": s.doodstream,
		"filemoon":   s.filemoon,
		"luluvdo":    s.luluvdo,
		"speedfiles": s.speedfiles,
		"vidmoly":    s.vidmoly,
		"vidoza":     s.vidoza,
		"voe":        s.voe,
	}
	return s
}

// Hosts returns the registered host names.
func (s *Set) Hosts() []string {
	hosts := make([]string, 0, len(s.registry))
	for host := range s.registry {
		hosts = append(hosts, host)
	}
	return hosts
}

// Extract dispatches the URL to the extractor registered for host. An
// unknown host, an extractor error or a panic all yield an empty result;
// extraction failure is a normal, silent outcome.
func (s *Set) Extract(ctx context.Context, host, rawURL string, headers map[string]string) []models.VideoSource {
	key := strings.ToLower(strings.TrimSpace(host))
	fn, ok := s.registry[key]
	if !ok {
		util.Warn("no extractor registered", "host", host)
		return nil
	}

	if s.cache != nil {
		if sources, ok := s.cache.get(key + "|" + rawURL); ok {
			return sources
		}
	}

	sources := s.run(ctx, key, fn, rawURL, headers)
	if s.cache != nil && len(sources) > 0 {
		s.cache.set(key+"|"+rawURL, sources)
	}
	return sources
}

func (s *Set) run(ctx context.Context, host string, fn Func, rawURL string, headers map[string]string) (sources []models.VideoSource) {
	defer func() {
		if r := recover(); r != nil {
			util.Error("extractor panicked", "host", host, "panic", r)
			sources = nil
		}
	}()

	sources, err := fn(ctx, rawURL, headers)
	if err != nil {
		util.Debug("extraction failed", "host", host, "url", rawURL, "error", err)
		return nil
	}
	return sources
}

// metadataFirst runs the resolver tier. A nil resolver, an error or an
// empty result all mean "fall through to the bespoke scrape".
func (s *Set) metadataFirst(ctx context.Context, url string) []models.VideoSource {
	if s.resolver == nil {
		return nil
	}
	sources, err := s.resolver.Resolve(ctx, url)
	if err != nil {
		util.Debug("metadata resolver failed", "url", url, "error", err)
		return nil
	}
	return sources
}

// fetch issues a GET with the given client and returns status and body.
// Transport errors map to ErrUpstream.
func (s *Set) fetch(ctx context.Context, client *http.Client, url string, headers map[string]string) (int, string, http.Header, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, "", nil, errors.Wrapf(ErrUpstream, "building request for %s: %v", url, err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, "", nil, errors.Wrapf(ErrUpstream, "fetching %s: %v", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, "", resp.Header, errors.Wrapf(ErrUpstream, "reading %s: %v", url, err)
	}
	return resp.StatusCode, string(body), resp.Header, nil
}

// resultCache reuses extraction results for a short TTL so repeated
// episode requests do not hammer the origin hosts.
type resultCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	maxAge  time.Duration
	maxSize int
}

type cacheEntry struct {
	sources   []models.VideoSource
	timestamp time.Time
}

func newResultCache(maxAge time.Duration, maxSize int) *resultCache {
	return &resultCache{
		entries: make(map[string]cacheEntry, maxSize),
		maxAge:  maxAge,
		maxSize: maxSize,
	}
}

func (c *resultCache) get(key string) ([]models.VideoSource, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, exists := c.entries[key]
	if !exists || time.Since(entry.timestamp) > c.maxAge {
		return nil, false
	}
	return entry.sources, true
}

func (c *resultCache) set(key string, sources []models.VideoSource) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Simple eviction: at max size, drop the oldest entry.
	if len(c.entries) >= c.maxSize {
		var oldestKey string
		var oldestTime time.Time
		first := true
		for k, v := range c.entries {
			if first || v.timestamp.Before(oldestTime) {
				oldestKey = k
				oldestTime = v.timestamp
				first = false
			}
		}
		if oldestKey != "" {
			delete(c.entries, oldestKey)
		}
	}

	c.entries[key] = cacheEntry{sources: sources, timestamp: time.Now()}
}
