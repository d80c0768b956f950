package extractor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EnricoBaivo/anyflix/internal/config"
	"github.com/EnricoBaivo/anyflix/internal/models"
)

func newTestSet() *Set {
	return NewSet(Options{Bait: config.Default().Bait})
}

func TestHosts(t *testing.T) {
	t.Parallel()

	hosts := newTestSet().Hosts()
	assert.ElementsMatch(t, []string{
		"doodstream", "filemoon", "luluvdo", "speedfiles", "vidmoly", "vidoza", "voe",
	}, hosts)
}

func TestExtractUnknownHost(t *testing.T) {
	t.Parallel()

	s := newTestSet()
	assert.Nil(t, s.Extract(context.Background(), "streamtape", "https://example.com/e/x", nil))
}

func TestExtractHostNameNormalization(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<a href="https://str1.vidoza.example/v/video.mp4">download</a>`))
	}))
	defer server.Close()

	s := newTestSet()
	sources := s.Extract(context.Background(), "  ViDoZa ", server.URL+"/embed-x.html", nil)
	require.Len(t, sources, 1)
	assert.Equal(t, "https://str1.vidoza.example/v/video.mp4", sources[0].URL)
}

func TestRunSwallowsErrorsAndPanics(t *testing.T) {
	t.Parallel()

	s := newTestSet()
	ctx := context.Background()

	failing := func(context.Context, string, map[string]string) ([]models.VideoSource, error) {
		return nil, errors.Wrap(ErrNotFound, "nothing here")
	}
	assert.Nil(t, s.run(ctx, "test", failing, "https://example.com", nil))

	panicking := func(context.Context, string, map[string]string) ([]models.VideoSource, error) {
		panic("boom")
	}
	assert.Nil(t, s.run(ctx, "test", panicking, "https://example.com", nil))
}

func TestExtractCachesResults(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`<a href="https://str1.vidoza.example/v/video.mp4">download</a>`))
	}))
	defer server.Close()

	s := NewSet(Options{Bait: config.Default().Bait, CacheTTL: time.Minute})
	ctx := context.Background()

	first := s.Extract(ctx, "vidoza", server.URL+"/embed-x.html", nil)
	second := s.Extract(ctx, "vidoza", server.URL+"/embed-x.html", nil)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), hits.Load())
}

func TestExtractUpstreamFailureIsEmpty(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	s := newTestSet()
	assert.Empty(t, s.Extract(context.Background(), "vidoza", server.URL+"/gone", nil))
}

func TestResultCacheEviction(t *testing.T) {
	t.Parallel()

	cache := newResultCache(time.Minute, 2)
	cache.set("a", []models.VideoSource{{URL: "a"}})
	cache.set("b", []models.VideoSource{{URL: "b"}})
	cache.set("c", []models.VideoSource{{URL: "c"}})

	found := 0
	for _, key := range []string{"a", "b", "c"} {
		if _, ok := cache.get(key); ok {
			found++
		}
	}
	assert.Equal(t, 2, found)

	_, ok := cache.get("c")
	assert.True(t, ok, "newest entry must survive eviction")
}

func TestResultCacheExpiry(t *testing.T) {
	t.Parallel()

	cache := newResultCache(time.Millisecond, 10)
	cache.set("k", []models.VideoSource{{URL: "x"}})
	time.Sleep(5 * time.Millisecond)

	_, ok := cache.get("k")
	assert.False(t, ok)
}
