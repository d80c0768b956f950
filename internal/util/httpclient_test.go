package util

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetSharedClientIsSingleton(t *testing.T) {
	t.Parallel()

	assert.Same(t, GetSharedClient(), GetSharedClient())
}

func TestGetNoRedirectClientStopsAtFirstResponse(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/elsewhere", http.StatusFound)
	}))
	defer server.Close()

	resp, err := GetNoRedirectClient().Get(server.URL)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/elsewhere", resp.Header.Get("Location"))
}

func TestWorkerPoolRunsAllTasks(t *testing.T) {
	t.Parallel()

	var done atomic.Int32
	pool := NewWorkerPool(3)
	for i := 0; i < 20; i++ {
		pool.Submit(func() {
			done.Add(1)
		})
	}
	pool.Wait()

	assert.Equal(t, int32(20), done.Load())
}

func TestWorkerPoolBoundsConcurrency(t *testing.T) {
	t.Parallel()

	var active, peak atomic.Int32
	pool := NewWorkerPool(2)
	for i := 0; i < 10; i++ {
		pool.Submit(func() {
			n := active.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			active.Add(-1)
		})
	}
	pool.Wait()

	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestRandomString(t *testing.T) {
	t.Parallel()

	s := RandomString(10)
	assert.Len(t, s, 10)
	for _, r := range s {
		assert.Contains(t, randomStringChars, string(r))
	}

	assert.Empty(t, RandomString(0))
}
