package extractor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoodstreamExtract(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	var server *httptest.Server

	mux.HandleFunc("/e/abcdef", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/e/moved", http.StatusFound)
	})
	mux.HandleFunc("/e/moved", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<script>$.get('/pass_md5/1234/token999', function(data) {});</script>`))
	})
	mux.HandleFunc("/pass_md5/1234/token999", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, server.URL+"/e/moved", r.Header.Get("Referer"))
		_, _ = w.Write([]byte("https://cdn.dood.example/stream/"))
	})

	server = httptest.NewServer(mux)
	defer server.Close()

	s := newTestSet()
	sources, err := s.doodstream(context.Background(), server.URL+"/e/abcdef", nil)
	require.NoError(t, err)
	require.Len(t, sources, 1)

	src := sources[0]
	assert.True(t, strings.HasPrefix(src.URL, "https://cdn.dood.example/stream/"))
	assert.Contains(t, src.URL, "token=token999")
	assert.Contains(t, src.URL, "expiry=")
	assert.Equal(t, "doodstream", src.Host)
	assert.Equal(t, "Mangayomi", src.Headers["User-Agent"])
	assert.Equal(t, server.URL, src.Headers["Referer"])
}

func TestDoodstreamMissingMD5(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>no md5 path here</html>"))
	}))
	defer server.Close()

	s := newTestSet()
	_, err := s.doodstream(context.Background(), server.URL+"/e/abcdef", nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDoodstreamRedirectLoop(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/e/again", http.StatusFound)
	}))
	defer server.Close()

	s := newTestSet()
	_, err := s.doodstream(context.Background(), server.URL+"/e/abcdef", nil)
	assert.ErrorIs(t, err, ErrUpstream)
}
