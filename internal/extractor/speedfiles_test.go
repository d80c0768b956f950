package extractor

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EnricoBaivo/anyflix/internal/decoder"
)

// encodeSpeedfiles builds the four-stage blob the host embeds, the exact
// inverse of decodeSpeedfiles.
func encodeSpeedfiles(videoURL string) string {
	stage3 := decoder.SwapCase(base64.StdEncoding.EncodeToString([]byte(videoURL)))

	var hexStr strings.Builder
	reversed := decoder.ReverseBytes([]byte(stage3))
	for _, b := range reversed {
		hexStr.WriteString(fmt.Sprintf("%02x", int(b)+3))
	}

	stage1Str := base64.StdEncoding.EncodeToString(decoder.ReverseBytes([]byte(hexStr.String())))
	stage1 := decoder.ReverseBytes([]byte(decoder.SwapCase(stage1Str)))
	return base64.StdEncoding.EncodeToString(stage1)
}

func TestDecodeSpeedfiles(t *testing.T) {
	t.Parallel()

	const videoURL = "https://cdn.speedfiles.example/stream/abcdef/video.mp4"
	decoded, err := decodeSpeedfiles(encodeSpeedfiles(videoURL))
	require.NoError(t, err)
	assert.Equal(t, videoURL, decoded)
}

func TestDecodeSpeedfilesMalformed(t *testing.T) {
	t.Parallel()

	_, err := decodeSpeedfiles("!!! not base64 !!!")
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestSpeedfilesExtract(t *testing.T) {
	t.Parallel()

	const videoURL = "https://cdn.speedfiles.example/stream/abcdef/video.mp4"
	page := `<html><head><script type="text/javascript">var _0xa1b2 = "` +
		encodeSpeedfiles(videoURL) + `";</script></head></html>`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(page))
	}))
	defer server.Close()

	s := newTestSet()
	sources, err := s.speedfiles(context.Background(), server.URL+"/e/abcdef", nil)
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.Equal(t, videoURL, sources[0].URL)
	assert.Equal(t, "speedfiles", sources[0].Host)
}

func TestSpeedfilesNoScript(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html><body>player offline</body></html>"))
	}))
	defer server.Close()

	s := newTestSet()
	_, err := s.speedfiles(context.Background(), server.URL+"/e/abcdef", nil)
	assert.ErrorIs(t, err, ErrNotFound)
}
