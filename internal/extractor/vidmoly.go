package extractor

import (
	"context"
	"net/http"
	"regexp"

	"github.com/pkg/errors"

	"github.com/EnricoBaivo/anyflix/internal/models"
)

var vidmolyM3U8Re = regexp.MustCompile(`https?://[^\s"']*\.m3u8[^\s"']*`)

// vidmoly scrapes the playlist URL out of the embed page and expands it
// through the manifest parser. The host enforces its own referer, so every
// source is marked as requiring the application proxy.
func (s *Set) vidmoly(ctx context.Context, rawURL string, headers map[string]string) ([]models.VideoSource, error) {
	if sources := s.metadataFirst(ctx, rawURL); len(sources) > 0 {
		markVidmoly(sources)
		return sources, nil
	}

	status, body, _, err := s.fetch(ctx, s.client, rawURL, headers)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, errors.Wrapf(ErrUpstream, "vidmoly: page returned %d", status)
	}

	playlistURL := vidmolyM3U8Re.FindString(body)
	if playlistURL == "" {
		return nil, errors.Wrap(ErrNotFound, "vidmoly: no playlist URL in page")
	}

	origin := originOf(rawURL)
	if origin == "" {
		origin = "https://vidmoly.to/"
	}
	playlistHeaders := map[string]string{
		"Referer": origin,
		"Origin":  origin,
	}
	for k, v := range headers {
		playlistHeaders[k] = v
	}

	sources := s.playlists.Extract(ctx, playlistURL, playlistHeaders)
	markVidmoly(sources)
	return sources, nil
}

func markVidmoly(sources []models.VideoSource) {
	for i := range sources {
		sources[i].Host = "vidmoly"
		sources[i].RequiresProxy = true
	}
}
