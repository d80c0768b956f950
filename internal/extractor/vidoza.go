package extractor

import (
	"context"
	"net/http"
	"regexp"

	"github.com/pkg/errors"

	"github.com/EnricoBaivo/anyflix/internal/models"
)

var vidozaMP4Re = regexp.MustCompile(`https?://[^\s"']*\.mp4`)

// vidoza serves the media URL in plain sight; the first .mp4 link in the
// page is the stream.
func (s *Set) vidoza(ctx context.Context, rawURL string, headers map[string]string) ([]models.VideoSource, error) {
	if sources := s.metadataFirst(ctx, rawURL); len(sources) > 0 {
		return sources, nil
	}

	status, body, _, err := s.fetch(ctx, s.client, rawURL, headers)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, errors.Wrapf(ErrUpstream, "vidoza: page returned %d", status)
	}

	videoURL := vidozaMP4Re.FindString(body)
	if videoURL == "" {
		return nil, errors.Wrap(ErrNotFound, "vidoza: no mp4 URL in page")
	}

	return []models.VideoSource{{
		URL:         videoURL,
		OriginalURL: videoURL,
		Host:        "vidoza",
		Headers:     headers,
	}}, nil
}
