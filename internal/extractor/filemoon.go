package extractor

import (
	"context"
	"net/http"
	"regexp"

	"github.com/pkg/errors"

	"github.com/EnricoBaivo/anyflix/internal/models"
)

const filemoonUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

var iframeSrcRe = regexp.MustCompile(`iframe src="(.*?)"`)

// filemoon fetches the embed page, hops into its iframe when present and
// hands the resulting HTML to the shared JWPlayer path.
func (s *Set) filemoon(ctx context.Context, rawURL string, headers map[string]string) ([]models.VideoSource, error) {
	if sources := s.metadataFirst(ctx, rawURL); len(sources) > 0 {
		return sources, nil
	}

	reqHeaders := map[string]string{
		"User-Agent": filemoonUserAgent,
		"Referer":    rawURL,
	}
	for k, v := range headers {
		if http.CanonicalHeaderKey(k) == "User-Agent" {
			continue
		}
		reqHeaders[k] = v
	}

	status, body, _, err := s.fetch(ctx, s.client, rawURL, reqHeaders)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, errors.Wrapf(ErrUpstream, "filemoon: embed page returned %d", status)
	}

	if m := iframeSrcRe.FindStringSubmatch(body); m != nil {
		iframeURL := resolveLocation(rawURL, m[1])
		iframeHeaders := map[string]string{
			"Referer":         rawURL,
			"Accept-Language": "de,en-US;q=0.7,en;q=0.3",
			"User-Agent":      filemoonUserAgent,
		}

		iframeStatus, iframeBody, _, err := s.fetch(ctx, s.client, iframeURL, iframeHeaders)
		if err == nil && iframeStatus == http.StatusOK {
			return s.jwplayer(ctx, iframeBody, iframeHeaders, "filemoon")
		}
	}

	return s.jwplayer(ctx, body, reqHeaders, "filemoon")
}
