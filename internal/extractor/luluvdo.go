package extractor

import (
	"context"
	"fmt"
	"net/http"
	"regexp"

	"github.com/pkg/errors"

	"github.com/EnricoBaivo/anyflix/internal/models"
)

var luluvdoURLRe = regexp.MustCompile(`(.*?://.*?)/.*/(.*)`)

// luluvdo rebuilds the host's embed endpoint from the file code in the
// URL, then extracts through the shared JWPlayer path.
func (s *Set) luluvdo(ctx context.Context, rawURL string, headers map[string]string) ([]models.VideoSource, error) {
	if sources := s.metadataFirst(ctx, rawURL); len(sources) > 0 {
		return sources, nil
	}

	m := luluvdoURLRe.FindStringSubmatch(rawURL)
	if m == nil {
		return nil, errors.Wrap(ErrNotFound, "luluvdo: unexpected URL shape")
	}
	embedURL := fmt.Sprintf("%s/dl?op=embed&file_code=%s", m[1], m[2])

	reqHeaders := map[string]string{"User-Agent": "Mangayomi"}
	for k, v := range headers {
		reqHeaders[k] = v
	}

	status, body, _, err := s.fetch(ctx, s.client, embedURL, reqHeaders)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, errors.Wrapf(ErrUpstream, "luluvdo: embed page returned %d", status)
	}

	return s.jwplayer(ctx, body, reqHeaders, "luluvdo")
}
