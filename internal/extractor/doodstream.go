package extractor

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/EnricoBaivo/anyflix/internal/models"
	"github.com/EnricoBaivo/anyflix/internal/util"
)

const doodRedirectLimit = 10

var (
	doodHostRe = regexp.MustCompile(`(https?://[^/]+)/`)
	doodMD5Re  = regexp.MustCompile(`'/pass_md5/([^']+)'`)
)

// doodstream follows the embed's redirect chain manually, extracts the
// /pass_md5/ token path and assembles the final media URL from the token,
// a random suffix and an expiry timestamp.
func (s *Set) doodstream(ctx context.Context, rawURL string, headers map[string]string) ([]models.VideoSource, error) {
	if sources := s.metadataFirst(ctx, rawURL); len(sources) > 0 {
		return sources, nil
	}

	finalURL, body, err := s.followRedirects(ctx, rawURL, headers)
	if err != nil {
		return nil, err
	}

	hostMatch := doodHostRe.FindStringSubmatch(finalURL)
	if hostMatch == nil {
		return nil, errors.Wrap(ErrNotFound, "doodstream: no host in final URL")
	}
	doodOrigin := hostMatch[1]

	md5Match := doodMD5Re.FindStringSubmatch(body)
	if md5Match == nil {
		return nil, errors.Wrap(ErrNotFound, "doodstream: no pass_md5 path")
	}
	md5Path := md5Match[1]

	parts := strings.Split(md5Path, "/")
	token := parts[len(parts)-1]

	md5URL := fmt.Sprintf("%s/pass_md5/%s", doodOrigin, md5Path)
	status, prefix, _, err := s.fetch(ctx, s.client, md5URL, map[string]string{"Referer": finalURL})
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, errors.Wrapf(ErrUpstream, "doodstream: pass_md5 returned %d", status)
	}

	expiry := time.Now().UnixMilli()
	videoURL := fmt.Sprintf("%s%s?token=%s&expiry=%d", prefix, util.RandomString(10), token, expiry)

	return []models.VideoSource{{
		URL:         videoURL,
		OriginalURL: videoURL,
		Host:        "doodstream",
		Headers: map[string]string{
			"User-Agent": "Mangayomi",
			"Referer":    doodOrigin,
		},
	}}, nil
}

// followRedirects walks 3xx responses by hand so intermediate Location
// headers stay visible, returning the final URL and its body.
func (s *Set) followRedirects(ctx context.Context, rawURL string, headers map[string]string) (string, string, error) {
	current := rawURL
	for hop := 0; hop < doodRedirectLimit; hop++ {
		status, body, respHeaders, err := s.fetch(ctx, s.noRedirect, current, headers)
		if err != nil {
			return "", "", err
		}

		if isRedirect(status) {
			location := respHeaders.Get("Location")
			if location == "" {
				return "", "", errors.Wrapf(ErrUpstream, "doodstream: redirect %d without Location", status)
			}
			current = resolveLocation(current, location)
			continue
		}
		if status != http.StatusOK {
			return "", "", errors.Wrapf(ErrUpstream, "doodstream: final page returned %d", status)
		}
		return current, body, nil
	}
	return "", "", errors.Wrap(ErrUpstream, "doodstream: redirect limit reached")
}

func isRedirect(status int) bool {
	switch status {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	}
	return false
}
