package extractor

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/pkg/errors"

	"github.com/EnricoBaivo/anyflix/internal/decoder"
	"github.com/EnricoBaivo/anyflix/internal/models"
)

var (
	jwSetupRe   = regexp.MustCompile(`setup\(({[\s\S]*?})\)`)
	jwSourcesRe = regexp.MustCompile(`sources:\s*(\[[\s\S]*?\])`)
	jwTracksRe  = regexp.MustCompile(`tracks:\s*(\[[\s\S]*?\])`)

	// Quote bare object keys. Matching only after {, [ or , keeps URL
	// schemes like "https:" untouched.
	jsBareKeyRe     = regexp.MustCompile(`([{\[,]\s*)([A-Za-z_]\w*)\s*:`)
	jsSingleQuoteRe = regexp.MustCompile(`'([^']*)'`)
	jsUndefinedRe   = regexp.MustCompile(`\bundefined\b`)
)

type jwSource struct {
	File  string `json:"file"`
	Label string `json:"label"`
	Type  string `json:"type"`
}

type jwTrack struct {
	File  string `json:"file"`
	Label string `json:"label"`
	Type  string `json:"type"`
	Kind  string `json:"kind"`
}

type jwSetup struct {
	Sources []jwSource `json:"sources"`
	Tracks  []jwTrack  `json:"tracks"`
}

// jwplayer pulls sources and caption tracks out of a JWPlayer setup({...})
// call, trying both the raw page text and its unpacked form. Master
// playlists are expanded through the manifest parser; DASH manifests are
// recognized but not resolved.
func (s *Set) jwplayer(ctx context.Context, text string, headers map[string]string, host string) ([]models.VideoSource, error) {
	unpacked, _ := decoder.UnpackAndCombine(text)

	setup, ok := findSetup(text)
	if !ok {
		setup, ok = findSetup(unpacked)
	}

	var sources []jwSource
	var tracks []jwTrack
	if ok {
		sources = setup.Sources
		tracks = setup.Tracks
	} else {
		sources = findArray[jwSource](text, jwSourcesRe)
		if sources == nil {
			sources = findArray[jwSource](unpacked, jwSourcesRe)
		}
		tracks = findArray[jwTrack](text, jwTracksRe)
		if tracks == nil {
			tracks = findArray[jwTrack](unpacked, jwTracksRe)
		}
	}
	if len(sources) == 0 {
		return nil, errors.Wrap(ErrNotFound, "jwplayer: no sources in setup")
	}

	var subtitles []models.Track
	for _, t := range tracks {
		if (t.Type != "captions" && t.Kind != "captions") || t.File == "" {
			continue
		}
		label := t.Label
		if label == "" {
			label = "Unknown"
		}
		subtitles = append(subtitles, models.Track{File: t.File, Label: label})
	}

	var videos []models.VideoSource
	for _, src := range sources {
		if src.File == "" {
			continue
		}
		switch {
		case strings.Contains(src.File, "master.m3u8"):
			videos = append(videos, s.playlists.Extract(ctx, src.File, headers)...)
		case strings.Contains(src.File, ".mpd"):
			// DASH is recognized but not resolved.
		default:
			videos = append(videos, models.VideoSource{
				URL:         src.File,
				OriginalURL: src.File,
				Quality:     src.Label,
				Headers:     headers,
			})
		}
	}

	for i := range videos {
		videos[i].Host = host
		videos[i].Subtitles = mergeTracks(videos[i].Subtitles, subtitles)
	}
	return videos, nil
}

func findSetup(text string) (jwSetup, bool) {
	if text == "" {
		return jwSetup{}, false
	}
	m := jwSetupRe.FindStringSubmatch(text)
	if m == nil {
		return jwSetup{}, false
	}

	var setup jwSetup
	if err := json.Unmarshal([]byte(jsObjectToJSON(m[1])), &setup); err != nil {
		return jwSetup{}, false
	}
	return setup, true
}

func findArray[T any](text string, re *regexp.Regexp) []T {
	if text == "" {
		return nil
	}
	m := re.FindStringSubmatch(text)
	if m == nil {
		return nil
	}

	var items []T
	if err := json.Unmarshal([]byte(jsObjectToJSON(m[1])), &items); err != nil {
		return nil
	}
	return items
}

// jsObjectToJSON converts a JS object literal to parseable JSON: quote
// bare keys, single to double quotes, undefined to null.
func jsObjectToJSON(jsObj string) string {
	jsObj = jsBareKeyRe.ReplaceAllString(jsObj, `$1"$2":`)
	jsObj = jsSingleQuoteRe.ReplaceAllString(jsObj, `"$1"`)
	jsObj = jsUndefinedRe.ReplaceAllString(jsObj, "null")
	return jsObj
}

// mergeTracks appends extra tracks that existing does not already carry,
// de-duplicated by file.
func mergeTracks(existing, extra []models.Track) []models.Track {
	if len(extra) == 0 {
		return existing
	}
	seen := make(map[string]bool, len(existing))
	for _, t := range existing {
		seen[t.File] = true
	}
	for _, t := range extra {
		if !seen[t.File] {
			existing = append(existing, t)
			seen[t.File] = true
		}
	}
	return existing
}
