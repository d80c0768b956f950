// Package models contains data structures for resolved video sources
package models

// Track is a single subtitle or audio rendition attached to a video source.
type Track struct {
	File  string `json:"file"`
	Label string `json:"label"`
}

// VideoSource is one playable media URL resolved by an extractor.
//
// URL is always absolute; an extractor that fails returns no sources at
// all rather than a source with an empty URL. Language and Type are dub/sub
// classifiers filled in by the caller after extraction, never by the
// extractor itself.
type VideoSource struct {
	URL           string            `json:"url"`
	OriginalURL   string            `json:"original_url"`
	Quality       string            `json:"quality"`
	Language      string            `json:"language,omitempty"`
	Type          string            `json:"type,omitempty"`
	Host          string            `json:"host,omitempty"`
	RequiresProxy bool              `json:"requires_proxy"`
	Headers       map[string]string `json:"headers,omitempty"`
	Subtitles     []Track           `json:"subtitles,omitempty"`
	Audios        []Track           `json:"audios,omitempty"`
}
