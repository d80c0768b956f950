// Package m3u8 parses HLS master playlists into rankable stream variants.
package m3u8

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/EnricoBaivo/anyflix/internal/models"
	"github.com/EnricoBaivo/anyflix/internal/util"
)

// MediaTrack is one EXT-X-MEDIA rendition, filed under its (type, group-id)
// pair before stream variants reference it by group id.
type MediaTrack struct {
	Type       string
	Group      string
	Lang       string
	Name       string
	URI        string
	InstreamID string
	AssocLang  string
	Channels   string
	Default    bool
	Autoselect bool
}

// Variant is one quality/bitrate option within a master playlist.
// Document order is preserved.
type Variant struct {
	URL          string
	Bandwidth    int
	AvgBandwidth int
	Resolution   string
	Framerate    string
	Codecs       string
	Video        []MediaTrack
	Audio        []MediaTrack
	Subtitles    []MediaTrack
	Captions     []MediaTrack
	Quality      string
}

var (
	mediaLineRe  = regexp.MustCompile(`#EXT-X-MEDIA:(.*)`)
	streamLineRe = regexp.MustCompile(`#EXT-X-STREAM-INF:(.*)\s*(.*)`)

	mediaAttrRes = map[string]*regexp.Regexp{
		"type":        regexp.MustCompile(`\bTYPE=([\w-]*)`),
		"group":       regexp.MustCompile(`\bGROUP-ID="(.*?)"`),
		"lang":        regexp.MustCompile(`\bLANGUAGE="(.*?)"`),
		"name":        regexp.MustCompile(`\bNAME="(.*?)"`),
		"autoselect":  regexp.MustCompile(`\bAUTOSELECT=(\w*)`),
		"default":     regexp.MustCompile(`\bDEFAULT=(\w*)`),
		"instream-id": regexp.MustCompile(`\bINSTREAM-ID="(.*?)"`),
		"assoc-lang":  regexp.MustCompile(`\bASSOC-LANGUAGE="(.*?)"`),
		"channels":    regexp.MustCompile(`\bCHANNELS="(.*?)"`),
		"uri":         regexp.MustCompile(`\bURI="(.*?)"`),
	}

	streamAttrRes = map[string]*regexp.Regexp{
		"avg_bandwidth": regexp.MustCompile(`AVERAGE-BANDWIDTH=(\d+)`),
		"bandwidth":     regexp.MustCompile(`\bBANDWIDTH=(\d+)`),
		"resolution":    regexp.MustCompile(`\bRESOLUTION=([\dx]+)`),
		"framerate":     regexp.MustCompile(`\bFRAME-RATE=([\d.]+)`),
		"codecs":        regexp.MustCompile(`\bCODECS="(.*?)"`),
		"video":         regexp.MustCompile(`\bVIDEO="(.*?)"`),
		"audio":         regexp.MustCompile(`\bAUDIO="(.*?)"`),
		"subtitles":     regexp.MustCompile(`\bSUBTITLES="(.*?)"`),
		"captions":      regexp.MustCompile(`\bCLOSED-CAPTIONS="(.*?)"`),
	}

	resolutionHeightRe = regexp.MustCompile(`x(\d+)`)
)

func attr(re *regexp.Regexp, info string) string {
	if m := re.FindStringSubmatch(info); m != nil {
		return m[1]
	}
	return ""
}

// Parse reads a master playlist into its stream variants, resolving
// relative URLs against manifestURL and media-group references against
// the EXT-X-MEDIA lines. A playlist without EXT-X-STREAM-INF entries
// degrades to a single variant pointing at the manifest URL itself,
// since the input may already be a leaf media file.
func Parse(text, manifestURL string) []Variant {
	tracksByType := map[string]map[string][]MediaTrack{
		"VIDEO":           {},
		"AUDIO":           {},
		"SUBTITLES":       {},
		"CLOSED-CAPTIONS": {},
	}

	for _, m := range mediaLineRe.FindAllStringSubmatch(text, -1) {
		info := m[1]
		track := MediaTrack{
			Type:       attr(mediaAttrRes["type"], info),
			Group:      attr(mediaAttrRes["group"], info),
			Lang:       attr(mediaAttrRes["lang"], info),
			Name:       attr(mediaAttrRes["name"], info),
			URI:        absURL(attr(mediaAttrRes["uri"], info), manifestURL),
			InstreamID: attr(mediaAttrRes["instream-id"], info),
			AssocLang:  attr(mediaAttrRes["assoc-lang"], info),
			Channels:   attr(mediaAttrRes["channels"], info),
			Default:    attr(mediaAttrRes["default"], info) == "YES",
			Autoselect: attr(mediaAttrRes["autoselect"], info) == "YES",
		}
		if track.Type == "" || track.Group == "" {
			continue
		}
		groups, ok := tracksByType[track.Type]
		if !ok {
			continue
		}
		// Append, not overwrite: several tracks can share a group.
		groups[track.Group] = append(groups[track.Group], track)
	}

	var variants []Variant
	for _, m := range streamLineRe.FindAllStringSubmatch(text, -1) {
		info := m[1]
		streamURL := strings.TrimSpace(m[2])
		if streamURL == "" {
			continue
		}

		v := Variant{
			URL:          absURL(streamURL, manifestURL),
			Bandwidth:    atoi(attr(streamAttrRes["bandwidth"], info)),
			AvgBandwidth: atoi(attr(streamAttrRes["avg_bandwidth"], info)),
			Resolution:   attr(streamAttrRes["resolution"], info),
			Framerate:    attr(streamAttrRes["framerate"], info),
			Codecs:       attr(streamAttrRes["codecs"], info),
			Video:        tracksByType["VIDEO"][attr(streamAttrRes["video"], info)],
			Audio:        tracksByType["AUDIO"][attr(streamAttrRes["audio"], info)],
			Subtitles:    tracksByType["SUBTITLES"][attr(streamAttrRes["subtitles"], info)],
			Captions:     tracksByType["CLOSED-CAPTIONS"][attr(streamAttrRes["captions"], info)],
		}
		v.Quality = quality(v)
		variants = append(variants, v)
	}
	if len(variants) == 0 {
		return []Variant{{URL: manifestURL}}
	}
	return variants
}

// quality derives a label from the resolution height, falling back to the
// (average) bandwidth in Mb/s, else empty.
func quality(v Variant) string {
	if v.Resolution != "" {
		if m := resolutionHeightRe.FindStringSubmatch(v.Resolution); m != nil {
			return m[1] + "p"
		}
	}
	bandwidth := v.AvgBandwidth
	if bandwidth == 0 {
		bandwidth = v.Bandwidth
	}
	if bandwidth > 0 {
		return fmt.Sprintf("%.1fMb/s", float64(bandwidth)/1e6)
	}
	return ""
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

// absURL resolves ref against the manifest's own URL when relative.
func absURL(ref, base string) string {
	if ref == "" {
		return ""
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return ref
	}
	refURL, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return baseURL.ResolveReference(refURL).String()
}

// Client fetches playlists and turns them into video sources.
type Client struct {
	http *http.Client
}

// NewClient creates a playlist client. A nil httpClient falls back to the
// shared pooled client.
func NewClient(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = util.GetSharedClient()
	}
	return &Client{http: httpClient}
}

// Extract fetches the playlist at playlistURL and returns one video source
// per stream variant. Fetch failures and non-200 responses yield an empty
// result; a playlist without variants degrades to a single source pointing
// at the original URL, since the input may itself be a leaf media file.
func (c *Client) Extract(ctx context.Context, playlistURL string, headers map[string]string) []models.VideoSource {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, playlistURL, nil)
	if err != nil {
		util.Debug("m3u8: building request failed", "url", playlistURL, "error", err)
		return nil
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		util.Debug("m3u8: fetch failed", "url", playlistURL, "error", err)
		return nil
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		util.Debug("m3u8: unexpected status", "url", playlistURL, "status", resp.StatusCode)
		return nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		util.Debug("m3u8: reading body failed", "url", playlistURL, "error", err)
		return nil
	}

	return Sources(string(body), playlistURL, headers)
}

// Sources converts an already-fetched playlist into video sources.
func Sources(text, playlistURL string, headers map[string]string) []models.VideoSource {
	variants := Parse(text, playlistURL)

	sources := make([]models.VideoSource, 0, len(variants))
	for _, v := range variants {
		sources = append(sources, models.VideoSource{
			URL:         v.URL,
			OriginalURL: v.URL,
			Quality:     v.Quality,
			Headers:     headers,
			Subtitles:   trackList(v.Subtitles),
			Audios:      trackList(v.Audio),
		})
	}
	return sources
}

func trackList(tracks []MediaTrack) []models.Track {
	var out []models.Track
	for _, t := range tracks {
		if t.URI == "" {
			continue
		}
		out = append(out, models.Track{File: t.URI, Label: t.Name})
	}
	return out
}
