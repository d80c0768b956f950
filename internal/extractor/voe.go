package extractor

import (
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/pkg/errors"

	"github.com/EnricoBaivo/anyflix/internal/decoder"
	"github.com/EnricoBaivo/anyflix/internal/models"
	"github.com/EnricoBaivo/anyflix/internal/util"
)

// voeMaxHops bounds redirect and iframe following so adversarial pages
// cannot loop the extractor forever.
const voeMaxHops = 5

var voeRedirectPatterns = []string{
	"window.location.href = '",
	"window.location = '",
	"location.href = '",
	"window.location.replace('",
	"window.location.assign('",
	`window.location="`,
	`window.location.href="`,
}

var (
	voeQualityRe    = regexp.MustCompile(`(?i)\b(\d{3,4}p)\b`)
	voeNameSanRe    = regexp.MustCompile(`[\\/*?:"<>|]`)
	voeM3U8Re       = regexp.MustCompile(`https?://[^"']+\.m3u8[^"'\s]*`)
	voeMP4Re        = regexp.MustCompile(`https?://[^"']+\.mp4[^"'\s]*`)
	voeBareMP4Re    = regexp.MustCompile(`https?://[^\s"]+\.mp4[^\s"]*`)
	voeBareM3U8Re   = regexp.MustCompile(`https?://[^\s"]+\.m3u8[^\s"]*`)
	voeBase64Re     = regexp.MustCompile(`base64[,:]([A-Za-z0-9+/=]+)`)
	voeA168cRe      = regexp.MustCompile(`(?s)a168c\s*=\s*'([^']+)'`)
	voeMKGMaRe      = regexp.MustCompile(`(?s)MKGMa="(.*?)"`)
	voeB64LinkRe    = regexp.MustCompile(`^[A-Za-z0-9+/=]+$`)
	voeSourcesTerms = []string{"var sources", "sources =", "sources:", `"sources":`, `'sources':`}
)

// voeObfuscationMarkers separate segments in the application/json payload.
var voeObfuscationMarkers = []string{"@$", "^^", "~@", "%?", "*~", "!!", "#&"}

// voeMedia is one discovered candidate: kind is "mp4" or "hls".
type voeMedia struct {
	kind string
	link string
}

// voe walks the host's page through an ordered chain of discovery methods,
// following script redirects and iframes as bounded hops rather than
// unbounded recursion.
func (s *Set) voe(ctx context.Context, rawURL string, _ map[string]string) ([]models.VideoSource, error) {
	if sources := s.metadataFirst(ctx, rawURL); len(sources) > 0 {
		return sources, nil
	}

	pageURL := rawURL
	for hop := 0; hop < voeMaxHops; hop++ {
		sources, next, err := s.voePage(ctx, pageURL, rawURL)
		if err != nil {
			return nil, err
		}
		if next != "" {
			util.Debug("voe: following", "from", pageURL, "to", next)
			pageURL = next
			continue
		}
		return sources, nil
	}
	return nil, errors.Wrap(ErrNotFound, "voe: hop limit reached")
}

// voePage extracts from a single page. A non-empty next URL means the page
// redirected (script redirect or iframe fallback) and the caller should
// hop there.
func (s *Set) voePage(ctx context.Context, pageURL, originalURL string) ([]models.VideoSource, string, error) {
	headers := s.voeBrowserHeaders(pageURL)

	status, body, _, err := s.fetch(ctx, s.client, pageURL, headers)
	if err != nil {
		return nil, "", err
	}

	// Retry once with freshly randomized headers on a block or captcha.
	if status == http.StatusForbidden || strings.Contains(strings.ToLower(body), "captcha") {
		util.Debug("voe: blocked, retrying with fresh headers", "url", pageURL)
		headers = s.voeBrowserHeaders(pageURL)
		status, body, _, err = s.fetch(ctx, s.client, pageURL, headers)
		if err != nil {
			return nil, "", err
		}
	}
	if status != http.StatusOK {
		return nil, "", errors.Wrapf(ErrUpstream, "voe: page returned %d", status)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, "", errors.Wrap(ErrMalformed, "voe: parsing HTML")
	}

	if next := voeScriptRedirect(doc); next != "" {
		return nil, resolveLocation(pageURL, next), nil
	}

	quality := voeQuality(doc, pageURL)

	media, ok := s.voeDiscover(doc, body)
	if !ok {
		// Last resort: hop into the first iframe.
		if next := voeIframeTarget(doc, pageURL); next != "" {
			return nil, next, nil
		}
		return nil, "", errors.Wrap(ErrNotFound, "voe: no source found in page")
	}

	link := media.link
	// Some variants hide the URL behind one more base64 layer.
	if strings.HasPrefix(link, "eyJ") || voeB64LinkRe.MatchString(link) {
		if data, err := decoder.DecodeBase64Lenient(link); err == nil {
			link = string(data)
		}
	}
	if strings.HasPrefix(link, "//") {
		link = "https:" + link
	}

	return []models.VideoSource{{
		URL:         link,
		OriginalURL: originalURL,
		Quality:     quality,
		Host:        "voe",
		Headers:     headers,
	}}, "", nil
}

// voeDiscover tries the eight source-discovery methods in fixed priority
// order; the first hit wins.
func (s *Set) voeDiscover(doc *goquery.Document, body string) (voeMedia, bool) {
	type method func() (voeMedia, bool)
	methods := []method{
		func() (voeMedia, bool) { return s.voeVarSources(body) },
		func() (voeMedia, bool) { return s.voeScriptSources(doc) },
		func() (voeMedia, bool) { return s.voeVideoTags(doc) },
		func() (voeMedia, bool) { return s.voeBareURLs(body) },
		func() (voeMedia, bool) { return voeBase64Blobs(body) },
		func() (voeMedia, bool) { return voeA168c(body) },
		func() (voeMedia, bool) { return voeMKGMa(body) },
		func() (voeMedia, bool) { return voeObfuscatedJSON(doc) },
	}
	for _, m := range methods {
		if media, ok := m(); ok {
			return media, true
		}
	}
	return voeMedia{}, false
}

var voeTrailingCommaRe = regexp.MustCompile(`,\s*}`)

// Method 1: a `var sources = {...}` object in the page.
func (s *Set) voeVarSources(body string) (voeMedia, bool) {
	start := strings.Index(body, "var sources")
	if start < 0 {
		return voeMedia{}, false
	}
	segment := body[start:]
	end := strings.Index(segment, ";")
	if end < 0 {
		return voeMedia{}, false
	}
	segment = segment[:end]
	segment = strings.TrimPrefix(segment, "var sources = ")
	segment = strings.ReplaceAll(segment, "'", `"`)
	segment = strings.ReplaceAll(segment, `\n`, "")
	segment = strings.ReplaceAll(segment, `\`, "")

	if s.bait.IsBait(segment) {
		util.Debug("voe: ignoring bait source block")
		return voeMedia{}, false
	}

	// Drop a trailing comma before the closing brace.
	segment = voeTrailingCommaRe.ReplaceAllString(segment, "}")

	var parsed map[string]any
	if err := json.Unmarshal([]byte(segment), &parsed); err != nil {
		return voeMedia{}, false
	}
	return voeMediaFromMap(parsed)
}

// Method 2: any script mentioning a sources marker, extracted by counting
// braces from the first { after the marker.
func (s *Set) voeScriptSources(doc *goquery.Document) (voeMedia, bool) {
	var media voeMedia
	found := false

	doc.Find("script").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		text := sel.Text()
		if text == "" {
			return true
		}
		for _, term := range voeSourcesTerms {
			start := strings.Index(text, term)
			if start < 0 {
				continue
			}
			braceIdx := strings.Index(text[start:], "{")
			if braceIdx < 0 {
				continue
			}
			braceIdx += start

			count := 1
			end := braceIdx + 1
			for count > 0 && end < len(text) {
				switch text[end] {
				case '{':
					count++
				case '}':
					count--
				}
				end++
			}
			if count != 0 {
				continue
			}

			jsonStr := strings.ReplaceAll(text[braceIdx:end], "'", `"`)
			var parsed map[string]any
			if err := json.Unmarshal([]byte(jsonStr), &parsed); err != nil {
				continue
			}
			if m, ok := voeMediaFromMap(parsed); ok {
				media = m
				found = true
				return false
			}
		}
		return true
	})
	return media, found
}

// Method 3: a <video> or nested <source> tag's src attribute.
func (s *Set) voeVideoTags(doc *goquery.Document) (voeMedia, bool) {
	var media voeMedia
	found := false

	doc.Find("video").EachWithBreak(func(_ int, video *goquery.Selection) bool {
		if src, ok := video.Attr("src"); ok && src != "" {
			if s.bait.IsBait(src) {
				util.Debug("voe: ignoring bait source", "url", src)
				return true
			}
			media = voeMedia{kind: "mp4", link: src}
			found = true
			return false
		}

		video.Find("source").EachWithBreak(func(_ int, source *goquery.Selection) bool {
			src, ok := source.Attr("src")
			if !ok || src == "" {
				return true
			}
			if s.bait.IsBait(src) {
				util.Debug("voe: ignoring bait source", "url", src)
				return true
			}
			typeAttr, _ := source.Attr("type")
			kind := "mp4"
			if strings.Contains(typeAttr, "m3u8") || strings.Contains(typeAttr, "hls") {
				kind = "hls"
			}
			media = voeMedia{kind: kind, link: src}
			found = true
			return false
		})
		return !found
	})
	return media, found
}

// Method 4: a bare media URL anywhere in the page, playlists first.
func (s *Set) voeBareURLs(body string) (voeMedia, bool) {
	if m := voeM3U8Re.FindString(body); m != "" {
		if s.bait.IsBait(m) {
			util.Debug("voe: ignoring bait source", "url", m)
		} else {
			return voeMedia{kind: "hls", link: m}, true
		}
	}
	if m := voeMP4Re.FindString(body); m != "" {
		if s.bait.IsBait(m) {
			util.Debug("voe: ignoring bait source", "url", m)
		} else {
			return voeMedia{kind: "mp4", link: m}, true
		}
	}
	return voeMedia{}, false
}

// Method 5: a base64 data blob that decodes to a media URL.
func voeBase64Blobs(body string) (voeMedia, bool) {
	for _, m := range voeBase64Re.FindAllStringSubmatch(body, -1) {
		data, err := decoder.DecodeBase64Lenient(m[1])
		if err != nil {
			continue
		}
		decoded := string(data)
		if strings.Contains(decoded, ".mp4") {
			return voeMedia{kind: "mp4", link: decoded}, true
		}
		if strings.Contains(decoded, ".m3u8") {
			return voeMedia{kind: "hls", link: decoded}, true
		}
	}
	return voeMedia{}, false
}

// Method 6: an a168c='<base64>' blob: decode, reverse, then JSON or a
// regex fallback.
func voeA168c(body string) (voeMedia, bool) {
	m := voeA168cRe.FindStringSubmatch(body)
	if m == nil {
		return voeMedia{}, false
	}
	data, err := decoder.DecodeBase64Lenient(m[1])
	if err != nil {
		return voeMedia{}, false
	}
	return voeMediaFromDecoded(decoder.ReverseString(string(data)))
}

// Method 7: an MKGMa="..." blob: ROT13, strip underscores, base64,
// shift-by-3, reverse, base64 again.
func voeMKGMa(body string) (voeMedia, bool) {
	m := voeMKGMaRe.FindStringSubmatch(body)
	if m == nil {
		return voeMedia{}, false
	}

	step := decoder.Rot13(m[1])
	step = strings.ReplaceAll(step, "_", "")
	data, err := decoder.DecodeBase64Lenient(step)
	if err != nil {
		return voeMedia{}, false
	}
	step = decoder.ShiftChars(string(data), 3)
	step = decoder.ReverseString(step)
	inner, err := decoder.DecodeBase64Lenient(step)
	if err != nil {
		return voeMedia{}, false
	}
	return voeMediaFromDecoded(string(inner))
}

// Method 8: an obfuscated JSON array inside <script type="application/json">:
// ROT13, strip marker substrings, base64, shift-by-3, reverse, base64.
func voeObfuscatedJSON(doc *goquery.Document) (voeMedia, bool) {
	var media voeMedia
	found := false

	doc.Find(`script[type="application/json"]`).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		raw := strings.TrimSpace(sel.Text())
		if raw == "" {
			return true
		}

		var arr []string
		if err := json.Unmarshal([]byte(raw), &arr); err != nil || len(arr) == 0 {
			return true
		}

		step := decoder.Rot13(arr[0])
		for _, marker := range voeObfuscationMarkers {
			step = strings.ReplaceAll(step, marker, "")
		}
		data, err := decoder.DecodeBase64Lenient(step)
		if err != nil {
			return true
		}
		step = decoder.ShiftChars(string(data), 3)
		step = decoder.ReverseString(step)
		inner, err := decoder.DecodeBase64Lenient(step)
		if err != nil {
			return true
		}

		if m, ok := voeMediaFromDecoded(string(inner)); ok {
			media = m
			found = true
			return false
		}
		return true
	})
	return media, found
}

// voeMediaFromDecoded interprets a fully decoded blob: structured JSON
// when possible, else a regex sweep for a bare media URL.
func voeMediaFromDecoded(decoded string) (voeMedia, bool) {
	var parsed map[string]any
	if err := json.Unmarshal([]byte(decoded), &parsed); err == nil {
		if link, ok := parsed["direct_access_url"].(string); ok && link != "" {
			return voeMedia{kind: "mp4", link: link}, true
		}
		if link, ok := parsed["source"].(string); ok && link != "" {
			return voeMedia{kind: "hls", link: link}, true
		}
		return voeMediaFromMap(parsed)
	}

	if m := voeBareMP4Re.FindString(decoded); m != "" {
		return voeMedia{kind: "mp4", link: m}, true
	}
	if m := voeBareM3U8Re.FindString(decoded); m != "" {
		return voeMedia{kind: "hls", link: m}, true
	}
	return voeMedia{}, false
}

func voeMediaFromMap(parsed map[string]any) (voeMedia, bool) {
	if link, ok := parsed["mp4"].(string); ok && link != "" {
		return voeMedia{kind: "mp4", link: link}, true
	}
	if link, ok := parsed["hls"].(string); ok && link != "" {
		return voeMedia{kind: "hls", link: link}, true
	}
	return voeMedia{}, false
}

// voeScriptRedirect returns the target of a window.location-style redirect
// found in any script tag.
func voeScriptRedirect(doc *goquery.Document) string {
	var target string
	doc.Find("script").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		text := sel.Text()
		if text == "" {
			return true
		}
		for _, pattern := range voeRedirectPatterns {
			start := strings.Index(text, pattern)
			if start < 0 {
				continue
			}
			closingQuote := byte('\'')
			if strings.HasSuffix(pattern, `"`) {
				closingQuote = '"'
			}
			rest := text[start+len(pattern):]
			end := strings.IndexByte(rest, closingQuote)
			if end > 0 {
				target = rest[:end]
				return false
			}
		}
		return true
	})
	return target
}

// voeIframeTarget returns the absolutized src of the first iframe.
func voeIframeTarget(doc *goquery.Document, pageURL string) string {
	var target string
	doc.Find("iframe").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		src, ok := sel.Attr("src")
		if !ok || src == "" {
			return true
		}
		switch {
		case strings.HasPrefix(src, "//"):
			target = "https:" + src
		case strings.HasPrefix(src, "http://"), strings.HasPrefix(src, "https://"):
			target = src
		default:
			target = resolveLocation(pageURL, src)
		}
		return false
	})
	return target
}

// voeQuality infers a quality label from the page title. The sanitized
// title usually carries the release name, e.g. "…720p.WebRip.x264".
func voeQuality(doc *goquery.Document, pageURL string) string {
	var name string
	for _, meta := range []string{"og:title", "twitter:title", "title"} {
		sel := doc.Find(`meta[property="` + meta + `"]`)
		if sel.Length() == 0 {
			sel = doc.Find(`meta[name="` + meta + `"]`)
		}
		if content, ok := sel.Attr("content"); ok && content != "" {
			name = content
			break
		}
	}
	if name == "" {
		name = doc.Find("title").Text()
	}
	if name == "" {
		parts := strings.Split(pageURL, "/")
		name = parts[len(parts)-1]
	}

	name = voeNameSanRe.ReplaceAllString(name, "_")
	name = strings.ReplaceAll(name, " ", "_")

	if m := voeQualityRe.FindStringSubmatch(name); m != nil {
		return strings.ToLower(m[1])
	}
	return "unknown"
}

// voeBrowserHeaders synthesizes realistic browser headers with a rotated
// user agent and a referer derived from the target URL. Accept-Encoding is
// left to the transport: setting it by hand disables net/http's transparent
// gzip decompression and the page scan would see compressed bytes.
func (s *Set) voeBrowserHeaders(rawURL string) map[string]string {
	referer := ""
	if u, err := url.Parse(rawURL); err == nil && u.Scheme != "" && u.Host != "" {
		referer = u.Scheme + "://" + u.Host + "/"
	}

	headers := map[string]string{
		"User-Agent":                s.userAgents[rand.Intn(len(s.userAgents))],
		"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
		"Accept-Language":           "en-US,en;q=0.9",
		"Connection":                "keep-alive",
		"Upgrade-Insecure-Requests": "1",
		"Sec-Fetch-Dest":            "document",
		"Sec-Fetch-Mode":            "navigate",
		"Sec-Fetch-Site":            "none",
		"Sec-Fetch-User":            "?1",
		"Cache-Control":             "max-age=0",
		"DNT":                       "1",
		"Priority":                  "u=1",
	}
	if referer != "" {
		headers["Referer"] = referer
		headers["Sec-Fetch-Site"] = "same-origin"
	}
	return headers
}
