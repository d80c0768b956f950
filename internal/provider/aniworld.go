// Package provider orchestrates episode pages into playable video sources.
// It discovers the per-language host entries on an episode page, resolves
// each redirect and fans the embed URLs out to the extractor set.
package provider

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/pkg/errors"

	"github.com/EnricoBaivo/anyflix/internal/extractor"
	"github.com/EnricoBaivo/anyflix/internal/models"
	"github.com/EnricoBaivo/anyflix/internal/util"
)

const aniworldUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:132.0) Gecko/20100101 Firefox/132.0"

// MapLanguageCode normalizes a language name or code to one of the
// canonical codes "de", "en", "sub" or "all".
func MapLanguageCode(lang string) string {
	if lang == "" {
		return "all"
	}
	lower := strings.ToLower(lang)
	switch lower {
	case "de", "en", "sub", "all":
		return lower
	}
	switch {
	case strings.Contains(lower, "deutsch"):
		return "de"
	case strings.Contains(lower, "englisch"), strings.Contains(lower, "english"):
		return "en"
	default:
		return "sub"
	}
}

// hostEntry is one host/language row discovered on an episode page.
type hostEntry struct {
	host     string
	lang     string
	typ      string
	redirect string
}

// AniWorld resolves aniworld.to episode pages into video sources.
type AniWorld struct {
	client      *http.Client
	noRedirect  *http.Client
	extractors  *extractor.Set
	concurrency int
}

// NewAniWorld builds the orchestrator around an extractor set. Concurrency
// below one falls back to a serial pool.
func NewAniWorld(extractors *extractor.Set, concurrency int) *AniWorld {
	if concurrency < 1 {
		concurrency = 1
	}
	return &AniWorld{
		client:      util.GetSharedClient(),
		noRedirect:  util.GetNoRedirectClient(),
		extractors:  extractors,
		concurrency: concurrency,
	}
}

// VideoList fetches an episode page and extracts all of its video sources.
// langFilter restricts results to one language code ("de", "en", "sub");
// empty or "all" keeps everything. Individual host failures are logged and
// skipped, never propagated.
func (p *AniWorld) VideoList(ctx context.Context, episodeURL, langFilter string) ([]models.VideoSource, error) {
	headers := map[string]string{
		"Accept":     "*/*",
		"Referer":    episodeURL,
		"Priority":   "u=0, i",
		"User-Agent": aniworldUserAgent,
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, episodeURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "building episode request")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "fetching episode page %s", episodeURL)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("episode page %s returned %d", episodeURL, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "parsing episode page")
	}

	entries := p.hostEntries(doc, episodeURL, langFilter)
	util.Debug("episode page parsed", "url", episodeURL, "hosts", len(entries))

	// Fan out, keeping the discovery order of the page in the result.
	results := make([][]models.VideoSource, len(entries))
	var mu sync.Mutex
	pool := util.NewWorkerPool(p.concurrency)
	for i, entry := range entries {
		i, entry := i, entry
		pool.Submit(func() {
			sources := p.extractHost(ctx, entry)
			mu.Lock()
			results[i] = sources
			mu.Unlock()
		})
	}
	pool.Wait()

	var videos []models.VideoSource
	for _, sources := range results {
		videos = append(videos, sources...)
	}
	return videos, nil
}

// hostEntries parses the language/host rows of an episode page. Rows with
// an unknown language key, a failing filter or no redirect link are skipped.
func (p *AniWorld) hostEntries(doc *goquery.Document, episodeURL, langFilter string) []hostEntry {
	filter := MapLanguageCode(langFilter)
	var entries []hostEntry

	doc.Find("ul.row li").Each(func(_ int, sel *goquery.Selection) {
		var lang, typ string
		switch sel.AttrOr("data-lang-key", "") {
		case "1":
			lang, typ = "Deutsch", "Dub"
		case "2":
			lang, typ = "Englisch", "Sub"
		case "3":
			lang, typ = "Deutsch", "Sub"
		default:
			lang, typ = "Unknown", "Unknown"
		}

		host := strings.TrimSpace(sel.Find("a h4").First().Text())

		if langFilter != "" && filter != "all" && MapLanguageCode(lang) != filter {
			util.Debug("skipping host for language filter", "host", host, "lang", lang, "filter", filter)
			return
		}

		href, ok := sel.Find("a.watchEpisode").First().Attr("href")
		if !ok || href == "" {
			return
		}

		entries = append(entries, hostEntry{
			host:     host,
			lang:     lang,
			typ:      typ,
			redirect: absoluteURL(episodeURL, href),
		})
	})
	return entries
}

// extractHost resolves one redirect row and runs the matching extractor.
// The redirect endpoint answers with a 3xx whose Location is the real
// embed URL; a direct GET serves a decoy page instead.
func (p *AniWorld) extractHost(ctx context.Context, entry hostEntry) []models.VideoSource {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, entry.redirect, nil)
	if err != nil {
		util.Warn("building redirect request failed", "host", entry.host, "error", err)
		return nil
	}
	req.Header.Set("User-Agent", aniworldUserAgent)
	req.Header.Set("Referer", entry.redirect)

	resp, err := p.noRedirect.Do(req)
	if err != nil {
		util.Warn("redirect request failed", "host", entry.host, "error", err)
		return nil
	}
	_ = resp.Body.Close()

	location := resp.Header.Get("Location")
	if location == "" {
		util.Warn("no location header", "host", entry.host, "status", resp.StatusCode)
		return nil
	}
	embedURL := absoluteURL(entry.redirect, location)

	util.Debug("extracting", "host", entry.host, "url", embedURL)
	sources := p.extractors.Extract(ctx, entry.host, embedURL, map[string]string{
		"Referer": originOf(entry.redirect),
	})

	langCode := MapLanguageCode(entry.lang)
	for i := range sources {
		sources[i].Language = langCode
		sources[i].Type = entry.typ
		if sources[i].Quality != "" {
			sources[i].Quality = entry.lang + " " + entry.typ + " " + sources[i].Quality + " " + entry.host
		} else {
			sources[i].Quality = entry.lang + " " + entry.typ + " " + entry.host
		}
	}
	util.Debug("extraction finished", "host", entry.host, "sources", len(sources))
	return sources
}

// absoluteURL resolves ref against base; on parse failure ref is returned
// as-is.
func absoluteURL(base, ref string) string {
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}

// originOf returns "scheme://host/" of a URL, or empty when unparsable.
func originOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host + "/"
}
