package extractor

import "net/url"

// resolveLocation resolves a possibly-relative redirect target against the
// URL it was served from. Unparseable input falls back to the target as-is.
func resolveLocation(base, ref string) string {
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

// originOf returns "scheme://host/" for a URL, or empty when it cannot
// be parsed.
func originOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host + "/"
}
