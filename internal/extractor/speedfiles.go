package extractor

import (
	"context"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/EnricoBaivo/anyflix/internal/decoder"
	"github.com/EnricoBaivo/anyflix/internal/models"
)

var (
	speedfilesScriptRe = regexp.MustCompile(`(?s)<script[^>]*>.*?var\s+[^<]*</script>`)
	speedfilesVarRe    = regexp.MustCompile(`(?:var|let|const)\s*\w+\s*=\s*["']([^"']+)["']`)
	// Letters outside [a-f0-9] mean base64, not hex.
	speedfilesB64HintRe = regexp.MustCompile(`[g-zG-Z]`)
)

// speedfiles digs the video URL out of a four-stage encoded blob embedded
// in a script variable: alternating base64/hex decodes with byte reversal
// and case swapping between stages.
func (s *Set) speedfiles(ctx context.Context, rawURL string, headers map[string]string) ([]models.VideoSource, error) {
	if sources := s.metadataFirst(ctx, rawURL); len(sources) > 0 {
		return sources, nil
	}

	status, body, _, err := s.fetch(ctx, s.client, rawURL, headers)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, errors.Wrapf(ErrUpstream, "speedfiles: page returned %d", status)
	}

	script := speedfilesScriptRe.FindString(body)
	if script == "" {
		return nil, errors.Wrap(ErrNotFound, "speedfiles: no script with variables")
	}

	var blob string
	for _, m := range speedfilesVarRe.FindAllStringSubmatch(script, -1) {
		if speedfilesB64HintRe.MatchString(m[1]) {
			blob = m[1]
			break
		}
	}
	if blob == "" {
		return nil, errors.Wrap(ErrNotFound, "speedfiles: no base64 candidate")
	}

	videoURL, err := decodeSpeedfiles(blob)
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(videoURL, "http") {
		return nil, errors.Wrap(ErrMalformed, "speedfiles: decoded value is not a URL")
	}

	return []models.VideoSource{{
		URL:         videoURL,
		OriginalURL: videoURL,
		Host:        "speedfiles",
	}}, nil
}

// decodeSpeedfiles runs the fixed four-stage pipeline. Stages 1 and 2 are
// base64-decode, byte-reverse, case-swap; stage 3 hex-decodes pairs,
// subtracts 3 from each byte and reverses; stage 4 base64-decodes into
// the final URL.
func decodeSpeedfiles(blob string) (string, error) {
	stage1, err := decoder.DecodeBase64Lenient(blob)
	if err != nil {
		return "", errors.Wrap(ErrMalformed, "speedfiles: stage 1 base64")
	}
	stage1Str := decoder.SwapCase(string(decoder.ReverseBytes(stage1)))

	stage2, err := decoder.DecodeBase64Lenient(stage1Str)
	if err != nil {
		return "", errors.Wrap(ErrMalformed, "speedfiles: stage 2 base64")
	}
	hexStr := string(decoder.ReverseBytes(stage2))

	var codes []int
	for i := 0; i+1 < len(hexStr); i += 2 {
		n, err := strconv.ParseInt(hexStr[i:i+2], 16, 32)
		if err != nil {
			continue
		}
		codes = append(codes, int(n)-3)
	}
	var stage3 strings.Builder
	for i := len(codes) - 1; i >= 0; i-- {
		if codes[i] >= 0 && codes[i] <= 127 {
			stage3.WriteByte(byte(codes[i]))
		}
	}
	stage3Str := decoder.SwapCase(stage3.String())

	final, err := decoder.DecodeBase64Lenient(stage3Str)
	if err != nil {
		return "", errors.Wrap(ErrMalformed, "speedfiles: stage 4 base64")
	}
	return string(final), nil
}
