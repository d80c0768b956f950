package extractor

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/lrstanley/go-ytdlp"
	"github.com/pkg/errors"

	"github.com/EnricoBaivo/anyflix/internal/models"
)

// YTDLPResolver resolves embed URLs through the yt-dlp tool. Hosts that
// yt-dlp recognizes shortcut the whole bespoke pipeline.
type YTDLPResolver struct {
	installOnce sync.Once
	installErr  error
}

// NewYTDLPResolver creates the resolver. The yt-dlp binary is installed
// lazily on first use.
func NewYTDLPResolver() *YTDLPResolver {
	return &YTDLPResolver{}
}

type ytdlpFormat struct {
	URL      string `json:"url"`
	FormatID string `json:"format_id"`
}

type ytdlpInfo struct {
	URL      string        `json:"url"`
	FormatID string        `json:"format_id"`
	Formats  []ytdlpFormat `json:"formats"`
}

// Resolve asks yt-dlp for the media URLs behind url without downloading.
// Unsupported hosts come back as an empty result.
func (r *YTDLPResolver) Resolve(ctx context.Context, url string) ([]models.VideoSource, error) {
	r.installOnce.Do(func() {
		_, r.installErr = ytdlp.Install(ctx, nil)
	})
	if r.installErr != nil {
		return nil, errors.Wrap(r.installErr, "ytdlp: install failed")
	}

	dl := ytdlp.New().
		NoWarnings().
		SkipDownload().
		DumpSingleJSON()

	result, err := dl.Run(ctx, url)
	if err != nil {
		// yt-dlp not knowing a host is the normal "not applicable" case.
		return nil, nil
	}

	var info ytdlpInfo
	if err := json.Unmarshal([]byte(result.Stdout), &info); err != nil {
		return nil, errors.Wrap(ErrMalformed, "ytdlp: parsing info JSON")
	}

	var sources []models.VideoSource
	if info.URL != "" {
		quality := info.FormatID
		if quality == "" {
			quality = "unknown"
		}
		sources = append(sources, models.VideoSource{
			URL:         info.URL,
			OriginalURL: url,
			Quality:     quality,
			Host:        "ytdlp",
		})
	}
	for _, f := range info.Formats {
		if f.URL == "" {
			continue
		}
		quality := f.FormatID
		if quality == "" {
			quality = "unknown"
		}
		sources = append(sources, models.VideoSource{
			URL:         f.URL,
			OriginalURL: url,
			Quality:     quality,
			Host:        "ytdlp",
		})
	}
	return sources, nil
}
