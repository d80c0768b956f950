package m3u8

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const masterPlaylist = `#EXTM3U
#EXT-X-MEDIA:TYPE=AUDIO,GROUP-ID="aud",LANGUAGE="de",NAME="Deutsch",DEFAULT=YES,AUTOSELECT=YES,URI="audio/de.m3u8"
#EXT-X-MEDIA:TYPE=AUDIO,GROUP-ID="aud",LANGUAGE="en",NAME="English",URI="audio/en.m3u8"
#EXT-X-MEDIA:TYPE=SUBTITLES,GROUP-ID="subs",LANGUAGE="de",NAME="Deutsch",URI="subs/de.m3u8"
#EXT-X-STREAM-INF:BANDWIDTH=5000000,AVERAGE-BANDWIDTH=4500000,RESOLUTION=1920x1080,FRAME-RATE=25.000,CODECS="avc1.640028,mp4a.40.2",AUDIO="aud",SUBTITLES="subs"
hd/index.m3u8
#EXT-X-STREAM-INF:BANDWIDTH=2500000,RESOLUTION=1280x720,AUDIO="aud"
sd/index.m3u8
`

func TestParseMasterPlaylist(t *testing.T) {
	t.Parallel()

	variants := Parse(masterPlaylist, "https://cdn.example.com/v/master.m3u8")
	require.Len(t, variants, 2)

	hd := variants[0]
	assert.Equal(t, "https://cdn.example.com/v/hd/index.m3u8", hd.URL)
	assert.Equal(t, 5000000, hd.Bandwidth)
	assert.Equal(t, 4500000, hd.AvgBandwidth)
	assert.Equal(t, "1920x1080", hd.Resolution)
	assert.Equal(t, "25.000", hd.Framerate)
	assert.Equal(t, "avc1.640028,mp4a.40.2", hd.Codecs)
	assert.Equal(t, "1080p", hd.Quality)

	// Both audio renditions of the "aud" group are attached.
	require.Len(t, hd.Audio, 2)
	assert.Equal(t, "https://cdn.example.com/v/audio/de.m3u8", hd.Audio[0].URI)
	assert.True(t, hd.Audio[0].Default)
	assert.Equal(t, "en", hd.Audio[1].Lang)

	require.Len(t, hd.Subtitles, 1)
	assert.Equal(t, "Deutsch", hd.Subtitles[0].Name)

	sd := variants[1]
	assert.Equal(t, "https://cdn.example.com/v/sd/index.m3u8", sd.URL)
	assert.Equal(t, "720p", sd.Quality)
	assert.Len(t, sd.Audio, 2)
	assert.Empty(t, sd.Subtitles)
}

func TestParseQualityFromBandwidth(t *testing.T) {
	t.Parallel()

	playlist := "#EXTM3U\n#EXT-X-STREAM-INF:BANDWIDTH=2500000\nlow.m3u8\n"
	variants := Parse(playlist, "https://cdn.example.com/master.m3u8")
	require.Len(t, variants, 1)
	assert.Equal(t, "2.5Mb/s", variants[0].Quality)
}

func TestParseNoVariants(t *testing.T) {
	t.Parallel()

	// A playlist without stream entries is itself the media.
	variants := Parse("#EXTM3U\n#EXT-X-TARGETDURATION:10\nsegment0.ts\n", "https://x.example/leaf.m3u8")
	require.Len(t, variants, 1)
	assert.Equal(t, "https://x.example/leaf.m3u8", variants[0].URL)
	assert.Empty(t, variants[0].Quality)
}

func TestSourcesLeafPlaylist(t *testing.T) {
	t.Parallel()

	headers := map[string]string{"Referer": "https://host.example/"}
	sources := Sources("#EXTM3U\n#EXT-X-TARGETDURATION:10\n", "https://x.example/leaf.m3u8", headers)

	require.Len(t, sources, 1)
	assert.Equal(t, "https://x.example/leaf.m3u8", sources[0].URL)
	assert.Equal(t, headers, sources[0].Headers)
}

func TestClientExtract(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "https://host.example/", r.Header.Get("Referer"))
		_, _ = w.Write([]byte(masterPlaylist))
	}))
	defer server.Close()

	client := NewClient(server.Client())
	sources := client.Extract(context.Background(), server.URL+"/master.m3u8", map[string]string{
		"Referer": "https://host.example/",
	})

	require.Len(t, sources, 2)
	assert.Equal(t, server.URL+"/hd/index.m3u8", sources[0].URL)
	assert.Equal(t, "1080p", sources[0].Quality)
	assert.Equal(t, "720p", sources[1].Quality)
	require.Len(t, sources[0].Subtitles, 1)
	assert.Equal(t, "Deutsch", sources[0].Subtitles[0].Label)
}

func TestClientExtractUpstreamFailure(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	client := NewClient(server.Client())
	assert.Nil(t, client.Extract(context.Background(), server.URL+"/master.m3u8", nil))
}
