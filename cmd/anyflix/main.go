package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/EnricoBaivo/anyflix/internal/config"
	"github.com/EnricoBaivo/anyflix/internal/extractor"
	"github.com/EnricoBaivo/anyflix/internal/models"
	"github.com/EnricoBaivo/anyflix/internal/provider"
	"github.com/EnricoBaivo/anyflix/internal/util"
)

func main() {
	debugFlag := flag.Bool("debug", false, "enable debug logging")
	configFlag := flag.String("config", "", "path to a TOML config file")
	langFlag := flag.String("lang", "", "language filter for episode mode (de, en, sub)")
	ytdlpFlag := flag.Bool("ytdlp", false, "try yt-dlp metadata extraction before scraping")
	flag.Parse()

	util.IsDebug = *debugFlag
	util.InitLogger()

	cfg, err := config.Load(*configFlag)
	if err != nil {
		util.Errorf("loading config: %v", err)
		os.Exit(1)
	}

	args := flag.Args()
	if len(args) != 2 {
		usage()
		os.Exit(2)
	}

	// Shallow copies share the pooled transport but honor the configured
	// per-request timeout.
	client := *util.GetSharedClient()
	client.Timeout = cfg.Timeout()
	noRedirect := *util.GetNoRedirectClient()
	noRedirect.Timeout = cfg.Timeout()

	opts := extractor.Options{
		Client:           &client,
		NoRedirectClient: &noRedirect,
		Bait:             cfg.Bait,
		UserAgents:       cfg.UserAgents,
		CacheTTL:         cfg.CacheTTL(),
	}
	if *ytdlpFlag {
		opts.Resolver = extractor.NewYTDLPResolver()
	}
	set := extractor.NewSet(opts)

	ctx := context.Background()
	var sources []models.VideoSource

	if strings.EqualFold(args[0], "episode") {
		aniworld := provider.NewAniWorld(set, cfg.Concurrency)
		sources, err = aniworld.VideoList(ctx, args[1], *langFlag)
		if err != nil {
			util.Errorf("resolving episode: %v", err)
			os.Exit(1)
		}
	} else {
		sources = set.Extract(ctx, args[0], args[1], nil)
	}

	out, err := json.MarshalIndent(sources, "", "  ")
	if err != nil {
		util.Errorf("encoding result: %v", err)
		os.Exit(1)
	}
	fmt.Println(string(out))
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage:
  anyflix [flags] <host> <embed-url>     extract sources from one host page
  anyflix [flags] episode <episode-url>  extract sources for a whole episode

Hosts: doodstream, filemoon, luluvdo, speedfiles, vidmoly, vidoza, voe

Flags:
`)
	flag.PrintDefaults()
}
