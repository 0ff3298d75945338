// Package main provides the airchart CLI entry point. Each subcommand is
// one job; the external scheduler owns the timing.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"

	"github.com/osterhagen/airchart/internal/app/correction"
	"github.com/osterhagen/airchart/internal/app/jobs"
	"github.com/osterhagen/airchart/internal/app/ranking"
	"github.com/osterhagen/airchart/internal/app/resolver"
	"github.com/osterhagen/airchart/internal/app/syncer"
	"github.com/osterhagen/airchart/internal/domain/scrape"
	"github.com/osterhagen/airchart/internal/infra/config"
	"github.com/osterhagen/airchart/internal/infra/logger"
	"github.com/osterhagen/airchart/internal/infra/spotify"
	"github.com/osterhagen/airchart/internal/infra/store"
)

var (
	app        = kingpin.New("airchart", "radio playlist catalog and chart sync")
	configPath = app.Flag("config", "Path to config file").Default("config/airchart.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stdout)").String()

	// scrape command
	scrapeCmd     = app.Command("scrape", "Scrape the previous broadcast hour and resolve it into the catalog")
	scrapeStation = scrapeCmd.Arg("station", "Configured station name").Required().String()
	scrapeHour    = scrapeCmd.Flag("hour", "Backfill an explicit hour of the current day instead of the previous hour").Default("-1").Int()

	// weekly-top command
	weeklyCmd     = app.Command("weekly-top", "Aggregate the weekly ranking and sync the remote playlist")
	weeklyStation = weeklyCmd.Arg("station", "Configured station name").Required().String()

	// new-releases command
	releasesCmd     = app.Command("new-releases", "Scrape the station's new-releases program and sync its remote playlist")
	releasesStation = releasesCmd.Arg("station", "Configured station name").Required().String()

	// fix command
	fixCmd   = app.Command("fix", "Repair a mis-resolved catalog track")
	fixTrack = fixCmd.Flag("track", "Catalog track id").Required().String()
	fixURI   = fixCmd.Flag("uri", "Corrected spotify track URI").Required().String()

	// dedupe command
	dedupeCmd = app.Command("dedupe", "Merge catalog tracks sharing an external URI")

	// list-scrapers command
	listScrapersCmd = app.Command("list-scrapers", "List registered scraper types and exit")
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	if command == listScrapersCmd.FullCommand() {
		for _, t := range scrape.Types() {
			fmt.Println(t)
		}
		return
	}

	loggerConfig := logger.Config{Level: "info", Output: "stdout"}
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.Output = *logfile
	}
	if err := logger.Init(loggerConfig); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}

	zlog.Info().Msgf("Loading config from %s", *configPath)
	cfg, err := config.Load(*configPath)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %v", err)
	}

	if err := run(command, cfg); err != nil {
		zlog.Error().Msgf("Job error: %v", err)
		os.Exit(1)
	}
}

// run wires the collaborators and dispatches the job. A separate function
// ensures defers fire before the error exit in main.
func run(command string, cfg *config.Config) error {
	ctx := context.Background()

	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open catalog store: %w", err)
	}
	defer st.Close()

	client, err := spotify.New(ctx, spotify.Config{
		ClientID:     cfg.Spotify.ClientID,
		ClientSecret: cfg.Spotify.ClientSecret,
		RefreshToken: cfg.Spotify.RefreshToken,
		Market:       cfg.Spotify.Market,
	})
	if err != nil {
		return fmt.Errorf("failed to create Spotify client: %w", err)
	}

	artistResolver := resolver.NewArtistResolver(st.Artists)
	runner := jobs.NewRunner(jobs.Deps{
		Tracks:        st.Tracks,
		Playlists:     st.Playlists,
		Resolver:      resolver.NewTrackResolver(st.Tracks, st.Artists, artistResolver, client),
		Syncer:        syncer.New(client),
		Ranking:       ranking.New(st.Playlists),
		Corrector:     correction.New(st.Tracks, st.Artists, artistResolver, st.Playlists, client),
		RankingConfig: cfg.Ranking,
	})

	now := time.Now()

	switch command {
	case scrapeCmd.FullCommand():
		station, err := cfg.Station(*scrapeStation)
		if err != nil {
			return err
		}
		scraper, err := scrape.New(station.Type, station.Settings)
		if err != nil {
			return err
		}
		if *scrapeHour >= 0 {
			return runner.Backfill(ctx, now, station, scraper, *scrapeHour)
		}
		return runner.Scrape(ctx, now, station, scraper)

	case weeklyCmd.FullCommand():
		station, err := cfg.Station(*weeklyStation)
		if err != nil {
			return err
		}
		return runner.WeeklyTop(ctx, now, station)

	case releasesCmd.FullCommand():
		station, err := cfg.Station(*releasesStation)
		if err != nil {
			return err
		}
		scraper, err := scrape.New(station.Type, station.Settings)
		if err != nil {
			return err
		}
		releases, ok := scraper.(scrape.ReleaseScraper)
		if !ok {
			return fmt.Errorf("scraper type %s does not support new releases", station.Type)
		}
		return runner.NewReleases(ctx, now, station, releases)

	case fixCmd.FullCommand():
		return runner.Fix(ctx, *fixTrack, *fixURI)

	case dedupeCmd.FullCommand():
		return runner.Dedupe(ctx)
	}
	return nil
}
