package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"oater/internal/catalog"
	"oater/internal/config"
	"oater/internal/database"
	"oater/internal/ingest"
	"oater/internal/logger"
	"oater/internal/report"
	"oater/internal/tmdb"
)

const usage = `Usage: oater <command> [flags]

Commands:
  load     import the bulk movie dataset into the catalog
  enrich   backfill crew and external ids from TMDb
  report   generate the analytical reports
  queries  run the canned analytical query set

Configuration is read from $OATER_CONFIG (or ./oater.yaml if present),
with environment variables taking precedence.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	configPath := os.Getenv("OATER_CONFIG")
	if configPath == "" {
		if _, err := os.Stat("./oater.yaml"); err == nil {
			configPath = "./oater.yaml"
		}
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "oater: %v\n", err)
		os.Exit(1)
	}
	logger.SetLevel(cfg.Logging.Level)

	ctx := context.Background()
	switch os.Args[1] {
	case "load":
		err = runLoad(ctx, cfg, os.Args[2:])
	case "enrich":
		err = runEnrich(ctx, cfg, os.Args[2:])
	case "report":
		err = runReport(ctx, cfg, os.Args[2:])
	case "queries":
		err = runQueries(ctx, cfg, os.Args[2:])
	case "-h", "--help", "help":
		fmt.Print(usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "oater: unknown command %q\n\n%s", os.Args[1], usage)
		os.Exit(2)
	}
	if err != nil {
		logger.Default().Error("command failed", "command", os.Args[1], "error", err)
		os.Exit(1)
	}
}

func openStore(cfg *config.Config) (*catalog.Store, error) {
	db, err := database.Open(&cfg.Database)
	if err != nil {
		return nil, err
	}
	return catalog.New(db), nil
}

func runLoad(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("load", flag.ExitOnError)
	dataset := fs.String("dataset", cfg.Ingest.DatasetPath, "path to the JSONL movie dump")
	genre := fs.String("genre", cfg.Ingest.Genre, "genre to keep")
	maxRecords := fs.Int("max-records", cfg.Ingest.MaxRecords, "maximum dataset lines to read")
	maxKeep := fs.Int("max-keep", cfg.Ingest.MaxKeep, "maximum records to import, best ranked first")
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}

	records, err := ingest.NewReader().Read(*dataset, ingest.Options{
		Genre:           *genre,
		OriginCountries: cfg.Ingest.OriginCountries,
		MaxRecords:      *maxRecords,
		MaxKeep:         *maxKeep,
	})
	if err != nil {
		return err
	}

	res := store.LoadBatch(ctx, records)
	logger.Default().Info("load finished",
		"loaded", res.Loaded, "skipped", res.Skipped,
		"rejected", res.Rejected, "failed", res.Failed)
	return nil
}

func runEnrich(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("enrich", flag.ExitOnError)
	genre := fs.String("genre", cfg.Ingest.Genre, "genre to enrich")
	cachePath := fs.String("cache", cfg.TMDB.CachePath, "path to the response cache")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if cfg.TMDB.APIKey == "" {
		return fmt.Errorf("TMDB_API_KEY is not set")
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	cache, err := tmdb.OpenCache(*cachePath)
	if err != nil {
		return err
	}
	defer cache.Close()

	enricher := tmdb.NewEnricher(store, tmdb.NewClient(&cfg.TMDB), cache)
	_, err = enricher.Run(ctx, *genre)
	return err
}

func runReport(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	genre := fs.String("genre", cfg.Ingest.Genre, "genre to report on")
	outDir := fs.String("out", cfg.Report.OutputDir, "report output directory")
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}

	reporter := report.New(store)
	if err := reporter.Generate(ctx, *genre, *outDir, cfg.Report.TopMovies, cfg.Report.TopWords); err != nil {
		return err
	}
	return reporter.WordsByOrigin(ctx, cfg.Ingest.OriginCountries, cfg.Report.TopWords, *outDir)
}

func runQueries(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("queries", flag.ExitOnError)
	genre := fs.String("genre", cfg.Ingest.Genre, "genre used by the genre-scoped queries")
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	return report.New(store).RunQueries(ctx, *genre, os.Stdout)
}
