// Command ratingsimport loads a 17lands card data CSV export into the card
// database.
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"draft-reader/internal/app"
	"draft-reader/internal/catalog"
	"draft-reader/internal/config"
	"draft-reader/internal/match"
	"draft-reader/internal/ratings"

	flag "github.com/spf13/pflag"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	csvPath := flag.StringP("file", "f", "", "17lands card_ratings CSV export")
	setCode := flag.StringP("set", "s", "", "Card set code the export belongs to")
	envFile := flag.StringP("env", "e", config.DefaultEnvFile, "Optional .env file")
	schema := flag.Bool("schema", false, "Create missing tables before importing")
	flag.Parse()

	if *csvPath == "" || *setCode == "" {
		fmt.Println("Usage: ratingsimport -f <card-ratings.csv> -s <set> [--schema]")
		os.Exit(1)
	}

	cfg, err := config.Load(*envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if cfg.CatalogDriver == config.DriverJSON {
		fmt.Fprintln(os.Stderr, "Ratings are stored in the card database; set DRAFT_CATALOG_DRIVER to pgx or postgres")
		os.Exit(1)
	}

	ctx := context.Background()
	store, err := app.OpenStore(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open catalog: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	if *schema {
		if s, ok := store.(*catalog.SQLStore); ok {
			if err := s.EnsureSchema(ctx); err != nil {
				fmt.Fprintf(os.Stderr, "Failed to create schema: %v\n", err)
				os.Exit(1)
			}
		}
	}

	f, err := os.Open(*csvPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open %s: %v\n", *csvPath, err)
		os.Exit(1)
	}
	defer f.Close()

	im := ratings.NewImporter(match.New(store), store)
	report, err := im.Import(ctx, *setCode, f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Import failed after %d rows: %v\n", report.Imported, err)
		os.Exit(1)
	}

	fmt.Printf("Imported %d ratings for %s, skipped %d\n", report.Imported, *setCode, report.Skipped)
	if len(report.Unknown) > 0 {
		fmt.Printf("Ignored columns: %v\n", report.Unknown)
	}
}
