// Command readtest recognizes a single draft screenshot and prints the
// regions found and the cards they matched.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"draft-reader/internal/app"
	"draft-reader/internal/config"

	flag "github.com/spf13/pflag"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	imagePath := flag.StringP("image", "i", "", "Path to a draft screenshot (PNG, JPEG, BMP, TIFF or WebP)")
	setCode := flag.StringP("set", "s", "woe", "Card set code")
	output := flag.StringP("output", "o", "", "Write the annotated screenshot here")
	envFile := flag.StringP("env", "e", config.DefaultEnvFile, "Optional .env file")
	debug := flag.BoolP("debug", "v", false, "Log every OCR read")
	flag.Parse()

	if *imagePath == "" {
		fmt.Println("Usage: readtest -i <screenshot> [-s woe] [-o annotated.png]")
		os.Exit(1)
	}

	cfg, err := config.Load(*envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	cfg.Debug = cfg.Debug || *debug
	if *output != "" {
		cfg.OutputImage = *output
	}

	ctx := context.Background()
	a, err := app.New(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	if err := a.Reader.Reload(*setCode, *imagePath); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read %s: %v\n", *imagePath, err)
		os.Exit(1)
	}
	if err := a.Reader.Wait(); err != nil {
		fmt.Fprintf(os.Stderr, "Recognition failed: %v\n", err)
		os.Exit(1)
	}

	sess := a.Reader.Session()
	if sess == nil {
		fmt.Fprintln(os.Stderr, "Recognition produced no session")
		os.Exit(1)
	}
	mode := "contour detection"
	if sess.Calibrated() {
		mode = "calibration " + sess.Profile.Key()
	}
	fmt.Printf("Loaded %dx%d screenshot, %s\n", sess.Width, sess.Height, mode)
	fmt.Printf("Read in %s\n\n", sess.FinishedAt.Sub(sess.StartedAt))

	fmt.Printf("%-5s %-22s %-34s %s\n", "#", "Region", "Card", "Texts")
	fmt.Println(strings.Repeat("-", 90))
	for i, m := range sess.Results {
		name := "-"
		if m.Matched() {
			name = m.Card.Name
		}
		fmt.Printf("%-5d %-22s %-34s %q\n", i, m.Region.Rect, name, m.Texts)
	}
	fmt.Printf("\nMatched %d of %d regions\n", sess.MatchedCount(), len(sess.Results))

	cards, err := a.RatedCards(ctx, sess)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
	}
	for _, rc := range cards {
		if rc.Rating != nil {
			fmt.Printf("  %-34s GIH WR %5.1f  ALSA %4.2f\n", rc.Card.Name, rc.Rating.GIHWR, rc.Rating.ALSA)
		}
	}

	if cfg.OutputImage != "" {
		if err := a.Reader.RenderAnnotatedImage(cfg.OutputImage); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write %s: %v\n", cfg.OutputImage, err)
			os.Exit(1)
		}
		fmt.Printf("Wrote %s\n", cfg.OutputImage)
	}
}
