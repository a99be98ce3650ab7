// Package main provides the entry point for the draft reader: it follows a
// screenshot directory and reports the cards in each new draft pack.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"draft-reader/internal/app"
	"draft-reader/internal/config"
	"draft-reader/internal/prefs"
	"draft-reader/internal/reader"
	"draft-reader/internal/version"
	"draft-reader/internal/watch"

	flag "github.com/spf13/pflag"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	var (
		envFile     string
		setCode     string
		trackDir    string
		output      string
		debug       bool
		showVersion bool
	)
	flag.StringVarP(&envFile, "env", "e", config.DefaultEnvFile, "Optional .env file with DRAFT_* settings.")
	flag.StringVarP(&setCode, "set", "s", "", "Card set code to match against. Remembered for the next run.")
	flag.StringVarP(&trackDir, "dir", "d", "", "Screenshot directory to follow. Remembered for the next run.")
	flag.StringVarP(&output, "output", "o", "", "Write an annotated copy of each screenshot to this path.")
	flag.BoolVarP(&debug, "debug", "v", false, "Log every OCR read and match.")
	flag.BoolVar(&showVersion, "version", false, "Print the version and exit.")
	flag.Parse()

	if showVersion {
		fmt.Println(version.String())
		return
	}
	log.Printf("Starting %s", version.String())

	cfg, err := config.Load(envFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if output != "" {
		cfg.OutputImage = output
	}
	if debug {
		cfg.Debug = true
	}

	p := prefs.Load()
	if setCode != "" {
		p.SetCardSet(setCode)
	}
	if trackDir != "" {
		p.SetTrackDir(trackDir)
	}
	if err := p.Save(); err != nil {
		log.Printf("Failed to save preferences: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to start: %v", err)
	}
	defer a.Close()

	a.Reader.On(reader.EventStarted, func(data interface{}) {
		sess := data.(*reader.Session)
		log.Printf("Reading %s (set %s)", sess.SourcePath, sess.SetCode)
	})
	if cfg.Debug {
		a.Reader.On(reader.EventProgress, func(data interface{}) {
			log.Printf("Progress %3.0f%%", data.(float64)*100)
		})
	}
	a.Reader.On(reader.EventFinished, func(data interface{}) {
		a.Report(ctx, data.(*reader.Session))
	})
	a.Reader.On(reader.EventFailed, func(data interface{}) {
		log.Printf("Recognition failed: %v", data)
	})

	w := watch.New(a.Reader, cfg.WatchDebounce)
	w.Debug = cfg.Debug
	w.SetCardSet(p.CardSet())
	w.SetDir(p.TrackDir())

	if err := w.Run(ctx); err != nil {
		log.Printf("Watcher stopped: %v", err)
	}
	log.Println("Shutting down")
}
