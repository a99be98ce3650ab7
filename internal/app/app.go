// Package app wires configuration, the card catalog, OCR and the reader into
// a running application.
package app

import (
	"context"
	"fmt"
	"log"
	"sort"

	"draft-reader/internal/catalog"
	"draft-reader/internal/config"
	"draft-reader/internal/match"
	"draft-reader/internal/ocr"
	"draft-reader/internal/reader"
	"draft-reader/internal/vision"
)

// App holds the long-lived handles shared by the entry points.
type App struct {
	Config  *config.Config
	Store   catalog.Store
	OCR     *ocr.Engine
	Matcher *match.Matcher
	Reader  *reader.Reader
}

// OpenStore opens the catalog selected by cfg.
func OpenStore(ctx context.Context, cfg *config.Config) (catalog.Store, error) {
	switch cfg.CatalogDriver {
	case config.DriverJSON:
		m, err := catalog.LoadJSON(cfg.CatalogDSN)
		if err != nil {
			return nil, err
		}
		return m, nil
	case config.DriverPgx, config.DriverPostgres:
		s, err := catalog.OpenSQL(ctx, cfg.CatalogDriver, cfg.CatalogDSN)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown catalog driver %q", cfg.CatalogDriver)
	}
}

// New opens the catalog and OCR engine and builds a reader over them.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	store, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}

	engine, err := ocr.NewEngine(ocr.Options{
		Language:       cfg.OCRLanguage,
		TessdataPrefix: cfg.TessdataPrefix,
	})
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to start OCR: %w", err)
	}

	detector := vision.NewDetector(engine)
	detector.Debug = cfg.Debug

	matcher := match.New(store)
	r := reader.New(vision.Decoder{}, detector, vision.Renderer{}, matcher)
	r.Debug = cfg.Debug

	log.Printf("App: catalog %s, tesseract %s, language %s", cfg.CatalogDriver, engine.Version(), cfg.OCRLanguage)

	return &App{
		Config:  cfg,
		Store:   store,
		OCR:     engine,
		Matcher: matcher,
		Reader:  r,
	}, nil
}

// RatedCard is a matched card with its 17lands rating, if one was imported.
type RatedCard struct {
	Card   catalog.Card
	Rating *catalog.Rating
}

// RatedCards returns the cards matched in sess, best GIH win rate first.
// Cards without a rating sort last in region order.
func (a *App) RatedCards(ctx context.Context, sess *reader.Session) ([]RatedCard, error) {
	ratings, err := a.Store.Ratings(ctx, sess.SetCode, sess.CardIDs())
	if err != nil {
		return nil, fmt.Errorf("failed to load ratings: %w", err)
	}
	byID := make(map[int64]catalog.Rating, len(ratings))
	for _, r := range ratings {
		byID[r.CardID] = r
	}

	var out []RatedCard
	for _, m := range sess.Results {
		if !m.Matched() {
			continue
		}
		rc := RatedCard{Card: *m.Card}
		if r, ok := byID[m.Card.ID]; ok {
			rc.Rating = &r
		}
		out = append(out, rc)
	}

	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := out[i].Rating, out[j].Rating
		switch {
		case ri == nil:
			return false
		case rj == nil:
			return true
		default:
			return ri.GIHWR > rj.GIHWR
		}
	})
	return out, nil
}

// Report logs the rated cards of sess and writes the annotated screenshot
// when an output path is configured.
func (a *App) Report(ctx context.Context, sess *reader.Session) {
	cards, err := a.RatedCards(ctx, sess)
	if err != nil {
		log.Printf("App: %v", err)
	}
	log.Printf("App: %s: %d of %d regions matched", sess.SourcePath, sess.MatchedCount(), len(sess.Results))
	for _, rc := range cards {
		if rc.Rating == nil {
			log.Printf("App:   %-34s %s", rc.Card.Name, rc.Card.Rarity)
			continue
		}
		log.Printf("App:   %-34s %s  GIH WR %5.1f  ALSA %4.2f  IWD %+5.1f",
			rc.Card.Name, rc.Card.Rarity, rc.Rating.GIHWR, rc.Rating.ALSA, rc.Rating.IWD)
	}

	if a.Config.OutputImage != "" {
		if err := a.Reader.RenderAnnotatedImage(a.Config.OutputImage); err != nil {
			log.Printf("App: %v", err)
		}
	}
}

// Close stops the reader and releases the OCR engine and catalog.
func (a *App) Close() error {
	a.Reader.Close()
	a.OCR.Close()
	return a.Store.Close()
}
