// Package ratings imports 17lands card data exports into the rating store.
package ratings

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"

	"draft-reader/internal/catalog"
	"draft-reader/internal/match"
)

// ErrNoNameColumn means the export has no "Name" column.
var ErrNoNameColumn = errors.New(`ratings export has no "Name" column`)

// Report summarizes an import.
type Report struct {
	Imported int
	Skipped  int      // rows whose name did not resolve to exactly one card, or did not parse
	Unknown  []string // header columns that were ignored
}

type setter func(r *catalog.Rating, value string) error

func text(field func(r *catalog.Rating) *string) setter {
	return func(r *catalog.Rating, v string) error {
		*field(r) = v
		return nil
	}
}

func count(field func(r *catalog.Rating) *int) setter {
	return func(r *catalog.Rating, v string) error {
		if v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*field(r) = n
		return nil
	}
}

func rate(field func(r *catalog.Rating) *float64) setter {
	return func(r *catalog.Rating, v string) error {
		if v == "" {
			return nil
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return err
		}
		*field(r) = f
		return nil
	}
}

// columns maps 17lands header titles to rating fields.
var columns = map[string]setter{
	"Name":     text(func(r *catalog.Rating) *string { return &r.Name }),
	"Color":    text(func(r *catalog.Rating) *string { return &r.Color }),
	"Rarity":   text(func(r *catalog.Rating) *string { return &r.Rarity }),
	"# Seen":   count(func(r *catalog.Rating) *int { return &r.Seen }),
	"ALSA":     rate(func(r *catalog.Rating) *float64 { return &r.ALSA }),
	"# Picked": count(func(r *catalog.Rating) *int { return &r.Picked }),
	"ATA":      rate(func(r *catalog.Rating) *float64 { return &r.ATA }),
	"# GP":     count(func(r *catalog.Rating) *int { return &r.GP }),
	"% GP":     rate(func(r *catalog.Rating) *float64 { return &r.GPPercent }),
	"GP WR":    rate(func(r *catalog.Rating) *float64 { return &r.GPWR }),
	"# OH":     count(func(r *catalog.Rating) *int { return &r.OH }),
	"OH WR":    rate(func(r *catalog.Rating) *float64 { return &r.OHWR }),
	"# GD":     count(func(r *catalog.Rating) *int { return &r.GD }),
	"GD WR":    rate(func(r *catalog.Rating) *float64 { return &r.GDWR }),
	"# GIH":    count(func(r *catalog.Rating) *int { return &r.GIH }),
	"GIH WR":   rate(func(r *catalog.Rating) *float64 { return &r.GIHWR }),
	"# GNS":    count(func(r *catalog.Rating) *int { return &r.GNS }),
	"GNS WR":   rate(func(r *catalog.Rating) *float64 { return &r.GNSWR }),
	"IWD":      rate(func(r *catalog.Rating) *float64 { return &r.IWD }),
}

// normalize strips the decorations 17lands puts on numbers: "55.2%" and "3.1pp".
func normalize(column, value string) string {
	value = strings.TrimSpace(strings.ReplaceAll(value, "%", ""))
	if column == "IWD" {
		value = strings.TrimSpace(strings.ReplaceAll(value, "pp", ""))
	}
	return value
}

// Importer loads 17lands exports, resolving names with the strict matcher.
type Importer struct {
	matcher *match.Matcher
	store   catalog.RatingStore
}

// NewImporter creates an importer writing to store.
func NewImporter(matcher *match.Matcher, store catalog.RatingStore) *Importer {
	return &Importer{matcher: matcher, store: store}
}

// Import reads a CSV export and upserts one rating per resolvable row.
// Rows whose name is missing from the catalog or ambiguous are logged and
// skipped. Catalog or store failures abort the import.
func (im *Importer) Import(ctx context.Context, set string, in io.Reader) (Report, error) {
	var report Report

	r := csv.NewReader(in)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return report, fmt.Errorf("failed to read header: %w", err)
	}

	nameCol := -1
	for i, title := range header {
		title = strings.TrimSpace(strings.TrimPrefix(title, "\ufeff"))
		header[i] = title
		if title == "Name" {
			nameCol = i
		}
		if _, ok := columns[title]; !ok {
			log.Printf("Ratings: ignoring unknown column %q", title)
			report.Unknown = append(report.Unknown, title)
		}
	}
	if nameCol < 0 {
		return report, ErrNoNameColumn
	}

	for line := 2; ; line++ {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return report, fmt.Errorf("line %d: %w", line, err)
		}
		if nameCol >= len(record) {
			log.Printf("Ratings: line %d has no name, skipping", line)
			report.Skipped++
			continue
		}

		name := strings.TrimSpace(record[nameCol])
		card, err := im.matcher.Exact(ctx, set, name)
		if err != nil {
			if match.IsSkippable(err) {
				log.Printf("Ratings: failed to import %q for set %s: %v", name, set, err)
				report.Skipped++
				continue
			}
			return report, fmt.Errorf("line %d: %w", line, err)
		}

		rating := catalog.Rating{CardID: card.ID, CardSet: set}
		if err := fill(&rating, header, record); err != nil {
			log.Printf("Ratings: line %d (%s): %v, skipping", line, name, err)
			report.Skipped++
			continue
		}

		if err := im.store.UpsertRating(ctx, rating); err != nil {
			return report, fmt.Errorf("failed to store rating for %s: %w", name, err)
		}
		report.Imported++
	}

	log.Printf("Ratings: imported %d, skipped %d for set %s", report.Imported, report.Skipped, set)
	return report, nil
}

func fill(rating *catalog.Rating, header, record []string) error {
	for i, value := range record {
		if i >= len(header) {
			break
		}
		set, ok := columns[header[i]]
		if !ok {
			continue
		}
		if err := set(rating, normalize(header[i], value)); err != nil {
			return fmt.Errorf("column %q: %w", header[i], err)
		}
	}
	return nil
}
