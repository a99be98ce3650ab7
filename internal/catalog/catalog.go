// Package catalog provides read access to the card database and storage for
// externally computed draft ratings.
package catalog

import (
	"context"
	"fmt"
)

// Card is one catalog row. The recognizer only ever reads cards.
type Card struct {
	ID          int64             `json:"id"`
	ScryfallID  string            `json:"scryfall_id"`
	Name        string            `json:"name"`
	Set         string            `json:"set"`
	Rarity      string            `json:"rarity,omitempty"`
	ScryfallURI string            `json:"scryfall_uri,omitempty"`
	ImageURIs   map[string]string `json:"image_uris,omitempty"`
}

// PredicateKind selects how a Predicate compares card names.
type PredicateKind int

const (
	NameContains PredicateKind = iota // name contains Text
	NamePrefix                        // name starts with Text
)

func (k PredicateKind) String() string {
	switch k {
	case NameContains:
		return "contains"
	case NamePrefix:
		return "prefix"
	default:
		return "unknown"
	}
}

// Predicate is a name query scoped to a set by Catalog.List.
// Comparisons are case-sensitive.
type Predicate struct {
	Kind PredicateKind
	Text string
}

// Contains matches cards whose name contains text.
func Contains(text string) Predicate {
	return Predicate{Kind: NameContains, Text: text}
}

// Prefix matches cards whose name starts with text.
func Prefix(text string) Predicate {
	return Predicate{Kind: NamePrefix, Text: text}
}

func (p Predicate) String() string {
	return fmt.Sprintf("%s %q", p.Kind, p.Text)
}

// Catalog is the read path of the card database.
type Catalog interface {
	// List returns the cards of set matching p, ordered by ID.
	// No match is an empty result, not an error.
	List(ctx context.Context, set string, p Predicate) ([]Card, error)
}

// Rating is one row of 17lands card data for a set.
type Rating struct {
	CardID    int64   `json:"card_id"`
	CardSet   string  `json:"card_set"`
	Name      string  `json:"name"`
	Color     string  `json:"color"`
	Rarity    string  `json:"rarity"`
	Seen      int     `json:"seen"`
	ALSA      float64 `json:"alsa"`
	Picked    int     `json:"picked"`
	ATA       float64 `json:"ata"`
	GP        int     `json:"gp"`
	GPPercent float64 `json:"gp_p"`
	GPWR      float64 `json:"gp_wr"`
	OH        int     `json:"oh"`
	OHWR      float64 `json:"oh_wr"`
	GD        int     `json:"gd"`
	GDWR      float64 `json:"gd_wr"`
	GIH       int     `json:"gih"`
	GIHWR     float64 `json:"gih_wr"`
	GNS       int     `json:"gns"`
	GNSWR     float64 `json:"gns_wr"`
	IWD       float64 `json:"iwd"`
}

// RatingStore persists ratings keyed by card id.
type RatingStore interface {
	UpsertRating(ctx context.Context, r Rating) error
	Ratings(ctx context.Context, set string, cardIDs []int64) ([]Rating, error)
}

// Store is a catalog that also holds ratings.
type Store interface {
	Catalog
	RatingStore
	Close() error
}
