// Package match resolves recognized text to catalog cards.
//
// Two policies live here and are deliberately kept apart: Region is the
// best-effort lookup used by live screenshot recognition, Exact is the strict
// lookup used by bulk imports.
package match

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"draft-reader/internal/catalog"
)

// MinTextLength is the shortest candidate text the region lookup will query.
const MinTextLength = 5

var (
	// ErrNoMatch means an exact lookup found no card.
	ErrNoMatch = errors.New("no matching card")
	// ErrAmbiguous means an exact lookup found more than one card.
	ErrAmbiguous = errors.New("multiple matching cards")
)

// Matcher looks up cards in a catalog.
type Matcher struct {
	catalog catalog.Catalog
}

// New creates a matcher over c.
func New(c catalog.Catalog) *Matcher {
	return &Matcher{catalog: c}
}

// Region returns the first card of set whose name contains one of texts.
// Texts are tried in order; texts shorter than MinTextLength are skipped.
// A nil card with a nil error means nothing matched.
func (m *Matcher) Region(ctx context.Context, set string, texts []string) (*catalog.Card, error) {
	for _, text := range texts {
		card, err := m.regionText(ctx, set, text)
		if err != nil {
			return nil, err
		}
		if card != nil {
			return card, nil
		}
	}
	return nil, nil
}

func (m *Matcher) regionText(ctx context.Context, set, text string) (*catalog.Card, error) {
	if utf8.RuneCountInString(text) < MinTextLength {
		return nil, nil
	}

	cards, err := m.catalog.List(ctx, set, catalog.Contains(text))
	if err != nil {
		return nil, fmt.Errorf("region lookup %q: %w", text, err)
	}
	if len(cards) == 0 {
		return nil, nil
	}
	// Ties are not disambiguated: the lowest id wins.
	return &cards[0], nil
}

// Exact returns the single card of set whose name starts with name.
// It returns ErrNoMatch or ErrAmbiguous (wrapped) when there is not exactly one.
func (m *Matcher) Exact(ctx context.Context, set, name string) (*catalog.Card, error) {
	cards, err := m.catalog.List(ctx, set, catalog.Prefix(name))
	if err != nil {
		return nil, fmt.Errorf("exact lookup %q: %w", name, err)
	}

	switch len(cards) {
	case 0:
		return nil, fmt.Errorf("%q in set %s: %w", name, set, ErrNoMatch)
	case 1:
		return &cards[0], nil
	default:
		return nil, fmt.Errorf("%q in set %s (%d cards): %w", name, set, len(cards), ErrAmbiguous)
	}
}

// IsSkippable reports whether err is a per-row lookup failure that an import
// should log and move past.
func IsSkippable(err error) bool {
	return errors.Is(err, ErrNoMatch) || errors.Is(err, ErrAmbiguous)
}
