package match

import (
	"context"
	"errors"
	"testing"

	"draft-reader/internal/catalog"
)

type failingCatalog struct{ err error }

func (f failingCatalog) List(context.Context, string, catalog.Predicate) ([]catalog.Card, error) {
	return nil, f.err
}

type countingCatalog struct {
	catalog.Catalog
	calls int
}

func (c *countingCatalog) List(ctx context.Context, set string, p catalog.Predicate) ([]catalog.Card, error) {
	c.calls++
	return c.Catalog.List(ctx, set, p)
}

func newCatalog() *catalog.Memory {
	return catalog.NewMemory(
		catalog.Card{Name: "Lightning Bolt", Set: "m11"},
		catalog.Card{Name: "Lightning Strike", Set: "m11"},
		catalog.Card{Name: "Bolt", Set: "m11"},
		catalog.Card{Name: "Virtue of Loyalty", Set: "woe"},
		catalog.Card{Name: "Virtue of Persistence", Set: "woe"},
	)
}

func TestRegionMatchesFirstUsableText(t *testing.T) {
	m := New(newCatalog())

	card, err := m.Region(context.Background(), "m11", []string{"Lightning Bolt", ""})
	if err != nil {
		t.Fatal(err)
	}
	if card == nil || card.Name != "Lightning Bolt" {
		t.Fatalf("Region() = %+v, want Lightning Bolt", card)
	}

	// First text misses, second hits.
	card, _ = m.Region(context.Background(), "m11", []string{"Xyz Unknown", "ning Stri"})
	if card == nil || card.Name != "Lightning Strike" {
		t.Errorf("Region() = %+v, want Lightning Strike", card)
	}
}

func TestRegionTakesFirstOfSeveral(t *testing.T) {
	m := New(newCatalog())

	card, err := m.Region(context.Background(), "m11", []string{"Lightning"})
	if err != nil {
		t.Fatal(err)
	}
	if card == nil || card.Name != "Lightning Bolt" {
		t.Errorf("Region() = %+v, want the lowest id match", card)
	}
}

func TestRegionRejectsShortText(t *testing.T) {
	cat := &countingCatalog{Catalog: newCatalog()}
	m := New(cat)

	for _, text := range []string{"", "Bo", "Bolt", "日本語"} {
		card, err := m.Region(context.Background(), "m11", []string{text})
		if err != nil {
			t.Fatal(err)
		}
		if card != nil {
			t.Errorf("Region(%q) = %+v, want nil", text, card)
		}
	}
	if cat.calls != 0 {
		t.Errorf("catalog queried %d times for short texts", cat.calls)
	}
}

func TestRegionNoMatch(t *testing.T) {
	m := New(newCatalog())

	card, err := m.Region(context.Background(), "m11", []string{"Xyz Unknown Name"})
	if err != nil || card != nil {
		t.Errorf("Region() = %+v, %v; want nil, nil", card, err)
	}

	// Scoped by set.
	card, _ = m.Region(context.Background(), "woe", []string{"Lightning Bolt"})
	if card != nil {
		t.Errorf("Region() matched across sets: %+v", card)
	}
}

func TestRegionPropagatesStoreErrors(t *testing.T) {
	m := New(failingCatalog{err: catalog.ErrUnavailable})

	_, err := m.Region(context.Background(), "m11", []string{"Lightning Bolt"})
	if !errors.Is(err, catalog.ErrUnavailable) {
		t.Errorf("Region() error = %v, want ErrUnavailable", err)
	}
}

func TestExact(t *testing.T) {
	m := New(newCatalog())
	ctx := context.Background()

	tests := []struct {
		name    string
		set     string
		want    string
		wantErr error
	}{
		{"Lightning Bolt", "m11", "Lightning Bolt", nil},
		{"Virtue of Loyalty", "woe", "Virtue of Loyalty", nil},
		{"Virtue", "woe", "", ErrAmbiguous},
		{"Lightning", "m11", "", ErrAmbiguous},
		{"Murktide Regent", "m11", "", ErrNoMatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			card, err := m.Exact(ctx, tt.set, tt.name)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Exact() error = %v, want %v", err, tt.wantErr)
				}
				if !IsSkippable(err) {
					t.Errorf("IsSkippable(%v) = false", err)
				}
				if card != nil {
					t.Errorf("Exact() card = %+v, want nil", card)
				}
				return
			}
			if err != nil {
				t.Fatalf("Exact() error = %v", err)
			}
			if card.Name != tt.want {
				t.Errorf("Exact() = %q, want %q", card.Name, tt.want)
			}
		})
	}
}

func TestExactStoreErrorNotSkippable(t *testing.T) {
	m := New(failingCatalog{err: catalog.ErrUnavailable})

	_, err := m.Exact(context.Background(), "m11", "Lightning Bolt")
	if err == nil || IsSkippable(err) {
		t.Errorf("Exact() error = %v, want a non-skippable store error", err)
	}
}
