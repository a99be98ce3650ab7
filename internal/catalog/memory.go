package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
)

// Memory is an in-process Store, used offline with a JSON card dump and in tests.
type Memory struct {
	mu      sync.RWMutex
	cards   []Card
	nextID  int64
	ratings map[int64]Rating
}

// NewMemory creates a store holding cards. Cards with a zero ID get one assigned.
func NewMemory(cards ...Card) *Memory {
	m := &Memory{ratings: make(map[int64]Rating)}
	for _, c := range cards {
		m.Add(c)
	}
	return m
}

// LoadJSON reads a JSON array of cards, as exported from the card database.
func LoadJSON(path string) (*Memory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}

	var cards []Card
	if err := json.Unmarshal(data, &cards); err != nil {
		return nil, fmt.Errorf("failed to parse catalog %s: %w", path, err)
	}
	return NewMemory(cards...), nil
}

// Add inserts a card and returns it with its assigned ID.
func (m *Memory) Add(c Card) Card {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c.ID == 0 {
		m.nextID++
		c.ID = m.nextID
	} else if c.ID > m.nextID {
		m.nextID = c.ID
	}
	m.cards = append(m.cards, c)
	sort.SliceStable(m.cards, func(i, j int) bool { return m.cards[i].ID < m.cards[j].ID })
	return c
}

// List implements Catalog.
func (m *Memory) List(ctx context.Context, set string, p Predicate) ([]Card, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Card
	for _, c := range m.cards {
		if c.Set != set {
			continue
		}
		var ok bool
		switch p.Kind {
		case NameContains:
			ok = strings.Contains(c.Name, p.Text)
		case NamePrefix:
			ok = strings.HasPrefix(c.Name, p.Text)
		default:
			return nil, fmt.Errorf("unsupported predicate: %v", p)
		}
		if ok {
			out = append(out, c)
		}
	}
	return out, nil
}

// UpsertRating implements RatingStore.
func (m *Memory) UpsertRating(ctx context.Context, r Rating) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	m.ratings[r.CardID] = r
	m.mu.Unlock()
	return nil
}

// Ratings implements RatingStore. Cards without a rating are omitted.
func (m *Memory) Ratings(ctx context.Context, set string, cardIDs []int64) ([]Rating, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Rating
	for _, id := range cardIDs {
		if r, ok := m.ratings[id]; ok && r.CardSet == set {
			out = append(out, r)
		}
	}
	return out, nil
}

// Close implements Store.
func (m *Memory) Close() error {
	return nil
}
