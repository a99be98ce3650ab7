package reader

import (
	"time"

	"draft-reader/internal/calibration"
	"draft-reader/internal/catalog"

	"github.com/google/uuid"
)

// MatchResult is one detected region with its candidate texts and the card
// it resolved to. Card is nil when no catalog row matched.
type MatchResult struct {
	Region calibration.Region
	Texts  []string
	Card   *catalog.Card
}

// Matched reports whether the region resolved to a card.
func (m MatchResult) Matched() bool {
	return m.Card != nil
}

// Session is the outcome of one reload. A new reload replaces it wholesale.
type Session struct {
	ID         uuid.UUID
	SetCode    string
	SourcePath string
	Width      int
	Height     int
	Profile    *calibration.Profile // nil when the generic detector was used
	Results    []MatchResult
	Complete   bool
	StartedAt  time.Time
	FinishedAt time.Time

	image Image
}

func newSession(setCode, path string, img Image) *Session {
	return &Session{
		ID:         uuid.New(),
		SetCode:    setCode,
		SourcePath: path,
		Width:      img.Width(),
		Height:     img.Height(),
		Profile:    calibration.FindForImage(img),
		StartedAt:  time.Now(),
		image:      img,
	}
}

// Calibrated reports whether the session used a calibration profile.
func (s *Session) Calibrated() bool {
	return s.Profile != nil
}

// MatchedCount returns how many regions resolved to a card.
func (s *Session) MatchedCount() int {
	n := 0
	for _, m := range s.Results {
		if m.Matched() {
			n++
		}
	}
	return n
}

// CardIDs returns the ids of matched cards in region order.
func (s *Session) CardIDs() []int64 {
	var ids []int64
	for _, m := range s.Results {
		if m.Matched() {
			ids = append(ids, m.Card.ID)
		}
	}
	return ids
}
