// Package storage persists kanji cards, per-facet review states and the
// review log. Two implementations share one contract: a JSON file store and
// a SQLite store.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/danieldreier/kanji-srs/internal/srs"
)

var (
	// ErrCardNotFound is returned when a card is not found in the store.
	ErrCardNotFound = errors.New("storage: card not found")
	// ErrPersistence wraps every failure to read or write the backing medium.
	ErrPersistence = errors.New("storage: persistence failure")
)

// CardStore provides read access to the card collection.
type CardStore interface {
	// ListCards returns every card, most frequent first.
	ListCards(ctx context.Context) ([]srs.Card, error)
	GetCard(ctx context.Context, id string) (srs.Card, error)
}

// CardImporter upserts cards by ID.
type CardImporter interface {
	ImportCards(ctx context.Context, cards []srs.Card) (int, error)
}

// UpdateFunc computes a new state from the current one. ok is false when no
// state is stored for the key yet. Returning an error aborts the update.
type UpdateFunc func(current srs.ReviewState, ok bool) (srs.ReviewState, error)

// StateStore keeps one review state per (card, facet).
type StateStore interface {
	Get(ctx context.Context, key srs.Key) (srs.ReviewState, bool, error)
	Put(ctx context.Context, state srs.ReviewState) error
	// Update performs an atomic read-modify-write of one record. Nothing is
	// written when fn fails or the new state is invalid.
	Update(ctx context.Context, key srs.Key, fn UpdateFunc) (srs.ReviewState, error)
	List(ctx context.Context) (map[srs.Key]srs.ReviewState, error)
	// Reset removes every review state and the review log.
	Reset(ctx context.Context) error
	Close() error
}

// Review is one answered question.
type Review struct {
	ID        string        `json:"id"`
	CardID    string        `json:"card_id"`
	Facet     srs.FacetKind `json:"facet"`
	Quality   int           `json:"quality"`
	Passed    bool          `json:"passed"`
	WasNew    bool          `json:"was_new"`
	Timestamp time.Time     `json:"timestamp"`
	Interval  int           `json:"interval"`
	Easiness  float64       `json:"easiness"`
}

// ReviewLog records answered questions.
type ReviewLog interface {
	AddReview(ctx context.Context, r Review) error
	ReviewsFor(ctx context.Context, key srs.Key) ([]Review, error)
	// IntroducedSince counts first-time reviews at or after since.
	IntroducedSince(ctx context.Context, since time.Time) (int, error)
}

// Store is the full persistence contract used by the study service.
type Store interface {
	CardStore
	CardImporter
	StateStore
	ReviewLog
}

func persistErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
}

// sortCards orders cards by frequency rank, unknown ranks last, then by ID.
func sortCards(cards []srs.Card) {
	sort.SliceStable(cards, func(i, j int) bool {
		fi, fj := cards[i].Frequency, cards[j].Frequency
		switch {
		case fi == fj:
			return cards[i].ID < cards[j].ID
		case fi == 0:
			return false
		case fj == 0:
			return true
		}
		return fi < fj
	})
}

// CardRecord is the flat card format accepted by the import file.
type CardRecord struct {
	ID         string `json:"id,omitempty"`
	Kanji      string `json:"kanji"`
	Meaning    string `json:"meaning,omitempty"`
	OnReading  string `json:"on_reading,omitempty"`
	KunReading string `json:"kun_reading,omitempty"`
	Frequency  int    `json:"frequency,omitempty"`
}

// Card converts the record. A missing ID defaults to the kanji itself.
func (r CardRecord) Card() (srs.Card, error) {
	kanji := strings.TrimSpace(r.Kanji)
	if kanji == "" {
		return srs.Card{}, fmt.Errorf("card record %q: missing kanji", r.ID)
	}
	id := strings.TrimSpace(r.ID)
	if id == "" {
		id = kanji
	}
	facets := make(map[srs.FacetKind]string)
	for f, v := range map[srs.FacetKind]string{
		srs.FacetMeaning:    r.Meaning,
		srs.FacetReadingOn:  r.OnReading,
		srs.FacetReadingKun: r.KunReading,
	} {
		if v = strings.TrimSpace(v); v != "" {
			facets[f] = v
		}
	}
	return srs.Card{ID: id, Character: kanji, Facets: facets, Frequency: r.Frequency}, nil
}

// ReadCardsFile parses a JSON array of CardRecord.
func ReadCardsFile(path string) ([]srs.Card, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read cards file: %w", err)
	}
	var records []CardRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse cards file: %w", err)
	}
	cards := make([]srs.Card, 0, len(records))
	seen := make(map[string]bool, len(records))
	for i, r := range records {
		c, err := r.Card()
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		if seen[c.ID] {
			return nil, fmt.Errorf("record %d: duplicate card id %q", i, c.ID)
		}
		seen[c.ID] = true
		cards = append(cards, c)
	}
	return cards, nil
}

// applyUpdate runs fn and validates its result for key.
func applyUpdate(key srs.Key, cfg srs.Config, cur srs.ReviewState, ok bool, fn UpdateFunc) (srs.ReviewState, error) {
	if ok {
		cur = cur.Normalize(cfg)
	}
	next, err := fn(cur, ok)
	if err != nil {
		return srs.ReviewState{}, err
	}
	if next.Key() != key {
		return srs.ReviewState{}, fmt.Errorf("%w: update for %s returned state for %s", srs.ErrInvalidState, key, next.Key())
	}
	if err := next.Validate(cfg); err != nil {
		return srs.ReviewState{}, err
	}
	return next, nil
}
