package srs

import (
	"fmt"
	"time"
)

// ReviewState is the scheduling record for one facet of one card.
type ReviewState struct {
	CardID       string    `json:"card_id"`
	Facet        FacetKind `json:"facet"`
	Interval     int       `json:"interval"`
	Repetitions  int       `json:"repetitions"`
	Easiness     float64   `json:"easiness"`
	Due          time.Time `json:"due"`
	LearningStep int       `json:"learning_step"`
	Lapses       int       `json:"lapses"`
	Leech        bool      `json:"leech,omitempty"`
	LastReview   time.Time `json:"last_review,omitempty"`

	// Memory-model fields, only maintained by the FSRS strategy.
	Stability  float64 `json:"stability,omitempty"`
	Difficulty float64 `json:"difficulty,omitempty"`
	FSRSState  int     `json:"fsrs_state,omitempty"`
}

// NewReviewState returns the default state for a facet seen for the first time.
func NewReviewState(cardID string, facet FacetKind, cfg Config, now time.Time) ReviewState {
	return ReviewState{
		CardID:   cardID,
		Facet:    facet,
		Easiness: cfg.DefaultEasiness,
		Due:      StartOfDay(now),
	}
}

// Key returns the record key of the state.
func (rs ReviewState) Key() Key {
	return KeyOf(rs.CardID, rs.Facet)
}

// IsDue reports whether the state is eligible for review at now.
func (rs ReviewState) IsDue(now time.Time) bool {
	return !now.Before(rs.Due)
}

// OverdueDays returns how many days past due the state is, or 0 if not yet due.
func (rs ReviewState) OverdueDays(now time.Time) float64 {
	if now.Before(rs.Due) {
		return 0
	}
	return now.Sub(rs.Due).Hours() / 24.0
}

// InLearning reports whether the state is still in the learning phase.
func (rs ReviewState) InLearning(cfg Config) bool {
	return rs.LearningStep < len(cfg.LearningSteps)
}

// Unseen reports whether the facet has never been answered.
func (rs ReviewState) Unseen() bool {
	return rs.LastReview.IsZero()
}

// Validate checks the record at the store boundary.
func (rs ReviewState) Validate(cfg Config) error {
	if err := rs.Check(); err != nil {
		return err
	}
	if rs.Easiness < cfg.MinEasiness {
		return fmt.Errorf("%w: easiness %.3f below minimum %.3f", ErrInvalidState, rs.Easiness, cfg.MinEasiness)
	}
	return nil
}

// Check validates the fields that do not depend on the configuration.
func (rs ReviewState) Check() error {
	if err := rs.Key().Validate(); err != nil {
		return err
	}
	switch {
	case rs.Interval < 0:
		return fmt.Errorf("%w: negative interval %d", ErrInvalidState, rs.Interval)
	case rs.Repetitions < 0:
		return fmt.Errorf("%w: negative repetitions %d", ErrInvalidState, rs.Repetitions)
	case rs.Lapses < 0:
		return fmt.Errorf("%w: negative lapses %d", ErrInvalidState, rs.Lapses)
	case rs.LearningStep < 0:
		return fmt.Errorf("%w: negative learning step %d", ErrInvalidState, rs.LearningStep)
	case rs.Easiness <= 0:
		return fmt.Errorf("%w: non-positive easiness %.3f", ErrInvalidState, rs.Easiness)
	case rs.Due.IsZero():
		return fmt.Errorf("%w: missing due date", ErrInvalidState)
	}
	return nil
}

// Normalize raises easiness to cfg's floor.
func (rs ReviewState) Normalize(cfg Config) ReviewState {
	if rs.Easiness < cfg.MinEasiness {
		rs.Easiness = cfg.MinEasiness
	}
	return rs
}

// StartOfDay truncates t to midnight in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// SameDay reports whether a and b fall on the same calendar day in a's location.
func SameDay(a, b time.Time) bool {
	b = b.In(a.Location())
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
