// Package fsrs adapts the go-fsrs memory model to per-facet review states.
package fsrs

import (
	"time"

	"github.com/danieldreier/kanji-srs/internal/srs"
	"github.com/open-spaced-repetition/go-fsrs"
)

// Manager schedules review states with the FSRS algorithm.
type Manager struct {
	parameters fsrs.Parameters
}

// NewManager creates a manager using go-fsrs defaults, with the requested
// retention and maximum interval taken from cfg.
func NewManager(cfg srs.Config) *Manager {
	params := fsrs.DefaultParam()
	if cfg.DesiredRetention > 0 && cfg.DesiredRetention < 1 {
		params.RequestRetention = cfg.DesiredRetention
	}
	if cfg.MaximumInterval > 0 {
		params.MaximumInterval = float64(cfg.MaximumInterval)
	}
	return NewManagerWithParams(params)
}

// NewManagerWithParams creates a manager with custom go-fsrs parameters.
func NewManagerWithParams(params fsrs.Parameters) *Manager {
	return &Manager{parameters: params}
}

// Parameters returns the go-fsrs parameters in use.
func (m *Manager) Parameters() fsrs.Parameters {
	return m.parameters
}

// RatingFor maps a four-button rating onto the go-fsrs scale.
//
// From go-fsrs:
//
//	const Again Rating = iota + 1 // (1)
//	const Hard, Good, Easy Rating = 2, 3, 4
func RatingFor(r srs.Rating) fsrs.Rating {
	switch r {
	case srs.Again:
		return fsrs.Again
	case srs.Hard:
		return fsrs.Hard
	case srs.Easy:
		return fsrs.Easy
	default:
		return fsrs.Good
	}
}

// ToCard rebuilds the go-fsrs card for a review state.
func ToCard(rs srs.ReviewState) fsrs.Card {
	if rs.Unseen() {
		card := fsrs.NewCard()
		card.Due = rs.Due
		return card
	}
	return fsrs.Card{
		Due:           rs.Due,
		Stability:     rs.Stability,
		Difficulty:    rs.Difficulty,
		ScheduledDays: uint64(rs.Interval),
		Reps:          uint64(rs.Repetitions),
		Lapses:        uint64(rs.Lapses),
		State:         fsrs.State(rs.FSRSState),
		LastReview:    rs.LastReview,
	}
}

// Schedule applies rating to the state's card and returns the resulting card.
func (m *Manager) Schedule(rs srs.ReviewState, rating srs.Rating, now time.Time) fsrs.Card {
	card := ToCard(rs)
	if !rs.Unseen() && now.After(rs.LastReview) {
		card.ElapsedDays = uint64(now.Sub(rs.LastReview).Hours() / 24)
	}
	schedulingInfos := m.parameters.Repeat(card, now)
	return schedulingInfos[RatingFor(rating)].Card
}

// Memory is the go-fsrs result expressed in review-state terms.
type Memory struct {
	Due        time.Time
	Interval   int
	Stability  float64
	Difficulty float64
	State      int
	// Review is true once go-fsrs has moved the card into its Review state.
	Review bool
}

// Next schedules rs with rating and converts the resulting card.
func (m *Manager) Next(rs srs.ReviewState, rating srs.Rating, now time.Time) Memory {
	card := m.Schedule(rs, rating, now)
	return Memory{
		Due:        card.Due,
		Interval:   int(card.ScheduledDays),
		Stability:  card.Stability,
		Difficulty: card.Difficulty,
		State:      int(card.State),
		Review:     card.State == fsrs.Review,
	}
}

// IsReview reports whether rs was last left in the go-fsrs Review state.
func IsReview(rs srs.ReviewState) bool {
	return !rs.Unseen() && fsrs.State(rs.FSRSState) == fsrs.Review
}

// ReviewPriority scores a state for ordering; higher means review sooner.
// Learning facets outrank review facets, unseen facets rank lowest, and
// overdue facets gain 10% per overdue day.
func ReviewPriority(rs srs.ReviewState, cfg srs.Config, now time.Time) float64 {
	var basePriority float64
	switch {
	case rs.Unseen():
		basePriority = 1.0
	case rs.InLearning(cfg):
		basePriority = 3.0
	default:
		basePriority = 2.0
	}

	overdueDays := now.Sub(rs.Due).Hours() / 24.0
	if overdueDays >= 0 {
		return basePriority * (1.0 + overdueDays*0.1)
	}
	// Not yet due: the further out, the lower.
	return basePriority / (1.0 - overdueDays)
}
