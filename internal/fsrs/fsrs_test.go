package fsrs

import (
	"testing"
	"time"

	"github.com/danieldreier/kanji-srs/internal/srs"
	"github.com/open-spaced-repetition/go-fsrs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewManager_UsesConfig(t *testing.T) {
	cfg := srs.DefaultConfig()
	cfg.DesiredRetention = 0.8
	cfg.MaximumInterval = 180

	m := NewManager(cfg)
	require.NotNil(t, m)
	assert.Equal(t, 0.8, m.Parameters().RequestRetention)
	assert.Equal(t, 180.0, m.Parameters().MaximumInterval)
}

func TestNewManagerWithParams(t *testing.T) {
	params := fsrs.DefaultParam()
	params.RequestRetention = 0.85

	m := NewManagerWithParams(params)
	if m.Parameters().RequestRetention != 0.85 {
		t.Fatalf("Expected RequestRetention 0.85, got %f", m.Parameters().RequestRetention)
	}
}

func TestRatingFor(t *testing.T) {
	assert.Equal(t, fsrs.Again, RatingFor(srs.Again))
	assert.Equal(t, fsrs.Hard, RatingFor(srs.Hard))
	assert.Equal(t, fsrs.Good, RatingFor(srs.Good))
	assert.Equal(t, fsrs.Easy, RatingFor(srs.Easy))
}

func TestToCard_Unseen(t *testing.T) {
	cfg := srs.DefaultConfig()
	now := time.Date(2023, 1, 1, 12, 0, 0, 0, time.UTC)
	rs := srs.NewReviewState("1", srs.FacetMeaning, cfg, now)

	card := ToCard(rs)
	assert.Equal(t, fsrs.New, card.State)
	assert.Equal(t, rs.Due, card.Due)
	assert.Equal(t, uint64(0), card.Reps)
}

func TestToCard_Seen(t *testing.T) {
	last := time.Date(2023, 1, 1, 12, 0, 0, 0, time.UTC)
	rs := srs.ReviewState{
		CardID:      "1",
		Facet:       srs.FacetReadingOn,
		Interval:    4,
		Repetitions: 3,
		Lapses:      1,
		Due:         last.AddDate(0, 0, 4),
		LastReview:  last,
		Stability:   4.2,
		Difficulty:  5.1,
		FSRSState:   int(fsrs.Review),
	}

	card := ToCard(rs)
	assert.Equal(t, fsrs.Review, card.State)
	assert.Equal(t, uint64(4), card.ScheduledDays)
	assert.Equal(t, uint64(3), card.Reps)
	assert.Equal(t, uint64(1), card.Lapses)
	assert.Equal(t, 4.2, card.Stability)
	assert.Equal(t, last, card.LastReview)
}

func TestSchedule_NewCard(t *testing.T) {
	m := NewManager(srs.DefaultConfig())
	now := time.Date(2023, 1, 1, 12, 0, 0, 0, time.UTC)
	rs := srs.NewReviewState("1", srs.FacetMeaning, srs.DefaultConfig(), now)

	tests := []struct {
		name          string
		rating        srs.Rating
		expectedState fsrs.State
		minDelay      time.Duration
	}{
		{"Again", srs.Again, fsrs.Learning, 0},
		{"Hard", srs.Hard, fsrs.Learning, time.Minute},
		{"Good", srs.Good, fsrs.Learning, time.Minute},
		{"Easy", srs.Easy, fsrs.Review, 24 * time.Hour},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			card := m.Schedule(rs, tt.rating, now)
			assert.Equal(t, tt.expectedState, card.State)
			assert.False(t, card.Due.Before(now.Add(tt.minDelay)),
				"due %v should be at least %v after %v", card.Due, tt.minDelay, now)
		})
	}
}

func TestSchedule_ReviewCardGood(t *testing.T) {
	m := NewManager(srs.DefaultConfig())
	now := time.Date(2023, 1, 1, 12, 0, 0, 0, time.UTC)

	card := m.Schedule(srs.NewReviewState("1", srs.FacetMeaning, srs.DefaultConfig(), now), srs.Easy, now)
	require.Equal(t, fsrs.Review, card.State)

	rs := srs.ReviewState{
		CardID:      "1",
		Facet:       srs.FacetMeaning,
		Interval:    int(card.ScheduledDays),
		Repetitions: int(card.Reps),
		Due:         card.Due,
		LastReview:  now,
		Stability:   card.Stability,
		Difficulty:  card.Difficulty,
		FSRSState:   int(card.State),
	}
	later := card.Due
	next := m.Schedule(rs, srs.Good, later)
	assert.Equal(t, fsrs.Review, next.State)
	assert.True(t, next.Due.After(later))
	assert.Greater(t, next.Stability, card.Stability)
}

func TestNext_ConvertsCard(t *testing.T) {
	m := NewManager(srs.DefaultConfig())
	now := time.Date(2023, 1, 1, 12, 0, 0, 0, time.UTC)
	rs := srs.NewReviewState("1", srs.FacetMeaning, srs.DefaultConfig(), now)

	mem := m.Next(rs, srs.Easy, now)
	assert.True(t, mem.Review)
	assert.Equal(t, int(fsrs.Review), mem.State)
	assert.Greater(t, mem.Interval, 0)
	assert.Greater(t, mem.Stability, 0.0)

	mem = m.Next(rs, srs.Again, now)
	assert.False(t, mem.Review)
	assert.Equal(t, 0, mem.Interval)
}

func TestIsReview(t *testing.T) {
	now := time.Now()
	rs := srs.ReviewState{FSRSState: int(fsrs.Review), LastReview: now}
	assert.True(t, IsReview(rs))

	rs.LastReview = time.Time{}
	assert.False(t, IsReview(rs))

	rs = srs.ReviewState{FSRSState: int(fsrs.Relearning), LastReview: now}
	assert.False(t, IsReview(rs))
}

func TestReviewPriority(t *testing.T) {
	cfg := srs.DefaultConfig()
	now := time.Date(2023, 1, 10, 12, 0, 0, 0, time.UTC)
	seen := now.Add(-48 * time.Hour)

	review := srs.ReviewState{CardID: "1", Facet: srs.FacetMeaning, LearningStep: len(cfg.LearningSteps), Due: now, LastReview: seen}
	learning := review
	learning.LearningStep = 0
	unseen := srs.ReviewState{CardID: "1", Facet: srs.FacetMeaning, Due: now}

	tests := []struct {
		name     string
		state    srs.ReviewState
		due      time.Time
		expected float64
	}{
		{"learning due now", learning, now, 3.0},
		{"review due now", review, now, 2.0},
		{"unseen due now", unseen, now, 1.0},
		{"review 10 days overdue", review, now.AddDate(0, 0, -10), 4.0},
		{"learning 5 days overdue", learning, now.AddDate(0, 0, -5), 4.5},
		{"review due in 1 day", review, now.AddDate(0, 0, 1), 1.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rs := tt.state
			rs.Due = tt.due
			assert.InDelta(t, tt.expected, ReviewPriority(rs, cfg, now), 0.001)
		})
	}
}
