package srs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewReviewState_Defaults(t *testing.T) {
	cfg := DefaultConfig()
	now := time.Date(2025, 1, 1, 15, 30, 0, 0, time.UTC)
	rs := NewReviewState("42", FacetMeaning, cfg, now)

	assert.Equal(t, 0, rs.Interval)
	assert.Equal(t, 0, rs.Repetitions)
	assert.Equal(t, 2.5, rs.Easiness)
	assert.Equal(t, 0, rs.LearningStep)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), rs.Due)
	assert.True(t, rs.IsDue(now))
	assert.True(t, rs.Unseen())
	assert.True(t, rs.InLearning(cfg))
	assert.NoError(t, rs.Validate(cfg))
}

func TestReviewState_InLearning_NoSteps(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LearningSteps = nil
	rs := NewReviewState("1", FacetReadingOn, cfg, time.Now())
	assert.False(t, rs.InLearning(cfg))
}

func TestReviewState_OverdueDays(t *testing.T) {
	due := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	rs := ReviewState{Due: due}
	assert.Equal(t, 0.0, rs.OverdueDays(due.Add(-time.Hour)))
	assert.InDelta(t, 3.0, rs.OverdueDays(due.Add(72*time.Hour)), 0.001)
}

func TestReviewState_Validate(t *testing.T) {
	cfg := DefaultConfig()
	base := NewReviewState("1", FacetMeaning, cfg, time.Now())

	tests := []struct {
		name   string
		mutate func(rs *ReviewState)
		want   error
	}{
		{"missing card", func(rs *ReviewState) { rs.CardID = " " }, ErrMissingCardID},
		{"bad facet", func(rs *ReviewState) { rs.Facet = "stroke_count" }, ErrUnknownFacet},
		{"negative interval", func(rs *ReviewState) { rs.Interval = -1 }, ErrInvalidState},
		{"negative reps", func(rs *ReviewState) { rs.Repetitions = -2 }, ErrInvalidState},
		{"low easiness", func(rs *ReviewState) { rs.Easiness = 1.0 }, ErrInvalidState},
		{"zero due", func(rs *ReviewState) { rs.Due = time.Time{} }, ErrInvalidState},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rs := base
			tt.mutate(&rs)
			assert.ErrorIs(t, rs.Validate(cfg), tt.want)
		})
	}
}

func TestReviewState_CheckIgnoresConfigFloor(t *testing.T) {
	cfg := DefaultConfig()
	rs := NewReviewState("1", FacetMeaning, cfg, time.Now())
	rs.Easiness = 1.4

	cfg.MinEasiness = 1.5
	assert.ErrorIs(t, rs.Validate(cfg), ErrInvalidState)
	assert.NoError(t, rs.Check())

	rs.Easiness = 0
	assert.ErrorIs(t, rs.Check(), ErrInvalidState)
}

func TestReviewState_Normalize(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinEasiness = 1.5
	rs := NewReviewState("1", FacetMeaning, cfg, time.Now())

	rs.Easiness = 1.4
	assert.Equal(t, 1.5, rs.Normalize(cfg).Easiness)
	assert.Equal(t, 1.4, rs.Easiness, "receiver is not modified")

	rs.Easiness = 2.7
	assert.Equal(t, 2.7, rs.Normalize(cfg).Easiness)
}

func TestParseFacet(t *testing.T) {
	f, err := ParseFacet(" Reading_Kun ")
	assert.NoError(t, err)
	assert.Equal(t, FacetReadingKun, f)

	_, err = ParseFacet("nanori")
	assert.ErrorIs(t, err, ErrUnknownFacet)
}

func TestCard_QuizzableFacets(t *testing.T) {
	c := Card{
		ID:        "7",
		Character: "水",
		Facets: map[FacetKind]string{
			FacetMeaning:    "water",
			FacetReadingOn:  "スイ",
			FacetReadingKun: "  ",
		},
	}
	assert.Equal(t, []FacetKind{FacetMeaning, FacetReadingOn}, c.QuizzableFacets())

	_, ok := c.Value(FacetReadingKun)
	assert.False(t, ok)
}

func TestSameDay(t *testing.T) {
	a := time.Date(2025, 5, 5, 23, 59, 0, 0, time.UTC)
	assert.True(t, SameDay(a, a.Add(-23*time.Hour)))
	assert.False(t, SameDay(a, a.Add(2*time.Minute)))
}
