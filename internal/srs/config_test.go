package srs

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_Valid(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
}

func TestValidate_RejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"threshold too low", func(c *Config) { c.SuccessThreshold = 1 }},
		{"threshold too high", func(c *Config) { c.SuccessThreshold = 6 }},
		{"default below min easiness", func(c *Config) { c.DefaultEasiness = 1.0 }},
		{"zero learning step", func(c *Config) { c.LearningSteps = []Duration{0} }},
		{"max below min interval", func(c *Config) { c.MinimumInterval = 10; c.MaximumInterval = 5 }},
		{"lapse penalty zero", func(c *Config) { c.LapsePenalty = 0 }},
		{"lapse penalty above one", func(c *Config) { c.LapsePenalty = 1.5 }},
		{"leech threshold zero", func(c *Config) { c.LeechThreshold = 0 }},
		{"unknown strategy", func(c *Config) { c.Strategy = "anki" }},
		{"modifier table incomplete", func(c *Config) {
			c.Strategy = StrategyModifier
			c.IntervalModifiers = map[string]float64{"Good": 1}
		}},
		{"fsrs retention", func(c *Config) { c.Strategy = StrategyFSRS; c.DesiredRetention = 1 }},
		{"daily limit zero", func(c *Config) { c.DailyCardLimit = 0 }},
		{"negative new cards", func(c *Config) { c.NewCardsPerDay = -1 }},
		{"unknown mix", func(c *Config) { c.MixStrategy = "random" }},
		{"one choice", func(c *Config) { c.NumChoices = 1 }},
		{"bad window", func(c *Config) { c.LearningWindow.Start = "9am" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidConfig), "expected ErrInvalidConfig, got %v", err)
		})
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"10m", 10 * time.Minute},
		{"1d", 24 * time.Hour},
		{"3h", 3 * time.Hour},
		{"45s", 45 * time.Second},
		{" 2d ", 48 * time.Hour},
	}
	for _, tt := range tests {
		got, err := ParseDuration(tt.in)
		if err != nil {
			t.Errorf("ParseDuration(%q) error: %v", tt.in, err)
			continue
		}
		if got.Std() != tt.want {
			t.Errorf("ParseDuration(%q) = %v, want %v", tt.in, got.Std(), tt.want)
		}
	}

	for _, bad := range []string{"", "m", "10", "10w", "-1d", "1.5h"} {
		if _, err := ParseDuration(bad); err == nil {
			t.Errorf("ParseDuration(%q) expected error", bad)
		}
	}
}

func TestDuration_TextRoundTrip(t *testing.T) {
	for _, s := range []string{"10m", "1d", "6h", "30s"} {
		d, err := ParseDuration(s)
		require.NoError(t, err)
		b, err := d.MarshalText()
		require.NoError(t, err)
		assert.Equal(t, s, string(b))
	}
	assert.Equal(t, 2, Duration(49*time.Hour).Days())
}

func TestLearningWindow_InWindow(t *testing.T) {
	day := func(h, m int) time.Time { return time.Date(2025, 3, 1, h, m, 0, 0, time.UTC) }

	w := LearningWindow{Start: "09:00", End: "21:00"}
	assert.False(t, w.InWindow(day(8, 59)))
	assert.True(t, w.InWindow(day(9, 0)))
	assert.True(t, w.InWindow(day(20, 59)))
	assert.False(t, w.InWindow(day(21, 0)))

	night := LearningWindow{Start: "22:00", End: "02:00"}
	assert.True(t, night.InWindow(day(23, 30)))
	assert.True(t, night.InWindow(day(1, 0)))
	assert.False(t, night.InWindow(day(12, 0)))

	assert.True(t, LearningWindow{}.InWindow(day(3, 0)))
}

func TestConfig_Modifier(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 0.5, cfg.Modifier(Hard))
	assert.Equal(t, 1.5, cfg.Modifier(Easy))

	cfg.IntervalModifiers = nil
	assert.Equal(t, 1.0, cfg.Modifier(Hard))
}

func TestRatingForQuality(t *testing.T) {
	want := map[int]Rating{1: Again, 2: Again, 3: Hard, 4: Good, 5: Easy}
	for q, r := range want {
		if got := RatingForQuality(q); got != r {
			t.Errorf("RatingForQuality(%d) = %v, want %v", q, got, r)
		}
	}
}

func TestCheckQuality(t *testing.T) {
	for q := MinQuality; q <= MaxQuality; q++ {
		assert.NoError(t, CheckQuality(q))
	}
	for _, q := range []int{-1, 0, 6, 100} {
		assert.ErrorIs(t, CheckQuality(q), ErrInvalidRating)
	}
}
