package srs

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// MixStrategy controls how review and new items are ordered in a session.
type MixStrategy string

const (
	MixInterleaved MixStrategy = "interleaved"
	MixBlocked     MixStrategy = "blocked"
)

// StrategyKind selects the interval algorithm used in the review phase.
type StrategyKind string

const (
	// StrategySM2 is binary-quality SM-2: quality drives the ease factor.
	StrategySM2 StrategyKind = "sm2"
	// StrategyModifier scales intervals by a per-rating modifier table.
	StrategyModifier StrategyKind = "modifier"
	// StrategyFSRS delegates to the FSRS memory model.
	StrategyFSRS StrategyKind = "fsrs"
)

// Config is the scheduling configuration. It is loaded once per process and
// passed to the scheduler and selector constructors.
type Config struct {
	SuccessThreshold    int        `yaml:"success_threshold" json:"success_threshold"`
	MinEasiness         float64    `yaml:"min_easiness" json:"min_easiness"`
	DefaultEasiness     float64    `yaml:"default_easiness" json:"default_easiness"`
	LearningSteps       []Duration `yaml:"learning_steps" json:"learning_steps"`
	GraduationThreshold int        `yaml:"graduation_threshold" json:"graduation_threshold"`
	FailResetsLearning  bool       `yaml:"fail_resets_learning" json:"fail_resets_learning"`
	DemoteOnLapse       bool       `yaml:"demote_on_lapse" json:"demote_on_lapse"`

	InitialInterval int     `yaml:"initial_interval" json:"initial_interval"`
	SecondInterval  int     `yaml:"second_interval" json:"second_interval"`
	MinimumInterval int     `yaml:"minimum_interval" json:"minimum_interval"`
	MaximumInterval int     `yaml:"maximum_interval" json:"maximum_interval"`
	LapseInterval   int     `yaml:"lapse_interval" json:"lapse_interval"`
	LapsePenalty    float64 `yaml:"lapse_penalty" json:"lapse_penalty"`
	LeechThreshold  int     `yaml:"leech_threshold" json:"leech_threshold"`
	SuspendLeeches  bool    `yaml:"suspend_leeches" json:"suspend_leeches"`

	Strategy          StrategyKind       `yaml:"strategy" json:"strategy"`
	IntervalModifiers map[string]float64 `yaml:"interval_modifiers" json:"interval_modifiers"`
	DesiredRetention  float64            `yaml:"desired_retention" json:"desired_retention"`

	DailyCardLimit int         `yaml:"daily_card_limit" json:"daily_card_limit"`
	NewCardsPerDay int         `yaml:"new_cards_per_day" json:"new_cards_per_day"`
	MixStrategy    MixStrategy `yaml:"mix_strategy" json:"mix_strategy"`

	NumChoices     int            `yaml:"num_choices" json:"num_choices"`
	QuestionTTL    Duration       `yaml:"question_ttl" json:"question_ttl"`
	LearningWindow LearningWindow `yaml:"learning_window" json:"learning_window"`
}

// DefaultConfig returns the stock configuration.
func DefaultConfig() Config {
	return Config{
		SuccessThreshold:    3,
		MinEasiness:         1.3,
		DefaultEasiness:     2.5,
		LearningSteps:       []Duration{Duration(10 * time.Minute), Duration(24 * time.Hour)},
		GraduationThreshold: 2,
		FailResetsLearning:  true,
		InitialInterval:     1,
		SecondInterval:      6,
		MinimumInterval:     1,
		MaximumInterval:     365,
		LapseInterval:       0,
		LapsePenalty:        0.5,
		LeechThreshold:      8,
		SuspendLeeches:      true,
		Strategy:            StrategySM2,
		IntervalModifiers: map[string]float64{
			"Again": 0.0,
			"Hard":  0.5,
			"Good":  1.0,
			"Easy":  1.5,
		},
		DesiredRetention: 0.9,
		DailyCardLimit:   100,
		NewCardsPerDay:   20,
		MixStrategy:      MixInterleaved,
		NumChoices:       5,
		QuestionTTL:      Duration(30 * time.Minute),
		LearningWindow:   LearningWindow{Start: "09:00", End: "21:00"},
	}
}

// Passed reports whether quality counts as a successful recall.
func (c Config) Passed(quality int) bool {
	return quality >= c.SuccessThreshold
}

// Modifier returns the interval modifier for r, defaulting to 1.0 when the
// table has no entry.
func (c Config) Modifier(r Rating) float64 {
	if m, ok := c.IntervalModifiers[r.String()]; ok {
		return m
	}
	return 1.0
}

// Validate checks every field for a usable value.
func (c Config) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if c.SuccessThreshold < MinQuality+1 || c.SuccessThreshold > MaxQuality {
		add("success_threshold %d outside [%d,%d]", c.SuccessThreshold, MinQuality+1, MaxQuality)
	}
	if c.MinEasiness <= 0 {
		add("min_easiness must be positive")
	}
	if c.DefaultEasiness < c.MinEasiness {
		add("default_easiness %.2f below min_easiness %.2f", c.DefaultEasiness, c.MinEasiness)
	}
	for i, s := range c.LearningSteps {
		if s <= 0 {
			add("learning_steps[%d] must be positive", i)
		}
	}
	if c.GraduationThreshold < 0 {
		add("graduation_threshold must not be negative")
	}
	if c.InitialInterval < 0 || c.SecondInterval < 0 || c.MinimumInterval < 0 || c.LapseInterval < 0 {
		add("intervals must not be negative")
	}
	if c.MaximumInterval < 1 || c.MaximumInterval < c.MinimumInterval {
		add("maximum_interval %d must be at least 1 and minimum_interval", c.MaximumInterval)
	}
	if c.LapseInterval > c.MaximumInterval {
		add("lapse_interval %d exceeds maximum_interval", c.LapseInterval)
	}
	if c.LapsePenalty <= 0 || c.LapsePenalty > 1 {
		add("lapse_penalty %.2f outside (0,1]", c.LapsePenalty)
	}
	if c.LeechThreshold < 1 {
		add("leech_threshold must be at least 1")
	}
	switch c.Strategy {
	case StrategySM2:
	case StrategyModifier:
		for _, name := range RatingNames {
			m, ok := c.IntervalModifiers[name]
			if !ok {
				add("interval_modifiers missing %q", name)
			} else if m < 0 {
				add("interval_modifiers[%q] must not be negative", name)
			}
		}
	case StrategyFSRS:
		if c.DesiredRetention <= 0 || c.DesiredRetention >= 1 {
			add("desired_retention %.2f outside (0,1)", c.DesiredRetention)
		}
	default:
		add("unknown strategy %q", c.Strategy)
	}
	if c.DailyCardLimit < 1 {
		add("daily_card_limit must be at least 1")
	}
	if c.NewCardsPerDay < 0 {
		add("new_cards_per_day must not be negative")
	}
	if c.MixStrategy != MixInterleaved && c.MixStrategy != MixBlocked {
		add("unknown mix_strategy %q", c.MixStrategy)
	}
	if c.NumChoices < 2 {
		add("num_choices must be at least 2")
	}
	if c.QuestionTTL <= 0 {
		add("question_ttl must be positive")
	}
	if err := c.LearningWindow.validate(); err != nil {
		add("learning_window: %v", err)
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// Duration is a time.Duration written as "<n>s", "<n>m", "<n>h" or "<n>d".
type Duration time.Duration

// ParseDuration parses the compact duration form used in configuration files.
func ParseDuration(s string) (Duration, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	n, err := strconv.Atoi(s[:len(s)-1])
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	var unit time.Duration
	switch s[len(s)-1] {
	case 's':
		unit = time.Second
	case 'm':
		unit = time.Minute
	case 'h':
		unit = time.Hour
	case 'd':
		unit = 24 * time.Hour
	default:
		return 0, fmt.Errorf("invalid duration unit in %q", s)
	}
	return Duration(time.Duration(n) * unit), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Days returns the number of whole days in d.
func (d Duration) Days() int {
	return int(time.Duration(d) / (24 * time.Hour))
}

func (d Duration) String() string {
	td := time.Duration(d)
	switch {
	case td == 0:
		return "0s"
	case td%(24*time.Hour) == 0:
		return strconv.FormatInt(int64(td/(24*time.Hour)), 10) + "d"
	case td%time.Hour == 0:
		return strconv.FormatInt(int64(td/time.Hour), 10) + "h"
	case td%time.Minute == 0:
		return strconv.FormatInt(int64(td/time.Minute), 10) + "m"
	default:
		return strconv.FormatInt(int64(td/time.Second), 10) + "s"
	}
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// LearningWindow is the preferred daily study window, as "HH:MM" clock times.
type LearningWindow struct {
	Start string `yaml:"start" json:"start"`
	End   string `yaml:"end" json:"end"`
}

// InWindow reports whether now's clock time falls inside the window.
// An empty window always matches.
func (w LearningWindow) InWindow(now time.Time) bool {
	if w.Start == "" && w.End == "" {
		return true
	}
	start, err1 := parseClock(w.Start)
	end, err2 := parseClock(w.End)
	if err1 != nil || err2 != nil {
		return true
	}
	minute := now.Hour()*60 + now.Minute()
	if start <= end {
		return minute >= start && minute < end
	}
	// Window wraps past midnight.
	return minute >= start || minute < end
}

func (w LearningWindow) validate() error {
	if w.Start == "" && w.End == "" {
		return nil
	}
	if _, err := parseClock(w.Start); err != nil {
		return err
	}
	_, err := parseClock(w.End)
	return err
}

func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid clock time %q", s)
	}
	return t.Hour()*60 + t.Minute(), nil
}
