// Package scheduler computes the next review state of a facet from a
// quality judgment. Updates are pure: the same state, quality and time
// always produce the same result.
package scheduler

import (
	"fmt"
	"math"
	"time"

	"github.com/danieldreier/kanji-srs/internal/fsrs"
	"github.com/danieldreier/kanji-srs/internal/srs"
)

// Outcome is the result of one Update.
type Outcome struct {
	State srs.ReviewState `json:"state"`
	// Passed is true when the quality met the success threshold.
	Passed bool `json:"passed"`
	// Graduated is true when this answer moved the facet out of learning.
	Graduated bool `json:"graduated"`
	// BecameLeech is true only on the lapse that first marked the facet a leech.
	BecameLeech bool `json:"became_leech"`
	// Next is the time from now until the facet is due again.
	Next time.Duration `json:"next"`
}

// Scheduler applies the configured strategy to review states.
type Scheduler struct {
	cfg  srs.Config
	fsrs *fsrs.Manager
}

// New validates cfg and returns a scheduler for its strategy.
func New(cfg srs.Config) (*Scheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Scheduler{cfg: cfg}
	if cfg.Strategy == srs.StrategyFSRS {
		s.fsrs = fsrs.NewManager(cfg)
	}
	return s, nil
}

// Config returns the configuration the scheduler was built with.
func (s *Scheduler) Config() srs.Config {
	return s.cfg
}

// Update returns the state that results from answering state with quality at now.
// The input state is never modified.
func (s *Scheduler) Update(state srs.ReviewState, quality int, now time.Time) (Outcome, error) {
	if err := srs.CheckQuality(quality); err != nil {
		return Outcome{}, err
	}
	if err := state.Key().Validate(); err != nil {
		return Outcome{}, err
	}

	out := Outcome{State: state, Passed: s.cfg.Passed(quality)}
	switch {
	case s.cfg.Strategy == srs.StrategyFSRS:
		s.updateFSRS(&out, quality, now)
	case state.InLearning(s.cfg):
		s.updateLearning(&out, quality, now)
	default:
		s.updateReview(&out, quality, now)
	}

	out.State.Easiness = s.clampEase(out.State.Easiness)
	out.State.LastReview = now
	out.Next = out.State.Due.Sub(now)
	return out, nil
}

func (s *Scheduler) updateLearning(out *Outcome, quality int, now time.Time) {
	rs := &out.State
	steps := s.cfg.LearningSteps

	if s.cfg.Strategy == srs.StrategySM2 {
		rs.Easiness = s.adjustEase(rs.Easiness, quality)
	}

	if !out.Passed {
		rs.Repetitions = 0
		if s.cfg.FailResetsLearning {
			rs.LearningStep = 0
		}
		// A failure always waits the first step, whether or not the
		// step index is reset.
		s.scheduleAfter(rs, steps[0], now)
		return
	}

	rs.Repetitions++
	next := rs.LearningStep + 1
	switch {
	case next < len(steps):
		rs.LearningStep = next
		s.scheduleStep(rs, now)
	case rs.Repetitions >= s.cfg.GraduationThreshold:
		rs.LearningStep = len(steps)
		// Graduation counts as the first review success; the next one
		// takes SecondInterval.
		rs.Repetitions = 1
		rs.Interval = s.clampInterval(s.cfg.InitialInterval)
		rs.Due = dueInDays(now, rs.Interval)
		out.Graduated = true
	default:
		rs.LearningStep = len(steps) - 1
		s.scheduleStep(rs, now)
	}
}

func (s *Scheduler) updateReview(out *Outcome, quality int, now time.Time) {
	rs := &out.State

	if !out.Passed {
		s.lapse(out, quality, now)
		return
	}

	var interval int
	switch s.cfg.Strategy {
	case srs.StrategyModifier:
		if rs.Interval == 0 {
			interval = s.cfg.InitialInterval
		} else {
			m := s.cfg.Modifier(srs.RatingForQuality(quality))
			interval = int(math.Round(float64(rs.Interval) * rs.Easiness * m))
		}
	default:
		switch {
		case rs.Interval == 0 || rs.Repetitions == 0:
			interval = s.cfg.InitialInterval
		case rs.Repetitions == 1 && s.cfg.SecondInterval > 0:
			interval = s.cfg.SecondInterval
		default:
			interval = int(math.Round(float64(rs.Interval) * rs.Easiness))
		}
		rs.Easiness = s.adjustEase(rs.Easiness, quality)
	}

	rs.Interval = s.clampInterval(interval)
	rs.Repetitions++
	rs.Due = dueInDays(now, rs.Interval)
}

// lapse handles a failed review-phase answer.
func (s *Scheduler) lapse(out *Outcome, quality int, now time.Time) {
	rs := &out.State
	rs.Repetitions = 0
	s.countLapse(out)

	if s.cfg.LapsePenalty > 0 && s.cfg.LapsePenalty < 1 {
		rs.Easiness *= s.cfg.LapsePenalty
	} else {
		rs.Easiness = s.adjustEase(rs.Easiness, quality)
	}

	if s.cfg.DemoteOnLapse && len(s.cfg.LearningSteps) > 0 {
		rs.LearningStep = 0
		s.scheduleStep(rs, now)
		return
	}
	rs.Interval = s.cfg.LapseInterval
	rs.Due = dueInDays(now, rs.Interval)
}

func (s *Scheduler) countLapse(out *Outcome) {
	rs := &out.State
	rs.Lapses++
	if !rs.Leech && rs.Lapses >= s.cfg.LeechThreshold {
		rs.Leech = true
		out.BecameLeech = true
	}
}

func (s *Scheduler) updateFSRS(out *Outcome, quality int, now time.Time) {
	rs := &out.State
	wasReview := fsrs.IsReview(*rs)
	mem := s.fsrs.Next(*rs, srs.RatingForQuality(quality), now)

	rs.Stability = mem.Stability
	rs.Difficulty = mem.Difficulty
	rs.FSRSState = mem.State

	if out.Passed {
		rs.Repetitions++
	} else {
		rs.Repetitions = 0
		if wasReview {
			s.countLapse(out)
		}
	}

	if mem.Review {
		rs.LearningStep = len(s.cfg.LearningSteps)
		out.Graduated = !wasReview
	} else {
		rs.LearningStep = 0
	}

	rs.Interval = mem.Interval
	rs.Due = mem.Due
	if rs.Interval > s.cfg.MaximumInterval {
		rs.Interval = s.cfg.MaximumInterval
		rs.Due = dueInDays(now, rs.Interval)
	}
}

// scheduleStep sets the due time for the state's current learning step.
func (s *Scheduler) scheduleStep(rs *srs.ReviewState, now time.Time) {
	s.scheduleAfter(rs, s.cfg.LearningSteps[rs.LearningStep], now)
}

func (s *Scheduler) scheduleAfter(rs *srs.ReviewState, step srs.Duration, now time.Time) {
	rs.Interval = step.Days()
	rs.Due = now.Add(step.Std())
}

// adjustEase applies the SM-2 ease formula for quality q.
func (s *Scheduler) adjustEase(e float64, q int) float64 {
	d := float64(srs.MaxQuality - q)
	return s.clampEase(e + (0.1 - d*(0.08+d*0.02)))
}

func (s *Scheduler) clampEase(e float64) float64 {
	return math.Max(s.cfg.MinEasiness, e)
}

func (s *Scheduler) clampInterval(days int) int {
	if days < s.cfg.MinimumInterval {
		days = s.cfg.MinimumInterval
	}
	if days > s.cfg.MaximumInterval {
		days = s.cfg.MaximumInterval
	}
	return days
}

func dueInDays(now time.Time, days int) time.Time {
	return srs.StartOfDay(now).AddDate(0, 0, days)
}

// Phase names the phase a state is in under this scheduler's configuration.
func (s *Scheduler) Phase(rs srs.ReviewState) string {
	if rs.InLearning(s.cfg) {
		return "learning"
	}
	return "review"
}

// Describe renders an outcome for logs and tool responses.
func (s *Scheduler) Describe(o Outcome) string {
	rs := o.State
	return fmt.Sprintf("%s %s: interval=%dd reps=%d ease=%.2f due=%s",
		rs.Key(), s.Phase(rs), rs.Interval, rs.Repetitions, rs.Easiness, rs.Due.Format(time.RFC3339))
}
