package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/danieldreier/kanji-srs/internal/quiz"
	"github.com/danieldreier/kanji-srs/internal/scheduler"
	"github.com/danieldreier/kanji-srs/internal/selector"
	"github.com/danieldreier/kanji-srs/internal/srs"
	"github.com/danieldreier/kanji-srs/internal/storage"
	"go.uber.org/zap"
)

// timeNow is replaced in tests.
var timeNow = time.Now

// StudyService ties the stores, the scheduler, the selector and the
// question cache together.
type StudyService struct {
	Store     storage.Store
	Scheduler *scheduler.Scheduler
	Config    srs.Config
	Questions *quiz.Cache
	Builder   *quiz.Builder
	Logger    *zap.Logger

	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewStudyService creates a StudyService for store using cfg.
func NewStudyService(store storage.Store, cfg srs.Config, logger *zap.Logger) (*StudyService, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	sched, err := scheduler.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("error creating scheduler: %w", err)
	}
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	return &StudyService{
		Store:     store,
		Scheduler: sched,
		Config:    cfg,
		Questions: quiz.NewCache(cfg.QuestionTTL.Std(), func() time.Time { return timeNow() }),
		Builder:   quiz.NewBuilder(cfg.NumChoices, rand.New(rand.NewSource(rng.Int63()))),
		Logger:    logger,
		rng:       rng,
	}, nil
}

// ScheduleUpdate records an answer of the given quality for one facet.
func (s *StudyService) ScheduleUpdate(ctx context.Context, cardID string, facet srs.FacetKind, quality int) (scheduler.Outcome, error) {
	return s.ScheduleUpdateWithTime(ctx, cardID, facet, quality, timeNow())
}

// ScheduleUpdateWithTime is ScheduleUpdate at an explicit time.
func (s *StudyService) ScheduleUpdateWithTime(ctx context.Context, cardID string, facet srs.FacetKind, quality int, now time.Time) (scheduler.Outcome, error) {
	s.Logger.Debug("ScheduleUpdate called",
		zap.String("card_id", cardID),
		zap.String("facet", string(facet)),
		zap.Int("quality", quality))

	if err := srs.CheckQuality(quality); err != nil {
		return scheduler.Outcome{}, err
	}
	key := srs.KeyOf(cardID, facet)
	if err := key.Validate(); err != nil {
		return scheduler.Outcome{}, err
	}

	card, err := s.Store.GetCard(ctx, cardID)
	if err != nil {
		return scheduler.Outcome{}, fmt.Errorf("error getting card %s: %w", cardID, err)
	}
	if _, ok := card.Value(facet); !ok {
		return scheduler.Outcome{}, fmt.Errorf("%w: card %s has no %s", srs.ErrFacetNotFound, cardID, facet)
	}

	var outcome scheduler.Outcome
	var wasNew bool
	_, err = s.Store.Update(ctx, key, func(cur srs.ReviewState, ok bool) (srs.ReviewState, error) {
		if !ok {
			cur = srs.NewReviewState(cardID, facet, s.Config, now)
		}
		wasNew = cur.Unseen()
		out, err := s.Scheduler.Update(cur, quality, now)
		if err != nil {
			return srs.ReviewState{}, err
		}
		outcome = out
		return out.State, nil
	})
	if err != nil {
		s.Logger.Error("Error updating review state", zap.String("key", key.String()), zap.Error(err))
		return scheduler.Outcome{}, fmt.Errorf("error updating review state for %s: %w", key, err)
	}

	review := storage.Review{
		CardID:    cardID,
		Facet:     facet,
		Quality:   quality,
		Passed:    outcome.Passed,
		WasNew:    wasNew,
		Timestamp: now,
		Interval:  outcome.State.Interval,
		Easiness:  outcome.State.Easiness,
	}
	if err := s.Store.AddReview(ctx, review); err != nil {
		s.Logger.Warn("Failed to record review, state was saved", zap.String("key", key.String()), zap.Error(err))
	}

	s.Logger.Info("Review scheduled", zap.String("summary", s.Scheduler.Describe(outcome)))
	if outcome.BecameLeech {
		s.Logger.Warn("Facet became a leech",
			zap.String("card_id", cardID),
			zap.String("facet", string(facet)),
			zap.Int("lapses", outcome.State.Lapses))
	}
	return outcome, nil
}

// SessionOptions narrows a session.
type SessionOptions struct {
	Facets  []srs.FacetKind
	Shuffle bool
}

// GetSession returns the study session for now.
func (s *StudyService) GetSession(ctx context.Context, now time.Time, opts SessionOptions) (selector.Session, error) {
	cards, err := s.Store.ListCards(ctx)
	if err != nil {
		return selector.Session{}, fmt.Errorf("error listing cards: %w", err)
	}
	if len(cards) == 0 {
		s.Logger.Debug("No cards in store, returning empty session")
		return selector.Session{}, nil
	}

	states, err := s.Store.List(ctx)
	if err != nil {
		return selector.Session{}, fmt.Errorf("error listing review states: %w", err)
	}
	introduced, err := s.Store.IntroducedSince(ctx, srs.StartOfDay(now))
	if err != nil {
		return selector.Session{}, fmt.Errorf("error counting new facets introduced today: %w", err)
	}

	session := selector.Select(cards, states, s.Config, now,
		selector.WithFacets(opts.Facets...),
		selector.WithIntroducedToday(introduced))
	if opts.Shuffle {
		s.rngMu.Lock()
		session.Shuffle(s.rng)
		s.rngMu.Unlock()
	}

	review, fresh := session.Counts()
	s.Logger.Debug("Session built",
		zap.Int("review", review),
		zap.Int("new", fresh),
		zap.Int("introduced_today", introduced))
	return session, nil
}

// NextQuestion builds a multiple-choice question for the most urgent facet
// in direction dir.
func (s *StudyService) NextQuestion(ctx context.Context, dir quiz.Direction) (QuestionResponse, error) {
	now := timeNow()
	session, err := s.GetSession(ctx, now, SessionOptions{Facets: []srs.FacetKind{dir.Facet}})
	if err != nil {
		return QuestionResponse{}, err
	}
	if session.Len() == 0 {
		return QuestionResponse{}, quiz.ErrNoQuestions
	}

	pool, err := s.Store.ListCards(ctx)
	if err != nil {
		return QuestionResponse{}, fmt.Errorf("error listing cards: %w", err)
	}

	for _, item := range session.Items {
		card, err := s.Store.GetCard(ctx, item.CardID)
		if err != nil {
			return QuestionResponse{}, fmt.Errorf("error getting card %s: %w", item.CardID, err)
		}
		q, err := s.Builder.Build(card, dir, pool)
		if errors.Is(err, quiz.ErrTooFewChoices) {
			s.Logger.Debug("Skipping card without distractors", zap.String("card_id", card.ID))
			continue
		}
		if err != nil {
			return QuestionResponse{}, err
		}
		q = s.Questions.Put(q)
		review, fresh := session.Counts()
		return QuestionResponse{
			Question: q,
			Kind:     item.Kind,
			Remaining: SessionCounts{
				Review: review,
				New:    fresh,
			},
		}, nil
	}
	return QuestionResponse{}, quiz.ErrNoQuestions
}

// AnswerQuestion grades choice, a zero-based option index, for the
// outstanding question token and schedules the facet.
func (s *StudyService) AnswerQuestion(ctx context.Context, token string, choice int) (AnswerResponse, error) {
	q, err := s.Questions.Take(token)
	if err != nil {
		return AnswerResponse{}, err
	}
	quality, correct := q.Grade(choice)

	outcome, err := s.ScheduleUpdate(ctx, q.CardID, q.Facet, quality)
	if err != nil {
		return AnswerResponse{}, err
	}

	chosen := ""
	if choice >= 0 && choice < len(q.Options) {
		chosen = q.Options[choice]
	}
	return AnswerResponse{
		Correct:       correct,
		CorrectAnswer: q.Answer(),
		Chosen:        chosen,
		Quality:       quality,
		State:         outcome.State,
		Graduated:     outcome.Graduated,
		BecameLeech:   outcome.BecameLeech,
		NextReview:    outcome.State.Due,
	}, nil
}

// Stats summarizes the collection at now.
func (s *StudyService) Stats(ctx context.Context, now time.Time) (Stats, error) {
	cards, err := s.Store.ListCards(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("error listing cards: %w", err)
	}
	states, err := s.Store.List(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("error listing review states: %w", err)
	}
	introduced, err := s.Store.IntroducedSince(ctx, srs.StartOfDay(now))
	if err != nil {
		return Stats{}, fmt.Errorf("error counting new facets introduced today: %w", err)
	}

	s.Questions.Sweep()
	st := Stats{
		TotalCards:       len(cards),
		IntroducedToday:  introduced,
		PendingQuestions: s.Questions.Len(),
		InStudyWindow:    s.Config.LearningWindow.InWindow(now),
	}
	for _, card := range cards {
		for _, facet := range card.QuizzableFacets() {
			st.TotalFacets++
			rs, ok := states[srs.KeyOf(card.ID, facet)]
			if !ok || rs.Unseen() {
				st.New++
				continue
			}
			st.Seen++
			if rs.Leech {
				st.Leeches++
			}
			if rs.InLearning(s.Config) {
				st.Learning++
			}
			if !rs.LastReview.IsZero() && srs.SameDay(now, rs.LastReview) {
				st.ReviewedToday++
			}
			if rs.IsDue(now) && !(rs.Leech && s.Config.SuspendLeeches) {
				st.Due++
				if rs.OverdueDays(now) >= 1 {
					st.Overdue++
				}
			}
		}
	}
	return st, nil
}

// ListCards returns a page of cards, optionally with their review states.
func (s *StudyService) ListCards(ctx context.Context, offset, limit int, withStates bool) (ListCardsResponse, error) {
	cards, err := s.Store.ListCards(ctx)
	if err != nil {
		return ListCardsResponse{}, fmt.Errorf("error listing cards: %w", err)
	}
	resp := ListCardsResponse{Total: len(cards), Cards: []CardView{}}
	if offset < 0 {
		offset = 0
	}
	if offset >= len(cards) {
		return resp, nil
	}
	end := len(cards)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}

	var states map[srs.Key]srs.ReviewState
	if withStates {
		if states, err = s.Store.List(ctx); err != nil {
			return ListCardsResponse{}, fmt.Errorf("error listing review states: %w", err)
		}
	}
	for _, card := range cards[offset:end] {
		view := CardView{Card: card}
		for _, facet := range card.QuizzableFacets() {
			if rs, ok := states[srs.KeyOf(card.ID, facet)]; ok {
				view.States = append(view.States, rs)
			}
		}
		resp.Cards = append(resp.Cards, view)
	}
	return resp, nil
}
