package main

import (
	"time"

	"github.com/danieldreier/kanji-srs/internal/quiz"
	"github.com/danieldreier/kanji-srs/internal/scheduler"
	"github.com/danieldreier/kanji-srs/internal/selector"
	"github.com/danieldreier/kanji-srs/internal/srs"
)

// Stats represents collection statistics for get_stats.
type Stats struct {
	TotalCards       int  `json:"total_cards"`
	TotalFacets      int  `json:"total_facets"`
	Seen             int  `json:"seen"`
	New              int  `json:"new"`
	Due              int  `json:"due"`
	Overdue          int  `json:"overdue"`
	Learning         int  `json:"learning"`
	Leeches          int  `json:"leeches"`
	IntroducedToday  int  `json:"introduced_today"`
	ReviewedToday    int  `json:"reviewed_today"`
	PendingQuestions int  `json:"pending_questions"`
	InStudyWindow    bool `json:"in_study_window"`
}

// SessionCounts splits a session by kind.
type SessionCounts struct {
	Review int `json:"review"`
	New    int `json:"new"`
}

// SessionResponse represents the response structure for get_session.
type SessionResponse struct {
	Items  []selector.Item `json:"items"`
	Counts SessionCounts   `json:"counts"`
}

// QuestionResponse represents the response structure for next_question.
type QuestionResponse struct {
	Question  quiz.Question `json:"question"`
	Kind      selector.Kind `json:"kind"`
	Remaining SessionCounts `json:"remaining"`
}

// AnswerResponse represents the response structure for answer_question.
type AnswerResponse struct {
	Correct       bool            `json:"correct"`
	CorrectAnswer string          `json:"correct_answer"`
	Chosen        string          `json:"chosen"`
	Quality       int             `json:"quality"`
	State         srs.ReviewState `json:"state"`
	Graduated     bool            `json:"graduated"`
	BecameLeech   bool            `json:"became_leech"`
	NextReview    time.Time       `json:"next_review"`
}

// ReviewResponse represents the response structure for submit_review.
type ReviewResponse struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Outcome scheduler.Outcome `json:"outcome"`
}

// CardView is a card with its stored review states.
type CardView struct {
	srs.Card
	States []srs.ReviewState `json:"states,omitempty"`
}

// ListCardsResponse represents the response structure for list_cards.
type ListCardsResponse struct {
	Total int        `json:"total"`
	Cards []CardView `json:"cards"`
}
