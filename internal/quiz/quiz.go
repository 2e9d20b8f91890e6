// Package quiz turns cards into multiple-choice questions and keeps the
// answers of outstanding questions until they are graded or expire.
package quiz

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/danieldreier/kanji-srs/internal/distractor"
	"github.com/danieldreier/kanji-srs/internal/srs"
	"github.com/google/uuid"
)

var (
	ErrQuestionExpired  = errors.New("quiz: question expired or unknown")
	ErrNoQuestions      = errors.New("quiz: nothing to ask")
	ErrInvalidDirection = errors.New("quiz: invalid direction")
	ErrTooFewChoices    = errors.New("quiz: not enough distinct answers for a question")
)

// Qualities assigned to multiple-choice answers.
const (
	QualityCorrect = 5
	QualityWrong   = 1
)

const frontName = "kanji"

// Direction says which side of a card is shown. Forward shows the kanji and
// asks for the facet value; Reverse shows the facet value and asks for the
// kanji.
type Direction struct {
	Facet   srs.FacetKind
	Reverse bool
}

// ParseDirection parses "kanji-<facet>" or "<facet>-kanji".
func ParseDirection(s string) (Direction, error) {
	from, to, ok := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "-")
	if !ok {
		return Direction{}, fmt.Errorf("%w: %q", ErrInvalidDirection, s)
	}
	switch {
	case from == frontName && to != frontName:
		f, err := srs.ParseFacet(to)
		if err != nil {
			return Direction{}, fmt.Errorf("%w: %v", ErrInvalidDirection, err)
		}
		return Direction{Facet: f}, nil
	case to == frontName && from != frontName:
		f, err := srs.ParseFacet(from)
		if err != nil {
			return Direction{}, fmt.Errorf("%w: %v", ErrInvalidDirection, err)
		}
		return Direction{Facet: f, Reverse: true}, nil
	}
	return Direction{}, fmt.Errorf("%w: %q", ErrInvalidDirection, s)
}

// AllDirections lists every forward and reverse direction.
func AllDirections() []Direction {
	var out []Direction
	for _, f := range srs.AllFacets() {
		out = append(out, Direction{Facet: f}, Direction{Facet: f, Reverse: true})
	}
	return out
}

func (d Direction) String() string {
	if d.Reverse {
		return string(d.Facet) + "-" + frontName
	}
	return frontName + "-" + string(d.Facet)
}

// sides returns the prompt and answer of card in this direction.
func (d Direction) sides(card srs.Card) (prompt, answer string, err error) {
	v, ok := card.Value(d.Facet)
	if !ok {
		return "", "", fmt.Errorf("%w: card %s has no %s", srs.ErrFacetNotFound, card.ID, d.Facet)
	}
	if d.Reverse {
		return v, card.Character, nil
	}
	return card.Character, v, nil
}

func (d Direction) answerValue() distractor.ValueFunc {
	if d.Reverse {
		return distractor.CharacterValue
	}
	return distractor.FacetValue(d.Facet)
}

// Question is a multiple-choice question awaiting an answer.
type Question struct {
	Token     string        `json:"token"`
	CardID    string        `json:"card_id"`
	Facet     srs.FacetKind `json:"facet"`
	Direction string        `json:"direction"`
	Prompt    string        `json:"prompt"`
	Options   []string      `json:"options"`
	ExpiresAt time.Time     `json:"expires_at"`

	correct int
}

// Key returns the review-state key the question exercises.
func (q Question) Key() srs.Key {
	return srs.KeyOf(q.CardID, q.Facet)
}

// Answer returns the correct option text.
func (q Question) Answer() string {
	if q.correct < 0 || q.correct >= len(q.Options) {
		return ""
	}
	return q.Options[q.correct]
}

// Grade scores choice, a zero-based option index.
func (q Question) Grade(choice int) (quality int, correct bool) {
	if choice == q.correct {
		return QualityCorrect, true
	}
	return QualityWrong, false
}

// Builder creates questions. It is safe for concurrent use.
type Builder struct {
	numChoices int

	mu  sync.Mutex
	rng *rand.Rand
}

// NewBuilder returns a builder producing up to numChoices options per question.
func NewBuilder(numChoices int, rng *rand.Rand) *Builder {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Builder{numChoices: numChoices, rng: rng}
}

// Build creates a question for card in direction dir, drawing distractors
// from pool.
func (b *Builder) Build(card srs.Card, dir Direction, pool []srs.Card) (Question, error) {
	prompt, answer, err := dir.sides(card)
	if err != nil {
		return Question{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	wrong := distractor.Generate(pool, answer, dir.answerValue(), b.numChoices-1, b.rng)
	if len(wrong) == 0 {
		return Question{}, fmt.Errorf("%w: card %s %s", ErrTooFewChoices, card.ID, dir)
	}
	options, correct := distractor.Options(answer, wrong, b.rng)

	return Question{
		Token:     uuid.New().String(),
		CardID:    card.ID,
		Facet:     dir.Facet,
		Direction: dir.String(),
		Prompt:    prompt,
		Options:   options,
		correct:   correct,
	}, nil
}

// Cache holds outstanding questions until they are answered or expire.
type Cache struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	pending map[string]Question
}

// NewCache returns a cache whose entries live for ttl. A nil clock uses time.Now.
func NewCache(ttl time.Duration, now func() time.Time) *Cache {
	if now == nil {
		now = time.Now
	}
	return &Cache{ttl: ttl, now: now, pending: make(map[string]Question)}
}

// Put stores q and returns it with its expiry set. Expired entries are
// swept on every Put.
func (c *Cache) Put(q Question) Question {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.sweepLocked(now)
	q.ExpiresAt = now.Add(c.ttl)
	c.pending[q.Token] = q
	return q
}

// Take removes and returns the question for token.
func (c *Cache) Take(token string) (Question, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	q, ok := c.pending[token]
	if !ok {
		return Question{}, ErrQuestionExpired
	}
	delete(c.pending, token)
	if !c.now().Before(q.ExpiresAt) {
		return Question{}, ErrQuestionExpired
	}
	return q, nil
}

// Sweep drops expired questions and returns how many were removed.
func (c *Cache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sweepLocked(c.now())
}

func (c *Cache) sweepLocked(now time.Time) int {
	n := 0
	for token, q := range c.pending {
		if !now.Before(q.ExpiresAt) {
			delete(c.pending, token)
			n++
		}
	}
	return n
}

// Len returns the number of questions held, expired or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
