// Package selector builds the daily study session: which facets are due,
// which new facets to introduce, and in what order.
package selector

import (
	"math/rand"
	"sort"
	"time"

	"github.com/danieldreier/kanji-srs/internal/fsrs"
	"github.com/danieldreier/kanji-srs/internal/srs"
)

// Kind distinguishes reviews from first introductions.
type Kind string

const (
	KindReview Kind = "review"
	KindNew    Kind = "new"
)

// Item is one facet to study.
type Item struct {
	CardID string        `json:"card_id"`
	Facet  srs.FacetKind `json:"facet"`
	Kind   Kind          `json:"kind"`
}

// Key returns the review-state key of the item.
func (it Item) Key() srs.Key {
	return srs.KeyOf(it.CardID, it.Facet)
}

// Session is an ordered batch of items.
type Session struct {
	Items []Item `json:"items"`
}

// Len returns the number of items in the session.
func (s Session) Len() int {
	return len(s.Items)
}

// Counts returns the number of review and new items.
func (s Session) Counts() (review, fresh int) {
	for _, it := range s.Items {
		if it.Kind == KindReview {
			review++
		} else {
			fresh++
		}
	}
	return review, fresh
}

// Shuffle permutes reviews among review slots and new items among new
// slots, leaving the mix pattern intact.
func (s Session) Shuffle(rng *rand.Rand) {
	for _, kind := range []Kind{KindReview, KindNew} {
		var slots []int
		for i, it := range s.Items {
			if it.Kind == kind {
				slots = append(slots, i)
			}
		}
		rng.Shuffle(len(slots), func(i, j int) {
			a, b := slots[i], slots[j]
			s.Items[a], s.Items[b] = s.Items[b], s.Items[a]
		})
	}
}

type options struct {
	facets          []srs.FacetKind
	introducedToday int
}

// Option adjusts a selection.
type Option func(*options)

// WithFacets restricts the session to the given facets.
func WithFacets(facets ...srs.FacetKind) Option {
	return func(o *options) {
		if len(facets) > 0 {
			o.facets = facets
		}
	}
}

// WithIntroducedToday counts n already-introduced facets against the
// new-item cap.
func WithIntroducedToday(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.introducedToday = n
		}
	}
}

type candidate struct {
	item     Item
	priority float64
}

// Select builds the session for now. cards are expected in the card store's
// order, which is kept for new items.
func Select(cards []srs.Card, states map[srs.Key]srs.ReviewState, cfg srs.Config, now time.Time, opts ...Option) Session {
	o := options{facets: srs.AllFacets()}
	for _, opt := range opts {
		opt(&o)
	}

	var due []candidate
	var fresh []Item
	for _, card := range cards {
		for _, facet := range o.facets {
			if _, ok := card.Value(facet); !ok {
				continue
			}
			key := srs.KeyOf(card.ID, facet)
			rs, ok := states[key]
			if !ok || rs.Unseen() {
				fresh = append(fresh, Item{CardID: card.ID, Facet: facet, Kind: KindNew})
				continue
			}
			if !rs.IsDue(now) || (rs.Leech && cfg.SuspendLeeches) {
				continue
			}
			due = append(due, candidate{
				item:     Item{CardID: card.ID, Facet: facet, Kind: KindReview},
				priority: fsrs.ReviewPriority(rs, cfg, now),
			})
		}
	}

	sort.SliceStable(due, func(i, j int) bool {
		return due[i].priority > due[j].priority
	})

	newCap := cfg.NewCardsPerDay - o.introducedToday
	if newCap < 0 {
		newCap = 0
	}
	if len(fresh) > newCap {
		fresh = fresh[:newCap]
	}

	if len(due)+len(fresh) > cfg.DailyCardLimit {
		if len(due) > cfg.DailyCardLimit {
			due = due[:cfg.DailyCardLimit]
		}
		if len(due)+len(fresh) > cfg.DailyCardLimit {
			fresh = nil
		}
	}

	reviews := make([]Item, len(due))
	for i, c := range due {
		reviews[i] = c.item
	}
	return Session{Items: mix(reviews, fresh, cfg.MixStrategy)}
}

func mix(reviews, fresh []Item, strategy srs.MixStrategy) []Item {
	out := make([]Item, 0, len(reviews)+len(fresh))
	if strategy == srs.MixBlocked {
		out = append(out, reviews...)
		return append(out, fresh...)
	}
	i, j := 0, 0
	for i < len(reviews) && j < len(fresh) {
		out = append(out, reviews[i], fresh[j])
		i++
		j++
	}
	out = append(out, reviews[i:]...)
	return append(out, fresh[j:]...)
}
