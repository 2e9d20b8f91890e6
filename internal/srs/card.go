// Package srs holds the domain model shared by the scheduler, the selector
// and the stores: cards and their quizzable facets, per-facet review state
// and the scheduling configuration.
package srs

import (
	"fmt"
	"strings"
)

// FacetKind names one quizzable aspect of a card.
type FacetKind string

const (
	FacetMeaning    FacetKind = "meaning"
	FacetReadingOn  FacetKind = "reading_on"
	FacetReadingKun FacetKind = "reading_kun"
)

// AllFacets returns every facet kind in canonical order.
func AllFacets() []FacetKind {
	return []FacetKind{FacetMeaning, FacetReadingOn, FacetReadingKun}
}

// ParseFacet converts a facet name into a FacetKind.
func ParseFacet(s string) (FacetKind, error) {
	f := FacetKind(strings.ToLower(strings.TrimSpace(s)))
	if !f.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownFacet, s)
	}
	return f, nil
}

// Valid reports whether f is one of the known facet kinds.
func (f FacetKind) Valid() bool {
	switch f {
	case FacetMeaning, FacetReadingOn, FacetReadingKun:
		return true
	}
	return false
}

func (f FacetKind) String() string {
	return string(f)
}

// Card is a learnable kanji with its back-face values.
type Card struct {
	ID        string               `json:"id"`
	Character string               `json:"character"`
	Facets    map[FacetKind]string `json:"facets"`
	// Frequency is the upstream frequency rank; lower is more common.
	// Zero means unknown.
	Frequency int `json:"frequency,omitempty"`
}

// Value returns the card's value for facet f and whether it is quizzable.
func (c Card) Value(f FacetKind) (string, bool) {
	v, ok := c.Facets[f]
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return v, true
}

// QuizzableFacets returns the facets of c that carry a value, in canonical order.
func (c Card) QuizzableFacets() []FacetKind {
	var out []FacetKind
	for _, f := range AllFacets() {
		if _, ok := c.Value(f); ok {
			out = append(out, f)
		}
	}
	return out
}

// Key identifies one review record.
type Key struct {
	CardID string    `json:"card_id"`
	Facet  FacetKind `json:"facet"`
}

// KeyOf builds the Key for a card facet.
func KeyOf(cardID string, facet FacetKind) Key {
	return Key{CardID: cardID, Facet: facet}
}

// Validate checks that the key names a card and a known facet.
func (k Key) Validate() error {
	if strings.TrimSpace(k.CardID) == "" {
		return ErrMissingCardID
	}
	if !k.Facet.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownFacet, k.Facet)
	}
	return nil
}

func (k Key) String() string {
	return k.CardID + "/" + string(k.Facet)
}
