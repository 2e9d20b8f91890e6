package srs

import "errors"

// Sentinel errors for the srs package.
// Use errors.Is to check: errors.Is(err, srs.ErrInvalidRating)
var (
	ErrInvalidRating = errors.New("srs: quality must be between 1 and 5")
	ErrUnknownFacet  = errors.New("srs: unknown facet")
	ErrMissingCardID = errors.New("srs: missing card id")
	ErrFacetNotFound = errors.New("srs: card has no value for facet")
	ErrInvalidState  = errors.New("srs: invalid review state")
	ErrInvalidConfig = errors.New("srs: invalid configuration")
)
