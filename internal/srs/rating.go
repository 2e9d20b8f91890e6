package srs

import "fmt"

// Quality bounds on the 1–5 answer scale.
const (
	MinQuality = 1
	MaxQuality = 5
)

// CheckQuality rejects qualities outside [MinQuality, MaxQuality].
func CheckQuality(q int) error {
	if q < MinQuality || q > MaxQuality {
		return fmt.Errorf("%w: got %d", ErrInvalidRating, q)
	}
	return nil
}

// Rating is the four-button response scale used by the interval modifier
// table and by the FSRS strategy.
type Rating int

const (
	Again Rating = iota + 1
	Hard
	Good
	Easy
)

// RatingNames lists the response scale in order.
var RatingNames = []string{"Again", "Hard", "Good", "Easy"}

func (r Rating) String() string {
	if r < Again || r > Easy {
		return fmt.Sprintf("Rating(%d)", int(r))
	}
	return RatingNames[r-1]
}

// RatingForQuality folds the 1–5 quality scale onto the four-button scale:
// 1 and 2 are Again, 3 Hard, 4 Good, 5 Easy.
func RatingForQuality(q int) Rating {
	switch {
	case q <= 2:
		return Again
	case q == 3:
		return Hard
	case q == 4:
		return Good
	default:
		return Easy
	}
}
