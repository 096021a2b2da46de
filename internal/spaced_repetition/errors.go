package spaced_repetition

import "errors"

// Sentinel errors for the spaced_repetition package.
// Use errors.Is to check: errors.Is(err, spaced_repetition.ErrInvalidRating)
var (
	ErrInvalidRating  = errors.New("spaced_repetition: invalid quality rating")
	ErrInvalidHistory = errors.New("spaced_repetition: malformed review log entry")
)
