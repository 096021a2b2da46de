package spaced_repetition

import (
	"math"

	"github.com/example/engbot/pkg/models"
)

// QualityResponse represents the quality of response in SM-2
type QualityResponse int

const (
	// Complete blackout, unable to recall
	QualityBlackout QualityResponse = 0
	// Incorrect response but remembered upon seeing the correct answer
	QualityIncorrect QualityResponse = 1
	// Incorrect response but the correct answer felt familiar
	QualityIncorrectFamiliar QualityResponse = 2
	// Correct response but required significant effort
	QualityCorrectDifficult QualityResponse = 3
	// Correct response after some hesitation
	QualityCorrectHesitation QualityResponse = 4
	// Perfect response with no hesitation
	QualityPerfect QualityResponse = 5
)

// SlowAnswerSeconds is the answer time above which a correct answer loses one quality point.
const SlowAnswerSeconds = 20.0

// IsMastered determines if a card is considered "mastered"
func IsMastered(state models.ReviewState) bool {
	// A card is considered mastered if:
	// 1. It has been reviewed successfully at least 5 times in a row
	// 2. The latest quality response was 4 or 5
	// 3. The interval is at least 30 days
	return state.Repetitions >= 5 &&
		state.LastQuality >= int(QualityCorrectHesitation) &&
		state.Interval >= 30
}

// QualityFromAccuracy derives a 0-5 rating from quiz accuracy (0.0 - 1.0) and the answer time.
// A slow but correct answer is downgraded by one point, never below a pass.
func QualityFromAccuracy(accuracy, secondsSpent float64) int {
	if math.IsNaN(accuracy) || accuracy <= 0 {
		return int(QualityBlackout)
	}
	if accuracy > 1 {
		accuracy = 1
	}

	quality := int(math.Round(accuracy * 5))
	if quality >= int(QualityCorrectHesitation) && secondsSpent > SlowAnswerSeconds {
		quality--
	}
	return quality
}
