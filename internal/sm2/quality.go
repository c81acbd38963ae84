package sm2

import (
	"fmt"
	"strings"
)

// Quality grades how well a question was recalled, from 0 to 5.
type Quality int

const (
	// Complete blackout, or the answer was revealed without an attempt.
	QualityBlackout Quality = 0
	// Incorrect response.
	QualityIncorrect Quality = 1
	// Incorrect, but the correct answer felt familiar.
	QualityIncorrectFamiliar Quality = 2
	// Correct response that required significant effort.
	QualityCorrectDifficult Quality = 3
	// Correct response.
	QualityCorrect Quality = 4
	// Perfect response with no hesitation.
	QualityPerfect Quality = 5
)

// Valid reports whether q is inside [0,5].
func (q Quality) Valid() bool {
	return q >= QualityBlackout && q <= QualityPerfect
}

// Passed reports whether q meets the pass threshold.
func (q Quality) Passed(threshold int) bool {
	return int(q) >= threshold
}

// Outcome is how a quiz flow scored one answer.
type Outcome string

const (
	OutcomeCorrect   Outcome = "correct"
	OutcomePerfect   Outcome = "perfect"
	OutcomeIncorrect Outcome = "incorrect"
	// OutcomeRevealed is an answer shown without an attempt. It counts as a
	// total failure.
	OutcomeRevealed Outcome = "revealed"
)

// ParseOutcome converts a string to an Outcome.
func ParseOutcome(s string) (Outcome, error) {
	switch o := Outcome(strings.ToLower(strings.TrimSpace(s))); o {
	case OutcomeCorrect, OutcomePerfect, OutcomeIncorrect, OutcomeRevealed:
		return o, nil
	default:
		return "", fmt.Errorf("unknown outcome %q", s)
	}
}

// QualityFor maps a scored outcome to a quality rating.
func QualityFor(o Outcome) (Quality, error) {
	switch o {
	case OutcomeCorrect:
		return QualityCorrect, nil
	case OutcomePerfect:
		return QualityPerfect, nil
	case OutcomeIncorrect:
		return QualityIncorrect, nil
	case OutcomeRevealed:
		return QualityBlackout, nil
	default:
		return 0, fmt.Errorf("unknown outcome %q", o)
	}
}

// QualityFromCorrect is the two-level mapping used by plain right/wrong
// quiz flows.
func QualityFromCorrect(correct bool) Quality {
	if correct {
		return QualityCorrect
	}
	return QualityIncorrect
}
