package domain

import "time"

// Question is a single TOEIC Part 5 item: a sentence with a blank and
// the candidate words or phrases that may fill it.
type Question struct {
	ID          string   `json:"id" validate:"required"`
	Sentence    string   `json:"sentence" validate:"required"`
	Choices     []string `json:"choices" validate:"min=2,max=4,dive,required"`
	Answer      string   `json:"answer" validate:"required,oneof=A B C D"`
	Category    string   `json:"category,omitempty"`
	Explanation string   `json:"explanation,omitempty"`
	SourceID    int64    `json:"source_id,omitempty"`
}

// ChoiceLabels are the letters printed in front of each choice.
var ChoiceLabels = []string{"A", "B", "C", "D"}

// AnswerIndex returns the position of the answer in Choices, or -1.
func (q Question) AnswerIndex() int {
	for i, l := range ChoiceLabels {
		if l == q.Answer {
			if i < len(q.Choices) {
				return i
			}
			break
		}
	}
	return -1
}

// IsCorrect reports whether the given choice letter is the answer.
func (q Question) IsCorrect(letter string) bool {
	return letter == q.Answer
}

// ReviewLog records a single answer to a question.
// Quality follows the SM-2 convention:
// 0: blackout / answer revealed
// 1: incorrect
// 3: correct with difficulty
// 4: correct
// 5: perfect
type ReviewLog struct {
	QuestionID      string
	ReviewedAt      time.Time
	Quality         int
	Correct         bool
	IntervalSeconds int64
}

// Source represents a question source, either a local path or a Git URL.
type Source struct {
	ID          int64     `json:"id"`
	Path        string    `json:"path"`
	Type        string    `json:"type"`
	LastScanned time.Time `json:"last_scanned"`
}

const (
	SourceLocal = "local"
	SourceGit   = "git"
)
