package domain

import "testing"

func TestQuestionAnswerIndex(t *testing.T) {
	testCases := []struct {
		name    string
		choices []string
		answer  string
		want    int
	}{
		{"first", []string{"a", "b", "c", "d"}, "A", 0},
		{"last", []string{"a", "b", "c", "d"}, "D", 3},
		{"beyond choices", []string{"a", "b"}, "C", -1},
		{"unknown letter", []string{"a", "b"}, "E", -1},
		{"empty", []string{"a", "b"}, "", -1},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			q := Question{Choices: tc.choices, Answer: tc.answer}
			if got := q.AnswerIndex(); got != tc.want {
				t.Errorf("AnswerIndex() = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestQuestionIsCorrect(t *testing.T) {
	q := Question{Choices: []string{"a", "b"}, Answer: "B"}
	if !q.IsCorrect("B") {
		t.Error("expected B to be correct")
	}
	if q.IsCorrect("A") {
		t.Error("expected A to be incorrect")
	}
}
