package parser

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/conorfennell/part5srs/internal/domain"
)

const (
	questionPrefix    = "Q:"
	answerPrefix      = "A:"
	categoryPrefix    = "C:"
	explanationPrefix = "E:"
	separator         = "---"
)

type state int

const (
	seeking state = iota
	readingSentence
	readingChoices
	readingCategory
	readingExplanation
)

// ParseFile reads a file from the given path and extracts all questions.
func ParseFile(path string) ([]domain.Question, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return Parse(file)
}

// Parse reads from an io.Reader and extracts all questions. A block is
// returned as soon as it has a sentence; callers validate the rest.
func Parse(r io.Reader) ([]domain.Question, error) {
	scanner := bufio.NewScanner(r)
	var questions []domain.Question
	var current domain.Question
	var choices [4]string
	var numChoices int
	var block []string
	currentState := seeking

	flushBlock := func() {
		if len(block) == 0 {
			return
		}
		content := strings.TrimSpace(strings.Join(block, "\n"))
		switch currentState {
		case readingSentence:
			current.Sentence = content
		case readingCategory:
			current.Category = content
		case readingExplanation:
			current.Explanation = content
		}
		block = nil
	}

	finishQuestion := func() {
		flushBlock()
		if current.Sentence != "" {
			current.Choices = append([]string(nil), choices[:numChoices]...)
			questions = append(questions, current)
		}
		current = domain.Question{}
		choices = [4]string{}
		numChoices = 0
		currentState = seeking
	}

	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)

		if trimmed == separator {
			finishQuestion()
			continue
		}

		if idx, text, ok := parseChoice(trimmed); ok && currentState != seeking {
			flushBlock()
			currentState = readingChoices
			choices[idx] = text
			numChoices = max(numChoices, idx+1)
			continue
		}

		switch {
		case strings.HasPrefix(line, questionPrefix):
			if currentState != seeking { // A new question always starts a new block
				finishQuestion()
			}
			currentState = readingSentence
			block = append(block, field(line, questionPrefix))
		case strings.HasPrefix(line, answerPrefix):
			flushBlock()
			currentState = readingChoices
			current.Answer = normalizeAnswer(field(line, answerPrefix))
		case strings.HasPrefix(line, categoryPrefix):
			flushBlock()
			currentState = readingCategory
			block = append(block, field(line, categoryPrefix))
		case strings.HasPrefix(line, explanationPrefix):
			flushBlock()
			currentState = readingExplanation
			block = append(block, field(line, explanationPrefix))
		case currentState == readingSentence || currentState == readingCategory || currentState == readingExplanation:
			block = append(block, line)
		}
	}

	finishQuestion() // Finish the very last question in the file

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return questions, nil
}

// field returns the text after prefix with one leading space removed.
func field(line, prefix string) string {
	content := line[len(prefix):]
	return strings.TrimPrefix(content, " ")
}

// parseChoice recognises a "(A) text" choice line.
func parseChoice(line string) (int, string, bool) {
	if len(line) < 3 || line[0] != '(' || line[2] != ')' {
		return 0, "", false
	}
	idx := strings.Index("ABCD", strings.ToUpper(line[1:2]))
	if idx < 0 {
		return 0, "", false
	}
	return idx, strings.TrimSpace(line[3:]), true
}

// normalizeAnswer accepts "B", "b", "(B)" or "B) text" and returns "B".
func normalizeAnswer(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "(")
	if s == "" {
		return ""
	}
	return strings.ToUpper(s[:1])
}
