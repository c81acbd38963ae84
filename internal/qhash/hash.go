package qhash

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/conorfennell/part5srs/internal/domain"
)

// Normalize concatenates the question's sentence and choices after cleaning
// each part. It trims whitespace, lowercases, and normalizes line endings
// for each field before joining them.
//
// The answer, category and explanation are left out so that fixing a typo
// in an explanation keeps the question's review history.
func Normalize(q domain.Question) string {
	normalizePart := func(part string) string {
		p := strings.ToLower(part)
		p = strings.TrimSpace(p)
		p = strings.ReplaceAll(p, "\r\n", "\n")
		return p
	}

	parts := make([]string, 0, 1+len(q.Choices))
	parts = append(parts, normalizePart(q.Sentence))
	for _, c := range q.Choices {
		parts = append(parts, normalizePart(c))
	}

	// Joined with a newline so that adjacent fields never run together.
	return strings.Join(parts, "\n")
}

// Hash takes a question, normalizes it, and returns its SHA-256 hash as a hex string.
func Hash(q domain.Question) string {
	normalized := Normalize(q)
	hashBytes := sha256.Sum256([]byte(normalized))
	return fmt.Sprintf("%x", hashBytes)
}
