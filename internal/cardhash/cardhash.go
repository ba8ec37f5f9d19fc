// Package cardhash derives a stable content identity for imported cards,
// so re-importing a source never duplicates cards whose text is unchanged.
package cardhash

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/conorfennell/recall/internal/domain"
)

// Normalize concatenates the card's content after cleaning each part.
// It trims whitespace, lowercases, and normalizes line endings for each
// field before joining them.
func Normalize(card domain.Card) string {
	normalizePart := func(part string) string {
		p := strings.ToLower(part)
		p = strings.TrimSpace(p)
		p = strings.ReplaceAll(p, "\r\n", "\n")
		return p
	}

	front := normalizePart(card.Front)
	back := normalizePart(card.Back)
	ctx := normalizePart(card.Context)

	// Joined with a newline so fields stay separated and "question" plus
	// "answer" can never collide with "questionanswer".
	return strings.Join([]string{front, back, ctx}, "\n")
}

// Hash normalizes a card and returns its SHA-256 hash as a hex string.
func Hash(card domain.Card) string {
	normalized := Normalize(card)
	sum := sha256.Sum256([]byte(normalized))
	return fmt.Sprintf("%x", sum)
}
