// Package keys turns free-form placeholder labels into stable identifier keys.
package keys

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DefaultFallback is the key used when a label has no usable characters.
const DefaultFallback = "field"

// Normalizer maps labels to keys made only of [a-z0-9_], with no leading,
// trailing or repeated underscores. Normalize is idempotent.
type Normalizer struct {
	fallback string
}

// NewNormalizer creates a Normalizer. An empty or non-normal fallback is
// replaced by its own normalized form, or DefaultFallback.
func NewNormalizer(fallback string) *Normalizer {
	n := &Normalizer{fallback: DefaultFallback}
	if f := n.fold(fallback); f != "" {
		n.fallback = f
	}
	return n
}

// Normalize returns the key for label, never empty.
func (n *Normalizer) Normalize(label string) string {
	if key := n.fold(label); key != "" {
		return key
	}
	return n.fallback
}

// Fallback returns the key used for labels with no usable characters.
func (n *Normalizer) Fallback() string {
	return n.fallback
}

func (n *Normalizer) fold(label string) string {
	stripped, _, err := transform.String(
		transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC),
		strings.ToLower(label),
	)
	if err != nil {
		stripped = strings.ToLower(label)
	}

	var b strings.Builder
	b.Grow(len(stripped))
	pendingSep := false
	for _, r := range stripped {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
			continue
		}
		pendingSep = true
	}
	return b.String()
}
