// Package serial generates human-readable ticket serials of the form
// PREFIX-YEAR-XXXXXXXX, where the suffix is four random bytes in upper hex.
package serial

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"
)

// DefaultPrefix is used when a Generator has no prefix configured.
const DefaultPrefix = "MN"

var pattern = regexp.MustCompile(`^[A-Z]+-[0-9]{4}-[0-9A-F]{8}$`)

// Generator produces ticket serials. The zero value is usable.
type Generator struct {
	Prefix string
	Now    func() time.Time
	Rand   io.Reader
}

// New returns a Generator with the given prefix backed by crypto/rand.
func New(prefix string) *Generator {
	return &Generator{Prefix: prefix}
}

// Generate returns a fresh serial. Uniqueness is enforced by the store;
// callers retry on a duplicate.
func (g *Generator) Generate() string {
	prefix := g.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}
	now := time.Now
	if g.Now != nil {
		now = g.Now
	}
	src := g.Rand
	if src == nil {
		src = rand.Reader
	}

	b := make([]byte, 4)
	if _, err := io.ReadFull(src, b); err != nil {
		// crypto/rand does not fail on supported platforms
		panic(fmt.Sprintf("serial: read random bytes: %v", err))
	}
	return fmt.Sprintf("%s-%d-%s", prefix, now().Year(), strings.ToUpper(hex.EncodeToString(b)))
}

// Valid reports whether s has the shape of a generated serial.
func Valid(s string) bool {
	return pattern.MatchString(s)
}

// Normalize trims whitespace and upper-cases manually entered serials.
func Normalize(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
