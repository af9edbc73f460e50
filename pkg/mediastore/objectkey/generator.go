// Package objectkey derives blob storage keys.
//
// Keys are time-based, not content-based: two uploads of identical bytes
// deduplicate at the catalog level, and the surviving physical key is the
// one minted for whichever upload arrived first.
package objectkey

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Generator defines the interface for storage key generation strategies.
type Generator interface {
	// GenerateKey derives a fresh key for an upload happening at the given
	// time. filename contributes only its extension.
	GenerateKey(now time.Time, filename string) string
}

// TimeBasedGenerator produces keys of the form
//
//	{prefix/}2006/01/02-150405-8f3a91bc.ext
//
// The date path groups uploads for operational browsing; the random
// fragment disambiguates uploads landing in the same second.
type TimeBasedGenerator struct {
	// Prefix is an optional leading path segment (e.g. "media").
	Prefix string
}

// NewTimeBasedGenerator returns the default key generator.
func NewTimeBasedGenerator(prefix string) *TimeBasedGenerator {
	return &TimeBasedGenerator{Prefix: strings.Trim(prefix, "/")}
}

func (g *TimeBasedGenerator) GenerateKey(now time.Time, filename string) string {
	now = now.UTC()
	frag := strings.ReplaceAll(uuid.New().String(), "-", "")[:8]

	key := fmt.Sprintf("%s-%s-%s%s",
		now.Format("2006/01/02"), now.Format("150405"), frag, extension(filename))
	if g.Prefix != "" {
		key = g.Prefix + "/" + key
	}
	return key
}

// extension returns a sanitized, lowercased file extension including the
// dot, or "" when the filename has none.
func extension(filename string) string {
	ext := strings.ToLower(path.Ext(path.Base(filename)))
	if ext == "." {
		return ""
	}
	for _, r := range ext[1:] {
		if !isKeySafe(r) {
			return ""
		}
	}
	return ext
}

func isKeySafe(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z':
		return true
	case r >= '0' && r <= '9':
		return true
	}
	return false
}
