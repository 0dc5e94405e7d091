// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package slug turns event titles into short ASCII fragments for object
// keys, so stored images carry a readable name.
package slug

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MaxLen is the longest fragment Generate returns.
const MaxLen = 48

var (
	// apostrophes are dropped so "Ana's" becomes "anas".
	apostrophes = regexp.MustCompile(`['’]`)
	// nonAlphanumeric runs collapse into a single hyphen.
	nonAlphanumeric = regexp.MustCompile(`[^a-z0-9]+`)
)

// Generate lowercases s, folds accented letters to ASCII and joins the
// remaining words with hyphens. Anything else is dropped. The result is
// at most MaxLen bytes, cut at a word boundary when one is close.
// Example: "Café Gala, 2026!" → "cafe-gala-2026"
func Generate(s string) string {
	fold := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(fold, s)
	if err != nil {
		folded = s
	}

	out := apostrophes.ReplaceAllString(strings.ToLower(folded), "")
	out = nonAlphanumeric.ReplaceAllString(out, "-")
	out = strings.Trim(out, "-")

	if len(out) > MaxLen {
		out = out[:MaxLen]
		if i := strings.LastIndexByte(out, '-'); i > MaxLen/2 {
			out = out[:i]
		}
		out = strings.TrimRight(out, "-")
	}
	return out
}
