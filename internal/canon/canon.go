// Package canon normalizes rich-text content into a stable canonical form.
// Jira renders descriptions and comment bodies as HTML, and re-renders of
// identical content can differ in markup, entity encoding, whitespace, and
// unicode composition. Fingerprints are computed over the canonical form so
// that only substantive edits register as changes.
package canon

import (
	"html"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var (
	tagRe       = regexp.MustCompile(`<[^>]*>`)
	spaceRunRe  = regexp.MustCompile(`[ \t]+`)
	zeroWidthRe = regexp.MustCompile("[\\x{200B}-\\x{200D}\\x{FEFF}]")
)

var foldCaser = cases.Fold()

// Canonicalize reduces raw markup text to a stable comparable string.
// Missing content (empty input) canonicalizes to the empty string. The
// transformation is best-effort and never fails, even on malformed markup.
//
// Steps, in order: strip tags, decode HTML entities, normalize line endings
// to \n, apply unicode NFC, drop zero-width characters, collapse runs of
// spaces and tabs (newlines are preserved), trim, and case-fold.
func Canonicalize(raw string) string {
	if raw == "" {
		return ""
	}
	s := tagRe.ReplaceAllString(raw, "")
	s = html.UnescapeString(s)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = norm.NFC.String(s)
	s = zeroWidthRe.ReplaceAllString(s, "")
	s = spaceRunRe.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	return foldCaser.String(s)
}
