// Package normalize cleans user supplied prompt text before it is validated and sent upstream
// Pipeline order
// 1 Sanitize controls and invalid UTF-8
// 2 Unicode NFKC normalization
// 3 Remove format runes (zero-width space, ZWJ, BOM)
// 4 Width fold fullwidth to ASCII
// 5 Collapse whitespace runs, newlines included, to single spaces and trim
package normalize

import (
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

// MaxPromptRunes bounds prompts and negative prompts
const MaxPromptRunes = 600

// chains are not safe for concurrent use, so each caller takes one from the pool
var chainPool = sync.Pool{
	New: func() any {
		return transform.Chain(
			norm.NFKC,
			runes.Remove(runes.In(unicode.Cf)),
			width.Fold,
		)
	},
}

// Prompt returns the normalized form of s
// Case and accents are kept; the provider reads them
func Prompt(s string) string {
	if s == "" {
		return ""
	}
	s = Sanitize(s)

	tr := chainPool.Get().(transform.Transformer)
	ns, _, err := transform.String(tr, s)
	tr.Reset()
	chainPool.Put(tr)
	if err != nil {
		ns = s
	}
	return collapseSpaces(ns)
}

// Len counts runes, the unit prompt limits are expressed in
func Len(s string) int { return utf8.RuneCountInString(s) }

// collapseSpaces turns every whitespace run into one ASCII space and trims the ends
func collapseSpaces(s string) string {
	return strings.Join(strings.FieldsFunc(s, unicode.IsSpace), " ")
}
