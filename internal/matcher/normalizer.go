// Package matcher reconciles raw invoice line descriptions against the
// canonical product catalog, producing ranked candidates with similarity
// scores.
package matcher

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stopTokens are packaging/logistics words that carry no product identity.
// Supplier invoices routinely append them to line descriptions.
var stopTokens = map[string]struct{}{
	"livraison":       {},
	"livre":           {},
	"chantier":        {},
	"depot":           {},
	"palette":         {},
	"palettes":        {},
	"sac":             {},
	"sacs":            {},
	"vrac":            {},
	"benne":           {},
	"camion":          {},
	"franco":          {},
	"rendu":           {},
	"depart":          {},
	"transport":       {},
	"ht":              {},
	"ttc":             {},
	"ref":             {},
	"reference":       {},
	"lot":             {},
	"commande":        {},
	"conditionne":     {},
	"conditionnement": {},
}

var diacriticFolder = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize derives the matching key for a description: lower-cased,
// diacritics stripped, punctuation reduced, whitespace collapsed, and
// packaging/logistics tokens removed. Product granulometry markers like
// "0/2" survive intact.
func Normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))

	if folded, _, err := transform.String(diacriticFolder, s); err == nil {
		s = folded
	}

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case r == '/' || r == '-' || r == '.':
			// Meaningful inside size and grade markers (0/2, 31.5).
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}

	tokens := strings.Fields(b.String())
	kept := tokens[:0]
	for _, tok := range tokens {
		if _, skip := stopTokens[tok]; skip {
			continue
		}
		kept = append(kept, tok)
	}

	return strings.Join(kept, " ")
}

// NormalizeSupplier derives the identity key for a supplier name:
// lower-cased, diacritics stripped, punctuation reduced to spaces, whitespace
// collapsed. Every word is kept; the packaging stop list applies only to
// product descriptions.
func NormalizeSupplier(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))

	if folded, _, err := transform.String(diacriticFolder, s); err == nil {
		s = folded
	}

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}

	return strings.Join(strings.Fields(b.String()), " ")
}

// tokenSet splits a normalized string into its unique tokens.
func tokenSet(normalized string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range strings.Fields(normalized) {
		set[tok] = struct{}{}
	}
	return set
}

// tokenOverlap computes the Jaccard overlap between two token sets: the size
// of the intersection over the size of the union. Zero when either set is
// empty.
func tokenOverlap(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	intersection := 0
	for tok := range a {
		if _, ok := b[tok]; ok {
			intersection++
		}
	}

	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
