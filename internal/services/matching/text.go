package matching

import (
	"strings"
	"unicode"

	"github.com/texttheater/golang-levenshtein/levenshtein"
)

// DefaultNoiseTokens are dropped from both sides before comparing names.
var DefaultNoiseTokens = []string{
	"pos", "ach", "trf", "tfr", "ref", "ft", "dd", "so", "chq", "atm", "eft", "rtgs", "neft", "imps", "upi",
	"mpesa", "card", "purchase", "payment", "pymt", "pmt", "transfer", "debit", "credit", "dr", "cr",
	"to", "from", "via", "ltd", "limited", "inc", "llc", "plc", "co", "corp", "the",
}

type textNormalizer struct {
	noise map[string]bool
}

func newTextNormalizer(noise []string) textNormalizer {
	n := textNormalizer{noise: make(map[string]bool, len(noise))}
	for _, t := range noise {
		n.noise[strings.ToLower(strings.TrimSpace(t))] = true
	}
	return n
}

// tokens lower-cases s, splits on anything that is not a letter or digit and
// drops noise words and tokens carrying digits (reference numbers).
func (n textNormalizer) tokens(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if n.noise[f] || strings.IndexFunc(f, unicode.IsDigit) >= 0 {
			continue
		}
		out = append(out, f)
	}
	return out
}

// similarity returns a 0..100 score for how well a bank description names a
// vendor or contact.
func (n textNormalizer) similarity(description, name string) float64 {
	dTokens, nTokens := n.tokens(description), n.tokens(name)
	if len(dTokens) == 0 || len(nTokens) == 0 {
		return 0
	}
	if containsRun(dTokens, nTokens) || containsRun(nTokens, dTokens) {
		return 100
	}
	d, c := strings.Join(dTokens, " "), strings.Join(nTokens, " ")

	whole := ratio(d, c)

	// Average, over the name's tokens, of the best match in the description.
	total := 0.0
	for _, nt := range nTokens {
		best := 0.0
		for _, dt := range dTokens {
			if r := ratio(nt, dt); r > best {
				best = r
			}
		}
		total += best
	}
	tokenSet := total / float64(len(nTokens))

	return 100 * max(whole, tokenSet)
}

// containsRun reports whether sub appears in tokens as a contiguous run of
// whole tokens.
func containsRun(tokens, sub []string) bool {
	for i := 0; i+len(sub) <= len(tokens); i++ {
		match := true
		for j := range sub {
			if tokens[i+j] != sub[j] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

// ratio is the indel similarity of a and b in 0..1. Substitutions cost two
// under the default options, so disjoint strings score zero.
func ratio(a, b string) float64 {
	if a == b {
		return 1
	}
	ra, rb := []rune(a), []rune(b)
	total := len(ra) + len(rb)
	if total == 0 {
		return 1
	}
	dist := levenshtein.DistanceForStrings(ra, rb, levenshtein.DefaultOptions)
	return float64(total-dist) / float64(total)
}
