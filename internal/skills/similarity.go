package skills

import (
	"regexp"
	"strings"

	"github.com/agnivade/levenshtein"
)

// FuzzyThreshold is the minimum partial ratio (0-100) for a fuzzy match.
const FuzzyThreshold = 85

// jaccardThreshold is the minimum word-level overlap for a token match.
const jaccardThreshold = 0.5

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// Similarity returns the fraction of required skills covered by the
// candidate's skills, in [0,1]. Both lists are expected to be normalized.
// A requirement is covered when some candidate skill equals it, has a
// partial ratio of at least FuzzyThreshold with it, or shares at least half
// of its words. No requirements yields 0.
func Similarity(candidate, required []string) float64 {
	if len(required) == 0 {
		return 0
	}
	have := make(map[string]bool, len(candidate))
	for _, c := range candidate {
		have[c] = true
	}

	matched := 0
	for _, r := range required {
		if covers(have, candidate, r) {
			matched++
		}
	}
	return float64(matched) / float64(len(required))
}

func covers(have map[string]bool, candidate []string, req string) bool {
	if have[req] {
		return true
	}
	reqTokens := tokenize(req)
	for _, c := range candidate {
		if PartialRatio(c, req) >= FuzzyThreshold {
			return true
		}
		if jaccard(tokenize(c), reqTokens) >= jaccardThreshold {
			return true
		}
	}
	return false
}

// PartialRatio scores, from 0 to 100, how well the shorter string matches
// its best-aligned window of the same length inside the longer one.
func PartialRatio(a, b string) int {
	short, long := []rune(a), []rune(b)
	if len(short) > len(long) {
		short, long = long, short
	}
	if len(short) == 0 {
		return 0
	}

	s := string(short)
	best := 0
	for i := 0; i+len(short) <= len(long); i++ {
		d := levenshtein.ComputeDistance(s, string(long[i:i+len(short)]))
		r := 100 * (len(short) - d) / len(short)
		if r > best {
			best = r
			if best == 100 {
				break
			}
		}
	}
	return best
}

func tokenize(s string) map[string]bool {
	out := make(map[string]bool)
	for _, t := range nonAlnum.Split(strings.ToLower(s), -1) {
		if len(t) > 1 {
			out[t] = true
		}
	}
	return out
}

func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for t := range a {
		if b[t] {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}
