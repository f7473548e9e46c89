// Package phonetic matches misrecognized words against known trigger phrases
// using Double Metaphone phonetic encoding combined with Jaro-Winkler string
// similarity.
//
// Speech engines rarely hear a coined wake word cleanly: "omi" arrives as
// "oh me", "homie", "oh mi", or "army" depending on speaker and noise. Exact
// substring checks against a configured variant list catch the common cases;
// this package catches the long tail the list does not enumerate.
//
// The algorithm proceeds in two stages:
//
//  1. Phonetic candidate filtering: Double Metaphone codes are computed for
//     each token of the input and of each known phrase. A phrase whose codes
//     overlap the input's becomes a phonetic candidate.
//
//  2. Jaro-Winkler ranking: among phonetic candidates, the phrase with the
//     highest Jaro-Winkler similarity (case-insensitive, on the original
//     strings) wins, provided its score reaches the phonetic threshold.
//
//     When no phonetic candidate exists, a secondary pass tests pure
//     Jaro-Winkler similarity against all phrases using a stricter fuzzy
//     threshold (default 0.85).
//
// Multi-word phrases ("hey omi", "o m i") are supported: codes are computed
// per word for candidacy, and the ranking considers both full-string and
// space-stripped similarity so that run-together recognitions still score.
package phonetic

import (
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.85
)

// Option is a functional option for configuring a [Matcher].
type Option func(*Matcher)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score required for a
// phonetically-matched phrase to be accepted. Default: 0.70.
func WithPhoneticThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.phoneticThreshold = threshold
	}
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score required when no
// phonetic candidate is found and the matcher falls back to pure string
// similarity. Default: 0.85.
func WithFuzzyThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.fuzzyThreshold = threshold
	}
}

// Matcher scores words against a list of known phrases by pronunciation
// similarity. It is read-only after construction and safe for concurrent use.
type Matcher struct {
	phoneticThreshold float64
	fuzzyThreshold    float64
}

// New returns a new [Matcher] configured with the supplied options.
// Default thresholds are 0.70 for phonetic matches and 0.85 for fuzzy
// fallback matches.
func New(opts ...Option) *Matcher {
	m := &Matcher{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Match attempts to find the phrase from phrases that is most phonetically
// similar to word.
//
// word may be a single word or a space-separated n-gram taken from a
// transcript. When word contains multiple tokens, the matcher checks whether
// any token phonetically aligns with any token of a multi-word phrase, then
// ranks by Jaro-Winkler over several string strategies.
//
// Return values:
//   - matched: the best-matching phrase from phrases.
//   - confidence: similarity score in [0.0, 1.0].
//   - ok: true when a sufficiently similar phrase was found.
//
// When ok is false, matched equals word unchanged and confidence is 0.
func (m *Matcher) Match(word string, phrases []string) (matched string, confidence float64, ok bool) {
	if len(phrases) == 0 || strings.TrimSpace(word) == "" {
		return word, 0, false
	}

	wordLower := strings.ToLower(strings.TrimSpace(word))
	wordTokens := strings.Fields(wordLower)

	inputCodes := phoneticCodes(wordTokens)

	type candidate struct {
		phrase   string
		score    float64
		phonetic bool
	}

	var best candidate

	for _, phrase := range phrases {
		phraseLower := strings.ToLower(strings.TrimSpace(phrase))
		if phraseLower == "" {
			continue
		}
		phraseTokens := strings.Fields(phraseLower)

		phraseCodes := phoneticCodes(phraseTokens)
		phoneticMatch := codesOverlap(inputCodes, phraseCodes)

		score := bestSimilarity(wordTokens, phraseTokens, wordLower, phraseLower)

		if phoneticMatch {
			if score >= m.phoneticThreshold {
				if !best.phonetic || score > best.score {
					best = candidate{phrase: phrase, score: score, phonetic: true}
				}
			}
		} else if !best.phonetic {
			if score >= m.fuzzyThreshold && score > best.score {
				best = candidate{phrase: phrase, score: score, phonetic: false}
			}
		}
	}

	if best.phrase != "" {
		return best.phrase, best.score, true
	}
	return word, 0, false
}

// phoneticCodes returns the union of all Double Metaphone codes for the given
// tokens. Empty codes (produced for very short or vowel-only tokens) are
// excluded.
func phoneticCodes(tokens []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		p, s := matchr.DoubleMetaphone(t)
		if p != "" {
			codes[p] = struct{}{}
		}
		if s != "" {
			codes[s] = struct{}{}
		}
	}
	return codes
}

// codesOverlap returns true if the two code sets share at least one code.
func codesOverlap(a, b map[string]struct{}) bool {
	// Iterate over the smaller set.
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}

// bestSimilarity computes the highest Jaro-Winkler similarity between the
// input and the phrase using two strategies:
//
//  1. Full-string comparison ("oh mee" vs "oh me").
//  2. Space-stripped comparison ("ohmi" vs "omi").
//
// Isolated token pairs are not compared; the whole window must carry the
// score.
//
// longTolerance is passed as false to use standard Jaro-Winkler scoring.
func bestSimilarity(inputTokens, phraseTokens []string, inputFull, phraseFull string) float64 {
	score := matchr.JaroWinkler(inputFull, phraseFull, false)

	if len(inputTokens) > 1 || len(phraseTokens) > 1 {
		concat1 := strings.Join(inputTokens, "")
		concat2 := strings.Join(phraseTokens, "")
		if s := matchr.JaroWinkler(concat1, concat2, false); s > score {
			score = s
		}
	}

	return score
}
