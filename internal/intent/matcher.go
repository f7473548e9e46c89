package intent

import (
	"context"
	"log/slog"
	"strings"
	"unicode"

	"github.com/k00jax/omi/internal/intent/phonetic"
)

const (
	// defaultFireThreshold is the cosine similarity at which the best
	// semantic intent fires.
	defaultFireThreshold = 0.80

	// defaultNearThreshold is the cosine similarity at which a non-firing
	// best intent is logged as a near match.
	defaultNearThreshold = 0.70
)

// Option is a functional option for configuring a [Matcher].
type Option func(*Matcher)

// WithIntents replaces the built-in command registry.
func WithIntents(intents []Intent) Option {
	return func(m *Matcher) {
		m.intents = intents
	}
}

// WithHotPhrases replaces the built-in trigger phrase table. Order is
// preserved: the first matching phrase wins.
func WithHotPhrases(phrases []HotPhrase) Option {
	return func(m *Matcher) {
		m.hotPhrases = phrases
	}
}

// WithWakeVariants replaces the built-in wake-word variant list.
func WithWakeVariants(variants []string) Option {
	return func(m *Matcher) {
		m.wakeVariants = variants
	}
}

// WithSemanticIndex attaches a semantic index as the first command tier.
// When nil (the default) or not yet built, only the literal tier runs.
func WithSemanticIndex(ix *SemanticIndex) Option {
	return func(m *Matcher) {
		m.semantic = ix
	}
}

// WithPhoneticMatcher replaces the default phonetic wake-word matcher.
func WithPhoneticMatcher(pm *phonetic.Matcher) Option {
	return func(m *Matcher) {
		m.phonetic = pm
	}
}

// WithFireThreshold sets the semantic similarity at which an intent fires.
// Default: 0.80.
func WithFireThreshold(v float64) Option {
	return func(m *Matcher) {
		m.fireThreshold = v
	}
}

// WithNearThreshold sets the semantic similarity at which a non-firing best
// intent is logged as a near match. Default: 0.70.
func WithNearThreshold(v float64) Option {
	return func(m *Matcher) {
		m.nearThreshold = v
	}
}

// Matcher classifies utterances into commands, hot phrases, or nothing.
// It is read-only after construction and safe for concurrent use, though the
// pipeline invokes it sequentially, one transcript at a time.
type Matcher struct {
	intents      []Intent
	hotPhrases   []HotPhrase
	wakeVariants []string
	semantic     *SemanticIndex
	phonetic     *phonetic.Matcher

	fireThreshold float64
	nearThreshold float64

	// Derived at construction.
	literalIntents []literalIntent
	wakeExact      [][]string
	wakeByLen      map[int][]string
	maxWakeWords   int
}

// literalIntent is an Intent with its patterns pre-normalized into word lists.
type literalIntent struct {
	id          string
	description string
	patterns    [][]string
}

// New returns a Matcher over the built-in registry, hot phrases, and wake
// variants, each replaceable via options. No semantic index is attached by
// default.
func New(opts ...Option) *Matcher {
	m := &Matcher{
		intents:       DefaultIntents(),
		hotPhrases:    DefaultHotPhrases(),
		wakeVariants:  DefaultWakeVariants(),
		phonetic:      phonetic.New(),
		fireThreshold: defaultFireThreshold,
		nearThreshold: defaultNearThreshold,
	}
	for _, o := range opts {
		o(m)
	}

	for _, it := range m.intents {
		li := literalIntent{id: it.ID, description: it.Description}
		for _, p := range it.Patterns {
			if words := normalizeWords(p); len(words) > 0 {
				li.patterns = append(li.patterns, words)
			}
		}
		m.literalIntents = append(m.literalIntents, li)
	}

	m.wakeByLen = make(map[int][]string)
	for _, v := range m.wakeVariants {
		words := normalizeWords(v)
		if len(words) == 0 {
			continue
		}
		m.wakeExact = append(m.wakeExact, words)
		m.wakeByLen[len(words)] = append(m.wakeByLen[len(words)], strings.Join(words, " "))
		if len(words) > m.maxWakeWords {
			m.maxWakeWords = len(words)
		}
	}

	return m
}

// Classify maps one utterance to a [Match]. Command matching runs first;
// hot phrases are only consulted when no command fires.
//
// ctx bounds the semantic tier's embedding call. The literal and hot-phrase
// tiers never block.
func (m *Matcher) Classify(ctx context.Context, text string) Match {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return None()
	}

	if match, ok := m.classifyCommand(ctx, trimmed); ok {
		return match
	}
	if match, ok := m.classifyHotPhrase(trimmed); ok {
		return match
	}
	return None()
}

// classifyCommand runs the semantic tier when an index is ready, then the
// literal tier. A semantic score at or above the fire threshold wins
// outright; a near match is logged and falls through to the literal tier.
func (m *Matcher) classifyCommand(ctx context.Context, text string) (Match, bool) {
	if m.semantic != nil && m.semantic.Ready() {
		best, err := m.semantic.Score(ctx, text)
		switch {
		case err != nil:
			slog.Warn("intent: semantic scoring failed, using literal tier", "error", err)
		case best.IntentID == "":
			// Empty index; nothing to score against.
		case best.Score >= m.fireThreshold:
			slog.Debug("intent: semantic match",
				"intent", best.IntentID, "score", best.Score)
			return Match{Kind: KindCommand, IntentID: best.IntentID, Description: best.Description}, true
		case best.Score >= m.nearThreshold:
			slog.Info("intent: semantic near match, not firing",
				"intent", best.IntentID, "score", best.Score)
		}
	}

	words := normalizeWords(text)
	if len(words) == 0 || !m.wakeDetected(words) {
		return Match{}, false
	}
	for _, li := range m.literalIntents {
		for _, pattern := range li.patterns {
			if containsWords(words, pattern) {
				return Match{Kind: KindCommand, IntentID: li.id, Description: li.description}, true
			}
		}
	}
	return Match{}, false
}

// classifyHotPhrase tests the trigger phrases in table order against the
// lowercased raw text. First match wins.
func (m *Matcher) classifyHotPhrase(text string) (Match, bool) {
	lower := strings.ToLower(text)
	for _, hp := range m.hotPhrases {
		if strings.Contains(lower, strings.ToLower(hp.Phrase)) {
			return Match{Kind: KindHotPhrase, Category: hp.Category}, true
		}
	}
	return Match{}, false
}

// wakeDetected reports whether the normalized words contain a wake-word
// variant: first by exact word-sequence containment, then by phonetic
// matching of n-gram windows against variants of the same word count.
func (m *Matcher) wakeDetected(words []string) bool {
	for _, variant := range m.wakeExact {
		if containsWords(words, variant) {
			return true
		}
	}

	maxN := m.maxWakeWords
	if maxN > len(words) {
		maxN = len(words)
	}
	for n := 1; n <= maxN; n++ {
		variants := m.wakeByLen[n]
		if len(variants) == 0 {
			continue
		}
		for i := 0; i+n <= len(words); i++ {
			window := strings.Join(words[i:i+n], " ")
			if _, _, ok := m.phonetic.Match(window, variants); ok {
				return true
			}
		}
	}
	return false
}

// normalizeWords lowercases s, replaces every non-alphanumeric rune with a
// space, and splits into words. "Oh, me. Open notepad." becomes
// ["oh" "me" "open" "notepad"].
func normalizeWords(s string) []string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	return strings.Fields(b.String())
}

// containsWords reports whether phrase occurs as a consecutive word sequence
// inside words.
func containsWords(words, phrase []string) bool {
	if len(phrase) == 0 || len(phrase) > len(words) {
		return false
	}
	for i := 0; i+len(phrase) <= len(words); i++ {
		match := true
		for j, pw := range phrase {
			if words[i+j] != pw {
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
