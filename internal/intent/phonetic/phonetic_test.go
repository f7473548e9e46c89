package phonetic_test

import (
	"testing"

	"github.com/k00jax/omi/internal/intent/phonetic"
)

// wakeVariants mirrors the default wake-word list the matcher is used with.
var wakeVariants = []string{"hey omi", "omi", "oh me", "army", "o m i"}

func TestMatcher_ExactVariant(t *testing.T) {
	t.Parallel()

	m := phonetic.New()

	matched, conf, ok := m.Match("omi", wakeVariants)
	if !ok {
		t.Fatalf("Match(%q): ok=false, want true", "omi")
	}
	if matched != "omi" {
		t.Errorf("Match(%q): matched=%q, want %q", "omi", matched, "omi")
	}
	if conf < 0.9 {
		t.Errorf("Match(%q): confidence=%f, want >= 0.9 for exact match", "omi", conf)
	}
}

func TestMatcher_PhoneticVariant(t *testing.T) {
	t.Parallel()

	m := phonetic.New()

	// "ohmi" and "omie" share the Double Metaphone code of "omi" and score
	// well above the phonetic threshold on Jaro-Winkler.
	for _, word := range []string{"ohmi", "omie"} {
		matched, conf, ok := m.Match(word, wakeVariants)
		if !ok {
			t.Fatalf("Match(%q): ok=false, want true", word)
		}
		if matched != "omi" {
			t.Errorf("Match(%q): matched=%q, want %q", word, matched, "omi")
		}
		if conf < 0.7 {
			t.Errorf("Match(%q): confidence=%f, want >= 0.7", word, conf)
		}
	}
}

func TestMatcher_MultiWordVariant(t *testing.T) {
	t.Parallel()

	m := phonetic.New()

	// "oh mee" should align with the two-word variant "oh me".
	matched, conf, ok := m.Match("oh mee", wakeVariants)
	if !ok {
		t.Fatalf("Match(%q): ok=false, want true", "oh mee")
	}
	if matched != "oh me" {
		t.Errorf("Match(%q): matched=%q, want %q", "oh mee", matched, "oh me")
	}
	if conf < 0.7 {
		t.Errorf("Match(%q): confidence=%f, want >= 0.7", "oh mee", conf)
	}
}

func TestMatcher_NoMatch(t *testing.T) {
	t.Parallel()

	m := phonetic.New()

	matched, conf, ok := m.Match("weather", wakeVariants)
	if ok {
		t.Fatalf("Match(%q): ok=true, want false", "weather")
	}
	if matched != "weather" {
		t.Errorf("Match(%q): matched=%q, want original word", "weather", matched)
	}
	if conf != 0 {
		t.Errorf("Match(%q): confidence=%f, want 0", "weather", conf)
	}
}

func TestMatcher_CaseInsensitivity(t *testing.T) {
	t.Parallel()

	m := phonetic.New()

	matched, _, ok := m.Match("OMI", wakeVariants)
	if !ok {
		t.Fatalf("Match(%q): ok=false, want true", "OMI")
	}
	// The phrase is returned with its configured casing.
	if matched != "omi" {
		t.Errorf("Match(%q): matched=%q, want %q", "OMI", matched, "omi")
	}
}

func TestMatcher_ThresholdFiltering(t *testing.T) {
	t.Parallel()

	// With both thresholds at 0.99 only near-exact strings survive.
	m := phonetic.New(
		phonetic.WithPhoneticThreshold(0.99),
		phonetic.WithFuzzyThreshold(0.99),
	)

	_, _, ok := m.Match("ohmi", wakeVariants)
	if ok {
		t.Fatal("Match with threshold=0.99 should reject near-matches, got ok=true")
	}
}

func TestMatcher_EmptyPhrases(t *testing.T) {
	t.Parallel()

	m := phonetic.New()
	matched, conf, ok := m.Match("omi", nil)
	if ok {
		t.Fatal("Match with nil phrases should return ok=false")
	}
	if matched != "omi" {
		t.Errorf("matched=%q, want original", matched)
	}
	if conf != 0 {
		t.Errorf("conf=%f, want 0", conf)
	}
}

func TestMatcher_EmptyWord(t *testing.T) {
	t.Parallel()

	m := phonetic.New()
	matched, conf, ok := m.Match("", wakeVariants)
	if ok {
		t.Fatal("Match with empty word should return ok=false")
	}
	if matched != "" {
		t.Errorf("matched=%q, want empty string", matched)
	}
	if conf != 0 {
		t.Errorf("conf=%f, want 0", conf)
	}
}

func TestWithOptions(t *testing.T) {
	t.Parallel()

	m := phonetic.New(
		phonetic.WithPhoneticThreshold(0.75),
		phonetic.WithFuzzyThreshold(0.90),
	)
	if m == nil {
		t.Fatal("New returned nil")
	}
}
