package config

import "slices"

// Diff describes what changed between two configs. Only fields that can be
// safely hot-reloaded are tracked: the log level and the matcher tables.
// Everything else (providers, device, memory backends) requires a restart.
type ConfigDiff struct {
	// LogLevelChanged reports a new log level to apply.
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// MatcherChanged reports that wake words, hot phrases, intents, or the
	// semantic thresholds differ; the app rebuilds the matcher from the new
	// config when set.
	MatcherChanged bool
}

// Empty reports whether the diff carries no applicable change.
func (d ConfigDiff) Empty() bool {
	return !d.LogLevelChanged && !d.MatcherChanged
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Observe.LogLevel != new.Observe.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Observe.LogLevel
	}

	if matcherChanged(&old.Intent, &new.Intent) {
		d.MatcherChanged = true
	}

	return d
}

// matcherChanged reports whether any matcher-relevant field differs.
func matcherChanged(old, new *IntentConfig) bool {
	if !slices.Equal(old.WakeWords, new.WakeWords) {
		return true
	}
	if !slices.Equal(old.HotPhrases, new.HotPhrases) {
		return true
	}
	if old.FireThreshold != new.FireThreshold || old.NearThreshold != new.NearThreshold {
		return true
	}
	if len(old.Intents) != len(new.Intents) {
		return true
	}
	for i := range old.Intents {
		if !intentEqual(&old.Intents[i], &new.Intents[i]) {
			return true
		}
	}
	return false
}

// intentEqual compares two intent entries field by field. Order within the
// slices is significant, matching the matcher's evaluation order.
func intentEqual(a, b *IntentEntry) bool {
	return a.ID == b.ID &&
		a.Description == b.Description &&
		slices.Equal(a.Examples, b.Examples) &&
		slices.Equal(a.Patterns, b.Patterns) &&
		slices.Equal(a.Command, b.Command) &&
		slices.Equal(a.Platforms, b.Platforms)
}
