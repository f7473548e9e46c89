package intent

// Intent is one registered command: a stable ID, example phrasings for the
// semantic tier, literal patterns for the fallback tier, and the argv the
// dispatcher launches when the intent fires.
//
// Records are static: the registry is resolved once at startup (built-in
// defaults, optionally overridden by configuration) and never mutated while
// the pipeline runs.
type Intent struct {
	// ID is the stable identifier carried in Match.IntentID (e.g., "open_notepad").
	ID string

	// Description is shown in status messages ("Opening notepad").
	Description string

	// Examples are canonical full utterances for the semantic tier, wake word
	// included ("hey omi open notepad"). The semantic score of an utterance
	// against this intent is the maximum cosine similarity over all examples.
	Examples []string

	// Patterns are the command phrases for the literal tier. A pattern matches
	// when its words appear consecutively in the normalized utterance; the
	// wake-word requirement is checked separately and independently.
	Patterns []string

	// Argv is the process argument vector the dispatcher launches, argv[0]
	// being the executable. Also the basis of the cooldown signature.
	Argv []string

	// Platforms restricts execution to the named GOOS values ("windows",
	// "darwin", "linux"). Empty means any platform.
	Platforms []string
}

// HotPhrase maps one literal trigger phrase to a memory category.
type HotPhrase struct {
	Phrase   string
	Category string
}

// DefaultWakeVariants returns the built-in spellings a speech engine produces
// for the wake word, in no significant order. Beyond this list, the literal
// tier accepts phonetically similar words (see the phonetic subpackage).
func DefaultWakeVariants() []string {
	return []string{"hey omi", "omi", "oh me", "army", "o m i"}
}

// DefaultHotPhrases returns the built-in trigger phrase table. Order is
// significant: phrases are tested front to back and the first match wins, so
// "note this" must stay ahead of the bare "todo"-style single words.
func DefaultHotPhrases() []HotPhrase {
	return []HotPhrase{
		{Phrase: "note this", Category: "note"},
		{Phrase: "remember this", Category: "note"},
		{Phrase: "important", Category: "important"},
		{Phrase: "idea", Category: "idea"},
		{Phrase: "todo", Category: "todo"},
		{Phrase: "remind me", Category: "reminder"},
		{Phrase: "save this", Category: "note"},
	}
}

// DefaultIntents returns the built-in command registry.
func DefaultIntents() []Intent {
	return []Intent{
		{
			ID:          "open_notepad",
			Description: "Open the notepad application",
			Examples: []string{
				"hey omi open notepad",
				"omi open the notepad",
				"hey omi launch notepad",
				"omi start up notepad",
				"hey omi open notes app",
			},
			Patterns: []string{
				"open notepad",
				"open the notepad",
				"launch notepad",
				"start up notepad",
				"open notes app",
			},
			Argv:      []string{"notepad.exe"},
			Platforms: []string{"windows"},
		},
	}
}
