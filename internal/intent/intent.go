// Package intent classifies recognized speech into actionable results.
//
// Every transcript that survives the streaming layer's empty-text filter is
// run through [Matcher.Classify], which produces one of three outcomes:
//
//   - [KindCommand]: the utterance addressed the assistant by a wake word and
//     asked for a registered command (e.g., "hey omi open notepad").
//   - [KindHotPhrase]: the utterance contained a memory trigger phrase
//     ("remember this", "note this", ...) mapped to a memory category.
//   - [KindNone]: nothing actionable; the text flows on to the archive only.
//
// Command matching runs before hot-phrase matching: commands are more
// specific, and an utterance such as "hey omi note this down" should execute
// a registered note command rather than silently become a generic memory.
//
// Command matching itself is two-tiered. When a semantic index has been built
// (see [SemanticIndex]), the utterance is embedded and cosine-compared against
// each intent's example phrasings. When the index is unavailable or produces
// no winner, a literal tier requires a wake-word variant AND a command
// pattern to both appear in the text. The wake-word check tolerates the
// phonetic misrecognitions speech engines produce for "omi" (see the phonetic
// subpackage).
package intent

import "fmt"

// Kind discriminates the result of a classification.
type Kind int

const (
	// KindNone means the text matched neither a command nor a hot phrase.
	KindNone Kind = iota
	// KindHotPhrase means a memory trigger phrase was found.
	KindHotPhrase
	// KindCommand means a registered command intent fired.
	KindCommand
)

// String returns a short stable name for logging.
func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindHotPhrase:
		return "hot_phrase"
	case KindCommand:
		return "command"
	default:
		return "unknown"
	}
}

// Match is the tagged result of classifying one utterance.
//
// Exactly the fields relevant to Kind are populated:
//   - KindNone: no other fields.
//   - KindHotPhrase: Category.
//   - KindCommand: IntentID and Description.
type Match struct {
	// Kind discriminates which (if any) tier matched.
	Kind Kind

	// Category is the memory category of the matched hot phrase
	// (e.g., "note", "idea", "reminder"). Set only for KindHotPhrase.
	Category string

	// IntentID is the registry ID of the command intent that fired
	// (e.g., "open_notepad"). Set only for KindCommand.
	IntentID string

	// Description is the human-readable description of the command intent,
	// suitable for status messages. Set only for KindCommand.
	Description string
}

// None is the zero Match, returned when nothing actionable was found.
func None() Match {
	return Match{Kind: KindNone}
}

// String renders the match for logs and status messages.
func (m Match) String() string {
	switch m.Kind {
	case KindHotPhrase:
		return fmt.Sprintf("hot_phrase(%s)", m.Category)
	case KindCommand:
		return fmt.Sprintf("command(%s)", m.IntentID)
	default:
		return "none"
	}
}
