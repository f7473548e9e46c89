package memory

import "time"

// Record is a single captured memory: a transcript fragment that a hot phrase
// (or an MCP client) promoted into persistent storage. It is the atomic unit
// written to every backend: remote conversation API, local fallback log, and
// the Postgres archive.
type Record struct {
	// Text is the transcript text to remember.
	Text string

	// UserID identifies the owner of this memory on the remote service.
	UserID string

	// Category is the coarse label derived from the triggering hot phrase
	// (e.g., "note", "idea", "todo", "reminder").
	Category string

	// CreatedAt is when the memory was captured. A zero value is replaced
	// with the current time by the storage backends.
	CreatedAt time.Time

	// Metadata holds arbitrary key/value context about the capture
	// (trigger phrase, device, confidence). May be nil.
	Metadata map[string]any

	// Geolocation is where the memory was captured, when known. Nil when
	// no location is available.
	Geolocation *Geolocation
}

// Geolocation is a WGS84 coordinate pair attached to a memory.
type Geolocation struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}
