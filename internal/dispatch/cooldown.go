package dispatch

import (
	"strings"
	"sync"
	"time"
)

// signature is the cooldown key for a command: the argv joined into one
// canonical string, so "notepad.exe" matched through different phrasings
// still counts as the same command.
func signature(argv []string) string {
	return strings.Join(argv, " ")
}

// cooldown tracks the last launch time per command signature. It is the only
// mutable state the dispatcher shares across transcripts.
type cooldown struct {
	mu     sync.Mutex
	window time.Duration
	last   map[string]time.Time
}

func newCooldown(window time.Duration) *cooldown {
	return &cooldown{
		window: window,
		last:   make(map[string]time.Time),
	}
}

// tryAcquire reports whether sig is outside its cooldown window, recording
// the launch time when it is. A rejected acquire does not refresh the window,
// so repeated triggers cannot extend a cooldown indefinitely.
func (c *cooldown) tryAcquire(sig string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if last, ok := c.last[sig]; ok && now.Sub(last) < c.window {
		return false
	}
	c.last[sig] = now
	return true
}
