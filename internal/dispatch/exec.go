package dispatch

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Launcher starts an external process from an argument vector.
type Launcher interface {
	// Launch starts argv[0] with the remaining elements as arguments.
	// It must not wait for the process to finish.
	Launch(argv []string) error
}

// LauncherFunc adapts a function to the [Launcher] interface.
type LauncherFunc func(argv []string) error

// Launch calls f(argv).
func (f LauncherFunc) Launch(argv []string) error { return f(argv) }

// detachedLauncher starts the process and immediately releases it: the child
// is never waited on, and a crash after launch is the child's problem, not
// the pipeline's.
type detachedLauncher struct{}

var _ Launcher = detachedLauncher{}

// NewDetachedLauncher returns the production [Launcher] used for command
// intents.
func NewDetachedLauncher() Launcher {
	return detachedLauncher{}
}

// Launch implements [Launcher]. Only a failure to start surfaces as an
// error; the exit status of the detached child is unobservable.
func (detachedLauncher) Launch(argv []string) error {
	if len(argv) == 0 {
		return errors.New("dispatch: empty argv")
	}
	cmd := exec.Command(argv[0], argv[1:]...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("dispatch: start %s: %w", argv[0], err)
	}
	if err := cmd.Process.Release(); err != nil {
		return fmt.Errorf("dispatch: release %s: %w", argv[0], err)
	}
	return nil
}

// platformSupported reports whether goos is allowed by an intent's Platforms
// list. An empty list allows every platform.
func platformSupported(platforms []string, goos string) bool {
	if len(platforms) == 0 {
		return true
	}
	for _, p := range platforms {
		if strings.EqualFold(p, goos) {
			return true
		}
	}
	return false
}
