package dispatch

import (
	"testing"
)

func TestLauncherFunc(t *testing.T) {
	var got []string
	l := LauncherFunc(func(argv []string) error {
		got = argv
		return nil
	})
	if err := l.Launch([]string{"editor", "--new"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0] != "editor" || got[1] != "--new" {
		t.Fatalf("argv = %v, want [editor --new]", got)
	}
}

func TestDetachedLauncher_EmptyArgv(t *testing.T) {
	if err := NewDetachedLauncher().Launch(nil); err == nil {
		t.Fatal("expected error for empty argv")
	}
}

func TestDetachedLauncher_StartError(t *testing.T) {
	err := NewDetachedLauncher().Launch([]string{"omi-test-no-such-binary-a93kq"})
	if err == nil {
		t.Fatal("expected error launching a nonexistent binary")
	}
}

func TestPlatformSupported(t *testing.T) {
	tests := []struct {
		name      string
		platforms []string
		goos      string
		want      bool
	}{
		{"empty list allows all", nil, "linux", true},
		{"exact match", []string{"windows"}, "windows", true},
		{"case insensitive", []string{"Windows"}, "windows", true},
		{"second entry matches", []string{"windows", "darwin"}, "darwin", true},
		{"no match", []string{"windows"}, "linux", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := platformSupported(tt.platforms, tt.goos); got != tt.want {
				t.Errorf("platformSupported(%v, %q) = %v, want %v", tt.platforms, tt.goos, got, tt.want)
			}
		})
	}
}
