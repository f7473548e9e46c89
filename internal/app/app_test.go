package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/k00jax/omi/internal/archive"
	"github.com/k00jax/omi/internal/config"
	"github.com/k00jax/omi/internal/dispatch"
	memmock "github.com/k00jax/omi/pkg/memory/mock"
	"github.com/k00jax/omi/pkg/provider/stt"
	sttmock "github.com/k00jax/omi/pkg/provider/stt/mock"
)

// recordingLauncher captures launched argvs instead of spawning processes.
type recordingLauncher struct {
	mu     sync.Mutex
	argvs  [][]string
	launch error
}

func (l *recordingLauncher) Launch(argv []string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.argvs = append(l.argvs, argv)
	return l.launch
}

func (l *recordingLauncher) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.argvs)
}

func testConfig() *config.Config {
	return &config.Config{
		Device: config.DeviceConfig{Source: config.SourceNone},
		Codec:  config.CodecConfig{ForceFallback: true},
		Audio:  config.AudioConfig{QueueCapacity: 8},
		Providers: config.ProvidersConfig{
			STT: config.ProviderEntry{Name: "mock"},
		},
		Intent: config.IntentConfig{
			WakeWords: []string{"omi"},
			HotPhrases: []config.HotPhraseEntry{
				{Phrase: "remember this", Category: "note"},
			},
			Intents: []config.IntentEntry{
				{
					ID:          "open_editor",
					Description: "Opening the editor",
					Patterns:    []string{"open the editor"},
					Command:     []string{"editor"},
				},
			},
		},
		Dispatch: config.DispatchConfig{UserID: "tester", CooldownSeconds: 1},
		Observe:  config.ObserveConfig{ListenAddr: "127.0.0.1:0"},
	}
}

func newTestApp(t *testing.T, cfg *config.Config, backends Backends, opts ...Option) *App {
	t.Helper()
	if backends.STT == nil {
		backends.STT = &sttmock.Provider{}
	}
	if backends.Memory == nil {
		backends.Memory = &memmock.Writer{}
	}
	a, err := New(cfg, backends, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

// packet builds a raw device packet: three header bytes, then payload.
func packet(payload ...byte) []byte {
	return append([]byte{0, 0, 0}, payload...)
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestNew_RequiresBackends(t *testing.T) {
	t.Parallel()

	if _, err := New(testConfig(), Backends{Memory: &memmock.Writer{}}); err == nil {
		t.Error("expected error when STT provider is missing")
	}
	if _, err := New(testConfig(), Backends{STT: &sttmock.Provider{}}); err == nil {
		t.Error("expected error when memory writer is missing")
	}
}

func TestNew_RejectsUnknownSource(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Device.Source = "tape"
	_, err := New(cfg, Backends{STT: &sttmock.Provider{}, Memory: &memmock.Writer{}})
	if err == nil {
		t.Fatal("expected error for unknown device source")
	}
}

func TestHandlePacket_QueuesDecodedFrames(t *testing.T) {
	t.Parallel()

	a := newTestApp(t, testConfig(), Backends{})
	a.handlePacket(packet(1, 2, 3, 4))
	if got := a.queue.Len(); got != 1 {
		t.Fatalf("queue length = %d, want 1", got)
	}
}

func TestHandlePacket_HeaderOnlyPacketIgnored(t *testing.T) {
	t.Parallel()

	a := newTestApp(t, testConfig(), Backends{})
	a.handlePacket(packet())
	if got := a.queue.Len(); got != 0 {
		t.Fatalf("queue length = %d, want 0", got)
	}
}

func TestHandlePacket_DropsWhenQueueFull(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Audio.QueueCapacity = 1
	a := newTestApp(t, cfg, Backends{})

	a.handlePacket(packet(1))
	a.handlePacket(packet(2))

	if got := a.queue.Len(); got != 1 {
		t.Fatalf("queue length = %d, want 1", got)
	}
	if got := a.queue.Dropped(); got != 1 {
		t.Fatalf("dropped = %d, want 1", got)
	}
}

func TestHandleTranscript_InterimIgnored(t *testing.T) {
	t.Parallel()

	launcher := &recordingLauncher{}
	a := newTestApp(t, testConfig(), Backends{}, WithLauncher(launcher))

	err := a.handleTranscript(context.Background(), stt.Transcript{
		Text: "hey omi open the editor",
	})
	if err != nil {
		t.Fatalf("handleTranscript: %v", err)
	}
	if launcher.count() != 0 {
		t.Fatal("interim transcript must not launch commands")
	}
}

func TestHandleTranscript_FinalCommandLaunches(t *testing.T) {
	t.Parallel()

	launcher := &recordingLauncher{}
	a := newTestApp(t, testConfig(), Backends{}, WithLauncher(launcher))

	err := a.handleTranscript(context.Background(), stt.Transcript{
		Text:    "hey omi open the editor",
		IsFinal: true,
	})
	if err != nil {
		t.Fatalf("handleTranscript: %v", err)
	}
	if launcher.count() != 1 {
		t.Fatalf("launch count = %d, want 1", launcher.count())
	}
}

func TestHandleTranscript_HotPhraseWritesMemory(t *testing.T) {
	t.Parallel()

	writer := &memmock.Writer{}
	a := newTestApp(t, testConfig(), Backends{Memory: writer})

	err := a.handleTranscript(context.Background(), stt.Transcript{
		Text:    "omi remember this buy milk",
		IsFinal: true,
	})
	if err != nil {
		t.Fatalf("handleTranscript: %v", err)
	}

	written := writer.Written()
	if len(written) != 1 {
		t.Fatalf("written records = %d, want 1", len(written))
	}
	if written[0].Category != "note" {
		t.Errorf("category = %q, want %q", written[0].Category, "note")
	}
	if written[0].UserID != "tester" {
		t.Errorf("user = %q, want %q", written[0].UserID, "tester")
	}
}

func TestHandleTranscript_UnmatchedTextDoesNothing(t *testing.T) {
	t.Parallel()

	writer := &memmock.Writer{}
	launcher := &recordingLauncher{}
	a := newTestApp(t, testConfig(), Backends{Memory: writer}, WithLauncher(launcher))

	err := a.handleTranscript(context.Background(), stt.Transcript{
		Text:    "just some conversation",
		IsFinal: true,
	})
	if err != nil {
		t.Fatalf("handleTranscript: %v", err)
	}
	if writer.WriteCount() != 0 || launcher.count() != 0 {
		t.Fatal("unmatched transcript must not dispatch")
	}
}

func TestApplyReload_SwapsMatcherTables(t *testing.T) {
	t.Parallel()

	launcher := &recordingLauncher{}
	old := testConfig()
	a := newTestApp(t, old, Backends{}, WithLauncher(launcher))

	next := testConfig()
	next.Intent.Intents = []config.IntentEntry{
		{
			ID:          "lock_screen",
			Description: "Locking the screen",
			Patterns:    []string{"lock the screen"},
			Command:     []string{"loginctl", "lock-session"},
		},
	}
	a.applyReload(old, next)

	ctx := context.Background()
	if err := a.handleTranscript(ctx, stt.Transcript{Text: "omi lock the screen", IsFinal: true}); err != nil {
		t.Fatalf("handleTranscript: %v", err)
	}
	if launcher.count() != 1 {
		t.Fatalf("launch count = %d, want 1", launcher.count())
	}

	// The replaced table must no longer fire.
	if err := a.handleTranscript(ctx, stt.Transcript{Text: "omi open the editor", IsFinal: true}); err != nil {
		t.Fatalf("handleTranscript: %v", err)
	}
	if launcher.count() != 1 {
		t.Fatalf("launch count after stale intent = %d, want 1", launcher.count())
	}
}

func TestHandleTranscript_MemoryReachesArchive(t *testing.T) {
	t.Parallel()

	store := &memmock.Archive{}
	arch := archive.New(store)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go arch.Run(ctx)

	a := newTestApp(t, testConfig(), Backends{Archive: store, Archiver: arch})

	err := a.handleTranscript(ctx, stt.Transcript{
		Text:    "omi remember this call the dentist",
		IsFinal: true,
	})
	if err != nil {
		t.Fatalf("handleTranscript: %v", err)
	}

	waitFor(t, func() bool { return len(store.StoreCalls()) == 1 },
		"archived record never stored")
	rec := store.StoreCalls()[0].Record
	if rec.Category != "note" {
		t.Errorf("archived category = %q, want %q", rec.Category, "note")
	}
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	t.Parallel()

	a := newTestApp(t, testConfig(), Backends{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	// Give the subsystems a moment to start before pulling the plug.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v, want nil on clean cancel", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after context cancel")
	}
}

func TestHandleTranscript_CooldownSuppressesRepeat(t *testing.T) {
	t.Parallel()

	launcher := &recordingLauncher{}
	cfg := testConfig()
	cfg.Dispatch.CooldownSeconds = 60
	a := newTestApp(t, cfg, Backends{}, WithLauncher(launcher))

	ctx := context.Background()
	tr := stt.Transcript{Text: "hey omi open the editor", IsFinal: true}
	for range 3 {
		if err := a.handleTranscript(ctx, tr); err != nil {
			t.Fatalf("handleTranscript: %v", err)
		}
	}
	if launcher.count() != 1 {
		t.Fatalf("launch count = %d, want 1 (repeats on cooldown)", launcher.count())
	}
}

var _ dispatch.Launcher = (*recordingLauncher)(nil)
