package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/Ballindaboy/ITD-TG2YD-MEET/internal/storage"
)

func newTestEngine(t *testing.T, idle time.Duration) (*Engine, *storage.Gateway) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	gw := storage.NewGateway(storage.NewMemoryBackend(), storage.RetryPolicy{MaxAttempts: 1}, log)
	for _, p := range []string{"/visits/alpha", "/visits/beta"} {
		if err := gw.EnsureRecursive(context.Background(), p); err != nil {
			t.Fatalf("EnsureRecursive(%q) error = %v", p, err)
		}
	}
	return NewEngine(gw, idle, log), gw
}

func logText(t *testing.T, gw *storage.Gateway, path string) string {
	t.Helper()
	data, err := gw.Download(context.Background(), path)
	if err != nil {
		t.Fatalf("Download(%q) error = %v", path, err)
	}
	return string(data)
}

func TestOpenForceEndsPrevious(t *testing.T) {
	ctx := context.Background()
	e, gw := newTestEngine(t, 0)

	first, ended, err := e.Open(ctx, 1, "/visits", "/visits/alpha", "alpha")
	if err != nil {
		t.Fatalf("first Open() error = %v", err)
	}
	if ended != nil {
		t.Fatalf("first Open() ended = %+v, want nil", ended)
	}

	second, ended, err := e.Open(ctx, 1, "/visits", "/visits/beta", "beta")
	if err != nil {
		t.Fatalf("second Open() error = %v", err)
	}
	if ended == nil {
		t.Fatal("second Open() ended = nil, want summary of the first meeting")
	}
	if ended.FolderPath != "/visits/alpha" {
		t.Errorf("ended.FolderPath = %q, want %q", ended.FolderPath, "/visits/alpha")
	}
	if got := e.Active(1); got == nil || got.ID != second.ID {
		t.Errorf("Active() = %v, want the second meeting", got)
	}

	// The old log got its closing line before the new log's opening line.
	if !strings.Contains(logText(t, gw, first.LogPath), "Встреча завершена") {
		t.Error("first log is missing the closing line")
	}
	if !strings.Contains(logText(t, gw, second.LogPath), "Встреча начата") {
		t.Error("second log is missing the opening line")
	}
}

func TestAppendKeepsOrder(t *testing.T) {
	ctx := context.Background()
	e, gw := newTestEngine(t, 0)

	s, _, err := e.Open(ctx, 1, "/visits", "/visits/alpha", "alpha")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	for _, text := range []string{"первая заметка", "вторая заметка"} {
		if err := e.Append(ctx, 1, text, "Ivan"); err != nil {
			t.Fatalf("Append(%q) error = %v", text, err)
		}
	}
	if _, err := e.End(ctx, 1); err != nil {
		t.Fatalf("End() error = %v", err)
	}

	content := logText(t, gw, s.LogPath)
	order := []string{"Встреча начата", "Ivan: первая заметка", "Ivan: вторая заметка", "Встреча завершена"}
	pos := -1
	for _, marker := range order {
		i := strings.Index(content, marker)
		if i < 0 {
			t.Fatalf("log is missing %q:\n%s", marker, content)
		}
		if i < pos {
			t.Fatalf("%q appears out of order:\n%s", marker, content)
		}
		pos = i
	}
}

func TestAppendWithoutSession(t *testing.T) {
	e, _ := newTestEngine(t, 0)
	if err := e.Append(context.Background(), 1, "x", ""); !errors.Is(err, ErrNoSession) {
		t.Errorf("Append() error = %v, want ErrNoSession", err)
	}
	if _, err := e.End(context.Background(), 1); !errors.Is(err, ErrNoSession) {
		t.Errorf("End() error = %v, want ErrNoSession", err)
	}
}

func TestReopenContinuesSameLog(t *testing.T) {
	ctx := context.Background()
	e, gw := newTestEngine(t, 0)

	s, _, err := e.Open(ctx, 1, "/visits", "/visits/alpha", "alpha")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	sum, err := e.End(ctx, 1)
	if err != nil {
		t.Fatalf("End() error = %v", err)
	}

	reopened, err := e.Reopen(ctx, 1, false)
	if err != nil {
		t.Fatalf("Reopen() error = %v", err)
	}
	if reopened.LogPath != s.LogPath {
		t.Errorf("reopened LogPath = %q, want %q", reopened.LogPath, s.LogPath)
	}
	if reopened.ID == sum.SessionID {
		t.Error("reopened meeting reused the old session ID")
	}
	if e.LastSnapshot(1) != nil {
		t.Error("LastSnapshot() != nil after reopen, want consumed")
	}
	if !strings.Contains(logText(t, gw, s.LogPath), "Встреча возобновлена") {
		t.Error("log is missing the reopen line")
	}
}

func TestReopenRequiresForceWhenActive(t *testing.T) {
	ctx := context.Background()
	e, gw := newTestEngine(t, 0)

	first, _, err := e.Open(ctx, 1, "/visits", "/visits/alpha", "alpha")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if _, err := e.End(ctx, 1); err != nil {
		t.Fatalf("End() error = %v", err)
	}
	second, _, err := e.Open(ctx, 1, "/visits", "/visits/beta", "beta")
	if err != nil {
		t.Fatalf("second Open() error = %v", err)
	}

	if _, err := e.Reopen(ctx, 1, false); !errors.Is(err, ErrActiveSession) {
		t.Fatalf("Reopen(force=false) error = %v, want ErrActiveSession", err)
	}

	reopened, err := e.Reopen(ctx, 1, true)
	if err != nil {
		t.Fatalf("Reopen(force=true) error = %v", err)
	}
	if reopened.LogPath != first.LogPath {
		t.Errorf("reopened LogPath = %q, want %q", reopened.LogPath, first.LogPath)
	}
	if !strings.Contains(logText(t, gw, second.LogPath), "Встреча завершена") {
		t.Error("forced reopen did not close the active meeting's log")
	}
}

func TestReopenWithoutSnapshot(t *testing.T) {
	e, _ := newTestEngine(t, 0)
	if _, err := e.Reopen(context.Background(), 1, false); !errors.Is(err, ErrNoSnapshot) {
		t.Errorf("Reopen() error = %v, want ErrNoSnapshot", err)
	}
}

func TestExtendStaleSession(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t, time.Minute)

	s, _, err := e.Open(ctx, 1, "/visits", "/visits/alpha", "alpha")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if !e.Extend(1, s.ID) {
		t.Error("Extend() = false for the active meeting")
	}
	if _, err := e.End(ctx, 1); err != nil {
		t.Fatalf("End() error = %v", err)
	}
	if e.Extend(1, s.ID) {
		t.Error("Extend() = true for an ended meeting")
	}
}

func TestIdlePromptFires(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t, 20*time.Millisecond)
	fired := make(chan string, 1)
	e.SetIdleFunc(func(userID int64, s *Session) { fired <- s.ID })

	s, _, err := e.Open(ctx, 1, "/visits", "/visits/alpha", "alpha")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	select {
	case id := <-fired:
		if id != s.ID {
			t.Errorf("idle prompt for session %q, want %q", id, s.ID)
		}
	case <-time.After(time.Second):
		t.Fatal("idle prompt never fired")
	}
}

func TestIdleTimerResetsOnAppend(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t, 200*time.Millisecond)
	fired := make(chan time.Time, 1)
	e.SetIdleFunc(func(userID int64, s *Session) { fired <- time.Now() })

	if _, _, err := e.Open(ctx, 1, "/visits", "/visits/alpha", "alpha"); err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	// Append late in the idle window; the deadline moves with it.
	time.Sleep(120 * time.Millisecond)
	appendedAt := time.Now()
	if err := e.Append(ctx, 1, "еще работаем", ""); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	select {
	case at := <-fired:
		t.Fatalf("idle prompt fired %v after the append, before a full idle window", at.Sub(appendedAt))
	case <-time.After(120 * time.Millisecond):
	}

	select {
	case at := <-fired:
		if got := at.Sub(appendedAt); got < 200*time.Millisecond {
			t.Errorf("idle prompt fired %v after the append, want at least the idle window", got)
		}
	case <-time.After(time.Second):
		t.Fatal("idle prompt never fired after the append")
	}
}

func TestIdlePromptSkippedAfterEnd(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t, 30*time.Millisecond)
	fired := make(chan string, 1)
	e.SetIdleFunc(func(userID int64, s *Session) { fired <- s.ID })

	if _, _, err := e.Open(ctx, 1, "/visits", "/visits/alpha", "alpha"); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if _, err := e.End(ctx, 1); err != nil {
		t.Fatalf("End() error = %v", err)
	}

	select {
	case id := <-fired:
		t.Fatalf("idle prompt fired for ended meeting %q", id)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestMediaPathAndLogName(t *testing.T) {
	now := time.Date(2025, 5, 17, 9, 30, 15, 0, time.UTC)
	s := newSession(1, "/visits", "/visits/alpha", "alpha", now)

	if want := "/visits/alpha/20250517_093015_visit_alpha.txt"; s.LogPath != want {
		t.Errorf("LogPath = %q, want %q", s.LogPath, want)
	}
	if want := "20250517_093015_visit_alpha.txt"; s.LogName() != want {
		t.Errorf("LogName() = %q, want %q", s.LogName(), want)
	}
	if want := "/visits/alpha/20250517_093015_Files_alpha.jpg"; s.MediaPath("jpg") != want {
		t.Errorf("MediaPath(jpg) = %q, want %q", s.MediaPath("jpg"), want)
	}
}
