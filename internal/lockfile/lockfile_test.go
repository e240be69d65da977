package lockfile

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"
)

func TestAcquireAndRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.lock")

	l, err := Acquire(path)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("lock file missing: %v", err)
	}
	if got := string(data); got != strconv.Itoa(os.Getpid()) {
		t.Errorf("lock file holds %q, want own pid", got)
	}

	if err := l.Release(); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("lock file still present after Release: %v", err)
	}
}

func TestAcquireHeldByLiveProcess(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.lock")
	// Own pid stands in for a live owner.
	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Acquire(path); !errors.Is(err, ErrHeld) {
		t.Errorf("Acquire() error = %v, want ErrHeld", err)
	}
}

func TestAcquireReclaimsDeadOwner(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.lock")
	// A pid far above any real process table entry.
	if err := os.WriteFile(path, []byte("999999999"), 0o644); err != nil {
		t.Fatal(err)
	}

	l, err := Acquire(path)
	if err != nil {
		t.Fatalf("Acquire() error = %v, want reclaim", err)
	}
	defer l.Release()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := string(data); got != strconv.Itoa(os.Getpid()) {
		t.Errorf("lock file holds %q after reclaim, want own pid", got)
	}
}

func TestAcquireReclaimsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.lock")
	if err := os.WriteFile(path, []byte("not a pid"), 0o644); err != nil {
		t.Fatal(err)
	}

	l, err := Acquire(path)
	if err != nil {
		t.Fatalf("Acquire() error = %v, want reclaim of unreadable lock", err)
	}
	l.Release()
}

func TestReleaseLeavesForeignLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.lock")
	l, err := Acquire(path)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	// Another instance took over, e.g. after a staleness reclaim.
	if err := os.WriteFile(path, []byte("12345"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := l.Release(); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("Release removed a lock it no longer owned: %v", err)
	}
}
