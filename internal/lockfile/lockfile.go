// Package lockfile prevents two bot instances from polling the same token.
// The lock is a file holding the owner's pid; a lock is reclaimed when its
// owner is gone or the file is older than the staleness threshold.
package lockfile

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// StaleAfter is how old a lock file may be before it is presumed to be a
// leftover from a crashed run.
const StaleAfter = time.Hour

// ErrHeld is returned when another live process holds the lock.
var ErrHeld = errors.New("another instance is already running")

type Lock struct {
	path string
	pid  int
}

// Acquire takes the lock at path, reclaiming it when stale.
func Acquire(path string) (*Lock, error) {
	if pid, ok := currentOwner(path); ok {
		info, err := os.Stat(path)
		stale := err == nil && time.Since(info.ModTime()) > StaleAfter
		if processAlive(pid) && !stale {
			return nil, fmt.Errorf("%w (pid %d)", ErrHeld, pid)
		}
		// Owner is dead or the lock outlived the staleness threshold.
		_ = os.Remove(path)
	}

	self := os.Getpid()
	if err := os.WriteFile(path, []byte(strconv.Itoa(self)), 0o644); err != nil {
		return nil, fmt.Errorf("write lock file: %w", err)
	}
	return &Lock{path: path, pid: self}, nil
}

// Release removes the lock file if this process still owns it.
func (l *Lock) Release() error {
	if pid, ok := currentOwner(l.path); !ok || pid != l.pid {
		return nil
	}
	return os.Remove(l.path)
}

func currentOwner(path string) (int, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, false
	}
	return pid, true
}

func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}
