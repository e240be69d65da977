package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Ballindaboy/ITD-TG2YD-MEET/internal/storage"
)

var (
	// ErrNoSession is returned when an operation needs an active meeting
	// and the user has none.
	ErrNoSession = errors.New("no active meeting")

	// ErrNoSnapshot is returned by Reopen when no ended meeting is
	// retained for the user.
	ErrNoSnapshot = errors.New("no ended meeting to reopen")

	// ErrActiveSession is returned by Reopen when another meeting is
	// active and force was not set; the caller must confirm explicitly
	// before the active meeting is closed.
	ErrActiveSession = errors.New("another meeting is active")
)

// Summary describes an ended meeting.
type Summary struct {
	SessionID  string
	Root       string
	FolderPath string
	FolderName string
	LogPath    string
	LogName    string
	StartedAt  time.Time
	EndedAt    time.Time
	Duration   time.Duration
	Entries    int
	Files      int
	Tail       []string
}

// IdleFunc is invoked when a meeting has seen no activity for the idle
// timeout. It runs on the timer goroutine; implementations prompt the user
// to extend or end.
type IdleFunc func(userID int64, s *Session)

// Engine is the per-user meeting state machine. At most one meeting is
// active per user; starting a new one force-ends the old one first. One
// ended meeting per user is retained as a snapshot for a single reopen.
//
// The idle timer is rescheduled on every successful append, not only on an
// explicit extend; of the two behaviors present in earlier revisions this is
// the one that does not interrupt a user who is actively typing.
type Engine struct {
	gw        *storage.Gateway
	log       *slog.Logger
	idleAfter time.Duration

	mu     sync.Mutex
	onIdle IdleFunc
	active map[int64]*Session
	last   map[int64]*Summary
	timers map[int64]*time.Timer

	now func() time.Time
}

func NewEngine(gw *storage.Gateway, idleAfter time.Duration, log *slog.Logger) *Engine {
	return &Engine{
		gw:        gw,
		log:       log,
		idleAfter: idleAfter,
		active:    make(map[int64]*Session),
		last:      make(map[int64]*Summary),
		timers:    make(map[int64]*time.Timer),
		now:       time.Now,
	}
}

// SetIdleFunc registers the idle-prompt callback. Must be called before the
// first Open.
func (e *Engine) SetIdleFunc(f IdleFunc) {
	e.mu.Lock()
	e.onIdle = f
	e.mu.Unlock()
}

// Active returns the user's active meeting, or nil.
func (e *Engine) Active(userID int64) *Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active[userID]
}

// LastSnapshot returns the retained summary of the user's most recently
// ended meeting, or nil.
func (e *Engine) LastSnapshot(userID int64) *Summary {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.last[userID]
}

// Open starts a meeting in folderPath. If the user already has an active
// meeting it is ended first, so the old log's closing line lands before the
// new log's opening line. The returned Summary is non-nil when a previous
// meeting was force-ended.
func (e *Engine) Open(ctx context.Context, userID int64, root, folderPath, folderName string) (*Session, *Summary, error) {
	var ended *Summary
	if e.Active(userID) != nil {
		sum, err := e.End(ctx, userID)
		if err != nil {
			e.log.Warn("force-end before new meeting flushed with error", "user", userID, "err", err)
		}
		ended = sum
	}

	now := e.now()
	s := newSession(userID, root, folderPath, folderName, now)
	header := fmt.Sprintf("=== Встреча начата %s ===", now.UTC().Format("2006-01-02 15:04:05"))
	finalPath, err := e.gw.CreateTextFile(ctx, s.LogPath, header)
	if err != nil {
		return nil, ended, fmt.Errorf("create meeting log: %w", err)
	}
	s.LogPath = finalPath
	s.addEntry(Entry{At: now, Text: "встреча начата"})

	e.mu.Lock()
	e.active[userID] = s
	e.scheduleLocked(userID, s.ID)
	e.mu.Unlock()

	e.log.Info("meeting opened", "user", userID, "folder", folderPath, "log", finalPath)
	return s, ended, nil
}

// Append records a text entry: first in memory, then mirrored to the remote
// log. A remote failure is returned to the caller but the in-memory log
// keeps the entry, so a later flush writes at least once.
func (e *Engine) Append(ctx context.Context, userID int64, text, author string) error {
	e.mu.Lock()
	s := e.active[userID]
	if s == nil {
		e.mu.Unlock()
		return ErrNoSession
	}
	entry := Entry{At: e.now(), Author: author, Text: text}
	s.addEntry(entry)
	logPath := s.LogPath
	e.resetTimerLocked(userID)
	e.mu.Unlock()

	return e.gw.AppendText(ctx, logPath, entry.Line())
}

// RecordMedia notes an uploaded artifact in the meeting log and bumps the
// file counter. The artifact itself is already stored at remotePath.
func (e *Engine) RecordMedia(ctx context.Context, userID int64, remotePath, kind string) error {
	e.mu.Lock()
	s := e.active[userID]
	if s == nil {
		e.mu.Unlock()
		return ErrNoSession
	}
	s.files++
	entry := Entry{At: e.now(), Text: fmt.Sprintf("[%s] сохранено: %s", kind, remotePath)}
	s.addEntry(entry)
	logPath := s.LogPath
	e.resetTimerLocked(userID)
	e.mu.Unlock()

	return e.gw.AppendText(ctx, logPath, entry.Line())
}

// End closes the user's active meeting: cancels the idle timer, moves the
// meeting into the single reopen slot, and flushes a closing line to the
// remote log. The Summary is valid even when the remote flush fails; the
// error reports the flush outcome.
func (e *Engine) End(ctx context.Context, userID int64) (*Summary, error) {
	now := e.now()

	e.mu.Lock()
	s := e.active[userID]
	if s == nil {
		e.mu.Unlock()
		return nil, ErrNoSession
	}
	delete(e.active, userID)
	e.cancelTimerLocked(userID)
	s.addEntry(Entry{At: now, Text: "встреча завершена"})
	sum := &Summary{
		SessionID:  s.ID,
		Root:       s.Root,
		FolderPath: s.FolderPath,
		FolderName: s.FolderName,
		LogPath:    s.LogPath,
		LogName:    s.LogName(),
		StartedAt:  s.StartedAt,
		EndedAt:    now,
		Duration:   now.Sub(s.StartedAt),
		Entries:    len(s.entries),
		Files:      s.files,
		Tail:       s.tail(5),
	}
	e.last[userID] = sum
	e.mu.Unlock()

	e.log.Info("meeting ended", "user", userID, "log", sum.LogPath, "entries", sum.Entries, "files", sum.Files)
	footer := fmt.Sprintf("=== Встреча завершена %s ===", now.UTC().Format("2006-01-02 15:04:05"))
	return sum, e.gw.AppendText(ctx, sum.LogPath, footer)
}

// Reopen reconstructs the retained meeting as the active one, continuing the
// same remote log file. With another meeting active it fails with
// ErrActiveSession unless force is set, in which case the active meeting is
// ended first.
func (e *Engine) Reopen(ctx context.Context, userID int64, force bool) (*Session, error) {
	e.mu.Lock()
	snap := e.last[userID]
	if snap == nil {
		e.mu.Unlock()
		return nil, ErrNoSnapshot
	}
	if e.active[userID] != nil && !force {
		e.mu.Unlock()
		return nil, ErrActiveSession
	}
	e.mu.Unlock()

	if e.Active(userID) != nil {
		if _, err := e.End(ctx, userID); err != nil {
			e.log.Warn("end before reopen flushed with error", "user", userID, "err", err)
		}
	}

	now := e.now()
	s := newSession(userID, snap.Root, snap.FolderPath, snap.FolderName, now)
	// Continuation, not a new file: keep the ended meeting's log path.
	s.LogPath = snap.LogPath
	s.addEntry(Entry{At: now, Text: "встреча возобновлена"})

	e.mu.Lock()
	// The slot may have been replaced while unlocked; the reconstructed
	// meeting still continues the snapshot we read.
	delete(e.last, userID)
	e.active[userID] = s
	e.scheduleLocked(userID, s.ID)
	e.mu.Unlock()

	e.log.Info("meeting reopened", "user", userID, "log", s.LogPath)
	footer := fmt.Sprintf("=== Встреча возобновлена %s ===", now.UTC().Format("2006-01-02 15:04:05"))
	return s, e.gw.AppendText(ctx, s.LogPath, footer)
}

// Extend reschedules the idle timer for the given meeting. Returns false if
// that meeting is no longer the user's active one.
func (e *Engine) Extend(userID int64, sessionID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.active[userID]
	if s == nil || s.ID != sessionID {
		return false
	}
	e.scheduleLocked(userID, sessionID)
	return true
}

// Shutdown cancels all pending idle timers.
func (e *Engine) Shutdown() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for userID := range e.timers {
		e.cancelTimerLocked(userID)
	}
}

func (e *Engine) scheduleLocked(userID int64, sessionID string) {
	e.cancelTimerLocked(userID)
	if e.idleAfter <= 0 {
		return
	}
	e.timers[userID] = time.AfterFunc(e.idleAfter, func() {
		e.fireIdle(userID, sessionID)
	})
}

func (e *Engine) resetTimerLocked(userID int64) {
	if t, ok := e.timers[userID]; ok {
		t.Reset(e.idleAfter)
	}
}

func (e *Engine) cancelTimerLocked(userID int64) {
	if t, ok := e.timers[userID]; ok {
		t.Stop()
		delete(e.timers, userID)
	}
}

// fireIdle runs when a scheduled idle check comes due. The meeting may have
// ended or been replaced between scheduling and firing, so liveness is
// checked against the session ID before anything is prompted.
func (e *Engine) fireIdle(userID int64, sessionID string) {
	e.mu.Lock()
	s := e.active[userID]
	f := e.onIdle
	if s == nil || s.ID != sessionID {
		e.mu.Unlock()
		return
	}
	e.mu.Unlock()

	if f != nil {
		f(userID, s)
	}
}
