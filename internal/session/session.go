// Package session owns the per-user meeting lifecycle: opening a meeting
// bound to a remote folder, mirroring every entry into the remote log file,
// idle-timeout prompting, and the single-slot reopen snapshot.
package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const stampLayout = "20060102_150405"

// Entry is one line of the meeting log, kept in memory in append order and
// mirrored to the remote text file in the same order.
type Entry struct {
	At     time.Time
	Author string
	Text   string
}

// Line renders the entry the way it appears in the remote log file.
func (e Entry) Line() string {
	if e.Author != "" {
		return fmt.Sprintf("[%s] %s: %s", e.At.Format("15:04:05"), e.Author, e.Text)
	}
	return fmt.Sprintf("[%s] %s", e.At.Format("15:04:05"), e.Text)
}

// Session is one in-progress meeting. All mutation happens through Engine,
// which serializes access; Session itself carries no lock.
type Session struct {
	ID          string
	UserID      int64
	Root        string
	FolderPath  string
	FolderName  string
	StartedAt   time.Time
	LogPath     string
	MediaPrefix string

	entries []Entry
	files   int
}

func newSession(userID int64, root, folderPath, folderName string, now time.Time) *Session {
	stamp := now.UTC().Format(stampLayout)
	return &Session{
		ID:          uuid.NewString(),
		UserID:      userID,
		Root:        root,
		FolderPath:  folderPath,
		FolderName:  folderName,
		StartedAt:   now,
		LogPath:     fmt.Sprintf("%s/%s_visit_%s.txt", folderPath, stamp, folderName),
		MediaPrefix: fmt.Sprintf("%s_Files_%s", stamp, folderName),
	}
}

// LogName is the base name of the remote log file.
func (s *Session) LogName() string {
	i := strings.LastIndex(s.LogPath, "/")
	return s.LogPath[i+1:]
}

// MediaPath is the remote path for a media file of this meeting with the
// given extension (without dot). All media share one human-readable stem;
// the storage gateway renames on collision.
func (s *Session) MediaPath(ext string) string {
	return fmt.Sprintf("%s/%s.%s", s.FolderPath, s.MediaPrefix, ext)
}

func (s *Session) addEntry(e Entry) {
	s.entries = append(s.entries, e)
}

// tail returns the last n rendered log lines.
func (s *Session) tail(n int) []string {
	start := len(s.entries) - n
	if start < 0 {
		start = 0
	}
	lines := make([]string, 0, len(s.entries)-start)
	for _, e := range s.entries[start:] {
		lines = append(lines, e.Line())
	}
	return lines
}
