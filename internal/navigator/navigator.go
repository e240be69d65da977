// Package navigator walks the remote folder tree for selection dialogues:
// numbered paginated listings, descent into subfolders, and creation of new
// ones. It only produces data; rendering and keyboards belong to the bot.
package navigator

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/Ballindaboy/ITD-TG2YD-MEET/internal/storage"
)

var (
	// ErrBadIndex is returned when a numeric selection does not map to an
	// entry of the most recent listing.
	ErrBadIndex = errors.New("no such folder number")

	// ErrEmptyName is returned when a new-folder name is blank after
	// removing forbidden characters and whitespace.
	ErrEmptyName = errors.New("folder name is empty")
)

// forbiddenChars are stripped from new folder names; they are not valid in
// remote paths.
var forbiddenChars = regexp.MustCompile(`[\\/*?:"<>|]`)

// Cursor is one user's transient position in the tree. Entries holds the
// most recently rendered listing; 1-based indices into it stay valid only
// until the next listing replaces it. Not persisted across restarts.
type Cursor struct {
	Root    string
	Path    string
	Entries []string
}

// Listing is a rendered directory view. Entries always holds every
// subfolder; Shown is how many of them appear in Text, the rest remain
// selectable by number only.
type Listing struct {
	Path    string
	Entries []string
	Shown   int
}

type Navigator struct {
	gw        *storage.Gateway
	maxListed int
}

func New(gw *storage.Gateway, maxListed int) *Navigator {
	return &Navigator{gw: gw, maxListed: maxListed}
}

// Open positions a fresh cursor at root and lists it. The root folder is
// created if missing.
func (n *Navigator) Open(ctx context.Context, root string) (*Cursor, *Listing, error) {
	root = storage.NormalizePath(root)
	if err := n.gw.EnsureRecursive(ctx, root); err != nil {
		return nil, nil, err
	}
	c := &Cursor{Root: root, Path: root}
	l, err := n.Refresh(ctx, c)
	if err != nil {
		return nil, nil, err
	}
	return c, l, nil
}

// Refresh re-lists the cursor's current path. On error the cursor's previous
// entries are kept so earlier numbers remain usable.
func (n *Navigator) Refresh(ctx context.Context, c *Cursor) (*Listing, error) {
	entries, err := n.gw.ListFolders(ctx, c.Path)
	if err != nil {
		return nil, err
	}
	c.Entries = entries
	shown := len(entries)
	if shown > n.maxListed {
		shown = n.maxListed
	}
	return &Listing{Path: c.Path, Entries: entries, Shown: shown}, nil
}

// Resolve maps a 1-based index from the last listing to an absolute path.
func (n *Navigator) Resolve(c *Cursor, index int) (string, error) {
	if index < 1 || index > len(c.Entries) {
		return "", ErrBadIndex
	}
	return c.Path + "/" + c.Entries[index-1], nil
}

// Enter descends into the indexed subfolder and lists it.
func (n *Navigator) Enter(ctx context.Context, c *Cursor, index int) (*Listing, error) {
	path, err := n.Resolve(c, index)
	if err != nil {
		return nil, err
	}
	prev := c.Path
	c.Path = path
	l, err := n.Refresh(ctx, c)
	if err != nil {
		c.Path = prev
		return nil, err
	}
	return l, nil
}

// ToRoot returns the cursor to its starting folder and lists it.
func (n *Navigator) ToRoot(ctx context.Context, c *Cursor) (*Listing, error) {
	c.Path = c.Root
	return n.Refresh(ctx, c)
}

// CreateSubfolder creates a new folder under the cursor's current path and
// returns its absolute path. Blank names and names already present as a
// path are rejected; the cursor is left where it was.
func (n *Navigator) CreateSubfolder(ctx context.Context, c *Cursor, name string) (string, error) {
	safe := strings.TrimSpace(forbiddenChars.ReplaceAllString(name, ""))
	if safe == "" {
		return "", ErrEmptyName
	}
	path := c.Path + "/" + safe
	exists, err := n.gw.Exists(ctx, path)
	if err != nil {
		return "", err
	}
	if exists {
		return "", storage.ErrExists
	}
	if err := n.gw.EnsureDir(ctx, path); err != nil {
		return "", err
	}
	return path, nil
}

// FormatListing renders the numbered folder list. Entries past the shown cap
// are summarized but still selectable by number from the keyboard.
func FormatListing(l *Listing) string {
	var b strings.Builder
	if len(l.Entries) == 0 {
		fmt.Fprintf(&b, "📂 Директория '%s' не содержит подпапок.", l.Path)
		return b.String()
	}
	fmt.Fprintf(&b, "📂 Подпапки в '%s':\n\n", l.Path)
	for i := 0; i < l.Shown; i++ {
		fmt.Fprintf(&b, "%d. 📁 %s\n", i+1, l.Entries[i])
	}
	if hidden := len(l.Entries) - l.Shown; hidden > 0 {
		fmt.Fprintf(&b, "\n... и еще %d папок.\nВыберите номер папки из клавиатуры ниже.\n", hidden)
	}
	return b.String()
}
