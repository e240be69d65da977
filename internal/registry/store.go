// Package registry persists the allow-lists that gate folder and user
// access: which remote folders may host meetings, and which Telegram users
// may record them. A folder with an empty user list is open to every
// registered user.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"
)

const (
	foldersFile = "allowed_folders.json"
	usersFile   = "allowed_users.json"
)

var (
	ErrFolderExists   = errors.New("folder already registered")
	ErrFolderNotFound = errors.New("folder not registered")
	ErrUserExists     = errors.New("user already registered")
	ErrUserNotFound   = errors.New("user not registered")
)

// Folder is one allow-listed remote folder. An empty AllowedUsers list means
// the folder is available to every registered user.
type Folder struct {
	Path         string  `json:"path"`
	AllowedUsers []int64 `json:"allowed_users"`
}

// User is one allow-listed Telegram account.
type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username,omitempty"`
	FirstName string    `json:"first_name,omitempty"`
	LastName  string    `json:"last_name,omitempty"`
	AddedAt   time.Time `json:"added_at"`
}

// DisplayName returns the most human-readable handle available.
func (u User) DisplayName() string {
	switch {
	case u.Username != "":
		return "@" + u.Username
	case u.FirstName != "":
		name := u.FirstName
		if u.LastName != "" {
			name += " " + u.LastName
		}
		return name
	default:
		return fmt.Sprintf("%d", u.ID)
	}
}

// Store holds both allow-lists in memory behind a single mutex and writes
// them back to two flat JSON files. Constructed once at process start and
// passed explicitly to every consumer; all writes funnel through this one
// object, so admin operations cannot race each other.
type Store struct {
	mu      sync.Mutex
	dir     string
	folders []Folder
	users   []User
}

// Open loads the registry from dir, creating dir if needed. Missing files
// mean empty lists, not errors.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	s := &Store{dir: dir}
	if err := loadJSON(filepath.Join(dir, foldersFile), &s.folders); err != nil {
		return nil, fmt.Errorf("load folders: %w", err)
	}
	if err := loadJSON(filepath.Join(dir, usersFile), &s.users); err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}
	return s, nil
}

func loadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// saveJSON writes via a temp file and rename so a crash mid-write never
// truncates the registry.
func saveJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (s *Store) saveFolders() error {
	return saveJSON(filepath.Join(s.dir, foldersFile), s.folders)
}

func (s *Store) saveUsers() error {
	return saveJSON(filepath.Join(s.dir, usersFile), s.users)
}

// Folders returns a copy of the folder list.
func (s *Store) Folders() []Folder {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Folder, len(s.folders))
	copy(out, s.folders)
	return out
}

// Users returns a copy of the user list.
func (s *Store) Users() []User {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]User, len(s.users))
	copy(out, s.users)
	return out
}

// AddFolder registers a folder, open to all users.
func (s *Store) AddFolder(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range s.folders {
		if f.Path == path {
			return ErrFolderExists
		}
	}
	s.folders = append(s.folders, Folder{Path: path})
	return s.saveFolders()
}

// RemoveFolder unregisters a folder.
func (s *Store) RemoveFolder(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, f := range s.folders {
		if f.Path == path {
			s.folders = slices.Delete(s.folders, i, i+1)
			return s.saveFolders()
		}
	}
	return ErrFolderNotFound
}

// SetFolderUsers replaces a folder's permitted-user list. An empty list
// reopens the folder to everyone.
func (s *Store) SetFolderUsers(path string, userIDs []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.folders {
		if s.folders[i].Path == path {
			s.folders[i].AllowedUsers = slices.Clone(userIDs)
			return s.saveFolders()
		}
	}
	return ErrFolderNotFound
}

// AddUser registers a user.
func (s *Store) AddUser(u User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.ID == u.ID {
			return ErrUserExists
		}
	}
	if u.AddedAt.IsZero() {
		u.AddedAt = time.Now().UTC()
	}
	s.users = append(s.users, u)
	return s.saveUsers()
}

// RemoveUser unregisters a user and strips them from every folder's
// permitted list.
func (s *Store) RemoveUser(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := slices.IndexFunc(s.users, func(u User) bool { return u.ID == id })
	if idx < 0 {
		return ErrUserNotFound
	}
	s.users = slices.Delete(s.users, idx, idx+1)
	if err := s.saveUsers(); err != nil {
		return err
	}
	changed := false
	for i := range s.folders {
		before := len(s.folders[i].AllowedUsers)
		s.folders[i].AllowedUsers = slices.DeleteFunc(s.folders[i].AllowedUsers, func(u int64) bool {
			return u == id
		})
		if len(s.folders[i].AllowedUsers) != before {
			changed = true
		}
	}
	if changed {
		return s.saveFolders()
	}
	return nil
}

// UserKnown reports whether id is in the user allow-list.
func (s *Store) UserKnown(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.ContainsFunc(s.users, func(u User) bool { return u.ID == id })
}

// AllowedFoldersFor returns the folder paths the user may record into: every
// folder whose permitted list is empty or contains the user.
func (s *Store) AllowedFoldersFor(id int64) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var paths []string
	for _, f := range s.folders {
		if len(f.AllowedUsers) == 0 || slices.Contains(f.AllowedUsers, id) {
			paths = append(paths, f.Path)
		}
	}
	return paths
}

// FolderAllowedFor reports whether the user may use the given folder.
func (s *Store) FolderAllowedFor(path string, id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range s.folders {
		if f.Path == path {
			return len(f.AllowedUsers) == 0 || slices.Contains(f.AllowedUsers, id)
		}
	}
	return false
}
