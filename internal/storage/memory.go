package storage

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"
)

// MemoryBackend keeps the whole tree in process memory. It backs the test
// suite and the optional local mode where no cloud account is configured but
// persistence within one process run is still wanted.
type MemoryBackend struct {
	mu    sync.RWMutex
	files map[string][]byte
	dirs  map[string]bool
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		files: make(map[string][]byte),
		dirs:  map[string]bool{"/": true},
	}
}

func (m *MemoryBackend) Exists(ctx context.Context, path string) (bool, error) {
	path = NormalizePath(path)
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.dirs[path] {
		return true, nil
	}
	_, ok := m.files[path]
	return ok, nil
}

func (m *MemoryBackend) Mkdir(ctx context.Context, path string) error {
	path = NormalizePath(path)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dirs[path] {
		return ErrExists
	}
	if _, ok := m.files[path]; ok {
		return ErrExists
	}
	parent, _ := SplitPath(path)
	if !m.dirs[parent] {
		return ErrNotFound
	}
	m.dirs[path] = true
	return nil
}

func (m *MemoryBackend) List(ctx context.Context, path string) ([]string, error) {
	path = NormalizePath(path)
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.dirs[path] {
		return nil, ErrNotFound
	}
	var names []string
	for dir := range m.dirs {
		parent, name := SplitPath(dir)
		if parent == path && name != "" {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (m *MemoryBackend) Upload(ctx context.Context, r io.Reader, path string, overwrite bool) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	path = NormalizePath(path)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.files[path]; ok && !overwrite {
		return ErrExists
	}
	if m.dirs[path] {
		return ErrExists
	}
	parent, _ := SplitPath(path)
	if !m.dirs[parent] {
		return ErrNotFound
	}
	m.files[path] = data
	return nil
}

func (m *MemoryBackend) Download(ctx context.Context, path string) (io.ReadCloser, error) {
	path = NormalizePath(path)
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.files[path]
	if !ok {
		return nil, ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *MemoryBackend) Link(ctx context.Context, path string) (string, error) {
	path = NormalizePath(path)
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.files[path]; !ok {
		return "", ErrNotFound
	}
	return "memory://" + strings.TrimPrefix(path, "/"), nil
}

// Paths returns every stored file path, sorted. Test helper.
func (m *MemoryBackend) Paths() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	paths := make([]string, 0, len(m.files))
	for p := range m.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
