package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestMemoryMkdirRequiresParent(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryBackend()

	if err := m.Mkdir(ctx, "/a/b"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Mkdir without parent error = %v, want ErrNotFound", err)
	}
	if err := m.Mkdir(ctx, "/a"); err != nil {
		t.Fatalf("Mkdir(/a) error = %v", err)
	}
	if err := m.Mkdir(ctx, "/a"); !errors.Is(err, ErrExists) {
		t.Errorf("duplicate Mkdir error = %v, want ErrExists", err)
	}
}

func TestMemoryListSorted(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryBackend()
	for _, p := range []string{"/base", "/base/zeta", "/base/alpha", "/base/mid"} {
		if err := m.Mkdir(ctx, p); err != nil {
			t.Fatalf("Mkdir(%q) error = %v", p, err)
		}
	}

	got, err := m.List(ctx, "/base")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if diff := cmp.Diff([]string{"alpha", "mid", "zeta"}, got); diff != "" {
		t.Errorf("List() mismatch (-want +got):\n%s", diff)
	}

	if _, err := m.List(ctx, "/nowhere"); !errors.Is(err, ErrNotFound) {
		t.Errorf("List(missing) error = %v, want ErrNotFound", err)
	}
}

func TestMemoryUploadConflict(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryBackend()

	if err := m.Upload(ctx, strings.NewReader("one"), "/f.txt", false); err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if err := m.Upload(ctx, strings.NewReader("two"), "/f.txt", false); !errors.Is(err, ErrExists) {
		t.Errorf("conflicting Upload error = %v, want ErrExists", err)
	}
	if err := m.Upload(ctx, strings.NewReader("two"), "/f.txt", true); err != nil {
		t.Fatalf("overwriting Upload error = %v", err)
	}

	rc, err := m.Download(ctx, "/f.txt")
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "two" {
		t.Errorf("content = %q, want %q", data, "two")
	}
}

func TestMemoryDownloadMissing(t *testing.T) {
	m := NewMemoryBackend()
	if _, err := m.Download(context.Background(), "/no.txt"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Download(missing) error = %v, want ErrNotFound", err)
	}
}

func TestMemoryLink(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryBackend()
	if err := m.Upload(ctx, strings.NewReader("x"), "/f.txt", false); err != nil {
		t.Fatalf("Upload() error = %v", err)
	}

	link, err := m.Link(ctx, "/f.txt")
	if err != nil {
		t.Fatalf("Link() error = %v", err)
	}
	if link != "memory://f.txt" {
		t.Errorf("Link() = %q, want %q", link, "memory://f.txt")
	}
	if _, err := m.Link(ctx, "/no.txt"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Link(missing) error = %v, want ErrNotFound", err)
	}
}
