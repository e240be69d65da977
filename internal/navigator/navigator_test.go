package navigator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/Ballindaboy/ITD-TG2YD-MEET/internal/storage"
)

func newTestNavigator(t *testing.T, maxListed int, folders ...string) (*Navigator, *storage.Gateway) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	gw := storage.NewGateway(storage.NewMemoryBackend(), storage.RetryPolicy{MaxAttempts: 1}, log)
	for _, f := range folders {
		if err := gw.EnsureRecursive(context.Background(), f); err != nil {
			t.Fatalf("EnsureRecursive(%q) error = %v", f, err)
		}
	}
	return New(gw, maxListed), gw
}

func TestOpenListsSubfoldersSorted(t *testing.T) {
	n, _ := newTestNavigator(t, 20, "/base/zeta", "/base/alpha", "/base/mid")

	c, l, err := n.Open(context.Background(), "/base")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if c.Path != "/base" {
		t.Errorf("cursor path = %q, want %q", c.Path, "/base")
	}
	if diff := cmp.Diff([]string{"alpha", "mid", "zeta"}, l.Entries); diff != "" {
		t.Errorf("entries mismatch (-want +got):\n%s", diff)
	}
}

func TestOpenCreatesMissingRoot(t *testing.T) {
	n, gw := newTestNavigator(t, 20)

	if _, _, err := n.Open(context.Background(), "/fresh/root"); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	ok, err := gw.Exists(context.Background(), "/fresh/root")
	if err != nil {
		t.Fatalf("Exists() error = %v", err)
	}
	if !ok {
		t.Error("Open() did not create the root folder")
	}
}

func TestEnterAndResolve(t *testing.T) {
	n, _ := newTestNavigator(t, 20, "/base/alpha/deep", "/base/beta")

	c, _, err := n.Open(context.Background(), "/base")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	if _, err := n.Resolve(c, 0); !errors.Is(err, ErrBadIndex) {
		t.Errorf("Resolve(0) error = %v, want ErrBadIndex", err)
	}
	if _, err := n.Enter(context.Background(), c, 5); !errors.Is(err, ErrBadIndex) {
		t.Errorf("Enter(5) error = %v, want ErrBadIndex", err)
	}
	if c.Path != "/base" {
		t.Errorf("cursor moved to %q on a failed Enter", c.Path)
	}

	l, err := n.Enter(context.Background(), c, 1)
	if err != nil {
		t.Fatalf("Enter(1) error = %v", err)
	}
	if c.Path != "/base/alpha" {
		t.Errorf("cursor path = %q, want %q", c.Path, "/base/alpha")
	}
	if diff := cmp.Diff([]string{"deep"}, l.Entries); diff != "" {
		t.Errorf("entries mismatch (-want +got):\n%s", diff)
	}

	if _, err := n.ToRoot(context.Background(), c); err != nil {
		t.Fatalf("ToRoot() error = %v", err)
	}
	if c.Path != "/base" {
		t.Errorf("cursor path after ToRoot = %q, want %q", c.Path, "/base")
	}
}

func TestListingCapsShownEntries(t *testing.T) {
	n, _ := newTestNavigator(t, 2, "/base/a", "/base/b", "/base/c")

	_, l, err := n.Open(context.Background(), "/base")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if l.Shown != 2 {
		t.Errorf("Shown = %d, want 2", l.Shown)
	}
	if len(l.Entries) != 3 {
		t.Errorf("Entries = %d, want all 3", len(l.Entries))
	}

	text := FormatListing(l)
	if !strings.Contains(text, "1. 📁 a") || !strings.Contains(text, "2. 📁 b") {
		t.Errorf("listing is missing numbered entries:\n%s", text)
	}
	if strings.Contains(text, "3. 📁 c") {
		t.Errorf("listing shows entries past the cap:\n%s", text)
	}
	if !strings.Contains(text, "еще 1") {
		t.Errorf("listing is missing the hidden-count line:\n%s", text)
	}
}

func TestCreateSubfolder(t *testing.T) {
	n, gw := newTestNavigator(t, 20, "/base/alpha")

	c, _, err := n.Open(context.Background(), "/base")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	if _, err := n.CreateSubfolder(context.Background(), c, "   "); !errors.Is(err, ErrEmptyName) {
		t.Errorf("blank name error = %v, want ErrEmptyName", err)
	}
	if _, err := n.CreateSubfolder(context.Background(), c, "alpha"); !errors.Is(err, storage.ErrExists) {
		t.Errorf("existing name error = %v, want storage.ErrExists", err)
	}

	// Forbidden characters are stripped, not rejected.
	path, err := n.CreateSubfolder(context.Background(), c, `ne*w: "visit"?`)
	if err != nil {
		t.Fatalf("CreateSubfolder() error = %v", err)
	}
	if path != "/base/new visit" {
		t.Errorf("created path = %q, want %q", path, "/base/new visit")
	}
	ok, err := gw.Exists(context.Background(), path)
	if err != nil {
		t.Fatalf("Exists() error = %v", err)
	}
	if !ok {
		t.Error("created folder does not exist")
	}
}
