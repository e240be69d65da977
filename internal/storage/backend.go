package storage

import (
	"context"
	"io"
	"strings"
)

// Backend defines the raw operations against a remote blob/text store.
// Implementations translate slash-separated absolute paths into whatever the
// provider natively understands. Policy (retries, deadlines, conflict
// renaming) lives in Gateway, not here.
type Backend interface {
	// Exists reports whether a file or folder exists at path.
	Exists(ctx context.Context, path string) (bool, error)

	// Mkdir creates a single folder. The parent must exist.
	// Returns ErrExists if something is already at path.
	Mkdir(ctx context.Context, path string) error

	// List returns the names of the immediate subfolders of path,
	// sorted lexicographically.
	List(ctx context.Context, path string) ([]string, error)

	// Upload stores the contents of r at path. With overwrite false a
	// conflicting file yields ErrExists and nothing is written.
	Upload(ctx context.Context, r io.Reader, path string, overwrite bool) error

	// Download returns the contents of the file at path, or ErrNotFound.
	Download(ctx context.Context, path string) (io.ReadCloser, error)

	// Link returns a URL from which the file at path can be fetched.
	Link(ctx context.Context, path string) (string, error)
}

// NormalizePath brings a remote path to the canonical form used throughout:
// a single leading slash, no trailing slash, no runs of separators.
func NormalizePath(path string) string {
	var b strings.Builder
	for _, part := range strings.Split(path, "/") {
		if part == "" {
			continue
		}
		b.WriteByte('/')
		b.WriteString(part)
	}
	if b.Len() == 0 {
		return "/"
	}
	return b.String()
}

// SplitPath returns the parent directory and base name of a normalized path.
func SplitPath(path string) (dir, name string) {
	path = NormalizePath(path)
	i := strings.LastIndex(path, "/")
	if i <= 0 {
		return "/", strings.TrimPrefix(path, "/")
	}
	return path[:i], path[i+1:]
}
