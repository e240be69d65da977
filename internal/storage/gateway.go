package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"strings"
	"time"
)

// Upload deadline tiers. Media uploads dominate both latency and failures,
// so the deadline scales with file size and video files get a hard floor.
const (
	baseUploadTimeout  = 30 * time.Second
	mediumSizeBytes    = 5 << 20
	mediumSizeTimeout  = time.Minute
	largeSizeBytes     = 20 << 20
	largeSizeTimeout   = 2 * time.Minute
	videoUploadTimeout = 3 * time.Minute
)

var videoExtensions = []string{".mp4", ".mov", ".avi", ".mkv"}

// timeoutFor picks the upload deadline for a file of the given size and name.
func timeoutFor(size int64, name string) time.Duration {
	timeout := baseUploadTimeout
	if size > largeSizeBytes {
		timeout = largeSizeTimeout
	} else if size > mediumSizeBytes {
		timeout = mediumSizeTimeout
	}
	lower := strings.ToLower(name)
	for _, ext := range videoExtensions {
		if strings.HasSuffix(lower, ext) {
			if timeout < videoUploadTimeout {
				timeout = videoUploadTimeout
			}
			break
		}
	}
	return timeout
}

// timestamped derives a collision-resistant sibling of remote by inserting a
// nanosecond-resolution timestamp before the extension. Callers name files
// for human readability, not uniqueness, so conflicts are expected under
// fast consecutive uploads.
func timestamped(remote string, now time.Time) string {
	ext := path.Ext(remote)
	stem := strings.TrimSuffix(remote, ext)
	return stem + "_" + now.UTC().Format("150405.000000000") + ext
}

// Gateway wraps a Backend with the operational policy every caller needs:
// bounded retry with backoff, size-scaled deadlines, and rename-on-conflict
// for non-overwriting uploads.
type Gateway struct {
	backend Backend
	retry   RetryPolicy
	log     *slog.Logger
	offline bool

	now func() time.Time
}

func NewGateway(backend Backend, retry RetryPolicy, log *slog.Logger) *Gateway {
	_, offline := backend.(*OfflineBackend)
	return &Gateway{
		backend: backend,
		retry:   retry,
		log:     log,
		offline: offline,
		now:     time.Now,
	}
}

// Offline reports whether the gateway is running against the simulated
// backend, so handlers can warn that nothing is actually persisted.
func (g *Gateway) Offline() bool { return g.offline }

func (g *Gateway) Exists(ctx context.Context, remote string) (bool, error) {
	remote = NormalizePath(remote)
	var ok bool
	err := g.retry.Do(ctx, func() error {
		var err error
		ok, err = g.backend.Exists(ctx, remote)
		return err
	})
	return ok, err
}

// EnsureDir creates a folder if it is missing. Already-exists is success.
func (g *Gateway) EnsureDir(ctx context.Context, remote string) error {
	remote = NormalizePath(remote)
	err := g.retry.Do(ctx, func() error {
		return g.backend.Mkdir(ctx, remote)
	})
	if err != nil && Classify(err) == ClassConflict {
		return nil
	}
	return err
}

// EnsureRecursive creates every missing ancestor of remote, then remote.
func (g *Gateway) EnsureRecursive(ctx context.Context, remote string) error {
	remote = NormalizePath(remote)
	walked := ""
	for _, part := range strings.Split(strings.TrimPrefix(remote, "/"), "/") {
		if part == "" {
			continue
		}
		walked += "/" + part
		if err := g.EnsureDir(ctx, walked); err != nil {
			return fmt.Errorf("ensure %q: %w", walked, err)
		}
	}
	return nil
}

func (g *Gateway) ListFolders(ctx context.Context, remote string) ([]string, error) {
	remote = NormalizePath(remote)
	var names []string
	err := g.retry.Do(ctx, func() error {
		var err error
		names, err = g.backend.List(ctx, remote)
		return err
	})
	return names, err
}

// UploadFile uploads a local file and returns the remote path it actually
// landed at, which differs from remote when a conflict forced a rename.
func (g *Gateway) UploadFile(ctx context.Context, local, remote string, overwrite bool) (string, error) {
	info, err := os.Stat(local)
	if err != nil {
		return "", fmt.Errorf("stat %q: %w", local, err)
	}
	open := func() (io.ReadCloser, error) { return os.Open(local) }
	return g.upload(ctx, open, info.Size(), remote, overwrite)
}

// Put uploads in-memory content, with the same conflict discipline as
// UploadFile.
func (g *Gateway) Put(ctx context.Context, data []byte, remote string, overwrite bool) (string, error) {
	open := func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}
	return g.upload(ctx, open, int64(len(data)), remote, overwrite)
}

func (g *Gateway) upload(ctx context.Context, open func() (io.ReadCloser, error), size int64, remote string, overwrite bool) (string, error) {
	final := NormalizePath(remote)
	attempt := func() error {
		// A fresh reader per attempt: a retried upload must not resume
		// from a half-consumed stream.
		r, err := open()
		if err != nil {
			return err
		}
		defer r.Close()
		uctx, cancel := context.WithTimeout(ctx, timeoutFor(size, final))
		defer cancel()
		return g.backend.Upload(uctx, r, final, overwrite)
	}

	err := g.retry.Do(ctx, attempt)
	if err != nil && !overwrite && Classify(err) == ClassConflict {
		renamed := timestamped(final, g.now())
		g.log.Warn("upload conflict, renaming", "from", final, "to", renamed)
		final = renamed
		err = g.retry.Do(ctx, attempt)
	}
	if err != nil {
		return "", fmt.Errorf("upload %q: %w", final, err)
	}
	return final, nil
}

// Download fetches the whole file at remote.
func (g *Gateway) Download(ctx context.Context, remote string) ([]byte, error) {
	remote = NormalizePath(remote)
	var data []byte
	err := g.retry.Do(ctx, func() error {
		rc, err := g.backend.Download(ctx, remote)
		if err != nil {
			return err
		}
		defer rc.Close()
		data, err = io.ReadAll(rc)
		return err
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

// CreateTextFile creates a new text file and returns its final remote path.
func (g *Gateway) CreateTextFile(ctx context.Context, remote, content string) (string, error) {
	return g.Put(ctx, []byte(content), remote, false)
}

// AppendText downloads the file at remote if it exists, joins text onto it
// with a newline, and reuploads with overwrite. If the overwriting upload
// still reports a conflict the write is redirected to a freshly derived
// timestamped path so the append always lands somewhere.
func (g *Gateway) AppendText(ctx context.Context, remote, text string) error {
	remote = NormalizePath(remote)
	content := text
	existing, err := g.Download(ctx, remote)
	switch Classify(err) {
	case ClassNotFound:
		// First write creates the file.
	default:
		if err != nil {
			return fmt.Errorf("append to %q: %w", remote, err)
		}
		if len(existing) > 0 {
			content = string(existing) + "\n" + text
		}
	}

	if _, err := g.Put(ctx, []byte(content), remote, true); err != nil {
		if Classify(err) != ClassConflict {
			return err
		}
		fallback := timestamped(remote, g.now())
		g.log.Warn("append conflict, diverting", "from", remote, "to", fallback)
		if _, err := g.Put(ctx, []byte(content), fallback, true); err != nil {
			return err
		}
	}
	return nil
}

// Link returns a browser-usable URL for the file at remote.
func (g *Gateway) Link(ctx context.Context, remote string) (string, error) {
	remote = NormalizePath(remote)
	var link string
	err := g.retry.Do(ctx, func() error {
		var err error
		link, err = g.backend.Link(ctx, remote)
		return err
	})
	return link, err
}
