package storage

import (
	"context"
	"io"
	"log/slog"
	"strings"
)

// OfflineBackend simulates a reachable store when the real one is not.
// Every operation is logged and reported successful so the chat flow stays
// fully operable; nothing is actually persisted. Used when the backend is
// unreachable at startup or the offline flag is set explicitly.
type OfflineBackend struct {
	log *slog.Logger
}

func NewOfflineBackend(log *slog.Logger) *OfflineBackend {
	return &OfflineBackend{log: log}
}

func (o *OfflineBackend) Exists(ctx context.Context, path string) (bool, error) {
	o.log.Info("offline: exists", "path", path)
	return false, nil
}

func (o *OfflineBackend) Mkdir(ctx context.Context, path string) error {
	o.log.Info("offline: mkdir", "path", path)
	return nil
}

func (o *OfflineBackend) List(ctx context.Context, path string) ([]string, error) {
	o.log.Info("offline: list", "path", path)
	return nil, nil
}

func (o *OfflineBackend) Upload(ctx context.Context, r io.Reader, path string, overwrite bool) error {
	n, _ := io.Copy(io.Discard, r)
	o.log.Info("offline: upload discarded", "path", path, "bytes", n, "overwrite", overwrite)
	return nil
}

func (o *OfflineBackend) Download(ctx context.Context, path string) (io.ReadCloser, error) {
	o.log.Info("offline: download", "path", path)
	return nil, ErrNotFound
}

func (o *OfflineBackend) Link(ctx context.Context, path string) (string, error) {
	o.log.Info("offline: link", "path", path)
	return "offline://" + strings.TrimPrefix(path, "/"), nil
}
