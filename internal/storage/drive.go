package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const folderMIME = "application/vnd.google-apps.folder"

// DriveBackend implements Backend on top of Google Drive. Drive addresses
// everything by opaque file ID, so slash paths are resolved by walking name
// lookups down from a configured base folder. Resolved IDs are cached; the
// cache entry for a path is dropped whenever that path is written.
type DriveBackend struct {
	service *drive.Service
	rootID  string

	mu  sync.Mutex
	ids map[string]string // normalized path -> file ID
}

// NewDriveBackend builds a client from a service-account credentials file and
// verifies the base folder is reachable, so an unreachable backend is
// detected at startup rather than on the first user action.
func NewDriveBackend(ctx context.Context, credentialsFile, rootID string) (*DriveBackend, error) {
	creds, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	conf, err := google.JWTConfigFromJSON(creds, drive.DriveScope)
	if err != nil {
		return nil, fmt.Errorf("parse service account credentials: %w", err)
	}
	srv, err := drive.NewService(ctx, option.WithHTTPClient(conf.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("create drive client: %w", err)
	}
	if rootID == "" {
		rootID = "root"
	}
	b := &DriveBackend{
		service: srv,
		rootID:  rootID,
		ids:     map[string]string{"/": rootID},
	}
	if _, err := srv.Files.Get(rootID).SupportsAllDrives(true).Fields("id").Context(ctx).Do(); err != nil {
		return nil, fmt.Errorf("probe base folder %q: %w", rootID, err)
	}
	return b, nil
}

// escapeQuery escapes a name for use inside a Drive query string literal.
func escapeQuery(name string) string {
	name = strings.ReplaceAll(name, `\`, `\\`)
	return strings.ReplaceAll(name, `'`, `\'`)
}

// childByName finds the ID and MIME type of a direct child, or ErrNotFound.
func (b *DriveBackend) childByName(ctx context.Context, parentID, name string) (id, mime string, err error) {
	q := fmt.Sprintf("'%s' in parents and name = '%s' and trashed = false",
		escapeQuery(parentID), escapeQuery(name))
	r, err := b.service.Files.List().
		Q(q).
		Fields(googleapi.Field("files(id, mimeType)")).
		PageSize(2).
		SupportsAllDrives(true).
		IncludeItemsFromAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return "", "", fmt.Errorf("lookup %q: %w", name, err)
	}
	if len(r.Files) == 0 {
		return "", "", ErrNotFound
	}
	return r.Files[0].Id, r.Files[0].MimeType, nil
}

// resolve walks path component by component and returns the Drive file ID.
func (b *DriveBackend) resolve(ctx context.Context, path string) (string, error) {
	path = NormalizePath(path)

	b.mu.Lock()
	if id, ok := b.ids[path]; ok {
		b.mu.Unlock()
		return id, nil
	}
	b.mu.Unlock()

	parentID := b.rootID
	walked := ""
	for _, part := range strings.Split(strings.TrimPrefix(path, "/"), "/") {
		if part == "" {
			continue
		}
		walked += "/" + part
		b.mu.Lock()
		cached, ok := b.ids[walked]
		b.mu.Unlock()
		if ok {
			parentID = cached
			continue
		}
		id, _, err := b.childByName(ctx, parentID, part)
		if err != nil {
			return "", err
		}
		b.mu.Lock()
		b.ids[walked] = id
		b.mu.Unlock()
		parentID = id
	}
	return parentID, nil
}

func (b *DriveBackend) forget(path string) {
	b.mu.Lock()
	delete(b.ids, NormalizePath(path))
	b.mu.Unlock()
}

func (b *DriveBackend) Exists(ctx context.Context, path string) (bool, error) {
	_, err := b.resolve(ctx, path)
	if err == nil {
		return true, nil
	}
	if Classify(err) == ClassNotFound {
		return false, nil
	}
	return false, err
}

func (b *DriveBackend) Mkdir(ctx context.Context, path string) error {
	dir, name := SplitPath(path)
	parentID, err := b.resolve(ctx, dir)
	if err != nil {
		return err
	}
	if _, _, err := b.childByName(ctx, parentID, name); err == nil {
		return ErrExists
	} else if Classify(err) != ClassNotFound {
		return err
	}
	f := &drive.File{Name: name, MimeType: folderMIME, Parents: []string{parentID}}
	res, err := b.service.Files.Create(f).Fields("id").SupportsAllDrives(true).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("create folder %q: %w", path, err)
	}
	b.mu.Lock()
	b.ids[NormalizePath(path)] = res.Id
	b.mu.Unlock()
	return nil
}

func (b *DriveBackend) List(ctx context.Context, path string) ([]string, error) {
	id, err := b.resolve(ctx, path)
	if err != nil {
		return nil, err
	}
	q := fmt.Sprintf("'%s' in parents and mimeType = '%s' and trashed = false",
		escapeQuery(id), folderMIME)
	var names []string
	pageToken := ""
	for {
		call := b.service.Files.List().
			Q(q).
			Fields(googleapi.Field("nextPageToken, files(name)")).
			PageSize(200).
			SupportsAllDrives(true).
			IncludeItemsFromAllDrives(true).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		r, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("list %q: %w", path, err)
		}
		for _, f := range r.Files {
			names = append(names, f.Name)
		}
		if r.NextPageToken == "" {
			break
		}
		pageToken = r.NextPageToken
	}
	sort.Strings(names)
	return names, nil
}

func (b *DriveBackend) Upload(ctx context.Context, r io.Reader, path string, overwrite bool) error {
	dir, name := SplitPath(path)
	parentID, err := b.resolve(ctx, dir)
	if err != nil {
		return err
	}

	existingID, _, err := b.childByName(ctx, parentID, name)
	switch {
	case err == nil:
		if !overwrite {
			return ErrExists
		}
		_, err = b.service.Files.Update(existingID, &drive.File{}).
			Media(r).
			SupportsAllDrives(true).
			Context(ctx).
			Do()
		if err != nil {
			return fmt.Errorf("overwrite %q: %w", path, err)
		}
		return nil
	case Classify(err) == ClassNotFound:
		f := &drive.File{Name: name, Parents: []string{parentID}}
		res, err := b.service.Files.Create(f).Media(r).Fields("id").SupportsAllDrives(true).Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("upload %q: %w", path, err)
		}
		b.mu.Lock()
		b.ids[NormalizePath(path)] = res.Id
		b.mu.Unlock()
		return nil
	default:
		return err
	}
}

func (b *DriveBackend) Download(ctx context.Context, path string) (io.ReadCloser, error) {
	id, err := b.resolve(ctx, path)
	if err != nil {
		return nil, err
	}
	resp, err := b.service.Files.Get(id).SupportsAllDrives(true).Context(ctx).Download()
	if err != nil {
		b.forget(path)
		return nil, fmt.Errorf("download %q: %w", path, err)
	}
	return resp.Body, nil
}

func (b *DriveBackend) Link(ctx context.Context, path string) (string, error) {
	id, err := b.resolve(ctx, path)
	if err != nil {
		return "", err
	}
	f, err := b.service.Files.Get(id).Fields("webViewLink").SupportsAllDrives(true).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("link %q: %w", path, err)
	}
	return f.WebViewLink, nil
}
