package storage

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

// captureTransport records every request and answers with a canned Drive
// response.
type captureTransport struct {
	reqs []*http.Request
}

func (c *captureTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	c.reqs = append(c.reqs, req)
	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(`{"id": "created", "files": []}`)),
		Request:    req,
	}, nil
}

func newCapturedDrive(t *testing.T) (*DriveBackend, *captureTransport) {
	t.Helper()
	ct := &captureTransport{}
	srv, err := drive.NewService(context.Background(),
		option.WithHTTPClient(&http.Client{Transport: ct}))
	if err != nil {
		t.Fatalf("drive.NewService() error = %v", err)
	}
	return &DriveBackend{
		service: srv,
		rootID:  "base",
		ids:     map[string]string{"/": "base"},
	}, ct
}

// Shared-drive folders are only visible when every call opts in, so the
// listing and mutation calls must all carry the all-drives flags.
func TestDriveCallsSpanSharedDrives(t *testing.T) {
	b, ct := newCapturedDrive(t)

	if _, err := b.List(context.Background(), "/"); err != nil {
		t.Fatalf("List() error = %v", err)
	}
	listQ := ct.reqs[len(ct.reqs)-1].URL.Query()
	if listQ.Get("supportsAllDrives") != "true" {
		t.Error("List is missing supportsAllDrives=true")
	}
	if listQ.Get("includeItemsFromAllDrives") != "true" {
		t.Error("List is missing includeItemsFromAllDrives=true")
	}

	if err := b.Mkdir(context.Background(), "/child"); err != nil {
		t.Fatalf("Mkdir() error = %v", err)
	}
	// Last request is the folder creation; the lookup came before it.
	createQ := ct.reqs[len(ct.reqs)-1].URL.Query()
	if createQ.Get("supportsAllDrives") != "true" {
		t.Error("Create is missing supportsAllDrives=true")
	}
	lookupQ := ct.reqs[len(ct.reqs)-2].URL.Query()
	if lookupQ.Get("includeItemsFromAllDrives") != "true" {
		t.Error("child lookup is missing includeItemsFromAllDrives=true")
	}
}
