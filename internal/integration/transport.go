package integration

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"
)

// RemoteFile is a file waiting in the response folder.
type RemoteFile struct {
	Name    string
	Size    int64
	ModTime time.Time
}

// Transport moves files between this system and the shared file store.
// Uploads land in the request folder; everything else reads the response
// folder.
type Transport interface {
	// List returns the response files whose name matches pattern, sorted by name.
	List(ctx context.Context, pattern *regexp.Regexp) ([]RemoteFile, error)
	Download(ctx context.Context, name string) ([]byte, error)
	// Upload writes content under name and returns the remote path.
	Upload(ctx context.Context, name string, content []byte) (string, error)
	Archive(ctx context.Context, name string) error
	Delete(ctx context.Context, name string) error
}

var (
	ErrFileNotFound = errors.New("integration_file_not_found")
	ErrFileExists   = errors.New("integration_file_exists")
)

// TransportError wraps a file store failure. Jobs treat it as retryable.
type TransportError struct {
	Op   string
	Path string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) TransportFailure() bool { return true }

func transportErr(op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &TransportError{Op: op, Path: path, Err: err}
}
