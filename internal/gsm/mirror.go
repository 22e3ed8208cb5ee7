package gsm

import (
	"context"
	"io"
)

// Mirror is a remote blob store addressed by slash-separated keys such as
// "/save_data/<game>/Backups.json". Keys are relative to the root path the
// mirror was configured with.
type Mirror interface {
	// Write stores size bytes read from r under key, replacing any previous blob.
	Write(ctx context.Context, key string, r io.Reader, size int64) error

	// Read copies the blob stored under key into w.
	Read(ctx context.Context, key string, w io.Writer) error

	// Delete removes a single blob. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// RemoveAll removes every blob under prefix.
	RemoveAll(ctx context.Context, prefix string) error

	// List returns the keys under prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)

	// Check verifies the backend is reachable and the credentials work.
	Check(ctx context.Context) error
}

// MirrorFactory builds a mirror from persisted settings. The service calls it
// per operation so settings changes take effect immediately.
type MirrorFactory func(settings CloudSettings) (Mirror, error)
