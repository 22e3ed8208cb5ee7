package mirror

import (
	"context"
	"fmt"

	"gsm-go/internal/gsm"
)

// NewMirrorFromSettings creates a Mirror based on the backend type.
// It satisfies gsm.MirrorFactory.
func NewMirrorFromSettings(settings gsm.CloudSettings) (gsm.Mirror, error) {
	root := settings.RootPath
	if root == "" {
		root = gsm.DefaultRootPath
	}
	b := settings.Backend
	switch b.Type {
	case "", gsm.BackendDisabled:
		return Disabled{}, nil
	case gsm.BackendWebDAV:
		if b.Endpoint == "" {
			return nil, fmt.Errorf("webdav backend requires an endpoint")
		}
		return NewWebDAVMirror(b.Endpoint, b.Username, b.Password, root), nil
	case gsm.BackendS3:
		return NewS3Mirror(context.Background(), S3Options{
			Endpoint:        b.Endpoint,
			Bucket:          b.Bucket,
			Region:          b.Region,
			AccessKeyID:     b.AccessKeyID,
			SecretAccessKey: b.SecretAccessKey,
			Root:            root,
		})
	case gsm.BackendFilesystem:
		if b.Root == "" {
			return nil, fmt.Errorf("filesystem backend requires root to be set")
		}
		return NewFileSystemMirror(b.Root, root)
	case gsm.BackendMemory:
		return sharedMemoryMirror(b.Root, root), nil
	default:
		return nil, fmt.Errorf("unknown backend type: %s", b.Type)
	}
}

var _ gsm.MirrorFactory = NewMirrorFromSettings
