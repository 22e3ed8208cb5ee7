package mirror

import (
	"context"
	"fmt"
	"io"
	"path"
	"sort"

	"github.com/studio-b12/gowebdav"

	"gsm-go/internal/gsm"
)

// WebDAVMirror stores blobs on a WebDAV server with basic authentication.
// The client is not context aware; ctx is checked between requests.
type WebDAVMirror struct {
	client *gowebdav.Client
	root   string
}

func NewWebDAVMirror(endpoint, username, password, root string) *WebDAVMirror {
	return &WebDAVMirror{
		client: gowebdav.NewClient(endpoint, username, password),
		root:   root,
	}
}

func (m *WebDAVMirror) Write(ctx context.Context, key string, r io.Reader, size int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := fullPath(m.root, key)
	if err != nil {
		return err
	}
	if err := m.client.MkdirAll(path.Dir(p), 0o755); err != nil {
		return fmt.Errorf("creating collection %s: %w", path.Dir(p), err)
	}
	if err := m.client.WriteStream(p, io.LimitReader(r, size), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", p, err)
	}
	return nil
}

func (m *WebDAVMirror) Read(ctx context.Context, key string, w io.Writer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := fullPath(m.root, key)
	if err != nil {
		return err
	}
	rc, err := m.client.ReadStream(p)
	if gowebdav.IsErrNotFound(err) {
		return notFound(key)
	}
	if err != nil {
		return fmt.Errorf("reading %s: %w", p, err)
	}
	defer rc.Close()
	if _, err := io.Copy(w, rc); err != nil {
		return fmt.Errorf("reading %s: %w", p, err)
	}
	return nil
}

func (m *WebDAVMirror) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := fullPath(m.root, key)
	if err != nil {
		return err
	}
	if err := m.client.Remove(p); err != nil && !gowebdav.IsErrNotFound(err) {
		return fmt.Errorf("deleting %s: %w", p, err)
	}
	return nil
}

func (m *WebDAVMirror) RemoveAll(ctx context.Context, prefix string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := fullPath(m.root, prefix)
	if err != nil {
		return err
	}
	if err := m.client.RemoveAll(p); err != nil && !gowebdav.IsErrNotFound(err) {
		return fmt.Errorf("removing %s: %w", p, err)
	}
	return nil
}

// List walks the collection tree under prefix with an explicit worklist.
func (m *WebDAVMirror) List(ctx context.Context, prefix string) ([]string, error) {
	start, err := fullPath(m.root, prefix)
	if err != nil {
		return nil, err
	}

	var keys []string
	stack := []string{start}
	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		dir := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		infos, err := m.client.ReadDir(dir)
		if gowebdav.IsErrNotFound(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("listing %s: %w", dir, err)
		}
		for _, info := range infos {
			child := path.Join(dir, info.Name())
			if info.IsDir() {
				stack = append(stack, child)
				continue
			}
			keys = append(keys, relativeKey(m.root, child))
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Check connects to the server and makes sure the root collection exists.
func (m *WebDAVMirror) Check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := m.client.Connect(); err != nil {
		return fmt.Errorf("connecting: %w", err)
	}
	root := path.Join("/", m.root)
	if err := m.client.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("creating root %s: %w", root, err)
	}
	return nil
}

var _ gsm.Mirror = (*WebDAVMirror)(nil)
