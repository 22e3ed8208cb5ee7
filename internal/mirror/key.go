package mirror

import (
	"fmt"
	"io/fs"
	"path"
	"strings"
)

// fullPath joins a mirror key onto the configured root. Keys are
// slash-separated; a key that climbs out of the root is rejected.
func fullPath(root, key string) (string, error) {
	if strings.Contains(key, `\`) {
		return "", fmt.Errorf("invalid key %q: backslash in key", key)
	}
	for _, part := range strings.Split(key, "/") {
		if part == ".." {
			return "", fmt.Errorf("invalid key %q: escapes the mirror root", key)
		}
	}
	return path.Join("/", root, key), nil
}

// relativeKey is the inverse of fullPath.
func relativeKey(root, full string) string {
	root = path.Join("/", root)
	rel := strings.TrimPrefix(path.Join("/", full), root)
	return path.Join("/", rel)
}

func notFound(key string) error {
	return fmt.Errorf("%w: %s", fs.ErrNotExist, key)
}
