package zipstream

import (
	"path/filepath"
	"strings"
)

// resolve joins rel onto root and verifies the cleaned result never
// escapes root, the same prefix-equal-or-descendant check internal/vfs
// uses for its own sandbox.
func resolve(root, rel string) (string, error) {
	joined := filepath.Join(root, rel)
	cleanRoot := filepath.Clean(root)
	if joined == cleanRoot {
		return joined, nil
	}
	if strings.HasPrefix(joined, cleanRoot+string(filepath.Separator)) {
		return joined, nil
	}
	return "", ErrOutsideSandbox
}
