package runtime

import (
	"fmt"
	"os"
	"path/filepath"
)

// dataSubdirs is the fixed local data layout: media store, database
// files, logs, collected static assets, and backups.
var dataSubdirs = []string{"media", "db", "logs", "staticfiles", "backups"}

// EnsureLayout creates the local data directory tree. Existing
// directories are not an error.
func EnsureLayout(root string) error {
	for _, sub := range dataSubdirs {
		dir := filepath.Join(root, sub)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}

	return nil
}
