package util

import (
	"fmt"
	"os"
	"path/filepath"
)

// HomeEnv overrides the data directory, e.g. for containers or tests.
const HomeEnv = "NODELINK_HOME"

// DataDir is where nodelink keeps its config, database and ssh host key:
// $NODELINK_HOME when set, otherwise ~/.config/nodelink. It is created on demand.
func DataDir() (string, error) {
	dir := os.Getenv(HomeEnv)
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("user home directory: %w", err)
		}
		dir = filepath.Join(home, ".config", Name)
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("create data directory: %w", err)
	}
	return dir, nil
}

// DataPath locates a file that may live in the working directory or the data
// directory. Absolute paths are used as given. A file present in the working
// directory wins; otherwise the data directory path is returned, existing or
// not, so callers can create it there. Parent directories are created.
func DataPath(rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}
	if _, err := os.Stat(rel); err == nil {
		return rel
	}
	dir, err := DataDir()
	if err != nil {
		Logger().Warn("no data directory, using working directory", "err", err)
		return rel
	}
	p := filepath.Join(dir, rel)
	if err := os.MkdirAll(filepath.Dir(p), 0o700); err != nil {
		Logger().Warn("could not create parent directory", "path", p, "err", err)
	}
	return p
}
