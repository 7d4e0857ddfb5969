package confkit

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// maxAscent bounds how far upward searches climb before giving up.
const maxAscent = 8

// ProjectRoot returns the repository root directory. The search starts at
// this package's source directory and climbs until it sees go.mod or .git,
// so the result does not depend on the caller's working directory. When no
// source location is available the working directory stands in.
func ProjectRoot() (string, error) {
	if start, ok := callerDir(); ok {
		if root, found := ascendToRoot(start); found {
			return root, nil
		}
	}
	wd, err := os.Getwd()
	if err != nil {
		return ".", fmt.Errorf("getwd: %w", err)
	}
	return wd, nil
}

// MustProjectRoot is ProjectRoot for initialization paths that cannot recover.
func MustProjectRoot() string {
	root, err := ProjectRoot()
	if err != nil {
		panic(err)
	}
	return root
}

// ProjectPath resolves rel against the repository root.
func ProjectPath(rel string) (string, error) {
	root, err := ProjectRoot()
	if err != nil {
		return "", err
	}
	return filepath.Join(root, rel), nil
}

// MustProjectPath is ProjectPath for initialization paths that cannot recover.
func MustProjectPath(rel string) string {
	p, err := ProjectPath(rel)
	if err != nil {
		panic(err)
	}
	return p
}

// callerDir reports the directory holding this package's source files.
func callerDir() (string, bool) {
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		return "", false
	}
	return filepath.Dir(file), true
}

// ascendToRoot climbs from start and returns the first directory carrying a
// repository marker.
func ascendToRoot(start string) (string, bool) {
	dir := start
	for i := 0; i < maxAscent; i++ {
		if hasRootMarker(dir) {
			return dir, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false
}

func hasRootMarker(dir string) bool {
	for _, marker := range []string{"go.mod", ".git"} {
		if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
			return true
		}
	}
	return false
}
