package confkit

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/joho/godotenv"
)

var dotenvOnce sync.Once

// LoadDotenvOnce feeds .env values into the process environment, at most once
// per process. Every directory between this package and the repository root
// is a candidate, nearest first, so a package-local .env shadows the root
// one. NO_DOTENV=1 skips loading entirely, ENV_FILE names a single explicit
// file, and DOTENV_OVERLOAD=1 lets .env values replace variables already set.
func LoadDotenvOnce() {
	dotenvOnce.Do(applyDotenv)
}

func applyDotenv() {
	if os.Getenv("NO_DOTENV") == "1" {
		return
	}
	apply := godotenv.Load
	if os.Getenv("DOTENV_OVERLOAD") == "1" {
		apply = godotenv.Overload
	}
	for _, path := range dotenvCandidates() {
		_ = apply(path)
	}
}

// dotenvCandidates returns the .env paths to try, nearest directory first.
// The walk stops once the repository root has contributed its candidate.
func dotenvCandidates() []string {
	if explicit := os.Getenv("ENV_FILE"); explicit != "" {
		return []string{explicit}
	}
	start, ok := callerDir()
	if !ok {
		return []string{".env"}
	}
	paths := make([]string, 0, maxAscent)
	dir := start
	for i := 0; i < maxAscent; i++ {
		paths = append(paths, filepath.Join(dir, ".env"))
		if hasRootMarker(dir) {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return paths
}
