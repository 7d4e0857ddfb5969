// Package confkit holds the small config-loading helpers shared by every
// entrypoint: path resolution relative to a main config file, go-zero file
// loading, dotenv bootstrapping and split-file config sections.
package confkit

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/zeromicro/go-zero/core/conf"
)

// ResolvePath expands environment variables in file and, unless the result is
// absolute, joins it onto base.
func ResolvePath(base, file string) string {
	expanded := os.ExpandEnv(file)
	if filepath.IsAbs(expanded) {
		return expanded
	}
	return filepath.Join(base, expanded)
}

// BaseDir returns the directory of the main config file path.
func BaseDir(mainPath string) string {
	return filepath.Dir(mainPath)
}

// LoadFile loads a configuration file into the provided type T using
// go-zero's conf.Load, optionally with environment variable expansion.
func LoadFile[T any](path string, useEnv bool) (*T, error) {
	var opts []conf.Option
	if useEnv {
		opts = append(opts, conf.UseEnv())
	}
	cfg := new(T)
	if err := conf.Load(path, cfg, opts...); err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}

// Section points at a secondary config file hydrated after the main file is
// read. File paths are resolved relative to the main file's directory.
type Section[T any] struct {
	File  string `json:",optional"`
	Value *T     `json:"-"`
}

// Hydrate resolves the section's file path and runs the loader on it, storing
// the result in Value. A section without a file is left alone; that is how a
// file-backed feature stays disabled.
func (s *Section[T]) Hydrate(base string, loader func(string) (*T, error)) error {
	if s.File == "" {
		return nil
	}
	resolved := ResolvePath(base, s.File)
	value, err := loader(resolved)
	if err != nil {
		return err
	}
	s.File = resolved
	s.Value = value
	return nil
}
