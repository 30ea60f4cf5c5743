package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ModelPaths locates the pieces of a model directory.
type ModelPaths struct {
	// Weights is the absolute path of the compiled .bmodel file.
	Weights string
	// ConfigDir holds tokenizer/processor config next to the weights.
	ConfigDir string
}

// Locate scans dir for a *.bmodel weights file and its config directory.
// The first matching weights file wins.
func Locate(dir string) (ModelPaths, error) {
	base, err := expandHome(dir)
	if err != nil {
		return ModelPaths{}, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return ModelPaths{}, fmt.Errorf("abs path: %w", err)
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return ModelPaths{}, fmt.Errorf("read model dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasSuffix(strings.ToLower(e.Name()), ".bmodel") {
			return ModelPaths{
				Weights:   filepath.Join(abs, e.Name()),
				ConfigDir: filepath.Join(abs, "config"),
			}, nil
		}
	}
	return ModelPaths{}, fmt.Errorf("no .bmodel file in %s", abs)
}

// expandHome expands a leading '~' to the user's home directory.
func expandHome(path string) (string, error) {
	if path == "" {
		return path, nil
	}
	if path[0] != '~' {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("home dir: %w", err)
	}
	if path == "~" {
		return home, nil
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~/")), nil
}
