// Package setup handles first-time workspace initialization.
package setup

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/mkendrick/vaultshift/templates"
)

// Run writes the starter configuration to path. A directory path gets a
// vaultshift.yaml inside it. An existing file is never overwritten: a
// half-edited config describes a real pending migration.
func Run(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve config path: %w", err)
	}
	if info, err := os.Stat(abs); err == nil && info.IsDir() {
		abs = filepath.Join(abs, "vaultshift.yaml")
	}

	if _, err := os.Stat(abs); err == nil {
		return fmt.Errorf("%s already exists", abs)
	}

	data, err := fs.ReadFile(templates.FS, "vaultshift.yaml")
	if err != nil {
		return fmt.Errorf("read config template: %w", err)
	}

	if dir := filepath.Dir(abs); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(abs, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", abs, err)
	}
	return nil
}
