// Package checkpoint persists per-target-user phase completion records.
// The orchestrator is the only reader and writer; the record is what makes
// a run resumable across process restarts.
package checkpoint

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mkendrick/vaultshift/internal/model"
	"github.com/mkendrick/vaultshift/internal/yamlfile"
)

type Store struct {
	dir string
}

func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// unsafePathChars matches characters that cannot appear in a checkpoint
// filename stem. Email addresses keep dots and dashes; everything else
// collapses to underscores.
var unsafePathChars = regexp.MustCompile(`[^a-zA-Z0-9._@-]`)

func (s *Store) Path(userKey string) string {
	stem := unsafePathChars.ReplaceAllString(strings.ToLower(userKey), "_")
	return filepath.Join(s.dir, stem+".yaml")
}

func (s *Store) Exists(userKey string) bool {
	_, err := os.Stat(s.Path(userKey))
	return err == nil
}

// Load returns the checkpoint for a target user. A missing record is not an
// error: it yields a fresh checkpoint with nothing complete. A record that
// exists but cannot be read or parsed is an error; guessing at completion
// state for a destructive workflow is never acceptable.
func (s *Store) Load(userKey string) (model.Checkpoint, error) {
	path := s.Path(userKey)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return model.NewCheckpoint(userKey), nil
		}
		return model.Checkpoint{}, fmt.Errorf("read checkpoint %s: %w", path, err)
	}

	var cp model.Checkpoint
	if err := yaml.Unmarshal(data, &cp); err != nil {
		return model.Checkpoint{}, fmt.Errorf("parse checkpoint %s: %w", path, err)
	}
	if cp.SchemaVersion != model.CheckpointSchemaVersion {
		return model.Checkpoint{}, fmt.Errorf("unsupported schema_version %d in %s (expected %d)", cp.SchemaVersion, path, model.CheckpointSchemaVersion)
	}
	if cp.FileType != model.CheckpointFileType {
		return model.Checkpoint{}, fmt.Errorf("unexpected file_type %q in %s", cp.FileType, path)
	}
	return cp, nil
}

// Save performs a whole-record atomic overwrite. Failure to persist must
// propagate: without the checkpoint write, resumption safety is lost.
func (s *Store) Save(userKey string, cp model.Checkpoint) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("create checkpoint dir: %w", err)
	}
	cp.UpdatedAt = model.Now()
	if err := yamlfile.AtomicWrite(s.Path(userKey), cp); err != nil {
		return fmt.Errorf("write checkpoint for %s: %w", userKey, err)
	}
	return nil
}

// Delete removes the record. This is the manual restart-from-scratch
// operation behind `vaultshift reset`; nothing deletes checkpoints
// automatically.
func (s *Store) Delete(userKey string) error {
	if err := os.Remove(s.Path(userKey)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete checkpoint for %s: %w", userKey, err)
	}
	return nil
}
