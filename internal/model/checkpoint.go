package model

import "time"

// Checkpoint is the per-target-user record that outlives a single process
// invocation. Absence of the record means nothing has completed yet. The
// record is updated (never replaced) after each phase commits, and is never
// deleted automatically; `vaultshift reset` is the documented
// restart-from-scratch operation.
type Checkpoint struct {
	SchemaVersion     int      `yaml:"schema_version"`
	FileType          string   `yaml:"file_type"`
	TargetUser        string   `yaml:"target_user"`
	Phase1Complete    bool     `yaml:"phase1_complete"`
	Phase1CompletedAt *string  `yaml:"phase1_completed_at"`
	Phase2Complete    bool     `yaml:"phase2_complete"`
	Phase2CompletedAt *string  `yaml:"phase2_completed_at"`
	Affiliations      Snapshot `yaml:"affiliations"`
	CreatedAt         string   `yaml:"created_at"`
	UpdatedAt         string   `yaml:"updated_at"`
}

const (
	CheckpointSchemaVersion = 1
	CheckpointFileType      = "checkpoint"
)

// NewCheckpoint returns an empty checkpoint for a target user.
func NewCheckpoint(targetUser string) Checkpoint {
	return Checkpoint{
		SchemaVersion: CheckpointSchemaVersion,
		FileType:      CheckpointFileType,
		TargetUser:    targetUser,
		CreatedAt:     Now(),
	}
}

// MarkPhase1 records Phase 1 completion along with the captured snapshot,
// so a resume after restart can still restore affiliations even though the
// source account no longer exists.
func (c *Checkpoint) MarkPhase1(snap Snapshot) {
	ts := Now()
	c.Phase1Complete = true
	c.Phase1CompletedAt = &ts
	c.Affiliations = snap
}

func (c *Checkpoint) MarkPhase2() {
	ts := Now()
	c.Phase2Complete = true
	c.Phase2CompletedAt = &ts
}

func (c Checkpoint) Done() bool {
	return c.Phase1Complete && c.Phase2Complete
}

// Now returns the current UTC time in the RFC3339 format used throughout
// checkpoint and audit records.
func Now() string {
	return time.Now().UTC().Format(time.RFC3339)
}
