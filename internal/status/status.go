// Package status reports migration progress from the checkpoint record.
package status

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/mkendrick/vaultshift/internal/checkpoint"
	"github.com/mkendrick/vaultshift/internal/model"
	"github.com/mkendrick/vaultshift/internal/ui"
)

// Report is the machine-readable shape emitted by `vaultshift status --json`.
type Report struct {
	TargetUser     string  `json:"target_user"`
	CheckpointPath string  `json:"checkpoint_path"`
	Phase1Complete bool    `json:"phase1_complete"`
	Phase1At       *string `json:"phase1_completed_at,omitempty"`
	Phase2Complete bool    `json:"phase2_complete"`
	Phase2At       *string `json:"phase2_completed_at,omitempty"`
	Roles          int     `json:"captured_roles"`
	Teams          int     `json:"captured_teams"`
	NextAction     string  `json:"next_action"`
}

// Render writes the migration state for one target user. jsonOutput switches
// between the human rendering and a single JSON document.
func Render(w io.Writer, store *checkpoint.Store, targetUser string, jsonOutput bool) error {
	cp, err := store.Load(targetUser)
	if err != nil {
		return err
	}

	r := build(store, targetUser, cp)
	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	}

	fmt.Fprintln(w, ui.Header("migration status: "+targetUser))
	fmt.Fprintf(w, "checkpoint: %s\n", r.CheckpointPath)
	fmt.Fprintf(w, "phase 1 (lock + transfer):       %s\n", mark(r.Phase1Complete, r.Phase1At))
	fmt.Fprintf(w, "phase 2 (re-provision + return): %s\n", mark(r.Phase2Complete, r.Phase2At))
	if r.Phase1Complete {
		fmt.Fprintf(w, "captured affiliations: %d role(s), %d team(s)\n", r.Roles, r.Teams)
	}
	fmt.Fprintf(w, "next: %s\n", r.NextAction)
	return nil
}

func build(store *checkpoint.Store, targetUser string, cp model.Checkpoint) Report {
	r := Report{
		TargetUser:     targetUser,
		CheckpointPath: store.Path(targetUser),
		Phase1Complete: cp.Phase1Complete,
		Phase1At:       cp.Phase1CompletedAt,
		Phase2Complete: cp.Phase2Complete,
		Phase2At:       cp.Phase2CompletedAt,
		Roles:          len(cp.Affiliations.Roles),
		Teams:          len(cp.Affiliations.Teams),
	}
	switch {
	case cp.Done():
		r.NextAction = "nothing; migration is complete"
	case cp.Phase1Complete:
		r.NextAction = "run `vaultshift run` to resume phase 2"
	default:
		r.NextAction = "run `vaultshift run` to start phase 1"
	}
	return r
}

func mark(done bool, at *string) string {
	if !done {
		return "pending"
	}
	if at != nil {
		return ui.Success("complete") + " (" + *at + ")"
	}
	return ui.Success("complete")
}
