// Package orchestrator composes the checkpoint store and the two phase
// executors into one resumable run. The central correctness property lives
// here: once Phase1Complete is persisted, the destructive lock/transfer
// steps are never re-issued, no matter how often the run is repeated.
package orchestrator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mkendrick/vaultshift/internal/checkpoint"
	"github.com/mkendrick/vaultshift/internal/model"
	"github.com/mkendrick/vaultshift/internal/phase"
	"github.com/mkendrick/vaultshift/internal/vault"
)

type Orchestrator struct {
	Runner vault.Runner
	Store  *checkpoint.Store
	Config *model.Config
}

// Run executes whatever remains of the migration for the configured target
// user. Completed phases are skipped; a checkpoint is persisted immediately
// after each phase fully succeeds. Dry-run reports what would happen and
// never touches the checkpoint.
func (o *Orchestrator) Run(ctx *phase.RunContext) error {
	cfg := o.Config
	key := cfg.TargetUser

	cp, err := o.Store.Load(key)
	if err != nil {
		return &phase.FatalError{
			Step:     "checkpoint-load",
			Err:      err,
			Guidance: "The checkpoint record exists but could not be read. Do not proceed: completion state is unknown. Inspect or restore the file before re-running.",
		}
	}

	if cp.Done() {
		ctx.Printf("nothing to do: both phases are already complete for %s", key)
		return nil
	}

	if err := o.checkIdentity(ctx); err != nil {
		return err
	}

	if ctx.DryRun {
		ctx.Printf("dry-run: no external mutation and no checkpoint write will happen")
	}

	snap := cp.Affiliations
	if !cp.Phase1Complete {
		snap, err = phase.RunPhase1(ctx, o.Runner, cfg)
		if err != nil {
			// The capture may be the last chance to learn the target's
			// affiliations: once the account is locked, a re-run's capture can
			// come back empty. A fatal step failure keeps the snapshot; an
			// operator decline before any mutation persists nothing.
			var fatal *phase.FatalError
			if !ctx.DryRun && !snap.Empty() && errors.As(err, &fatal) {
				cp.Affiliations = snap
				if saveErr := o.Store.Save(key, cp); saveErr != nil {
					ctx.Warnf("could not persist captured affiliations: %v", saveErr)
				}
			}
			return err
		}
		if snap.Empty() && !cp.Affiliations.Empty() {
			ctx.Printf("using affiliations captured by the previous run (%d role(s), %d team(s))",
				len(cp.Affiliations.Roles), len(cp.Affiliations.Teams))
			snap = cp.Affiliations
		}
		if !ctx.DryRun {
			cp.MarkPhase1(snap)
			if err := o.Store.Save(key, cp); err != nil {
				return &phase.FatalError{
					Step: "checkpoint-save",
					Err:  err,
					Guidance: "Phase 1 SUCCEEDED but its completion could not be persisted. Do not re-run until the checkpoint is " +
						"writable, or the destructive phase 1 steps would be attempted again against an account that no longer exists.",
				}
			}
		}
	} else {
		ctx.Printf("phase 1 already complete (%s); skipping lock/transfer", deref(cp.Phase1CompletedAt))
		if snap.Empty() {
			ctx.Warnf("checkpoint carries no captured affiliations; phase 2 will not re-apply roles or teams")
		}
	}

	if !cp.Phase2Complete {
		failuresBefore := ctx.Failures()
		if err := phase.RunPhase2(ctx, o.Runner, cfg, snap); err != nil {
			return err
		}
		if ctx.Failures() > failuresBefore {
			ctx.Warnf("phase 2 finished with %d failed step(s); it is NOT marked complete. Re-run to finish, or correct manually in the admin console", ctx.Failures()-failuresBefore)
		} else if !ctx.DryRun {
			cp.MarkPhase2()
			if err := o.Store.Save(key, cp); err != nil {
				return &phase.FatalError{
					Step:     "checkpoint-save",
					Err:      err,
					Guidance: "Phase 2 succeeded but its completion could not be persisted. A re-run would re-attempt phase 2 steps; fix the checkpoint location first.",
				}
			}
		}
	} else {
		ctx.Printf("phase 2 already complete (%s); nothing to re-provision", deref(cp.Phase2CompletedAt))
	}

	return nil
}

// checkIdentity verifies the active CLI session before any mutation. A
// migration issued under the wrong identity would transfer the vault to the
// wrong place, so a confirmed mismatch aborts.
func (o *Orchestrator) checkIdentity(ctx *phase.RunContext) error {
	res, err := o.Runner.Execute("whoami", nil, true)
	if err != nil {
		return &phase.FatalError{
			Step:     "identity-check",
			Err:      err,
			Guidance: "No active vault CLI session. Log in as " + o.Config.AdminUser + " and re-run; nothing has been changed.",
		}
	}

	if res.Parsed == nil {
		ctx.Warnf("could not parse identity output; verify you are logged in as %s", o.Config.AdminUser)
		return nil
	}

	user, _ := res.Parsed["user"].(string)
	if user != "" && !strings.EqualFold(user, o.Config.AdminUser) {
		return &phase.FatalError{
			Step:     "identity-check",
			Err:      fmt.Errorf("logged in as %s, expected %s", user, o.Config.AdminUser),
			Guidance: "The active session does not belong to the configured admin. Nothing has been changed. Log in as " + o.Config.AdminUser + " and re-run.",
		}
	}
	ctx.Debugf("identity check passed: %s", user)
	return nil
}

func deref(s *string) string {
	if s == nil {
		return "unknown time"
	}
	return *s
}
