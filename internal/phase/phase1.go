package phase

import (
	"github.com/mkendrick/vaultshift/internal/affiliation"
	"github.com/mkendrick/vaultshift/internal/model"
	"github.com/mkendrick/vaultshift/internal/vault"
)

// RunPhase1 secures the target account and transfers its vault contents to
// the admin identity. Steps are strictly ordered: affiliations are captured
// first (they become unavailable once the account is locked or deleted),
// then lock, then transfer. The transfer is the point of no return: the
// external system deletes the source account as a side effect.
//
// The captured snapshot is returned even when the phase aborts, so the
// caller can persist whatever was learned before the failure.
func RunPhase1(ctx *RunContext, runner vault.Runner, cfg *model.Config) (model.Snapshot, error) {
	step := model.Phase1NotStarted
	ctx.Printf("Phase 1: secure & transfer (target %s, recipient %s)", cfg.TargetUser, cfg.AdminUser)

	snap, err := affiliation.Capture(runner, cfg.TargetUser)
	if err != nil {
		ctx.Warnf("affiliation capture failed: %v", err)
		ctx.Warnf("proceeding with an EMPTY snapshot; no roles or teams will be re-applied in phase 2")
		_ = ctx.Audit.Log("affiliation_capture_failed", map[string]any{
			"target_user": cfg.TargetUser,
			"error":       err.Error(),
		})
	} else {
		ctx.Printf("captured %d role(s) and %d team(s) for %s", len(snap.Roles), len(snap.Teams), cfg.TargetUser)
	}

	ok, err := ctx.confirm(
		"Lock account "+cfg.TargetUser+"?",
		"Locking prevents further sign-ins. This is the first mutating step of the migration.",
	)
	if err != nil {
		return snap, err
	}
	if !ok {
		return snap, ErrAborted
	}

	if ctx.DryRun {
		ctx.Printf("[dry-run] would run: lock-user --user %s --enterprise %s", cfg.TargetUser, cfg.Enterprise)
	} else {
		_, err := runner.Execute("lock-user", []string{"--user", cfg.TargetUser, "--enterprise", cfg.Enterprise}, false)
		if err != nil {
			return snap, &FatalError{
				Step: "lock",
				Err:  err,
				Guidance: "The target account was NOT locked and the external system should be unchanged. " +
					"Resolve the underlying error and re-run; no manual cleanup is required.",
			}
		}
	}
	if err := advance1(ctx, cfg, &step, model.Phase1Locked); err != nil {
		return snap, err
	}

	ok, err = ctx.confirm(
		"Transfer vault of "+cfg.TargetUser+" to "+cfg.AdminUser+"?",
		"POINT OF NO RETURN: the external system deletes the source account as a side effect of the transfer. "+
			"The vault contents become reachable only through "+cfg.AdminUser+".",
	)
	if err != nil {
		return snap, err
	}
	if !ok {
		return snap, ErrAborted
	}

	if ctx.DryRun {
		ctx.Printf("[dry-run] would run: transfer-user-vault --from %s --to %s --enterprise %s", cfg.TargetUser, cfg.AdminUser, cfg.Enterprise)
	} else {
		_, err := runner.Execute("transfer-user-vault", []string{"--from", cfg.TargetUser, "--to", cfg.AdminUser, "--enterprise", cfg.Enterprise}, false)
		if err != nil {
			return snap, &FatalError{
				Step: "transfer",
				Err:  err,
				Guidance: "Account " + cfg.TargetUser + " is LOCKED but its vault was NOT transferred. " +
					"Do NOT retry the transfer blindly: a failed transfer may have partially applied server-side state. " +
					"Inspect the admin console, verify the account's state, and intervene manually before re-running.",
			}
		}
	}
	if err := advance1(ctx, cfg, &step, model.Phase1Transferred); err != nil {
		return snap, err
	}

	if err := advance1(ctx, cfg, &step, model.Phase1Done); err != nil {
		return snap, err
	}
	ctx.Printf("Phase 1 complete: %s is locked and its vault now lives under %s", cfg.TargetUser, cfg.AdminUser)
	return snap, nil
}

func advance1(ctx *RunContext, cfg *model.Config, step *model.Phase1Step, to model.Phase1Step) error {
	if err := model.ValidatePhase1Transition(*step, to); err != nil {
		return err
	}
	*step = to
	ctx.Debugf("phase 1 step: %s", to)
	_ = ctx.Audit.Log("phase1_step", map[string]any{
		"target_user": cfg.TargetUser,
		"step":        string(to),
		"dry_run":     ctx.DryRun,
	})
	return nil
}
