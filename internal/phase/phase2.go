package phase

import (
	"errors"
	"fmt"

	"github.com/mkendrick/vaultshift/internal/model"
	"github.com/mkendrick/vaultshift/internal/vault"
)

// RunPhase2 re-provisions a replacement account and returns the transferred
// vault contents to it. Only the provisioning step is fatal on failure;
// everything after it is failure-tolerant and contributes to the aggregate
// failure counter instead of aborting, because the remaining steps are
// recoverable through the admin console or a re-run.
func RunPhase2(ctx *RunContext, runner vault.Runner, cfg *model.Config, snap model.Snapshot) error {
	step := model.Phase2NotStarted
	ctx.Printf("Phase 2: re-provision & return (new user %s)", cfg.NewUser.Email)

	credentialRecord, err := provision(ctx, runner, cfg)
	if err != nil {
		return err
	}
	if err := advance2(ctx, cfg, &step, model.Phase2Provisioned); err != nil {
		return err
	}

	if cfg.Options.CreationMode == model.ModeAdd && credentialRecord != "" {
		offerOneTimeShare(ctx, runner, cfg, credentialRecord)
	}

	restoreAffiliations(ctx, runner, cfg, snap)
	if err := advance2(ctx, cfg, &step, model.Phase2AffiliationsRestored); err != nil {
		return err
	}

	containerUID := locateContainer(ctx, runner, cfg)
	if containerUID == "" {
		// Failure already recorded; nothing downstream can run without the
		// container handle.
		return nil
	}
	if err := advance2(ctx, cfg, &step, model.Phase2ItemsLocated); err != nil {
		return err
	}

	transferred := transferItems(ctx, runner, cfg, containerUID)
	if transferred {
		if err := advance2(ctx, cfg, &step, model.Phase2ItemsTransferred); err != nil {
			return err
		}
	}

	// Cleanup stays operator-gated regardless of the transfer outcome.
	offerCleanup(ctx, runner, cfg, containerUID, transferred)

	if transferred {
		if err := advance2(ctx, cfg, &step, model.Phase2Done); err != nil {
			return err
		}
		ctx.Printf("Phase 2 complete: vault contents of the migrated account now belong to %s", cfg.NewUser.Email)
	}
	return nil
}

// provision creates or invites the replacement account. Failure here is
// fatal: nothing downstream can proceed without an account. In add mode the
// returned string is the temporary-credential record UID ("" when the
// payload did not identify one); invite mode never produces one.
func provision(ctx *RunContext, runner vault.Runner, cfg *model.Config) (string, error) {
	mode := cfg.Options.CreationMode

	var desc string
	if mode == model.ModeInvite {
		desc = "An invitation email will be sent to " + cfg.NewUser.Email + "; the user completes registration themselves."
	} else {
		desc = "The account is created directly with a temporary credential, which can be exposed via a one-time share link."
	}
	ok, err := ctx.confirm(fmt.Sprintf("Provision %s (mode: %s)?", cfg.NewUser.Email, mode), desc)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrAborted
	}

	args := []string{"--email", cfg.NewUser.Email, "--enterprise", cfg.Enterprise}
	if mode == model.ModeInvite {
		args = append(args, "--invite")
	} else {
		args = append(args, "--add", "--name", cfg.NewUser.Name, "--node", cfg.NewUser.Node)
		if cfg.NewUser.SSO {
			args = append(args, "--sso")
		}
	}

	if ctx.DryRun {
		ctx.Printf("[dry-run] would run: create-or-invite-user %v", args)
		return "", nil
	}

	res, err := runner.Execute("create-or-invite-user", args, true)
	if err != nil {
		return "", &FatalError{
			Step: "provision",
			Err:  err,
			Guidance: "The replacement account was NOT created. Phase 1 has already completed: the old account is gone " +
				"and its vault sits in " + cfg.AdminUser + "'s vault. Fix the provisioning error and re-run; phase 1 will be skipped.",
		}
	}

	if mode == model.ModeInvite {
		ctx.Printf("invitation sent to %s; the user must complete registration before items become visible to them", cfg.NewUser.Email)
		return "", nil
	}

	ctx.Printf("account %s created in node %q", cfg.NewUser.Email, cfg.NewUser.Node)
	uid := stringField(res.Parsed, "record_uid")
	if uid == "" {
		ctx.Warnf("provisioning output did not identify a temporary-credential record; skipping the one-time share offer")
	}
	return uid, nil
}

func offerOneTimeShare(ctx *RunContext, runner vault.Runner, cfg *model.Config, recordUID string) {
	ok, err := ctx.confirm(
		"Generate a one-time share link for the temporary credential?",
		fmt.Sprintf("Single use, expires after %s. Send it to %s through a trusted channel.", cfg.Options.OneTimeShareExpiry, cfg.NewUser.Email),
	)
	if err != nil || !ok {
		return
	}

	if ctx.DryRun {
		ctx.Printf("[dry-run] would run: share-record-one-time --record %s --expire %s", recordUID, cfg.Options.OneTimeShareExpiry)
		return
	}

	res, err := runner.Execute("share-record-one-time", []string{"--record", recordUID, "--expire", cfg.Options.OneTimeShareExpiry}, true)
	if err != nil {
		ctx.Fail("share-record-one-time", err)
		return
	}
	if url := stringField(res.Parsed, "url"); url != "" {
		ctx.Printf("one-time share link (expires %s): %s", cfg.Options.OneTimeShareExpiry, url)
	} else {
		ctx.Printf("one-time share created; see CLI output:\n%s", res.Output)
	}
}

// restoreAffiliations re-applies captured roles and teams. Each assignment
// is independent: a failure is recorded and the rest are still attempted.
func restoreAffiliations(ctx *RunContext, runner vault.Runner, cfg *model.Config, snap model.Snapshot) {
	if snap.Empty() {
		ctx.Printf("no captured affiliations to restore")
		return
	}

	for _, role := range snap.Roles {
		if ctx.DryRun {
			ctx.Printf("[dry-run] would run: assign-role --role %s --user %s", role.ID, cfg.NewUser.Email)
			continue
		}
		if _, err := runner.Execute("assign-role", []string{"--role", role.ID, "--user", cfg.NewUser.Email}, false); err != nil {
			ctx.Fail("assign-role "+role.Name, err)
			continue
		}
		ctx.Debugf("role %s assigned to %s", role.Name, cfg.NewUser.Email)
	}

	for _, team := range snap.Teams {
		if ctx.DryRun {
			ctx.Printf("[dry-run] would run: assign-team-membership --team %s --user %s", team.ID, cfg.NewUser.Email)
			continue
		}
		if _, err := runner.Execute("assign-team-membership", []string{"--team", team.ID, "--user", cfg.NewUser.Email}, false); err != nil {
			ctx.Fail("assign-team-membership "+team.Name, err)
			continue
		}
		ctx.Debugf("team %s joined by %s", team.Name, cfg.NewUser.Email)
	}
}

// locateContainer finds the system-created container holding the
// transferred vault. The external system does not return a stable handle
// from the transfer step, so location is a listing plus operator
// confirmation. This choice is never automated, even when only one
// candidate exists.
func locateContainer(ctx *RunContext, runner vault.Runner, cfg *model.Config) string {
	res, err := runner.Execute("list-shared-containers", []string{"--user", cfg.AdminUser}, true)
	if err != nil {
		ctx.Fail("list-shared-containers", err)
		return ""
	}
	if res.Parsed == nil {
		ctx.Fail("list-shared-containers", errors.New("unparsable listing output"))
		return ""
	}

	raw, _ := res.Parsed["containers"].([]any)
	if len(raw) == 0 {
		ctx.Fail("locate-items", fmt.Errorf("no shared containers found in %s's vault", cfg.AdminUser))
		return ""
	}

	options := make([]Option, 0, len(raw))
	for _, item := range raw {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		uid := stringField(entry, "uid")
		if uid == "" {
			continue
		}
		name := stringField(entry, "name")
		label := fmt.Sprintf("%s (%s)", name, uid)

		detail, err := runner.Execute("get-container-detail", []string{"--container", uid}, true)
		if err == nil && detail.Parsed != nil {
			if count, ok := detail.Parsed["record_count"].(float64); ok {
				label = fmt.Sprintf("%s (%s, %d records)", name, uid, int(count))
			}
		}
		options = append(options, Option{Value: uid, Label: label})
	}
	if len(options) == 0 {
		ctx.Fail("locate-items", errors.New("listing contained no usable container entries"))
		return ""
	}

	choice, err := ctx.Confirmer.Select(
		"Select the container holding the transferred vault contents of "+cfg.TargetUser,
		options,
	)
	if err != nil {
		ctx.Fail("locate-items", err)
		return ""
	}
	if choice == "" {
		ctx.Fail("locate-items", ErrAborted)
		return ""
	}
	return choice
}

// transferItems re-assigns ownership of the located container's contents to
// the new user. Its failure is recoverable: the account and affiliations
// are already in place, and the operator can re-run phase 2.
func transferItems(ctx *RunContext, runner vault.Runner, cfg *model.Config, containerUID string) bool {
	ok, err := ctx.confirm(
		"Re-assign ownership of container "+containerUID+" to "+cfg.NewUser.Email+"?",
		"This returns the migrated user's actual data.",
	)
	if err != nil || !ok {
		ctx.Fail("reassign-ownership", ErrAborted)
		return false
	}

	args := []string{"--container", containerUID, "--to", cfg.NewUser.Email}
	if !cfg.Options.NoRecursive {
		args = append(args, "--recursive")
	}

	if ctx.DryRun {
		ctx.Printf("[dry-run] would run: reassign-ownership %v", args)
		return true
	}

	if _, err := runner.Execute("reassign-ownership", args, false); err != nil {
		ctx.Fail("reassign-ownership", err)
		return false
	}
	ctx.Printf("ownership of %s re-assigned to %s", containerUID, cfg.NewUser.Email)
	return true
}

func offerCleanup(ctx *RunContext, runner vault.Runner, cfg *model.Config, containerUID string, transferred bool) {
	desc := "Optional: remove the emptied container from " + cfg.AdminUser + "'s vault."
	if !transferred {
		desc = "WARNING: the item transfer did not complete. Deleting the container may destroy data that has not been migrated."
	}

	ok, err := ctx.confirm("Delete container "+containerUID+" from the admin vault?", desc)
	if err != nil || !ok {
		return
	}

	if ctx.DryRun {
		ctx.Printf("[dry-run] would run: delete-container --container %s", containerUID)
		return
	}

	if _, err := runner.Execute("delete-container", []string{"--container", containerUID}, false); err != nil {
		ctx.Fail("delete-container", err)
		return
	}
	ctx.Printf("container %s deleted", containerUID)
}

func advance2(ctx *RunContext, cfg *model.Config, step *model.Phase2Step, to model.Phase2Step) error {
	if err := model.ValidatePhase2Transition(*step, to); err != nil {
		return err
	}
	*step = to
	ctx.Debugf("phase 2 step: %s", to)
	_ = ctx.Audit.Log("phase2_step", map[string]any{
		"target_user": cfg.TargetUser,
		"step":        string(to),
		"dry_run":     ctx.DryRun,
	})
	return nil
}

func stringField(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return s
}
