// Package console provides the terminal implementation of the operator
// interaction seam, plus the interactive menu. Both the `run` and
// `interactive` subcommands drive the same engine; the only difference is
// how a session starts.
package console

import (
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/huh"

	"github.com/mkendrick/vaultshift/internal/checkpoint"
	"github.com/mkendrick/vaultshift/internal/events"
	"github.com/mkendrick/vaultshift/internal/model"
	"github.com/mkendrick/vaultshift/internal/orchestrator"
	"github.com/mkendrick/vaultshift/internal/phase"
	"github.com/mkendrick/vaultshift/internal/status"
	"github.com/mkendrick/vaultshift/internal/ui"
	"github.com/mkendrick/vaultshift/internal/vault"
)

// Prompter asks the operator through terminal forms. Pressing Esc or Ctrl+C
// counts as a decline, never as consent.
type Prompter struct{}

func (Prompter) Confirm(title, description string) (bool, error) {
	var ok bool
	form := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().
			Title(title).
			Description(description).
			Affirmative("Proceed").
			Negative("Abort").
			Value(&ok),
	))
	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return false, nil
		}
		return false, fmt.Errorf("prompt: %w", err)
	}
	return ok, nil
}

func (Prompter) Select(title string, options []phase.Option) (string, error) {
	opts := make([]huh.Option[string], 0, len(options)+1)
	for _, o := range options {
		opts = append(opts, huh.NewOption(o.Label, o.Value))
	}
	opts = append(opts, huh.NewOption("None of these (abort)", ""))

	var choice string
	form := huh.NewForm(huh.NewGroup(
		huh.NewSelect[string]().
			Title(title).
			Options(opts...).
			Value(&choice),
	))
	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return "", nil
		}
		return "", fmt.Errorf("prompt: %w", err)
	}
	return choice, nil
}

// Menu is the interactive session. It loops until the operator quits.
// Confirmer defaults to the terminal Prompter when unset.
type Menu struct {
	Config    *model.Config
	Store     *checkpoint.Store
	Runner    vault.Runner
	Audit     *events.Logger
	Out       io.Writer
	Confirmer phase.Confirmer
}

func (m *Menu) confirmer() phase.Confirmer {
	if m.Confirmer != nil {
		return m.Confirmer
	}
	return Prompter{}
}

const (
	actionRun    = "run"
	actionDryRun = "dry-run"
	actionStatus = "status"
	actionReset  = "reset"
	actionQuit   = "quit"
)

func (m *Menu) Run() error {
	fmt.Fprintln(m.Out, ui.Header("vaultshift interactive session"))
	fmt.Fprintf(m.Out, "target %s, admin %s, enterprise %s\n",
		m.Config.TargetUser, m.Config.AdminUser, m.Config.Enterprise)
	if p := m.Audit.Path(); p != "" {
		fmt.Fprintln(m.Out, ui.Dim("audit log: "+p))
	}
	fmt.Fprintln(m.Out)

	for {
		action, err := m.pickAction()
		if err != nil {
			return err
		}

		switch action {
		case actionRun, actionDryRun:
			if err := m.runMigration(action == actionDryRun); err != nil {
				var fatal *phase.FatalError
				if errors.As(err, &fatal) {
					fmt.Fprintln(m.Out, ui.Danger("FATAL: "+fatal.Error()))
					fmt.Fprintln(m.Out, ui.Warn(fatal.Guidance))
				} else {
					fmt.Fprintln(m.Out, ui.Danger(err.Error()))
				}
			}
		case actionStatus:
			if err := status.Render(m.Out, m.Store, m.Config.TargetUser, false); err != nil {
				fmt.Fprintln(m.Out, ui.Danger(err.Error()))
			}
		case actionReset:
			m.reset()
		case actionQuit:
			return nil
		}
		fmt.Fprintln(m.Out)
	}
}

func (m *Menu) pickAction() (string, error) {
	var choice string
	form := huh.NewForm(huh.NewGroup(
		huh.NewSelect[string]().
			Title("What next?").
			Options(
				huh.NewOption("Run migration", actionRun),
				huh.NewOption("Run migration (dry-run)", actionDryRun),
				huh.NewOption("Show status", actionStatus),
				huh.NewOption("Reset checkpoint", actionReset),
				huh.NewOption("Quit", actionQuit),
			).
			Value(&choice),
	))
	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return actionQuit, nil
		}
		return "", fmt.Errorf("menu: %w", err)
	}
	return choice, nil
}

func (m *Menu) runMigration(dryRun bool) error {
	// The config flag is as binding here as on the run subcommand; the menu
	// choice can only add dry-run, never remove it.
	ctx := &phase.RunContext{
		DryRun:    dryRun || m.Config.Options.DryRun,
		Out:       m.Out,
		Confirmer: m.confirmer(),
		Audit:     m.Audit,
	}
	o := &orchestrator.Orchestrator{
		Runner: m.Runner,
		Store:  m.Store,
		Config: m.Config,
	}
	err := o.Run(ctx)
	if err == nil && ctx.Failures() > 0 {
		fmt.Fprintln(m.Out, ui.Warn(fmt.Sprintf("%d step(s) failed; see output above", ctx.Failures())))
	}
	if err == nil && ctx.Failures() == 0 {
		fmt.Fprintln(m.Out, ui.Success("run finished"))
	}
	return err
}

// reset deletes the checkpoint after an explicit confirmation. It never runs
// automatically; this is the only way a completed record goes away.
func (m *Menu) reset() {
	ok, err := m.confirmer().Confirm(
		"Delete the checkpoint for "+m.Config.TargetUser+"?",
		"The next run will start from phase 1 and re-issue the destructive lock and transfer steps.",
	)
	if err != nil || !ok {
		return
	}
	if err := m.Store.Delete(m.Config.TargetUser); err != nil {
		fmt.Fprintln(m.Out, ui.Danger(err.Error()))
		return
	}
	_ = m.Audit.Log("checkpoint_reset", map[string]any{"target_user": m.Config.TargetUser})
	fmt.Fprintln(m.Out, ui.Success("checkpoint deleted"))
}
