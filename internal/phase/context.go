// Package phase implements the two-phase migration engine: phase 1 secures
// the target account and transfers its vault, phase 2 re-provisions a
// replacement account and returns the content. All run-scoped state is
// threaded through an explicit RunContext; there is no package-level
// mutable state.
package phase

import (
	"errors"
	"fmt"
	"io"

	"github.com/mkendrick/vaultshift/internal/events"
	"github.com/mkendrick/vaultshift/internal/ui"
)

// ErrAborted is returned when the operator declines a confirmation gate.
var ErrAborted = errors.New("aborted by operator")

// Option is one selectable candidate in an operator choice.
type Option struct {
	Value string
	Label string
}

// Confirmer is the operator-interaction seam. Every mutating step asks for
// confirmation before acting, so the opportunity to abort is always
// pre-action. The automated and interactive entry points supply a
// prompt-based implementation; tests supply a scripted one.
type Confirmer interface {
	// Confirm asks a yes/no question. false aborts the pending step.
	Confirm(title, description string) (bool, error)
	// Select asks the operator to pick one option; an empty value means
	// none was chosen.
	Select(title string, options []Option) (string, error)
}

// FatalError stops the run immediately. Guidance states exactly what state
// the external system is in so the operator can decide on manual recovery.
type FatalError struct {
	Step     string
	Guidance string
	Err      error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// RunContext carries run-scoped state through every component call: the
// dry-run flag, the aggregate failure counter, the audit log, and the
// operator-interaction seam.
type RunContext struct {
	DryRun    bool
	Verbose   bool
	Out       io.Writer
	Confirmer Confirmer
	Audit     *events.Logger

	failures int
}

func (c *RunContext) Printf(format string, args ...any) {
	if c.Out != nil {
		fmt.Fprintf(c.Out, format+"\n", args...)
	}
}

func (c *RunContext) Debugf(format string, args ...any) {
	if c.Verbose && c.Out != nil {
		fmt.Fprintln(c.Out, ui.Dim(fmt.Sprintf(format, args...)))
	}
}

func (c *RunContext) Warnf(format string, args ...any) {
	if c.Out != nil {
		fmt.Fprintln(c.Out, ui.Warn("WARNING: "+fmt.Sprintf(format, args...)))
	}
}

// Fail records a recoverable step failure. The run continues; the final
// exit status reflects the counter.
func (c *RunContext) Fail(step string, err error) {
	c.failures++
	if c.Out != nil {
		fmt.Fprintln(c.Out, ui.Danger(fmt.Sprintf("step %s failed: %v (continuing)", step, err)))
	}
	_ = c.Audit.Log("step_failed", map[string]any{
		"step":  step,
		"error": err.Error(),
	})
}

func (c *RunContext) Failures() int {
	return c.failures
}

func (c *RunContext) confirm(title, description string) (bool, error) {
	if c.Confirmer == nil {
		return false, fmt.Errorf("no confirmer wired for %q", title)
	}
	ok, err := c.Confirmer.Confirm(title, description)
	if err != nil {
		return false, fmt.Errorf("confirm %q: %w", title, err)
	}
	return ok, nil
}
