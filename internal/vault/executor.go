// Package vault wraps the external vault management CLI as a subprocess.
// The rest of the system depends only on this contract: exit code zero is
// success, structured output is requested via an explicit format flag, and
// everything else is opaque to the orchestration core.
package vault

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/mkendrick/vaultshift/internal/events"
)

// Result is the transient outcome of one external invocation. Parsed is nil
// unless structured output was requested, the subcommand supports it, and
// the payload decoded cleanly; callers that need structured fields must
// handle the degraded (nil) case explicitly.
type Result struct {
	Subcommand string
	ExitCode   int
	Output     string
	Parsed     map[string]any
}

// CommandError reports a non-zero exit from the wrapped CLI. Whether it is
// fatal or recoverable is the caller's decision, per step.
type CommandError struct {
	Subcommand string
	ExitCode   int
	Stderr     string
}

func (e *CommandError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" {
		msg = "no stderr output"
	}
	return fmt.Sprintf("vault %s: exit %d: %s", e.Subcommand, e.ExitCode, msg)
}

// Runner is the seam between the phase executors and the external CLI.
// Tests substitute a recording fake.
type Runner interface {
	Execute(subcommand string, args []string, structured bool) (Result, error)
}

// CLI invokes the external vault tool, one subprocess per call. No retries
// happen at this layer; re-running a phase is the caller-level policy.
type CLI struct {
	Path  string
	Audit *events.Logger
}

func NewCLI(path string, audit *events.Logger) *CLI {
	return &CLI{Path: path, Audit: audit}
}

func (c *CLI) Execute(subcommand string, args []string, structured bool) (Result, error) {
	argv := make([]string, 0, len(args)+2)
	argv = append(argv, subcommand)
	argv = append(argv, args...)

	wantJSON := structured && Kind(subcommand) == OutputJSON
	if wantJSON && !hasFormatFlag(args) {
		argv = append(argv, FormatFlag)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.Command(c.Path, argv...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start)

	res := Result{
		Subcommand: subcommand,
		Output:     stdout.String(),
	}

	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
		} else {
			res.ExitCode = -1
		}
	}

	c.audit(subcommand, argv, res.ExitCode, stderr.String(), elapsed)

	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			return res, &CommandError{
				Subcommand: subcommand,
				ExitCode:   res.ExitCode,
				Stderr:     stderr.String(),
			}
		}
		return res, fmt.Errorf("invoke %s %s: %w", c.Path, subcommand, runErr)
	}

	if wantJSON {
		var parsed map[string]any
		if err := json.Unmarshal(stdout.Bytes(), &parsed); err == nil {
			res.Parsed = parsed
		}
		// Parse failure degrades to raw text; the caller decides.
	}

	return res, nil
}

func (c *CLI) audit(subcommand string, argv []string, exitCode int, stderr string, elapsed time.Duration) {
	details := map[string]any{
		"subcommand": subcommand,
		"argv":       append([]string{c.Path}, argv...),
		"exit_code":  exitCode,
		"elapsed_ms": elapsed.Milliseconds(),
	}
	if s := strings.TrimSpace(stderr); s != "" {
		details["stderr"] = s
	}
	_ = c.Audit.Log("vault_exec", details)
}

func hasFormatFlag(args []string) bool {
	for _, a := range args {
		if a == FormatFlag || strings.HasPrefix(a, "--format=") || a == "--format" {
			return true
		}
	}
	return false
}
