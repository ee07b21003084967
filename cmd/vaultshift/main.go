package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mkendrick/vaultshift/internal/checkpoint"
	"github.com/mkendrick/vaultshift/internal/console"
	"github.com/mkendrick/vaultshift/internal/events"
	"github.com/mkendrick/vaultshift/internal/model"
	"github.com/mkendrick/vaultshift/internal/orchestrator"
	"github.com/mkendrick/vaultshift/internal/phase"
	"github.com/mkendrick/vaultshift/internal/setup"
	"github.com/mkendrick/vaultshift/internal/status"
	"github.com/mkendrick/vaultshift/internal/ui"
	"github.com/mkendrick/vaultshift/internal/vault"
)

const version = "1.0.0"

const defaultConfigPath = "vaultshift.yaml"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "init":
		runInit(os.Args[2:])
	case "run":
		runMigration(os.Args[2:])
	case "status":
		runStatus(os.Args[2:])
	case "reset":
		runReset(os.Args[2:])
	case "interactive":
		runInteractive(os.Args[2:])
	case "version":
		fmt.Printf("vaultshift %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprint(os.Stderr, `vaultshift - two-phase vault account migration

usage: vaultshift <command> [options]

commands:
  init [path]       write a starter config (default vaultshift.yaml)
  run               execute or resume the migration
  status            show migration progress for the configured target
  reset             delete the checkpoint and start over
  interactive       menu-driven session over the same engine
  version           print the version
  help              show this message

run options:
  --config <path>   config file (default vaultshift.yaml)
  --dry-run         report intended actions without executing them
  --verbose         show per-step detail
  --no-recursive    do not recurse into nested containers when re-assigning

status options:
  --config <path>   config file (default vaultshift.yaml)
  --json            emit a JSON document instead of text

exit codes:
  0  success
  1  fatal error, run aborted
  2  finished with one or more failed recoverable steps
`)
}

func runInit(args []string) {
	path := defaultConfigPath
	if len(args) > 0 {
		path = args[0]
	}
	if err := setup.Run(path); err != nil {
		fmt.Fprintf(os.Stderr, "init: %v\n", err)
		os.Exit(1)
	}
	abs, _ := filepath.Abs(path)
	fmt.Printf("Wrote starter config to %s\nEdit the identity fields, then run 'vaultshift run'.\n", abs)
}

func runMigration(args []string) {
	configPath := defaultConfigPath
	var dryRun, verbose, noRecursive bool
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--config":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "--config requires a value")
				os.Exit(1)
			}
			i++
			configPath = args[i]
		case "--dry-run":
			dryRun = true
		case "--verbose":
			verbose = true
		case "--no-recursive":
			noRecursive = true
		default:
			fmt.Fprintf(os.Stderr, "unknown flag: %s\nusage: vaultshift run [--config <path>] [--dry-run] [--verbose] [--no-recursive]\n", args[i])
			os.Exit(1)
		}
	}

	cfg := loadConfig(configPath)
	if dryRun {
		cfg.Options.DryRun = true
	}
	if noRecursive {
		cfg.Options.NoRecursive = true
	}
	if cfg.Logging.Level == "debug" {
		verbose = true
	}

	audit := openAudit(cfg)
	defer audit.Close()

	ctx := &phase.RunContext{
		DryRun:    cfg.Options.DryRun,
		Verbose:   verbose,
		Out:       os.Stdout,
		Confirmer: console.Prompter{},
		Audit:     audit,
	}
	if p := audit.Path(); p != "" {
		ctx.Debugf("audit log: %s", p)
	}
	o := newOrchestrator(cfg, audit)

	if err := o.Run(ctx); err != nil {
		reportFatal(err)
		os.Exit(1)
	}
	if n := ctx.Failures(); n > 0 {
		fmt.Fprintln(os.Stderr, ui.Warn(fmt.Sprintf("finished with %d failed step(s); re-run to retry or correct manually", n)))
		os.Exit(2)
	}
}

func runStatus(args []string) {
	configPath := defaultConfigPath
	jsonOutput := false
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--config":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "--config requires a value")
				os.Exit(1)
			}
			i++
			configPath = args[i]
		case "--json":
			jsonOutput = true
		default:
			fmt.Fprintf(os.Stderr, "unknown flag: %s\nusage: vaultshift status [--config <path>] [--json]\n", args[i])
			os.Exit(1)
		}
	}

	cfg := loadConfig(configPath)
	store := checkpoint.NewStore(cfg.Checkpoint.Dir)
	if err := status.Render(os.Stdout, store, cfg.TargetUser, jsonOutput); err != nil {
		fmt.Fprintf(os.Stderr, "status: %v\n", err)
		os.Exit(1)
	}
}

func runReset(args []string) {
	configPath := defaultConfigPath
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--config":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "--config requires a value")
				os.Exit(1)
			}
			i++
			configPath = args[i]
		default:
			fmt.Fprintf(os.Stderr, "unknown flag: %s\nusage: vaultshift reset [--config <path>]\n", args[i])
			os.Exit(1)
		}
	}

	cfg := loadConfig(configPath)
	store := checkpoint.NewStore(cfg.Checkpoint.Dir)
	if !store.Exists(cfg.TargetUser) {
		fmt.Printf("no checkpoint for %s; nothing to reset\n", cfg.TargetUser)
		return
	}

	ok, err := console.Prompter{}.Confirm(
		"Delete the checkpoint for "+cfg.TargetUser+"?",
		"The next run will start from phase 1 and re-issue the destructive lock and transfer steps.",
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "reset: %v\n", err)
		os.Exit(1)
	}
	if !ok {
		fmt.Println("reset cancelled")
		return
	}

	if err := store.Delete(cfg.TargetUser); err != nil {
		fmt.Fprintf(os.Stderr, "reset: %v\n", err)
		os.Exit(1)
	}

	audit := openAudit(cfg)
	defer audit.Close()
	_ = audit.Log("checkpoint_reset", map[string]any{"target_user": cfg.TargetUser})
	fmt.Printf("checkpoint for %s deleted\n", cfg.TargetUser)
}

func runInteractive(args []string) {
	configPath := defaultConfigPath
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--config":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "--config requires a value")
				os.Exit(1)
			}
			i++
			configPath = args[i]
		default:
			fmt.Fprintf(os.Stderr, "unknown flag: %s\nusage: vaultshift interactive [--config <path>]\n", args[i])
			os.Exit(1)
		}
	}

	cfg := loadConfig(configPath)
	audit := openAudit(cfg)
	defer audit.Close()

	o := newOrchestrator(cfg, audit)
	menu := &console.Menu{
		Config: cfg,
		Store:  o.Store,
		Runner: o.Runner,
		Audit:  audit,
		Out:    os.Stdout,
	}
	if err := menu.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "interactive: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(path string) *model.Config {
	cfg, err := model.LoadConfig(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		if os.IsNotExist(errors.Unwrap(err)) {
			fmt.Fprintln(os.Stderr, "run 'vaultshift init' to create a starter config")
		}
		os.Exit(1)
	}
	return cfg
}

func newOrchestrator(cfg *model.Config, audit *events.Logger) *orchestrator.Orchestrator {
	return &orchestrator.Orchestrator{
		Runner: vault.NewCLI(cfg.CLI.Path, audit),
		Store:  checkpoint.NewStore(cfg.Checkpoint.Dir),
		Config: cfg,
	}
}

// openAudit places the audit log next to the checkpoint directory so the
// full history of a migration lives in one place.
func openAudit(cfg *model.Config) *events.Logger {
	logPath := filepath.Join(filepath.Dir(cfg.Checkpoint.Dir), "logs", "audit.jsonl")
	audit, err := events.NewLogger(logPath, events.DefaultMaxLogSize)
	if err != nil {
		fmt.Fprintln(os.Stderr, ui.Warn(fmt.Sprintf("audit log unavailable (%v); continuing without it", err)))
		return nil
	}
	return audit
}

func reportFatal(err error) {
	var fatal *phase.FatalError
	if errors.As(err, &fatal) {
		fmt.Fprintln(os.Stderr, ui.Danger("FATAL ("+fatal.Step+"): "+fatal.Error()))
		fmt.Fprintln(os.Stderr, ui.Warn(fatal.Guidance))
		return
	}
	fmt.Fprintln(os.Stderr, ui.Danger(err.Error()))
}
