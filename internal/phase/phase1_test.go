package phase

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkendrick/vaultshift/internal/model"
	"github.com/mkendrick/vaultshift/internal/vault"
)

func testConfig() *model.Config {
	cfg := &model.Config{
		Enterprise: "corp",
		TargetUser: "legacy@corp.com",
		AdminUser:  "vaultadmin@corp.com",
		NewUser: model.NewUserConfig{
			Email: "legacy.new@corp.com",
			Name:  "Legacy New",
			Node:  "Engineering",
		},
	}
	cfg.ApplyDefaults()
	return cfg
}

func testContext(conf Confirmer) *RunContext {
	return &RunContext{Out: io.Discard, Confirmer: conf}
}

func TestPhase1_HappyPath(t *testing.T) {
	runner := newFakeRunner()
	runner.results["get-user-detail"] = userDetailPayload()
	conf := &scriptConfirmer{}
	ctx := testContext(conf)

	snap, err := RunPhase1(ctx, runner, testConfig())
	require.NoError(t, err)

	// Capture happens before the lock; lock before the transfer.
	var order []string
	for _, c := range runner.calls {
		order = append(order, c.Sub)
	}
	require.Equal(t, []string{"get-user-detail", "lock-user", "transfer-user-vault"}, order)

	lock := runner.callsFor("lock-user")[0]
	assert.True(t, lock.HasArg("legacy@corp.com"))

	transfer := runner.callsFor("transfer-user-vault")[0]
	assert.True(t, transfer.HasArg("legacy@corp.com"))
	assert.True(t, transfer.HasArg("vaultadmin@corp.com"))

	require.Len(t, snap.Roles, 1)
	require.Len(t, snap.Teams, 1)
	assert.Equal(t, 0, ctx.Failures())

	// Both mutating steps were confirmation-gated.
	assert.Len(t, conf.confirmTitles, 2)
}

func TestPhase1_LockFailureNeverTransfers(t *testing.T) {
	runner := newFakeRunner()
	runner.results["get-user-detail"] = userDetailPayload()
	runner.fail["lock-user"] = &vault.CommandError{Subcommand: "lock-user", ExitCode: 1, Stderr: "permission denied"}
	ctx := testContext(&scriptConfirmer{})

	_, err := RunPhase1(ctx, runner, testConfig())
	require.Error(t, err)

	var fatal *FatalError
	require.True(t, errors.As(err, &fatal))
	assert.Equal(t, "lock", fatal.Step)
	assert.NotEmpty(t, fatal.Guidance)

	assert.Equal(t, 0, runner.count("transfer-user-vault"), "transfer must never be issued after a failed lock")
}

func TestPhase1_TransferFailureIsFatalWithGuidance(t *testing.T) {
	runner := newFakeRunner()
	runner.results["get-user-detail"] = userDetailPayload()
	runner.fail["transfer-user-vault"] = &vault.CommandError{Subcommand: "transfer-user-vault", ExitCode: 1, Stderr: "timeout"}
	ctx := testContext(&scriptConfirmer{})

	_, err := RunPhase1(ctx, runner, testConfig())
	require.Error(t, err)

	var fatal *FatalError
	require.True(t, errors.As(err, &fatal))
	assert.Equal(t, "transfer", fatal.Step)
	assert.Contains(t, fatal.Guidance, "LOCKED")
	assert.Contains(t, fatal.Guidance, "Do NOT retry")
}

func TestPhase1_CaptureFailureDoesNotBlockLockAndTransfer(t *testing.T) {
	runner := newFakeRunner()
	runner.fail["get-user-detail"] = &vault.CommandError{Subcommand: "get-user-detail", ExitCode: 1, Stderr: "api error"}
	ctx := testContext(&scriptConfirmer{})

	snap, err := RunPhase1(ctx, runner, testConfig())
	require.NoError(t, err)

	assert.True(t, snap.Empty())
	assert.Equal(t, 1, runner.count("lock-user"))
	assert.Equal(t, 1, runner.count("transfer-user-vault"))
}

func TestPhase1_OperatorDeclineAborts(t *testing.T) {
	runner := newFakeRunner()
	runner.results["get-user-detail"] = userDetailPayload()
	conf := &scriptConfirmer{deny: []string{"Lock account"}}
	ctx := testContext(conf)

	_, err := RunPhase1(ctx, runner, testConfig())
	require.ErrorIs(t, err, ErrAborted)
	assert.Empty(t, runner.mutatingCalls())
}

func TestPhase1_DeclineTransferAfterLock(t *testing.T) {
	runner := newFakeRunner()
	runner.results["get-user-detail"] = userDetailPayload()
	conf := &scriptConfirmer{deny: []string{"Transfer vault"}}
	ctx := testContext(conf)

	_, err := RunPhase1(ctx, runner, testConfig())
	require.ErrorIs(t, err, ErrAborted)
	assert.Equal(t, 1, runner.count("lock-user"))
	assert.Equal(t, 0, runner.count("transfer-user-vault"))
}

func TestPhase1_DryRunMakesNoMutatingCalls(t *testing.T) {
	runner := newFakeRunner()
	runner.results["get-user-detail"] = userDetailPayload()
	ctx := testContext(&scriptConfirmer{})
	ctx.DryRun = true

	snap, err := RunPhase1(ctx, runner, testConfig())
	require.NoError(t, err)

	assert.Empty(t, runner.mutatingCalls())
	assert.Len(t, snap.Roles, 1, "capture is read-only and still runs in dry-run")
}
