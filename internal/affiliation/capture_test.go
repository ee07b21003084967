package affiliation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkendrick/vaultshift/internal/vault"
)

type stubRunner struct {
	result vault.Result
	err    error
	calls  []string
}

func (s *stubRunner) Execute(subcommand string, args []string, structured bool) (vault.Result, error) {
	s.calls = append(s.calls, subcommand)
	return s.result, s.err
}

func TestCapture_NormalizesPayload(t *testing.T) {
	runner := &stubRunner{result: vault.Result{
		Subcommand: "get-user-detail",
		Parsed: map[string]any{
			"roles": []any{
				map[string]any{"role_id": "R-100", "name": "Admin"},
				map[string]any{"name": "Auditor"}, // no stable ID: name fallback
				map[string]any{"id": float64(42), "display_name": "Billing"},
			},
			"teams": []any{
				map[string]any{"team_uid": "T-7", "name": "Platform"},
			},
		},
	}}

	snap, err := Capture(runner, "legacy@corp.com")
	require.NoError(t, err)

	require.Len(t, snap.Roles, 3)
	assert.Equal(t, "R-100", snap.Roles[0].ID)
	assert.Equal(t, "Admin", snap.Roles[0].Name)
	assert.Equal(t, "Auditor", snap.Roles[1].ID, "identifier falls back to name")
	assert.Equal(t, "42", snap.Roles[2].ID)
	assert.Equal(t, "Billing", snap.Roles[2].Name)

	require.Len(t, snap.Teams, 1)
	assert.Equal(t, "T-7", snap.Teams[0].ID)
}

func TestCapture_CommandFailureYieldsEmptySnapshot(t *testing.T) {
	runner := &stubRunner{err: &vault.CommandError{Subcommand: "get-user-detail", ExitCode: 1, Stderr: "no session"}}

	snap, err := Capture(runner, "legacy@corp.com")
	assert.Error(t, err)
	assert.True(t, snap.Empty())
}

func TestCapture_DegradedOutputYieldsEmptySnapshot(t *testing.T) {
	// Parsed is nil when the CLI emitted something that was not JSON.
	runner := &stubRunner{result: vault.Result{Output: "User: legacy@corp.com\nRoles: Admin\n"}}

	snap, err := Capture(runner, "legacy@corp.com")
	assert.Error(t, err)
	assert.True(t, snap.Empty())
}

func TestCapture_MissingSectionsTolerated(t *testing.T) {
	runner := &stubRunner{result: vault.Result{Parsed: map[string]any{"user": "legacy@corp.com"}}}

	snap, err := Capture(runner, "legacy@corp.com")
	require.NoError(t, err)
	assert.True(t, snap.Empty())
}

func TestCapture_SkipsEntriesWithoutAnyIdentifier(t *testing.T) {
	runner := &stubRunner{result: vault.Result{Parsed: map[string]any{
		"roles": []any{
			map[string]any{"irrelevant": true},
			map[string]any{"role_id": "R-1", "name": "Keeper"},
		},
	}}}

	snap, err := Capture(runner, "legacy@corp.com")
	require.NoError(t, err)
	require.Len(t, snap.Roles, 1)
	assert.Equal(t, "R-1", snap.Roles[0].ID)
}

func TestCapture_IsReadOnly(t *testing.T) {
	runner := &stubRunner{result: vault.Result{Parsed: map[string]any{}}}
	_, _ = Capture(runner, "legacy@corp.com")
	require.Equal(t, []string{"get-user-detail"}, runner.calls)
}
