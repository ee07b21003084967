package vault

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeStubCLI writes a shell script that stands in for the external vault
// tool. It records its arguments and responds per subcommand.
func writeStubCLI(t *testing.T) (cliPath, argsPath string) {
	t.Helper()
	dir := t.TempDir()
	cliPath = filepath.Join(dir, "vault")
	argsPath = filepath.Join(dir, "args.txt")

	script := `#!/bin/sh
dir="$(cd "$(dirname "$0")" && pwd)"
printf '%s\n' "$@" > "$dir/args.txt"
case "$1" in
  get-user-detail)
    echo '{"user":"legacy@corp.com","roles":[{"role_id":"r1","name":"Role1"}]}'
    ;;
  whoami)
    echo 'My Vault Session'
    ;;
  transfer-user-vault)
    echo 'transfer denied' >&2
    exit 3
    ;;
  *)
    echo 'ok'
    ;;
esac
`
	require.NoError(t, os.WriteFile(cliPath, []byte(script), 0755))
	return cliPath, argsPath
}

func recordedArgs(t *testing.T, argsPath string) []string {
	t.Helper()
	data, err := os.ReadFile(argsPath)
	require.NoError(t, err)
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

func TestExecute_Success(t *testing.T) {
	cliPath, _ := writeStubCLI(t)
	cli := NewCLI(cliPath, nil)

	res, err := cli.Execute("lock-user", []string{"--user", "legacy@corp.com"}, false)
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, "ok\n", res.Output)
	assert.Nil(t, res.Parsed)
}

func TestExecute_NonZeroExit(t *testing.T) {
	cliPath, _ := writeStubCLI(t)
	cli := NewCLI(cliPath, nil)

	res, err := cli.Execute("transfer-user-vault", []string{"--from", "a", "--to", "b"}, false)
	require.Error(t, err)

	var cmdErr *CommandError
	require.True(t, errors.As(err, &cmdErr))
	assert.Equal(t, 3, cmdErr.ExitCode)
	assert.Contains(t, cmdErr.Stderr, "transfer denied")
	assert.Equal(t, "transfer-user-vault", cmdErr.Subcommand)
	assert.Equal(t, 3, res.ExitCode)
}

func TestExecute_StructuredAppendsFormatFlag(t *testing.T) {
	cliPath, argsPath := writeStubCLI(t)
	cli := NewCLI(cliPath, nil)

	res, err := cli.Execute("get-user-detail", []string{"--user", "legacy@corp.com"}, true)
	require.NoError(t, err)

	args := recordedArgs(t, argsPath)
	assert.Contains(t, args, FormatFlag)

	require.NotNil(t, res.Parsed)
	assert.Equal(t, "legacy@corp.com", res.Parsed["user"])
}

func TestExecute_StructuredFlagNotDuplicated(t *testing.T) {
	cliPath, argsPath := writeStubCLI(t)
	cli := NewCLI(cliPath, nil)

	_, err := cli.Execute("get-user-detail", []string{"--user", "x", FormatFlag}, true)
	require.NoError(t, err)

	args := recordedArgs(t, argsPath)
	count := 0
	for _, a := range args {
		if a == FormatFlag {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestExecute_StructuredIgnoredForTextSubcommand(t *testing.T) {
	cliPath, argsPath := writeStubCLI(t)
	cli := NewCLI(cliPath, nil)

	res, err := cli.Execute("lock-user", []string{"--user", "x"}, true)
	require.NoError(t, err)
	assert.Nil(t, res.Parsed)

	args := recordedArgs(t, argsPath)
	assert.NotContains(t, args, FormatFlag)
}

func TestExecute_ParseFailureDegradesToText(t *testing.T) {
	cliPath, _ := writeStubCLI(t)
	cli := NewCLI(cliPath, nil)

	// whoami is declared JSON-capable, but the stub emits plain text.
	res, err := cli.Execute("whoami", nil, true)
	require.NoError(t, err)
	assert.Nil(t, res.Parsed)
	assert.Contains(t, res.Output, "My Vault Session")
}

func TestExecute_MissingBinary(t *testing.T) {
	cli := NewCLI(filepath.Join(t.TempDir(), "does-not-exist"), nil)

	_, err := cli.Execute("whoami", nil, false)
	require.Error(t, err)

	var cmdErr *CommandError
	assert.False(t, errors.As(err, &cmdErr), "spawn failure is not a CommandError")
}

func TestKind(t *testing.T) {
	assert.Equal(t, OutputJSON, Kind("get-user-detail"))
	assert.Equal(t, OutputJSON, Kind("list-shared-containers"))
	assert.Equal(t, OutputText, Kind("lock-user"))
	assert.Equal(t, OutputText, Kind("no-such-subcommand"))
}
