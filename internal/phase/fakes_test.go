package phase

import (
	"strings"
	"sync"

	"github.com/mkendrick/vaultshift/internal/vault"
)

// fakeCall records one invocation against the fake runner.
type fakeCall struct {
	Sub        string
	Args       []string
	Structured bool
}

func (c fakeCall) HasArg(want string) bool {
	for _, a := range c.Args {
		if a == want {
			return true
		}
	}
	return false
}

// fakeRunner is a scripted stand-in for the external CLI. Results and
// failures are keyed by subcommand; anything unscripted succeeds with
// plain-text output.
type fakeRunner struct {
	mu      sync.Mutex
	calls   []fakeCall
	results map[string]vault.Result
	fail    map[string]error
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{
		results: make(map[string]vault.Result),
		fail:    make(map[string]error),
	}
}

func (f *fakeRunner) Execute(sub string, args []string, structured bool) (vault.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fakeCall{Sub: sub, Args: append([]string(nil), args...), Structured: structured})

	if err := f.fail[sub]; err != nil {
		return vault.Result{Subcommand: sub, ExitCode: 1}, err
	}
	if res, ok := f.results[sub]; ok {
		res.Subcommand = sub
		return res, nil
	}
	return vault.Result{Subcommand: sub, Output: "ok\n"}, nil
}

func (f *fakeRunner) callsFor(sub string) []fakeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []fakeCall
	for _, c := range f.calls {
		if c.Sub == sub {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeRunner) count(sub string) int {
	return len(f.callsFor(sub))
}

// mutatingSubcommands are the external operations that change remote state.
var mutatingSubcommands = map[string]bool{
	"lock-user":              true,
	"transfer-user-vault":    true,
	"create-or-invite-user":  true,
	"assign-role":            true,
	"assign-team-membership": true,
	"reassign-ownership":     true,
	"delete-container":       true,
	"share-record-one-time":  true,
}

func (f *fakeRunner) mutatingCalls() []fakeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []fakeCall
	for _, c := range f.calls {
		if mutatingSubcommands[c.Sub] {
			out = append(out, c)
		}
	}
	return out
}

// scriptConfirmer answers confirmation gates. Titles containing any deny
// substring are declined; Select always returns the scripted selection and
// never falls back to a sole candidate.
type scriptConfirmer struct {
	deny      []string
	selection string

	confirmTitles []string
	selectTitles  []string
	selectOptions [][]Option
}

func (s *scriptConfirmer) Confirm(title, description string) (bool, error) {
	s.confirmTitles = append(s.confirmTitles, title)
	for _, d := range s.deny {
		if strings.Contains(title, d) {
			return false, nil
		}
	}
	return true, nil
}

func (s *scriptConfirmer) Select(title string, options []Option) (string, error) {
	s.selectTitles = append(s.selectTitles, title)
	s.selectOptions = append(s.selectOptions, options)
	return s.selection, nil
}

// containerListing is a canonical two-container listing payload.
func containerListing() vault.Result {
	return vault.Result{Parsed: map[string]any{
		"containers": []any{
			map[string]any{"uid": "C-1", "name": "Old Shares"},
			map[string]any{"uid": "C-2", "name": "Transferred from legacy@corp.com"},
		},
	}}
}

func userDetailPayload() vault.Result {
	return vault.Result{Parsed: map[string]any{
		"roles": []any{
			map[string]any{"role_id": "Role1", "name": "Role1"},
		},
		"teams": []any{
			map[string]any{"team_uid": "TeamA", "name": "TeamA"},
		},
	}}
}
