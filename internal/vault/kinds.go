package vault

// OutputKind declares what a subcommand writes to stdout. The table replaces
// any runtime sniffing of command output: a subcommand either supports the
// structured-output flag or it does not, declared once here.
type OutputKind int

const (
	// OutputText is line-oriented human-readable output.
	OutputText OutputKind = iota
	// OutputJSON means the subcommand accepts the structured-output flag and
	// emits a JSON document.
	OutputJSON
)

// FormatFlag is appended to JSON-capable invocations when the caller
// requests structured output and has not already supplied it.
const FormatFlag = "--format=json"

var outputKinds = map[string]OutputKind{
	"lock-user":              OutputText,
	"transfer-user-vault":    OutputText,
	"get-user-detail":        OutputJSON,
	"create-or-invite-user":  OutputJSON,
	"assign-role":            OutputText,
	"assign-team-membership": OutputText,
	"list-shared-containers": OutputJSON,
	"get-container-detail":   OutputJSON,
	"reassign-ownership":     OutputText,
	"delete-container":       OutputText,
	"share-record-one-time":  OutputJSON,
	"whoami":                 OutputJSON,
}

// Kind returns the declared output kind for a subcommand. Unknown
// subcommands are treated as text.
func Kind(subcommand string) OutputKind {
	return outputKinds[subcommand]
}
