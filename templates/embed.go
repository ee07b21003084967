// Package templates embeds the starter configuration file.
package templates

import "embed"

//go:embed vaultshift.yaml
var FS embed.FS
