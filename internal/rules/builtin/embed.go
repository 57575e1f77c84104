// Package builtin embeds the YAML rule definitions shipped with pyguard.
package builtin

import "embed"

//go:embed *.yaml
var files embed.FS

// FS returns the embedded filesystem holding the built-in rule files.
func FS() embed.FS {
	return files
}
