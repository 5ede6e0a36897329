// Package main implements the pyrefine CLI. It asks a language model to
// annotate, document and rename the functions of Python files and applies
// the answer to the source.
package main

import (
	"os"

	"github.com/l3aro/pyrefine/cmd/pyrefine/commands"
)

var (
	version = "dev"
)

func main() {
	commands.RootCmd.SetVersionTemplate(`pyrefine version {{.Version}}
`)
	commands.RootCmd.Version = version

	if err := commands.RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
