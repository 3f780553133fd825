package main

import (
	"github.com/docker/docker/pkg/reexec"
	"github.com/josephlewis42/jobsh/cmd"
	"github.com/josephlewis42/jobsh/commands"
	"github.com/josephlewis42/jobsh/core/process"
)

func main() {
	// Children started for a builtin run it here and never reach the CLI.
	process.RegisterBuiltins(commands.Default())
	if reexec.Init() {
		return
	}

	cmd.Execute()
}
