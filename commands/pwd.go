package commands

import (
	"fmt"
)

// Pwd implements the UNIX pwd command.
func Pwd(p Proc) int {
	cmd := &SimpleCommand{
		Use:   "pwd",
		Short: "Print the name of the current working directory.",
	}

	return cmd.Run(p, func() int {
		fmt.Fprintln(p.Stdout(), p.Getwd())
		return 0
	})
}

var _ CommandFunc = Pwd

func init() {
	mustAddCmd("pwd", Pwd)
}
