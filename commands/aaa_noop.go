package commands

import (
	"fmt"
)

// No-op commands.
type NoOpCommand struct {
	Name     string
	Use      string
	Short    string
	Stdout   string
	ExitCode int
}

// Convert the no-op command description to a functioning command.
func (c *NoOpCommand) ToCommand() CommandFunc {
	return func(p Proc) int {
		cmd := &SimpleCommand{
			Use:   c.Use,
			Short: c.Short,
			// Never bail, even if args are bad.
			NeverBail: true,
		}

		return cmd.Run(p, func() int {
			if c.Stdout != "" {
				fmt.Fprintln(p.Stdout(), c.Stdout)
			}

			return c.ExitCode
		})
	}
}

var noOpCommands = []NoOpCommand{
	{
		Name:  "true",
		Use:   "true [ignored command line arguments]",
		Short: "Do nothing, successfully.",
	},
	{
		Name:     "false",
		Use:      "false [ignored command line arguments]",
		Short:    "Do nothing, unsuccessfully.",
		ExitCode: 1,
	},
	{
		Name:  ":",
		Use:   ": [arguments]",
		Short: "Null command, always succeeds.",
	},
}

func init() {
	for i := range noOpCommands {
		cmd := noOpCommands[i]
		mustAddCmd(cmd.Name, cmd.ToCommand())
	}
}
