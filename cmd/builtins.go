package cmd

import (
	"fmt"
	"sort"

	"github.com/josephlewis42/jobsh/commands"
	"github.com/josephlewis42/jobsh/core"
	"github.com/spf13/cobra"
)

var builtinsCmd = &cobra.Command{
	Use:   "builtins",
	Short: "Show the builtin commands of the shell.",
	RunE: func(cmd *cobra.Command, args []string) error {
		var builtins []string

		builtins = append(builtins, commands.ListBuiltinCommands()...)

		for cmd := range core.AllBuiltins {
			builtins = append(builtins, "shell:"+cmd)
		}

		sort.Strings(builtins)

		for _, v := range builtins {
			fmt.Fprintln(cmd.OutOrStdout(), v)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(builtinsCmd)
}
