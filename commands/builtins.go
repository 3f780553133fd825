package commands

import (
	"fmt"
	"text/tabwriter"
)

// Builtins lists the commands compiled into the shell binary.
func Builtins(p Proc) int {
	cmd := &SimpleCommand{
		Use:   "builtins [--color=WHEN]",
		Short: "List the commands built into the shell.",
	}

	var printer ColorPrinter
	printer.Init(cmd.Flags(), p)

	return cmd.Run(p, func() int {
		w := tabwriter.NewWriter(p.Stdout(), 0, 8, 2, ' ', 0)
		for _, name := range ListBuiltinCommands() {
			fmt.Fprintf(w, "%s\t%s\n", printer.Sprintf(ColorBoldCyan, "%s", name), usageOf(name))
		}
		w.Flush()
		return 0
	})
}

// usage holds the one line description of each builtin.
var usage = map[string]string{
	"builtins": "list the commands built into the shell",
	"echo":     "display a line of text",
	"env":      "print the environment",
	"false":    "do nothing, unsuccessfully",
	"hostname": "print the system hostname",
	"pwd":      "print the working directory",
	"true":     "do nothing, successfully",
	"uname":    "print system information",
	"wc":       "count lines, words and bytes",
	"whoami":   "print the current user",
	":":        "null command",
}

func usageOf(name string) string {
	if u, ok := usage[name]; ok {
		return u
	}
	return "-"
}

var _ CommandFunc = Builtins

func init() {
	mustAddCmd("builtins", Builtins)
}
