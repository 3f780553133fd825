package commands

import (
	"fmt"
)

// Hostname implements the Linux command by the same name.
func Hostname(p Proc) int {
	cmd := &SimpleCommand{
		Use:   "hostname",
		Short: "Get the system's hostname.",
		// Never bail, even if flags are bad.
		NeverBail: true,
	}

	return cmd.Run(p, func() int {
		host, err := p.Hostname()
		if err != nil {
			fmt.Fprintf(p.Stderr(), "hostname: %v\n", err)
			return 1
		}

		fmt.Fprintln(p.Stdout(), host)
		return 0
	})
}

var _ CommandFunc = Hostname

func init() {
	mustAddCmd("hostname", Hostname)
}
