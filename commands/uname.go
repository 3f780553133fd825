package commands

import (
	"fmt"
)

// Uname implements the POSIX command by the same name.
func Uname(p Proc) int {
	cmd := &SimpleCommand{
		Use:   "uname [OPTIONS...]",
		Short: "Display system information.",
	}

	opts := cmd.Flags()
	showAll := opts.BoolLong("all", 'a', "print all information")
	showKernelName := opts.BoolLong("kernel-name", 's', "print the kernel name")
	showNodename := opts.BoolLong("nodename", 'n', "print the network node name")
	showRelease := opts.BoolLong("kernel-release", 'r', "print the kernel release")
	showVersion := opts.BoolLong("kernel-version", 'v', "print the kernel version")
	showMachine := opts.BoolLong("machine", 'm', "print the machine name")

	return cmd.RunE(p, func() error {
		uname, err := p.Uname()
		if err != nil {
			return err
		}

		w := p.Stdout()
		anyPrinted := false
		for _, entry := range []struct {
			flag     *bool
			property string
		}{
			{showKernelName, uname.Sysname},
			{showNodename, uname.Nodename},
			{showRelease, uname.Release},
			{showVersion, uname.Version},
			{showMachine, uname.Machine},
		} {
			if *entry.flag || *showAll {
				if anyPrinted {
					fmt.Fprint(w, " ")
				}
				fmt.Fprint(w, entry.property)
				anyPrinted = true
			}
		}

		if !anyPrinted {
			fmt.Fprint(w, uname.Sysname)
		}

		fmt.Fprintln(w)
		return nil
	})
}

var _ CommandFunc = Uname

func init() {
	mustAddCmd("uname", Uname)
}
