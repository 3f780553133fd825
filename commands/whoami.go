package commands

import (
	"fmt"
	"os/user"
)

// currentUser is replaced in tests.
var currentUser = func() (string, error) {
	u, err := user.Current()
	if err != nil {
		return "", err
	}
	return u.Username, nil
}

// Whoami implements the POSIX whoami command.
func Whoami(p Proc) int {
	cmd := &SimpleCommand{
		Use:   "whoami [OPTION]...",
		Short: "Print the current user.",

		// Never bail, even if args are bad.
		NeverBail: true,
	}

	return cmd.Run(p, func() int {
		name, err := currentUser()
		if err != nil {
			if name = p.Getenv("USER"); name == "" {
				fmt.Fprintf(p.Stderr(), "whoami: %v\n", err)
				return 1
			}
		}
		fmt.Fprintln(p.Stdout(), name)
		return 0
	})
}

var _ CommandFunc = Whoami

func init() {
	mustAddCmd("whoami", Whoami)
}
