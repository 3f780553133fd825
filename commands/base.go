package commands

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	getopt "github.com/pborman/getopt/v2"
)

type SimpleCommand struct {
	// Use holds a one line usage string
	Use string
	// Short holds a one line description of the command.
	Short string
	// ShowHelp sets whether help is displayed or not.
	// If this is non-nil when Run() is called, then the default help flag isn't
	// added.
	ShowHelp *bool
	// NeverBail skips interacting with stdout/stderr on failure and
	// always runs the callback.
	NeverBail bool

	flags *getopt.Set
}

// Flags gets the command's flag set.
func (s *SimpleCommand) Flags() *getopt.Set {
	if s.flags == nil {
		s.flags = getopt.New()
	}

	return s.flags
}

// PrintHelp writes help for the command to the given writer.
func (s *SimpleCommand) PrintHelp(w io.Writer) {
	fmt.Fprint(w, "usage: ")
	fmt.Fprintln(w, s.Use)
	fmt.Fprintln(w, s.Short)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	s.Flags().PrintOptions(w)
}

// Run the command, if flag parsing was successful call the callback.
func (s *SimpleCommand) Run(p Proc, callback func() int) int {
	opts := s.Flags()

	// Add help flag if not overridden.
	if s.ShowHelp == nil {
		s.ShowHelp = opts.BoolLong("help", 'h', "show this help and exit")
	}

	err := opts.Getopt(p.Args(), nil)
	if err != nil && !s.NeverBail {
		fmt.Fprintf(p.Stderr(), "error: %s\n\n", err)

		s.PrintHelp(p.Stdout())
		return 1
	}

	if *s.ShowHelp {
		s.PrintHelp(p.Stdout())
		return 0
	}

	return callback()
}

// RunE runs the command, printing a returned error and exiting 1.
func (s *SimpleCommand) RunE(p Proc, callback func() error) int {
	return s.Run(p, func() int {
		if err := callback(); err != nil {
			fmt.Fprintf(p.Stderr(), "%s: %v\n", p.Args()[0], err)
			return 1
		}
		return 0
	})
}

const (
	colorAlways = "always"
	colorAuto   = "auto"
	colorNever  = "never"
)

var (
	ColorBoldBlue  = color.New(color.FgBlue, color.Bold)
	ColorBoldGreen = color.New(color.FgGreen, color.Bold)
	ColorBoldCyan  = color.New(color.FgCyan, color.Bold)
	ColorBoldRed   = color.New(color.FgRed, color.Bold)
)

type ColorPrinter struct {
	value *string
	proc  Proc
}

// Init sets up the flag and process to determine the color output.
func (c *ColorPrinter) Init(flags *getopt.Set, p Proc) {
	c.proc = p
	c.value = flags.EnumLong(
		"color",
		rune(0), // No short flag.
		[]string{colorAlways, colorAuto, colorNever},
		colorAuto,
		"colorize the output (always|auto|never)")
}

func (c *ColorPrinter) ShouldColor() bool {
	switch {
	case *c.value == colorNever:
		return false
	case *c.value == colorAlways:
		return true
	default:
		return c.proc.IsTerminal()
	}
}

func (c *ColorPrinter) Sprintf(clr *color.Color, format string, a ...interface{}) string {
	if c.ShouldColor() {
		clr.EnableColor()
		return clr.Sprintf(format, a...)
	}
	return fmt.Sprintf(format, a...)
}
