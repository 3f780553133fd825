package jobs

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/josephlewis42/jobsh/core/unit"
)

// Info is a read-only snapshot of one job.
type Info struct {
	Index      int
	Pids       []int
	Foreground bool
	Kind       unit.Kind
	State      State
	Command    string

	// Signaled and Success are only filled in for Done jobs.
	Signaled []bool
	Success  bool
}

// Every state color has the same escape length so tabwriter keeps the
// columns aligned.
var stateColors = map[State]color.Attribute{
	Run:        color.FgGreen,
	Stopped:    color.FgYellow,
	RunStopped: color.FgMagenta,
	Done:       color.FgBlue,
}

func plusMinus(b bool) string {
	if b {
		return "+"
	}
	return "-"
}

func (i Info) pids() string {
	var out []string
	for _, pid := range i.Pids {
		if pid < 0 {
			out = append(out, "-")
			continue
		}
		out = append(out, strconv.Itoa(pid))
	}
	return strings.Join(out, ",")
}

func (i Info) detail() string {
	if i.State != Done {
		return ""
	}

	if i.Kind == unit.KindChain {
		return "success: " + plusMinus(i.Success)
	}

	var flags []string
	for _, sig := range i.Signaled {
		flags = append(flags, plusMinus(sig))
	}
	return "signaled: " + strings.Join(flags, ",")
}

// Render writes the jobs listing as a table.
func Render(w io.Writer, jobs []Info, colorize bool) error {
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "JOB\tPIDS\tFG\tKIND\tSTATE\tDETAIL\tCOMMAND")

	for _, job := range jobs {
		state := job.State.String()
		if colorize {
			c := color.New(stateColors[job.State])
			c.EnableColor()
			state = c.Sprint(state)
		}

		fmt.Fprintf(tw, "[%d]\t%s\t%s\t%s\t%s\t%s\t%s\n",
			job.Index,
			job.pids(),
			plusMinus(job.Foreground),
			job.Kind,
			state,
			job.detail(),
			job.Command,
		)
	}

	return tw.Flush()
}
