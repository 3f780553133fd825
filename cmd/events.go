package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/josephlewis42/jobsh/core/logger"
	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"
)

var (
	eventsSession string
	eventsFormat  string
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Explore the shell event log.",
}

var reportCommand = &cobra.Command{
	Use:   "report",
	Short: "Count commands, job transitions and signals in the event log.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		var report logger.Report
		if err := replayEvents(report.Update); err != nil {
			return err
		}

		out, err := yaml.Marshal(report)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), string(out))
		return nil
	},
}

var jobsCommand = &cobra.Command{
	Use:   "jobs",
	Short: "Replay the event log and show the last known state of every job.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		var history logger.JobHistory
		if err := replayEvents(history.Update); err != nil {
			return err
		}
		records := history.Jobs("")

		switch eventsFormat {
		case "yaml":
			out, err := yaml.Marshal(records)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), string(out))
		case "table":
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "SESSION\tJOB\tKIND\tSTATE\tSIGNALS\tCOMMAND")
			for _, rec := range records {
				state := rec.State
				if state == "Done" && !rec.Success {
					state = "Done(failed)"
				}
				fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\t%s\n",
					shortSession(rec.Session), rec.Job, orDash(rec.Kind), state,
					orDash(strings.Join(rec.Signals, ",")), rec.Command)
			}
			return w.Flush()
		default:
			return fmt.Errorf("unknown format %q, want table or yaml", eventsFormat)
		}
		return nil
	},
}

// replayEvents feeds every entry of the configured event log, limited to
// --session when set, to handler.
func replayEvents(handler func(le *logger.LogEntry)) error {
	config, err := loadConfig()
	if err != nil {
		return err
	}

	fd, err := config.ReadEventLog()
	if err != nil {
		return err
	}
	defer fd.Close()

	return logger.ReadJSONLinesLog(fd, logger.SessionFilter(eventsSession, handler))
}

func shortSession(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return orDash(id)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.AddCommand(reportCommand)
	eventsCmd.AddCommand(jobsCommand)

	eventsCmd.PersistentFlags().StringVar(&eventsSession, "session", "", "only replay events from this session ID")
	jobsCommand.Flags().StringVar(&eventsFormat, "format", "table", "output format: table or yaml")
}
