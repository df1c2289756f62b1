package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// NewRunsCmd создаёт группу команд для просмотра измерений.
func NewRunsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "runs",
		Aliases: []string{"measurements"},
		Short:   "Inspect measurement runs",
	}

	cmd.AddCommand(
		newRunsLatestCmd(clientFn, outputFn),
		newRunsHistoryCmd(clientFn, outputFn),
		newRunsShowCmd(clientFn, outputFn),
	)

	return cmd
}

var runHeaders = []string{"ID", "DATE", "SCHEDULED", "STAGES", "FAILED", "ARTIFACTS"}

func runRow(m MeasurementResponse) []string {
	failed := strconv.Itoa(m.FailedCount)
	if m.FailedCount > 0 {
		failed = color.RedString(failed)
	}
	return []string{
		m.ID,
		formatTime(&m.DateTime),
		strconv.FormatBool(m.Scheduled),
		strconv.Itoa(len(m.Stages)),
		failed,
		strconv.Itoa(len(m.Artifacts)),
	}
}

func newRunsLatestCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "latest",
		Short: "Show the latest runs and the next planned one",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			latest, err := client.Latest()
			if err != nil {
				return err
			}

			rows := make([][]string, len(latest.LatestMeasurement))
			for i, m := range latest.LatestMeasurement {
				rows[i] = runRow(m)
			}

			out.Print(runHeaders, rows, latest)
			if !out.jsonMode {
				out.Success(fmt.Sprintf("Next planned measurement: %s", formatTime(latest.PlannedMeasurement)))
			}
			return nil
		},
	}
}

func newRunsHistoryCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var from, to string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List runs in a time range",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			end := time.Now()
			if to != "" {
				t, err := parseFlagTime(to)
				if err != nil {
					return fmt.Errorf("invalid --to: %w", err)
				}
				end = t
			}
			start := end.Add(-24 * time.Hour)
			if from != "" {
				t, err := parseFlagTime(from)
				if err != nil {
					return fmt.Errorf("invalid --from: %w", err)
				}
				start = t
			}

			runs, err := client.History(start, end)
			if err != nil {
				return err
			}

			rows := make([][]string, len(runs))
			for i, m := range runs {
				rows[i] = runRow(m)
			}

			out.Print(runHeaders, rows, runs)
			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "Range start (RFC3339 or YYYY-MM-DD, default: 24h before --to)")
	cmd.Flags().StringVar(&to, "to", "", "Range end (RFC3339 or YYYY-MM-DD, default: now)")

	return cmd
}

func newRunsShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show run details with stage results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			m, err := client.GetMeasurement(args[0])
			if err != nil {
				return err
			}

			headers := []string{"STAGE", "STATUS", "ARTIFACT", "MESSAGE", "FINISHED"}
			rows := make([][]string, len(m.Stages))
			for i, s := range m.Stages {
				rows[i] = []string{s.Stage, Status(s.Status), s.Artifact, s.Message, formatTime(&s.FinishedAt)}
			}

			out.Print(headers, rows, m)
			return nil
		},
	}
}

// parseFlagTime принимает RFC3339 или дату (локальная полночь).
func parseFlagTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.ParseInLocation("2006-01-02", s, time.Local)
}
