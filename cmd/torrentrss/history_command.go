package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"torrentrss/internal/episode"
	"torrentrss/internal/history"
)

type historyRun struct {
	ID             string     `json:"id"`
	StartedAt      time.Time  `json:"started_at"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`
	Status         string     `json:"status"`
	FeedsChecked   int        `json:"feeds_checked"`
	EntriesMatched int        `json:"entries_matched"`
	ErrorCount     int        `json:"error_count"`
	ErrorMessage   string     `json:"error_message,omitempty"`
}

type historyMatch struct {
	MatchedAt    time.Time `json:"matched_at"`
	RunID        string    `json:"run_id"`
	Feed         string    `json:"feed"`
	Subscription string    `json:"subscription"`
	Title        string    `json:"title"`
	Episode      string    `json:"episode"`
	LinkKind     string    `json:"link_kind"`
	Target       string    `json:"target"`
	Action       string    `json:"action"`
}

type historyReport struct {
	Runs    []historyRun   `json:"runs"`
	Matches []historyMatch `json:"matches"`
}

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent runs and dispatched entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.requireConfigFile()
			if err != nil {
				return err
			}

			store, err := history.Open(cfg)
			if err != nil {
				return fmt.Errorf("open history: %w", err)
			}
			defer store.Close()

			runs, err := store.RecentRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			matches, err := store.RecentMatches(cmd.Context(), limit)
			if err != nil {
				return err
			}

			report := historyReport{
				Runs:    make([]historyRun, 0, len(runs)),
				Matches: make([]historyMatch, 0, len(matches)),
			}
			for _, run := range runs {
				report.Runs = append(report.Runs, historyRun{
					ID:             run.ID,
					StartedAt:      run.StartedAt,
					FinishedAt:     run.FinishedAt,
					Status:         string(run.Status),
					FeedsChecked:   run.FeedsChecked,
					EntriesMatched: run.EntriesMatched,
					ErrorCount:     run.ErrorCount,
					ErrorMessage:   run.ErrorMessage,
				})
			}
			for _, match := range matches {
				episodeNumber := match.Episode
				number := episode.Number{Series: match.Series, Episode: &episodeNumber}
				report.Matches = append(report.Matches, historyMatch{
					MatchedAt:    match.MatchedAt,
					RunID:        match.RunID,
					Feed:         match.Feed,
					Subscription: match.Subscription,
					Title:        match.Title,
					Episode:      number.String(),
					LinkKind:     match.LinkKind,
					Target:       match.Target,
					Action:       match.Action,
				})
			}

			if jsonOutput {
				return writeJSON(cmd, report)
			}

			out := cmd.OutOrStdout()
			if len(report.Runs) == 0 {
				fmt.Fprintln(out, "No runs recorded.")
				return nil
			}

			runRows := make([][]string, 0, len(report.Runs))
			for i, run := range report.Runs {
				runRows = append(runRows, []string{
					shortRunID(run.ID),
					formatWhen(run.StartedAt),
					formatDuration(runs[i].Duration()),
					run.Status,
					fmt.Sprintf("%d", run.FeedsChecked),
					fmt.Sprintf("%d", run.EntriesMatched),
					fmt.Sprintf("%d", run.ErrorCount),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"RUN", "STARTED", "DURATION", "STATUS", "FEEDS", "MATCHED", "ERRORS"},
				runRows, 4, 5, 6))

			if len(report.Matches) == 0 {
				fmt.Fprintln(out)
				fmt.Fprintln(out, "No entries dispatched yet.")
				return nil
			}

			matchRows := make([][]string, 0, len(report.Matches))
			for _, match := range report.Matches {
				matchRows = append(matchRows, []string{
					formatWhen(match.MatchedAt),
					match.Feed,
					match.Subscription,
					match.Title,
					match.Episode,
					match.Action,
				})
			}
			fmt.Fprintln(out)
			fmt.Fprintln(out, renderTable(
				[]string{"WHEN", "FEED", "SUBSCRIPTION", "TITLE", "EPISODE", "ACTION"},
				matchRows))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs and matches to show")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit machine-readable JSON")

	return cmd
}

func shortRunID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
