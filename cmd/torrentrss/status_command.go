package main

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"torrentrss/internal/config"
	"torrentrss/internal/episode"
	"torrentrss/internal/history"
)

type statusSubscription struct {
	Name     string `json:"name"`
	Pattern  string `json:"pattern"`
	LastSeen string `json:"last_seen"`
	Enabled  bool   `json:"enabled"`
}

type statusFeed struct {
	Name          string               `json:"name"`
	URL           string               `json:"url"`
	Enabled       bool                 `json:"enabled"`
	Subscriptions []statusSubscription `json:"subscriptions"`
}

type statusRun struct {
	ID             string     `json:"id"`
	StartedAt      time.Time  `json:"started_at"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`
	Status         string     `json:"status"`
	FeedsChecked   int        `json:"feeds_checked"`
	EntriesMatched int        `json:"entries_matched"`
	ErrorCount     int        `json:"error_count"`
	ErrorMessage   string     `json:"error_message,omitempty"`
}

type statusReport struct {
	ConfigPath   string       `json:"config_path"`
	DatabasePath string       `json:"database_path,omitempty"`
	LastRun      *statusRun   `json:"last_run,omitempty"`
	Feeds        []statusFeed `json:"feeds"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show configured feeds, their last-seen releases, and the last run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.requireConfigFile()
			if err != nil {
				return err
			}

			report := statusReport{
				ConfigPath:   ctx.configPath,
				DatabasePath: cfg.Paths.DatabasePath,
				Feeds:        collectStatusFeeds(cfg),
			}

			// The history store is optional; status still renders the
			// configured feeds when it cannot be opened.
			var historyErr error
			if store, err := history.Open(cfg); err != nil {
				historyErr = err
			} else {
				last, err := store.LastRun(cmd.Context())
				closeErr := store.Close()
				switch {
				case err != nil:
					historyErr = err
				case closeErr != nil:
					historyErr = closeErr
				case last != nil:
					report.LastRun = &statusRun{
						ID:             last.ID,
						StartedAt:      last.StartedAt,
						FinishedAt:     last.FinishedAt,
						Status:         string(last.Status),
						FeedsChecked:   last.FeedsChecked,
						EntriesMatched: last.EntriesMatched,
						ErrorCount:     last.ErrorCount,
						ErrorMessage:   last.ErrorMessage,
					}
				}
			}

			if jsonOutput {
				return writeJSON(cmd, report)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config:   %s\n", report.ConfigPath)
			if report.DatabasePath != "" {
				fmt.Fprintf(out, "Database: %s\n", report.DatabasePath)
			}
			fmt.Fprintf(out, "Last run: %s\n", describeLastRun(report.LastRun, historyErr))
			fmt.Fprintln(out)

			if len(report.Feeds) == 0 {
				fmt.Fprintln(out, "No feeds configured.")
				return nil
			}

			headers := []string{"FEED", "SUBSCRIPTION", "PATTERN", "LAST SEEN", "ENABLED"}
			var rows [][]string
			for _, f := range report.Feeds {
				for _, sub := range f.Subscriptions {
					rows = append(rows, []string{
						f.Name,
						sub.Name,
						sub.Pattern,
						sub.LastSeen,
						yesNo(f.Enabled && sub.Enabled),
					})
				}
			}
			fmt.Fprintln(out, renderTable(headers, rows))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit machine-readable JSON")

	return cmd
}

func collectStatusFeeds(cfg *config.Config) []statusFeed {
	feedNames := make([]string, 0, len(cfg.Feeds))
	for name := range cfg.Feeds {
		feedNames = append(feedNames, name)
	}
	sort.Strings(feedNames)

	feeds := make([]statusFeed, 0, len(feedNames))
	for _, feedName := range feedNames {
		f := cfg.Feeds[feedName]
		entry := statusFeed{
			Name:    feedName,
			URL:     f.URL,
			Enabled: f.IsEnabled(),
		}

		subNames := make([]string, 0, len(f.Subscriptions))
		for name := range f.Subscriptions {
			subNames = append(subNames, name)
		}
		sort.Strings(subNames)

		for _, subName := range subNames {
			sub := f.Subscriptions[subName]
			lastSeen := episode.Number{Series: sub.SeriesNumber, Episode: sub.EpisodeNumber}
			entry.Subscriptions = append(entry.Subscriptions, statusSubscription{
				Name:     subName,
				Pattern:  sub.Pattern,
				LastSeen: lastSeen.String(),
				Enabled:  sub.IsEnabled(),
			})
		}
		feeds = append(feeds, entry)
	}
	return feeds
}

func describeLastRun(run *statusRun, historyErr error) string {
	if historyErr != nil {
		return fmt.Sprintf("history unavailable (%v)", historyErr)
	}
	if run == nil {
		return "none recorded"
	}
	desc := fmt.Sprintf("%s (%s, feeds %d, matched %d, errors %d)",
		formatWhen(run.StartedAt), run.Status, run.FeedsChecked, run.EntriesMatched, run.ErrorCount)
	return desc
}
