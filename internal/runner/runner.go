// Package runner executes one polling pass: fetch every enabled feed,
// match entries against subscriptions, dispatch new episodes, and write
// the advanced last-seen numbers back to the configuration file.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sort"

	"github.com/gofrs/flock"

	"torrentrss/internal/action"
	"torrentrss/internal/config"
	"torrentrss/internal/episode"
	"torrentrss/internal/errs"
	"torrentrss/internal/feed"
	"torrentrss/internal/history"
	"torrentrss/internal/logging"
	"torrentrss/internal/notifications"
)

// historyKeepRuns bounds the run ledger; matches cascade with their runs.
const historyKeepRuns = 100

// Summary reports what one pass did.
type Summary struct {
	RunID          string
	FeedsChecked   int
	EntriesMatched int
	Errors         int
	Skipped        bool
}

// Runner drives polling passes for a loaded configuration.
type Runner struct {
	cfg        *config.Config
	configPath string
	fetcher    *feed.Fetcher
	dispatcher *action.Dispatcher
	notifier   notifications.Service
	store      *history.Store
	logger     *slog.Logger
}

// New wires a runner for cfg. The history store is optional: when it
// cannot be opened the runner logs a warning and records nothing.
func New(cfg *config.Config, configPath string, logger *slog.Logger) *Runner {
	r := &Runner{
		cfg:        cfg,
		configPath: configPath,
		fetcher:    feed.NewFetcher(cfg),
		dispatcher: action.NewDispatcher(cfg, logger),
		notifier:   notifications.NewService(cfg, logger),
		logger:     logging.NewComponentLogger(logger, "runner"),
	}

	// The lock and log directories must exist even when the history store
	// cannot be opened.
	if err := cfg.EnsureDirectories(); err != nil {
		r.logger.Warn("create runtime directories", logging.Error(err))
	}

	store, err := history.Open(cfg)
	if err != nil {
		r.logger.Warn("history store unavailable, runs will not be recorded", logging.Error(err))
	} else {
		r.store = store
	}
	return r
}

// Close releases the history store.
func (r *Runner) Close() error {
	if r.store == nil {
		return nil
	}
	return r.store.Close()
}

// Run executes one pass. Feed and entry failures are counted and the pass
// continues; the returned error is reserved for failures that invalidate
// the whole run, such as losing the configuration write-back.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	lock := flock.New(r.cfg.Paths.LockPath)
	locked, err := lock.TryLock()
	if err != nil {
		return Summary{}, fmt.Errorf("acquire run lock %s: %w", r.cfg.Paths.LockPath, err)
	}
	if !locked {
		r.logger.Info("another instance holds the run lock, skipping this pass",
			logging.String("lock", r.cfg.Paths.LockPath))
		return Summary{Skipped: true}, nil
	}
	defer func() { _ = lock.Unlock() }()

	p := &pass{runner: r, logger: r.logger}
	if r.store != nil {
		run, err := r.store.StartRun(ctx)
		if err != nil {
			r.logger.Warn("start run record", logging.Error(err))
		} else {
			p.run = run
			p.summary.RunID = run.ID
			p.logger = r.logger.With(logging.String(logging.FieldRunID, run.ID))
		}
	}

	p.logger.Info("starting pass", logging.Int("feeds", len(r.cfg.Feeds)))

	for _, feedName := range slices.Sorted(maps.Keys(r.cfg.Feeds)) {
		if ctx.Err() != nil {
			p.noteError(fmt.Errorf("pass interrupted: %w", ctx.Err()))
			break
		}
		p.processFeed(ctx, feedName, r.cfg.Feeds[feedName])
	}

	var fatal error
	if p.summary.EntriesMatched > 0 {
		if err := r.cfg.Save(r.configPath); err != nil {
			fatal = errs.Wrap(errs.ErrConfiguration, "", "", "write back configuration", err)
			p.noteError(fatal)
			p.logger.Error("configuration write-back failed", logging.Error(err))
		} else {
			p.logger.Debug("configuration written back",
				logging.String("path", r.configPath),
				logging.Int("entries", p.summary.EntriesMatched))
		}
	}

	p.finalizeRun(ctx)

	p.logger.Info("pass finished",
		logging.Int("feeds_checked", p.summary.FeedsChecked),
		logging.Int("entries_matched", p.summary.EntriesMatched),
		logging.Int("errors", p.summary.Errors))

	if fatal != nil {
		r.notify(ctx, notifications.RunFailed(fatal))
		return p.summary, fatal
	}
	return p.summary, nil
}

// pass carries the mutable state of a single Run invocation.
type pass struct {
	runner   *Runner
	logger   *slog.Logger
	run      *history.Run
	summary  Summary
	firstErr error
}

func (p *pass) noteError(err error) {
	p.summary.Errors++
	if p.firstErr == nil {
		p.firstErr = err
	}
}

func (p *pass) processFeed(ctx context.Context, feedName string, f *config.Feed) {
	logger := p.logger.With(logging.String(logging.FieldFeed, feedName))
	if !f.IsEnabled() {
		logger.Debug("feed disabled, skipping")
		return
	}

	p.summary.FeedsChecked++
	entries, err := p.runner.fetcher.Fetch(ctx, f)
	if err != nil {
		p.noteError(errs.Wrap(errs.ErrFeed, feedName, "", "fetch failed", err))
		logger.Error("feed fetch failed", logging.Error(err))
		p.runner.notify(ctx, notifications.FeedFailed(feedName, err))
		return
	}
	logger.Debug("feed fetched", logging.Int("entries", len(entries)))

	for _, subName := range slices.Sorted(maps.Keys(f.Subscriptions)) {
		sub := f.Subscriptions[subName]
		if !sub.IsEnabled() {
			logger.Debug("subscription disabled, skipping",
				logging.String(logging.FieldSubscription, subName))
			continue
		}
		p.processSubscription(ctx, logger, feedName, f, subName, sub, entries)
	}
}

type matchedEntry struct {
	entry  feed.Entry
	number episode.Number
}

func (p *pass) processSubscription(ctx context.Context, feedLogger *slog.Logger, feedName string, f *config.Feed, subName string, sub *config.Subscription, entries []feed.Entry) {
	logger := feedLogger.With(logging.String(logging.FieldSubscription, subName))
	re := sub.Regexp()
	if re == nil {
		p.noteError(errs.Wrap(errs.ErrConfiguration, feedName, subName, "pattern not compiled", nil))
		logger.Error("subscription pattern not compiled")
		return
	}

	lastSeen := episode.Number{Series: sub.SeriesNumber, Episode: sub.EpisodeNumber}
	var pending []matchedEntry
	for _, entry := range entries {
		number, ok := episode.Match(re, entry.Title)
		if !ok {
			continue
		}
		if !number.After(lastSeen) {
			logger.Debug("entry not newer than last seen",
				logging.String("title", entry.Title),
				logging.String(logging.FieldEpisode, number.String()))
			continue
		}
		pending = append(pending, matchedEntry{entry: entry, number: number})
	}
	if len(pending) == 0 {
		return
	}

	// Oldest first so last-seen advances monotonically.
	sort.SliceStable(pending, func(i, j int) bool {
		return episode.Less(pending[i].number, pending[j].number)
	})

	for _, m := range pending {
		current := episode.Number{Series: sub.SeriesNumber, Episode: sub.EpisodeNumber}
		if !m.number.After(current) {
			// Duplicate release of an episode dispatched earlier this pass.
			continue
		}

		res, err := p.runner.dispatcher.Dispatch(ctx, f, sub, m.entry)
		if err != nil {
			p.noteError(errs.Wrap(errs.ErrAction, feedName, subName, "dispatch failed", err))
			logger.Error("entry dispatch failed",
				logging.String("title", m.entry.Title),
				logging.String(logging.FieldEpisode, m.number.String()),
				logging.Error(err))
			continue
		}

		sub.SeriesNumber = m.number.Series
		sub.EpisodeNumber = m.number.Episode
		p.summary.EntriesMatched++
		logger.Info("entry dispatched",
			logging.String("title", m.entry.Title),
			logging.String(logging.FieldEpisode, m.number.String()),
			logging.String("action", res.Action),
			logging.String("kind", string(res.Selection.Kind)))

		p.recordMatch(ctx, logger, feedName, subName, m, res)
	}
}

func (p *pass) recordMatch(ctx context.Context, logger *slog.Logger, feedName, subName string, m matchedEntry, res action.Result) {
	if p.run == nil || p.runner.store == nil {
		return
	}
	match := &history.Match{
		RunID:        p.run.ID,
		Feed:         feedName,
		Subscription: subName,
		Title:        m.entry.Title,
		Series:       m.number.Series,
		Episode:      *m.number.Episode,
		LinkKind:     string(res.Selection.Kind),
		Target:       res.Target,
		Action:       res.Action,
	}
	if err := p.runner.store.RecordMatch(ctx, match); err != nil {
		logger.Warn("record match", logging.Error(err))
	}
}

func (p *pass) finalizeRun(ctx context.Context) {
	if p.run == nil || p.runner.store == nil {
		return
	}
	p.run.FeedsChecked = p.summary.FeedsChecked
	p.run.EntriesMatched = p.summary.EntriesMatched
	p.run.ErrorCount = p.summary.Errors
	if p.firstErr != nil {
		p.run.ErrorMessage = p.firstErr.Error()
	}
	if err := p.runner.store.CompleteRun(ctx, p.run); err != nil {
		p.logger.Warn("complete run record", logging.Error(err))
	}
	if _, err := p.runner.store.PruneRuns(ctx, historyKeepRuns); err != nil {
		p.logger.Warn("prune run history", logging.Error(err))
	}
}

func (r *Runner) notify(ctx context.Context, n notifications.Notification) {
	if err := r.notifier.Publish(ctx, n); err != nil {
		r.logger.Warn("publish notification", logging.Error(err))
	}
}
