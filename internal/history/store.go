package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"torrentrss/internal/config"
)

// Store manages run history persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond

	defaultQueryLimit = 20
)

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx = ensureContext(ctx)
	var (
		res     sql.Result
		execErr error
	)
	if err := retryOnBusy(ctx, func() error {
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	}); err != nil {
		return nil, err
	}
	return res, nil
}

// Open initializes or connects to the history database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := cfg.Paths.DatabasePath
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	store := &Store{db: db, path: dbPath}
	if err := store.prepare(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// prepare applies connection pragmas and brings the schema up to date.
func (s *Store) prepare(ctx context.Context) error {
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := s.db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("apply pragma %q: %w", pragma, err)
		}
	}
	return s.initSchema(ctx)
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// StartRun inserts a new run row in the running state.
func (s *Store) StartRun(ctx context.Context) (*Run, error) {
	run := &Run{
		ID:        uuid.NewString(),
		StartedAt: time.Now().UTC(),
		Status:    RunRunning,
	}

	_, err := s.execWithRetry(
		ctx,
		`INSERT INTO runs (id, started_at, status) VALUES (?, ?, ?)`,
		run.ID,
		run.StartedAt.Format(time.RFC3339Nano),
		run.Status,
	)
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	return run, nil
}

// CompleteRun finalizes a run with its counters and stamps the finish time.
func (s *Store) CompleteRun(ctx context.Context, run *Run) error {
	if run == nil {
		return errors.New("run is nil")
	}
	now := time.Now().UTC()
	run.FinishedAt = &now
	if run.Status == RunRunning {
		run.Status = RunOK
		if run.ErrorCount > 0 {
			run.Status = RunFailed
		}
	}

	_, err := s.execWithRetry(
		ctx,
		`UPDATE runs
         SET finished_at = ?, status = ?, feeds_checked = ?, entries_matched = ?,
             error_count = ?, error_message = ?
         WHERE id = ?`,
		now.Format(time.RFC3339Nano),
		run.Status,
		run.FeedsChecked,
		run.EntriesMatched,
		run.ErrorCount,
		nullableString(run.ErrorMessage),
		run.ID,
	)
	if err != nil {
		return fmt.Errorf("complete run: %w", err)
	}
	return nil
}

// RecordMatch inserts one dispatched entry for a run.
func (s *Store) RecordMatch(ctx context.Context, match *Match) error {
	if match == nil {
		return errors.New("match is nil")
	}
	if match.MatchedAt.IsZero() {
		match.MatchedAt = time.Now().UTC()
	}

	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO run_matches (
            run_id, feed_name, subscription_name, entry_title,
            series_number, episode_number, link_kind, target, action, matched_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		match.RunID,
		match.Feed,
		match.Subscription,
		match.Title,
		nullableInt(match.Series),
		match.Episode,
		match.LinkKind,
		nullableString(match.Target),
		match.Action,
		match.MatchedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert match: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	match.ID = id
	return nil
}

// LastRun returns the most recently started run, or nil when none exist.
func (s *Store) LastRun(ctx context.Context) (*Run, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, id DESC LIMIT 1`,
	)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("last run: %w", err)
	}
	return run, nil
}

// RecentRuns returns runs ordered from newest to oldest.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = defaultQueryLimit
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// RecentMatches returns dispatched entries ordered from newest to oldest.
func (s *Store) RecentMatches(ctx context.Context, limit int) ([]*Match, error) {
	if limit <= 0 {
		limit = defaultQueryLimit
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+matchColumns+` FROM run_matches ORDER BY matched_at DESC, id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query matches: %w", err)
	}
	defer rows.Close()

	var matches []*Match
	for rows.Next() {
		match, err := scanMatch(rows)
		if err != nil {
			return nil, err
		}
		matches = append(matches, match)
	}
	return matches, rows.Err()
}

// PruneRuns deletes all but the newest keep runs along with their matches.
// A keep of zero or less disables pruning.
func (s *Store) PruneRuns(ctx context.Context, keep int) (int64, error) {
	if keep <= 0 {
		return 0, nil
	}
	res, err := s.execWithRetry(
		ctx,
		`DELETE FROM runs WHERE id IN (
            SELECT id FROM runs ORDER BY started_at DESC, id DESC LIMIT -1 OFFSET ?
        )`,
		keep,
	)
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	return res.RowsAffected()
}

const runColumns = "id, started_at, finished_at, status, feeds_checked, entries_matched, error_count, error_message"

const matchColumns = "id, run_id, feed_name, subscription_name, entry_title, series_number, episode_number, link_kind, target, action, matched_at"

func scanRun(scanner interface{ Scan(dest ...any) error }) (*Run, error) {
	var (
		id             string
		startedRaw     string
		finishedRaw    sql.NullString
		statusStr      string
		feedsChecked   int
		entriesMatched int
		errorCount     int
		errorMessage   sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&startedRaw,
		&finishedRaw,
		&statusStr,
		&feedsChecked,
		&entriesMatched,
		&errorCount,
		&errorMessage,
	); err != nil {
		return nil, err
	}

	run := &Run{
		ID:             id,
		Status:         RunStatus(statusStr),
		FeedsChecked:   feedsChecked,
		EntriesMatched: entriesMatched,
		ErrorCount:     errorCount,
		ErrorMessage:   errorMessage.String,
	}
	if started, err := parseTimeString(startedRaw); err == nil {
		run.StartedAt = started
	}
	if finishedRaw.Valid {
		if finished, err := parseTimeString(finishedRaw.String); err == nil {
			run.FinishedAt = &finished
		}
	}
	return run, nil
}

func scanMatch(scanner interface{ Scan(dest ...any) error }) (*Match, error) {
	var (
		id           int64
		runID        string
		feedName     string
		subscription string
		title        string
		series       sql.NullInt64
		episode      int
		linkKind     string
		target       sql.NullString
		action       string
		matchedRaw   string
	)

	if err := scanner.Scan(
		&id,
		&runID,
		&feedName,
		&subscription,
		&title,
		&series,
		&episode,
		&linkKind,
		&target,
		&action,
		&matchedRaw,
	); err != nil {
		return nil, err
	}

	match := &Match{
		ID:           id,
		RunID:        runID,
		Feed:         feedName,
		Subscription: subscription,
		Title:        title,
		Episode:      episode,
		LinkKind:     linkKind,
		Target:       target.String,
		Action:       action,
	}
	if series.Valid {
		value := int(series.Int64)
		match.Series = &value
	}
	if matched, err := parseTimeString(matchedRaw); err == nil {
		match.MatchedAt = matched
	}
	return match, nil
}

func nullableString(value string) any {
	if value != "" {
		return value
	}
	return nil
}

func nullableInt(value *int) any {
	if value != nil {
		return *value
	}
	return nil
}

func parseTimeString(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, errors.New("empty")
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		t, err = time.Parse("2006-01-02 15:04:05", raw)
	}
	return t, err
}
