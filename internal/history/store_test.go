package history_test

import (
	"context"
	"testing"
	"time"

	"torrentrss/internal/history"
	"torrentrss/internal/testsupport"
)

func TestOpenCreatesSchema(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	run, err := store.StartRun(ctx)
	if err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}
	if run.ID == "" {
		t.Fatal("expected run ID to be assigned")
	}
	if run.Status != history.RunRunning {
		t.Fatalf("expected status running, got %s", run.Status)
	}

	fetched, err := store.LastRun(ctx)
	if err != nil {
		t.Fatalf("LastRun failed: %v", err)
	}
	if fetched == nil || fetched.ID != run.ID {
		t.Fatalf("unexpected last run: %#v", fetched)
	}
	if fetched.FinishedAt != nil {
		t.Fatalf("expected open run, got finished at %v", fetched.FinishedAt)
	}
}

func TestLastRunEmptyDatabase(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	run, err := store.LastRun(context.Background())
	if err != nil {
		t.Fatalf("LastRun failed: %v", err)
	}
	if run != nil {
		t.Fatalf("expected nil run for empty database, got %#v", run)
	}
}

func TestCompleteRunDerivesStatus(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	clean := testsupport.StartRun(t, store)
	clean.FeedsChecked = 2
	clean.EntriesMatched = 3
	if err := store.CompleteRun(ctx, clean); err != nil {
		t.Fatalf("CompleteRun failed: %v", err)
	}
	if clean.Status != history.RunOK {
		t.Fatalf("expected ok status, got %s", clean.Status)
	}
	if clean.FinishedAt == nil {
		t.Fatal("expected finish time to be stamped")
	}
	if clean.FinishedAt.Before(clean.StartedAt) {
		t.Fatalf("finish %v precedes start %v", clean.FinishedAt, clean.StartedAt)
	}

	failed := testsupport.StartRun(t, store)
	failed.FeedsChecked = 1
	failed.ErrorCount = 2
	failed.ErrorMessage = "fetch feed: boom"
	if err := store.CompleteRun(ctx, failed); err != nil {
		t.Fatalf("CompleteRun failed: %v", err)
	}
	if failed.Status != history.RunFailed {
		t.Fatalf("expected failed status, got %s", failed.Status)
	}

	latest, err := store.LastRun(ctx)
	if err != nil {
		t.Fatalf("LastRun failed: %v", err)
	}
	if latest.ID != failed.ID {
		t.Fatalf("expected most recent run %s, got %s", failed.ID, latest.ID)
	}
	if latest.ErrorCount != 2 || latest.ErrorMessage != "fetch feed: boom" {
		t.Fatalf("unexpected persisted run: %#v", latest)
	}
}

func TestRecordMatchRoundTrip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	run := testsupport.StartRun(t, store)

	series := 2
	first := &history.Match{
		RunID:        run.ID,
		Feed:         "showrss",
		Subscription: "my show",
		Title:        "My Show S02E05 1080p",
		Series:       &series,
		Episode:      5,
		LinkKind:     "magnet",
		Target:       "magnet:?xt=urn:btih:abc",
		Action:       "command",
	}
	if err := store.RecordMatch(ctx, first); err != nil {
		t.Fatalf("RecordMatch failed: %v", err)
	}
	if first.ID == 0 {
		t.Fatal("expected match ID to be assigned")
	}
	if first.MatchedAt.IsZero() {
		t.Fatal("expected match time to be stamped")
	}

	time.Sleep(5 * time.Millisecond)
	second := &history.Match{
		RunID:        run.ID,
		Feed:         "showrss",
		Subscription: "other show",
		Title:        "Other Show E12",
		Episode:      12,
		LinkKind:     "torrent_file",
		Target:       "/downloads/Other Show E12.torrent",
		Action:       "download",
	}
	if err := store.RecordMatch(ctx, second); err != nil {
		t.Fatalf("RecordMatch failed: %v", err)
	}

	matches, err := store.RecentMatches(ctx, 10)
	if err != nil {
		t.Fatalf("RecentMatches failed: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matches))
	}
	if matches[0].ID != second.ID || matches[1].ID != first.ID {
		t.Fatalf("expected newest first, got IDs %d,%d", matches[0].ID, matches[1].ID)
	}
	if matches[0].Series != nil {
		t.Fatalf("expected nil series, got %d", *matches[0].Series)
	}
	if matches[1].Series == nil || *matches[1].Series != 2 {
		t.Fatalf("expected series 2, got %v", matches[1].Series)
	}
	if matches[1].LinkKind != "magnet" || matches[1].Action != "command" {
		t.Fatalf("unexpected match fields: %#v", matches[1])
	}
}

func TestRecentRunsHonorsLimit(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	var ids []string
	for i := 0; i < 3; i++ {
		run := testsupport.StartRun(t, store)
		if err := store.CompleteRun(ctx, run); err != nil {
			t.Fatalf("CompleteRun failed: %v", err)
		}
		ids = append(ids, run.ID)
		time.Sleep(5 * time.Millisecond)
	}

	runs, err := store.RecentRuns(ctx, 2)
	if err != nil {
		t.Fatalf("RecentRuns failed: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].ID != ids[2] || runs[1].ID != ids[1] {
		t.Fatalf("expected newest runs first, got %s,%s", runs[0].ID, runs[1].ID)
	}
}

func TestPruneRunsKeepsNewest(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	var ids []string
	for i := 0; i < 3; i++ {
		run := testsupport.StartRun(t, store)
		match := &history.Match{
			RunID:        run.ID,
			Feed:         "showrss",
			Subscription: "show",
			Title:        "Show E01",
			Episode:      1,
			LinkKind:     "magnet",
			Action:       "command",
		}
		if err := store.RecordMatch(ctx, match); err != nil {
			t.Fatalf("RecordMatch failed: %v", err)
		}
		if err := store.CompleteRun(ctx, run); err != nil {
			t.Fatalf("CompleteRun failed: %v", err)
		}
		ids = append(ids, run.ID)
		time.Sleep(5 * time.Millisecond)
	}

	removed, err := store.PruneRuns(ctx, 2)
	if err != nil {
		t.Fatalf("PruneRuns failed: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 run pruned, got %d", removed)
	}

	runs, err := store.RecentRuns(ctx, 10)
	if err != nil {
		t.Fatalf("RecentRuns failed: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 surviving runs, got %d", len(runs))
	}
	for _, run := range runs {
		if run.ID == ids[0] {
			t.Fatalf("expected oldest run %s to be pruned", ids[0])
		}
	}

	// Cascade removes the pruned run's matches as well.
	matches, err := store.RecentMatches(ctx, 10)
	if err != nil {
		t.Fatalf("RecentMatches failed: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected 2 surviving matches, got %d", len(matches))
	}
	for _, match := range matches {
		if match.RunID == ids[0] {
			t.Fatalf("expected matches of pruned run to cascade, found %d", match.ID)
		}
	}
}

func TestPruneRunsZeroKeepDisablesPruning(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	run := testsupport.StartRun(t, store)
	if err := store.CompleteRun(ctx, run); err != nil {
		t.Fatalf("CompleteRun failed: %v", err)
	}

	removed, err := store.PruneRuns(ctx, 0)
	if err != nil {
		t.Fatalf("PruneRuns failed: %v", err)
	}
	if removed != 0 {
		t.Fatalf("expected no runs pruned, got %d", removed)
	}

	runs, err := store.RecentRuns(ctx, 10)
	if err != nil {
		t.Fatalf("RecentRuns failed: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected run to survive, got %d runs", len(runs))
	}
}
