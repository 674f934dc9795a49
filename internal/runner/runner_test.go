package runner_test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/gofrs/flock"

	"torrentrss/internal/config"
	"torrentrss/internal/history"
	"torrentrss/internal/logging"
	"torrentrss/internal/runner"
	"torrentrss/internal/testsupport"
)

func requirePOSIX(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("stub scripts require a POSIX shell")
	}
}

// writeAppendScript writes a stub executable that appends its arguments, one
// per line, to the file named by the envVar environment variable.
func writeAppendScript(t *testing.T, dir, name, envVar string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	contents := "#!/bin/sh\nprintf '%s\\n' \"$@\" >> \"$" + envVar + "\"\n"
	if err := os.WriteFile(path, []byte(contents), 0o755); err != nil {
		t.Fatalf("write capture script: %v", err)
	}
	return path
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read capture file: %v", err)
	}
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

func magnetFor(episode int) string {
	return fmt.Sprintf("magnet:?xt=urn:btih:%040d", episode)
}

func rssItem(title, link string) string {
	return fmt.Sprintf("<item><title>%s</title><link>%s</link></item>", title, link)
}

func rssDocument(items ...string) string {
	return `<?xml version="1.0" encoding="UTF-8"?>` +
		`<rss version="2.0"><channel>` +
		`<title>releases</title><link>https://example.com</link><description>releases</description>` +
		strings.Join(items, "") +
		`</channel></rss>`
}

func serveFeed(t *testing.T, document string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = io.WriteString(w, document)
	}))
	t.Cleanup(server.Close)
	return server
}

func configPathFor(cfg *config.Config) string {
	return filepath.Join(testsupport.BaseDir(cfg), "config.json")
}

func TestRunDispatchesNewEntriesOldestFirst(t *testing.T) {
	requirePOSIX(t)

	server := serveFeed(t, rssDocument(
		rssItem("My Show E03", magnetFor(3)),
		rssItem("My Show E01", magnetFor(1)),
		rssItem("My Show E02", magnetFor(2)),
	))

	scriptDir := t.TempDir()
	script := writeAppendScript(t, scriptDir, "handler", "HANDLER_OUT")
	capture := filepath.Join(scriptDir, "argv.txt")
	t.Setenv("HANDLER_OUT", capture)

	lastSeen := 1
	sub := &config.Subscription{
		Pattern:       `My Show E(?P<episode>\d+)`,
		EpisodeNumber: &lastSeen,
	}
	cfg := testsupport.NewConfig(t,
		testsupport.WithFeed("releases", &config.Feed{
			URL:           server.URL,
			Subscriptions: map[string]*config.Subscription{"my show": sub},
		}),
		testsupport.WithDefaultCommand(script, "$URL"),
	)
	configPath := configPathFor(cfg)

	r := runner.New(cfg, configPath, logging.NewNop())
	t.Cleanup(func() { _ = r.Close() })

	summary, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.Skipped {
		t.Fatal("expected the pass to run")
	}
	if summary.FeedsChecked != 1 || summary.EntriesMatched != 2 || summary.Errors != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if summary.RunID == "" {
		t.Fatal("expected a run id")
	}

	if sub.EpisodeNumber == nil || *sub.EpisodeNumber != 3 {
		t.Fatalf("expected last seen episode 3, got %v", sub.EpisodeNumber)
	}

	args := readLines(t, capture)
	want := []string{magnetFor(2), magnetFor(3)}
	if len(args) != len(want) || args[0] != want[0] || args[1] != want[1] {
		t.Fatalf("expected dispatch oldest first %v, got %v", want, args)
	}

	reloaded, _, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("reload config: %v", err)
	}
	if !exists {
		t.Fatal("expected the configuration to be written back")
	}
	got := reloaded.Feeds["releases"].Subscriptions["my show"].EpisodeNumber
	if got == nil || *got != 3 {
		t.Fatalf("expected persisted episode 3, got %v", got)
	}

	store := testsupport.MustOpenStore(t, cfg)
	run, err := store.LastRun(context.Background())
	if err != nil {
		t.Fatalf("LastRun failed: %v", err)
	}
	if run == nil || run.ID != summary.RunID {
		t.Fatalf("expected recorded run %q, got %+v", summary.RunID, run)
	}
	if run.Status != history.RunOK {
		t.Fatalf("expected ok run, got %q", run.Status)
	}
	if run.FeedsChecked != 1 || run.EntriesMatched != 2 || run.ErrorCount != 0 {
		t.Fatalf("unexpected run counters: %+v", run)
	}

	matches, err := store.RecentMatches(context.Background(), 0)
	if err != nil {
		t.Fatalf("RecentMatches failed: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected 2 recorded matches, got %d", len(matches))
	}
	if matches[0].Episode != 3 || matches[1].Episode != 2 {
		t.Fatalf("expected episodes 3 then 2, got %d and %d", matches[0].Episode, matches[1].Episode)
	}
	if matches[0].LinkKind != "magnet" || matches[0].Action != "command" {
		t.Fatalf("unexpected match record: %+v", matches[0])
	}
	if matches[0].Feed != "releases" || matches[0].Subscription != "my show" {
		t.Fatalf("unexpected match attribution: %+v", matches[0])
	}
}

func TestRunDispatchesWholeBacklogOnFirstRun(t *testing.T) {
	requirePOSIX(t)

	server := serveFeed(t, rssDocument(
		rssItem("My Show E02", magnetFor(2)),
		rssItem("My Show E03", magnetFor(3)),
		rssItem("My Show E01", magnetFor(1)),
	))

	scriptDir := t.TempDir()
	script := writeAppendScript(t, scriptDir, "handler", "HANDLER_OUT")
	capture := filepath.Join(scriptDir, "argv.txt")
	t.Setenv("HANDLER_OUT", capture)

	sub := &config.Subscription{Pattern: `My Show E(?P<episode>\d+)`}
	cfg := testsupport.NewConfig(t,
		testsupport.WithFeed("releases", &config.Feed{
			URL:           server.URL,
			Subscriptions: map[string]*config.Subscription{"my show": sub},
		}),
		testsupport.WithDefaultCommand(script, "$URL"),
	)

	r := runner.New(cfg, configPathFor(cfg), logging.NewNop())
	t.Cleanup(func() { _ = r.Close() })

	summary, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.EntriesMatched != 3 || summary.Errors != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if sub.EpisodeNumber == nil || *sub.EpisodeNumber != 3 {
		t.Fatalf("expected last seen episode 3, got %v", sub.EpisodeNumber)
	}

	args := readLines(t, capture)
	want := []string{magnetFor(1), magnetFor(2), magnetFor(3)}
	if len(args) != 3 || args[0] != want[0] || args[1] != want[1] || args[2] != want[2] {
		t.Fatalf("expected the whole backlog oldest first %v, got %v", want, args)
	}
}

func TestRunSkipsWhenLockHeld(t *testing.T) {
	cfg := testsupport.NewConfig(t)

	held := flock.New(cfg.Paths.LockPath)
	locked, err := held.TryLock()
	if err != nil {
		t.Fatalf("acquire lock: %v", err)
	}
	if !locked {
		t.Fatal("expected to acquire the lock")
	}
	t.Cleanup(func() { _ = held.Unlock() })

	r := runner.New(cfg, configPathFor(cfg), logging.NewNop())
	t.Cleanup(func() { _ = r.Close() })

	summary, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !summary.Skipped {
		t.Fatal("expected the pass to be skipped")
	}
	if summary.FeedsChecked != 0 || summary.EntriesMatched != 0 {
		t.Fatalf("expected nothing processed, got %+v", summary)
	}
}

func TestRunContinuesPastFailedDispatch(t *testing.T) {
	requirePOSIX(t)

	// The feed document is registered under /feed only, so the torrent
	// link of episode 2 comes back 404 and its dispatch fails.
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	document := rssDocument(
		rssItem("My Show E02", server.URL+"/gone.torrent"),
		rssItem("My Show E03", magnetFor(3)),
	)
	mux.HandleFunc("/feed", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = io.WriteString(w, document)
	})

	scriptDir := t.TempDir()
	script := writeAppendScript(t, scriptDir, "handler", "HANDLER_OUT")
	capture := filepath.Join(scriptDir, "argv.txt")
	t.Setenv("HANDLER_OUT", capture)

	lastSeen := 1
	sub := &config.Subscription{
		Pattern:       `My Show E(?P<episode>\d+)`,
		EpisodeNumber: &lastSeen,
	}
	cfg := testsupport.NewConfig(t,
		testsupport.WithFeed("releases", &config.Feed{
			URL:           server.URL + "/feed",
			Subscriptions: map[string]*config.Subscription{"my show": sub},
		}),
		testsupport.WithDefaultCommand(script, "$URL"),
	)
	configPath := configPathFor(cfg)

	r := runner.New(cfg, configPath, logging.NewNop())
	t.Cleanup(func() { _ = r.Close() })

	summary, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("expected entry failures to stay non-fatal, got %v", err)
	}
	if summary.Errors != 1 || summary.EntriesMatched != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if sub.EpisodeNumber == nil || *sub.EpisodeNumber != 3 {
		t.Fatalf("expected last seen to advance past the failure, got %v", sub.EpisodeNumber)
	}

	args := readLines(t, capture)
	if len(args) != 1 || args[0] != magnetFor(3) {
		t.Fatalf("expected only episode 3 dispatched, got %v", args)
	}

	reloaded, _, exists, err := config.Load(configPath)
	if err != nil || !exists {
		t.Fatalf("reload config: exists=%v err=%v", exists, err)
	}
	got := reloaded.Feeds["releases"].Subscriptions["my show"].EpisodeNumber
	if got == nil || *got != 3 {
		t.Fatalf("expected persisted episode 3, got %v", got)
	}

	store := testsupport.MustOpenStore(t, cfg)
	run, err := store.LastRun(context.Background())
	if err != nil || run == nil {
		t.Fatalf("LastRun: run=%v err=%v", run, err)
	}
	if run.Status != history.RunFailed || run.ErrorCount != 1 {
		t.Fatalf("expected failed run with one error, got %+v", run)
	}
	if !strings.Contains(run.ErrorMessage, "dispatch failed") {
		t.Fatalf("expected dispatch failure message, got %q", run.ErrorMessage)
	}
}

func TestRunSkipsDisabledFeedsAndSubscriptions(t *testing.T) {
	requirePOSIX(t)

	server := serveFeed(t, rssDocument(
		rssItem("Show E01", magnetFor(1)),
	))

	scriptDir := t.TempDir()
	script := writeAppendScript(t, scriptDir, "handler", "HANDLER_OUT")
	capture := filepath.Join(scriptDir, "argv.txt")
	t.Setenv("HANDLER_OUT", capture)

	disabled := false
	active := &config.Subscription{Pattern: `Show E(?P<episode>\d+)`}
	dormant := &config.Subscription{Pattern: `Show E(?P<episode>\d+)`, Enabled: &disabled}
	cfg := testsupport.NewConfig(t,
		testsupport.WithFeed("off", &config.Feed{
			URL:     "http://127.0.0.1:1/unreachable",
			Enabled: &disabled,
			Subscriptions: map[string]*config.Subscription{
				"ignored": {Pattern: `Show E(?P<episode>\d+)`},
			},
		}),
		testsupport.WithFeed("on", &config.Feed{
			URL: server.URL,
			Subscriptions: map[string]*config.Subscription{
				"active":  active,
				"dormant": dormant,
			},
		}),
		testsupport.WithDefaultCommand(script, "$URL"),
	)

	r := runner.New(cfg, configPathFor(cfg), logging.NewNop())
	t.Cleanup(func() { _ = r.Close() })

	summary, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.FeedsChecked != 1 {
		t.Fatalf("expected only the enabled feed checked, got %+v", summary)
	}
	if summary.EntriesMatched != 1 || summary.Errors != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if active.EpisodeNumber == nil || *active.EpisodeNumber != 1 {
		t.Fatalf("expected active subscription to advance, got %v", active.EpisodeNumber)
	}
	if dormant.EpisodeNumber != nil {
		t.Fatalf("expected dormant subscription untouched, got %v", dormant.EpisodeNumber)
	}

	args := readLines(t, capture)
	if len(args) != 1 || args[0] != magnetFor(1) {
		t.Fatalf("expected a single dispatch, got %v", args)
	}
}

func TestRunCountsFeedFetchFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "tracker overloaded", http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)

	sub := &config.Subscription{Pattern: `Show E(?P<episode>\d+)`}
	cfg := testsupport.NewConfig(t,
		testsupport.WithFeed("releases", &config.Feed{
			URL:           server.URL,
			Subscriptions: map[string]*config.Subscription{"show": sub},
		}),
	)
	configPath := configPathFor(cfg)

	r := runner.New(cfg, configPath, logging.NewNop())
	t.Cleanup(func() { _ = r.Close() })

	summary, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("expected fetch failures to stay non-fatal, got %v", err)
	}
	if summary.FeedsChecked != 1 || summary.Errors != 1 || summary.EntriesMatched != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	if _, err := os.Stat(configPath); !os.IsNotExist(err) {
		t.Fatalf("expected no configuration write-back without matches, stat err: %v", err)
	}

	store := testsupport.MustOpenStore(t, cfg)
	run, err := store.LastRun(context.Background())
	if err != nil || run == nil {
		t.Fatalf("LastRun: run=%v err=%v", run, err)
	}
	if run.Status != history.RunFailed || run.ErrorCount != 1 || run.FeedsChecked != 1 {
		t.Fatalf("expected failed run, got %+v", run)
	}
	if !strings.Contains(run.ErrorMessage, "fetch failed") {
		t.Fatalf("expected fetch failure message, got %q", run.ErrorMessage)
	}
}
