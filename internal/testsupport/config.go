package testsupport

import (
	"path/filepath"
	"testing"

	"torrentrss/internal/config"
)

// ConfigOption mutates the generated test configuration.
type ConfigOption func(t testing.TB, cfg *config.Config)

// NewConfig returns a config rooted in a fresh temp directory: logging
// disabled, download/log/database/lock paths all under that root. Options
// apply in order.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.DefaultDirectory = filepath.Join(base, "downloads")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.DatabasePath = filepath.Join(base, "history.db")
	cfg.Paths.LockPath = filepath.Join(base, "torrentrss.lock")
	cfg.Logging.Level = "disable"

	for _, opt := range opts {
		opt(t, &cfg)
	}
	return &cfg
}

// WithFeed adds a feed and compiles every subscription pattern so matching
// works without a Validate round trip.
func WithFeed(name string, feed *config.Feed) ConfigOption {
	return func(t testing.TB, cfg *config.Config) {
		t.Helper()
		if cfg.Feeds == nil {
			cfg.Feeds = make(map[string]*config.Feed)
		}
		for subName, sub := range feed.Subscriptions {
			if err := sub.CompilePattern(); err != nil {
				t.Fatalf("compile pattern for %s/%s: %v", name, subName, err)
			}
		}
		cfg.Feeds[name] = feed
	}
}

// WithDefaultCommand sets the global dispatch command.
func WithDefaultCommand(argv ...string) ConfigOption {
	return func(_ testing.TB, cfg *config.Config) {
		cfg.DefaultCommand = argv
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.LogDir)
}
