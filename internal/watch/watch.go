// Package watch repeats polling passes on an in-process schedule for hosts
// without cron, reloading the configuration file when it changes on disk.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"

	"torrentrss/internal/config"
	"torrentrss/internal/errs"
	"torrentrss/internal/logging"
	"torrentrss/internal/notifications"
	"torrentrss/internal/runner"
)

// DefaultInterval is the schedule applied when neither --every nor --cron
// is given.
const DefaultInterval = 30 * time.Minute

// reloadDebounce coalesces the event bursts editors produce on save.
const reloadDebounce = 500 * time.Millisecond

// Options selects the schedule. Cron wins over Every when both are set.
type Options struct {
	Every time.Duration
	Cron  string
}

// Service owns the scheduler, the config watcher, and the current runner.
type Service struct {
	opts       Options
	configPath string
	baseLogger *slog.Logger
	logger     *slog.Logger

	mu       sync.Mutex
	runner   *runner.Runner
	notifier notifications.Service
}

// New builds a watch service around an already loaded configuration.
func New(cfg *config.Config, configPath string, logger *slog.Logger, opts Options) *Service {
	return &Service{
		opts:       opts,
		configPath: configPath,
		baseLogger: logger,
		logger:     logging.NewComponentLogger(logger, "watch"),
		runner:     runner.New(cfg, configPath, logger),
		notifier:   notifications.NewService(cfg, logger),
	}
}

// Run executes passes on the configured schedule until ctx is cancelled,
// then waits for an in-flight pass to unwind. The first pass starts
// immediately.
func (s *Service) Run(ctx context.Context) error {
	defer s.closeRunner()

	spec := scheduleSpec(s.opts)
	clog := cronLogger{logger: s.logger}
	scheduler := cron.New(
		cron.WithLogger(clog),
		cron.WithChain(cron.SkipIfStillRunning(clog)),
	)
	if _, err := scheduler.AddFunc(spec, func() { s.pass(ctx) }); err != nil {
		return errs.Wrap(errs.ErrConfiguration, "", "", fmt.Sprintf("invalid schedule %q", spec), err)
	}

	go s.watchConfig(ctx)

	s.logger.Info("watch started",
		logging.String("schedule", spec),
		logging.String("config", s.configPath))

	s.pass(ctx)

	scheduler.Start()
	<-ctx.Done()

	s.logger.Info("watch shutting down")
	<-scheduler.Stop().Done()
	return nil
}

func (s *Service) pass(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	s.mu.Lock()
	r := s.runner
	s.mu.Unlock()
	if r == nil {
		return
	}

	if _, err := r.Run(ctx); err != nil {
		s.logger.Error("scheduled pass failed", logging.Error(err))
	}
}

// watchConfig watches the directory rather than the file: editors and the
// atomic write-back replace the file, which drops a file-level watch.
func (s *Service) watchConfig(ctx context.Context) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		s.logger.Warn("config watch unavailable, edits need a restart", logging.Error(err))
		return
	}
	defer watcher.Close()

	dir := filepath.Dir(s.configPath)
	if err := watcher.Add(dir); err != nil {
		s.logger.Warn("config watch unavailable, edits need a restart",
			logging.String("dir", dir), logging.Error(err))
		return
	}

	debounce := time.NewTimer(reloadDebounce)
	if !debounce.Stop() {
		<-debounce.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != s.configPath {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			debounce.Reset(reloadDebounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			s.logger.Warn("config watcher error", logging.Error(err))
		case <-debounce.C:
			s.reload(ctx)
		}
	}
}

// reload swaps in a freshly loaded configuration. A file that fails to
// load keeps the previous configuration in service.
func (s *Service) reload(ctx context.Context) {
	cfg, _, exists, err := config.Load(s.configPath)
	if err == nil && !exists {
		err = fmt.Errorf("configuration file missing")
	}
	if err != nil {
		wrapped := errs.Wrap(errs.ErrConfiguration, "", "", "reload configuration", err)
		s.logger.Error("configuration reload failed, keeping the previous configuration",
			logging.String("path", s.configPath),
			logging.Error(wrapped))
		s.publish(ctx, notifications.ConfigurationInvalid(s.configPath, err))
		return
	}

	next := runner.New(cfg, s.configPath, s.baseLogger)
	s.mu.Lock()
	if s.runner == nil {
		// Shut down while the reload was in flight.
		s.mu.Unlock()
		_ = next.Close()
		return
	}
	previous := s.runner
	s.runner = next
	s.notifier = notifications.NewService(cfg, s.baseLogger)
	s.mu.Unlock()
	_ = previous.Close()

	s.logger.Info("configuration reloaded", logging.String("path", s.configPath))
}

func (s *Service) publish(ctx context.Context, n notifications.Notification) {
	s.mu.Lock()
	notifier := s.notifier
	s.mu.Unlock()
	if err := notifier.Publish(ctx, n); err != nil {
		s.logger.Warn("publish notification", logging.Error(err))
	}
}

func (s *Service) closeRunner() {
	s.mu.Lock()
	r := s.runner
	s.runner = nil
	s.mu.Unlock()
	if r != nil {
		_ = r.Close()
	}
}

func scheduleSpec(opts Options) string {
	if expr := strings.TrimSpace(opts.Cron); expr != "" {
		return expr
	}
	every := opts.Every
	if every <= 0 {
		every = DefaultInterval
	}
	return "@every " + every.String()
}

// cronLogger adapts slog to the cron logger contract. Scheduler chatter
// stays at debug; skip-if-still-running reports come through Info.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, logging.Error(err))...)
}
