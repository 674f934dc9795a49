// Package action turns matched feed entries into their configured handoff:
// link selection, optional torrent download or magnet conversion, then a
// command invocation or the platform opener.
package action

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"torrentrss/internal/config"
	"torrentrss/internal/deps"
	"torrentrss/internal/feed"
	"torrentrss/internal/logging"
	"torrentrss/internal/magnet"
)

// Actions recorded per dispatched entry.
const (
	ActionCommand = "command"
	ActionOpen    = "open"
)

// Resolver converts magnet URIs into torrent file contents.
type Resolver interface {
	Resolve(ctx context.Context, magnetURI string) ([]byte, error)
}

// Result records what Dispatch did with an entry.
type Result struct {
	Selection Selection
	Action    string
	Target    string
}

// Dispatcher executes the configured action for matched entries.
type Dispatcher struct {
	cfg      *config.Config
	client   *http.Client
	resolver Resolver
	logger   *slog.Logger
}

// NewDispatcher builds a dispatcher for cfg. A magnet resolver is wired
// only when magnet conversion is enabled.
func NewDispatcher(cfg *config.Config, logger *slog.Logger) *Dispatcher {
	d := &Dispatcher{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.FetchTimeout()},
		logger: logging.NewComponentLogger(logger, "action"),
	}
	if cfg.ConvertMagnetEnabled {
		d.resolver = magnet.NewResolver(cfg.ConvertTimeout(), logger)
	}
	return d
}

// Dispatch selects the entry's link and hands it off. Any failure is an
// error scoped to this entry; earlier entries are unaffected.
func (d *Dispatcher) Dispatch(ctx context.Context, f *config.Feed, sub *config.Subscription, entry feed.Entry) (Result, error) {
	prefs := d.cfg.PreferencesFor(f)
	sel, err := Select(entry, prefs)
	if err != nil {
		return Result{}, err
	}
	res := Result{Selection: sel}

	dir := d.cfg.DirectoryFor(sub)
	userAgent := d.cfg.UserAgentFor(f)
	target := sel.URL

	switch {
	case sel.Kind == KindMagnet && d.cfg.ConvertMagnetEnabled:
		data, err := d.resolver.Resolve(ctx, sel.URL)
		if err != nil {
			return res, fmt.Errorf("convert magnet: %w", err)
		}
		target, err = d.saveTorrent(dir, entry.Title, data, prefs.HideFilename)
		if err != nil {
			return res, err
		}
	case sel.Kind == KindTorrentFile:
		// The plain link is the torrent file itself; fetch it up front.
		data, err := d.download(ctx, sel.URL, userAgent)
		if err != nil {
			return res, err
		}
		target, err = d.saveTorrent(dir, entry.Title, data, prefs.HideFilename)
		if err != nil {
			return res, err
		}
	}

	if command := d.cfg.CommandFor(sub); len(command) > 0 {
		args := substituteCommand(command, target)
		d.logger.Debug("executing command",
			logging.String("command", args[0]),
			logging.String("target", target))
		if err := runArgv(ctx, args); err != nil {
			return res, fmt.Errorf("execute command: %w", err)
		}
		res.Action = ActionCommand
		res.Target = target
		return res, nil
	}

	// No command configured: open with the platform default application.
	// Torrent URLs are fetched first so the opener receives a file; magnet
	// URIs go to the opener as-is.
	if sel.Kind == KindTorrentURL && target == sel.URL {
		data, err := d.download(ctx, sel.URL, userAgent)
		if err != nil {
			return res, err
		}
		target, err = d.saveTorrent(dir, entry.Title, data, prefs.HideFilename)
		if err != nil {
			return res, err
		}
	}

	opener := deps.OpenerCommand()
	d.logger.Debug("opening target",
		logging.String("opener", opener),
		logging.String("target", target))
	if err := runArgv(ctx, []string{opener, target}); err != nil {
		return res, fmt.Errorf("open target: %w", err)
	}
	res.Action = ActionOpen
	res.Target = target
	return res, nil
}
