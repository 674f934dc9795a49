// Package magnet resolves magnet links into torrent files by fetching their
// metadata from the swarm.
package magnet

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/anacrolix/torrent"

	"torrentrss/internal/logging"
)

// Resolver fetches the metainfo behind magnet links so they can be handed
// to commands that only accept torrent files.
type Resolver struct {
	timeout time.Duration
	logger  *slog.Logger
}

// NewResolver builds a resolver bounded by timeout per magnet link.
func NewResolver(timeout time.Duration, logger *slog.Logger) *Resolver {
	return &Resolver{
		timeout: timeout,
		logger:  logging.NewComponentLogger(logger, "magnet"),
	}
}

// Resolve downloads the metadata for magnetURI and returns the bencoded
// torrent file contents.
func (r *Resolver) Resolve(ctx context.Context, magnetURI string) ([]byte, error) {
	if magnetURI == "" {
		return nil, fmt.Errorf("magnet uri is empty")
	}
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	scratch, err := os.MkdirTemp("", "torrentrss-magnet-")
	if err != nil {
		return nil, fmt.Errorf("create magnet scratch dir: %w", err)
	}
	defer os.RemoveAll(scratch)

	cfg := torrent.NewDefaultClientConfig()
	cfg.NoUpload = true
	cfg.DisablePEX = true
	cfg.DataDir = scratch
	// Ephemeral port so concurrent invocations do not collide.
	cfg.ListenPort = 0

	client, err := torrent.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("create torrent client: %w", err)
	}
	defer client.Close()

	t, err := client.AddMagnet(magnetURI)
	if err != nil {
		return nil, fmt.Errorf("add magnet: %w", err)
	}

	r.logger.Debug("fetching magnet metadata", logging.String(logging.FieldURL, magnetURI))

	select {
	case <-t.GotInfo():
	case <-ctx.Done():
		return nil, fmt.Errorf("fetch magnet metadata: %w", ctx.Err())
	}

	var buf bytes.Buffer
	mi := t.Metainfo()
	if err := mi.Write(&buf); err != nil {
		return nil, fmt.Errorf("encode metainfo: %w", err)
	}

	r.logger.Debug("magnet metadata resolved",
		logging.String("name", t.Name()),
		logging.Int("bytes", buf.Len()))
	return buf.Bytes(), nil
}
