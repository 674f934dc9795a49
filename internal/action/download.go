package action

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"path/filepath"

	"torrentrss/internal/fileutil"
	"torrentrss/internal/textutil"
)

const torrentExt = ".torrent"

func (d *Dispatcher) download(ctx context.Context, url, userAgent string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build download request: %w", err)
	}
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download torrent: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("download torrent: unexpected status %s", resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read torrent body: %w", err)
	}
	return data, nil
}

// saveTorrent writes torrent data into dir under the configured naming
// scheme and returns the file path.
func (d *Dispatcher) saveTorrent(dir, title string, data []byte, hideName bool) (string, error) {
	path := filepath.Join(dir, torrentFileName(title, data, hideName))
	if err := fileutil.WriteFileAtomic(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write torrent file: %w", err)
	}
	return path, nil
}

// torrentFileName hides the entry title behind a digest of the contents
// when requested, otherwise sanitizes the title for the filesystem.
func torrentFileName(title string, data []byte, hideName bool) string {
	if hideName {
		sum := sha256.Sum256(data)
		return hex.EncodeToString(sum[:]) + torrentExt
	}
	return textutil.SanitizeFileName(title) + torrentExt
}
