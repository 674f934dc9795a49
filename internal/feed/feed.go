// Package feed fetches the configured RSS/Atom sources and extracts the
// release candidates matched against subscriptions.
package feed

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"torrentrss/internal/config"
	"torrentrss/internal/version"
)

// TorrentMIME is the enclosure media type marking a direct torrent link.
const TorrentMIME = "application/x-bittorrent"

const magnetScheme = "magnet:"

// Entry is one release parsed from a feed, reduced to the fields link
// selection needs.
type Entry struct {
	Title      string
	Link       string
	MagnetURI  string
	TorrentURL string
	Published  time.Time
}

// Fetcher downloads and parses feeds with per-feed user agents and a
// bounded timeout.
type Fetcher struct {
	cfg    *config.Config
	client *http.Client
}

// NewFetcher returns a Fetcher using the default HTTP transport.
func NewFetcher(cfg *config.Config) *Fetcher {
	return NewFetcherWithClient(cfg, &http.Client{})
}

// NewFetcherWithClient injects the HTTP client, for tests.
func NewFetcherWithClient(cfg *config.Config, client *http.Client) *Fetcher {
	return &Fetcher{cfg: cfg, client: client}
}

// Fetch downloads and parses one configured feed. The configured fetch
// timeout applies on top of the caller's context.
func (f *Fetcher) Fetch(ctx context.Context, feed *config.Feed) ([]Entry, error) {
	if feed == nil || strings.TrimSpace(feed.URL) == "" {
		return nil, errors.New("feed url is empty")
	}

	if timeout := f.cfg.FetchTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	parser := gofeed.NewParser()
	parser.UserAgent = f.userAgent(feed)
	parser.Client = f.client

	parsed, err := parser.ParseURLWithContext(feed.URL, ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}

	entries := make([]Entry, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		if item == nil {
			continue
		}
		entries = append(entries, entryFromItem(item))
	}
	return entries, nil
}

func (f *Fetcher) userAgent(feed *config.Feed) string {
	if agent := f.cfg.UserAgentFor(feed); agent != "" {
		return agent
	}
	return "torrentrss/" + version.Version
}

func entryFromItem(item *gofeed.Item) Entry {
	entry := Entry{
		Title:      item.Title,
		Link:       item.Link,
		MagnetURI:  magnetFromItem(item),
		TorrentURL: torrentURLFromItem(item),
	}
	if item.PublishedParsed != nil {
		entry.Published = *item.PublishedParsed
	} else if item.UpdatedParsed != nil {
		entry.Published = *item.UpdatedParsed
	}
	return entry
}

// magnetFromItem looks for a magnet URI in the torrent namespace extension,
// the enclosures, and the item links, in that order.
func magnetFromItem(item *gofeed.Item) string {
	for prefix, fields := range item.Extensions {
		if !strings.EqualFold(prefix, "torrent") {
			continue
		}
		for name, values := range fields {
			if !strings.EqualFold(name, "magnetURI") {
				continue
			}
			for _, value := range values {
				if candidate := strings.TrimSpace(value.Value); strings.HasPrefix(candidate, magnetScheme) {
					return candidate
				}
			}
		}
	}
	for _, enclosure := range item.Enclosures {
		if enclosure == nil {
			continue
		}
		if candidate := strings.TrimSpace(enclosure.URL); strings.HasPrefix(candidate, magnetScheme) {
			return candidate
		}
	}
	for _, link := range item.Links {
		if candidate := strings.TrimSpace(link); strings.HasPrefix(candidate, magnetScheme) {
			return candidate
		}
	}
	if candidate := strings.TrimSpace(item.Link); strings.HasPrefix(candidate, magnetScheme) {
		return candidate
	}
	return ""
}

// torrentURLFromItem returns the first enclosure with the torrent media
// type. Empty when the item has none; the selection falls back to the plain
// link then.
func torrentURLFromItem(item *gofeed.Item) string {
	for _, enclosure := range item.Enclosures {
		if enclosure == nil {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(enclosure.Type), TorrentMIME) && enclosure.URL != "" {
			return enclosure.URL
		}
	}
	return ""
}
