package feed_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"torrentrss/internal/config"
	"torrentrss/internal/feed"
)

const rssDocument = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:torrent="https://example.org/ns/torrent/">
  <channel>
    <title>Example Releases</title>
    <link>https://example.com/</link>
    <item>
      <title>My Show S01E01 1080p</title>
      <link>https://example.com/my-show-s01e01</link>
      <enclosure url="https://example.com/my-show-s01e01.torrent" type="application/x-bittorrent" length="12345"/>
      <torrent:magnetURI>magnet:?xt=urn:btih:0123456789abcdef</torrent:magnetURI>
      <pubDate>Mon, 02 Jan 2006 15:04:05 GMT</pubDate>
    </item>
    <item>
      <title>My Show S01E02 1080p</title>
      <link>magnet:?xt=urn:btih:fedcba9876543210</link>
    </item>
    <item>
      <title>Plain Entry</title>
      <link>https://example.com/plain</link>
    </item>
  </channel>
</rss>`

func serveFeed(t *testing.T, document string) (*httptest.Server, *string) {
	t.Helper()
	var agent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		agent = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(document))
	}))
	t.Cleanup(server.Close)
	return server, &agent
}

func TestFetchParsesEntries(t *testing.T) {
	server, _ := serveFeed(t, rssDocument)

	cfg := config.Default()
	fetcher := feed.NewFetcherWithClient(&cfg, server.Client())
	entries, err := fetcher.Fetch(context.Background(), &config.Feed{URL: server.URL})
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}

	first := entries[0]
	if first.Title != "My Show S01E01 1080p" {
		t.Fatalf("unexpected title: %q", first.Title)
	}
	if first.MagnetURI != "magnet:?xt=urn:btih:0123456789abcdef" {
		t.Fatalf("expected magnet from namespace extension, got %q", first.MagnetURI)
	}
	if first.TorrentURL != "https://example.com/my-show-s01e01.torrent" {
		t.Fatalf("expected torrent enclosure URL, got %q", first.TorrentURL)
	}
	if first.Published.IsZero() {
		t.Fatal("expected published timestamp")
	}

	second := entries[1]
	if !strings.HasPrefix(second.MagnetURI, "magnet:") {
		t.Fatalf("expected magnet link detection, got %q", second.MagnetURI)
	}

	third := entries[2]
	if third.MagnetURI != "" || third.TorrentURL != "" {
		t.Fatalf("expected plain entry without candidates, got %+v", third)
	}
	if third.Link != "https://example.com/plain" {
		t.Fatalf("unexpected link: %q", third.Link)
	}
}

func TestFetchSendsConfiguredUserAgent(t *testing.T) {
	server, agent := serveFeed(t, rssDocument)

	cfg := config.Default()
	cfg.DefaultUserAgent = "global agent"
	fetcher := feed.NewFetcherWithClient(&cfg, server.Client())

	if _, err := fetcher.Fetch(context.Background(), &config.Feed{URL: server.URL, UserAgent: "feed agent"}); err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if *agent != "feed agent" {
		t.Fatalf("expected per-feed agent, got %q", *agent)
	}

	if _, err := fetcher.Fetch(context.Background(), &config.Feed{URL: server.URL}); err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if *agent != "global agent" {
		t.Fatalf("expected global agent fallback, got %q", *agent)
	}
}

func TestFetchDefaultUserAgent(t *testing.T) {
	server, agent := serveFeed(t, rssDocument)

	cfg := config.Default()
	fetcher := feed.NewFetcherWithClient(&cfg, server.Client())
	if _, err := fetcher.Fetch(context.Background(), &config.Feed{URL: server.URL}); err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if !strings.HasPrefix(*agent, "torrentrss/") {
		t.Fatalf("expected baked-in agent, got %q", *agent)
	}
}

func TestFetchReportsServerFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer server.Close()

	cfg := config.Default()
	fetcher := feed.NewFetcherWithClient(&cfg, server.Client())
	if _, err := fetcher.Fetch(context.Background(), &config.Feed{URL: server.URL}); err == nil {
		t.Fatal("expected error for failing feed")
	}
}

func TestFetchHonorsContextCancellation(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	cfg := config.Default()
	fetcher := feed.NewFetcherWithClient(&cfg, server.Client())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := fetcher.Fetch(ctx, &config.Feed{URL: server.URL})
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("fetch did not honor context deadline, took %v", elapsed)
	}
}

func TestFetchRejectsEmptyURL(t *testing.T) {
	cfg := config.Default()
	fetcher := feed.NewFetcher(&cfg)
	if _, err := fetcher.Fetch(context.Background(), &config.Feed{}); err == nil {
		t.Fatal("expected error for empty feed URL")
	}
}
