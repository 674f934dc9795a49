package action

import (
	"strings"
	"testing"

	"torrentrss/internal/config"
	"torrentrss/internal/feed"
)

func allPrefs() config.LinkPreferences {
	return config.LinkPreferences{Magnet: true, TorrentURL: true, TorrentFile: true, HideFilename: true}
}

func TestSelectPrefersMagnet(t *testing.T) {
	entry := feed.Entry{
		Title:      "My Show S01E01",
		Link:       "https://example.com/page",
		MagnetURI:  "magnet:?xt=urn:btih:abc",
		TorrentURL: "https://example.com/file.torrent",
	}

	sel, err := Select(entry, allPrefs())
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if sel.Kind != KindMagnet || sel.URL != entry.MagnetURI {
		t.Fatalf("expected magnet selection, got %#v", sel)
	}
}

func TestSelectFallsBackToTorrentURL(t *testing.T) {
	entry := feed.Entry{
		Title:      "My Show S01E01",
		Link:       "https://example.com/page",
		TorrentURL: "https://example.com/file.torrent",
	}

	sel, err := Select(entry, allPrefs())
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if sel.Kind != KindTorrentURL || sel.URL != entry.TorrentURL {
		t.Fatalf("expected torrent URL selection, got %#v", sel)
	}
}

func TestSelectFallsBackToPlainLink(t *testing.T) {
	entry := feed.Entry{
		Title: "My Show S01E01",
		Link:  "https://example.com/file.torrent",
	}

	sel, err := Select(entry, allPrefs())
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if sel.Kind != KindTorrentFile || sel.URL != entry.Link {
		t.Fatalf("expected plain link selection, got %#v", sel)
	}
}

func TestSelectHonorsDisabledPreferences(t *testing.T) {
	entry := feed.Entry{
		Title:     "My Show S01E01",
		Link:      "https://example.com/page",
		MagnetURI: "magnet:?xt=urn:btih:abc",
	}
	prefs := config.LinkPreferences{TorrentFile: true}

	sel, err := Select(entry, prefs)
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if sel.Kind != KindTorrentFile || sel.URL != entry.Link {
		t.Fatalf("expected plain link when magnet disabled, got %#v", sel)
	}
}

func TestSelectNoCandidate(t *testing.T) {
	entry := feed.Entry{Title: "My Show S01E01"}

	_, err := Select(entry, allPrefs())
	if err == nil {
		t.Fatal("expected error for entry without links")
	}
	if !strings.Contains(err.Error(), "no usable link") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSelectMagnetOnlyPreference(t *testing.T) {
	entry := feed.Entry{
		Title:      "My Show S01E01",
		Link:       "https://example.com/page",
		TorrentURL: "https://example.com/file.torrent",
	}
	prefs := config.LinkPreferences{Magnet: true}

	if _, err := Select(entry, prefs); err == nil {
		t.Fatal("expected error when only magnet is enabled and entry has none")
	}
}
