package action

import (
	"fmt"

	"torrentrss/internal/config"
	"torrentrss/internal/feed"
)

// Kind identifies which link preference selected an entry's target.
type Kind string

const (
	KindMagnet      Kind = "magnet"
	KindTorrentURL  Kind = "torrent_url"
	KindTorrentFile Kind = "torrent_file"
)

// Selection is the link chosen for a matched entry.
type Selection struct {
	Kind Kind
	URL  string
}

// Select picks an entry's link in preference order: magnet URI, torrent
// enclosure URL, then the entry's plain link treated as a torrent file.
// Disabled preferences are skipped; no candidate for the enabled ones is
// an error.
func Select(entry feed.Entry, prefs config.LinkPreferences) (Selection, error) {
	if prefs.Magnet && entry.MagnetURI != "" {
		return Selection{Kind: KindMagnet, URL: entry.MagnetURI}, nil
	}
	if prefs.TorrentURL && entry.TorrentURL != "" {
		return Selection{Kind: KindTorrentURL, URL: entry.TorrentURL}, nil
	}
	if prefs.TorrentFile && entry.Link != "" {
		return Selection{Kind: KindTorrentFile, URL: entry.Link}, nil
	}
	return Selection{}, fmt.Errorf("entry %q has no usable link for the enabled preferences", entry.Title)
}
