package config

import (
	"errors"
	"fmt"
	"maps"
	"regexp"
	"slices"
)

// EpisodeGroup is the capture group every subscription pattern must name;
// SeriesGroup is optional.
const (
	EpisodeGroup = "episode"
	SeriesGroup  = "series"
)

// Validate ensures the configuration is usable. It compiles every
// subscription pattern and stores the result for Regexp.
func (c *Config) Validate() error {
	if err := c.validateGlobals(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return c.validateFeeds()
}

func (c *Config) validateGlobals() error {
	if !c.MagnetEnabled && !c.TorrentURLEnabled && !c.TorrentFileEnabled {
		return errors.New("magnet_enabled, torrent_url_enabled, and torrent_file_enabled cannot all be disabled")
	}
	if c.FetchTimeoutSeconds <= 0 {
		return errors.New("fetch_timeout_seconds must be positive")
	}
	if c.ConvertTimeoutSeconds <= 0 {
		return errors.New("convert_timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	if c.Logging.RetentionCount < 0 {
		return errors.New("logging.retention_count must be >= 0")
	}
	return nil
}

func (c *Config) validateFeeds() error {
	if len(c.Feeds) == 0 {
		return errors.New("feeds must define at least one feed")
	}
	for _, name := range slices.Sorted(maps.Keys(c.Feeds)) {
		feed := c.Feeds[name]
		if feed.URL == "" {
			return fmt.Errorf("feeds.%s.url must be set", name)
		}
		prefs := c.PreferencesFor(feed)
		if !prefs.Magnet && !prefs.TorrentURL && !prefs.TorrentFile {
			return fmt.Errorf("feeds.%s disables every link preference", name)
		}
		if len(feed.Subscriptions) == 0 {
			return fmt.Errorf("feeds.%s.subscriptions must define at least one subscription", name)
		}
		for _, subName := range slices.Sorted(maps.Keys(feed.Subscriptions)) {
			sub := feed.Subscriptions[subName]
			if sub.Pattern == "" {
				return fmt.Errorf("feeds.%s.subscriptions.%s.pattern must be set", name, subName)
			}
			if err := sub.CompilePattern(); err != nil {
				return fmt.Errorf("feeds.%s.subscriptions.%s.%w", name, subName, err)
			}
		}
	}
	return nil
}

func hasGroup(re *regexp.Regexp, group string) bool {
	for _, name := range re.SubexpNames() {
		if name == group {
			return true
		}
	}
	return false
}
