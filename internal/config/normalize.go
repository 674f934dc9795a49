package config

import (
	"fmt"
	"os"
	"strings"
)

// normalize fills defaults and expands path fields in place.
func (c *Config) normalize() error {
	if err := c.normalizeGlobals(); err != nil {
		return err
	}
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeNotifications()
	c.normalizeLogging()
	return c.normalizeFeeds()
}

func (c *Config) normalizeGlobals() error {
	var err error
	c.DefaultUserAgent = strings.TrimSpace(c.DefaultUserAgent)
	if strings.TrimSpace(c.DefaultDirectory) == "" {
		c.DefaultDirectory = os.TempDir()
	}
	if c.DefaultDirectory, err = expandPath(c.DefaultDirectory); err != nil {
		return fmt.Errorf("default_directory: %w", err)
	}
	if c.FetchTimeoutSeconds <= 0 {
		c.FetchTimeoutSeconds = defaultFetchTimeoutSeconds
	}
	if c.ConvertTimeoutSeconds <= 0 {
		c.ConvertTimeoutSeconds = defaultConvertTimeoutSeconds
	}
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.DatabasePath) == "" {
		c.Paths.DatabasePath = defaultDatabasePath
	}
	if c.Paths.DatabasePath, err = expandPath(c.Paths.DatabasePath); err != nil {
		return fmt.Errorf("paths.database_path: %w", err)
	}
	if strings.TrimSpace(c.Paths.LockPath) == "" {
		c.Paths.LockPath = defaultLockPath
	}
	if c.Paths.LockPath, err = expandPath(c.Paths.LockPath); err != nil {
		return fmt.Errorf("paths.lock_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyURL = strings.TrimSpace(c.Notifications.NtfyURL)
	if c.Notifications.NtfyURL == "" {
		c.Notifications.NtfyURL = defaultNtfyURL
	}
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	c.Notifications.PushbulletToken = strings.TrimSpace(c.Notifications.PushbulletToken)
	if c.Notifications.PushbulletToken == "" {
		if value, ok := os.LookupEnv("PUSHBULLET_TOKEN"); ok {
			c.Notifications.PushbulletToken = strings.TrimSpace(value)
		}
	}
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
}

func (c *Config) normalizeLogging() {
	format := strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if format != "json" {
		format = "console"
	}
	c.Logging.Format = format

	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	c.Logging.RetentionCount = max(c.Logging.RetentionCount, 0)
}

func (c *Config) normalizeFeeds() error {
	for name, feed := range c.Feeds {
		feed.URL = strings.TrimSpace(feed.URL)
		feed.UserAgent = strings.TrimSpace(feed.UserAgent)
		for subName, sub := range feed.Subscriptions {
			sub.Pattern = strings.TrimSpace(sub.Pattern)
			sub.Directory = strings.TrimSpace(sub.Directory)
			if sub.Directory != "" {
				expanded, err := expandPath(sub.Directory)
				if err != nil {
					return fmt.Errorf("feeds.%s.subscriptions.%s.directory: %w", name, subName, err)
				}
				sub.Directory = expanded
			}
		}
	}
	return nil
}
