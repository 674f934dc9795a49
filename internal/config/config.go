package config

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed config.schema.json
var schemaJSON string

//go:embed sample_config.json
var sampleConfig string

var configSchema = jsonschema.MustCompileString("config.schema.json", schemaJSON)

// Paths contains filesystem locations for logs, history, and locking.
type Paths struct {
	LogDir       string `json:"log_dir,omitempty"`
	DatabasePath string `json:"database_path,omitempty"`
	LockPath     string `json:"lock_path,omitempty"`
}

// Notifications contains configuration for failure notifications. All
// backends are best-effort; leaving every field empty disables them.
type Notifications struct {
	DesktopEnabled  bool   `json:"desktop_enabled,omitempty"`
	NtfyURL         string `json:"ntfy_url,omitempty"`
	NtfyTopic       string `json:"ntfy_topic,omitempty"`
	PushbulletToken string `json:"pushbullet_token,omitempty"`
	RequestTimeout  int    `json:"request_timeout,omitempty"`
}

// NtfyEndpoint joins the ntfy server URL and topic into the publish URL.
// Empty when no topic is configured. A topic that already looks like a full
// URL is used as-is.
func (n Notifications) NtfyEndpoint() string {
	if n.NtfyTopic == "" {
		return ""
	}
	if strings.Contains(n.NtfyTopic, "://") {
		return n.NtfyTopic
	}
	return strings.TrimSuffix(n.NtfyURL, "/") + "/" + n.NtfyTopic
}

// Logging contains configuration for log output.
type Logging struct {
	Level          string `json:"level,omitempty"`
	Format         string `json:"format,omitempty"`
	RetentionCount int    `json:"retention_count,omitempty"`
}

// Subscription tracks one show inside a feed. SeriesNumber and EpisodeNumber
// hold the last-seen release and are the only fields mutated at runtime;
// Save writes them back to the configuration file.
type Subscription struct {
	Pattern       string   `json:"pattern"`
	SeriesNumber  *int     `json:"series_number,omitempty"`
	EpisodeNumber *int     `json:"episode_number,omitempty"`
	Directory     string   `json:"directory,omitempty"`
	Command       []string `json:"command,omitempty"`
	Enabled       *bool    `json:"enabled,omitempty"`

	regex *regexp.Regexp
}

// IsEnabled reports whether the subscription participates in runs. Absent
// means enabled.
func (s *Subscription) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// Regexp returns the pattern compiled during Validate.
func (s *Subscription) Regexp() *regexp.Regexp {
	return s.regex
}

// CompilePattern compiles Pattern and caches the result for Regexp. The
// pattern must contain a named episode capture group. Validate calls this
// for every subscription; it is exported for configurations built in code.
func (s *Subscription) CompilePattern() error {
	re, err := regexp.Compile(s.Pattern)
	if err != nil {
		return fmt.Errorf("pattern: %w", err)
	}
	if !hasGroup(re, EpisodeGroup) {
		return fmt.Errorf("pattern must contain an (?P<%s>...) capture group", EpisodeGroup)
	}
	s.regex = re
	return nil
}

// Feed is one RSS or Atom source plus the subscriptions matched against it.
// The link preference toggles override the global ones when set.
type Feed struct {
	URL                 string                   `json:"url"`
	UserAgent           string                   `json:"user_agent,omitempty"`
	Enabled             *bool                    `json:"enabled,omitempty"`
	MagnetEnabled       *bool                    `json:"magnet_enabled,omitempty"`
	TorrentURLEnabled   *bool                    `json:"torrent_url_enabled,omitempty"`
	TorrentFileEnabled  *bool                    `json:"torrent_file_enabled,omitempty"`
	HideTorrentFilename *bool                    `json:"hide_torrent_filename_enabled,omitempty"`
	Subscriptions       map[string]*Subscription `json:"subscriptions"`
}

// IsEnabled reports whether the feed participates in runs. Absent means
// enabled.
func (f *Feed) IsEnabled() bool {
	return f.Enabled == nil || *f.Enabled
}

// LinkPreferences is the resolved set of link selection toggles for one feed.
type LinkPreferences struct {
	Magnet       bool
	TorrentURL   bool
	TorrentFile  bool
	HideFilename bool
}

// Config encapsulates all configuration values for torrentrss.
//
// Configuration sections:
//   - global defaults: download directory, command, user agent, and the
//     link preference toggles inherited by every feed
//   - Notifications: failure notification backends
//   - Logging: log format, level, and per-run file retention
//   - Paths: log directory, history database, and run lock locations
//   - Feeds: named feeds, each with named subscriptions
type Config struct {
	DefaultDirectory string   `json:"default_directory,omitempty"`
	DefaultCommand   []string `json:"default_command,omitempty"`
	DefaultUserAgent string   `json:"default_user_agent,omitempty"`

	MagnetEnabled        bool `json:"magnet_enabled"`
	TorrentURLEnabled    bool `json:"torrent_url_enabled"`
	TorrentFileEnabled   bool `json:"torrent_file_enabled"`
	HideTorrentFilename  bool `json:"hide_torrent_filename_enabled"`
	ConvertMagnetEnabled bool `json:"convert_magnet_enabled,omitempty"`

	FetchTimeoutSeconds   int `json:"fetch_timeout_seconds,omitempty"`
	ConvertTimeoutSeconds int `json:"convert_timeout_seconds,omitempty"`

	Notifications Notifications `json:"notifications,omitempty"`
	Logging       Logging       `json:"logging,omitempty"`
	Paths         Paths         `json:"paths,omitempty"`

	Feeds map[string]*Feed `json:"feeds"`

	// raw is the decoded configuration document as read from disk; Save
	// mutates only the last-seen number fields inside it.
	raw map[string]any
}

// DefaultConfigPath returns the absolute path to the default configuration
// file location.
func DefaultConfigPath() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve user config directory: %w", err)
	}
	return filepath.Join(base, "torrentrss", "config.json"), nil
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded, subscription patterns compiled, and
// defaults applied. When no file exists at the resolved location the
// defaults are returned with exists set to false; callers that need a real
// configuration must check exists.
func Load(path string) (*Config, string, bool, error) {
	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	cfg := Default()
	if exists {
		data, err := os.ReadFile(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("read config: %w", err)
		}

		var raw any
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
		if err := configSchema.Validate(raw); err != nil {
			return nil, "", false, fmt.Errorf("config does not match schema: %w", err)
		}
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, "", false, fmt.Errorf("decode config: %w", err)
		}
		if rawMap, ok := raw.(map[string]any); ok {
			cfg.raw = rawMap
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if exists {
		if err := cfg.Validate(); err != nil {
			return nil, "", false, err
		}
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path == "" {
		path = strings.TrimSpace(os.Getenv("TORRENTRSS_CONFIG"))
	}
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return "", false, err
		}
		info, err := os.Stat(defaultPath)
		return defaultPath, err == nil && !info.IsDir(), nil
	}

	expanded, err := expandPath(path)
	if err != nil {
		return "", false, err
	}
	switch _, statErr := os.Stat(expanded); {
	case statErr == nil:
		return expanded, true, nil
	case errors.Is(statErr, fs.ErrNotExist):
		return expanded, false, nil
	default:
		return "", false, fmt.Errorf("stat config: %w", statErr)
	}
}

// Schema returns the JSON Schema the configuration file is validated
// against.
func Schema() string {
	return schemaJSON
}

// PreferencesFor resolves the link preference toggles for a feed, falling
// back to the global toggles for any the feed leaves unset.
func (c *Config) PreferencesFor(feed *Feed) LinkPreferences {
	prefs := LinkPreferences{
		Magnet:       c.MagnetEnabled,
		TorrentURL:   c.TorrentURLEnabled,
		TorrentFile:  c.TorrentFileEnabled,
		HideFilename: c.HideTorrentFilename,
	}
	if feed == nil {
		return prefs
	}
	if feed.MagnetEnabled != nil {
		prefs.Magnet = *feed.MagnetEnabled
	}
	if feed.TorrentURLEnabled != nil {
		prefs.TorrentURL = *feed.TorrentURLEnabled
	}
	if feed.TorrentFileEnabled != nil {
		prefs.TorrentFile = *feed.TorrentFileEnabled
	}
	if feed.HideTorrentFilename != nil {
		prefs.HideFilename = *feed.HideTorrentFilename
	}
	return prefs
}

// UserAgentFor returns the user agent for a feed, falling back to the global
// default. Empty when neither is configured; the fetcher applies its own
// baked-in agent then.
func (c *Config) UserAgentFor(feed *Feed) string {
	if feed != nil && feed.UserAgent != "" {
		return feed.UserAgent
	}
	return c.DefaultUserAgent
}

// DirectoryFor returns the download directory for a subscription, falling
// back to the global default.
func (c *Config) DirectoryFor(sub *Subscription) string {
	if sub != nil && sub.Directory != "" {
		return sub.Directory
	}
	return c.DefaultDirectory
}

// CommandFor returns the command argv for a subscription, falling back to
// the global default. Nil when neither is configured.
func (c *Config) CommandFor(sub *Subscription) []string {
	if sub != nil && len(sub.Command) > 0 {
		return sub.Command
	}
	if len(c.DefaultCommand) > 0 {
		return c.DefaultCommand
	}
	return nil
}

// FetchTimeout bounds a single feed fetch.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutSeconds) * time.Second
}

// ConvertTimeout bounds a single magnet metadata resolution.
func (c *Config) ConvertTimeout() time.Duration {
	return time.Duration(c.ConvertTimeoutSeconds) * time.Second
}

// EnsureDirectories creates the directories runs depend on. The default
// download directory is created on a best-effort basis so a run can start
// when external storage is temporarily unavailable.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Paths.LogDir,
		filepath.Dir(c.Paths.DatabasePath),
		filepath.Dir(c.Paths.LockPath),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.DefaultDirectory) != "" {
		// Best-effort so config load survives offline download storage.
		_ = os.MkdirAll(c.DefaultDirectory, 0o755)
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if rest, ok := strings.CutPrefix(pathValue, "~"); ok {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		switch {
		case rest == "":
			pathValue = home
		case rest[0] == '/' || rest[0] == '\\':
			pathValue = filepath.Join(home, rest[1:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}

// ExpandPath resolves a leading ~ and relative segments into an absolute
// path, the same way configuration path fields are expanded.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
