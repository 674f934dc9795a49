package config

const (
	defaultLogDir                = "~/.local/share/torrentrss/logs"
	defaultDatabasePath          = "~/.local/share/torrentrss/history.db"
	defaultLockPath              = "~/.local/share/torrentrss/torrentrss.lock"
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
	defaultLogRetentionCount     = 10
	defaultNtfyURL               = "https://ntfy.sh"
	defaultNotifyRequestTimeout  = 10
	defaultFetchTimeoutSeconds   = 30
	defaultConvertTimeoutSeconds = 60
)

// Default returns a Config populated with repository defaults. Every link
// preference starts enabled; magnet conversion is opt-in.
func Default() Config {
	return Config{
		MagnetEnabled:         true,
		TorrentURLEnabled:     true,
		TorrentFileEnabled:    true,
		HideTorrentFilename:   true,
		FetchTimeoutSeconds:   defaultFetchTimeoutSeconds,
		ConvertTimeoutSeconds: defaultConvertTimeoutSeconds,
		Notifications: Notifications{
			NtfyURL:        defaultNtfyURL,
			RequestTimeout: defaultNotifyRequestTimeout,
		},
		Logging: Logging{
			Format:         defaultLogFormat,
			Level:          defaultLogLevel,
			RetentionCount: defaultLogRetentionCount,
		},
		Paths: Paths{
			LogDir:       defaultLogDir,
			DatabasePath: defaultDatabasePath,
			LockPath:     defaultLockPath,
		},
	}
}
