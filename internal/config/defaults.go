package config

const (
	defaultConfigPath            = "~/.config/reelkeep/config.toml"
	defaultStateDir              = "~/.local/share/reelkeep"
	defaultLogDir                = "~/.local/share/reelkeep/logs"
	defaultAPIBind               = "127.0.0.1:7588"
	defaultEmbyRequestTimeout    = 60
	defaultTMDBLanguage          = "en-US"
	defaultTMDBBaseURL           = "https://api.themoviedb.org/3"
	defaultTMDBRequestsPerSecond = 20
	defaultReconcileBatchSize    = 50
	defaultReconcileConcurrency  = 5
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
			APIBind:  defaultAPIBind,
		},
		Emby: Emby{
			RequestTimeout: defaultEmbyRequestTimeout,
		},
		TMDB: TMDB{
			BaseURL:           defaultTMDBBaseURL,
			Language:          defaultTMDBLanguage,
			RequestsPerSecond: defaultTMDBRequestsPerSecond,
		},
		Reconcile: Reconcile{
			BatchSize:   defaultReconcileBatchSize,
			Concurrency: defaultReconcileConcurrency,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
