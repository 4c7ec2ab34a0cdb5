package config

const (
	defaultConfigPath          = "~/.config/cardsync/config.toml"
	defaultCardServerURL       = "http://cardserver.local"
	defaultCardServerPort      = 80
	defaultCardServerUsername  = "CardServerUserLogin"
	defaultCardServerPassword  = "CardServerPassword"
	defaultRequestTimeout      = 10
	defaultDownloadTimeout     = 300
	defaultMaxResponseBytes    = 1000
	defaultStagingDir          = "~/.local/share/cardsync/cards"
	defaultLogDir              = "~/.local/share/cardsync/logs"
	defaultLogRetentionDays    = 30
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
	defaultAPIBind             = "127.0.0.1:7490"
	defaultAPIRequestsPerSec   = 5
	defaultAPIBurst            = 10
	defaultQueueCapacity       = 16
	defaultReconnectInterval   = 5
	defaultTickIntervalMillis  = 50
	defaultStoreBackend        = "sqlite"
	defaultRedisPrefix         = "cardsync"
	defaultTelemetryService    = "cardsync"
	defaultTelemetrySampleRate = 1.0
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		CardServer: CardServer{
			URL:              defaultCardServerURL,
			Port:             defaultCardServerPort,
			Username:         defaultCardServerUsername,
			Password:         defaultCardServerPassword,
			RequestTimeout:   defaultRequestTimeout,
			DownloadTimeout:  defaultDownloadTimeout,
			MaxResponseBytes: defaultMaxResponseBytes,
		},
		Paths: Paths{
			StagingDir: defaultStagingDir,
			LogDir:     defaultLogDir,
		},
		API: API{
			Bind:              defaultAPIBind,
			RequestsPerSecond: defaultAPIRequestsPerSec,
			Burst:             defaultAPIBurst,
		},
		Scanner: Scanner{
			QueueCapacity:     defaultQueueCapacity,
			ReconnectInterval: defaultReconnectInterval,
		},
		Resolver: Resolver{
			TickIntervalMillis: defaultTickIntervalMillis,
		},
		Store: Store{
			Backend:     defaultStoreBackend,
			RedisPrefix: defaultRedisPrefix,
		},
		Notifications: Notifications{
			RequestTimeout: 10,
			Errors:         true,
			Assignments:    true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
		Telemetry: Telemetry{
			SampleRate:  defaultTelemetrySampleRate,
			ServiceName: defaultTelemetryService,
		},
	}
}
