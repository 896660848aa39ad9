package config

// Storage backend identifiers accepted by storage.backend.
const (
	BackendLocal  = "local"
	BackendGCS    = "gcs"
	BackendS3     = "s3"
	BackendDrive  = "drive"
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

const (
	defaultDataDir               = "~/.local/share/beatshop"
	defaultLogDir                = "~/.local/share/beatshop/logs"
	defaultLocalRoot             = "~/.local/share/beatshop/beats"
	defaultSQLitePath            = "~/.local/share/beatshop/beats.db"
	defaultBind                  = "127.0.0.1:8484"
	defaultReadTimeoutSeconds    = 60
	defaultWriteTimeoutSeconds   = 120
	defaultIdleTimeoutSeconds    = 120
	defaultMaxUploadMB           = 50
	defaultPreviewSeconds        = 30
	defaultPreviewMaxSeconds     = 300
	defaultSampleRate            = 44100
	defaultChannels              = 2
	defaultBitrate               = "128k"
	defaultFFmpegBinary          = "ffmpeg"
	defaultPreviewTimeoutSeconds = 60
	defaultDriveRootFolder       = "beats"
	defaultRetryAttempts         = 4
	defaultRetryInitialMillis    = 200
	defaultRetryMaxMillis        = 2000
	defaultNotifyTimeout         = 10
	defaultSMTPPort              = 587
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
)

func defaultCategories() []string {
	return []string{"rap", "afro", "rnb"}
}

func defaultExtensions() []string {
	return []string{"mp3", "wav", "zip", "flac"}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Server: Server{
			Bind:                defaultBind,
			ReadTimeoutSeconds:  defaultReadTimeoutSeconds,
			WriteTimeoutSeconds: defaultWriteTimeoutSeconds,
			IdleTimeoutSeconds:  defaultIdleTimeoutSeconds,
		},
		Catalog: Catalog{
			Categories: defaultCategories(),
		},
		Ingest: Ingest{
			AllowedExtensions: defaultExtensions(),
			MaxUploadMB:       defaultMaxUploadMB,
		},
		Preview: Preview{
			DurationSeconds:    defaultPreviewSeconds,
			MaxDurationSeconds: defaultPreviewMaxSeconds,
			SampleRate:         defaultSampleRate,
			Channels:           defaultChannels,
			Bitrate:            defaultBitrate,
			FFmpegBinary:       defaultFFmpegBinary,
			TimeoutSeconds:     defaultPreviewTimeoutSeconds,
		},
		Storage: Storage{
			Backend: BackendLocal,
			Local:   LocalStorage{Root: defaultLocalRoot},
			SQLite:  SQLiteStorage{Path: defaultSQLitePath},
			Drive:   DriveStorage{RootFolder: defaultDriveRootFolder},
			Retry: Retry{
				MaxAttempts:           defaultRetryAttempts,
				InitialIntervalMillis: defaultRetryInitialMillis,
				MaxIntervalMillis:     defaultRetryMaxMillis,
			},
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			Uploads:        true,
			Errors:         true,
			Email: Email{
				Port: defaultSMTPPort,
				TLS:  true,
			},
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
