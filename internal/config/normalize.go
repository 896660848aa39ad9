package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeServer()
	c.normalizeCatalog()
	c.normalizeIngest()
	c.normalizePreview()
	if err := c.normalizeStorage(); err != nil {
		return err
	}
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeServer() {
	c.Server.Bind = strings.TrimSpace(c.Server.Bind)
	if c.Server.Bind == "" {
		c.Server.Bind = defaultBind
	}
	if c.Server.ReadTimeoutSeconds <= 0 {
		c.Server.ReadTimeoutSeconds = defaultReadTimeoutSeconds
	}
	if c.Server.WriteTimeoutSeconds <= 0 {
		c.Server.WriteTimeoutSeconds = defaultWriteTimeoutSeconds
	}
	if c.Server.IdleTimeoutSeconds <= 0 {
		c.Server.IdleTimeoutSeconds = defaultIdleTimeoutSeconds
	}
}

func (c *Config) normalizeCatalog() {
	c.Catalog.Categories = normalizeList(c.Catalog.Categories, "")
	if len(c.Catalog.Categories) == 0 {
		c.Catalog.Categories = defaultCategories()
	}
}

func (c *Config) normalizeIngest() {
	c.Ingest.AllowedExtensions = normalizeList(c.Ingest.AllowedExtensions, ".")
	if len(c.Ingest.AllowedExtensions) == 0 {
		c.Ingest.AllowedExtensions = defaultExtensions()
	}
	if c.Ingest.MaxUploadMB == 0 {
		c.Ingest.MaxUploadMB = defaultMaxUploadMB
	}
	if value, ok := os.LookupEnv("BEATSHOP_SECRET_CODE"); ok && value != "" {
		c.Ingest.SecretCode = value
	}
}

func (c *Config) normalizePreview() {
	if c.Preview.DurationSeconds == 0 {
		c.Preview.DurationSeconds = defaultPreviewSeconds
	}
	if c.Preview.MaxDurationSeconds == 0 {
		c.Preview.MaxDurationSeconds = defaultPreviewMaxSeconds
	}
	if c.Preview.SampleRate == 0 {
		c.Preview.SampleRate = defaultSampleRate
	}
	if c.Preview.Channels == 0 {
		c.Preview.Channels = defaultChannels
	}
	c.Preview.Bitrate = strings.ToLower(strings.TrimSpace(c.Preview.Bitrate))
	if c.Preview.Bitrate == "" {
		c.Preview.Bitrate = defaultBitrate
	}
	c.Preview.FFmpegBinary = strings.TrimSpace(c.Preview.FFmpegBinary)
	if c.Preview.FFmpegBinary == "" {
		c.Preview.FFmpegBinary = defaultFFmpegBinary
	}
	if c.Preview.TimeoutSeconds == 0 {
		c.Preview.TimeoutSeconds = defaultPreviewTimeoutSeconds
	}
}

func (c *Config) normalizeStorage() error {
	if value, ok := os.LookupEnv("BEATSHOP_STORAGE_BACKEND"); ok && strings.TrimSpace(value) != "" {
		c.Storage.Backend = value
	}
	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	if c.Storage.Backend == "" {
		c.Storage.Backend = BackendLocal
	}

	var err error
	if strings.TrimSpace(c.Storage.Local.Root) == "" {
		c.Storage.Local.Root = defaultLocalRoot
	}
	if c.Storage.Local.Root, err = expandPath(c.Storage.Local.Root); err != nil {
		return fmt.Errorf("storage.local.root: %w", err)
	}
	if strings.TrimSpace(c.Storage.SQLite.Path) == "" {
		c.Storage.SQLite.Path = defaultSQLitePath
	}
	if c.Storage.SQLite.Path, err = expandPath(c.Storage.SQLite.Path); err != nil {
		return fmt.Errorf("storage.sqlite.path: %w", err)
	}

	credentials, hasCredentialsEnv := os.LookupEnv("GOOGLE_APPLICATION_CREDENTIALS")
	credentials = strings.TrimSpace(credentials)
	hasCredentialsEnv = hasCredentialsEnv && credentials != ""

	c.Storage.GCS.Bucket = strings.TrimSpace(c.Storage.GCS.Bucket)
	c.Storage.GCS.Prefix = strings.Trim(strings.TrimSpace(c.Storage.GCS.Prefix), "/")
	c.Storage.GCS.Endpoint = strings.TrimSpace(c.Storage.GCS.Endpoint)
	if strings.TrimSpace(c.Storage.GCS.CredentialsFile) == "" && hasCredentialsEnv {
		c.Storage.GCS.CredentialsFile = credentials
	}
	if c.Storage.GCS.CredentialsFile, err = expandPath(strings.TrimSpace(c.Storage.GCS.CredentialsFile)); err != nil {
		return fmt.Errorf("storage.gcs.credentials_file: %w", err)
	}

	c.Storage.S3.Bucket = strings.TrimSpace(c.Storage.S3.Bucket)
	c.Storage.S3.Prefix = strings.Trim(strings.TrimSpace(c.Storage.S3.Prefix), "/")
	c.Storage.S3.Region = strings.TrimSpace(c.Storage.S3.Region)
	if c.Storage.S3.Region == "" {
		c.Storage.S3.Region = "auto"
	}
	c.Storage.S3.Endpoint = strings.TrimRight(strings.TrimSpace(c.Storage.S3.Endpoint), "/")
	if value, ok := os.LookupEnv("S3_ACCESS_KEY_ID"); ok && strings.TrimSpace(value) != "" {
		c.Storage.S3.AccessKeyID = strings.TrimSpace(value)
	}
	if value, ok := os.LookupEnv("S3_SECRET_ACCESS_KEY"); ok && strings.TrimSpace(value) != "" {
		c.Storage.S3.SecretAccessKey = strings.TrimSpace(value)
	}

	if strings.TrimSpace(c.Storage.Drive.CredentialsFile) == "" && hasCredentialsEnv {
		c.Storage.Drive.CredentialsFile = credentials
	}
	if c.Storage.Drive.CredentialsFile, err = expandPath(strings.TrimSpace(c.Storage.Drive.CredentialsFile)); err != nil {
		return fmt.Errorf("storage.drive.credentials_file: %w", err)
	}
	c.Storage.Drive.RootFolder = strings.TrimSpace(c.Storage.Drive.RootFolder)
	if c.Storage.Drive.RootFolder == "" {
		c.Storage.Drive.RootFolder = defaultDriveRootFolder
	}
	c.Storage.Drive.RootFolderID = strings.TrimSpace(c.Storage.Drive.RootFolderID)

	if c.Storage.Retry.MaxAttempts == 0 {
		c.Storage.Retry.MaxAttempts = defaultRetryAttempts
	}
	if c.Storage.Retry.InitialIntervalMillis == 0 {
		c.Storage.Retry.InitialIntervalMillis = defaultRetryInitialMillis
	}
	if c.Storage.Retry.MaxIntervalMillis == 0 {
		c.Storage.Retry.MaxIntervalMillis = defaultRetryMaxMillis
	}
	return nil
}

func (c *Config) normalizeNotifications() {
	if value, ok := os.LookupEnv("BEATSHOP_NTFY_TOPIC"); ok && strings.TrimSpace(value) != "" {
		c.Notifications.NtfyTopic = value
	}
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyTimeout
	}
	email := &c.Notifications.Email
	if value, ok := os.LookupEnv("BEATSHOP_SMTP_PASSWORD"); ok && value != "" {
		email.Password = value
	}
	email.Host = strings.TrimSpace(email.Host)
	email.Username = strings.TrimSpace(email.Username)
	email.From = strings.TrimSpace(email.From)
	if email.Port == 0 {
		email.Port = defaultSMTPPort
	}
	recipients := email.To[:0]
	for _, addr := range email.To {
		if addr = strings.TrimSpace(addr); addr != "" {
			recipients = append(recipients, addr)
		}
	}
	email.To = recipients
}

func (c *Config) normalizeLogging() {
	format := strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
		c.Logging.Format = "json"
	default:
		c.Logging.Format = format
	}
	level := strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if level == "" {
		level = defaultLogLevel
	}
	c.Logging.Level = level
}

// normalizeList lowercases, trims, strips the given prefix, and drops empty and
// duplicate entries while preserving order.
func normalizeList(values []string, trimPrefix string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		value = strings.ToLower(strings.TrimSpace(value))
		if trimPrefix != "" {
			value = strings.TrimPrefix(value, trimPrefix)
		}
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}
