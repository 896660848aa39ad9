package config

import (
	"errors"
	"fmt"
	"strings"

	"beatshop/internal/textutil"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateCatalog(); err != nil {
		return err
	}
	if err := c.validateIngest(); err != nil {
		return err
	}
	if err := c.validatePreview(); err != nil {
		return err
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateCatalog() error {
	if len(c.Catalog.Categories) == 0 {
		return errors.New("catalog.categories must list at least one category")
	}
	for _, category := range c.Catalog.Categories {
		if !textutil.IsSlug(category) {
			return fmt.Errorf("catalog.categories: %q must be lowercase letters, digits, '-' or '_'", category)
		}
	}
	return nil
}

func (c *Config) validateIngest() error {
	if c.Ingest.SecretCode == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/beatshop/config.toml"
		}
		return fmt.Errorf("ingest.secret_code is required. Set BEATSHOP_SECRET_CODE env var or edit %s (create with 'beatshop config init')", defaultPath)
	}
	if c.Ingest.MaxUploadMB < 0 {
		return errors.New("ingest.max_upload_mb must be positive")
	}
	for _, ext := range c.Ingest.AllowedExtensions {
		if strings.ContainsAny(ext, `/\ .`) {
			return fmt.Errorf("ingest.allowed_extensions: invalid extension %q", ext)
		}
	}
	return nil
}

func (c *Config) validatePreview() error {
	p := c.Preview
	if p.DurationSeconds <= 0 {
		return errors.New("preview.duration_seconds must be positive")
	}
	if p.MaxDurationSeconds < p.DurationSeconds {
		return errors.New("preview.max_duration_seconds must be at least preview.duration_seconds")
	}
	if p.SampleRate < 8000 || p.SampleRate > 192000 {
		return errors.New("preview.sample_rate must be between 8000 and 192000")
	}
	if p.Channels != 1 && p.Channels != 2 {
		return errors.New("preview.channels must be 1 or 2")
	}
	if p.TimeoutSeconds <= 0 {
		return errors.New("preview.timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateStorage() error {
	switch c.Storage.Backend {
	case BackendLocal:
		if c.Storage.Local.Root == "" {
			return errors.New("storage.local.root must be set when storage.backend is local")
		}
	case BackendSQLite:
		if c.Storage.SQLite.Path == "" {
			return errors.New("storage.sqlite.path must be set when storage.backend is sqlite")
		}
	case BackendGCS:
		if c.Storage.GCS.Bucket == "" {
			return errors.New("storage.gcs.bucket must be set when storage.backend is gcs")
		}
	case BackendS3:
		if c.Storage.S3.Bucket == "" {
			return errors.New("storage.s3.bucket must be set when storage.backend is s3")
		}
		if (c.Storage.S3.AccessKeyID == "") != (c.Storage.S3.SecretAccessKey == "") {
			return errors.New("storage.s3.access_key_id and storage.s3.secret_access_key must be set together")
		}
	case BackendDrive:
		if c.Storage.Drive.CredentialsFile == "" {
			return errors.New("storage.drive.credentials_file must be set (or GOOGLE_APPLICATION_CREDENTIALS) when storage.backend is drive")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("storage.backend: unsupported value %q (want local, sqlite, gcs, s3, drive or memory)", c.Storage.Backend)
	}
	r := c.Storage.Retry
	if r.MaxAttempts < 1 {
		return errors.New("storage.retry.max_attempts must be at least 1")
	}
	if r.InitialIntervalMillis < 0 || r.MaxIntervalMillis < r.InitialIntervalMillis {
		return errors.New("storage.retry intervals must be non-negative and max >= initial")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	email := c.Notifications.Email
	if !email.Enabled {
		return nil
	}
	if email.Host == "" {
		return errors.New("notifications.email.host must be set when email is enabled")
	}
	if email.From == "" {
		return errors.New("notifications.email.from must be set when email is enabled")
	}
	if len(email.To) == 0 {
		return errors.New("notifications.email.to must list at least one recipient")
	}
	if email.Port <= 0 || email.Port > 65535 {
		return errors.New("notifications.email.port must be a valid TCP port")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
