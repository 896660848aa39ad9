package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
}

// Server contains HTTP listener configuration.
type Server struct {
	Bind                string `toml:"bind"`
	ReadTimeoutSeconds  int    `toml:"read_timeout_seconds"`
	WriteTimeoutSeconds int    `toml:"write_timeout_seconds"`
	IdleTimeoutSeconds  int    `toml:"idle_timeout_seconds"`
}

// Catalog contains the fixed set of beat categories.
type Catalog struct {
	Categories []string `toml:"categories"`
}

// Ingest contains upload validation settings.
type Ingest struct {
	AllowedExtensions []string `toml:"allowed_extensions"`
	MaxUploadMB       int      `toml:"max_upload_mb"`
	SecretCode        string   `toml:"secret_code"`
}

// Preview contains preview clip extraction settings.
type Preview struct {
	DurationSeconds    int    `toml:"duration_seconds"`
	MaxDurationSeconds int    `toml:"max_duration_seconds"`
	SampleRate         int    `toml:"sample_rate"`
	Channels           int    `toml:"channels"`
	Bitrate            string `toml:"bitrate"`
	FFmpegBinary       string `toml:"ffmpeg_binary"`
	TimeoutSeconds     int    `toml:"timeout_seconds"`
}

// LocalStorage configures the filesystem binding.
type LocalStorage struct {
	Root string `toml:"root"`
}

// SQLiteStorage configures the single-file database binding.
type SQLiteStorage struct {
	Path string `toml:"path"`
}

// GCSStorage configures the Google Cloud Storage binding.
type GCSStorage struct {
	Bucket          string `toml:"bucket"`
	Prefix          string `toml:"prefix"`
	CredentialsFile string `toml:"credentials_file"`
	Endpoint        string `toml:"endpoint"`
}

// S3Storage configures the S3-compatible binding (AWS, Cloudflare R2, MinIO).
type S3Storage struct {
	Bucket          string `toml:"bucket"`
	Prefix          string `toml:"prefix"`
	Region          string `toml:"region"`
	Endpoint        string `toml:"endpoint"`
	AccessKeyID     string `toml:"access_key_id"`
	SecretAccessKey string `toml:"secret_access_key"`
	UsePathStyle    bool   `toml:"use_path_style"`
}

// DriveStorage configures the Google Drive binding.
type DriveStorage struct {
	CredentialsFile string `toml:"credentials_file"`
	RootFolder      string `toml:"root_folder"`
	RootFolderID    string `toml:"root_folder_id"`
}

// Retry configures backoff for remote storage bindings.
type Retry struct {
	MaxAttempts           int `toml:"max_attempts"`
	InitialIntervalMillis int `toml:"initial_interval_millis"`
	MaxIntervalMillis     int `toml:"max_interval_millis"`
}

// Storage selects and configures the storage backend.
type Storage struct {
	Backend string       `toml:"backend"`
	Local   LocalStorage  `toml:"local"`
	SQLite  SQLiteStorage `toml:"sqlite"`
	GCS     GCSStorage    `toml:"gcs"`
	S3      S3Storage     `toml:"s3"`
	Drive   DriveStorage  `toml:"drive"`
	Retry   Retry         `toml:"retry"`
}

// Email contains SMTP settings for upload notifications.
type Email struct {
	Enabled  bool     `toml:"enabled"`
	Host     string   `toml:"host"`
	Port     int      `toml:"port"`
	Username string   `toml:"username"`
	Password string   `toml:"password"`
	From     string   `toml:"from"`
	To       []string `toml:"to"`
	TLS      bool     `toml:"tls"`
}

// Notifications contains configuration for operator notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Uploads        bool   `toml:"uploads"`
	Errors         bool   `toml:"errors"`
	Email          Email  `toml:"email"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for beatshop.
//
// Configuration sections by subsystem:
//   - Paths: data and log directories
//   - Server: HTTP bind address and timeouts
//   - Catalog: the fixed category set
//   - Ingest: upload allow-list, size ceiling and secret code
//   - Preview: clip duration and encoder parameters
//   - Storage: backend selection and per-backend settings
//   - Notifications: ntfy and email settings
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Server        Server        `toml:"server"`
	Catalog       Catalog       `toml:"catalog"`
	Ingest        Ingest        `toml:"ingest"`
	Preview       Preview       `toml:"preview"`
	Storage       Storage       `toml:"storage"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/beatshop/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("beatshop.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the data and log directories plus the parent of
// the selected on-disk storage location.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.DataDir, c.Paths.LogDir}
	switch c.Storage.Backend {
	case BackendLocal:
		dirs = append(dirs, c.Storage.Local.Root)
	case BackendSQLite:
		dirs = append(dirs, filepath.Dir(c.Storage.SQLite.Path))
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// MaxUploadBytes returns the upload ceiling in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.Ingest.MaxUploadMB) * 1024 * 1024
}

// PreviewTimeout returns the per-extraction deadline.
func (c *Config) PreviewTimeout() time.Duration {
	return time.Duration(c.Preview.TimeoutSeconds) * time.Second
}

// FFmpegBinary returns the ffmpeg executable used for preview extraction.
func (c *Config) FFmpegBinary() string {
	if bin := strings.TrimSpace(c.Preview.FFmpegBinary); bin != "" {
		return bin
	}
	return defaultFFmpegBinary
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
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
	if err := os.WriteFile(path, []byte(sampleConfig), 0o600); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
