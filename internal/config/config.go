package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	StateDir    string `toml:"state_dir"`
	LogDir      string `toml:"log_dir"`
	DownloadDir string `toml:"download_dir"`
	APIBind     string `toml:"api_bind"`
	APIToken    string `toml:"api_token"`
}

// YtDLP contains configuration for the external extractor subprocess.
type YtDLP struct {
	Binary string `toml:"binary"`
	// DownloadTimeout bounds a single download in seconds. Zero disables
	// the bound; downloads of large media can legitimately run for hours.
	DownloadTimeout int `toml:"download_timeout"`
}

// Providers contains endpoints and timeouts for the upload providers.
type Providers struct {
	FilemoonBaseURL string `toml:"filemoon_base_url"`
	FilesVCBaseURL  string `toml:"filesvc_base_url"`
	RequestTimeout  int    `toml:"request_timeout"`
	UploadTimeout   int    `toml:"upload_timeout"`
}

// Workflow contains daemon timing and concurrency knobs.
type Workflow struct {
	// IdlePollInterval is the sleep between scheduler passes that found no
	// work, in seconds. BusyPollInterval applies after a pass that
	// dispatched a download, an upload, or readiness checks.
	IdlePollInterval    int `toml:"idle_poll_interval"`
	BusyPollInterval    int `toml:"busy_poll_interval"`
	MaxConcurrentChecks int `toml:"max_concurrent_checks"`
	StopTimeout         int `toml:"stop_timeout"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Downloads      bool   `toml:"downloads"`
	Uploads        bool   `toml:"uploads"`
	Errors         bool   `toml:"errors"`
}

// Config encapsulates all configuration values for PermaVid.
//
// Sections by subsystem:
//   - Paths: state/log/download directories, API bind address and token
//   - YtDLP: extractor binary and timeout
//   - Providers: Filemoon and Files.vc endpoints and HTTP timeouts
//   - Workflow: scheduler polling intervals and readiness-check concurrency
//   - Logging: log format, level, and retention
//   - Notifications: optional ntfy topic and event toggles
type Config struct {
	Paths         Paths         `toml:"paths"`
	YtDLP         YtDLP         `toml:"ytdlp"`
	Providers     Providers     `toml:"providers"`
	Workflow      Workflow      `toml:"workflow"`
	Logging       Logging       `toml:"logging"`
	Notifications Notifications `toml:"notifications"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/permavid/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
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

	projectPath, err := filepath.Abs("permavid.toml")
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

// EnsureDirectories creates required directories for daemon operation.
// The download directory is created on a best-effort basis so the daemon can
// start when external storage is temporarily unavailable.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.DownloadDir) != "" {
		_ = os.MkdirAll(c.Paths.DownloadDir, 0o755)
	}
	return nil
}

// DatabasePath returns the queue database location inside the state directory.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.StateDir, "permavid.db")
}

// LogFilePath returns the daemon log file location.
func (c *Config) LogFilePath() string {
	return filepath.Join(c.Paths.LogDir, "permavid.log")
}

// LockFilePath returns the daemon singleton lock file location.
func (c *Config) LockFilePath() string {
	return filepath.Join(c.Paths.StateDir, "permavid.lock")
}

// YtDLPBinary returns the extractor executable name.
func (c *Config) YtDLPBinary() string {
	if bin := strings.TrimSpace(c.YtDLP.Binary); bin != "" {
		return bin
	}
	return defaultYtDLPBinary
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
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
