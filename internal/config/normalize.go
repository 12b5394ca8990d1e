package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeYtDLP()
	c.normalizeProviders()
	c.normalizeWorkflow()
	c.normalizeLogging()
	c.normalizeNotifications()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.DownloadDir) == "" {
		c.Paths.DownloadDir = defaultDownloadDir
	}
	if c.Paths.DownloadDir, err = expandPath(c.Paths.DownloadDir); err != nil {
		return fmt.Errorf("paths.download_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	return nil
}

func (c *Config) normalizeYtDLP() {
	c.YtDLP.Binary = strings.TrimSpace(c.YtDLP.Binary)
	if c.YtDLP.Binary == "" {
		c.YtDLP.Binary = defaultYtDLPBinary
	}
	if c.YtDLP.DownloadTimeout < 0 {
		c.YtDLP.DownloadTimeout = 0
	}
}

func (c *Config) normalizeProviders() {
	c.Providers.FilemoonBaseURL = strings.TrimRight(strings.TrimSpace(c.Providers.FilemoonBaseURL), "/")
	if c.Providers.FilemoonBaseURL == "" {
		c.Providers.FilemoonBaseURL = defaultFilemoonBaseURL
	}
	c.Providers.FilesVCBaseURL = strings.TrimRight(strings.TrimSpace(c.Providers.FilesVCBaseURL), "/")
	if c.Providers.FilesVCBaseURL == "" {
		c.Providers.FilesVCBaseURL = defaultFilesVCBaseURL
	}
	if c.Providers.RequestTimeout <= 0 {
		c.Providers.RequestTimeout = defaultProviderTimeout
	}
	if c.Providers.UploadTimeout <= 0 {
		c.Providers.UploadTimeout = defaultUploadTimeout
	}
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.IdlePollInterval <= 0 {
		c.Workflow.IdlePollInterval = defaultIdlePollInterval
	}
	if c.Workflow.BusyPollInterval <= 0 {
		c.Workflow.BusyPollInterval = defaultBusyPollInterval
	}
	if c.Workflow.MaxConcurrentChecks <= 0 {
		c.Workflow.MaxConcurrentChecks = defaultMaxConcurrentChecks
	}
	if c.Workflow.StopTimeout <= 0 {
		c.Workflow.StopTimeout = defaultStopTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyTimeout
	}
}
