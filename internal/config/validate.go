package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable. Provider API keys are not
// checked here; they live in the runtime settings record and their absence
// only blocks uploads, not daemon startup.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateProviders(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		return errors.New("paths.state_dir must be set")
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return errors.New("paths.log_dir must be set")
	}
	return nil
}

func (c *Config) validateProviders() error {
	for key, value := range map[string]string{
		"providers.filemoon_base_url": c.Providers.FilemoonBaseURL,
		"providers.filesvc_base_url":  c.Providers.FilesVCBaseURL,
	} {
		parsed, err := url.Parse(value)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("%s must be an absolute URL, got %q", key, value)
		}
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if err := ensurePositiveMap(map[string]int{
		"workflow.idle_poll_interval":    c.Workflow.IdlePollInterval,
		"workflow.busy_poll_interval":    c.Workflow.BusyPollInterval,
		"workflow.max_concurrent_checks": c.Workflow.MaxConcurrentChecks,
		"workflow.stop_timeout":          c.Workflow.StopTimeout,
		"providers.request_timeout":      c.Providers.RequestTimeout,
		"providers.upload_timeout":       c.Providers.UploadTimeout,
		"notifications.request_timeout":  c.Notifications.RequestTimeout,
	}); err != nil {
		return err
	}
	if c.Workflow.BusyPollInterval > c.Workflow.IdlePollInterval {
		return errors.New("workflow.busy_poll_interval must not exceed workflow.idle_poll_interval")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
