package main

import (
	"context"
	"strings"
	"sync"

	"permavid/internal/api"
	"permavid/internal/config"
	"permavid/internal/queue"
)

type commandContext struct {
	apiFlag    *string
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(apiFlag, configFlag *string) *commandContext {
	return &commandContext{
		apiFlag:    apiFlag,
		configFlag: configFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if c.apiFlag != nil {
			if bind := strings.TrimSpace(*c.apiFlag); bind != "" {
				cfg.Paths.APIBind = bind
			}
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

func (c *commandContext) newClient() (*api.Client, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return api.NewClient(cfg.Paths.APIBind, cfg.Paths.APIToken)
}

// withQueue runs fn against the daemon API when it is reachable and against
// the queue store directly otherwise. Errors other than an unreachable daemon
// are returned as-is so auth and validation failures stay visible.
func (c *commandContext) withQueue(ctx context.Context, fn func(queueClient) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}

	client, err := c.newClient()
	if err != nil {
		return err
	}
	_, healthErr := client.Health(ctx)
	if healthErr == nil {
		return fn(&httpQueue{client: client})
	}
	if !api.IsDaemonUnavailable(healthErr) {
		return healthErr
	}

	store, err := queue.Open(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(&storeQueue{store: store})
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
