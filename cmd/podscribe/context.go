package main

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"podscribe/pkg/config"
	"podscribe/pkg/logging"
	"podscribe/pkg/store"
)

type commandContext struct {
	configFlag   *string
	logLevelFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag, logLevelFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, err := config.Load(path)
		if err != nil {
			c.configErr = fmt.Errorf("configuration error: %w", err)
			return
		}
		if c.logLevelFlag != nil && strings.TrimSpace(*c.logLevelFlag) != "" {
			cfg.Logging.Level = strings.TrimSpace(*c.logLevelFlag)
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// configFor loads the configuration and checks the settings purpose needs.
func (c *commandContext) configFor(purpose config.Purpose) (*config.Config, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(purpose); err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	return cfg, nil
}

func (c *commandContext) logger(cfg *config.Config, command string) (*slog.Logger, error) {
	logger, err := logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	return logging.WithRun(logger, command), nil
}

// withLockedStore opens the store, holds its writer lock while fn runs and
// releases it afterwards.
func withLockedStore(cfg *config.Config, fn func(*store.Store) error) (err error) {
	st, err := store.Open(cfg.Paths.StoreDir)
	if err != nil {
		return err
	}
	unlock, err := st.Lock()
	if err != nil {
		return err
	}
	defer func() {
		if uerr := unlock(); uerr != nil && err == nil {
			err = uerr
		}
	}()
	return fn(st)
}
