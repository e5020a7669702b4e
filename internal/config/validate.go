package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/robfig/cron/v3"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateEmby(); err != nil {
		return err
	}
	if err := c.validateTMDB(); err != nil {
		return err
	}
	if err := c.validateReconcile(); err != nil {
		return err
	}
	if err := c.validateSchedule(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateEmby() error {
	if c.Emby.URL == "" {
		return fmt.Errorf("emby.url is required. Set EMBY_URL env var or edit %s (create with 'reelkeep config init')", c.configHint())
	}
	parsed, err := url.Parse(c.Emby.URL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("emby.url %q must be an absolute http(s) URL", c.Emby.URL)
	}
	if c.Emby.APIKey == "" {
		return fmt.Errorf("emby.api_key is required. Set EMBY_API_KEY env var or edit %s", c.configHint())
	}
	return nil
}

func (c *Config) validateTMDB() error {
	if c.TMDB.RequestsPerSecond < 0 {
		return errors.New("tmdb.requests_per_second must be positive")
	}
	return nil
}

// RequireTMDB reports a configuration error when no TMDB key is available.
// Only reconciliation needs the provider, so Load does not enforce it.
func (c *Config) RequireTMDB() error {
	if strings.TrimSpace(c.TMDB.APIKey) == "" {
		return fmt.Errorf("tmdb.api_key is required for reconciliation. Set TMDB_API_KEY env var or edit %s", c.configHint())
	}
	return nil
}

func (c *Config) validateReconcile() error {
	if c.Reconcile.BatchSize <= 0 {
		return errors.New("reconcile.batch_size must be positive")
	}
	if c.Reconcile.Concurrency <= 0 {
		return errors.New("reconcile.concurrency must be positive")
	}
	return nil
}

func (c *Config) validateSchedule() error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	for name, spec := range map[string]string{
		"schedule.reconcile_cron": c.Schedule.ReconcileCron,
		"schedule.scan_cron":      c.Schedule.ScanCron,
	} {
		if spec == "" {
			continue
		}
		if _, err := parser.Parse(spec); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format %q must be console or json", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level %q must be debug, info, warn, or error", c.Logging.Level)
	}
}

func (c *Config) configHint() string {
	path, err := DefaultConfigPath()
	if err != nil {
		return defaultConfigPath
	}
	return path
}
