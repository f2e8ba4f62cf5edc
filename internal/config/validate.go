package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePlanner(); err != nil {
		return err
	}
	if err := c.validateCompression(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := c.validateMetrics(); err != nil {
		return err
	}
	return c.validateNotifications()
}

func (c *Config) validatePlanner() error {
	switch c.Planner.Provider {
	case PlannerAuto, PlannerMock:
		return nil
	case PlannerLLM:
		if !c.LLMConfigured() {
			defaultPath, err := DefaultConfigPath()
			if err != nil {
				defaultPath = defaultConfigPath
			}
			return fmt.Errorf("llm.api_key is required when planner.provider = \"llm\". Set SQUISH_LLM_API_KEY or edit %s (create with 'squish config init')", defaultPath)
		}
		return nil
	case PlannerFile:
		if c.Planner.PlanFile == "" {
			return errors.New("planner.plan_file must be set when planner.provider = \"file\"")
		}
		return nil
	default:
		return fmt.Errorf("planner.provider %q is not one of auto, llm, mock, file", c.Planner.Provider)
	}
}

func (c *Config) validateCompression() error {
	if c.Compression.DefaultQuality <= 0 || c.Compression.DefaultQuality > 1 {
		return errors.New("compression.default_quality must be in (0, 1]")
	}
	if c.Compression.AttemptTimeout < 0 {
		return errors.New("compression.attempt_timeout must be zero (no limit) or positive")
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
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level %q must be debug, info, warn, or error", c.Logging.Level)
	}
	return nil
}

func (c *Config) validateMetrics() error {
	if c.Metrics.Listen == "" {
		return nil
	}
	if _, _, err := net.SplitHostPort(c.Metrics.Listen); err != nil {
		return fmt.Errorf("metrics.listen %q: %w", c.Metrics.Listen, err)
	}
	return nil
}

func (c *Config) validateNotifications() error {
	topic := c.Notifications.NtfyTopic
	if topic == "" {
		return nil
	}
	parsed, err := url.Parse(topic)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return fmt.Errorf("notifications.ntfy_topic %q must be an http(s) URL", topic)
	}
	return nil
}
