package config

import (
	"fmt"
	"os"
	"strings"
)

// Environment variables consulted when llm.api_key is empty, in order.
var llmKeyEnv = []string{"SQUISH_LLM_API_KEY", "OPENROUTER_API_KEY"}

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizePlanner(); err != nil {
		return err
	}
	c.normalizeLLM()
	c.normalizeCompression()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		c.Paths.OutputDir = defaultOutputDir
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizePlanner() error {
	c.Planner.Provider = strings.ToLower(strings.TrimSpace(c.Planner.Provider))
	if c.Planner.Provider == "" {
		c.Planner.Provider = defaultPlanner
	}
	if strings.TrimSpace(c.Planner.PlanFile) == "" {
		c.Planner.PlanFile = ""
		return nil
	}
	var err error
	if c.Planner.PlanFile, err = expandPath(strings.TrimSpace(c.Planner.PlanFile)); err != nil {
		return fmt.Errorf("planner.plan_file: %w", err)
	}
	return nil
}

func (c *Config) normalizeLLM() {
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	if c.LLM.APIKey == "" {
		for _, name := range llmKeyEnv {
			if value, ok := os.LookupEnv(name); ok && strings.TrimSpace(value) != "" {
				c.LLM.APIKey = strings.TrimSpace(value)
				break
			}
		}
	}
	c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = defaultLLMBaseURL
	}
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	if c.LLM.Model == "" {
		c.LLM.Model = defaultLLMModel
	}
	c.LLM.Referer = strings.TrimSpace(c.LLM.Referer)
	c.LLM.Title = strings.TrimSpace(c.LLM.Title)
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeout
	}
}

func (c *Config) normalizeCompression() {
	c.Compression.CwebpBinary = strings.TrimSpace(c.Compression.CwebpBinary)
	if c.Compression.CwebpBinary == "" {
		c.Compression.CwebpBinary = defaultCwebpBinary
	}
	c.Compression.AvifencBinary = strings.TrimSpace(c.Compression.AvifencBinary)
	if c.Compression.AvifencBinary == "" {
		c.Compression.AvifencBinary = defaultAvifencBinary
	}
	if c.Compression.DefaultQuality == 0 {
		c.Compression.DefaultQuality = defaultQuality
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNtfyTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	c.Metrics.Listen = strings.TrimSpace(c.Metrics.Listen)
}
