package config

import (
	"errors"
	"fmt"
	"regexp"
)

// Validate ensures the configuration is usable for a run.
func (c *Config) Validate() error {
	if err := c.validateAI(); err != nil {
		return err
	}
	if err := c.validateBot(); err != nil {
		return err
	}
	if err := c.validateScoring(); err != nil {
		return err
	}
	return c.validateLogging()
}

// ValidateForRun additionally requires the credentials a live run needs.
// Commands that only read local state (stats) skip it.
func (c *Config) ValidateForRun() error {
	if c.Social.ReadAPIKey == "" {
		return errors.New("social.read_api_key is required. Set SOCIAL_READ_API_KEY or edit the config (create with 'replybot config init')")
	}
	if len(c.AI.APIKeys) == 0 {
		return errors.New("ai.api_keys needs at least one key. Set GOOGLE_API_KEY or GOOGLE_API_KEYS")
	}
	if c.Bot.MyHandle == "" {
		return errors.New("bot.my_handle is required so the bot never replies to itself")
	}
	return nil
}

func (c *Config) validateAI() error {
	switch c.AI.Backend {
	case "genai", "adk":
	default:
		return fmt.Errorf("ai.backend must be genai or adk, got %q", c.AI.Backend)
	}
	return nil
}

func (c *Config) validateBot() error {
	if c.Bot.DailyCap < 1 {
		return fmt.Errorf("bot.daily_cap must be positive, got %d", c.Bot.DailyCap)
	}
	if c.Bot.WindowHours < 1 {
		return fmt.Errorf("bot.window_hours must be positive, got %d", c.Bot.WindowHours)
	}
	if c.Bot.LookbackHours < 1 {
		return fmt.Errorf("bot.lookback_hours must be positive, got %d", c.Bot.LookbackHours)
	}
	if c.Bot.MaxClassify < 1 {
		return fmt.Errorf("bot.max_classify must be positive, got %d", c.Bot.MaxClassify)
	}
	if c.Bot.MinReplyScore < 0 || c.Bot.MinReplyScore > 100 {
		return fmt.Errorf("bot.min_reply_score must be within 0-100, got %v", c.Bot.MinReplyScore)
	}
	if c.Bot.LedgerPath == "" {
		return errors.New("bot.ledger_path is required")
	}
	return nil
}

func (c *Config) validateScoring() error {
	if c.Scoring.RecencyFloor > 1 {
		return fmt.Errorf("scoring.recency_floor must be at most 1, got %v", c.Scoring.RecencyFloor)
	}
	if c.Scoring.IdealMinLength > c.Scoring.IdealMaxLength {
		return fmt.Errorf("scoring.ideal_min_length (%d) exceeds ideal_max_length (%d)",
			c.Scoring.IdealMinLength, c.Scoring.IdealMaxLength)
	}
	if c.Scoring.IdealMaxLength > c.Scoring.MaxReplyLength {
		return fmt.Errorf("scoring.ideal_max_length (%d) exceeds max_reply_length (%d)",
			c.Scoring.IdealMaxLength, c.Scoring.MaxReplyLength)
	}
	for _, pattern := range c.Scoring.BlockedPatterns {
		if _, err := regexp.Compile(pattern); err != nil {
			return fmt.Errorf("scoring.blocked_patterns: %w", err)
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level %q is not recognised", c.Logging.Level)
	}
	return nil
}
