package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	c.normalizeSocial()
	c.normalizeAI()
	if err := c.normalizeBot(); err != nil {
		return err
	}
	c.normalizeScoring()
	return c.normalizeLogging()
}

func (c *Config) normalizeSocial() {
	envFallback(&c.Social.APIKey, "SOCIAL_API_KEY")
	envFallback(&c.Social.APISecret, "SOCIAL_API_SECRET")
	envFallback(&c.Social.AccessToken, "SOCIAL_ACCESS_TOKEN")
	envFallback(&c.Social.AccessTokenSecret, "SOCIAL_ACCESS_TOKEN_SECRET")
	envFallback(&c.Social.ReadAPIKey, "SOCIAL_READ_API_KEY")

	c.Social.ReadBaseURL = strings.TrimRight(strings.TrimSpace(c.Social.ReadBaseURL), "/")
	if c.Social.ReadBaseURL == "" {
		c.Social.ReadBaseURL = defaultReadBaseURL
	}
	c.Social.PostBaseURL = strings.TrimRight(strings.TrimSpace(c.Social.PostBaseURL), "/")
	if c.Social.PostBaseURL == "" {
		c.Social.PostBaseURL = defaultPostBaseURL
	}
	if c.Social.TimeoutSeconds <= 0 {
		c.Social.TimeoutSeconds = defaultSocialTimeoutSecs
	}
	if c.Social.MaxRetries < 0 {
		c.Social.MaxRetries = 0
	}
}

func (c *Config) normalizeAI() {
	keys := make([]string, 0, len(c.AI.APIKeys))
	for _, k := range c.AI.APIKeys {
		keys = appendUnique(keys, k)
	}
	if len(keys) == 0 {
		if value, ok := os.LookupEnv("GOOGLE_API_KEYS"); ok {
			for _, k := range strings.Split(value, ",") {
				keys = appendUnique(keys, k)
			}
		}
		if value, ok := os.LookupEnv("GOOGLE_API_KEY"); ok {
			keys = appendUnique(keys, value)
		}
	}
	c.AI.APIKeys = keys

	if value, ok := os.LookupEnv("GOOGLE_MODEL"); ok && strings.TrimSpace(c.AI.Model) == "" {
		c.AI.Model = value
	}
	c.AI.Model = strings.TrimSpace(c.AI.Model)
	if c.AI.Model == "" {
		c.AI.Model = defaultAIModel
	}
	c.AI.Backend = strings.ToLower(strings.TrimSpace(c.AI.Backend))
	if c.AI.Backend == "" {
		c.AI.Backend = defaultAIBackend
	}
	if c.AI.Temperature < 0 {
		c.AI.Temperature = 0
	}
	if c.AI.TimeoutSeconds <= 0 {
		c.AI.TimeoutSeconds = defaultAITimeoutSeconds
	}
	if c.AI.MaxRetries < 0 {
		c.AI.MaxRetries = 0
	}
}

func (c *Config) normalizeBot() error {
	envFallback(&c.Bot.MyHandle, "REPLYBOT_MY_HANDLE")
	c.Bot.MyHandle = strings.TrimPrefix(strings.TrimSpace(c.Bot.MyHandle), "@")

	var err error
	if c.Bot.HandlesPath, err = expandPath(c.Bot.HandlesPath); err != nil {
		return fmt.Errorf("bot.handles_path: %w", err)
	}
	if c.Bot.LedgerPath, err = expandPath(c.Bot.LedgerPath); err != nil {
		return fmt.Errorf("bot.ledger_path: %w", err)
	}
	if c.Bot.AnalyticsPath, err = expandPath(c.Bot.AnalyticsPath); err != nil {
		return fmt.Errorf("bot.analytics_path: %w", err)
	}
	if c.Bot.DecisionLogPath, err = expandPath(c.Bot.DecisionLogPath); err != nil {
		return fmt.Errorf("bot.decision_log_path: %w", err)
	}
	if c.Bot.DailyCap == 0 {
		c.Bot.DailyCap = defaultDailyCap
	}
	if c.Bot.WindowHours == 0 {
		c.Bot.WindowHours = defaultWindowHours
	}
	if c.Bot.LookbackHours == 0 {
		c.Bot.LookbackHours = defaultLookbackHours
	}
	if c.Bot.MaxClassify == 0 {
		c.Bot.MaxClassify = defaultMaxClassify
	}
	return nil
}

func (c *Config) normalizeScoring() {
	d := Default().Scoring
	s := &c.Scoring
	if s.LikeWeight <= 0 && s.RepostWeight <= 0 && s.ReplyWeight <= 0 {
		s.LikeWeight, s.RepostWeight, s.ReplyWeight = d.LikeWeight, d.RepostWeight, d.ReplyWeight
	}
	if s.RateScale <= 0 {
		s.RateScale = d.RateScale
	}
	if s.RecencyHours <= 0 {
		s.RecencyHours = d.RecencyHours
	}
	if s.RecencyFloor <= 0 {
		s.RecencyFloor = d.RecencyFloor
	}
	if s.QuestionBoost <= 0 {
		s.QuestionBoost = d.QuestionBoost
	}
	if s.ControversyBoost <= 0 {
		s.ControversyBoost = d.ControversyBoost
	}
	if s.IdealMinLength <= 0 {
		s.IdealMinLength = d.IdealMinLength
	}
	if s.IdealMaxLength <= 0 {
		s.IdealMaxLength = d.IdealMaxLength
	}
	if s.MaxReplyLength <= 0 {
		s.MaxReplyLength = d.MaxReplyLength
	}
}

func (c *Config) normalizeLogging() error {
	if value, ok := os.LookupEnv("LOG_LEVEL"); ok && strings.TrimSpace(value) != "" {
		c.Logging.Level = value
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	var err error
	if c.Logging.File, err = expandPath(c.Logging.File); err != nil {
		return fmt.Errorf("logging.file: %w", err)
	}
	return nil
}

func envFallback(field *string, key string) {
	if strings.TrimSpace(*field) != "" {
		*field = strings.TrimSpace(*field)
		return
	}
	if value, ok := os.LookupEnv(key); ok {
		*field = strings.TrimSpace(value)
	}
}

func appendUnique(list []string, value string) []string {
	value = strings.TrimSpace(value)
	if value == "" {
		return list
	}
	for _, existing := range list {
		if existing == value {
			return list
		}
	}
	return append(list, value)
}
