// Package config loads and validates replybot configuration.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Social contains credentials for reading and posting on the social network.
type Social struct {
	// OAuth 1.0a user context used for posting replies.
	APIKey            string `toml:"api_key"`
	APISecret         string `toml:"api_secret"`
	AccessToken       string `toml:"access_token"`
	AccessTokenSecret string `toml:"access_token_secret"`

	// Search API key used for timeline reads and engagement lookups.
	ReadAPIKey     string `toml:"read_api_key"`
	ReadBaseURL    string `toml:"read_base_url"`
	PostBaseURL    string `toml:"post_base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	MaxRetries     int    `toml:"max_retries"`
}

// AI contains generative model settings.
type AI struct {
	// APIKeys are tried in order; the next key takes over on quota or auth errors.
	APIKeys        []string `toml:"api_keys"`
	Model          string   `toml:"model"`
	Backend        string   `toml:"backend"` // genai | adk
	Temperature    float32  `toml:"temperature"`
	TimeoutSeconds int      `toml:"timeout_seconds"`
	MaxRetries     int      `toml:"max_retries"`
}

// Bot contains run behaviour and file locations.
type Bot struct {
	MyHandle        string  `toml:"my_handle"`
	HandlesPath     string  `toml:"handles_path"`
	LedgerPath      string  `toml:"ledger_path"`
	AnalyticsPath   string  `toml:"analytics_path"`
	DecisionLogPath string  `toml:"decision_log_path"`
	DailyCap        int     `toml:"daily_cap"`
	WindowHours     int     `toml:"window_hours"`
	LookbackHours   int     `toml:"lookback_hours"`
	MaxClassify     int     `toml:"max_classify"`
	MinReplyScore   float64 `toml:"min_reply_score"`
	SeedFromHistory bool    `toml:"seed_from_history"`
}

// Scoring contains the tunable heuristic constants.
type Scoring struct {
	LikeWeight       float64 `toml:"like_weight"`
	RepostWeight     float64 `toml:"repost_weight"`
	ReplyWeight      float64 `toml:"reply_weight"`
	RateScale        float64 `toml:"rate_scale"`
	RecencyHours     float64 `toml:"recency_hours"`
	RecencyFloor     float64 `toml:"recency_floor"`
	QuestionBoost    float64 `toml:"question_boost"`
	ControversyBoost float64 `toml:"controversy_boost"`
	IdealMinLength   int     `toml:"ideal_min_length"`
	IdealMaxLength   int     `toml:"ideal_max_length"`
	MaxReplyLength   int     `toml:"max_reply_length"`

	// BlockedPatterns are extra regular expressions; a reply matching any is dropped.
	BlockedPatterns []string `toml:"blocked_patterns"`
}

// Logging contains configuration for log output.
type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // text | json
	File   string `toml:"file"`
}

// Config encapsulates all configuration values for replybot.
//
// Sections:
//   - Social: posting credentials and the search API used for reads
//   - AI: model keys, backend and per-call limits
//   - Bot: handles, ledger, cap and windows
//   - Scoring: engagement and reply heuristics
//   - Logging: log level, format and optional file
type Config struct {
	Social  Social  `toml:"social"`
	AI      AI      `toml:"ai"`
	Bot     Bot     `toml:"bot"`
	Scoring Scoring `toml:"scoring"`
	Logging Logging `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. Missing files are
// allowed; defaults and environment variables then supply every value.
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

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("replybot.toml")
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

// EnsureDirectories creates parent directories for the files the bot writes.
func (c *Config) EnsureDirectories() error {
	for _, p := range []string{c.Bot.LedgerPath, c.Bot.AnalyticsPath, c.Bot.DecisionLogPath, c.Logging.File} {
		if strings.TrimSpace(p) == "" {
			continue
		}
		dir := filepath.Dir(p)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// Window is the trailing rate-limit window.
func (c *Config) Window() time.Duration {
	return time.Duration(c.Bot.WindowHours) * time.Hour
}

// Lookback is how far back the fetcher looks for posts.
func (c *Config) Lookback() time.Duration {
	return time.Duration(c.Bot.LookbackHours) * time.Hour
}

// AITimeout is the per-request deadline for model calls.
func (c *Config) AITimeout() time.Duration {
	return time.Duration(c.AI.TimeoutSeconds) * time.Second
}

// SocialTimeout is the per-request deadline for social API calls.
func (c *Config) SocialTimeout() time.Duration {
	return time.Duration(c.Social.TimeoutSeconds) * time.Second
}

// CanPost reports whether posting credentials are complete.
func (c *Config) CanPost() bool {
	return c.Social.APIKey != "" && c.Social.APISecret != "" &&
		c.Social.AccessToken != "" && c.Social.AccessTokenSecret != ""
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

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o600); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
