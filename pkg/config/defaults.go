package config

const (
	defaultConfigPath        = "~/.config/replybot/config.toml"
	defaultHandlesPath       = "~/.config/replybot/handles.csv"
	defaultLedgerPath        = "~/.local/share/replybot/ledger.json"
	defaultAnalyticsPath     = "~/.local/share/replybot/analytics.db"
	defaultDecisionLogPath   = "~/.local/share/replybot/decisions.jsonl"
	defaultDailyCap          = 17
	defaultWindowHours       = 24
	defaultLookbackHours     = 12
	defaultMaxClassify       = 30
	defaultMinReplyScore     = 50
	defaultAIModel           = "gemini-2.5-flash-lite"
	defaultAIBackend         = "genai"
	defaultAITemperature     = 0.8
	defaultAITimeoutSeconds  = 20
	defaultAIMaxRetries      = 3
	defaultReadBaseURL       = "https://api.twitterapi.io"
	defaultPostBaseURL       = "https://api.twitter.com/2"
	defaultSocialTimeoutSecs = 15
	defaultSocialMaxRetries  = 3
	defaultLogLevel          = "info"
	defaultLogFormat         = "text"
)

// Default returns a Config populated with the repository defaults.
func Default() Config {
	return Config{
		Social: Social{
			ReadBaseURL:    defaultReadBaseURL,
			PostBaseURL:    defaultPostBaseURL,
			TimeoutSeconds: defaultSocialTimeoutSecs,
			MaxRetries:     defaultSocialMaxRetries,
		},
		AI: AI{
			Model:          defaultAIModel,
			Backend:        defaultAIBackend,
			Temperature:    defaultAITemperature,
			TimeoutSeconds: defaultAITimeoutSeconds,
			MaxRetries:     defaultAIMaxRetries,
		},
		Bot: Bot{
			HandlesPath:     defaultHandlesPath,
			LedgerPath:      defaultLedgerPath,
			AnalyticsPath:   defaultAnalyticsPath,
			DecisionLogPath: defaultDecisionLogPath,
			DailyCap:        defaultDailyCap,
			WindowHours:     defaultWindowHours,
			LookbackHours:   defaultLookbackHours,
			MaxClassify:     defaultMaxClassify,
			MinReplyScore:   defaultMinReplyScore,
			SeedFromHistory: true,
		},
		Scoring: Scoring{
			LikeWeight:       1,
			RepostWeight:     3,
			ReplyWeight:      5,
			RateScale:        1000,
			RecencyHours:     24,
			RecencyFloor:     0.1,
			QuestionBoost:    1.2,
			ControversyBoost: 1.3,
			IdealMinLength:   50,
			IdealMaxLength:   250,
			MaxReplyLength:   280,
		},
		Logging: Logging{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
	}
}
