package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/aliskhannn/sophia-quiz-bot/internal/domain/entities"
)

var (
	ErrMissingEnvironmentVariables = errors.New("missing required environment variables")
	ErrInvalidTimeoutPolicy        = errors.New("invalid quiz timeout policy")
	ErrInvalidDifficulty           = errors.New("invalid default difficulty")
)

// Config holds application configuration loaded from files and environment variables.
type Config struct {
	Env              string `mapstructure:"env"` // current application environment (local, dev, production etc)
	TelegramAPIToken string `mapstructure:"-"`   // Telegram API token loaded from environment
	DB               DB     `mapstructure:"database"`
	AI               AI     `mapstructure:"ai"`
	Quiz             Quiz   `mapstructure:"quiz"`
	Log              Log    `mapstructure:"log"`
	HTTP             HTTP   `mapstructure:"http"`
}

// DB contains database-related configuration parameters.
type DB struct {
	URL             string        `mapstructure:"-"`                 // database connection string loaded from environment
	MaxConnections  int           `mapstructure:"max_connections"`   // maximum number of open connections in the pool
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"` // maximum lifetime of a single connection
}

// DSN returns the database connection string if it is configured.
func (db DB) DSN() (string, error) {
	if db.URL == "" {
		return "", ErrMissingEnvironmentVariables
	}
	return db.URL, nil
}

// AI configures the OpenAI-compatible question generator.
type AI struct {
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"-"` // loaded from AI_API_KEY; generation is disabled when empty
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// Enabled reports whether question generation is configured.
func (a AI) Enabled() bool {
	return a.APIKey != "" && a.BaseURL != ""
}

// Quiz configures quiz sessions.
type Quiz struct {
	AllowBackNavigation  bool          `mapstructure:"allow_back_navigation"`
	PerQuestionTimeLimit time.Duration `mapstructure:"per_question_time_limit"` // zero disables the timer
	TimeoutPolicy        string        `mapstructure:"timeout_policy"`          // auto_select_first | leave_unanswered
	SessionTTL           time.Duration `mapstructure:"session_ttl"`             // idle sessions older than this are purged
	JanitorSchedule      string        `mapstructure:"janitor_schedule"`        // cron spec for the purge job
	DefaultDifficulty    string        `mapstructure:"default_difficulty"`
	DefaultCount         int           `mapstructure:"default_count"`
	MaxCount             int           `mapstructure:"max_count"`
}

// SessionOptions converts the quiz section into session capability flags.
func (q Quiz) SessionOptions() entities.SessionOptions {
	return entities.SessionOptions{
		AllowBackNavigation:  q.AllowBackNavigation,
		PerQuestionTimeLimit: q.PerQuestionTimeLimit,
		TimeoutPolicy:        entities.TimeoutPolicy(q.TimeoutPolicy),
	}
}

// Log configures logging output.
type Log struct {
	File string `mapstructure:"file"` // optional path of a rotated JSON log file
}

// HTTP configures the metrics and health server.
type HTTP struct {
	Addr string `mapstructure:"addr"`
}

// Load reads configuration from config files and environment variables.
func Load() (*Config, error) {
	// Initialize Viper instance and base config options.
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")

	// Set default values for configuration keys.
	v.SetDefault("env", "local")
	v.SetDefault("database.max_connections", 20)
	v.SetDefault("database.max_conn_lifetime", "30s")
	v.SetDefault("ai.base_url", "https://api.openai.com/v1")
	v.SetDefault("ai.model", "gpt-4o-mini")
	v.SetDefault("ai.timeout", "45s")
	v.SetDefault("quiz.allow_back_navigation", true)
	v.SetDefault("quiz.per_question_time_limit", "0s")
	v.SetDefault("quiz.timeout_policy", string(entities.TimeoutAutoSelectFirst))
	v.SetDefault("quiz.session_ttl", "2h")
	v.SetDefault("quiz.janitor_schedule", "*/10 * * * *")
	v.SetDefault("quiz.default_difficulty", string(entities.DifficultyMedium))
	v.SetDefault("quiz.default_count", 10)
	v.SetDefault("quiz.max_count", 20)
	v.SetDefault("log.file", "")
	v.SetDefault("http.addr", ":9090")

	// Configure environment variable handling and key mapping.
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // map nested keys to ENV style names
	v.AutomaticEnv()

	// Bind explicit environment variables to configuration keys.
	_ = v.BindEnv("telegram_api_token", "TELEGRAM_API_TOKEN")
	_ = v.BindEnv("database_url", "DATABASE_URL")
	_ = v.BindEnv("ai_api_key", "AI_API_KEY")
	_ = v.BindEnv("env", "APP_ENV")

	// Try to read configuration file if present.
	if err := v.ReadInConfig(); err != nil {
		var fileLookupErr viper.ConfigFileNotFoundError
		if !errors.As(err, &fileLookupErr) {
			return nil, fmt.Errorf("error loading config file: %w", err)
		}
	}

	// Unmarshal configuration into strongly typed struct.
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	// Load sensitive values from environment variables.
	cfg.TelegramAPIToken = v.GetString("telegram_api_token")
	if cfg.TelegramAPIToken == "" {
		return nil, ErrMissingEnvironmentVariables
	}

	cfg.DB.URL = v.GetString("database_url")
	if cfg.DB.URL == "" {
		return nil, ErrMissingEnvironmentVariables
	}

	cfg.AI.APIKey = v.GetString("ai_api_key")

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if !entities.TimeoutPolicy(c.Quiz.TimeoutPolicy).Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidTimeoutPolicy, c.Quiz.TimeoutPolicy)
	}
	if _, ok := entities.ParseDifficulty(c.Quiz.DefaultDifficulty); !ok {
		return fmt.Errorf("%w: %q", ErrInvalidDifficulty, c.Quiz.DefaultDifficulty)
	}
	if c.Quiz.DefaultCount <= 0 {
		c.Quiz.DefaultCount = 10
	}
	if c.Quiz.MaxCount < c.Quiz.DefaultCount {
		c.Quiz.MaxCount = c.Quiz.DefaultCount
	}
	return nil
}
