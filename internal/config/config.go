// Package config resolves lexiz settings from defaults, an optional YAML
// file, LEXIZ_* environment variables and command-line flags, in that
// order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/abhisek/lexiz/internal/hints"
	"github.com/abhisek/lexiz/internal/llm"
	"github.com/abhisek/lexiz/internal/reminders"
	"github.com/abhisek/lexiz/internal/similarity"
	"github.com/abhisek/lexiz/internal/store"
)

// EnvPrefix prefixes every environment variable lexiz reads.
const EnvPrefix = "LEXIZ"

// Config is the resolved application configuration.
type Config struct {
	DB        DBConfig
	Redis     RedisConfig
	Log       LogConfig
	User      string
	Study     StudyConfig
	Reminders RemindersConfig
	Hints     hints.Config
	LLM       llm.Config

	// File is the config file that was read, if any.
	File string
}

type DBConfig struct {
	Driver string
	DSN    string
}

// RedisConfig enables the shared item lock when Addr is set.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type LogConfig struct {
	Mode  string
	Level string
	Path  string
}

type StudyConfig struct {
	VoicePassThreshold int
	DemoteOnLapse      bool
	MaxCards           int

	// Location decides which calendar day "today" is for scheduling and
	// daily activity.
	Location *time.Location
}

type RemindersConfig struct {
	Interval  time.Duration
	StartHour int
	EndHour   int
}

var envReplacer = strings.NewReplacer(".", "_", "-", "_")

// flagKeys maps command-line flag names to configuration keys.
var flagKeys = map[string]string{
	"db":        "db.dsn",
	"driver":    "db.driver",
	"user":      "user",
	"log-level": "log.level",
}

// New returns a viper instance with lexiz defaults and environment
// bindings.
func New() *viper.Viper {
	v := viper.New()

	llmDefaults := llm.DefaultConfig()
	hintDefaults := hints.DefaultConfig()

	v.SetDefault("db.driver", store.DriverSQLite)
	v.SetDefault("log.mode", "dev")
	v.SetDefault("log.level", "info")
	v.SetDefault("user", defaultUser())
	v.SetDefault("study.voice_pass_threshold", similarity.DefaultVoicePassThreshold)
	v.SetDefault("study.demote_on_lapse", false)
	v.SetDefault("study.max_cards", 20)
	v.SetDefault("study.timezone", "")
	v.SetDefault("reminders.interval", reminders.DefaultInterval)
	v.SetDefault("reminders.start_hour", reminders.DefaultStartHour)
	v.SetDefault("reminders.end_hour", reminders.DefaultEndHour)
	v.SetDefault("hints.enabled", true)
	v.SetDefault("hints.per_minute", hintDefaults.PerMinute)
	v.SetDefault("hints.burst", hintDefaults.Burst)
	v.SetDefault("hints.max_tokens", hintDefaults.MaxTokens)
	v.SetDefault("hints.temperature", hintDefaults.Temperature)
	v.SetDefault("llm.provider", "")
	v.SetDefault("llm.anthropic.model", llmDefaults.Anthropic.Model)
	v.SetDefault("llm.openai.model", llmDefaults.OpenAI.Model)
	v.SetDefault("llm.gemini.model", llmDefaults.Gemini.Model)
	v.SetDefault("llm.timeout", llmDefaults.Timeout)
	v.SetDefault("llm.retry.max_attempts", llmDefaults.Retry.MaxAttempts)
	v.SetDefault("llm.retry.initial_wait", llmDefaults.Retry.InitialWait)
	v.SetDefault("llm.retry.max_wait", llmDefaults.Retry.MaxWait)
	v.SetDefault("llm.retry.multiplier", llmDefaults.Retry.Multiplier)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(envReplacer)
	v.AutomaticEnv()

	// Keys that also answer to well-known names.
	_ = v.BindEnv("db.dsn", "LEXIZ_DB_DSN", "LEXIZ_DB")
	_ = v.BindEnv("llm.anthropic.api_key", "LEXIZ_LLM_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY")
	_ = v.BindEnv("llm.openai.api_key", "LEXIZ_LLM_OPENAI_API_KEY", "OPENAI_API_KEY")
	_ = v.BindEnv("llm.openai.base_url", "LEXIZ_LLM_OPENAI_BASE_URL", "OPENAI_BASE_URL")
	_ = v.BindEnv("llm.gemini.api_key", "LEXIZ_LLM_GEMINI_API_KEY", "GEMINI_API_KEY")
	return v
}

// BindFlags lets the flags in fs override their configuration keys.
// Flags missing from fs are skipped.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}

// Load reads the config file and resolves v into a Config. An explicit
// path must exist; otherwise config.yaml under the lexiz config directory
// is read when present.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if dir, err := configDir(); err == nil {
			v.AddConfigPath(dir)
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{
		File: v.ConfigFileUsed(),
		DB: DBConfig{
			Driver: v.GetString("db.driver"),
			DSN:    v.GetString("db.dsn"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Log: LogConfig{
			Mode:  v.GetString("log.mode"),
			Level: v.GetString("log.level"),
			Path:  v.GetString("log.path"),
		},
		User: v.GetString("user"),
		Study: StudyConfig{
			VoicePassThreshold: v.GetInt("study.voice_pass_threshold"),
			DemoteOnLapse:      v.GetBool("study.demote_on_lapse"),
			MaxCards:           v.GetInt("study.max_cards"),
		},
		Reminders: RemindersConfig{
			Interval:  v.GetDuration("reminders.interval"),
			StartHour: v.GetInt("reminders.start_hour"),
			EndHour:   v.GetInt("reminders.end_hour"),
		},
		Hints: hints.Config{
			MaxTokens:   v.GetInt("hints.max_tokens"),
			Temperature: v.GetFloat64("hints.temperature"),
			PerMinute:   v.GetInt("hints.per_minute"),
			Burst:       v.GetInt("hints.burst"),
		},
		LLM: llm.Config{
			Provider: v.GetString("llm.provider"),
			Anthropic: llm.AnthropicConfig{
				APIKey: v.GetString("llm.anthropic.api_key"),
				Model:  v.GetString("llm.anthropic.model"),
			},
			OpenAI: llm.OpenAIConfig{
				APIKey:  v.GetString("llm.openai.api_key"),
				Model:   v.GetString("llm.openai.model"),
				BaseURL: v.GetString("llm.openai.base_url"),
			},
			Gemini: llm.GeminiConfig{
				APIKey: v.GetString("llm.gemini.api_key"),
				Model:  v.GetString("llm.gemini.model"),
			},
			Retry: llm.RetryConfig{
				MaxAttempts: v.GetInt("llm.retry.max_attempts"),
				InitialWait: v.GetDuration("llm.retry.initial_wait"),
				MaxWait:     v.GetDuration("llm.retry.max_wait"),
				Multiplier:  v.GetFloat64("llm.retry.multiplier"),
			},
			Timeout: v.GetDuration("llm.timeout"),
		},
	}

	loc, err := loadLocation(v.GetString("study.timezone"))
	if err != nil {
		return nil, err
	}
	cfg.Study.Location = loc

	if !v.GetBool("hints.enabled") {
		cfg.LLM.Provider = llm.ProviderNone
	} else if cfg.LLM.Provider == llm.ProviderNone {
		cfg.LLM.Provider = discoverProvider(cfg.LLM)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.User == "" {
		return errors.New("user is required (set --user or LEXIZ_USER)")
	}
	switch c.DB.Driver {
	case store.DriverSQLite, store.DriverPostgres:
	default:
		return fmt.Errorf("db.driver: unsupported driver %q", c.DB.Driver)
	}
	if c.DB.Driver == store.DriverPostgres && c.DB.DSN == "" {
		return errors.New("db.dsn is required for postgres")
	}
	if t := c.Study.VoicePassThreshold; t < 0 || t > 100 {
		return fmt.Errorf("study.voice_pass_threshold must be within 0-100, got %d", t)
	}
	if c.Study.MaxCards < 0 {
		return fmt.Errorf("study.max_cards must not be negative, got %d", c.Study.MaxCards)
	}
	for key, h := range map[string]int{"reminders.start_hour": c.Reminders.StartHour, "reminders.end_hour": c.Reminders.EndHour} {
		if h < 0 || h > 24 {
			return fmt.Errorf("%s must be within 0-24, got %d", key, h)
		}
	}
	if c.Reminders.Interval <= 0 {
		return fmt.Errorf("reminders.interval must be positive, got %s", c.Reminders.Interval)
	}
	return c.LLM.Validate()
}

// ResolveDSN returns the database DSN, defaulting SQLite to the per-user
// data directory.
func (c *Config) ResolveDSN() (string, error) {
	if c.DB.DSN != "" {
		if c.DB.Driver == store.DriverSQLite {
			return c.DB.DSN, store.EnsureDir(c.DB.DSN)
		}
		return c.DB.DSN, nil
	}
	return store.DefaultDBPath()
}

// LogFile is where interactive commands log when log.path is unset: next
// to the default database.
func (c *Config) LogFile() (string, error) {
	db, err := store.DefaultDBPath()
	if err != nil {
		return "", err
	}
	return filepath.Join(filepath.Dir(db), "lexiz.log"), nil
}

// discoverProvider picks the first provider whose API key is present,
// probing Gemini, OpenAI, then Anthropic.
func discoverProvider(c llm.Config) string {
	switch {
	case c.Gemini.APIKey != "":
		return llm.ProviderGemini
	case c.OpenAI.APIKey != "":
		return llm.ProviderOpenAI
	case c.Anthropic.APIKey != "":
		return llm.ProviderAnthropic
	}
	return llm.ProviderNone
}

func loadLocation(name string) (*time.Location, error) {
	if name == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("study.timezone: %w", err)
	}
	return loc, nil
}

// configDir returns $XDG_CONFIG_HOME/lexiz or ~/.config/lexiz.
func configDir() (string, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "lexiz"), nil
}

func defaultUser() string {
	for _, k := range []string{"USER", "USERNAME"} {
		if u := os.Getenv(k); u != "" {
			return u
		}
	}
	return "default"
}
