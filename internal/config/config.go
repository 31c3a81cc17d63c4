// Package config loads the dialog bot configuration: the reusable core
// sections plus the language model, dialog and database settings.
package config

import (
	"fmt"
	"strings"
	"time"

	coreconfig "github.com/m3rciful/dialogbot/core/config"
	coredatabase "github.com/m3rciful/dialogbot/core/database"
)

// OpenAIConfig configures the language model gateway.
type OpenAIConfig struct {
	APIKey             string  `yaml:"api_key" envconfig:"OPENAI_API_KEY"`
	BaseURL            string  `yaml:"base_url" envconfig:"OPENAI_BASE_URL"`
	ChatModel          string  `yaml:"chat_model" envconfig:"OPENAI_CHAT_MODEL"`
	TranscriptionModel string  `yaml:"transcription_model" envconfig:"OPENAI_TRANSCRIPTION_MODEL"`
	SpeechModel        string  `yaml:"speech_model" envconfig:"OPENAI_SPEECH_MODEL"`
	Voice              string  `yaml:"voice" envconfig:"OPENAI_VOICE"`
	TimeoutSeconds     int     `yaml:"timeout_seconds" envconfig:"OPENAI_TIMEOUT_SECONDS"`
	MaxTokens          int     `yaml:"max_tokens" envconfig:"OPENAI_MAX_TOKENS"`
	Temperature        float32 `yaml:"temperature" envconfig:"OPENAI_TEMPERATURE"`
}

// Timeout returns the per-call deadline.
func (c OpenAIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// DialogConfig tunes the conversation flows.
type DialogConfig struct {
	AssetsDir         string `yaml:"assets_dir" envconfig:"DIALOG_ASSETS_DIR"`
	TempDir           string `yaml:"temp_dir" envconfig:"DIALOG_TEMP_DIR"`
	HistoryCap        int    `yaml:"history_cap"`
	QuizAttempts      int    `yaml:"quiz_attempts"`
	QuizRetryDelayMS  int    `yaml:"quiz_retry_delay_ms"`
	SessionTTLMinutes int    `yaml:"session_ttl_minutes" envconfig:"DIALOG_SESSION_TTL_MINUTES"`
}

// QuizRetryDelay is the pause between question generation attempts.
func (c DialogConfig) QuizRetryDelay() time.Duration {
	return time.Duration(c.QuizRetryDelayMS) * time.Millisecond
}

// SessionTTL is how long an idle chat keeps its state.
func (c DialogConfig) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLMinutes) * time.Minute
}

// Config is the full application configuration.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	OpenAI   OpenAIConfig        `yaml:"openai"`
	Dialog   DialogConfig        `yaml:"dialog"`
	Database coredatabase.Config `yaml:"database"`
}

// CoreConfig exposes the embedded core section to the shared runner.
func (c *Config) CoreConfig() *coreconfig.Config {
	if c == nil {
		return nil
	}
	return &c.Config
}

const (
	defaultChatModel          = "gpt-3.5-turbo"
	defaultTranscriptionModel = "whisper-1"
	defaultSpeechModel        = "tts-1-hd"
	defaultVoice              = "nova"
	defaultTimeoutSeconds     = 30
	defaultMaxTokens          = 1500
	defaultTemperature        = 0.7

	defaultAssetsDir     = "assets"
	defaultHistoryCap    = 10
	defaultQuizAttempts  = 3
	defaultQuizDelayMS   = 1000
	defaultSessionTTLMin = 24 * 60
)

// Load reads the YAML file at path, overlays the environment and validates the result.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.Decode(path, &cfg); err != nil {
		return nil, err
	}
	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates required settings and fills defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	if err := coreconfig.Normalize(&cfg.Config); err != nil {
		return err
	}

	o := &cfg.OpenAI
	if strings.TrimSpace(o.APIKey) == "" {
		return fmt.Errorf("openai api key is required")
	}
	o.ChatModel = orDefault(o.ChatModel, defaultChatModel)
	o.TranscriptionModel = orDefault(o.TranscriptionModel, defaultTranscriptionModel)
	o.SpeechModel = orDefault(o.SpeechModel, defaultSpeechModel)
	o.Voice = orDefault(o.Voice, defaultVoice)
	if o.TimeoutSeconds <= 0 {
		o.TimeoutSeconds = defaultTimeoutSeconds
	}
	if o.MaxTokens <= 0 {
		o.MaxTokens = defaultMaxTokens
	}
	if o.Temperature < 0 || o.Temperature > 2 {
		return fmt.Errorf("openai.temperature must be within [0, 2], got %v", o.Temperature)
	}
	if o.Temperature == 0 {
		o.Temperature = defaultTemperature
	}

	d := &cfg.Dialog
	d.AssetsDir = orDefault(d.AssetsDir, defaultAssetsDir)
	if d.HistoryCap <= 0 {
		d.HistoryCap = defaultHistoryCap
	}
	if d.HistoryCap%2 != 0 {
		return fmt.Errorf("dialog.history_cap must be even (user/assistant pairs), got %d", d.HistoryCap)
	}
	if d.QuizAttempts <= 0 {
		d.QuizAttempts = defaultQuizAttempts
	}
	if d.QuizRetryDelayMS < 0 {
		return fmt.Errorf("dialog.quiz_retry_delay_ms must be >= 0")
	}
	if d.QuizRetryDelayMS == 0 {
		d.QuizRetryDelayMS = defaultQuizDelayMS
	}
	if d.SessionTTLMinutes == 0 {
		d.SessionTTLMinutes = defaultSessionTTLMin
	}
	if d.SessionTTLMinutes < 0 {
		// Negative disables expiry.
		d.SessionTTLMinutes = 0
	}

	if cfg.Database.Enabled && strings.TrimSpace(cfg.Database.Host) == "" {
		return fmt.Errorf("database.host is required when database.enabled is true")
	}
	return nil
}

func orDefault(v, def string) string {
	if s := strings.TrimSpace(v); s != "" {
		return s
	}
	return def
}
