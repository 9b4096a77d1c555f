package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"prepmic/internal/domain"
)

// Config stores runtime configuration for the interview backend.
type Config struct {
	OpenRouter OpenRouterConfig
	Deepgram   DeepgramConfig
	Interview  InterviewConfig
	Session    SessionConfig
}

type OpenRouterConfig struct {
	APIKey     string
	APIBaseURL string
	Model      string
}

type DeepgramConfig struct {
	APIKey      string
	APIBaseURL  string
	Model       string
	SampleRate  int
	Channels    int
	Encoding    string
	SmartFormat bool
}

// InterviewConfig is the pacing policy, loadable from interview.yaml.
type InterviewConfig struct {
	MaxQuestions      int    `yaml:"max_questions"`
	DefaultDifficulty string `yaml:"default_difficulty"`
	DefaultLanguage   string `yaml:"default_language"`
	CountdownSeconds  int    `yaml:"countdown_seconds"`
}

type SessionConfig struct {
	Timeout       time.Duration
	SweepInterval time.Duration
}

// Load resolves configuration from environment variables, an optional
// interview.yaml settings file and sensible defaults.
func Load() (Config, error) {
	// A .env in the working directory is optional.
	_ = godotenv.Load()

	cfg := Config{
		OpenRouter: OpenRouterConfig{
			APIKey:     strings.TrimSpace(os.Getenv("OPENROUTER_API_KEY")),
			APIBaseURL: envOrDefault("OPENROUTER_API_BASE", "https://openrouter.ai/api/v1"),
			Model:      envOrDefault("OPENROUTER_MODEL", "openai/gpt-4o-mini"),
		},
		Deepgram: DeepgramConfig{
			APIKey:      strings.TrimSpace(os.Getenv("DEEPGRAM_API_KEY")),
			APIBaseURL:  envOrDefault("DEEPGRAM_API_BASE", "https://api.deepgram.com/v1"),
			Model:       envOrDefault("DEEPGRAM_MODEL", "nova-2"),
			SampleRate:  envOrDefaultInt("PREPMIC_SAMPLE_RATE", 16000),
			Channels:    envOrDefaultInt("PREPMIC_CHANNELS", 1),
			Encoding:    envOrDefault("PREPMIC_AUDIO_ENCODING", "linear16"),
			SmartFormat: envOrDefaultBool("DEEPGRAM_SMART_FORMAT", true),
		},
		Interview: InterviewConfig{
			MaxQuestions:      10,
			DefaultDifficulty: string(domain.DifficultyMedium),
			DefaultLanguage:   string(domain.LanguageEnglish),
			CountdownSeconds:  4,
		},
		Session: SessionConfig{
			Timeout:       time.Duration(envOrDefaultInt("PREPMIC_SESSION_TIMEOUT_MINUTES", 10)) * time.Minute,
			SweepInterval: time.Duration(envOrDefaultInt("PREPMIC_SWEEP_INTERVAL_SECONDS", 30)) * time.Second,
		},
	}

	if path := interviewFilePath(); path != "" {
		if err := loadInterviewFile(path, &cfg.Interview); err != nil {
			return Config{}, err
		}
	}

	if cfg.Deepgram.SampleRate <= 0 {
		cfg.Deepgram.SampleRate = 16000
	}
	if cfg.Deepgram.Channels <= 0 {
		cfg.Deepgram.Channels = 1
	}
	if err := validateInterview(cfg.Interview); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Countdown returns the auto-submit silence window.
func (c InterviewConfig) Countdown() time.Duration {
	return time.Duration(c.CountdownSeconds) * time.Second
}

func interviewFilePath() string {
	if path := strings.TrimSpace(os.Getenv("PREPMIC_INTERVIEW_FILE")); path != "" {
		return path
	}
	if _, err := os.Stat("interview.yaml"); err == nil {
		return "interview.yaml"
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	fallback := filepath.Join(home, ".config", "prepmic", "interview.yaml")
	if _, err := os.Stat(fallback); err == nil {
		return fallback
	}
	return ""
}

func loadInterviewFile(path string, interview *InterviewConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("could not read interview settings %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, interview); err != nil {
		return fmt.Errorf("could not parse interview settings %s: %w", path, err)
	}
	return nil
}

func validateInterview(interview InterviewConfig) error {
	if interview.MaxQuestions <= 0 {
		return fmt.Errorf("max_questions must be positive, got %d", interview.MaxQuestions)
	}
	if !domain.Difficulty(interview.DefaultDifficulty).Valid() {
		return fmt.Errorf("unknown default_difficulty %q", interview.DefaultDifficulty)
	}
	if interview.CountdownSeconds <= 0 {
		return fmt.Errorf("countdown_seconds must be positive, got %d", interview.CountdownSeconds)
	}
	switch domain.Language(interview.DefaultLanguage) {
	case domain.LanguageEnglish, domain.LanguageHinglish:
	default:
		return fmt.Errorf("unknown default_language %q", interview.DefaultLanguage)
	}
	return nil
}

func envOrDefault(key string, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrDefaultInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrDefaultBool(key string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
