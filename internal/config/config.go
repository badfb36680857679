package config

import (
	"log"
	"time"

	"github.com/caarlos0/env/v6"
)

type LLMProvider string

const (
	ProviderOpenAI LLMProvider = "openai"
	ProviderYandex LLMProvider = "yandex"
)

type Config struct {
	// LLM settings
	LLMProvider      LLMProvider `env:"LLM_PROVIDER" envDefault:"openai"`
	OpenAIAPIKey     string      `env:"OPENAI_API_KEY"`
	OpenAIBaseURL    string      `env:"OPENAI_BASE_URL"`
	ChatModel        string      `env:"CHAT_MODEL" envDefault:"gpt-3.5-turbo"`
	ChatTemperature  float32     `env:"CHAT_TEMPERATURE" envDefault:"0.5"`
	ChatMaxTokens    int         `env:"CHAT_MAX_TOKENS" envDefault:"100"`
	YandexOAuthToken string      `env:"YANDEX_OAUTH_TOKEN"`
	YandexFolderID   string      `env:"YANDEX_FOLDER_ID"`

	// OpenRouter (optional)
	OpenRouterReferrer string `env:"OPENROUTER_REFERRER"`
	OpenRouterTitle    string `env:"OPENROUTER_TITLE"`

	// Speech gateways
	TranscriptionModel string `env:"TRANSCRIPTION_MODEL" envDefault:"whisper-1"`
	SpeechModel        string `env:"SPEECH_MODEL" envDefault:"tts-1"`
	SpeechVoice        string `env:"SPEECH_VOICE" envDefault:"nova"`

	// Prompts
	SystemPromptPath string `env:"SYSTEM_PROMPT_PATH" envDefault:"prompts/system_prompt.txt"`

	// Web shell
	HTTPPort int `env:"HTTP_PORT" envDefault:"8080"`

	// Telegram shell
	TelegramBotToken string  `env:"TELEGRAM_BOT_TOKEN"`
	AllowedUsers     []int64 `env:"ALLOWED_USERS" envSeparator:":"`

	// Sessions
	SessionIdleTTL  time.Duration `env:"SESSION_IDLE_TTL" envDefault:"30m"`
	SessionReapCron string        `env:"SESSION_REAP_CRON" envDefault:"@every 5m"`

	// Storage
	LogFilePath string `env:"LOG_FILE_PATH"`
}

func New() *Config {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}
	return cfg
}
