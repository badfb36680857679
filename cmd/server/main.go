package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"voice-chatter/internal/assistant"
	"voice-chatter/internal/config"
	"voice-chatter/internal/llm"
	"voice-chatter/internal/scheduler"
	"voice-chatter/internal/speech"
	"voice-chatter/internal/storage"
	"voice-chatter/internal/web"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: .env file not found: %v", err)
	}

	cfg := config.New()

	factory := llm.Factory{
		OpenaiAPIKey:       cfg.OpenAIAPIKey,
		OpenaiBaseURL:      cfg.OpenAIBaseURL,
		OpenRouterReferrer: cfg.OpenRouterReferrer,
		OpenRouterTitle:    cfg.OpenRouterTitle,
		YandexOAuthToken:   cfg.YandexOAuthToken,
		YandexFolderID:     cfg.YandexFolderID,
		Sampling: llm.Sampling{
			Temperature: cfg.ChatTemperature,
			MaxTokens:   cfg.ChatMaxTokens,
		},
	}
	llmClient, err := factory.CreateClient(string(cfg.LLMProvider), cfg.ChatModel)
	if err != nil {
		log.Fatalf("failed to create llm client: %v", err)
	}

	stt := speech.NewOpenAITranscriber(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.TranscriptionModel)
	tts := speech.NewOpenAISynthesizer(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.SpeechModel, cfg.SpeechVoice)

	a := assistant.New(llmClient, stt, tts)
	if cfg.LogFilePath != "" {
		rec, err := storage.NewFileRecorder(cfg.LogFilePath)
		if err != nil {
			log.Printf("failed to init file recorder: %v", err)
		} else {
			a.SetRecorder(rec)
		}
	}

	sessions := assistant.NewManager(readSystemPrompt(cfg.SystemPromptPath))

	reaper := scheduler.New(cfg.SessionReapCron)
	reaper.SetTask(func(ctx context.Context) error {
		sessions.Reap(cfg.SessionIdleTTL)
		return nil
	})
	if err := reaper.Start(); err != nil {
		log.Fatalf("failed to start session reaper: %v", err)
	}
	defer reaper.Stop()

	ws := web.NewWebServer(a, sessions, cfg.HTTPPort)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		if err := ws.Stop(); err != nil {
			log.Printf("failed to stop web server: %v", err)
		}
	}()

	if err := ws.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("web server failed: %v", err)
	}
}

func readSystemPrompt(path string) string {
	if path == "" {
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		log.Printf("system prompt file not found or unreadable at %s: %v", path, err)
		return ""
	}
	return string(data)
}
