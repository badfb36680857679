package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"voice-chatter/internal/assistant"
	"voice-chatter/internal/conversation"
)

const resetCmd = "reset_ctx"

// maxVoiceBytes caps a downloaded voice note.
const maxVoiceBytes = 25 << 20

// Bot is the Telegram shell: voice notes and text messages in, reply text
// plus spoken reply out. Each chat gets its own session.
type Bot struct {
	api       *tgbotapi.BotAPI
	s         sender
	assistant *assistant.Assistant
	sessions  *assistant.Manager
	allowed   map[int64]bool
	http      *http.Client

	mu     sync.Mutex
	byChat map[int64]string
}

func New(botToken string, a *assistant.Assistant, sessions *assistant.Manager, allowedUsers []int64) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, err
	}
	b := &Bot{
		api:       api,
		s:         botAPISender{api: api},
		assistant: a,
		sessions:  sessions,
		http:      &http.Client{Timeout: 60 * time.Second},
		byChat:    make(map[int64]string),
	}
	if len(allowedUsers) > 0 {
		b.allowed = make(map[int64]bool, len(allowedUsers))
		for _, id := range allowedUsers {
			b.allowed[id] = true
		}
	}
	return b, nil
}

func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	log.Printf("🤖 Telegram shell started as @%s", b.api.Self.UserName)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message != nil {
				b.handleIncomingMessage(ctx, update.Message)
				continue
			}
			if update.CallbackQuery != nil {
				b.handleCallback(update.CallbackQuery)
				continue
			}
		}
	}
}

func (b *Bot) handleIncomingMessage(ctx context.Context, msg *tgbotapi.Message) {
	if !b.isAllowed(msg.From.ID) {
		log.Printf("Unauthorized access attempt by user ID: %d, username: @%s", msg.From.ID, msg.From.UserName)
		b.sendMessage(msg.Chat.ID, "Sorry, this bot is private.")
		return
	}

	if msg.IsCommand() {
		b.handleCommand(msg)
		return
	}

	if msg.Voice != nil {
		b.handleVoice(ctx, msg)
		return
	}

	if msg.Text != "" {
		log.Printf("Incoming message from %d (@%s): %q", msg.From.ID, msg.From.UserName, msg.Text)
		b.respondTo(ctx, msg.Chat.ID, msg.Text)
	}
}

func (b *Bot) handleCommand(msg *tgbotapi.Message) {
	switch msg.Command() {
	case "start":
		b.sendMessage(msg.Chat.ID, "Send me a voice note or a text message and I will answer with text and speech.")
	case "reset":
		b.resetSession(msg.Chat.ID)
		b.sendMessage(msg.Chat.ID, "Conversation reset.")
	default:
		b.sendMessage(msg.Chat.ID, "Unknown command.")
	}
}

// handleVoice downloads the voice note, transcribes it and runs a turn.
// Telegram voice notes are ogg/opus, which the transcription gateway accepts
// directly.
func (b *Bot) handleVoice(ctx context.Context, msg *tgbotapi.Message) {
	audio, err := b.downloadFile(ctx, msg.Voice.FileID)
	if err != nil {
		log.Printf("failed to download voice note: %v", err)
		b.sendMessage(msg.Chat.ID, "Could not fetch your voice note, please try again.")
		return
	}

	transcript, err := b.assistant.Transcribe(ctx, audio, "ogg")
	if err != nil {
		log.Printf("failed to transcribe voice note: %v", err)
		b.sendMessage(msg.Chat.ID, "Could not transcribe your voice note, please try again.")
		return
	}
	if transcript == "" {
		b.sendMessage(msg.Chat.ID, "I could not hear anything in that recording.")
		return
	}

	log.Printf("Voice note from %d (@%s) transcribed: %q", msg.From.ID, msg.From.UserName, transcript)
	b.sendMessage(msg.Chat.ID, "You said: "+transcript)
	b.respondTo(ctx, msg.Chat.ID, transcript)
}

func (b *Bot) respondTo(ctx context.Context, chatID int64, utterance string) {
	s := b.sessionFor(chatID)

	reply, err := b.assistant.Respond(ctx, s, utterance)
	switch {
	case err == nil:
	case errors.Is(err, conversation.ErrEmptyUtterance):
		return
	default:
		log.Printf("failed to generate reply: %v", err)
		if reply.Text != "" {
			// Synthesis failed after the reply was committed; text still stands.
			b.sendReply(chatID, reply.Text)
			return
		}
		b.sendMessage(chatID, "Sorry, something went wrong. Please try again.")
		return
	}

	b.sendReply(chatID, reply.Text)

	if len(reply.Audio) > 0 {
		audio := tgbotapi.NewAudio(chatID, tgbotapi.FileBytes{Name: "reply.mp3", Bytes: reply.Audio})
		if _, err := b.s.Send(audio); err != nil {
			log.Printf("failed to send audio reply: %v", err)
		}
	}
}

// sendReply sends the assistant text with the reset-context button attached.
func (b *Bot) sendReply(chatID int64, text string) {
	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Reset conversation", resetCmd),
		),
	)
	out := tgbotapi.NewMessage(chatID, text)
	out.ReplyMarkup = kb
	if _, err := b.s.Send(out); err != nil {
		log.Printf("failed to send message: %v", err)
	}
}

func (b *Bot) handleCallback(cb *tgbotapi.CallbackQuery) {
	if cb.Data != resetCmd || cb.Message == nil {
		return
	}
	b.resetSession(cb.Message.Chat.ID)
	if b.api != nil {
		if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "Context cleared")); err != nil {
			log.Printf("failed to answer callback: %v", err)
		}
	}
	b.sendMessage(cb.Message.Chat.ID, "Conversation reset.")
}

// sessionFor returns the chat's session, creating one on first contact.
func (b *Bot) sessionFor(chatID int64) *assistant.Session {
	b.mu.Lock()
	defer b.mu.Unlock()
	if id, ok := b.byChat[chatID]; ok {
		if s := b.sessions.Get(id); s != nil {
			return s
		}
		// Reaped while idle; fall through and start fresh.
	}
	s := b.sessions.Create()
	b.byChat[chatID] = s.ID
	return s
}

func (b *Bot) resetSession(chatID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if id, ok := b.byChat[chatID]; ok {
		b.sessions.Remove(id)
		delete(b.byChat, chatID)
	}
}

func (b *Bot) isAllowed(userID int64) bool {
	if b.allowed == nil {
		return true
	}
	return b.allowed[userID]
}

func (b *Bot) sendMessage(chatID int64, text string) {
	if _, err := b.s.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		log.Printf("failed to send message: %v", err)
	}
}

func (b *Bot) downloadFile(ctx context.Context, fileID string) ([]byte, error) {
	url, err := b.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("resolve file url: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build download request: %w", err)
	}
	resp, err := b.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download file: unexpected status %s", resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxVoiceBytes))
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return data, nil
}
