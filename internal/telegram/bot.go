// Package telegram is the transport layer: long-polling update loop,
// single-user authorization, rate limiting, command routing, and
// inline-keyboard pagination. It owns no query logic — every database
// interaction goes through the engine's read-only pipeline.
package telegram

import (
	"context"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	vitalsbot "github.com/kristjanh/vitalsbot"
	"github.com/kristjanh/vitalsbot/internal/ratelimit"
)

// Bot wires the Telegram API to the engine.
type Bot struct {
	api     *tgbotapi.BotAPI
	engine  *vitalsbot.Engine
	cfg     *vitalsbot.BotConfig
	loc     *time.Location
	logger  zerolog.Logger
	limiter *ratelimit.Limiter

	// Guided-builder conversation state, one session per chat.
	sessions sync.Map // int64 -> *session

	// Bounded worker pool: one slot per in-flight update handler.
	workers chan struct{}
}

// New creates a Bot. workerCount bounds concurrent update handlers.
func New(api *tgbotapi.BotAPI, engine *vitalsbot.Engine, cfg *vitalsbot.BotConfig, loc *time.Location, logger zerolog.Logger) *Bot {
	workerCount := cfg.Pool.MaxConns * 2
	if workerCount < 4 {
		workerCount = 4
	}
	return &Bot{
		api:     api,
		engine:  engine,
		cfg:     cfg,
		loc:     loc,
		logger:  logger,
		limiter: ratelimit.New(cfg.RateLimit.MaxCalls, time.Duration(cfg.RateLimit.WindowSeconds)*time.Second),
		workers: make(chan struct{}, workerCount),
	}
}

// Run polls for updates until ctx is cancelled. Each update is handled on
// its own goroutine, bounded by the worker pool, so a slow query never
// blocks the scheduling of other interactions.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	u.AllowedUpdates = []string{"message", "callback_query"}
	updates := b.api.GetUpdatesChan(u)

	b.logger.Info().Str("username", b.api.Self.UserName).Msg("bot is polling")

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			select {
			case b.workers <- struct{}{}:
			case <-ctx.Done():
				b.api.StopReceivingUpdates()
				return ctx.Err()
			}
			go func(update tgbotapi.Update) {
				defer func() { <-b.workers }()
				b.handleUpdate(ctx, update)
			}(update)
		}
	}
}

// handleUpdate applies the auth and rate-limit gates, then dispatches.
// Authorization denial short-circuits before any engine call.
func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	userID, chatID := updateIdentity(update)
	if userID == 0 {
		return
	}

	if userID != b.cfg.AllowedUserID {
		b.logger.Warn().Int64("user_id", userID).Msg("auth denied")
		if update.Message != nil {
			b.send(chatID, "Sorry, this bot is private.", nil)
		} else if update.CallbackQuery != nil {
			b.answerCallback(update.CallbackQuery.ID, "Access denied.")
		}
		return
	}

	if !b.limiter.Allow(userID) {
		b.logger.Warn().Int64("user_id", userID).Msg("rate limit hit")
		if update.Message != nil {
			b.send(chatID, "Slow down! Too many requests.", nil)
		} else if update.CallbackQuery != nil {
			b.answerCallback(update.CallbackQuery.ID, "Too many requests. Wait a moment.")
		}
		return
	}

	switch {
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.IsCommand() {
		b.handleCommand(ctx, msg)
		return
	}
	// Non-command text only matters when a raw-SQL session is waiting.
	if s := b.session(msg.Chat.ID); s != nil && s.stage == stageEnterSQL {
		b.sessions.Delete(msg.Chat.ID)
		b.runRawSQL(ctx, msg.Chat.ID, msg.Text)
		return
	}
	b.send(msg.Chat.ID, "Send a command. Try /start for the overview.", nil)
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	switch msg.Command() {
	case "start", "help":
		b.sendHTML(chatID, helpText(), mainMenuKeyboard())
	case "weight", "steps", "heart", "sleep":
		b.domainView(ctx, chatID, 0, msg.Command(), 0)
	case "today":
		b.todayView(ctx, chatID)
	case "week":
		b.periodView(ctx, chatID, 7)
	case "month":
		b.periodView(ctx, chatID, 30)
	case "tables":
		b.tablesView(ctx, chatID, 0)
	case "describe":
		b.describeView(ctx, chatID, strings.TrimSpace(msg.CommandArguments()))
	case "q":
		b.queryEntry(chatID, 0)
	case "health":
		b.healthView(ctx, chatID)
	case "cancel":
		b.sessions.Delete(chatID)
		b.send(chatID, "Cancelled.", nil)
	default:
		b.send(chatID, "Unknown command. Try /start.", nil)
	}
}

func updateIdentity(update tgbotapi.Update) (userID, chatID int64) {
	switch {
	case update.Message != nil && update.Message.From != nil:
		return update.Message.From.ID, update.Message.Chat.ID
	case update.CallbackQuery != nil && update.CallbackQuery.From != nil:
		cq := update.CallbackQuery
		if cq.Message != nil {
			return cq.From.ID, cq.Message.Chat.ID
		}
		return cq.From.ID, 0
	}
	return 0, 0
}

// --- send helpers ---

func (b *Bot) send(chatID int64, text string, keyboard *tgbotapi.InlineKeyboardMarkup) {
	msg := tgbotapi.NewMessage(chatID, text)
	if keyboard != nil {
		msg.ReplyMarkup = keyboard
	}
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error().Err(err).Int64("chat_id", chatID).Msg("send failed")
	}
}

func (b *Bot) sendHTML(chatID int64, html string, keyboard *tgbotapi.InlineKeyboardMarkup) {
	msg := tgbotapi.NewMessage(chatID, html)
	msg.ParseMode = tgbotapi.ModeHTML
	if keyboard != nil {
		msg.ReplyMarkup = keyboard
	}
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error().Err(err).Int64("chat_id", chatID).Msg("send failed")
	}
}

func (b *Bot) editHTML(chatID int64, messageID int, html string, keyboard *tgbotapi.InlineKeyboardMarkup) {
	var msg tgbotapi.Chattable
	if keyboard != nil {
		m := tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, html, *keyboard)
		m.ParseMode = tgbotapi.ModeHTML
		msg = m
	} else {
		m := tgbotapi.NewEditMessageText(chatID, messageID, html)
		m.ParseMode = tgbotapi.ModeHTML
		msg = m
	}
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error().Err(err).Int64("chat_id", chatID).Msg("edit failed")
	}
}

func (b *Bot) answerCallback(id, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(id, text)); err != nil {
		b.logger.Error().Err(err).Msg("callback answer failed")
	}
}
