package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"florist-bot/internal/bot/action"
	"florist-bot/internal/bot/dialogue"
	"florist-bot/internal/catalog"
	"florist-bot/internal/storage"
)

// Sender is the part of *tgbotapi.BotAPI the bot talks through.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Reports backs the operator commands.
type Reports interface {
	ExportOrdersToExcel(ctx context.Context, dir string, now time.Time) (string, error)
	OrderStats(ctx context.Context) (storage.OrderStats, error)
}

type Bot struct {
	api        Sender
	controller *dialogue.Controller
	reports    Reports
	reportsDir string
	logger     *zap.Logger
	dispatcher *dispatcher
	now        func() time.Time
}

// NewAPI authorizes the bot token.
func NewAPI(token string, debug bool, logger *zap.Logger) (*tgbotapi.BotAPI, error) {
	botAPI, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot API: %w", err)
	}

	botAPI.Debug = debug

	logger.Info("Bot authorized",
		zap.String("username", botAPI.Self.UserName),
		zap.Int64("id", botAPI.Self.ID))

	return botAPI, nil
}

func New(
	api Sender,
	controller *dialogue.Controller,
	reports Reports,
	reportsDir string,
	logger *zap.Logger,
) *Bot {
	return &Bot{
		api:        api,
		controller: controller,
		reports:    reports,
		reportsDir: reportsDir,
		logger:     logger,
		dispatcher: newDispatcher(),
		now:        time.Now,
	}
}

// Start consumes updates until ctx is cancelled or the channel closes, then
// waits for in-flight updates to finish.
func (b *Bot) Start(ctx context.Context, updates <-chan tgbotapi.Update) error {
	b.logger.Info("Starting bot")
	defer b.dispatcher.Wait()

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("Shutting down bot")
			return nil

		case update, ok := <-updates:
			if !ok {
				b.logger.Info("Update channel closed")
				return nil
			}
			userID, ok := updateSenderID(update)
			if !ok {
				continue
			}
			b.dispatcher.Dispatch(userID, func() {
				b.HandleUpdate(ctx, update)
			})
		}
	}
}

// updateSenderID returns the user behind an update; updates are ordered
// per user.
func updateSenderID(update tgbotapi.Update) (int64, bool) {
	switch {
	case update.Message != nil && update.Message.From != nil:
		return update.Message.From.ID, true
	case update.CallbackQuery != nil && update.CallbackQuery.From != nil:
		return update.CallbackQuery.From.ID, true
	}
	return 0, false
}

// HandleUpdate processes one update synchronously.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	logger := b.logger.With(zap.String("rid", uuid.NewString()))

	switch {
	case update.Message != nil:
		b.processMessage(ctx, logger, update.Message)
	case update.CallbackQuery != nil:
		b.processCallback(ctx, logger, update.CallbackQuery)
	}
}

func (b *Bot) processMessage(ctx context.Context, logger *zap.Logger, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	// Channel posts and anonymous group admins carry no user.
	if msg.From == nil {
		logger.Debug("Skipping message without sender", zap.Int64("chat_id", chatID))
		return
	}
	userID := msg.From.ID

	logger.Debug("Processing message",
		zap.Int64("chat_id", chatID),
		zap.Int64("user_id", userID),
		zap.String("text", msg.Text))

	ev := dialogue.Event{
		Kind:         dialogue.EventText,
		UserID:       userID,
		CustomerName: fullName(msg.From),
		Text:         msg.Text,
	}

	if msg.IsCommand() {
		cmd := msg.Command()
		if b.controller.IsOperator(userID) && b.handleOperatorCommand(ctx, logger, chatID, cmd) {
			return
		}
		ev.Kind = dialogue.EventCommand
		ev.Command = cmd
	}

	resp := b.controller.Handle(ctx, ev)
	b.logOutcome(logger, chatID, resp.Err)

	for _, reply := range resp.Replies {
		if err := b.render(chatID, nil, reply); err != nil {
			logger.Error("Failed to render reply",
				zap.Int64("chat_id", chatID),
				zap.Error(err))
		}
	}
}

func (b *Bot) processCallback(ctx context.Context, logger *zap.Logger, cq *tgbotapi.CallbackQuery) {
	if cq.Message == nil || cq.From == nil {
		b.answer(logger, cq.ID, dialogue.Answer{})
		return
	}

	chatID := cq.Message.Chat.ID

	logger.Debug("Processing callback",
		zap.Int64("chat_id", chatID),
		zap.Int64("user_id", cq.From.ID),
		zap.String("data", cq.Data))

	resp := b.controller.Handle(ctx, dialogue.Event{
		Kind:          dialogue.EventAction,
		UserID:        cq.From.ID,
		CustomerName:  fullName(cq.From),
		Token:         cq.Data,
		PriorHasPhoto: len(cq.Message.Photo) > 0,
		PriorText:     cq.Message.Text,
	})
	b.logOutcome(logger, chatID, resp.Err)

	// The tap is acknowledged first so the client stops its spinner even if
	// rendering is slow.
	b.answer(logger, cq.ID, resp.Answer)

	for _, reply := range resp.Replies {
		if err := b.render(chatID, cq.Message, reply); err != nil {
			logger.Error("Failed to render reply",
				zap.Int64("chat_id", chatID),
				zap.Error(err))
		}
	}
}

func (b *Bot) answer(logger *zap.Logger, callbackID string, a dialogue.Answer) {
	cfg := tgbotapi.NewCallback(callbackID, a.Text)
	cfg.ShowAlert = a.Alert
	if _, err := b.api.Request(cfg); err != nil {
		logger.Warn("Failed to answer callback", zap.Error(err))
	}
}

// logOutcome logs a recovered condition at a level matching its severity.
func (b *Bot) logOutcome(logger *zap.Logger, chatID int64, err error) {
	if err == nil {
		return
	}

	fields := []zap.Field{zap.Int64("chat_id", chatID), zap.Error(err)}
	switch {
	case errors.Is(err, action.ErrInvalidAction),
		errors.Is(err, dialogue.ErrValidationFailed),
		errors.Is(err, dialogue.ErrEmptyCategory),
		errors.Is(err, catalog.ErrProductNotFound),
		errors.Is(err, catalog.ErrOrderNotFound):
		logger.Debug("Event rejected", fields...)
	case errors.Is(err, dialogue.ErrUnauthorized),
		errors.Is(err, dialogue.ErrNotifierUnavailable):
		logger.Warn("Event handled with warnings", fields...)
	default:
		logger.Error("Event handling failed", fields...)
	}
}

func (b *Bot) sendMessage(msg tgbotapi.MessageConfig) {
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("Failed to send message",
			zap.Int64("chat_id", msg.ChatID),
			zap.String("text", msg.Text),
			zap.Error(err))
	}
}

func (b *Bot) sendError(chatID int64, text string) {
	b.sendMessage(tgbotapi.NewMessage(chatID, "❌ "+text))
}
