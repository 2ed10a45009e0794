package controller

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

// BotController отвечает на команды бота уведомлений.
// Бот только подсказывает chat id, который указывается при регистрации.
type BotController struct {
	bot    *bot.Bot
	logger *zap.Logger
}

func NewBotController(botInstance *bot.Bot, logger *zap.Logger) *BotController {
	return &BotController{
		bot:    botInstance,
		logger: logger,
	}
}

// RegisterHandlers регистрирует обработчики команд
func (c *BotController) RegisterHandlers(ctx context.Context) error {
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/start", bot.MatchTypeExact, c.handleStart)
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/help", bot.MatchTypeExact, c.handleStart)

	return c.setCommands(ctx)
}

// setCommands устанавливает список команд в меню бота
func (c *BotController) setCommands(ctx context.Context) error {
	_, err := c.bot.SetMyCommands(ctx, &bot.SetMyCommandsParams{
		Commands: []models.BotCommand{
			{Command: "start", Description: "🚀 Подключить уведомления"},
			{Command: "help", Description: "❓ Справка"},
		},
	})

	if err != nil {
		c.logger.Error("Failed to set bot commands", zap.Error(err))
		return err
	}

	c.logger.Info("✅ Bot commands menu set")
	return nil
}

// Start запускает long polling, блокируется до отмены ctx
func (c *BotController) Start(ctx context.Context) {
	c.logger.Info("Starting notification bot...")
	c.bot.Start(ctx)
}

func (c *BotController) handleStart(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}

	chatID := update.Message.Chat.ID
	_, err := b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    chatID,
		ParseMode: models.ParseModeHTML,
		Text:      StartMessage(chatID),
	})
	if err != nil {
		c.logger.Error("Failed to send start message",
			zap.Int64("chat_id", chatID),
			zap.Error(err),
		)
	}
}

// StartMessage текст ответа на /start
func StartMessage(chatID int64) string {
	return fmt.Sprintf(
		"👋 Здесь будут уведомления о бронированиях полей.\n\n"+
			"Ваш chat id: <code>%d</code>\n"+
			"Укажите его в поле telegram_chat_id при регистрации.",
		chatID,
	)
}
