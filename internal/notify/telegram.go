// Package notify рассылает уведомления о бронированиях в Telegram
package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Freeeeeet/field_rental/internal/model"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

const sendTimeout = 10 * time.Second

// После трёх неудач подряд отправка приостанавливается на breakerTimeout
const (
	breakerFailures = 3
	breakerTimeout  = 30 * time.Second
)

// MessageSender часть API бота, нужная для уведомлений
type MessageSender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

// TelegramNotifier отправляет сообщения в фоне, не задерживая запрос
type TelegramNotifier struct {
	sender  MessageSender
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
	wg      sync.WaitGroup
}

// NewTelegramBot создаёт клиента бота без запроса getMe при старте
func NewTelegramBot(token string) (*bot.Bot, error) {
	b, err := bot.New(token, bot.WithSkipGetMe())
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return b, nil
}

func NewTelegramNotifier(sender MessageSender, logger *zap.Logger) *TelegramNotifier {
	return &TelegramNotifier{
		sender:  sender,
		breaker: newBreaker("telegram", logger),
		logger:  logger,
	}
}

func newBreaker(name string, logger *zap.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     breakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
}

// BookingCreated сообщает владельцу поля о новой заявке
func (n *TelegramNotifier) BookingCreated(_ context.Context, owner *model.User, field *model.Field, booking *model.Booking) {
	if owner.TelegramChatID == nil {
		return
	}

	text := fmt.Sprintf(
		"🆕 <b>Новое бронирование</b>\n\n🏟 %s\n🕐 %s\n💰 %s\n\nПодтвердите или отмените заявку в кабинете владельца.",
		field.Name,
		FormatSlot(booking.StartTime, booking.EndTime),
		FormatPrice(booking.TotalPrice),
	)

	n.send(*owner.TelegramChatID, booking, text)
}

// BookingStatusChanged сообщает арендатору о решении владельца
func (n *TelegramNotifier) BookingStatusChanged(_ context.Context, renter *model.User, booking *model.Booking) {
	if renter.TelegramChatID == nil {
		return
	}

	display := GetBookingStatusDisplay(booking.Status)
	fieldName := ""
	if booking.Field != nil {
		fieldName = booking.Field.Name
	}

	text := fmt.Sprintf(
		"%s <b>Статус бронирования: %s</b>\n\n🏟 %s\n🕐 %s",
		display.Emoji,
		display.Text,
		fieldName,
		FormatSlot(booking.StartTime, booking.EndTime),
	)

	n.send(*renter.TelegramChatID, booking, text)
}

// Wait дожидается отправки всех сообщений
func (n *TelegramNotifier) Wait() {
	n.wg.Wait()
}

// send не использует контекст запроса: он отменяется раньше, чем уйдёт сообщение
func (n *TelegramNotifier) send(chatID int64, booking *model.Booking, text string) {
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()

		_, err := n.breaker.Execute(func() (interface{}, error) {
			return n.sender.SendMessage(ctx, &bot.SendMessageParams{
				ChatID:    chatID,
				Text:      text,
				ParseMode: models.ParseModeHTML,
			})
		})
		if err != nil {
			n.logger.Error("Failed to send notification",
				zap.Int64("chat_id", chatID),
				zap.String("booking_id", booking.ID.String()),
				zap.Error(err),
			)
		}
	}()
}
