package bot

import (
	"context"
	"fmt"
	"html"
	"time"

	"github.com/cenkalti/backoff/v4"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"florist-bot/internal/bot/action"
	"florist-bot/internal/bot/dialogue"
	"florist-bot/internal/events"
)

const notifyRetries = 3

// OperatorNotifier delivers new orders to the operator chat and mirrors
// order lifecycle changes to the event stream.
type OperatorNotifier struct {
	api        Sender
	operatorID int64
	events     events.Publisher
	logger     *zap.Logger
	backoff    func() backoff.BackOff
	now        func() time.Time
}

func NewOperatorNotifier(api Sender, operatorID int64, publisher events.Publisher, logger *zap.Logger) *OperatorNotifier {
	return &OperatorNotifier{
		api:        api,
		operatorID: operatorID,
		events:     publisher,
		logger:     logger,
		backoff: func() backoff.BackOff {
			policy := backoff.NewExponentialBackOff()
			policy.InitialInterval = 500 * time.Millisecond
			policy.MaxElapsedTime = 10 * time.Second
			return backoff.WithMaxRetries(policy, notifyRetries)
		},
		now: time.Now,
	}
}

// OrderCreated sends the order card with a completion button to the
// operator. The send is retried; the returned error means the operator
// never got the card.
func (n *OperatorNotifier) OrderCreated(ctx context.Context, ev dialogue.OrderCreated) error {
	data, err := action.Encode(ev.Complete)
	if err != nil {
		return fmt.Errorf("encode completion action: %w", err)
	}

	msg := tgbotapi.NewMessage(n.operatorID, FormatOrderNotification(ev))
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Выполнен", data),
		),
	)

	err = backoff.RetryNotify(
		func() error {
			_, err := n.api.Send(msg)
			return err
		},
		backoff.WithContext(n.backoff(), ctx),
		func(err error, d time.Duration) {
			n.logger.Warn("Operator notification failed, retrying...",
				zap.Int64("order_id", ev.Order.ID),
				zap.Duration("next_attempt_in", d),
				zap.Error(err))
		},
	)

	n.publish(ctx, events.Event{
		Type:         events.TypeOrderCreated,
		OrderID:      ev.Order.ID,
		CustomerID:   ev.Order.CustomerID,
		CustomerName: ev.Order.CustomerName,
		ProductID:    ev.Order.ProductID,
		ProductName:  ev.ProductName,
		DeliveryDate: ev.Order.DeliveryDate,
		OccurredAt:   n.now(),
	})

	if err != nil {
		return fmt.Errorf("send operator notification: %w", err)
	}
	return nil
}

func (n *OperatorNotifier) OrderCompleted(ctx context.Context, orderID int64) error {
	n.publish(ctx, events.Event{
		Type:       events.TypeOrderCompleted,
		OrderID:    orderID,
		OccurredAt: n.now(),
	})
	return nil
}

// publish is best effort: the order is already stored.
func (n *OperatorNotifier) publish(ctx context.Context, ev events.Event) {
	if err := n.events.Publish(ctx, ev); err != nil {
		n.logger.Warn("Failed to publish order event",
			zap.String("type", ev.Type),
			zap.Int64("order_id", ev.OrderID),
			zap.Error(err))
	}
}

func FormatOrderNotification(ev dialogue.OrderCreated) string {
	o := ev.Order
	return fmt.Sprintf(
		"🆕 <b>Новый заказ #%d</b>\n\n"+
			"Клиент: %s (id: %d)\n"+
			"Товар: %s\n"+
			"Телефон: %s\n"+
			"Адрес: %s\n"+
			"Дата доставки: %s",
		o.ID,
		html.EscapeString(o.CustomerName), o.CustomerID,
		html.EscapeString(ev.ProductName),
		html.EscapeString(FormatPhoneNumber(o.Phone)),
		html.EscapeString(o.Address),
		html.EscapeString(o.DeliveryDate),
	)
}
