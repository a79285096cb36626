package dialogue

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	"go.uber.org/zap"

	"florist-bot/internal/bot/action"
	"florist-bot/internal/bot/state"
	"florist-bot/internal/catalog"
)

func (c *Controller) buy(ctx context.Context, sess state.Session, ev Event, productID int64) Response {
	if _, err := c.catalog.Product(ctx, productID); err != nil {
		if errors.Is(err, catalog.ErrProductNotFound) {
			return Response{Answer: Answer{Text: textProductNotFound, Alert: true}, Err: err}
		}
		return c.failure(ev, fmt.Errorf("get product: %w", err))
	}

	_, err := c.sessions.Update(ctx, sess.CustomerID, func(s *state.Session) {
		s.Stage = state.StageAwaitingPhone
		s.Draft = state.Draft{ProductID: productID}
	})
	if err != nil {
		return c.failure(ev, fmt.Errorf("update session: %w", err))
	}

	return Response{Replies: []Reply{{Text: textAskPhone, Buttons: cancelKeyboard()}}}
}

func (c *Controller) submitPhone(ctx context.Context, sess state.Session, ev Event) Response {
	if !IsValidPhoneNumber(ev.Text) {
		return rejectInput(textInvalidPhone, "phone")
	}

	phone := NormalizePhoneNumber(ev.Text)
	return c.advance(ctx, ev, sess.CustomerID, func(s *state.Session) {
		s.Draft.Phone = phone
		s.Stage = state.StageAwaitingAddress
	}, Reply{Text: textAskAddress, Buttons: cancelKeyboard()})
}

func (c *Controller) submitAddress(ctx context.Context, sess state.Session, ev Event) Response {
	address, ok := ValidFreeText(ev.Text, MinAddressLength)
	if !ok {
		return rejectInput(textInvalidAddress, "address")
	}

	return c.advance(ctx, ev, sess.CustomerID, func(s *state.Session) {
		s.Draft.Address = address
		s.Stage = state.StageAwaitingDate
	}, Reply{Text: textAskDate, Buttons: cancelKeyboard()})
}

func (c *Controller) submitDate(ctx context.Context, sess state.Session, ev Event) Response {
	date, ok := ValidFreeText(ev.Text, MinDateLength)
	if !ok {
		return rejectInput(textInvalidDate, "date")
	}

	draft := sess.Draft
	draft.Date = date
	summary := orderSummary(c.productName(ctx, draft.ProductID), draft)

	return c.advance(ctx, ev, sess.CustomerID, func(s *state.Session) {
		s.Draft.Date = date
		s.Stage = state.StageAwaitingConfirmation
	}, Reply{Text: summary, HTML: true, Buttons: confirmKeyboard()})
}

func (c *Controller) advance(ctx context.Context, ev Event, customerID int64, patch func(*state.Session), next Reply) Response {
	if _, err := c.sessions.Update(ctx, customerID, patch); err != nil {
		return c.failure(ev, fmt.Errorf("update session: %w", err))
	}
	return Response{Replies: []Reply{next}}
}

// rejectInput re-prompts without touching the session.
func rejectInput(text, field string) Response {
	return Response{
		Replies: []Reply{{Text: text, Buttons: cancelKeyboard()}},
		Err:     fmt.Errorf("%w: %s", ErrValidationFailed, field),
	}
}

// confirm creates at most one order per draft: the first confirm clears
// the session, so a repeated confirm finds nothing to confirm.
func (c *Controller) confirm(ctx context.Context, sess state.Session, ev Event) Response {
	if sess.Stage != state.StageAwaitingConfirmation || !sess.Draft.Complete() {
		c.logger.Debug("Ignoring confirm outside of confirmation stage",
			zap.Int64("user_id", sess.CustomerID),
			zap.String("stage", string(sess.Stage)))
		return Response{}
	}

	draft := sess.Draft
	order := catalog.NewOrder{
		CustomerID:   ev.UserID,
		CustomerName: ev.CustomerName,
		Phone:        draft.Phone,
		Address:      draft.Address,
		DeliveryDate: draft.Date,
		ProductID:    draft.ProductID,
	}

	orderID, err := c.catalog.CreateOrder(ctx, order)
	if err != nil {
		c.logger.Error("Failed to create order",
			zap.Int64("user_id", sess.CustomerID),
			zap.Error(err))
		return Response{Answer: Answer{Text: textOrderFailed, Alert: true}, Err: fmt.Errorf("create order: %w", err)}
	}

	c.logger.Info("Order created",
		zap.Int64("order_id", orderID),
		zap.Int64("user_id", sess.CustomerID),
		zap.Int64("product_id", draft.ProductID))

	resp := Response{
		Replies: []Reply{navReply(ev,
			fmt.Sprintf("✅ Заказ #%d принят! Мы свяжемся с вами по номеру %s.", orderID, draft.Phone),
			[][]Button{{{Text: "Каталог", Action: action.CategoryList()}}},
		)},
	}

	// The order exists from here on; nothing below may undo it.
	if err := c.sessions.Clear(ctx, sess.CustomerID); err != nil {
		c.logger.Error("Failed to clear session after order",
			zap.Int64("user_id", sess.CustomerID),
			zap.Int64("order_id", orderID),
			zap.Error(err))
	}

	created := OrderCreated{
		Order: catalog.Order{
			ID:           orderID,
			CustomerID:   order.CustomerID,
			CustomerName: order.CustomerName,
			Phone:        order.Phone,
			Address:      order.Address,
			DeliveryDate: order.DeliveryDate,
			ProductID:    order.ProductID,
			Status:       catalog.StatusNew,
		},
		ProductName: c.productName(ctx, draft.ProductID),
		Complete:    action.MarkComplete(orderID),
	}
	if err := c.notifier.OrderCreated(ctx, created); err != nil {
		c.logger.Warn("Failed to notify operator about new order",
			zap.Int64("order_id", orderID),
			zap.Error(err))
		resp.Err = fmt.Errorf("%w: %v", ErrNotifierUnavailable, err)
	}

	return resp
}

func (c *Controller) markComplete(ctx context.Context, ev Event, orderID int64) Response {
	if !c.IsOperator(ev.UserID) {
		c.logger.Warn("Rejected mark-complete from non-operator",
			zap.Int64("user_id", ev.UserID),
			zap.Int64("order_id", orderID))
		return Response{
			Answer: Answer{Text: textDenied},
			Err:    fmt.Errorf("%w: user %d", ErrUnauthorized, ev.UserID),
		}
	}

	changed, err := c.catalog.MarkOrderCompleted(ctx, orderID)
	if err != nil {
		if errors.Is(err, catalog.ErrOrderNotFound) {
			return Response{Answer: Answer{Text: textOrderMissing, Alert: true}, Err: err}
		}
		return c.failure(ev, fmt.Errorf("mark order completed: %w", err))
	}

	if changed {
		if err := c.notifier.OrderCompleted(ctx, orderID); err != nil {
			c.logger.Warn("Failed to publish order completion",
				zap.Int64("order_id", orderID),
				zap.Error(err))
		}
	}

	resp := Response{Answer: Answer{Text: textOrderMarkedDone}}
	if ev.PriorText != "" && !strings.Contains(ev.PriorText, textCompletionMarker) {
		resp.Replies = []Reply{{
			Mode:     ModeEdit,
			Text:     ev.PriorText + "\n\n" + textCompletionMarker,
			Appended: true,
		}}
	}
	return resp
}

func (c *Controller) productName(ctx context.Context, productID int64) string {
	name, err := c.catalog.ProductDisplayName(ctx, productID)
	if err != nil {
		c.logger.Warn("Failed to resolve product name",
			zap.Int64("product_id", productID),
			zap.Error(err))
		return textUnknownProduct
	}
	return name
}

func orderSummary(productName string, d state.Draft) string {
	return fmt.Sprintf("<b>Ваш заказ:</b>\n\n"+
		"Товар: %s\n"+
		"Телефон: %s\n"+
		"Адрес: %s\n"+
		"Дата доставки: %s\n\n"+
		"Подтвердить заказ?",
		html.EscapeString(productName),
		html.EscapeString(d.Phone),
		html.EscapeString(d.Address),
		html.EscapeString(d.Date),
	)
}
