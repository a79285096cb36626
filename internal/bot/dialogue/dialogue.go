// Package dialogue is the conversation state machine of the storefront.
//
// The controller turns one inbound event plus the customer's session into a
// session mutation and a Response describing what to render. It never talks
// to Telegram; the bot package renders Responses.
package dialogue

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"florist-bot/internal/bot/action"
	"florist-bot/internal/bot/state"
	"florist-bot/internal/catalog"
)

var (
	ErrValidationFailed    = errors.New("dialogue: validation failed")
	ErrEmptyCategory       = errors.New("dialogue: empty category")
	ErrUnauthorized        = errors.New("dialogue: unauthorized")
	ErrNotifierUnavailable = errors.New("dialogue: notifier unavailable")
)

// Catalog is the product and order store.
type Catalog interface {
	FindProduct(ctx context.Context, category catalog.Category, offset int) (catalog.Product, error)
	CountProducts(ctx context.Context, category catalog.Category) (int, error)
	Product(ctx context.Context, productID int64) (catalog.Product, error)
	CreateOrder(ctx context.Context, order catalog.NewOrder) (int64, error)
	ProductDisplayName(ctx context.Context, productID int64) (string, error)
	// MarkOrderCompleted reports whether the call changed the order.
	MarkOrderCompleted(ctx context.Context, orderID int64) (bool, error)
}

// Notifier delivers order events to the operator.
type Notifier interface {
	OrderCreated(ctx context.Context, ev OrderCreated) error
	OrderCompleted(ctx context.Context, orderID int64) error
}

// OrderCreated carries everything the operator needs to fulfil an order.
type OrderCreated struct {
	Order       catalog.Order
	ProductName string
	Complete    action.Action
}

type EventKind int

const (
	EventCommand EventKind = iota + 1
	EventText
	EventAction
)

// Event is one inbound interaction.
type Event struct {
	Kind         EventKind
	// UserID is the Telegram user who sent the message or tapped the button,
	// not the chat it happened in. Sessions, orders and the operator check
	// all key on it.
	UserID       int64
	CustomerName string

	// Command is the bot command without the leading slash.
	Command string
	Text    string
	// Token is the raw inline button payload.
	Token string

	// PriorHasPhoto and PriorText describe the message that carried the
	// tapped button.
	PriorHasPhoto bool
	PriorText     string
}

// Mode says what to do with the message that carried the tapped button.
type Mode int

const (
	// ModeSend sends a new message and leaves the prior one alone.
	ModeSend Mode = iota
	// ModeEdit edits the prior message in place. A Reply with a Photo
	// replaces the prior photo and caption.
	ModeEdit
	// ModeReplace deletes the prior message and sends a new one.
	ModeReplace
)

type Button struct {
	Text   string
	Action action.Action
}

// Reply is one render instruction. With Photo set, Text is the caption.
type Reply struct {
	Mode     Mode
	Text     string
	Photo    string
	HTML     bool
	Buttons  [][]Button
	// Appended marks an edit whose Text is the prior message text plus a
	// suffix. The prior formatting is kept and the suffix is set in bold.
	Appended bool
}

// Answer acknowledges a button tap. Alert shows a modal to the customer
// who tapped; it is never visible to anyone else.
type Answer struct {
	Text  string
	Alert bool
}

type Response struct {
	Replies []Reply
	Answer  Answer
	// Err is the recovered condition, if any, for logging.
	Err error
}

type Controller struct {
	sessions   state.Store
	catalog    Catalog
	notifier   Notifier
	operatorID int64
	logger     *zap.Logger
}

func New(
	sessions state.Store,
	catalog Catalog,
	notifier Notifier,
	operatorID int64,
	logger *zap.Logger,
) *Controller {
	return &Controller{
		sessions:   sessions,
		catalog:    catalog,
		notifier:   notifier,
		operatorID: operatorID,
		logger:     logger,
	}
}

// IsOperator reports whether the user is the designated operator.
func (c *Controller) IsOperator(userID int64) bool {
	return userID == c.operatorID
}

// Handle processes one event for one customer. Events of the same customer
// are serialised on the session lock.
func (c *Controller) Handle(ctx context.Context, ev Event) Response {
	unlock := c.sessions.Lock(ev.UserID)
	defer unlock()

	sess, err := c.sessions.GetOrCreate(ctx, ev.UserID)
	if err != nil {
		return c.failure(ev, fmt.Errorf("load session: %w", err))
	}

	switch ev.Kind {
	case EventCommand:
		return c.handleCommand(ctx, sess, ev)
	case EventText:
		return c.handleText(ctx, sess, ev)
	case EventAction:
		a, err := action.Decode(ev.Token)
		if err != nil {
			return Response{Err: err}
		}
		return c.handleAction(ctx, sess, ev, a)
	}
	return Response{Err: fmt.Errorf("unknown event kind %d", ev.Kind)}
}

func (c *Controller) handleCommand(ctx context.Context, sess state.Session, ev Event) Response {
	switch ev.Command {
	case "start":
		if err := c.sessions.Clear(ctx, sess.CustomerID); err != nil {
			return c.failure(ev, fmt.Errorf("clear session: %w", err))
		}
		return Response{Replies: []Reply{{Text: textWelcome, Buttons: mainMenu()}}}
	case "help":
		return Response{Replies: []Reply{{Text: textHelp}}}
	}
	return Response{Replies: []Reply{{Text: textUnknownCommand}}}
}

// handleText dispatches free text on the current stage.
func (c *Controller) handleText(ctx context.Context, sess state.Session, ev Event) Response {
	if sess.Stage.InOrder() && !draftConsistent(sess) {
		c.logger.Warn("Inconsistent order draft, resetting session",
			zap.Int64("user_id", sess.CustomerID),
			zap.String("stage", string(sess.Stage)))
		if err := c.sessions.Clear(ctx, sess.CustomerID); err != nil {
			return c.failure(ev, fmt.Errorf("clear session: %w", err))
		}
		return Response{Replies: []Reply{{Text: textDraftLost, Buttons: mainMenu()}}}
	}

	switch sess.Stage {
	case state.StageAwaitingPhone:
		return c.submitPhone(ctx, sess, ev)
	case state.StageAwaitingAddress:
		return c.submitAddress(ctx, sess, ev)
	case state.StageAwaitingDate:
		return c.submitDate(ctx, sess, ev)
	case state.StageAwaitingConfirmation:
		return Response{Replies: []Reply{{Text: textConfirmWithButtons, Buttons: confirmKeyboard()}}}
	}
	return Response{Replies: []Reply{{Text: textUseMenu}}}
}

// handleAction dispatches a decoded button payload.
func (c *Controller) handleAction(ctx context.Context, sess state.Session, ev Event, a action.Action) Response {
	switch a.Verb {
	case action.VerbIgnore:
		return Response{}
	case action.VerbAbout:
		return Response{Replies: []Reply{navReply(ev, textAbout, [][]Button{{{Text: "Назад", Action: action.StartMenu()}}})}}
	case action.VerbStartMenu:
		if err := c.sessions.Clear(ctx, sess.CustomerID); err != nil {
			return c.failure(ev, fmt.Errorf("clear session: %w", err))
		}
		return Response{Replies: []Reply{navReply(ev, textChooseSection, mainMenu())}}
	case action.VerbCategoryList:
		if err := c.browse(ctx, sess); err != nil {
			return c.failure(ev, err)
		}
		return Response{Replies: []Reply{navReply(ev, textChooseCategory, categoryKeyboard())}}
	case action.VerbViewProduct:
		return c.viewProduct(ctx, sess, ev, a)
	case action.VerbBuy:
		return c.buy(ctx, sess, ev, a.ID)
	case action.VerbCancel:
		if err := c.sessions.Clear(ctx, sess.CustomerID); err != nil {
			return c.failure(ev, fmt.Errorf("clear session: %w", err))
		}
		return Response{Replies: []Reply{navReply(ev, textOrderCancelled, mainMenu())}}
	case action.VerbConfirm:
		return c.confirm(ctx, sess, ev)
	case action.VerbMarkComplete:
		return c.markComplete(ctx, ev, a.ID)
	}
	return Response{Err: fmt.Errorf("%w: unhandled verb %q", action.ErrInvalidAction, a.Verb)}
}

// browse moves the session to Browsing. Browsing while an order is being
// captured abandons the draft.
func (c *Controller) browse(ctx context.Context, sess state.Session) error {
	if sess.Stage == state.StageBrowsing {
		return nil
	}
	_, err := c.sessions.Update(ctx, sess.CustomerID, func(s *state.Session) {
		s.Stage = state.StageBrowsing
		s.Draft = state.Draft{}
	})
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return nil
}

func (c *Controller) failure(ev Event, err error) Response {
	c.logger.Error("Failed to handle event",
		zap.Int64("user_id", ev.UserID),
		zap.Error(err))

	if ev.Kind == EventAction {
		return Response{Answer: Answer{Text: textInternalError, Alert: true}, Err: err}
	}
	return Response{Replies: []Reply{{Text: "❌ " + textInternalError}}, Err: err}
}

// navReply edits the prior text message in place, or replaces the prior
// message when it carries a photo, since a photo message cannot become a
// text message.
func navReply(ev Event, text string, buttons [][]Button) Reply {
	mode := ModeEdit
	if ev.PriorHasPhoto {
		mode = ModeReplace
	}
	return Reply{Mode: mode, Text: text, Buttons: buttons}
}

func mainMenu() [][]Button {
	return [][]Button{
		{{Text: "Каталог", Action: action.CategoryList()}},
		{{Text: "О магазине", Action: action.About()}},
	}
}

func cancelKeyboard() [][]Button {
	return [][]Button{{{Text: "Отмена", Action: action.Cancel()}}}
}

func confirmKeyboard() [][]Button {
	return [][]Button{{
		{Text: "✅ Подтвердить", Action: action.Confirm()},
		{Text: "❌ Отмена", Action: action.Cancel()},
	}}
}

// draftConsistent checks that every field required before the current
// stage is present.
func draftConsistent(s state.Session) bool {
	d := s.Draft
	switch s.Stage {
	case state.StageAwaitingPhone:
		return d.ProductID > 0
	case state.StageAwaitingAddress:
		return d.ProductID > 0 && d.Phone != ""
	case state.StageAwaitingDate:
		return d.ProductID > 0 && d.Phone != "" && d.Address != ""
	case state.StageAwaitingConfirmation:
		return d.Complete()
	}
	return true
}
