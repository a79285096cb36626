package dialogue

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"florist-bot/internal/bot/action"
	"florist-bot/internal/bot/state"
	"florist-bot/internal/catalog"
)

const (
	operatorID = int64(1000)
	customerID = int64(42)
)

type fakeCatalog struct {
	mu       sync.Mutex
	products []catalog.Product
	orders   []catalog.Order
	failOn   string
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{products: []catalog.Product{
		{ID: 1, Name: "Весенний сад", Category: catalog.CategoryGarden, Price: "3500-6500", Description: "Прекрасный сад.", Photos: []string{"G1", "G2", "G3"}},
		{ID: 5, Name: "Тюльпаны", Category: catalog.CategoryTulips, Price: "200", Description: "Цена за одну штуку.", Photos: []string{"T1"}},
		{ID: 9, Name: "15 шт", Category: catalog.CategoryRoses, Price: "3500", Description: "Сибирские розы.", Photos: []string{"R1"}},
		{ID: 10, Name: "51 шт", Category: catalog.CategoryRoses, Price: "12000", Description: "Сибирские розы.", Photos: []string{"R2", "R3"}},
		{ID: 11, Name: "101 шт", Category: catalog.CategoryRoses, Price: "25000", Description: "Огромный букет.", Photos: []string{"R4"}},
	}}
}

func (f *fakeCatalog) inCategory(c catalog.Category) []catalog.Product {
	var out []catalog.Product
	for _, p := range f.products {
		if p.Category == c {
			out = append(out, p)
		}
	}
	return out
}

func (f *fakeCatalog) FindProduct(_ context.Context, c catalog.Category, offset int) (catalog.Product, error) {
	ps := f.inCategory(c)
	if offset < 0 || offset >= len(ps) {
		return catalog.Product{}, catalog.ErrProductNotFound
	}
	return ps[offset], nil
}

func (f *fakeCatalog) CountProducts(_ context.Context, c catalog.Category) (int, error) {
	if f.failOn == "count" {
		return 0, errors.New("db is down")
	}
	return len(f.inCategory(c)), nil
}

func (f *fakeCatalog) Product(_ context.Context, id int64) (catalog.Product, error) {
	for _, p := range f.products {
		if p.ID == id {
			return p, nil
		}
	}
	return catalog.Product{}, catalog.ErrProductNotFound
}

func (f *fakeCatalog) CreateOrder(_ context.Context, o catalog.NewOrder) (int64, error) {
	if f.failOn == "create" {
		return 0, errors.New("db is down")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	id := int64(len(f.orders) + 1)
	f.orders = append(f.orders, catalog.Order{
		ID:           id,
		CustomerID:   o.CustomerID,
		CustomerName: o.CustomerName,
		Phone:        o.Phone,
		Address:      o.Address,
		DeliveryDate: o.DeliveryDate,
		ProductID:    o.ProductID,
		Status:       catalog.StatusNew,
	})
	return id, nil
}

func (f *fakeCatalog) ProductDisplayName(ctx context.Context, id int64) (string, error) {
	p, err := f.Product(ctx, id)
	if err != nil {
		return "", err
	}
	return p.DisplayName(), nil
}

func (f *fakeCatalog) MarkOrderCompleted(_ context.Context, id int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.orders {
		if f.orders[i].ID == id {
			changed := f.orders[i].Status == catalog.StatusNew
			f.orders[i].Status = catalog.StatusCompleted
			return changed, nil
		}
	}
	return false, catalog.ErrOrderNotFound
}

type fakeNotifier struct {
	mu        sync.Mutex
	created   []OrderCreated
	completed []int64
	err       error
}

func (n *fakeNotifier) OrderCreated(_ context.Context, ev OrderCreated) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.created = append(n.created, ev)
	return n.err
}

func (n *fakeNotifier) OrderCompleted(_ context.Context, orderID int64) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.completed = append(n.completed, orderID)
	return n.err
}

type harness struct {
	ctrl     *Controller
	sessions *state.MemoryStore
	catalog  *fakeCatalog
	notifier *fakeNotifier
}

func newHarness() *harness {
	h := &harness{
		sessions: state.NewMemoryStore(),
		catalog:  newFakeCatalog(),
		notifier: &fakeNotifier{},
	}
	h.ctrl = New(h.sessions, h.catalog, h.notifier, operatorID, zap.NewNop())
	return h
}

func (h *harness) stage(t *testing.T, id int64) state.Stage {
	t.Helper()
	sess, err := h.sessions.GetOrCreate(context.Background(), id)
	require.NoError(t, err)
	return sess.Stage
}

func (h *harness) tap(from int64, a action.Action, priorHasPhoto bool) Response {
	token, err := action.Encode(a)
	if err != nil {
		panic(err)
	}
	return h.ctrl.Handle(context.Background(), Event{
		Kind:          EventAction,
		UserID:        from,
		CustomerName:  "Анна",
		Token:         token,
		PriorHasPhoto: priorHasPhoto,
	})
}

func (h *harness) say(from int64, text string) Response {
	return h.ctrl.Handle(context.Background(), Event{Kind: EventText, UserID: from, Text: text})
}

func (h *harness) command(from int64, cmd string) Response {
	return h.ctrl.Handle(context.Background(), Event{Kind: EventCommand, UserID: from, Command: cmd})
}

// findButton returns the action of the first button with the given label.
func findButton(r Reply, label string) (action.Action, bool) {
	for _, row := range r.Buttons {
		for _, b := range row {
			if b.Text == label {
				return b.Action, true
			}
		}
	}
	return action.Action{}, false
}

func (h *harness) reachConfirmation(t *testing.T) {
	t.Helper()
	h.command(customerID, "start")
	h.tap(customerID, action.CategoryList(), false)
	h.tap(customerID, action.ViewProduct(catalog.CategoryTulips, 0, 0), false)
	h.tap(customerID, action.Buy(5), true)
	h.say(customerID, "+79990000000")
	h.say(customerID, "Ленина 1")
	h.say(customerID, "01.03.2026")
	require.Equal(t, state.StageAwaitingConfirmation, h.stage(t, customerID))
}

func TestScenarioFullOrder(t *testing.T) {
	h := newHarness()

	resp := h.command(customerID, "start")
	require.Len(t, resp.Replies, 1)
	assert.Equal(t, ModeSend, resp.Replies[0].Mode)
	_, ok := findButton(resp.Replies[0], "Каталог")
	assert.True(t, ok)
	assert.Equal(t, state.StageIdle, h.stage(t, customerID))

	resp = h.tap(customerID, action.CategoryList(), false)
	require.Len(t, resp.Replies, 1)
	assert.Equal(t, ModeEdit, resp.Replies[0].Mode)
	assert.Equal(t, state.StageBrowsing, h.stage(t, customerID))

	resp = h.tap(customerID, action.ViewProduct(catalog.CategoryTulips, 0, 0), false)
	require.NoError(t, resp.Err)
	require.Len(t, resp.Replies, 1)
	card := resp.Replies[0]
	assert.Equal(t, ModeReplace, card.Mode)
	assert.Equal(t, "T1", card.Photo)
	assert.True(t, card.HTML)
	assert.Contains(t, card.Text, "<b>Тюльпаны</b>")
	assert.Contains(t, card.Text, "Цена: 200 руб.")
	buy, ok := findButton(card, "Оформить заказ")
	require.True(t, ok)
	assert.Equal(t, action.Buy(5), buy)

	resp = h.tap(customerID, buy, true)
	require.Len(t, resp.Replies, 1)
	assert.Equal(t, ModeSend, resp.Replies[0].Mode)
	assert.Equal(t, state.StageAwaitingPhone, h.stage(t, customerID))

	resp = h.say(customerID, "+79990000000")
	require.NoError(t, resp.Err)
	assert.Equal(t, state.StageAwaitingAddress, h.stage(t, customerID))

	resp = h.say(customerID, "Ленина 1")
	require.NoError(t, resp.Err)
	assert.Equal(t, state.StageAwaitingDate, h.stage(t, customerID))

	resp = h.say(customerID, "01.03.2026")
	require.NoError(t, resp.Err)
	assert.Equal(t, state.StageAwaitingConfirmation, h.stage(t, customerID))
	require.Len(t, resp.Replies, 1)
	summary := resp.Replies[0].Text
	assert.Contains(t, summary, "Товар: Тюльпаны")
	assert.Contains(t, summary, "Телефон: +79990000000")
	assert.Contains(t, summary, "Адрес: Ленина 1")
	assert.Contains(t, summary, "Дата доставки: 01.03.2026")

	resp = h.tap(customerID, action.Confirm(), false)
	require.NoError(t, resp.Err)
	require.Len(t, resp.Replies, 1)
	assert.Contains(t, resp.Replies[0].Text, "Заказ #1 принят")

	require.Len(t, h.catalog.orders, 1)
	order := h.catalog.orders[0]
	assert.Equal(t, catalog.StatusNew, order.Status)
	assert.Equal(t, customerID, order.CustomerID)
	assert.Equal(t, "Анна", order.CustomerName)
	assert.Equal(t, int64(5), order.ProductID)
	assert.Equal(t, "Ленина 1", order.Address)

	sess, err := h.sessions.Get(context.Background(), customerID)
	require.NoError(t, err)
	assert.Equal(t, state.StageIdle, sess.Stage)
	assert.Equal(t, state.Draft{}, sess.Draft)

	require.Len(t, h.notifier.created, 1)
	note := h.notifier.created[0]
	assert.Equal(t, int64(1), note.Order.ID)
	assert.Equal(t, "Тюльпаны", note.ProductName)
	assert.Equal(t, action.MarkComplete(1), note.Complete)
}

func TestInvalidPhoneKeepsStage(t *testing.T) {
	h := newHarness()
	h.tap(customerID, action.Buy(5), false)

	resp := h.say(customerID, "abc")
	assert.ErrorIs(t, resp.Err, ErrValidationFailed)
	require.Len(t, resp.Replies, 1)
	assert.Equal(t, textInvalidPhone, resp.Replies[0].Text)

	sess, err := h.sessions.Get(context.Background(), customerID)
	require.NoError(t, err)
	assert.Equal(t, state.StageAwaitingPhone, sess.Stage)
	assert.Empty(t, sess.Draft.Phone)
}

func TestShortAddressAndDateAreRejected(t *testing.T) {
	h := newHarness()
	h.tap(customerID, action.Buy(5), false)
	h.say(customerID, "8 (999) 123-45-67")

	resp := h.say(customerID, " ул ")
	assert.ErrorIs(t, resp.Err, ErrValidationFailed)
	assert.Equal(t, state.StageAwaitingAddress, h.stage(t, customerID))

	h.say(customerID, "Ленина 1")
	resp = h.say(customerID, "1.3")
	assert.ErrorIs(t, resp.Err, ErrValidationFailed)
	assert.Equal(t, state.StageAwaitingDate, h.stage(t, customerID))

	sess, err := h.sessions.Get(context.Background(), customerID)
	require.NoError(t, err)
	assert.Equal(t, "+79991234567", sess.Draft.Phone)
	assert.Empty(t, sess.Draft.Date)
}

func TestRepeatedConfirmCreatesOneOrder(t *testing.T) {
	h := newHarness()
	h.reachConfirmation(t)

	first := h.tap(customerID, action.Confirm(), false)
	require.NoError(t, first.Err)
	second := h.tap(customerID, action.Confirm(), false)

	assert.Empty(t, second.Replies)
	assert.Equal(t, Answer{}, second.Answer)
	assert.Len(t, h.catalog.orders, 1)
	assert.Len(t, h.notifier.created, 1)
}

func TestConcurrentConfirmCreatesOneOrder(t *testing.T) {
	h := newHarness()
	h.reachConfirmation(t)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.tap(customerID, action.Confirm(), false)
		}()
	}
	wg.Wait()

	assert.Len(t, h.catalog.orders, 1)
}

func TestConfirmOutsideConfirmationIsNoop(t *testing.T) {
	h := newHarness()
	h.tap(customerID, action.Buy(5), false)
	h.say(customerID, "+79990000000")

	resp := h.tap(customerID, action.Confirm(), false)
	assert.Empty(t, resp.Replies)
	assert.Empty(t, h.catalog.orders)
	assert.Equal(t, state.StageAwaitingAddress, h.stage(t, customerID))
}

func TestCreateOrderFailureKeepsDraft(t *testing.T) {
	h := newHarness()
	h.reachConfirmation(t)
	h.catalog.failOn = "create"

	resp := h.tap(customerID, action.Confirm(), false)
	require.Error(t, resp.Err)
	assert.True(t, resp.Answer.Alert)
	assert.Equal(t, state.StageAwaitingConfirmation, h.stage(t, customerID))
	assert.Empty(t, h.notifier.created)
}

func TestNotifierFailureDoesNotRollBackOrder(t *testing.T) {
	h := newHarness()
	h.reachConfirmation(t)
	h.notifier.err = errors.New("telegram is down")

	resp := h.tap(customerID, action.Confirm(), false)
	assert.ErrorIs(t, resp.Err, ErrNotifierUnavailable)
	require.Len(t, resp.Replies, 1)
	assert.Contains(t, resp.Replies[0].Text, "Заказ #1 принят")
	assert.Len(t, h.catalog.orders, 1)
	assert.Equal(t, state.StageIdle, h.stage(t, customerID))
}

func TestMarkCompleteByNonOperatorIsDenied(t *testing.T) {
	h := newHarness()
	h.reachConfirmation(t)
	h.tap(customerID, action.Confirm(), false)

	resp := h.tap(customerID, action.MarkComplete(1), false)
	assert.ErrorIs(t, resp.Err, ErrUnauthorized)
	assert.Empty(t, resp.Replies)
	assert.False(t, resp.Answer.Alert)
	assert.Equal(t, catalog.StatusNew, h.catalog.orders[0].Status)
	assert.Empty(t, h.notifier.completed)
}

func TestMarkCompleteIsIdempotent(t *testing.T) {
	h := newHarness()
	h.reachConfirmation(t)
	h.tap(customerID, action.Confirm(), false)

	token, err := action.Encode(action.MarkComplete(1))
	require.NoError(t, err)
	ev := Event{
		Kind:       EventAction,
		UserID:     operatorID,
		Token:      token,
		PriorText:  "🆕 Новый заказ #1",
	}

	first := h.ctrl.Handle(context.Background(), ev)
	require.NoError(t, first.Err)
	require.Len(t, first.Replies, 1)
	assert.Equal(t, ModeEdit, first.Replies[0].Mode)
	assert.Equal(t, "🆕 Новый заказ #1\n\n"+textCompletionMarker, first.Replies[0].Text)
	assert.True(t, first.Replies[0].Appended)
	assert.Equal(t, textOrderMarkedDone, first.Answer.Text)
	assert.Equal(t, catalog.StatusCompleted, h.catalog.orders[0].Status)

	ev.PriorText = first.Replies[0].Text
	second := h.ctrl.Handle(context.Background(), ev)
	require.NoError(t, second.Err)
	assert.Empty(t, second.Replies)
	assert.Equal(t, catalog.StatusCompleted, h.catalog.orders[0].Status)
	assert.Equal(t, []int64{1}, h.notifier.completed)
}

func TestDuplicateCompletionTapPublishesOnce(t *testing.T) {
	h := newHarness()
	h.reachConfirmation(t)
	h.tap(customerID, action.Confirm(), false)

	token, err := action.Encode(action.MarkComplete(1))
	require.NoError(t, err)
	// Both taps come from the same stale card, before either edit lands.
	ev := Event{Kind: EventAction, UserID: operatorID, Token: token, PriorText: "🆕 Новый заказ #1"}

	first := h.ctrl.Handle(context.Background(), ev)
	second := h.ctrl.Handle(context.Background(), ev)

	require.NoError(t, first.Err)
	require.NoError(t, second.Err)
	assert.Equal(t, textOrderMarkedDone, second.Answer.Text)
	assert.Equal(t, []int64{1}, h.notifier.completed)
}

func TestMarkCompleteUnknownOrder(t *testing.T) {
	h := newHarness()
	resp := h.tap(operatorID, action.MarkComplete(77), false)
	assert.ErrorIs(t, resp.Err, catalog.ErrOrderNotFound)
	assert.True(t, resp.Answer.Alert)
}

func TestEmptyCategoryLeavesStage(t *testing.T) {
	h := newHarness()
	h.tap(customerID, action.CategoryList(), false)

	for _, c := range []catalog.Category{catalog.CategoryBuckets, catalog.CategorySpringBouquets} {
		resp := h.tap(customerID, action.ViewProduct(c, 0, 0), false)
		assert.ErrorIs(t, resp.Err, ErrEmptyCategory)
		assert.Empty(t, resp.Replies)
		assert.Equal(t, Answer{Text: textEmptyCategory, Alert: true}, resp.Answer)
		assert.Equal(t, state.StageBrowsing, h.stage(t, customerID))
	}

	h.tap(customerID, action.Buy(5), false)
	h.tap(customerID, action.ViewProduct(catalog.CategoryBuckets, 0, 0), false)
	assert.Equal(t, state.StageAwaitingPhone, h.stage(t, customerID))
}

func TestCarouselWrapsAround(t *testing.T) {
	h := newHarness()

	resp := h.tap(customerID, action.ViewProduct(catalog.CategoryGarden, 0, 0), false)
	require.Len(t, resp.Replies, 1)
	card := resp.Replies[0]
	assert.Equal(t, "G1", card.Photo)

	const n = 3
	for i := 1; i <= n; i++ {
		next, ok := findButton(card, "›")
		require.True(t, ok)
		resp = h.tap(customerID, next, true)
		require.Len(t, resp.Replies, 1)
		card = resp.Replies[0]
		assert.Equal(t, ModeEdit, card.Mode)
	}
	assert.Equal(t, "G1", card.Photo)
	_, ok := findButton(card, "1/3")
	assert.True(t, ok)

	prev, ok := findButton(card, "‹")
	require.True(t, ok)
	assert.Equal(t, action.ViewProduct(catalog.CategoryGarden, 0, 2), prev)
}

func TestCarouselHiddenForSinglePhoto(t *testing.T) {
	h := newHarness()
	resp := h.tap(customerID, action.ViewProduct(catalog.CategoryTulips, 0, 0), false)
	require.Len(t, resp.Replies, 1)
	_, ok := findButton(resp.Replies[0], "›")
	assert.False(t, ok)
	_, ok = findButton(resp.Replies[0], "‹")
	assert.False(t, ok)
}

func TestPaginationButtons(t *testing.T) {
	h := newHarness()

	tests := []struct {
		page     int
		wantPrev bool
		wantNext bool
		name     string
	}{
		{0, false, true, "15 шт"},
		{1, true, true, "51 шт"},
		{2, true, false, "101 шт"},
	}

	for _, tt := range tests {
		resp := h.tap(customerID, action.ViewProduct(catalog.CategoryRoses, tt.page, 0), true)
		require.Len(t, resp.Replies, 1)
		card := resp.Replies[0]
		assert.Contains(t, card.Text, "<b>"+tt.name+"</b>")

		prev, hasPrev := findButton(card, "⬅️ Товар")
		next, hasNext := findButton(card, "Товар ➡️")
		assert.Equal(t, tt.wantPrev, hasPrev, "page %d prev", tt.page)
		assert.Equal(t, tt.wantNext, hasNext, "page %d next", tt.page)
		if hasPrev {
			assert.Equal(t, action.ViewProduct(catalog.CategoryRoses, tt.page-1, 0), prev)
		}
		if hasNext {
			assert.Equal(t, action.ViewProduct(catalog.CategoryRoses, tt.page+1, 0), next)
		}
	}

	// Single product: neither button.
	resp := h.tap(customerID, action.ViewProduct(catalog.CategoryTulips, 0, 0), true)
	_, hasPrev := findButton(resp.Replies[0], "⬅️ Товар")
	_, hasNext := findButton(resp.Replies[0], "Товар ➡️")
	assert.False(t, hasPrev)
	assert.False(t, hasNext)
}

func TestStaleIndicesStayInRange(t *testing.T) {
	h := newHarness()

	resp := h.tap(customerID, action.ViewProduct(catalog.CategoryRoses, 9, 0), false)
	require.Len(t, resp.Replies, 1)
	assert.Contains(t, resp.Replies[0].Text, "101 шт")

	resp = h.tap(customerID, action.ViewProduct(catalog.CategoryGarden, 0, 7), false)
	require.Len(t, resp.Replies, 1)
	assert.Equal(t, "G1", resp.Replies[0].Photo)
}

func TestInvalidTokenIsSilentlyAcknowledged(t *testing.T) {
	h := newHarness()
	h.tap(customerID, action.Buy(5), false)

	for _, token := range []string{"cat_tulip_0_0", "buy_x", "garbage", ""} {
		resp := h.ctrl.Handle(context.Background(), Event{Kind: EventAction, UserID: customerID, Token: token})
		assert.ErrorIs(t, resp.Err, action.ErrInvalidAction, token)
		assert.Empty(t, resp.Replies)
		assert.Equal(t, Answer{}, resp.Answer)
	}
	assert.Equal(t, state.StageAwaitingPhone, h.stage(t, customerID))
}

func TestCancelFromAnyStage(t *testing.T) {
	prepare := map[string]func(h *harness){
		"idle":     func(h *harness) {},
		"browsing": func(h *harness) { h.tap(customerID, action.CategoryList(), false) },
		"phone":    func(h *harness) { h.tap(customerID, action.Buy(5), false) },
		"address": func(h *harness) {
			h.tap(customerID, action.Buy(5), false)
			h.say(customerID, "+79990000000")
		},
		"confirmation": func(h *harness) {
			h.tap(customerID, action.Buy(5), false)
			h.say(customerID, "+79990000000")
			h.say(customerID, "Ленина 1")
			h.say(customerID, "01.03.2026")
		},
	}

	for name, prep := range prepare {
		t.Run(name, func(t *testing.T) {
			h := newHarness()
			prep(h)

			resp := h.tap(customerID, action.Cancel(), false)
			require.Len(t, resp.Replies, 1)
			assert.Equal(t, textOrderCancelled, resp.Replies[0].Text)

			sess, err := h.sessions.Get(context.Background(), customerID)
			require.NoError(t, err)
			assert.Equal(t, state.StageIdle, sess.Stage)
			assert.Equal(t, state.Draft{}, sess.Draft)
			assert.Empty(t, h.catalog.orders)
		})
	}
}

func TestNavigationReplyModes(t *testing.T) {
	h := newHarness()

	fromText := h.tap(customerID, action.CategoryList(), false)
	assert.Equal(t, ModeEdit, fromText.Replies[0].Mode)

	fromPhoto := h.tap(customerID, action.CategoryList(), true)
	assert.Equal(t, ModeReplace, fromPhoto.Replies[0].Mode)

	about := h.tap(customerID, action.About(), false)
	assert.Equal(t, ModeEdit, about.Replies[0].Mode)
	back, ok := findButton(about.Replies[0], "Назад")
	require.True(t, ok)
	assert.Equal(t, action.StartMenu(), back)
}

func TestBrowsingAbandonsDraft(t *testing.T) {
	h := newHarness()
	h.tap(customerID, action.Buy(5), false)
	h.say(customerID, "+79990000000")

	h.tap(customerID, action.CategoryList(), false)

	sess, err := h.sessions.Get(context.Background(), customerID)
	require.NoError(t, err)
	assert.Equal(t, state.StageBrowsing, sess.Stage)
	assert.Equal(t, state.Draft{}, sess.Draft)
}

func TestBuyUnknownProduct(t *testing.T) {
	h := newHarness()
	resp := h.tap(customerID, action.Buy(404), false)
	assert.ErrorIs(t, resp.Err, catalog.ErrProductNotFound)
	assert.True(t, resp.Answer.Alert)
	assert.Equal(t, state.StageIdle, h.stage(t, customerID))
}

func TestTextOutsideOrderGetsHint(t *testing.T) {
	h := newHarness()
	resp := h.say(customerID, "привет")
	require.Len(t, resp.Replies, 1)
	assert.Equal(t, textUseMenu, resp.Replies[0].Text)
	assert.Equal(t, state.StageIdle, h.stage(t, customerID))
}

func TestInconsistentDraftIsReset(t *testing.T) {
	h := newHarness()
	_, err := h.sessions.Update(context.Background(), customerID, func(s *state.Session) {
		s.Stage = state.StageAwaitingDate
		s.Draft = state.Draft{ProductID: 5}
	})
	require.NoError(t, err)

	resp := h.say(customerID, "01.03.2026")
	require.Len(t, resp.Replies, 1)
	assert.Equal(t, textDraftLost, resp.Replies[0].Text)
	assert.Equal(t, state.StageIdle, h.stage(t, customerID))
}

func TestStoreFailureIsRecovered(t *testing.T) {
	h := newHarness()
	h.catalog.failOn = "count"

	resp := h.tap(customerID, action.ViewProduct(catalog.CategoryTulips, 0, 0), false)
	require.Error(t, resp.Err)
	assert.True(t, resp.Answer.Alert)
	assert.Equal(t, state.StageIdle, h.stage(t, customerID))
}

func TestCommands(t *testing.T) {
	h := newHarness()
	h.tap(customerID, action.Buy(5), false)

	resp := h.command(customerID, "help")
	require.Len(t, resp.Replies, 1)
	assert.Equal(t, textHelp, resp.Replies[0].Text)
	assert.Equal(t, state.StageAwaitingPhone, h.stage(t, customerID))

	resp = h.command(customerID, "unknown")
	assert.Equal(t, textUnknownCommand, resp.Replies[0].Text)

	h.command(customerID, "start")
	assert.Equal(t, state.StageIdle, h.stage(t, customerID))
}
