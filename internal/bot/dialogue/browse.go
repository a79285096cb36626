package dialogue

import (
	"context"
	"errors"
	"fmt"
	"html"

	"florist-bot/internal/bot/action"
	"florist-bot/internal/bot/state"
	"florist-bot/internal/catalog"
)

// One product is shown at a time: the page is the product's offset inside
// its category.
func (c *Controller) viewProduct(ctx context.Context, sess state.Session, ev Event, a action.Action) Response {
	count, err := c.catalog.CountProducts(ctx, a.Category)
	if err != nil {
		return c.failure(ev, fmt.Errorf("count products: %w", err))
	}
	if count == 0 {
		return emptyCategory(a.Category)
	}

	page := clampPage(a.Page, count)
	product, err := c.catalog.FindProduct(ctx, a.Category, page)
	if errors.Is(err, catalog.ErrProductNotFound) {
		return emptyCategory(a.Category)
	}
	if err != nil {
		return c.failure(ev, fmt.Errorf("find product: %w", err))
	}

	if err := c.browse(ctx, sess); err != nil {
		return c.failure(ev, err)
	}

	return Response{Replies: []Reply{productReply(ev, product, a.Category, page, count, a.Photo)}}
}

func emptyCategory(category catalog.Category) Response {
	return Response{
		Answer: Answer{Text: textEmptyCategory, Alert: true},
		Err:    fmt.Errorf("%w: %s", ErrEmptyCategory, category),
	}
}

// productReply renders a product card. A card shown from a photo message
// swaps the media in place; from a text message the text is deleted and a
// photo is sent.
func productReply(ev Event, p catalog.Product, category catalog.Category, page, count, photo int) Reply {
	n := len(p.Photos)
	photo = photoIndex(photo, n)

	r := Reply{
		Mode:    ModeReplace,
		Text:    productCaption(p),
		HTML:    true,
		Buttons: productKeyboard(p.ID, category, page, count, photo, n),
	}
	if ev.PriorHasPhoto {
		r.Mode = ModeEdit
	}
	if n > 0 {
		r.Photo = p.Photos[photo]
	} else if ev.PriorHasPhoto {
		r.Mode = ModeReplace
	}
	return r
}

func productCaption(p catalog.Product) string {
	return fmt.Sprintf("<b>%s</b>\n\nЦена: %s руб.\n\n%s",
		html.EscapeString(p.DisplayName()), html.EscapeString(p.Price), html.EscapeString(p.Description))
}

func productKeyboard(productID int64, category catalog.Category, page, count, photo, photos int) [][]Button {
	rows := [][]Button{
		{{Text: "Оформить заказ", Action: action.Buy(productID)}},
	}

	if photos > 1 {
		rows = append(rows, []Button{
			{Text: "‹", Action: action.ViewProduct(category, page, prevPhoto(photo, photos))},
			{Text: fmt.Sprintf("%d/%d", photo+1, photos), Action: action.Ignore()},
			{Text: "›", Action: action.ViewProduct(category, page, nextPhoto(photo, photos))},
		})
	}

	var nav []Button
	if page > 0 {
		nav = append(nav, Button{Text: "⬅️ Товар", Action: action.ViewProduct(category, page-1, 0)})
	}
	if page < count-1 {
		nav = append(nav, Button{Text: "Товар ➡️", Action: action.ViewProduct(category, page+1, 0)})
	}
	if len(nav) > 0 {
		rows = append(rows, nav)
	}

	return append(rows, []Button{{Text: "К категориям", Action: action.CategoryList()}})
}

func categoryKeyboard() [][]Button {
	rows := make([][]Button, 0, len(catalog.Categories)+1)
	for _, c := range catalog.Categories {
		rows = append(rows, []Button{{Text: c.Name(), Action: action.ViewProduct(c, 0, 0)}})
	}
	return append(rows, []Button{{Text: "Назад", Action: action.StartMenu()}})
}

// clampPage keeps a stale offset inside [0, count).
func clampPage(page, count int) int {
	if page < 0 {
		return 0
	}
	if page >= count {
		return count - 1
	}
	return page
}

// photoIndex falls back to the first photo for an index that does not
// exist, e.g. after the product's photo list shrank.
func photoIndex(idx, n int) int {
	if idx < 0 || idx >= n {
		return 0
	}
	return idx
}

func nextPhoto(idx, n int) int { return (idx + 1) % n }

func prevPhoto(idx, n int) int { return (idx - 1 + n) % n }
