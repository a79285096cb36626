// Package action encodes navigation intents into inline button payloads
// and decodes them back.
//
// Tokens are flat strings joined with "_". Category keys may contain "_"
// themselves ("tulip_wraps"), so a view-product token is read from both
// ends: the verb is the first segment, page and photo index are the last
// two, and everything in between is the category key, which must be a
// known category.
package action

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"florist-bot/internal/catalog"
)

// MaxLen is Telegram's limit for callback_data in bytes.
const MaxLen = 64

const sep = "_"

var ErrInvalidAction = errors.New("action: invalid action")

type Verb string

const (
	VerbCategoryList Verb = "category-list"
	VerbAbout        Verb = "about"
	VerbStartMenu    Verb = "start-menu"
	VerbViewProduct  Verb = "view-product"
	VerbBuy          Verb = "buy"
	VerbCancel       Verb = "cancel"
	VerbConfirm      Verb = "confirm"
	VerbMarkComplete Verb = "mark-complete"
	VerbIgnore       Verb = "ignore"
)

// Wire tokens.
const (
	tokenCategoryList = "catalog_budgets"
	tokenAbout        = "about_shop"
	tokenStartMenu    = "start_menu"
	tokenCancel       = "cancel_order"
	tokenConfirm      = "confirm_order"
	tokenIgnore       = "ignore"

	prefixViewProduct  = "cat"
	prefixBuy          = "buy"
	prefixMarkComplete = "complete"
)

var fixedTokens = map[string]Verb{
	tokenCategoryList: VerbCategoryList,
	tokenAbout:        VerbAbout,
	tokenStartMenu:    VerbStartMenu,
	tokenCancel:       VerbCancel,
	tokenConfirm:      VerbConfirm,
	tokenIgnore:       VerbIgnore,
}

var fixedVerbs = map[Verb]string{
	VerbCategoryList: tokenCategoryList,
	VerbAbout:        tokenAbout,
	VerbStartMenu:    tokenStartMenu,
	VerbCancel:       tokenCancel,
	VerbConfirm:      tokenConfirm,
	VerbIgnore:       tokenIgnore,
}

// Action is a decoded button payload. Only the fields relevant to Verb are
// meaningful: Category/Page/Photo for view-product, ID for buy (product id)
// and mark-complete (order id).
type Action struct {
	Verb     Verb
	Category catalog.Category
	Page     int
	Photo    int
	ID       int64
}

func CategoryList() Action { return Action{Verb: VerbCategoryList} }
func About() Action        { return Action{Verb: VerbAbout} }
func StartMenu() Action    { return Action{Verb: VerbStartMenu} }
func Cancel() Action       { return Action{Verb: VerbCancel} }
func Confirm() Action      { return Action{Verb: VerbConfirm} }
func Ignore() Action       { return Action{Verb: VerbIgnore} }

func ViewProduct(c catalog.Category, page, photo int) Action {
	return Action{Verb: VerbViewProduct, Category: c, Page: page, Photo: photo}
}

func Buy(productID int64) Action {
	return Action{Verb: VerbBuy, ID: productID}
}

func MarkComplete(orderID int64) Action {
	return Action{Verb: VerbMarkComplete, ID: orderID}
}

// Encode renders the action as a button payload.
func Encode(a Action) (string, error) {
	var token string

	switch a.Verb {
	case VerbViewProduct:
		if _, ok := catalog.ParseCategory(string(a.Category)); !ok {
			return "", fmt.Errorf("%w: unknown category %q", ErrInvalidAction, a.Category)
		}
		if a.Page < 0 || a.Photo < 0 {
			return "", fmt.Errorf("%w: negative page or photo index", ErrInvalidAction)
		}
		token = strings.Join([]string{
			prefixViewProduct,
			string(a.Category),
			strconv.Itoa(a.Page),
			strconv.Itoa(a.Photo),
		}, sep)
	case VerbBuy, VerbMarkComplete:
		if a.ID <= 0 {
			return "", fmt.Errorf("%w: non-positive id %d", ErrInvalidAction, a.ID)
		}
		prefix := prefixBuy
		if a.Verb == VerbMarkComplete {
			prefix = prefixMarkComplete
		}
		token = prefix + sep + strconv.FormatInt(a.ID, 10)
	default:
		t, ok := fixedVerbs[a.Verb]
		if !ok {
			return "", fmt.Errorf("%w: unknown verb %q", ErrInvalidAction, a.Verb)
		}
		token = t
	}

	if len(token) > MaxLen {
		return "", fmt.Errorf("%w: token exceeds %d bytes", ErrInvalidAction, MaxLen)
	}
	return token, nil
}

// Decode parses a button payload. Every failure wraps ErrInvalidAction.
func Decode(token string) (Action, error) {
	if token == "" || len(token) > MaxLen {
		return Action{}, fmt.Errorf("%w: bad length", ErrInvalidAction)
	}
	if verb, ok := fixedTokens[token]; ok {
		return Action{Verb: verb}, nil
	}

	parts := strings.Split(token, sep)
	switch parts[0] {
	case prefixViewProduct:
		return decodeViewProduct(parts)
	case prefixBuy, prefixMarkComplete:
		if len(parts) != 2 {
			return Action{}, fmt.Errorf("%w: %q", ErrInvalidAction, token)
		}
		id, err := parseID(parts[1])
		if err != nil {
			return Action{}, err
		}
		if parts[0] == prefixBuy {
			return Buy(id), nil
		}
		return MarkComplete(id), nil
	}

	return Action{}, fmt.Errorf("%w: unknown verb in %q", ErrInvalidAction, token)
}

func decodeViewProduct(parts []string) (Action, error) {
	// cat_<category...>_<page>_<photo>
	n := len(parts)
	if n < 4 {
		return Action{}, fmt.Errorf("%w: view-product needs category, page and photo", ErrInvalidAction)
	}

	key := strings.Join(parts[1:n-2], sep)
	c, ok := catalog.ParseCategory(key)
	if !ok {
		return Action{}, fmt.Errorf("%w: unknown category %q", ErrInvalidAction, key)
	}
	page, err := parseIndex(parts[n-2])
	if err != nil {
		return Action{}, err
	}
	photo, err := parseIndex(parts[n-1])
	if err != nil {
		return Action{}, err
	}
	return ViewProduct(c, page, photo), nil
}

// parseIndex accepts only canonical non-negative decimals so that a decoded
// token always re-encodes to itself.
func parseIndex(s string) (int, error) {
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 || strconv.Itoa(v) != s {
		return 0, fmt.Errorf("%w: bad index %q", ErrInvalidAction, s)
	}
	return v, nil
}

func parseID(s string) (int64, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil || v <= 0 || strconv.FormatInt(v, 10) != s {
		return 0, fmt.Errorf("%w: bad id %q", ErrInvalidAction, s)
	}
	return v, nil
}
