// Package state keeps the per-customer dialogue session.
package state

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrSessionNotFound = errors.New("state: session not found")
	ErrInvalidStage    = errors.New("state: invalid stage")
)

type Stage string

const (
	StageIdle                 Stage = "idle"
	StageBrowsing             Stage = "browsing"
	StageAwaitingPhone        Stage = "awaiting_phone"
	StageAwaitingAddress      Stage = "awaiting_address"
	StageAwaitingDate         Stage = "awaiting_date"
	StageAwaitingConfirmation Stage = "awaiting_confirmation"
)

func (s Stage) Valid() bool {
	switch s {
	case StageIdle, StageBrowsing, StageAwaitingPhone, StageAwaitingAddress,
		StageAwaitingDate, StageAwaitingConfirmation:
		return true
	}
	return false
}

// InOrder reports whether the stage belongs to the order capture flow.
func (s Stage) InOrder() bool {
	switch s {
	case StageAwaitingPhone, StageAwaitingAddress, StageAwaitingDate, StageAwaitingConfirmation:
		return true
	}
	return false
}

// Draft is the order being assembled. Zero values mean "not provided yet".
type Draft struct {
	ProductID int64  `json:"product_id,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Address   string `json:"address,omitempty"`
	Date      string `json:"date,omitempty"`
}

func (d Draft) Complete() bool {
	return d.ProductID > 0 && d.Phone != "" && d.Address != "" && d.Date != ""
}

type Session struct {
	CustomerID int64 `json:"customer_id"`
	Stage      Stage `json:"stage"`
	Draft      Draft `json:"draft"`
}

func newSession(customerID int64) Session {
	return Session{CustomerID: customerID, Stage: StageIdle}
}

// Store is the session storage used by the dialogue controller.
//
// Lock gives the caller an exclusive section for one customer; the
// controller holds it across read-decide-write so that retried events for
// the same customer cannot interleave.
type Store interface {
	Get(ctx context.Context, customerID int64) (Session, error)
	GetOrCreate(ctx context.Context, customerID int64) (Session, error)
	Update(ctx context.Context, customerID int64, patch func(*Session)) (Session, error)
	Clear(ctx context.Context, customerID int64) error
	Lock(customerID int64) (unlock func())
}

func applyPatch(customerID int64, s Session, patch func(*Session)) (Session, error) {
	patch(&s)
	s.CustomerID = customerID
	if !s.Stage.Valid() {
		return Session{}, fmt.Errorf("%w: %q", ErrInvalidStage, s.Stage)
	}
	return s, nil
}
