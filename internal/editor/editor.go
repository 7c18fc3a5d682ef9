// Package editor implements the single-field order edit session: exactly
// one of {status, payment, customer} is editable at a time, with explicit
// save/cancel and a mandatory confirmation step before a cancellation is
// saved.
package editor

import (
	"errors"
	"sync"

	"dukaanpos/backend/internal/domain"
)

const (
	StateViewing = "viewing"
	StateEditing = "editing"
	StateSaving  = "saving"
)

const (
	FieldStatus   = "status"
	FieldPayment  = "payment"
	FieldCustomer = "customer"
)

var (
	ErrOrderLocked          = errors.New("cancelled orders cannot be modified")
	ErrInvalidField         = errors.New("unknown editable field")
	ErrNoActiveEdit         = errors.New("no edit in progress")
	ErrConfirmationRequired = errors.New("cancelling an order requires confirmation")
	ErrSaveInProgress       = errors.New("save already in progress")
)

// Session tracks one order's edit state. The zero value is viewing.
type Session struct {
	OrderID       string
	State         string
	Field         string
	OriginalValue string
	Value         string
	NeedsConfirm  bool
}

// Sessions holds the active edit sessions, one per order.
type Sessions struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func NewSessions() *Sessions {
	return &Sessions{sessions: make(map[string]*Session)}
}

// Begin moves an order from viewing to editing(field). A cancelled order
// refuses the transition and keeps no session state. Beginning a second
// edit on the same order replaces the first: only one field is editable
// at a time.
func (s *Sessions) Begin(order domain.Order, field string) (*Session, error) {
	if !isEditableField(field) {
		return nil, ErrInvalidField
	}
	if order.Cancelled() {
		return nil, ErrOrderLocked
	}

	session := &Session{
		OrderID:       order.ID,
		State:         StateEditing,
		Field:         field,
		OriginalValue: fieldValue(order, field),
	}
	session.Value = session.OriginalValue

	s.mu.Lock()
	s.sessions[order.ID] = session
	s.mu.Unlock()
	return session, nil
}

// SetValue buffers a draft value. Selecting the cancelled status flags the
// session so the save step demands an explicit confirmation.
func (s *Sessions) SetValue(orderID string, value string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[orderID]
	if !ok || session.State != StateEditing {
		return nil, ErrNoActiveEdit
	}
	session.Value = value
	session.NeedsConfirm = session.Field == FieldStatus && value == domain.OrderStatusCancelled
	return session.snapshot(), nil
}

// BeginSave transitions editing -> saving. When the pending value is a
// cancellation and the operator has not confirmed, the session stays in
// editing with the prior value restored and ErrConfirmationRequired is
// returned.
func (s *Sessions) BeginSave(orderID string, confirmed bool) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[orderID]
	if !ok {
		return nil, ErrNoActiveEdit
	}
	if session.State == StateSaving {
		return nil, ErrSaveInProgress
	}
	if session.State != StateEditing {
		return nil, ErrNoActiveEdit
	}
	if session.NeedsConfirm && !confirmed {
		session.Value = session.OriginalValue
		session.NeedsConfirm = false
		return session.snapshot(), ErrConfirmationRequired
	}

	session.State = StateSaving
	return session.snapshot(), nil
}

// FailSave returns the session to editing(field) with the draft intact so
// the operator does not lose entered data.
func (s *Sessions) FailSave(orderID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if session, ok := s.sessions[orderID]; ok && session.State == StateSaving {
		session.State = StateEditing
	}
}

// CompleteSave clears the session: the order is back to viewing.
func (s *Sessions) CompleteSave(orderID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, orderID)
}

// Cancel discards the edit buffers.
func (s *Sessions) Cancel(orderID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, orderID)
}

// Get returns a snapshot of the order's session, or a viewing placeholder
// when none exists.
func (s *Sessions) Get(orderID string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	if session, ok := s.sessions[orderID]; ok {
		return session.snapshot()
	}
	return &Session{OrderID: orderID, State: StateViewing}
}

func (session *Session) snapshot() *Session {
	copied := *session
	return &copied
}

func (session *Session) Response() domain.EditSessionResponse {
	return domain.EditSessionResponse{
		OrderID:              session.OrderID,
		State:                session.State,
		Field:                session.Field,
		Value:                session.Value,
		ConfirmationRequired: session.NeedsConfirm,
	}
}

func isEditableField(field string) bool {
	switch field {
	case FieldStatus, FieldPayment, FieldCustomer:
		return true
	default:
		return false
	}
}

func fieldValue(order domain.Order, field string) string {
	switch field {
	case FieldStatus:
		return order.Status
	case FieldPayment:
		return order.PaymentMethod
	case FieldCustomer:
		return order.CustomerID
	default:
		return ""
	}
}
