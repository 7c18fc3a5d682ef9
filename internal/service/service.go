package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"dukaanpos/backend/internal/domain"
	"dukaanpos/backend/internal/editor"
	"dukaanpos/backend/internal/ids"
	"dukaanpos/backend/internal/ledger"
	"dukaanpos/backend/internal/messaging"
	"dukaanpos/backend/internal/outsourcing"
	"dukaanpos/backend/internal/stock"
	"dukaanpos/backend/internal/store"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Service struct {
	repo      store.Repository
	editor    *editor.Sessions
	book      *ledger.Book
	inventory *stock.Manager
	composer  *messaging.Composer
	outsource outsourcing.Lister
	validate  *validator.Validate
	log       *logrus.Logger
}

func New(repo store.Repository, book *ledger.Book, composer *messaging.Composer, outsource outsourcing.Lister, log *logrus.Logger) *Service {
	if outsource == nil {
		outsource = outsourcing.Noop{}
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	return &Service{
		repo:      repo,
		editor:    editor.NewSessions(),
		book:      book,
		inventory: stock.NewManager(repo),
		composer:  composer,
		outsource: outsource,
		validate:  validator.New(),
		log:       log,
	}
}

func (s *Service) ListOrders(ctx context.Context, filter store.OrderFilter) (domain.OrderListResponse, error) {
	if filter.Limit < 1 {
		filter.Limit = 100
	}
	orders, err := s.repo.ListOrders(ctx, filter)
	if err != nil {
		return domain.OrderListResponse{}, err
	}
	return domain.OrderListResponse{Orders: orders}, nil
}

func (s *Service) GetOrder(ctx context.Context, orderID string) (domain.OrderResponse, error) {
	order, err := s.repo.GetOrderByID(ctx, orderID)
	if err != nil {
		return domain.OrderResponse{}, err
	}
	return domain.OrderResponse{Order: *order}, nil
}

// BeginEdit opens a single-field edit session on the order. Cancelled
// orders refuse the edit.
func (s *Service) BeginEdit(ctx context.Context, orderID string, field string) (domain.EditSessionResponse, error) {
	order, err := s.repo.GetOrderByID(ctx, orderID)
	if err != nil {
		return domain.EditSessionResponse{}, err
	}

	session, err := s.editor.Begin(*order, field)
	if err != nil {
		return domain.EditSessionResponse{}, err
	}
	return session.Response(), nil
}

func (s *Service) SetEditValue(_ context.Context, orderID string, value string) (domain.EditSessionResponse, error) {
	session, err := s.editor.SetValue(orderID, strings.TrimSpace(value))
	if err != nil {
		return domain.EditSessionResponse{}, err
	}
	return session.Response(), nil
}

func (s *Service) CancelEdit(_ context.Context, orderID string) {
	s.editor.Cancel(orderID)
}

func (s *Service) EditState(_ context.Context, orderID string) domain.EditSessionResponse {
	return s.editor.Get(orderID).Response()
}

// SaveEdit commits the buffered field change. A status change that crosses
// the completed boundary moves stock first and aborts on failure; the
// follow-up customer balance adjustment is logged but never blocks the
// save. The response always carries the freshly re-read order.
func (s *Service) SaveEdit(ctx context.Context, orderID string, confirm bool) (domain.OrderResponse, error) {
	session, err := s.editor.BeginSave(orderID, confirm)
	if err != nil {
		return domain.OrderResponse{}, err
	}

	switch session.Field {
	case editor.FieldStatus:
		err = s.saveStatusEdit(ctx, orderID, session.Value)
	case editor.FieldPayment:
		err = s.saveDetailsEdit(ctx, orderID, domain.OrderDetailsUpdate{PaymentMethod: &session.Value})
	case editor.FieldCustomer:
		err = s.saveDetailsEdit(ctx, orderID, domain.OrderDetailsUpdate{CustomerID: &session.Value})
	default:
		err = editor.ErrInvalidField
	}
	if err != nil {
		s.editor.FailSave(orderID)
		return domain.OrderResponse{}, err
	}

	s.editor.CompleteSave(orderID)
	s.logAudit(ctx, "order_edit_save", "order", orderID, fmt.Sprintf("field=%s,value=%s", session.Field, session.Value))

	order, err := s.repo.GetOrderByID(ctx, orderID)
	if err != nil {
		return domain.OrderResponse{}, err
	}
	return domain.OrderResponse{Order: *order}, nil
}

func (s *Service) saveStatusEdit(ctx context.Context, orderID string, status string) error {
	if !domain.IsValidOrderStatus(status) {
		return fmt.Errorf("%w: unknown status %q", store.ErrInvalidInput, status)
	}

	order, err := s.repo.GetOrderByID(ctx, orderID)
	if err != nil {
		return err
	}
	if order.Status == status {
		return nil
	}

	// Stock moves before the status is persisted: an insufficient-stock
	// failure must leave the order untouched.
	if err := s.inventory.ApplyStatusChange(ctx, *order, order.Status, status); err != nil {
		return err
	}

	updated, err := s.repo.UpdateOrderStatus(ctx, orderID, status, time.Now().UTC())
	if err != nil {
		// Roll the stock movement back so inventory stays consistent
		// with the unchanged order.
		if revertErr := s.inventory.ApplyStatusChange(ctx, *order, status, order.Status); revertErr != nil {
			s.log.WithError(revertErr).WithField("order_id", orderID).Error("failed to revert stock after status save failure")
		}
		return err
	}

	s.adjustBalanceForStatusChange(ctx, *updated, order.Status, status)
	return nil
}

// adjustBalanceForStatusChange moves the attached customer's balance when
// an order crosses the completed boundary. Any customer-attached order
// participates, whatever its payment method. Failures are logged and
// swallowed; the status change has already been persisted and stands.
func (s *Service) adjustBalanceForStatusChange(ctx context.Context, order domain.Order, from string, to string) {
	if order.Walkin() {
		return
	}

	var amount decimal.Decimal
	var notes string
	switch {
	case from != domain.OrderStatusCompleted && to == domain.OrderStatusCompleted:
		amount = order.Total().Neg()
		notes = "sale completed"
	case from == domain.OrderStatusCompleted && to != domain.OrderStatusCompleted:
		amount = order.Total()
		notes = "sale reverted"
	default:
		return
	}

	if _, err := s.book.RecordOrderMovement(ctx, order.CustomerID, amount, order.ID, notes); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{
			"order_id":    order.ID,
			"customer_id": order.CustomerID,
		}).Warn("balance adjustment failed after status change")
	}
}

func (s *Service) saveDetailsEdit(ctx context.Context, orderID string, update domain.OrderDetailsUpdate) error {
	_, err := s.repo.UpdateOrderDetails(ctx, orderID, update)
	return err
}

func (s *Service) DeleteOrder(ctx context.Context, orderID string) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return fmt.Errorf("admin role required")
	}

	if err := s.repo.DeleteOrder(ctx, orderID); err != nil {
		return err
	}
	s.logAudit(ctx, "order_delete", "order", orderID, "")
	return nil
}

// AdjustOrder processes a return against a completed order: coerces the
// requested quantities into range, restocks the returned items, persists
// the adjustment, and credits the refund back to the attached customer's
// ledger. An all-zero return never reaches the repository.
func (s *Service) AdjustOrder(ctx context.Context, orderID string, req domain.OrderAdjustmentRequest) (domain.OrderAdjustmentResponse, error) {
	order, err := s.repo.GetOrderByID(ctx, orderID)
	if err != nil {
		return domain.OrderAdjustmentResponse{}, err
	}
	if order.Cancelled() {
		return domain.OrderAdjustmentResponse{}, store.ErrOrderLocked
	}
	if order.Status != domain.OrderStatusCompleted {
		return domain.OrderAdjustmentResponse{}, fmt.Errorf("%w: returns require a completed order", store.ErrInvalidInput)
	}

	draft := domain.NewAdjustmentDraft(*order)
	draft.Notes = req.Notes
	for _, line := range req.Items {
		if err := draft.SetReturnQuantityText(line.ProductID, line.Quantity); err != nil {
			return domain.OrderAdjustmentResponse{}, fmt.Errorf("%w: %v", store.ErrInvalidInput, err)
		}
		if line.Reason != "" {
			if err := draft.SetReason(line.ProductID, line.Reason); err != nil {
				return domain.OrderAdjustmentResponse{}, fmt.Errorf("%w: %v", store.ErrInvalidInput, err)
			}
		}
	}

	adjustment, err := draft.Build()
	if err != nil {
		return domain.OrderAdjustmentResponse{}, fmt.Errorf("%w: %v", store.ErrInvalidInput, err)
	}

	if err := s.inventory.RestockReturns(ctx, adjustment.Items); err != nil {
		return domain.OrderAdjustmentResponse{}, err
	}

	actor, _ := ActorFromContext(ctx)
	adjustment.ID = ids.New("adj")
	adjustment.ProcessedBy = actor.Username
	adjustment.CreatedAt = time.Now().UTC()

	created, err := s.repo.CreateAdjustment(ctx, adjustment)
	if err != nil {
		return domain.OrderAdjustmentResponse{}, err
	}

	if !order.Walkin() {
		if _, err := s.book.RecordOrderMovement(ctx, order.CustomerID, created.RefundAmount, order.ID, "refund for returned items"); err != nil {
			s.log.WithError(err).WithFields(logrus.Fields{
				"order_id":    order.ID,
				"customer_id": order.CustomerID,
			}).Warn("refund credit failed after adjustment")
		}
	}

	s.logAudit(ctx, "order_adjustment", "order", orderID, fmt.Sprintf("items=%d,refund=%s", len(created.Items), created.RefundAmount))

	refreshed, err := s.repo.GetOrderByID(ctx, orderID)
	if err != nil {
		return domain.OrderAdjustmentResponse{}, err
	}
	return domain.OrderAdjustmentResponse{Adjustment: *created, Order: *refreshed}, nil
}

func (s *Service) ListAdjustments(ctx context.Context, orderID string) ([]domain.OrderAdjustment, error) {
	if _, err := s.repo.GetOrderByID(ctx, orderID); err != nil {
		return nil, err
	}
	return s.repo.ListAdjustmentsByOrder(ctx, orderID)
}

// ListOutsourcedItems fetches the externally sourced line annotations for
// an order. A collaborator failure yields an empty list, not an error;
// the annotation is cosmetic.
func (s *Service) ListOutsourcedItems(ctx context.Context, orderID string) (domain.OutsourcedItemsResponse, error) {
	order, err := s.repo.GetOrderByID(ctx, orderID)
	if err != nil {
		return domain.OutsourcedItemsResponse{}, err
	}

	items, err := s.outsource.ListBySale(ctx, order.ID)
	if err != nil {
		s.log.WithError(err).WithField("order_id", order.ID).Warn("outsourced item lookup failed")
		items = nil
	}
	if items == nil {
		items = []domain.OutsourcedItem{}
	}
	return domain.OutsourcedItemsResponse{Items: items}, nil
}

// ListCreditCustomers lists customers carrying a balance, filtered by the
// search text and optional customer id.
func (s *Service) ListCreditCustomers(ctx context.Context, filter domain.CreditCustomerFilter) (domain.CustomerListResponse, error) {
	filter.OnlyWithBalance = true
	customers, err := s.repo.ListCustomers(ctx, filter)
	if err != nil {
		return domain.CustomerListResponse{}, err
	}
	return domain.CustomerListResponse{Customers: customers}, nil
}

func (s *Service) GetCustomer(ctx context.Context, customerID string) (domain.CustomerResponse, error) {
	customer, err := s.repo.GetCustomerByID(ctx, customerID)
	if err != nil {
		return domain.CustomerResponse{}, err
	}
	return domain.CustomerResponse{Customer: *customer}, nil
}

// CreateCreditCustomer registers a customer from the credit page. The
// opening credit, when given, is recorded as the first ledger transaction
// so the balance stays the sum of its history.
func (s *Service) CreateCreditCustomer(ctx context.Context, req domain.CustomerCreateRequest) (domain.CustomerResponse, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Phone = strings.TrimSpace(req.Phone)
	if err := s.validate.Struct(req); err != nil {
		return domain.CustomerResponse{}, fmt.Errorf("%w: %v", store.ErrInvalidInput, err)
	}
	if req.Type == "" {
		req.Type = domain.CustomerTypeTemporary
	}
	if req.InitialCredit.IsNegative() || req.CreditLimit.IsNegative() {
		return domain.CustomerResponse{}, store.ErrInvalidInput
	}

	created, err := s.repo.CreateCustomer(ctx, domain.Customer{
		ID:          ids.New("cust"),
		Name:        req.Name,
		Phone:       req.Phone,
		Email:       strings.TrimSpace(req.Email),
		Type:        req.Type,
		CreditLimit: req.CreditLimit,
		Active:      true,
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		return domain.CustomerResponse{}, err
	}

	if req.InitialCredit.IsPositive() {
		if _, err := s.book.RecordInitialCredit(ctx, created.ID, req.InitialCredit); err != nil {
			return domain.CustomerResponse{}, err
		}
	}

	s.logAudit(ctx, "customer_create", "customer", created.ID, fmt.Sprintf("name=%s,type=%s,initial_credit=%s", created.Name, created.Type, req.InitialCredit))
	return s.GetCustomer(ctx, created.ID)
}

// RecordPayment applies a payment against the customer's dues and answers
// with the re-read customer so the caller never renders a stale balance.
func (s *Service) RecordPayment(ctx context.Context, customerID string, req domain.RecordPaymentRequest) (domain.LedgerMutationResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return domain.LedgerMutationResponse{}, fmt.Errorf("%w: %v", store.ErrInvalidInput, err)
	}
	if _, err := s.repo.GetCustomerByID(ctx, customerID); err != nil {
		return domain.LedgerMutationResponse{}, err
	}

	txn, err := s.book.RecordPayment(ctx, customerID, req)
	if err != nil {
		return domain.LedgerMutationResponse{}, err
	}

	s.logAudit(ctx, "payment_record", "customer", customerID, fmt.Sprintf("amount=%s,method=%s", req.Amount, req.Method))
	return s.ledgerMutationResponse(ctx, customerID, txn)
}

// RecordReceivable books an amount the customer now owes, with a reason.
func (s *Service) RecordReceivable(ctx context.Context, customerID string, req domain.RecordReceivableRequest) (domain.LedgerMutationResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return domain.LedgerMutationResponse{}, fmt.Errorf("%w: %v", store.ErrInvalidInput, err)
	}
	if _, err := s.repo.GetCustomerByID(ctx, customerID); err != nil {
		return domain.LedgerMutationResponse{}, err
	}

	txn, err := s.book.RecordReceivable(ctx, customerID, req)
	if err != nil {
		return domain.LedgerMutationResponse{}, err
	}

	s.logAudit(ctx, "receivable_record", "customer", customerID, fmt.Sprintf("amount=%s,reason=%s", req.Amount, req.Reason))
	return s.ledgerMutationResponse(ctx, customerID, txn)
}

// AddCredit extends further credit to an existing customer.
func (s *Service) AddCredit(ctx context.Context, customerID string, req domain.AddCreditRequest) (domain.LedgerMutationResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return domain.LedgerMutationResponse{}, fmt.Errorf("%w: %v", store.ErrInvalidInput, err)
	}
	if _, err := s.repo.GetCustomerByID(ctx, customerID); err != nil {
		return domain.LedgerMutationResponse{}, err
	}

	txn, err := s.book.AddCredit(ctx, customerID, req.Amount)
	if err != nil {
		return domain.LedgerMutationResponse{}, err
	}

	s.logAudit(ctx, "credit_add", "customer", customerID, fmt.Sprintf("amount=%s", req.Amount))
	return s.ledgerMutationResponse(ctx, customerID, txn)
}

func (s *Service) ledgerMutationResponse(ctx context.Context, customerID string, txn *domain.LedgerTransaction) (domain.LedgerMutationResponse, error) {
	customer, err := s.repo.GetCustomerByID(ctx, customerID)
	if err != nil {
		return domain.LedgerMutationResponse{}, err
	}
	return domain.LedgerMutationResponse{Customer: *customer, Transaction: *txn}, nil
}

func (s *Service) TransactionHistory(ctx context.Context, customerID string, limit int, offset int) (domain.TransactionHistoryResponse, error) {
	if limit < 1 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	txns, err := s.book.History(ctx, customerID, limit, offset)
	if err != nil {
		return domain.TransactionHistoryResponse{}, err
	}
	return domain.TransactionHistoryResponse{Transactions: txns}, nil
}

// SyncBalances recomputes every stored balance from transaction history.
// The operation completes before the caller is answered so the follow-up
// list request reads corrected figures.
func (s *Service) SyncBalances(ctx context.Context) (domain.SyncBalancesResponse, error) {
	synced, err := s.book.SyncAll(ctx)
	if err != nil {
		return domain.SyncBalancesResponse{}, err
	}

	s.logAudit(ctx, "balances_sync", "customer", "all", fmt.Sprintf("synced=%d", synced))
	return domain.SyncBalancesResponse{
		CustomersSynced: synced,
		CompletedAt:     time.Now().UTC().Format(time.RFC3339),
	}, nil
}

func (s *Service) ComposeReminder(ctx context.Context, customerID string) (domain.ReminderMessage, error) {
	customer, err := s.repo.GetCustomerByID(ctx, customerID)
	if err != nil {
		return domain.ReminderMessage{}, err
	}
	return s.composer.ComposeReminder(ctx, *customer)
}

func (s *Service) ProposeVoiceEdit(ctx context.Context, req domain.VoiceEditRequest) (domain.VoiceEditProposal, error) {
	return s.composer.ProposeVoiceEdit(ctx, req)
}

func (s *Service) ReminderDeepLink(ctx context.Context, customerID string, req domain.DeepLinkRequest) (domain.DeepLinkResponse, error) {
	customer, err := s.repo.GetCustomerByID(ctx, customerID)
	if err != nil {
		return domain.DeepLinkResponse{}, err
	}
	return s.composer.DeepLink(*customer, req.Message)
}

func (s *Service) ListAuditLogs(ctx context.Context, date string, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}

	var from time.Time
	if strings.TrimSpace(date) == "" {
		from = time.Now().UTC().Add(-24 * time.Hour)
	} else {
		parsed, err := time.Parse("2006-01-02", date)
		if err != nil {
			return nil, store.ErrInvalidInput
		}
		from = parsed.UTC()
	}
	to := from.Add(24 * time.Hour)

	return s.repo.ListAuditLogs(ctx, from, to, limit)
}

func (s *Service) logAudit(ctx context.Context, action string, entityType string, entityID string, detail string) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}

	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:            ids.New("audit"),
		ActorUsername: actor.Username,
		ActorRole:     actor.Role,
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		Detail:        detail,
		CreatedAt:     time.Now().UTC(),
	}); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{
			"action": action,
			"entity": entityType + "/" + entityID,
		}).Warn("failed to write audit log")
	}
}

// IsConfirmationRequired reports whether an error from SaveEdit means the
// cancellation still needs the operator's explicit confirmation.
func IsConfirmationRequired(err error) bool {
	return errors.Is(err, editor.ErrConfirmationRequired)
}
