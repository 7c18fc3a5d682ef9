package store

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"dukaanpos/backend/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidInput      = errors.New("invalid input")
	ErrOrderLocked       = errors.New("order is cancelled and locked")
)

// OrderFilter narrows the order listing.
type OrderFilter struct {
	Status     string
	CustomerID string
	Limit      int
}

type Repository interface {
	ListOrders(ctx context.Context, filter OrderFilter) ([]domain.Order, error)
	GetOrderByID(ctx context.Context, id string) (*domain.Order, error)
	UpdateOrderStatus(ctx context.Context, id string, status string, at time.Time) (*domain.Order, error)
	UpdateOrderDetails(ctx context.Context, id string, update domain.OrderDetailsUpdate) (*domain.Order, error)
	DeleteOrder(ctx context.Context, id string) error

	CreateAdjustment(ctx context.Context, adjustment domain.OrderAdjustment) (*domain.OrderAdjustment, error)
	ListAdjustmentsByOrder(ctx context.Context, orderID string) ([]domain.OrderAdjustment, error)

	ListCustomers(ctx context.Context, filter domain.CreditCustomerFilter) ([]domain.Customer, error)
	GetCustomerByID(ctx context.Context, id string) (*domain.Customer, error)
	CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)

	// AppendTransaction records one signed ledger entry and moves the
	// customer balance by the same amount, atomically.
	AppendTransaction(ctx context.Context, txn domain.LedgerTransaction) (*domain.LedgerTransaction, error)
	ListTransactionsByCustomer(ctx context.Context, customerID string, limit int, offset int) ([]domain.LedgerTransaction, error)
	// RecomputeBalance resets the stored balance to the sum of the
	// customer's transaction history and returns the corrected value.
	RecomputeBalance(ctx context.Context, customerID string) (decimal.Decimal, error)
	ListCustomerIDs(ctx context.Context) ([]string, error)

	GetStockMap(ctx context.Context, productIDs []string) (map[string]int, error)
	IncreaseStock(ctx context.Context, adjustments []domain.StockAdjustment) error
	DecreaseStock(ctx context.Context, adjustments []domain.StockAdjustment) error

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error)
}
