// Package ledger maintains customer credit balances as append-only signed
// transaction histories. Positive amounts reduce what the customer owes,
// negative amounts increase it, and a balance is always the sum of its
// history.
package ledger

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"dukaanpos/backend/internal/domain"
	"dukaanpos/backend/internal/ids"
	"dukaanpos/backend/internal/store"
)

const syncLockKey = "lock:sync-balances"
const syncLockTTL = 30 * time.Second

// Book records ledger transactions against a repository. When a redislock
// client is configured, full-ledger syncs are serialized across processes;
// otherwise a local mutex serializes them within this process.
type Book struct {
	repo   store.Repository
	locker *redislock.Client
	log    *logrus.Logger

	syncMu sync.Mutex
}

func NewBook(repo store.Repository, locker *redislock.Client, log *logrus.Logger) *Book {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Book{repo: repo, locker: locker, log: log}
}

// RecordPayment appends a positive entry: the customer paid down their dues.
func (b *Book) RecordPayment(ctx context.Context, customerID string, req domain.RecordPaymentRequest) (*domain.LedgerTransaction, error) {
	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: payment amount must be positive", store.ErrInvalidInput)
	}
	return b.append(ctx, domain.LedgerTransaction{
		CustomerID: customerID,
		Amount:     req.Amount,
		Type:       domain.TxnTypePayment,
		Method:     req.Method,
		Reference:  req.Reference,
	})
}

// RecordReceivable appends a negative entry: the customer owes more.
func (b *Book) RecordReceivable(ctx context.Context, customerID string, req domain.RecordReceivableRequest) (*domain.LedgerTransaction, error) {
	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: receivable amount must be positive", store.ErrInvalidInput)
	}
	if strings.TrimSpace(req.Reason) == "" {
		return nil, fmt.Errorf("%w: receivable requires a reason", store.ErrInvalidInput)
	}
	return b.append(ctx, domain.LedgerTransaction{
		CustomerID: customerID,
		Amount:     req.Amount.Neg(),
		Type:       domain.TxnTypeCredit,
		Reference:  req.Reference,
		Notes:      req.Reason,
	})
}

// AddCredit extends more credit to the customer, increasing what they owe.
func (b *Book) AddCredit(ctx context.Context, customerID string, amount decimal.Decimal) (*domain.LedgerTransaction, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: credit amount must be positive", store.ErrInvalidInput)
	}
	return b.append(ctx, domain.LedgerTransaction{
		CustomerID: customerID,
		Amount:     amount.Neg(),
		Type:       domain.TxnTypeCredit,
		Notes:      "credit extended",
	})
}

// RecordInitialCredit seeds a freshly created customer's history so the
// opening balance is backed by a transaction like any other.
func (b *Book) RecordInitialCredit(ctx context.Context, customerID string, initialCredit decimal.Decimal) (*domain.LedgerTransaction, error) {
	if !initialCredit.IsPositive() {
		return nil, fmt.Errorf("%w: initial credit must be positive", store.ErrInvalidInput)
	}
	return b.append(ctx, domain.LedgerTransaction{
		CustomerID: customerID,
		Amount:     initialCredit.Neg(),
		Type:       domain.TxnTypeCredit,
		Notes:      "initial credit",
	})
}

// RecordOrderMovement appends an order-linked entry with the given signed
// amount. Used when a customer-attached order moves in or out of completed
// status, and for return refunds.
func (b *Book) RecordOrderMovement(ctx context.Context, customerID string, amount decimal.Decimal, orderID string, notes string) (*domain.LedgerTransaction, error) {
	if amount.IsZero() {
		return nil, fmt.Errorf("%w: zero-amount movement", store.ErrInvalidInput)
	}
	txnType := domain.TxnTypePayment
	if amount.IsNegative() {
		txnType = domain.TxnTypeCredit
	}
	return b.append(ctx, domain.LedgerTransaction{
		CustomerID: customerID,
		Amount:     amount,
		Type:       txnType,
		Reference:  orderID,
		Notes:      notes,
	})
}

func (b *Book) append(ctx context.Context, txn domain.LedgerTransaction) (*domain.LedgerTransaction, error) {
	txn.ID = ids.New("txn")
	txn.CreatedAt = time.Now().UTC()
	return b.repo.AppendTransaction(ctx, txn)
}

// History lists a customer's transactions, newest first, skipping the
// first offset entries.
func (b *Book) History(ctx context.Context, customerID string, limit int, offset int) ([]domain.LedgerTransaction, error) {
	return b.repo.ListTransactionsByCustomer(ctx, customerID, limit, offset)
}

// SyncAll recomputes every customer's stored balance from its transaction
// history. The whole pass runs under a lock so two operators cannot race
// the recompute; with Redis configured the lock spans processes.
func (b *Book) SyncAll(ctx context.Context) (int, error) {
	release, err := b.obtainSyncLock(ctx)
	if err != nil {
		return 0, err
	}
	defer release()

	customerIDs, err := b.repo.ListCustomerIDs(ctx)
	if err != nil {
		return 0, err
	}

	synced := 0
	for _, id := range customerIDs {
		if _, err := b.repo.RecomputeBalance(ctx, id); err != nil {
			return synced, fmt.Errorf("recompute balance for %s: %w", id, err)
		}
		synced++
	}
	return synced, nil
}

func (b *Book) obtainSyncLock(ctx context.Context) (func(), error) {
	if b.locker == nil {
		b.syncMu.Lock()
		return b.syncMu.Unlock, nil
	}

	lock, err := b.locker.Obtain(ctx, syncLockKey, syncLockTTL, nil)
	if err == redislock.ErrNotObtained {
		return nil, fmt.Errorf("%w: balance sync already running", store.ErrInvalidInput)
	}
	if err != nil {
		// Redis trouble must not block the books. Fall back to the
		// local mutex and note the degradation.
		b.log.WithError(err).Warn("redis lock unavailable, syncing with local lock")
		b.syncMu.Lock()
		return b.syncMu.Unlock, nil
	}
	return func() { _ = lock.Release(ctx) }, nil
}
