package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"

	"dukaanpos/backend/internal/domain"
	"dukaanpos/backend/internal/editor"
	"dukaanpos/backend/internal/ledger"
	"dukaanpos/backend/internal/messaging"
	"dukaanpos/backend/internal/store"
	"dukaanpos/backend/internal/store/memory"
	"dukaanpos/backend/internal/translation"
)

type okTranslator struct{}

func (okTranslator) ToLocalLanguage(_ context.Context, text string) (string, error) {
	return "[ur] " + text, nil
}

func (okTranslator) Rewrite(_ context.Context, message string, _ string) (string, error) {
	return message, nil
}

type okTranscriber struct{}

func (okTranscriber) Transcribe(context.Context, string, string) (string, error) {
	return "transcript", nil
}

var _ translation.Translator = okTranslator{}

func newTestService(repo store.Repository) *Service {
	book := ledger.NewBook(repo, nil, nil)
	composer := messaging.NewComposer(okTranslator{}, okTranscriber{}, nil, "")
	return New(repo, book, composer, nil, nil)
}

func adminContext() context.Context {
	return WithActor(context.Background(), domain.Actor{Username: "admin", Role: "admin"})
}

func mustSave(t *testing.T, svc *Service, ctx context.Context, orderID string, field string, value string, confirm bool) domain.Order {
	t.Helper()
	if _, err := svc.BeginEdit(ctx, orderID, field); err != nil {
		t.Fatalf("begin edit failed: %v", err)
	}
	if _, err := svc.SetEditValue(ctx, orderID, value); err != nil {
		t.Fatalf("set value failed: %v", err)
	}
	resp, err := svc.SaveEdit(ctx, orderID, confirm)
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	return resp.Order
}

func TestCompletingOrderDeductsStock(t *testing.T) {
	repo := memory.NewSeeded()
	svc := newTestService(repo)
	ctx := adminContext()

	order := mustSave(t, svc, ctx, "ord-1003", editor.FieldStatus, domain.OrderStatusCompleted, false)
	if order.Status != domain.OrderStatusCompleted {
		t.Fatalf("expected completed, got %s", order.Status)
	}

	stock, err := repo.GetStockMap(ctx, []string{"prod-chai"})
	if err != nil {
		t.Fatalf("stock map failed: %v", err)
	}
	if stock["prod-chai"] != 48 {
		t.Fatalf("expected chai stock 48 after completion, got %d", stock["prod-chai"])
	}
}

func TestInsufficientStockAbortsStatusSave(t *testing.T) {
	repo := memory.NewSeeded()
	svc := newTestService(repo)
	ctx := adminContext()

	// Drain chai so the pending order's two units cannot be covered.
	if err := repo.DecreaseStock(ctx, []domain.StockAdjustment{{ProductID: "prod-chai", Quantity: 49}}); err != nil {
		t.Fatalf("drain failed: %v", err)
	}

	if _, err := svc.BeginEdit(ctx, "ord-1003", editor.FieldStatus); err != nil {
		t.Fatalf("begin edit failed: %v", err)
	}
	if _, err := svc.SetEditValue(ctx, "ord-1003", domain.OrderStatusCompleted); err != nil {
		t.Fatalf("set value failed: %v", err)
	}
	if _, err := svc.SaveEdit(ctx, "ord-1003", false); !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	order, err := repo.GetOrderByID(ctx, "ord-1003")
	if err != nil {
		t.Fatalf("get order failed: %v", err)
	}
	if order.Status != domain.OrderStatusPending {
		t.Fatalf("failed save must not change status, got %s", order.Status)
	}
	if state := svc.EditState(ctx, "ord-1003"); state.State != editor.StateEditing {
		t.Fatalf("expected session back in editing, got %s", state.State)
	}
}

func TestCancellingCompletedOrderRestoresStockAndLocks(t *testing.T) {
	repo := memory.NewSeeded()
	svc := newTestService(repo)
	ctx := adminContext()

	order := mustSave(t, svc, ctx, "ord-1001", editor.FieldStatus, domain.OrderStatusCancelled, true)
	if order.Status != domain.OrderStatusCancelled {
		t.Fatalf("expected cancelled, got %s", order.Status)
	}

	stock, err := repo.GetStockMap(ctx, []string{"prod-rice", "prod-oil"})
	if err != nil {
		t.Fatalf("stock map failed: %v", err)
	}
	if stock["prod-rice"] != 42 || stock["prod-oil"] != 26 {
		t.Fatalf("expected restored stock rice=42 oil=26, got rice=%d oil=%d", stock["prod-rice"], stock["prod-oil"])
	}

	if _, err := svc.BeginEdit(ctx, "ord-1001", editor.FieldPayment); !errors.Is(err, editor.ErrOrderLocked) {
		t.Fatalf("expected ErrOrderLocked, got %v", err)
	}
}

func TestCancellationNeedsConfirmation(t *testing.T) {
	repo := memory.NewSeeded()
	svc := newTestService(repo)
	ctx := adminContext()

	if _, err := svc.BeginEdit(ctx, "ord-1001", editor.FieldStatus); err != nil {
		t.Fatalf("begin edit failed: %v", err)
	}
	if _, err := svc.SetEditValue(ctx, "ord-1001", domain.OrderStatusCancelled); err != nil {
		t.Fatalf("set value failed: %v", err)
	}

	_, err := svc.SaveEdit(ctx, "ord-1001", false)
	if !IsConfirmationRequired(err) {
		t.Fatalf("expected confirmation requirement, got %v", err)
	}

	state := svc.EditState(ctx, "ord-1001")
	if state.State != editor.StateEditing {
		t.Fatalf("expected session still editing, got %s", state.State)
	}
	if state.Value != domain.OrderStatusCompleted {
		t.Fatalf("declined confirmation must restore prior value, got %s", state.Value)
	}

	order, err := repo.GetOrderByID(ctx, "ord-1001")
	if err != nil {
		t.Fatalf("get order failed: %v", err)
	}
	if order.Status != domain.OrderStatusCompleted {
		t.Fatalf("order must be unchanged, got %s", order.Status)
	}
}

func TestCreditStatusChangeAdjustsBalance(t *testing.T) {
	repo := memory.NewSeeded()
	svc := newTestService(repo)
	ctx := adminContext()

	// ord-1002 is a completed credit sale worth 3500 for cust-ahmed.
	mustSave(t, svc, ctx, "ord-1002", editor.FieldStatus, domain.OrderStatusPending, false)

	customer, err := repo.GetCustomerByID(ctx, "cust-ahmed")
	if err != nil {
		t.Fatalf("get customer failed: %v", err)
	}
	if !customer.CurrentBalance.Equal(decimal.NewFromInt(-9000)) {
		t.Fatalf("expected balance -9000 after revert, got %s", customer.CurrentBalance)
	}

	history, err := svc.TransactionHistory(ctx, "cust-ahmed", 10, 0)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	latest := history.Transactions[0]
	if latest.Reference != "ord-1002" || !latest.Amount.Equal(decimal.NewFromInt(3500)) {
		t.Fatalf("unexpected reversal entry %+v", latest)
	}
}

func TestCashOrderWithCustomerAdjustsBalance(t *testing.T) {
	repo := memory.NewSeeded()
	svc := newTestService(repo)
	ctx := adminContext()

	// The balance moves for any customer-attached order crossing the
	// completed boundary; the payment method does not matter.
	mustSave(t, svc, ctx, "ord-1003", editor.FieldCustomer, "cust-usman", false)
	mustSave(t, svc, ctx, "ord-1003", editor.FieldStatus, domain.OrderStatusCompleted, false)

	customer, err := repo.GetCustomerByID(ctx, "cust-usman")
	if err != nil {
		t.Fatalf("get customer failed: %v", err)
	}
	if !customer.CurrentBalance.Equal(decimal.NewFromInt(-900)) {
		t.Fatalf("expected balance -900 after completion, got %s", customer.CurrentBalance)
	}

	history, err := svc.TransactionHistory(ctx, "cust-usman", 10, 0)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	latest := history.Transactions[0]
	if latest.Reference != "ord-1003" || !latest.Amount.Equal(decimal.NewFromInt(-900)) {
		t.Fatalf("unexpected completion entry %+v", latest)
	}
}

// failingLedgerRepo simulates a ledger outage while the rest of the
// repository keeps working.
type failingLedgerRepo struct {
	*memory.Store
}

func (f *failingLedgerRepo) AppendTransaction(context.Context, domain.LedgerTransaction) (*domain.LedgerTransaction, error) {
	return nil, fmt.Errorf("ledger unavailable")
}

func TestBalanceAdjustmentFailureDoesNotBlockStatusSave(t *testing.T) {
	repo := &failingLedgerRepo{Store: memory.NewSeeded()}
	svc := newTestService(repo)
	ctx := adminContext()

	order := mustSave(t, svc, ctx, "ord-1002", editor.FieldStatus, domain.OrderStatusPending, false)
	if order.Status != domain.OrderStatusPending {
		t.Fatalf("status save must survive balance failure, got %s", order.Status)
	}

	customer, err := repo.GetCustomerByID(ctx, "cust-ahmed")
	if err != nil {
		t.Fatalf("get customer failed: %v", err)
	}
	if !customer.CurrentBalance.Equal(decimal.NewFromInt(-12500)) {
		t.Fatalf("balance must stay untouched when ledger fails, got %s", customer.CurrentBalance)
	}
}

func TestPaymentMethodEdit(t *testing.T) {
	repo := memory.NewSeeded()
	svc := newTestService(repo)
	ctx := adminContext()

	order := mustSave(t, svc, ctx, "ord-1001", editor.FieldPayment, domain.PaymentMethodCard, false)
	if order.PaymentMethod != domain.PaymentMethodCard {
		t.Fatalf("expected card, got %s", order.PaymentMethod)
	}
}

func TestCustomerEditToWalkin(t *testing.T) {
	repo := memory.NewSeeded()
	svc := newTestService(repo)
	ctx := adminContext()

	order := mustSave(t, svc, ctx, "ord-1002", editor.FieldCustomer, "", false)
	if !order.Walkin() {
		t.Fatalf("expected walk-in after detach, got customer %q", order.CustomerID)
	}
}

func TestAdjustOrderReturnsAndRestocks(t *testing.T) {
	repo := memory.NewSeeded()
	svc := newTestService(repo)
	ctx := adminContext()

	resp, err := svc.AdjustOrder(ctx, "ord-1001", domain.OrderAdjustmentRequest{
		Items: []domain.AdjustmentLineRequest{
			{ProductID: "prod-rice", Quantity: "2"},
			{ProductID: "prod-oil", Quantity: "abc"},
		},
	})
	if err != nil {
		t.Fatalf("adjust failed: %v", err)
	}

	if !resp.Adjustment.RefundAmount.Equal(decimal.NewFromInt(1700)) {
		t.Fatalf("expected refund 1700, got %s", resp.Adjustment.RefundAmount)
	}
	if len(resp.Adjustment.Items) != 1 || resp.Adjustment.Items[0].ProductID != "prod-rice" {
		t.Fatalf("coerced zero-quantity line must be dropped, got %+v", resp.Adjustment.Items)
	}
	if !resp.Adjustment.RestockItems {
		t.Fatalf("expected restock flag")
	}

	stock, err := repo.GetStockMap(ctx, []string{"prod-rice"})
	if err != nil {
		t.Fatalf("stock map failed: %v", err)
	}
	if stock["prod-rice"] != 42 {
		t.Fatalf("expected rice stock 42 after restock, got %d", stock["prod-rice"])
	}

	saved, err := svc.ListAdjustments(ctx, "ord-1001")
	if err != nil {
		t.Fatalf("list adjustments failed: %v", err)
	}
	if len(saved) != 1 {
		t.Fatalf("expected one persisted adjustment, got %d", len(saved))
	}
}

func TestCashReturnRefundsCustomerBalance(t *testing.T) {
	repo := memory.NewSeeded()
	svc := newTestService(repo)
	ctx := adminContext()

	mustSave(t, svc, ctx, "ord-1001", editor.FieldCustomer, "cust-fatima", false)

	resp, err := svc.AdjustOrder(ctx, "ord-1001", domain.OrderAdjustmentRequest{
		Items: []domain.AdjustmentLineRequest{{ProductID: "prod-rice", Quantity: "1"}},
	})
	if err != nil {
		t.Fatalf("adjust failed: %v", err)
	}
	if !resp.Adjustment.RefundAmount.Equal(decimal.NewFromInt(850)) {
		t.Fatalf("expected refund 850, got %s", resp.Adjustment.RefundAmount)
	}

	customer, err := repo.GetCustomerByID(ctx, "cust-fatima")
	if err != nil {
		t.Fatalf("get customer failed: %v", err)
	}
	if !customer.CurrentBalance.Equal(decimal.NewFromInt(-2150)) {
		t.Fatalf("expected balance -2150 after refund on a cash order, got %s", customer.CurrentBalance)
	}

	history, err := svc.TransactionHistory(ctx, "cust-fatima", 10, 0)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	latest := history.Transactions[0]
	if latest.Reference != "ord-1001" || !latest.Amount.Equal(decimal.NewFromInt(850)) {
		t.Fatalf("unexpected refund entry %+v", latest)
	}
}

func TestTransactionHistoryPaginatesWithOffset(t *testing.T) {
	repo := memory.NewSeeded()
	svc := newTestService(repo)
	ctx := adminContext()

	page, err := svc.TransactionHistory(ctx, "cust-fatima", 1, 1)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if len(page.Transactions) != 1 {
		t.Fatalf("expected one transaction on the second page, got %d", len(page.Transactions))
	}
	if page.Transactions[0].ID != "txn-seed-2" {
		t.Fatalf("expected the older entry on the second page, got %s", page.Transactions[0].ID)
	}

	past, err := svc.TransactionHistory(ctx, "cust-fatima", 10, 50)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if len(past.Transactions) != 0 {
		t.Fatalf("offset past the end must return an empty page, got %d", len(past.Transactions))
	}
}

func TestAdjustOrderRejectsEmptyReturn(t *testing.T) {
	repo := memory.NewSeeded()
	svc := newTestService(repo)
	ctx := adminContext()

	_, err := svc.AdjustOrder(ctx, "ord-1001", domain.OrderAdjustmentRequest{
		Items: []domain.AdjustmentLineRequest{{ProductID: "prod-rice", Quantity: "0"}},
	})
	if !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected invalid input for empty return, got %v", err)
	}

	saved, err := svc.ListAdjustments(ctx, "ord-1001")
	if err != nil {
		t.Fatalf("list adjustments failed: %v", err)
	}
	if len(saved) != 0 {
		t.Fatalf("rejected return must not be persisted")
	}
}

func TestAdjustOrderClampsOverReturn(t *testing.T) {
	repo := memory.NewSeeded()
	svc := newTestService(repo)
	ctx := adminContext()

	resp, err := svc.AdjustOrder(ctx, "ord-1001", domain.OrderAdjustmentRequest{
		Items: []domain.AdjustmentLineRequest{{ProductID: "prod-rice", Quantity: "99"}},
	})
	if err != nil {
		t.Fatalf("adjust failed: %v", err)
	}
	if resp.Adjustment.Items[0].Quantity != 2 {
		t.Fatalf("expected clamp to original quantity 2, got %d", resp.Adjustment.Items[0].Quantity)
	}
}

func TestAdjustCreditOrderRefundsBalance(t *testing.T) {
	repo := memory.NewSeeded()
	svc := newTestService(repo)
	ctx := adminContext()

	_, err := svc.AdjustOrder(ctx, "ord-1002", domain.OrderAdjustmentRequest{
		Items: []domain.AdjustmentLineRequest{{ProductID: "prod-atta", Quantity: "1"}},
	})
	if err != nil {
		t.Fatalf("adjust failed: %v", err)
	}

	customer, err := repo.GetCustomerByID(ctx, "cust-ahmed")
	if err != nil {
		t.Fatalf("get customer failed: %v", err)
	}
	if !customer.CurrentBalance.Equal(decimal.NewFromInt(-11300)) {
		t.Fatalf("expected balance -11300 after 1200 refund, got %s", customer.CurrentBalance)
	}
}

func TestAdjustCancelledOrderLocked(t *testing.T) {
	repo := memory.NewSeeded()
	svc := newTestService(repo)
	ctx := adminContext()

	mustSave(t, svc, ctx, "ord-1001", editor.FieldStatus, domain.OrderStatusCancelled, true)

	_, err := svc.AdjustOrder(ctx, "ord-1001", domain.OrderAdjustmentRequest{
		Items: []domain.AdjustmentLineRequest{{ProductID: "prod-rice", Quantity: "1"}},
	})
	if !errors.Is(err, store.ErrOrderLocked) {
		t.Fatalf("expected ErrOrderLocked, got %v", err)
	}
}

func TestRecordPaymentAnswersWithFreshBalance(t *testing.T) {
	repo := memory.NewSeeded()
	svc := newTestService(repo)
	ctx := adminContext()

	resp, err := svc.RecordPayment(ctx, "cust-ahmed", domain.RecordPaymentRequest{
		Amount: decimal.NewFromInt(5000),
		Method: "cash",
	})
	if err != nil {
		t.Fatalf("payment failed: %v", err)
	}
	if !resp.Customer.CurrentBalance.Equal(decimal.NewFromInt(-7500)) {
		t.Fatalf("expected balance -7500, got %s", resp.Customer.CurrentBalance)
	}
	if !resp.Transaction.BalanceAfter.Equal(decimal.NewFromInt(-7500)) {
		t.Fatalf("expected balance_after -7500, got %s", resp.Transaction.BalanceAfter)
	}
	if resp.Transaction.Type != domain.TxnTypePayment {
		t.Fatalf("expected payment type, got %s", resp.Transaction.Type)
	}
}

func TestRecordReceivableIncreasesDebt(t *testing.T) {
	repo := memory.NewSeeded()
	svc := newTestService(repo)
	ctx := adminContext()

	resp, err := svc.RecordReceivable(ctx, "cust-fatima", domain.RecordReceivableRequest{
		Amount: decimal.NewFromInt(2000),
		Reason: "goods on credit",
	})
	if err != nil {
		t.Fatalf("receivable failed: %v", err)
	}
	if !resp.Customer.CurrentBalance.Equal(decimal.NewFromInt(-5000)) {
		t.Fatalf("expected balance -5000, got %s", resp.Customer.CurrentBalance)
	}
	if !resp.Transaction.Amount.Equal(decimal.NewFromInt(-2000)) {
		t.Fatalf("receivable must be stored negative, got %s", resp.Transaction.Amount)
	}
}

func TestRecordReceivableNeedsReason(t *testing.T) {
	repo := memory.NewSeeded()
	svc := newTestService(repo)
	ctx := adminContext()

	_, err := svc.RecordReceivable(ctx, "cust-fatima", domain.RecordReceivableRequest{
		Amount: decimal.NewFromInt(2000),
	})
	if !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected invalid input without reason, got %v", err)
	}
}

func TestAddCreditRejectsNonPositiveAmount(t *testing.T) {
	repo := memory.NewSeeded()
	svc := newTestService(repo)
	ctx := adminContext()

	if _, err := svc.AddCredit(ctx, "cust-ahmed", domain.AddCreditRequest{Amount: decimal.NewFromInt(-50)}); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected invalid input for negative credit, got %v", err)
	}
}

func TestAddCreditIncreasesDebt(t *testing.T) {
	repo := memory.NewSeeded()
	svc := newTestService(repo)
	ctx := adminContext()

	resp, err := svc.AddCredit(ctx, "cust-usman", domain.AddCreditRequest{Amount: decimal.NewFromInt(700)})
	if err != nil {
		t.Fatalf("add credit failed: %v", err)
	}
	if !resp.Customer.CurrentBalance.Equal(decimal.NewFromInt(-700)) {
		t.Fatalf("expected balance -700, got %s", resp.Customer.CurrentBalance)
	}
	if resp.Transaction.Type != domain.TxnTypeCredit {
		t.Fatalf("expected credit type, got %s", resp.Transaction.Type)
	}
}

func TestCreateCustomerWithInitialCredit(t *testing.T) {
	repo := memory.NewSeeded()
	svc := newTestService(repo)
	ctx := adminContext()

	resp, err := svc.CreateCreditCustomer(ctx, domain.CustomerCreateRequest{
		Name:          "Bilal Traders",
		Phone:         "0345-0000001",
		InitialCredit: decimal.NewFromInt(1000),
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if resp.Customer.Type != domain.CustomerTypeTemporary {
		t.Fatalf("expected Temporary default, got %s", resp.Customer.Type)
	}
	if !resp.Customer.CurrentBalance.Equal(decimal.NewFromInt(-1000)) {
		t.Fatalf("expected opening balance -1000, got %s", resp.Customer.CurrentBalance)
	}

	history, err := svc.TransactionHistory(ctx, resp.Customer.ID, 10, 0)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if len(history.Transactions) != 1 {
		t.Fatalf("expected one opening transaction, got %d", len(history.Transactions))
	}
}

func TestCreateCustomerRequiresNameAndPhone(t *testing.T) {
	repo := memory.NewSeeded()
	svc := newTestService(repo)
	ctx := adminContext()

	_, err := svc.CreateCreditCustomer(ctx, domain.CustomerCreateRequest{Name: "  "})
	if !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestListCreditCustomersFiltersSettledAndSearches(t *testing.T) {
	repo := memory.NewSeeded()
	svc := newTestService(repo)
	ctx := adminContext()

	all, err := svc.ListCreditCustomers(ctx, domain.CreditCustomerFilter{})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	// cust-usman is settled and must not appear.
	if len(all.Customers) != 2 {
		t.Fatalf("expected 2 customers with balances, got %d", len(all.Customers))
	}

	byName, err := svc.ListCreditCustomers(ctx, domain.CreditCustomerFilter{Search: "FATI"})
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(byName.Customers) != 1 || byName.Customers[0].ID != "cust-fatima" {
		t.Fatalf("case-insensitive name search failed: %+v", byName.Customers)
	}

	byPhone, err := svc.ListCreditCustomers(ctx, domain.CreditCustomerFilter{Search: "0300"})
	if err != nil {
		t.Fatalf("phone search failed: %v", err)
	}
	if len(byPhone.Customers) != 1 || byPhone.Customers[0].ID != "cust-ahmed" {
		t.Fatalf("phone search failed: %+v", byPhone.Customers)
	}

	byID, err := svc.ListCreditCustomers(ctx, domain.CreditCustomerFilter{CustomerID: "cust-fatima"})
	if err != nil {
		t.Fatalf("id filter failed: %v", err)
	}
	if len(byID.Customers) != 1 || byID.Customers[0].ID != "cust-fatima" {
		t.Fatalf("id filter failed: %+v", byID.Customers)
	}
}

func TestSyncBalancesCoversEveryCustomer(t *testing.T) {
	repo := memory.NewSeeded()
	svc := newTestService(repo)
	ctx := adminContext()

	resp, err := svc.SyncBalances(ctx)
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	if resp.CustomersSynced != 3 {
		t.Fatalf("expected 3 customers synced, got %d", resp.CustomersSynced)
	}

	// Post-sync, every stored balance equals its history sum.
	for _, id := range []string{"cust-ahmed", "cust-fatima", "cust-usman"} {
		customer, err := repo.GetCustomerByID(ctx, id)
		if err != nil {
			t.Fatalf("get customer failed: %v", err)
		}
		history, err := svc.TransactionHistory(ctx, id, 100, 0)
		if err != nil {
			t.Fatalf("history failed: %v", err)
		}
		sum := decimal.Zero
		for _, txn := range history.Transactions {
			sum = sum.Add(txn.Amount)
		}
		if !customer.CurrentBalance.Equal(sum) {
			t.Fatalf("customer %s balance %s != history sum %s", id, customer.CurrentBalance, sum)
		}
	}
}

func TestComposeReminderForCustomer(t *testing.T) {
	repo := memory.NewSeeded()
	svc := newTestService(repo)
	ctx := adminContext()

	reminder, err := svc.ComposeReminder(ctx, "cust-ahmed")
	if err != nil {
		t.Fatalf("compose failed: %v", err)
	}
	if reminder.Degraded {
		t.Fatalf("expected full reminder with working translator")
	}
	if !reminder.Outstanding.Equal(decimal.NewFromInt(12500)) {
		t.Fatalf("expected outstanding 12500, got %s", reminder.Outstanding)
	}
}

func TestDeleteOrderRequiresAdmin(t *testing.T) {
	repo := memory.NewSeeded()
	svc := newTestService(repo)

	operatorCtx := WithActor(context.Background(), domain.Actor{Username: "operator", Role: "operator"})
	if err := svc.DeleteOrder(operatorCtx, "ord-1003"); err == nil {
		t.Fatalf("expected role error for operator")
	}

	if err := svc.DeleteOrder(adminContext(), "ord-1003"); err != nil {
		t.Fatalf("admin delete failed: %v", err)
	}
	if _, err := repo.GetOrderByID(context.Background(), "ord-1003"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected order gone, got %v", err)
	}
}
