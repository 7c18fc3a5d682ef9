package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	OrderStatusPending   = "pending"
	OrderStatusCompleted = "completed"
	OrderStatusCancelled = "cancelled"
)

const (
	PaymentMethodCash   = "cash"
	PaymentMethodCredit = "credit"
	PaymentMethodCard   = "card"
)

const (
	CustomerTypePermanent = "Permanent"
	CustomerTypeTemporary = "Temporary"
)

const (
	TxnTypePayment = "payment"
	TxnTypeCredit  = "credit"
)

type OrderItem struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

func (i OrderItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type Order struct {
	ID            string          `json:"id"`
	OrderNumber   string          `json:"order_number"`
	Status        string          `json:"status"`
	PaymentMethod string          `json:"payment_method"`
	CustomerID    string          `json:"customer_id,omitempty"`
	CustomerName  string          `json:"customer_name,omitempty"`
	Items         []OrderItem     `json:"items"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Discount      decimal.Decimal `json:"discount"`
	CreatedBy     string          `json:"created_by,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Total is always derived; the stored subtotal/discount pair is the source
// of truth so a discount edit can never leave a stale total behind.
func (o Order) Total() decimal.Decimal {
	return o.Subtotal.Sub(o.Discount)
}

// Walkin reports whether the order has no customer attached.
func (o Order) Walkin() bool {
	return o.CustomerID == ""
}

func (o Order) Cancelled() bool {
	return o.Status == OrderStatusCancelled
}

// OrderDetailsUpdate carries the direct-persist fields of an order edit.
// Nil means "leave unchanged"; an empty CustomerID pointer detaches the
// customer (walk-in).
type OrderDetailsUpdate struct {
	PaymentMethod *string `json:"payment_method,omitempty"`
	CustomerID    *string `json:"customer_id,omitempty"`
}

type OrderListResponse struct {
	Orders []Order `json:"orders"`
}

type OrderResponse struct {
	Order Order `json:"order"`
}

type Customer struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Phone          string          `json:"phone,omitempty"`
	Email          string          `json:"email,omitempty"`
	Type           string          `json:"type"`
	CreditLimit    decimal.Decimal `json:"credit_limit"`
	CurrentBalance decimal.Decimal `json:"current_balance"`
	Active         bool            `json:"active"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Due reports whether the customer owes money (negative balance).
func (c Customer) Due() bool {
	return c.CurrentBalance.IsNegative()
}

// Outstanding is the absolute balance for display and reminder messages.
func (c Customer) Outstanding() decimal.Decimal {
	return c.CurrentBalance.Abs()
}

type CustomerCreateRequest struct {
	Name          string          `json:"name" validate:"required"`
	Phone         string          `json:"phone" validate:"required"`
	Email         string          `json:"email,omitempty" validate:"omitempty,email"`
	Type          string          `json:"type,omitempty" validate:"omitempty,oneof=Permanent Temporary"`
	CreditLimit   decimal.Decimal `json:"credit_limit"`
	InitialCredit decimal.Decimal `json:"initial_credit"`
}

type CustomerListResponse struct {
	Customers []Customer `json:"customers"`
}

type CustomerResponse struct {
	Customer Customer `json:"customer"`
}

// CreditCustomerFilter narrows the credit page listing. Search matches
// name, phone, and email case-insensitively; CustomerID narrows to one id;
// OnlyWithBalance drops settled customers from the credit view.
type CreditCustomerFilter struct {
	Search          string
	CustomerID      string
	OnlyWithBalance bool
}

// LedgerTransaction is one atomic signed balance adjustment. Positive
// amounts reduce what the customer owes (payments); negative amounts
// increase it (credit/receivable). A customer's balance is always the sum
// of its transaction history.
type LedgerTransaction struct {
	ID           string          `json:"id"`
	CustomerID   string          `json:"customer_id"`
	Amount       decimal.Decimal `json:"amount"`
	Type         string          `json:"type"`
	Method       string          `json:"method,omitempty"`
	Reference    string          `json:"reference,omitempty"`
	Notes        string          `json:"notes,omitempty"`
	BalanceAfter decimal.Decimal `json:"balance_after"`
	CreatedAt    time.Time       `json:"created_at"`
}

type RecordPaymentRequest struct {
	Amount    decimal.Decimal `json:"amount" validate:"required"`
	Method    string          `json:"method" validate:"required,oneof=cash bank cheque online"`
	Reference string          `json:"reference,omitempty"`
}

type RecordReceivableRequest struct {
	Amount    decimal.Decimal `json:"amount" validate:"required"`
	Reason    string          `json:"reason" validate:"required"`
	Reference string          `json:"reference,omitempty"`
}

type AddCreditRequest struct {
	Amount decimal.Decimal `json:"amount" validate:"required"`
}

// LedgerMutationResponse answers every ledger mutation with the re-read
// customer so callers never render a stale balance.
type LedgerMutationResponse struct {
	Customer    Customer          `json:"customer"`
	Transaction LedgerTransaction `json:"transaction"`
}

type TransactionHistoryResponse struct {
	Transactions []LedgerTransaction `json:"transactions"`
}

type SyncBalancesResponse struct {
	CustomersSynced int    `json:"customers_synced"`
	CompletedAt     string `json:"completed_at"`
}

// Edit session wire types for the single-field order editor.

type BeginEditRequest struct {
	Field string `json:"field"`
}

type SetEditValueRequest struct {
	Value string `json:"value"`
}

type SaveEditRequest struct {
	Confirm bool `json:"confirm"`
}

type EditSessionResponse struct {
	OrderID              string `json:"order_id"`
	State                string `json:"state"`
	Field                string `json:"field,omitempty"`
	Value                string `json:"value,omitempty"`
	ConfirmationRequired bool   `json:"confirmation_required,omitempty"`
}

// Return/adjustment wire types.

type AdjustmentLineRequest struct {
	ProductID string `json:"product_id"`
	// Quantity is accepted as free text so the service can coerce
	// unparseable or out-of-range input instead of rejecting it.
	Quantity string `json:"quantity"`
	Reason   string `json:"reason,omitempty"`
}

type OrderAdjustmentRequest struct {
	Items []AdjustmentLineRequest `json:"items"`
	Notes string                  `json:"notes,omitempty"`
}

type AdjustmentLine struct {
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Reason    string          `json:"reason"`
}

type OrderAdjustment struct {
	ID               string           `json:"id"`
	OrderID          string           `json:"order_id"`
	Type             string           `json:"type"`
	Items            []AdjustmentLine `json:"items"`
	AdjustmentReason string           `json:"adjustment_reason"`
	RefundAmount     decimal.Decimal  `json:"refund_amount"`
	RestockItems     bool             `json:"restock_items"`
	ProcessedBy      string           `json:"processed_by,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
}

type OrderAdjustmentResponse struct {
	Adjustment OrderAdjustment `json:"adjustment"`
	Order      Order           `json:"order"`
}

// StockAdjustment is one product/quantity delta applied to inventory.
type StockAdjustment struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// OutsourcedItem is an annotation fetched from the outsourcing collaborator
// and matched to an order by sale reference.
type OutsourcedItem struct {
	ID           string `json:"id"`
	SaleID       string `json:"sale_id"`
	ProductName  string `json:"product_name"`
	Quantity     int    `json:"quantity"`
	SupplierName string `json:"supplier_name,omitempty"`
}

type OutsourcedItemsResponse struct {
	Items []OutsourcedItem `json:"items"`
}

// Reminder composer wire types.

type ReminderMessage struct {
	CustomerID  string          `json:"customer_id"`
	Message     string          `json:"message"`
	Outstanding decimal.Decimal `json:"outstanding"`
	Degraded    bool            `json:"degraded"`
}

type VoiceEditRequest struct {
	Message     string `json:"message"`
	AudioBase64 string `json:"audio_base64"`
}

// VoiceEditProposal is a suggested rewrite. It never replaces the message
// by itself; the operator approves or discards it client-side.
type VoiceEditProposal struct {
	Transcript string `json:"transcript"`
	Proposed   string `json:"proposed"`
}

type DeepLinkRequest struct {
	Message string `json:"message"`
}

type DeepLinkResponse struct {
	URL   string `json:"url"`
	Phone string `json:"phone"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

type OperatorCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type OperatorUser struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}

type AuditLog struct {
	ID            string    `json:"id"`
	ActorUsername string    `json:"actor_username"`
	ActorRole     string    `json:"actor_role"`
	Action        string    `json:"action"`
	EntityType    string    `json:"entity_type"`
	EntityID      string    `json:"entity_id"`
	Detail        string    `json:"detail"`
	CreatedAt     time.Time `json:"created_at"`
}

func IsValidOrderStatus(status string) bool {
	switch status {
	case OrderStatusPending, OrderStatusCompleted, OrderStatusCancelled:
		return true
	default:
		return false
	}
}

func IsValidPaymentMethod(method string) bool {
	switch method {
	case PaymentMethodCash, PaymentMethodCredit, PaymentMethodCard:
		return true
	default:
		return false
	}
}
