package memory

import (
	"context"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"dukaanpos/backend/internal/domain"
	"dukaanpos/backend/internal/ids"
	"dukaanpos/backend/internal/store"
)

type Store struct {
	mu                 sync.RWMutex
	ordersByID         map[string]domain.Order
	adjustmentsByOrder map[string][]domain.OrderAdjustment
	customersByID      map[string]domain.Customer
	txnsByCustomer     map[string][]domain.LedgerTransaction
	stock              map[string]int
	usersByUsername    map[string]domain.UserAccount
	auditLogs          []domain.AuditLog
}

// seedUsers builds the initial in-memory user accounts for dev/demo mode.
// Credentials are read from SEED_ADMIN_PASSWORD and SEED_OPERATOR_PASSWORD
// environment variables. If unset, hardcoded dev defaults are used with a
// warning printed to stdout. These credentials are never used in production
// (the backend uses PostgreSQL when DATABASE_URL is set).
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	operatorPwd := envOr("SEED_OPERATOR_PASSWORD", "operator123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_OPERATOR_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_OPERATOR_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, "admin"},
		{"operator", operatorPwd, "operator"},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func NewSeeded() *Store {
	now := time.Now().UTC()

	customers := map[string]domain.Customer{
		"cust-ahmed": {
			ID: "cust-ahmed", Name: "Ahmed Khan", Phone: "0300-1234567",
			Type: domain.CustomerTypePermanent, CreditLimit: decimal.NewFromInt(50000),
			CurrentBalance: decimal.NewFromInt(-12500), Active: true, CreatedAt: now.Add(-90 * 24 * time.Hour),
		},
		"cust-fatima": {
			ID: "cust-fatima", Name: "Fatima Bibi", Phone: "0321-7654321", Email: "fatima@example.com",
			Type: domain.CustomerTypePermanent, CreditLimit: decimal.NewFromInt(20000),
			CurrentBalance: decimal.NewFromInt(-3000), Active: true, CreatedAt: now.Add(-60 * 24 * time.Hour),
		},
		"cust-usman": {
			ID: "cust-usman", Name: "Usman Ali", Phone: "0333-5550001",
			Type: domain.CustomerTypeTemporary, CreditLimit: decimal.NewFromInt(5000),
			CurrentBalance: decimal.Zero, Active: true, CreatedAt: now.Add(-20 * 24 * time.Hour),
		},
	}

	txns := map[string][]domain.LedgerTransaction{
		"cust-ahmed": {
			{ID: "txn-seed-1", CustomerID: "cust-ahmed", Amount: decimal.NewFromInt(-12500), Type: domain.TxnTypeCredit,
				Notes: "initial credit", BalanceAfter: decimal.NewFromInt(-12500), CreatedAt: now.Add(-90 * 24 * time.Hour)},
		},
		"cust-fatima": {
			{ID: "txn-seed-2", CustomerID: "cust-fatima", Amount: decimal.NewFromInt(-5000), Type: domain.TxnTypeCredit,
				Notes: "initial credit", BalanceAfter: decimal.NewFromInt(-5000), CreatedAt: now.Add(-60 * 24 * time.Hour)},
			{ID: "txn-seed-3", CustomerID: "cust-fatima", Amount: decimal.NewFromInt(2000), Type: domain.TxnTypePayment,
				Method: "cash", BalanceAfter: decimal.NewFromInt(-3000), CreatedAt: now.Add(-30 * 24 * time.Hour)},
		},
		"cust-usman": {
			{ID: "txn-seed-4", CustomerID: "cust-usman", Amount: decimal.NewFromInt(-1500), Type: domain.TxnTypeCredit,
				Notes: "credit extended", BalanceAfter: decimal.NewFromInt(-1500), CreatedAt: now.Add(-15 * 24 * time.Hour)},
			{ID: "txn-seed-5", CustomerID: "cust-usman", Amount: decimal.NewFromInt(1500), Type: domain.TxnTypePayment,
				Method: "cash", BalanceAfter: decimal.Zero, CreatedAt: now.Add(-10 * 24 * time.Hour)},
		},
	}

	orders := map[string]domain.Order{
		"ord-1001": {
			ID: "ord-1001", OrderNumber: "SO-1001", Status: domain.OrderStatusCompleted,
			PaymentMethod: domain.PaymentMethodCash,
			Items: []domain.OrderItem{
				{ProductID: "prod-rice", ProductName: "Basmati Rice 5kg", Quantity: 2, UnitPrice: decimal.NewFromInt(850)},
				{ProductID: "prod-oil", ProductName: "Cooking Oil 1L", Quantity: 1, UnitPrice: decimal.NewFromInt(560)},
			},
			Subtotal: decimal.NewFromInt(2260), Discount: decimal.Zero,
			CreatedBy: "operator", CreatedAt: now.Add(-48 * time.Hour),
		},
		"ord-1002": {
			ID: "ord-1002", OrderNumber: "SO-1002", Status: domain.OrderStatusCompleted,
			PaymentMethod: domain.PaymentMethodCredit,
			CustomerID:    "cust-ahmed", CustomerName: "Ahmed Khan",
			Items: []domain.OrderItem{
				{ProductID: "prod-atta", ProductName: "Atta 10kg", Quantity: 3, UnitPrice: decimal.NewFromInt(1200)},
			},
			Subtotal: decimal.NewFromInt(3600), Discount: decimal.NewFromInt(100),
			CreatedBy: "operator", CreatedAt: now.Add(-24 * time.Hour),
		},
		"ord-1003": {
			ID: "ord-1003", OrderNumber: "SO-1003", Status: domain.OrderStatusPending,
			PaymentMethod: domain.PaymentMethodCash,
			Items: []domain.OrderItem{
				{ProductID: "prod-chai", ProductName: "Chai Patti 950g", Quantity: 2, UnitPrice: decimal.NewFromInt(450)},
			},
			Subtotal: decimal.NewFromInt(900), Discount: decimal.Zero,
			CreatedBy: "operator", CreatedAt: now.Add(-2 * time.Hour),
		},
	}

	return &Store{
		ordersByID:         orders,
		adjustmentsByOrder: make(map[string][]domain.OrderAdjustment),
		customersByID:      customers,
		txnsByCustomer:     txns,
		stock: map[string]int{
			"prod-rice":  40,
			"prod-oil":   25,
			"prod-atta":  60,
			"prod-sugar": 80,
			"prod-chai":  50,
		},
		usersByUsername: seedUsers(),
		auditLogs:       make([]domain.AuditLog, 0, 128),
	}
}

func (s *Store) ListOrders(_ context.Context, filter store.OrderFilter) ([]domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	orders := make([]domain.Order, 0, len(s.ordersByID))
	for _, order := range s.ordersByID {
		if filter.Status != "" && order.Status != filter.Status {
			continue
		}
		if filter.CustomerID != "" && order.CustomerID != filter.CustomerID {
			continue
		}
		orders = append(orders, cloneOrder(order))
	}

	slices.SortFunc(orders, func(a, b domain.Order) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(b.ID, a.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	if filter.Limit > 0 && len(orders) > filter.Limit {
		orders = orders[:filter.Limit]
	}
	return orders, nil
}

func (s *Store) GetOrderByID(_ context.Context, id string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	order, exists := s.ordersByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyOrder := cloneOrder(order)
	return &copyOrder, nil
}

func (s *Store) UpdateOrderStatus(_ context.Context, id string, status string, _ time.Time) (*domain.Order, error) {
	if !domain.IsValidOrderStatus(status) {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	order, exists := s.ordersByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	if order.Cancelled() {
		return nil, store.ErrOrderLocked
	}

	order.Status = status
	s.ordersByID[id] = order
	updated := cloneOrder(order)
	return &updated, nil
}

func (s *Store) UpdateOrderDetails(_ context.Context, id string, update domain.OrderDetailsUpdate) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, exists := s.ordersByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	if order.Cancelled() {
		return nil, store.ErrOrderLocked
	}

	if update.PaymentMethod != nil {
		if !domain.IsValidPaymentMethod(*update.PaymentMethod) {
			return nil, store.ErrInvalidInput
		}
		order.PaymentMethod = *update.PaymentMethod
	}
	if update.CustomerID != nil {
		if *update.CustomerID == "" {
			order.CustomerID = ""
			order.CustomerName = ""
		} else {
			customer, ok := s.customersByID[*update.CustomerID]
			if !ok {
				return nil, store.ErrNotFound
			}
			order.CustomerID = customer.ID
			order.CustomerName = customer.Name
		}
	}

	s.ordersByID[id] = order
	updated := cloneOrder(order)
	return &updated, nil
}

func (s *Store) DeleteOrder(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.ordersByID[id]; !exists {
		return store.ErrNotFound
	}
	delete(s.ordersByID, id)
	delete(s.adjustmentsByOrder, id)
	return nil
}

func (s *Store) CreateAdjustment(_ context.Context, adjustment domain.OrderAdjustment) (*domain.OrderAdjustment, error) {
	if adjustment.OrderID == "" || len(adjustment.Items) == 0 {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.ordersByID[adjustment.OrderID]; !exists {
		return nil, store.ErrNotFound
	}
	if adjustment.ID == "" {
		adjustment.ID = ids.New("adj")
	}
	if adjustment.CreatedAt.IsZero() {
		adjustment.CreatedAt = time.Now().UTC()
	}

	s.adjustmentsByOrder[adjustment.OrderID] = append(s.adjustmentsByOrder[adjustment.OrderID], cloneAdjustment(adjustment))
	created := cloneAdjustment(adjustment)
	return &created, nil
}

func (s *Store) ListAdjustmentsByOrder(_ context.Context, orderID string) ([]domain.OrderAdjustment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	adjustments := s.adjustmentsByOrder[orderID]
	result := make([]domain.OrderAdjustment, 0, len(adjustments))
	for _, adjustment := range adjustments {
		result = append(result, cloneAdjustment(adjustment))
	}
	slices.SortFunc(result, func(a, b domain.OrderAdjustment) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(b.ID, a.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	return result, nil
}

func (s *Store) ListCustomers(_ context.Context, filter domain.CreditCustomerFilter) ([]domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	search := strings.ToLower(strings.TrimSpace(filter.Search))
	customers := make([]domain.Customer, 0, len(s.customersByID))
	for _, customer := range s.customersByID {
		if filter.CustomerID != "" && customer.ID != filter.CustomerID {
			continue
		}
		if filter.OnlyWithBalance && customer.CurrentBalance.IsZero() {
			continue
		}
		if search != "" && !matchesSearch(customer, search) {
			continue
		}
		customers = append(customers, customer)
	}

	slices.SortFunc(customers, func(a, b domain.Customer) int {
		return cmpString(strings.ToLower(a.Name), strings.ToLower(b.Name))
	})
	return customers, nil
}

func (s *Store) GetCustomerByID(_ context.Context, id string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customer, exists := s.customersByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyCustomer := customer
	return &copyCustomer, nil
}

func (s *Store) CreateCustomer(_ context.Context, customer domain.Customer) (*domain.Customer, error) {
	customer.Name = strings.TrimSpace(customer.Name)
	if customer.Name == "" {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if customer.ID == "" {
		customer.ID = ids.New("cust")
	}
	if _, exists := s.customersByID[customer.ID]; exists {
		return nil, store.ErrInvalidInput
	}
	if customer.Type == "" {
		customer.Type = domain.CustomerTypeTemporary
	}
	if customer.CreatedAt.IsZero() {
		customer.CreatedAt = time.Now().UTC()
	}
	customer.Active = true

	s.customersByID[customer.ID] = customer
	created := customer
	return &created, nil
}

func (s *Store) AppendTransaction(_ context.Context, txn domain.LedgerTransaction) (*domain.LedgerTransaction, error) {
	if txn.CustomerID == "" || txn.Amount.IsZero() {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	customer, exists := s.customersByID[txn.CustomerID]
	if !exists {
		return nil, store.ErrNotFound
	}

	if txn.ID == "" {
		txn.ID = ids.New("txn")
	}
	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = time.Now().UTC()
	}

	customer.CurrentBalance = customer.CurrentBalance.Add(txn.Amount)
	txn.BalanceAfter = customer.CurrentBalance
	s.customersByID[txn.CustomerID] = customer
	s.txnsByCustomer[txn.CustomerID] = append(s.txnsByCustomer[txn.CustomerID], txn)

	created := txn
	return &created, nil
}

func (s *Store) ListTransactionsByCustomer(_ context.Context, customerID string, limit int, offset int) ([]domain.LedgerTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, exists := s.customersByID[customerID]; !exists {
		return nil, store.ErrNotFound
	}

	txns := s.txnsByCustomer[customerID]
	result := make([]domain.LedgerTransaction, len(txns))
	copy(result, txns)
	slices.SortFunc(result, func(a, b domain.LedgerTransaction) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(b.ID, a.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	if offset > 0 {
		if offset >= len(result) {
			return []domain.LedgerTransaction{}, nil
		}
		result = result[offset:]
	}
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) RecomputeBalance(_ context.Context, customerID string) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	customer, exists := s.customersByID[customerID]
	if !exists {
		return decimal.Zero, store.ErrNotFound
	}

	balance := decimal.Zero
	for _, txn := range s.txnsByCustomer[customerID] {
		balance = balance.Add(txn.Amount)
	}
	customer.CurrentBalance = balance
	s.customersByID[customerID] = customer
	return balance, nil
}

func (s *Store) ListCustomerIDs(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]string, 0, len(s.customersByID))
	for id := range s.customersByID {
		result = append(result, id)
	}
	slices.Sort(result)
	return result, nil
}

func (s *Store) GetStockMap(_ context.Context, productIDs []string) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stockMap := make(map[string]int, len(productIDs))
	for _, id := range productIDs {
		stockMap[id] = s.stock[id]
	}
	return stockMap, nil
}

func (s *Store) IncreaseStock(_ context.Context, adjustments []domain.StockAdjustment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, adj := range adjustments {
		if adj.Quantity < 1 {
			continue
		}
		s.stock[adj.ProductID] += adj.Quantity
	}
	return nil
}

func (s *Store) DecreaseStock(_ context.Context, adjustments []domain.StockAdjustment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Check everything before moving anything so a partial failure never
	// leaves inventory half-applied.
	for _, adj := range adjustments {
		if adj.Quantity < 1 {
			continue
		}
		if s.stock[adj.ProductID] < adj.Quantity {
			return store.ErrInsufficientStock
		}
	}
	for _, adj := range adjustments {
		if adj.Quantity < 1 {
			continue
		}
		s.stock[adj.ProductID] -= adj.Quantity
	}
	return nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidInput
	}
	if _, exists := s.usersByUsername[username]; exists {
		return store.ErrInvalidInput
	}
	user.Username = username
	if user.Role == "" {
		user.Role = "operator"
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.Active = true
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return cmpString(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidInput
	}
	user, exists := s.usersByUsername[username]
	if !exists {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = ids.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.AuditLog, 0, 64)
	for _, entry := range s.auditLogs {
		if entry.CreatedAt.Before(from) || !entry.CreatedAt.Before(to) {
			continue
		}
		result = append(result, entry)
	}

	slices.SortFunc(result, func(a, b domain.AuditLog) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(b.ID, a.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func matchesSearch(customer domain.Customer, search string) bool {
	return strings.Contains(strings.ToLower(customer.Name), search) ||
		strings.Contains(strings.ToLower(customer.Phone), search) ||
		strings.Contains(strings.ToLower(customer.Email), search)
}

func cmpString(a string, b string) int {
	if a == b {
		return 0
	}
	if a < b {
		return -1
	}
	return 1
}

func cloneOrder(src domain.Order) domain.Order {
	dup := src
	items := make([]domain.OrderItem, len(src.Items))
	copy(items, src.Items)
	dup.Items = items
	return dup
}

func cloneAdjustment(src domain.OrderAdjustment) domain.OrderAdjustment {
	dup := src
	items := make([]domain.AdjustmentLine, len(src.Items))
	copy(items, src.Items)
	dup.Items = items
	return dup
}
