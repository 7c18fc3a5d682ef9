package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"dukaanpos/backend/internal/domain"
	"dukaanpos/backend/internal/ids"
	"dukaanpos/backend/internal/store"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

const orderColumns = `
	o.id, o.order_number, o.status, o.payment_method,
	COALESCE(o.customer_id, ''), COALESCE(c.name, ''),
	o.subtotal, o.discount, COALESCE(o.created_by, ''), o.created_at
`

func (s *Store) ListOrders(ctx context.Context, filter store.OrderFilter) ([]domain.Order, error) {
	if filter.Limit < 1 {
		filter.Limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders o
		LEFT JOIN customers c ON c.id = o.customer_id
		WHERE ($1 = '' OR o.status = $1)
			AND ($2 = '' OR o.customer_id = $2)
		ORDER BY o.created_at DESC
		LIMIT $3
	`, filter.Status, filter.CustomerID, filter.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := make([]domain.Order, 0, filter.Limit)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := s.attachItems(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (s *Store) GetOrderByID(ctx context.Context, id string) (*domain.Order, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders o
		LEFT JOIN customers c ON c.id = o.customer_id
		WHERE o.id = $1
	`, id)

	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	orders := []domain.Order{order}
	if err := s.attachItems(ctx, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (domain.Order, error) {
	var order domain.Order
	err := row.Scan(
		&order.ID,
		&order.OrderNumber,
		&order.Status,
		&order.PaymentMethod,
		&order.CustomerID,
		&order.CustomerName,
		&order.Subtotal,
		&order.Discount,
		&order.CreatedBy,
		&order.CreatedAt,
	)
	if err != nil {
		return domain.Order{}, err
	}
	order.CreatedAt = order.CreatedAt.UTC()
	return order, nil
}

// attachItems loads the line items for the given orders in one query.
func (s *Store) attachItems(ctx context.Context, orders []domain.Order) error {
	if len(orders) == 0 {
		return nil
	}

	orderIDs := make([]string, 0, len(orders))
	index := make(map[string]int, len(orders))
	for i := range orders {
		orderIDs = append(orderIDs, orders[i].ID)
		index[orders[i].ID] = i
		orders[i].Items = []domain.OrderItem{}
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT order_id, product_id, product_name, qty, unit_price
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY id ASC
	`, orderIDs)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var orderID string
		var item domain.OrderItem
		if err := rows.Scan(&orderID, &item.ProductID, &item.ProductName, &item.Quantity, &item.UnitPrice); err != nil {
			return err
		}
		if i, ok := index[orderID]; ok {
			orders[i].Items = append(orders[i].Items, item)
		}
	}
	return rows.Err()
}

func (s *Store) UpdateOrderStatus(ctx context.Context, id string, status string, at time.Time) (*domain.Order, error) {
	if !domain.IsValidOrderStatus(status) {
		return nil, store.ErrInvalidInput
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var current string
	err = tx.QueryRowContext(ctx, `SELECT status FROM orders WHERE id = $1 FOR UPDATE`, id).Scan(&current)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if current == domain.OrderStatusCancelled {
		return nil, store.ErrOrderLocked
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE orders SET status = $2, updated_at = $3 WHERE id = $1
	`, id, status, at.UTC())
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return s.GetOrderByID(ctx, id)
}

func (s *Store) UpdateOrderDetails(ctx context.Context, id string, update domain.OrderDetailsUpdate) (*domain.Order, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var current string
	err = tx.QueryRowContext(ctx, `SELECT status FROM orders WHERE id = $1 FOR UPDATE`, id).Scan(&current)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if current == domain.OrderStatusCancelled {
		return nil, store.ErrOrderLocked
	}

	if update.PaymentMethod != nil {
		if !domain.IsValidPaymentMethod(*update.PaymentMethod) {
			return nil, fmt.Errorf("%w: unknown payment method %q", store.ErrInvalidInput, *update.PaymentMethod)
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE orders SET payment_method = $2, updated_at = now() WHERE id = $1
		`, id, *update.PaymentMethod)
		if err != nil {
			return nil, err
		}
	}

	if update.CustomerID != nil {
		customerID := strings.TrimSpace(*update.CustomerID)
		if customerID == "" {
			// An empty id detaches the customer and makes the order walk-in.
			_, err = tx.ExecContext(ctx, `
				UPDATE orders SET customer_id = NULL, updated_at = now() WHERE id = $1
			`, id)
		} else {
			var exists bool
			err = tx.QueryRowContext(ctx, `SELECT true FROM customers WHERE id = $1`, customerID).Scan(&exists)
			if err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return nil, fmt.Errorf("customer %s: %w", customerID, store.ErrNotFound)
				}
				return nil, err
			}
			_, err = tx.ExecContext(ctx, `
				UPDATE orders SET customer_id = $2, updated_at = now() WHERE id = $1
			`, id, customerID)
		}
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return s.GetOrderByID(ctx, id)
}

func (s *Store) DeleteOrder(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM order_items WHERE order_id = $1`, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}

	return tx.Commit()
}

func (s *Store) CreateAdjustment(ctx context.Context, adjustment domain.OrderAdjustment) (*domain.OrderAdjustment, error) {
	if adjustment.OrderID == "" || len(adjustment.Items) == 0 {
		return nil, store.ErrInvalidInput
	}
	if adjustment.ID == "" {
		adjustment.ID = ids.New("adj")
	}
	if adjustment.CreatedAt.IsZero() {
		adjustment.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO order_adjustments (
			id, order_id, type, adjustment_reason, refund_amount, restock_items, processed_by, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, adjustment.ID, adjustment.OrderID, adjustment.Type, adjustment.AdjustmentReason,
		adjustment.RefundAmount, adjustment.RestockItems, nullIfEmpty(adjustment.ProcessedBy), adjustment.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	for _, line := range adjustment.Items {
		if line.Quantity < 1 {
			return nil, store.ErrInvalidInput
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_adjustment_items (adjustment_id, product_id, qty, unit_price, reason)
			VALUES ($1,$2,$3,$4,$5)
		`, adjustment.ID, line.ProductID, line.Quantity, line.UnitPrice, line.Reason)
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	saved := adjustment
	return &saved, nil
}

func (s *Store) ListAdjustmentsByOrder(ctx context.Context, orderID string) ([]domain.OrderAdjustment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, order_id, type, adjustment_reason, refund_amount, restock_items, COALESCE(processed_by, ''), created_at
		FROM order_adjustments
		WHERE order_id = $1
		ORDER BY created_at ASC
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	adjustments := make([]domain.OrderAdjustment, 0, 4)
	index := make(map[string]int)
	for rows.Next() {
		var adj domain.OrderAdjustment
		if err := rows.Scan(&adj.ID, &adj.OrderID, &adj.Type, &adj.AdjustmentReason, &adj.RefundAmount, &adj.RestockItems, &adj.ProcessedBy, &adj.CreatedAt); err != nil {
			return nil, err
		}
		adj.CreatedAt = adj.CreatedAt.UTC()
		adj.Items = []domain.AdjustmentLine{}
		index[adj.ID] = len(adjustments)
		adjustments = append(adjustments, adj)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(adjustments) == 0 {
		return adjustments, nil
	}

	adjustmentIDs := make([]string, 0, len(adjustments))
	for _, adj := range adjustments {
		adjustmentIDs = append(adjustmentIDs, adj.ID)
	}

	itemRows, err := s.db.QueryContext(ctx, `
		SELECT adjustment_id, product_id, qty, unit_price, reason
		FROM order_adjustment_items
		WHERE adjustment_id = ANY($1)
		ORDER BY id ASC
	`, adjustmentIDs)
	if err != nil {
		return nil, err
	}
	defer itemRows.Close()

	for itemRows.Next() {
		var adjustmentID string
		var line domain.AdjustmentLine
		if err := itemRows.Scan(&adjustmentID, &line.ProductID, &line.Quantity, &line.UnitPrice, &line.Reason); err != nil {
			return nil, err
		}
		if i, ok := index[adjustmentID]; ok {
			adjustments[i].Items = append(adjustments[i].Items, line)
		}
	}
	if err := itemRows.Err(); err != nil {
		return nil, err
	}
	return adjustments, nil
}

func (s *Store) ListCustomers(ctx context.Context, filter domain.CreditCustomerFilter) ([]domain.Customer, error) {
	search := strings.ToLower(strings.TrimSpace(filter.Search))

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, COALESCE(phone, ''), COALESCE(email, ''), type, credit_limit, current_balance, active, created_at
		FROM customers
		WHERE ($1 = '' OR id = $1)
			AND (NOT $2 OR current_balance <> 0)
			AND ($3 = ''
				OR LOWER(name) LIKE '%' || $3 || '%'
				OR LOWER(COALESCE(phone, '')) LIKE '%' || $3 || '%'
				OR LOWER(COALESCE(email, '')) LIKE '%' || $3 || '%')
		ORDER BY LOWER(name) ASC
	`, filter.CustomerID, filter.OnlyWithBalance, search)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	customers := make([]domain.Customer, 0, 32)
	for rows.Next() {
		customer, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		customers = append(customers, customer)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return customers, nil
}

func scanCustomer(row rowScanner) (domain.Customer, error) {
	var customer domain.Customer
	err := row.Scan(
		&customer.ID,
		&customer.Name,
		&customer.Phone,
		&customer.Email,
		&customer.Type,
		&customer.CreditLimit,
		&customer.CurrentBalance,
		&customer.Active,
		&customer.CreatedAt,
	)
	if err != nil {
		return domain.Customer{}, err
	}
	customer.CreatedAt = customer.CreatedAt.UTC()
	return customer, nil
}

func (s *Store) GetCustomerByID(ctx context.Context, id string) (*domain.Customer, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, COALESCE(phone, ''), COALESCE(email, ''), type, credit_limit, current_balance, active, created_at
		FROM customers
		WHERE id = $1
	`, id)

	customer, err := scanCustomer(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &customer, nil
}

func (s *Store) CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	customer.Name = strings.TrimSpace(customer.Name)
	customer.Phone = strings.TrimSpace(customer.Phone)
	if customer.Name == "" {
		return nil, store.ErrInvalidInput
	}
	if customer.ID == "" {
		customer.ID = ids.New("cust")
	}
	if customer.CreatedAt.IsZero() {
		customer.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO customers (id, name, phone, email, type, credit_limit, current_balance, active, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, customer.ID, customer.Name, nullIfEmpty(customer.Phone), nullIfEmpty(customer.Email),
		customer.Type, customer.CreditLimit, customer.CurrentBalance, customer.Active, customer.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidInput
		}
		return nil, err
	}

	saved := customer
	return &saved, nil
}

func (s *Store) AppendTransaction(ctx context.Context, txn domain.LedgerTransaction) (*domain.LedgerTransaction, error) {
	if txn.Amount.IsZero() || txn.CustomerID == "" {
		return nil, store.ErrInvalidInput
	}
	if txn.ID == "" {
		txn.ID = ids.New("txn")
	}
	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var balance decimal.Decimal
	err = tx.QueryRowContext(ctx, `
		SELECT current_balance FROM customers WHERE id = $1 FOR UPDATE
	`, txn.CustomerID).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	txn.BalanceAfter = balance.Add(txn.Amount)

	_, err = tx.ExecContext(ctx, `
		UPDATE customers SET current_balance = $2 WHERE id = $1
	`, txn.CustomerID, txn.BalanceAfter)
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO ledger_transactions (
			id, customer_id, amount, type, method, reference, notes, balance_after, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, txn.ID, txn.CustomerID, txn.Amount, txn.Type, nullIfEmpty(txn.Method),
		nullIfEmpty(txn.Reference), nullIfEmpty(txn.Notes), txn.BalanceAfter, txn.CreatedAt)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	saved := txn
	return &saved, nil
}

func (s *Store) ListTransactionsByCustomer(ctx context.Context, customerID string, limit int, offset int) ([]domain.LedgerTransaction, error) {
	if limit < 1 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, customer_id, amount, type, COALESCE(method, ''), COALESCE(reference, ''), COALESCE(notes, ''), balance_after, created_at
		FROM ledger_transactions
		WHERE customer_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, customerID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	txns := make([]domain.LedgerTransaction, 0, limit)
	for rows.Next() {
		var txn domain.LedgerTransaction
		if err := rows.Scan(&txn.ID, &txn.CustomerID, &txn.Amount, &txn.Type, &txn.Method, &txn.Reference, &txn.Notes, &txn.BalanceAfter, &txn.CreatedAt); err != nil {
			return nil, err
		}
		txn.CreatedAt = txn.CreatedAt.UTC()
		txns = append(txns, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return txns, nil
}

func (s *Store) RecomputeBalance(ctx context.Context, customerID string) (decimal.Decimal, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return decimal.Zero, err
	}
	defer func() { _ = tx.Rollback() }()

	var current decimal.Decimal
	err = tx.QueryRowContext(ctx, `
		SELECT current_balance FROM customers WHERE id = $1 FOR UPDATE
	`, customerID).Scan(&current)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Zero, store.ErrNotFound
		}
		return decimal.Zero, err
	}

	var sum decimal.Decimal
	err = tx.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount), 0)
		FROM ledger_transactions
		WHERE customer_id = $1
	`, customerID).Scan(&sum)
	if err != nil {
		return decimal.Zero, err
	}

	if !current.Equal(sum) {
		_, err = tx.ExecContext(ctx, `
			UPDATE customers SET current_balance = $2 WHERE id = $1
		`, customerID, sum)
		if err != nil {
			return decimal.Zero, err
		}
	}

	if err := tx.Commit(); err != nil {
		return decimal.Zero, err
	}
	return sum, nil
}

func (s *Store) ListCustomerIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM customers ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	customerIDs := make([]string, 0, 64)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		customerIDs = append(customerIDs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return customerIDs, nil
}

func (s *Store) GetStockMap(ctx context.Context, productIDs []string) (map[string]int, error) {
	stockMap := make(map[string]int, len(productIDs))
	if len(productIDs) == 0 {
		return stockMap, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT product_id, qty
		FROM inventory_stocks
		WHERE product_id = ANY($1)
	`, productIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var productID string
		var qty int
		if err := rows.Scan(&productID, &qty); err != nil {
			return nil, err
		}
		stockMap[productID] = qty
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Products with no stock row count as zero on hand.
	for _, productID := range productIDs {
		if _, ok := stockMap[productID]; !ok {
			stockMap[productID] = 0
		}
	}

	return stockMap, nil
}

func (s *Store) IncreaseStock(ctx context.Context, adjustments []domain.StockAdjustment) error {
	if len(adjustments) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, adj := range adjustments {
		if adj.Quantity < 1 {
			continue
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO inventory_stocks (product_id, qty, updated_at)
			VALUES ($1,$2,now())
			ON CONFLICT (product_id)
			DO UPDATE SET qty = inventory_stocks.qty + EXCLUDED.qty, updated_at = now()
		`, adj.ProductID, adj.Quantity)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *Store) DecreaseStock(ctx context.Context, adjustments []domain.StockAdjustment) error {
	if len(adjustments) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	// Every row is checked under lock before any is decremented, so a
	// shortfall on the last item never leaves a partial deduction behind.
	for _, adj := range adjustments {
		if adj.Quantity < 1 {
			continue
		}
		var qty int
		err := tx.QueryRowContext(ctx, `
			SELECT qty FROM inventory_stocks WHERE product_id = $1 FOR UPDATE
		`, adj.ProductID).Scan(&qty)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("product %s: %w", adj.ProductID, store.ErrInsufficientStock)
			}
			return err
		}
		if qty < adj.Quantity {
			return fmt.Errorf("product %s has %d on hand: %w", adj.ProductID, qty, store.ErrInsufficientStock)
		}
	}

	for _, adj := range adjustments {
		if adj.Quantity < 1 {
			continue
		}
		_, err := tx.ExecContext(ctx, `
			UPDATE inventory_stocks
			SET qty = qty - $2, updated_at = now()
			WHERE product_id = $1
		`, adj.ProductID, adj.Quantity)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	if strings.TrimSpace(user.Username) == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidInput
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, password, role, active, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, user.Username, user.Password, user.Role, user.Active, user.CreatedAt)
	if err != nil && isUniqueViolation(err) {
		return store.ErrInvalidInput
	}
	return err
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, active, created_at
		FROM users
		ORDER BY username ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.Username, &user.Password, &user.Role, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		user.CreatedAt = user.CreatedAt.UTC()
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET password = $2 WHERE username = $1
	`, username, password)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = ids.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (
			id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, entry.ID, entry.ActorUsername, entry.ActorRole, entry.Action, entry.EntityType, entry.EntityID, nullIfEmpty(entry.Detail), entry.CreatedAt)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, actor_username, actor_role, action, entity_type, entity_id, COALESCE(detail, ''), created_at
		FROM audit_logs
		WHERE created_at >= $1 AND created_at < $2
		ORDER BY created_at DESC
		LIMIT $3
	`, from.UTC(), to.UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(&entry.ID, &entry.ActorUsername, &entry.ActorRole, &entry.Action, &entry.EntityType, &entry.EntityID, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}

func nullIfEmpty(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
