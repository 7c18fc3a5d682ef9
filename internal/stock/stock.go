// Package stock applies inventory side effects of order lifecycle changes.
// Stock moves when an order crosses the completed boundary: completing an
// order deducts its items, un-completing restores them. Failures here are
// hard failures; callers must abort the surrounding change.
package stock

import (
	"context"

	"dukaanpos/backend/internal/domain"
	"dukaanpos/backend/internal/store"
)

// Adjuster is the slice of the repository the manager needs.
type Adjuster interface {
	IncreaseStock(ctx context.Context, adjustments []domain.StockAdjustment) error
	DecreaseStock(ctx context.Context, adjustments []domain.StockAdjustment) error
}

type Manager struct {
	repo Adjuster
}

func NewManager(repo Adjuster) *Manager {
	return &Manager{repo: repo}
}

// ApplyStatusChange performs the inventory movement implied by a status
// transition. No movement happens unless the completed boundary is crossed.
func (m *Manager) ApplyStatusChange(ctx context.Context, order domain.Order, from string, to string) error {
	switch {
	case from != domain.OrderStatusCompleted && to == domain.OrderStatusCompleted:
		return m.repo.DecreaseStock(ctx, orderAdjustments(order))
	case from == domain.OrderStatusCompleted && to != domain.OrderStatusCompleted:
		return m.repo.IncreaseStock(ctx, orderAdjustments(order))
	default:
		return nil
	}
}

// RestockReturns puts returned quantities back into inventory.
func (m *Manager) RestockReturns(ctx context.Context, lines []domain.AdjustmentLine) error {
	adjustments := make([]domain.StockAdjustment, 0, len(lines))
	for _, line := range lines {
		if line.Quantity < 1 {
			continue
		}
		adjustments = append(adjustments, domain.StockAdjustment{ProductID: line.ProductID, Quantity: line.Quantity})
	}
	if len(adjustments) == 0 {
		return nil
	}
	return m.repo.IncreaseStock(ctx, adjustments)
}

func orderAdjustments(order domain.Order) []domain.StockAdjustment {
	adjustments := make([]domain.StockAdjustment, 0, len(order.Items))
	for _, item := range order.Items {
		adjustments = append(adjustments, domain.StockAdjustment{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return adjustments
}

var _ Adjuster = (store.Repository)(nil)
