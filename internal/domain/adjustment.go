package domain

import (
	"errors"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrNothingToReturn  = errors.New("no items with a return quantity")
	ErrUnknownDraftItem = errors.New("item not part of the order")
)

// DefaultAdjustmentNote is used when the operator leaves the note empty.
const DefaultAdjustmentNote = "Order adjustment - items returned after completion"

// DefaultReturnReason is attached to a line when no per-item reason is given.
const DefaultReturnReason = "customer_request"

// AdjustmentDraftItem mirrors one original line item plus the requested
// return quantity. ReturnQuantity is only ever mutated through the draft
// methods, which clamp it into [0, OriginalQuantity].
type AdjustmentDraftItem struct {
	ProductID        string          `json:"product_id"`
	ProductName      string          `json:"product_name"`
	OriginalQuantity int             `json:"original_quantity"`
	ReturnQuantity   int             `json:"return_quantity"`
	UnitPrice        decimal.Decimal `json:"unit_price"`
	Reason           string          `json:"reason"`
}

// AdjustmentDraft is the editable return request for one order. It is
// built from the order's line items with all return quantities at zero.
type AdjustmentDraft struct {
	OrderID string
	Items   []AdjustmentDraftItem
	Notes   string
}

func NewAdjustmentDraft(order Order) *AdjustmentDraft {
	items := make([]AdjustmentDraftItem, 0, len(order.Items))
	for _, line := range order.Items {
		items = append(items, AdjustmentDraftItem{
			ProductID:        line.ProductID,
			ProductName:      line.ProductName,
			OriginalQuantity: line.Quantity,
			ReturnQuantity:   0,
			UnitPrice:        line.UnitPrice,
		})
	}
	return &AdjustmentDraft{OrderID: order.ID, Items: items}
}

func (d *AdjustmentDraft) find(productID string) *AdjustmentDraftItem {
	for i := range d.Items {
		if d.Items[i].ProductID == productID {
			return &d.Items[i]
		}
	}
	return nil
}

// SetReturnQuantity clamps the requested quantity into the valid range.
func (d *AdjustmentDraft) SetReturnQuantity(productID string, qty int) error {
	item := d.find(productID)
	if item == nil {
		return ErrUnknownDraftItem
	}
	item.ReturnQuantity = clampQuantity(qty, item.OriginalQuantity)
	return nil
}

// SetReturnQuantityText accepts raw operator input. Unparseable input
// coerces to zero; out-of-range values snap to the nearest bound.
func (d *AdjustmentDraft) SetReturnQuantityText(productID string, raw string) error {
	qty, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		qty = 0
	}
	return d.SetReturnQuantity(productID, qty)
}

func (d *AdjustmentDraft) Increment(productID string) error {
	item := d.find(productID)
	if item == nil {
		return ErrUnknownDraftItem
	}
	item.ReturnQuantity = clampQuantity(item.ReturnQuantity+1, item.OriginalQuantity)
	return nil
}

func (d *AdjustmentDraft) Decrement(productID string) error {
	item := d.find(productID)
	if item == nil {
		return ErrUnknownDraftItem
	}
	item.ReturnQuantity = clampQuantity(item.ReturnQuantity-1, item.OriginalQuantity)
	return nil
}

func (d *AdjustmentDraft) SetReason(productID string, reason string) error {
	item := d.find(productID)
	if item == nil {
		return ErrUnknownDraftItem
	}
	item.Reason = strings.TrimSpace(reason)
	return nil
}

// RefundAmount sums returnQty x unitPrice over items with a positive
// return quantity.
func (d *AdjustmentDraft) RefundAmount() decimal.Decimal {
	total := decimal.Zero
	for _, item := range d.Items {
		if item.ReturnQuantity < 1 {
			continue
		}
		total = total.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.ReturnQuantity))))
	}
	return total
}

// Build produces the submittable adjustment. It fails locally when no item
// carries a positive return quantity, so no network call is ever made for
// an empty return. The result always restocks.
func (d *AdjustmentDraft) Build() (OrderAdjustment, error) {
	lines := make([]AdjustmentLine, 0, len(d.Items))
	for _, item := range d.Items {
		if item.ReturnQuantity < 1 {
			continue
		}
		reason := item.Reason
		if reason == "" {
			reason = DefaultReturnReason
		}
		lines = append(lines, AdjustmentLine{
			ProductID: item.ProductID,
			Quantity:  item.ReturnQuantity,
			UnitPrice: item.UnitPrice,
			Reason:    reason,
		})
	}
	if len(lines) == 0 {
		return OrderAdjustment{}, ErrNothingToReturn
	}

	notes := strings.TrimSpace(d.Notes)
	if notes == "" {
		notes = DefaultAdjustmentNote
	}

	return OrderAdjustment{
		OrderID:          d.OrderID,
		Type:             "return",
		Items:            lines,
		AdjustmentReason: notes,
		RefundAmount:     d.RefundAmount(),
		RestockItems:     true,
	}, nil
}

func clampQuantity(qty int, max int) int {
	if qty < 0 {
		return 0
	}
	if qty > max {
		return max
	}
	return qty
}
