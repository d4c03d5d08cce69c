package pricing

import "time"

// Promotion types. The enumeration is canonical: no aliases are accepted at
// any boundary.
const (
	TypeBOGO                = "BOGO"
	TypeBuyXDiscountPercent = "BUY_X_DISCOUNT_PERCENT"
	TypeItemDiscount        = "ITEM_DISCOUNT"
	TypeGiftWithPurchase    = "GIFT_WITH_PURCHASE"
)

// Promotion captures one active promotion as loaded from the catalog.
type Promotion struct {
	ID              int64
	Name            string
	Type            string
	BuyQuantity     int
	GetQuantity     int
	DiscountPercent float64
	DiscountAmount  Money
	StartDate       *time.Time
	EndDate         *time.Time
	IsActive        bool
	ProductIDs      []int64
	GiftProductID   *int64
	GiftQuantity    int
}

// ActiveOn reports whether the promotion participates in a pricing pass on
// the given date. Window bounds are inclusive; a nil bound is open-ended.
func (p Promotion) ActiveOn(day time.Time) bool {
	if !p.IsActive {
		return false
	}
	d := truncateToDate(day)
	if p.StartDate != nil && d.Before(truncateToDate(*p.StartDate)) {
		return false
	}
	if p.EndDate != nil && d.After(truncateToDate(*p.EndDate)) {
		return false
	}
	return true
}

// AppliesTo reports whether the product is in the promotion's eligible set.
// An empty set applies to every product.
func (p Promotion) AppliesTo(productID int64) bool {
	if len(p.ProductIDs) == 0 {
		return true
	}
	for _, id := range p.ProductIDs {
		if id == productID {
			return true
		}
	}
	return false
}

// wellFormed reports whether the promotion's parameters make it evaluable.
// Malformed catalog entries are skipped rather than surfaced as errors.
func (p Promotion) wellFormed() bool {
	if p.DiscountPercent < 0 || p.DiscountAmount < 0 {
		return false
	}
	switch p.Type {
	case TypeBOGO:
		return p.BuyQuantity > 0 && p.GetQuantity > 0
	case TypeBuyXDiscountPercent:
		return p.BuyQuantity > 0 && (p.DiscountPercent > 0 || p.DiscountAmount > 0)
	case TypeItemDiscount:
		return p.BuyQuantity >= 0 && (p.DiscountPercent > 0 || p.DiscountAmount > 0)
	case TypeGiftWithPurchase:
		return p.BuyQuantity > 0 && p.GiftProductID != nil && len(p.ProductIDs) > 0
	default:
		return false
	}
}

func truncateToDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
