package pricing

// Line is one cart entry: a product with quantity, unit price, and the
// discount currently attached to it. Gift lines are synthetic and always
// derived; they are never edited directly.
type Line struct {
	ProductID             int64  `json:"product_id"`
	Name                  string `json:"name"`
	Quantity              int    `json:"quantity"`
	UnitPrice             Money  `json:"price_per_item"`
	DiscountAmount        Money  `json:"discount_amount"`
	IsManualDiscount      bool   `json:"is_manual_discount"`
	AppliedPromotionID    *int64 `json:"applied_promotion_id,omitempty"`
	AppliedPromotionName  string `json:"applied_promotion_name,omitempty"`
	IsGift                bool   `json:"is_gift"`
	GiftSourcePromotionID *int64 `json:"gift_source_promotion_id,omitempty"`
}

// Gross returns quantity times unit price.
func (l Line) Gross() Money {
	return Money(l.Quantity) * l.UnitPrice
}

// samePricing compares the fields the reconciler derives, ignoring user-owned
// ones, so redundant cart replacement can be avoided.
func (l Line) samePricing(other Line) bool {
	if l.DiscountAmount != other.DiscountAmount {
		return false
	}
	if l.AppliedPromotionName != other.AppliedPromotionName {
		return false
	}
	if (l.AppliedPromotionID == nil) != (other.AppliedPromotionID == nil) {
		return false
	}
	if l.AppliedPromotionID != nil && *l.AppliedPromotionID != *other.AppliedPromotionID {
		return false
	}
	return true
}
