package pricing

// GiftInfo resolves the display name and catalog price of a gift product.
// The second return value reports whether the product exists; unknown gift
// products contribute no gift line.
type GiftInfo func(productID int64) (name string, price Money, ok bool)

// ResolveGifts scans base (non-gift) lines and emits one synthetic gift line
// per triggered gift-with-purchase promotion. Trigger quantities aggregate
// across all qualifying lines. Gift lines are fully discounted so their net
// contribution to the subtotal is zero. The result replaces any gift lines
// from a previous pass in full.
func ResolveGifts(baseLines []Line, catalog []Promotion, info GiftInfo) []Line {
	if info == nil {
		return nil
	}
	var gifts []Line
	for _, promo := range catalog {
		if promo.Type != TypeGiftWithPurchase || !promo.wellFormed() {
			continue
		}
		var triggerQty int
		for _, line := range baseLines {
			if line.IsGift || line.Quantity <= 0 {
				continue
			}
			if promo.AppliesTo(line.ProductID) {
				triggerQty += line.Quantity
			}
		}
		multiplier := triggerQty / promo.BuyQuantity
		if multiplier <= 0 {
			continue
		}
		perSet := promo.GiftQuantity
		if perSet < 1 {
			perSet = 1
		}
		giftQty := multiplier * perSet
		name, price, ok := info(*promo.GiftProductID)
		if !ok {
			continue
		}
		promoID := promo.ID
		gifts = append(gifts, Line{
			ProductID:             *promo.GiftProductID,
			Name:                  name,
			Quantity:              giftQty,
			UnitPrice:             price,
			DiscountAmount:        Round2(price * Money(giftQty)),
			AppliedPromotionID:    &promoID,
			AppliedPromotionName:  promo.Name,
			IsGift:                true,
			GiftSourcePromotionID: &promoID,
		})
	}
	return gifts
}
