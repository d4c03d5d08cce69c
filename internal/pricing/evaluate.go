package pricing

// Evaluate computes the best applicable discount for a single line against
// the catalog. Gift-with-purchase promotions never win here; they are
// resolved across the whole cart by ResolveGifts. Ties keep the first
// promotion in catalog order. A nil promotion means nothing applies.
//
// Evaluate is pure: same inputs always yield the same output.
func Evaluate(line Line, catalog []Promotion) (Money, *Promotion) {
	maxDiscount := line.Gross()
	var best Money
	bestIdx := -1
	for i, promo := range catalog {
		if promo.Type == TypeGiftWithPurchase {
			continue
		}
		if !promo.wellFormed() || !promo.AppliesTo(line.ProductID) {
			continue
		}
		raw := rawDiscount(line, promo)
		clamped := ClampDiscount(Round2(raw), maxDiscount)
		if clamped > best {
			best = clamped
			bestIdx = i
		}
	}
	if bestIdx < 0 || best <= 0 {
		return 0, nil
	}
	winner := catalog[bestIdx]
	return best, &winner
}

func rawDiscount(line Line, promo Promotion) Money {
	switch promo.Type {
	case TypeBOGO:
		setSize := promo.BuyQuantity + promo.GetQuantity
		eligibleSets := line.Quantity / setSize
		freeUnits := eligibleSets * promo.GetQuantity
		return Money(freeUnits) * line.UnitPrice
	case TypeBuyXDiscountPercent:
		groups := line.Quantity / promo.BuyQuantity
		if groups <= 0 {
			return 0
		}
		discountedUnits := groups * promo.BuyQuantity
		percent := Money(discountedUnits) * line.UnitPrice * promo.DiscountPercent / 100
		amount := Money(discountedUnits) * promo.DiscountAmount
		if amount > percent {
			return amount
		}
		return percent
	case TypeItemDiscount:
		// BuyQuantity doubles as the minimum quantity, zero meaning none.
		if promo.BuyQuantity > 0 && line.Quantity < promo.BuyQuantity {
			return 0
		}
		percent := Money(line.Quantity) * line.UnitPrice * promo.DiscountPercent / 100
		amount := promo.DiscountAmount * Money(line.Quantity)
		if amount > percent {
			return amount
		}
		return percent
	default:
		return 0
	}
}
