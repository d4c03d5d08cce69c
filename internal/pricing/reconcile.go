package pricing

// SaleDiscountKind selects how the operator-entered transaction discount is
// interpreted.
type SaleDiscountKind string

const (
	// SaleDiscountAmount treats the value as a flat rupiah amount.
	SaleDiscountAmount SaleDiscountKind = "amount"
	// SaleDiscountPercent treats the value as a percentage of the net subtotal.
	SaleDiscountPercent SaleDiscountKind = "percent"
)

// SaleDiscount is the transaction-level discount input chosen at checkout.
type SaleDiscount struct {
	Kind  SaleDiscountKind `json:"kind"`
	Value float64          `json:"value"`
}

// Totals aggregates the derived cart amounts.
type Totals struct {
	GrossSubtotal      Money `json:"gross_subtotal"`
	ItemDiscountTotal  Money `json:"item_discount_total"`
	NetSubtotal        Money `json:"net_subtotal"`
	SaleDiscountAmount Money `json:"sale_discount_amount"`
	TotalAmount        Money `json:"total_amount"`
}

// Reconcile reprices every non-gift line against the catalog, rebuilds gift
// lines from scratch, and reports whether the result differs materially from
// the input. Lines flagged as manual discounts keep their discount, re-clamped
// to the current line maximum; the evaluator is not consulted for them.
func Reconcile(cart []Line, catalog []Promotion, info GiftInfo) ([]Line, bool) {
	base := make([]Line, 0, len(cart))
	prevGifts := 0
	for _, line := range cart {
		if line.IsGift {
			prevGifts++
			continue
		}
		base = append(base, repriceLine(line, catalog))
	}
	gifts := ResolveGifts(base, catalog, info)
	next := append(base, gifts...)

	changed := len(gifts) != prevGifts
	if !changed {
		rebuilt := 0
		for _, line := range cart {
			if line.IsGift {
				continue
			}
			if !line.samePricing(base[rebuilt]) {
				changed = true
				break
			}
			rebuilt++
		}
	}
	if !changed {
		// Gift counts match; compare the gift lines themselves.
		gi := 0
		for _, line := range cart {
			if !line.IsGift {
				continue
			}
			g := gifts[gi]
			if line.ProductID != g.ProductID || line.Quantity != g.Quantity || !line.samePricing(g) {
				changed = true
				break
			}
			gi++
		}
	}
	return next, changed
}

func repriceLine(line Line, catalog []Promotion) Line {
	if line.IsManualDiscount {
		// Manual overrides survive recomputes; only the clamp bound moves
		// with the current quantity and price.
		line.DiscountAmount = ClampDiscount(Round2(line.DiscountAmount), line.Gross())
		line.AppliedPromotionID = nil
		line.AppliedPromotionName = ""
		return line
	}
	discount, promo := Evaluate(line, catalog)
	line.DiscountAmount = discount
	if promo != nil {
		id := promo.ID
		line.AppliedPromotionID = &id
		line.AppliedPromotionName = promo.Name
	} else {
		line.AppliedPromotionID = nil
		line.AppliedPromotionName = ""
	}
	return line
}

// ComputeTotals derives the payable amounts from a final cart and the
// operator's transaction discount. It is a pure function of its inputs.
func ComputeTotals(lines []Line, saleDiscount SaleDiscount) Totals {
	var gross, itemDiscount Money
	for _, line := range lines {
		if line.Quantity <= 0 {
			continue
		}
		gross += line.Gross()
		itemDiscount += line.DiscountAmount
	}
	gross = Round2(gross)
	itemDiscount = Round2(itemDiscount)
	net := gross - itemDiscount
	if net < 0 {
		net = 0
	}

	var requested Money
	switch saleDiscount.Kind {
	case SaleDiscountPercent:
		percent := saleDiscount.Value
		if percent < 0 {
			percent = 0
		}
		if percent > 100 {
			percent = 100
		}
		requested = net * percent / 100
	default:
		requested = saleDiscount.Value
	}
	applied := ClampDiscount(Round2(requested), net)

	total := net - applied
	if total < 0 {
		total = 0
	}
	return Totals{
		GrossSubtotal:      gross,
		ItemDiscountTotal:  itemDiscount,
		NetSubtotal:        net,
		SaleDiscountAmount: applied,
		TotalAmount:        Round2(total),
	}
}

// CanComplete reports whether a cart is in a state that may be committed:
// at least one line and a positive net subtotal.
func CanComplete(lines []Line) bool {
	if len(lines) == 0 {
		return false
	}
	return ComputeTotals(lines, SaleDiscount{}).NetSubtotal > 0
}
