package pricing

import (
	"testing"
	"time"
)

func TestEvaluateBOGO(t *testing.T) {
	catalog := []Promotion{{
		ID: 1, Name: "B2G1", Type: TypeBOGO,
		BuyQuantity: 2, GetQuantity: 1, IsActive: true,
	}}

	discount, promo := Evaluate(Line{ProductID: 7, Quantity: 6, UnitPrice: 10000}, catalog)
	if discount != 20000 {
		t.Fatalf("qty 6: expected discount 20000, got %v", discount)
	}
	if promo == nil || promo.ID != 1 {
		t.Fatalf("expected promotion 1 to win, got %+v", promo)
	}

	discount, _ = Evaluate(Line{ProductID: 7, Quantity: 5, UnitPrice: 10000}, catalog)
	if discount != 10000 {
		t.Fatalf("qty 5: expected discount 10000, got %v", discount)
	}

	discount, promo = Evaluate(Line{ProductID: 7, Quantity: 2, UnitPrice: 10000}, catalog)
	if discount != 0 || promo != nil {
		t.Fatalf("qty 2: expected no discount, got %v / %+v", discount, promo)
	}
}

func TestEvaluatePWPPicksLargerOfPercentAndAmount(t *testing.T) {
	percentOnly := []Promotion{{
		ID: 2, Type: TypeBuyXDiscountPercent,
		BuyQuantity: 3, DiscountPercent: 10, IsActive: true,
	}}
	line := Line{ProductID: 1, Quantity: 7, UnitPrice: 5000}

	discount, _ := Evaluate(line, percentOnly)
	if discount != 3000 {
		t.Fatalf("expected percent discount 3000, got %v", discount)
	}

	withAmount := []Promotion{{
		ID: 2, Type: TypeBuyXDiscountPercent,
		BuyQuantity: 3, DiscountPercent: 10, DiscountAmount: 1000, IsActive: true,
	}}
	discount, _ = Evaluate(line, withAmount)
	if discount != 6000 {
		t.Fatalf("expected amount discount 6000 to win, got %v", discount)
	}
}

func TestEvaluateItemDiscountMinimumQuantity(t *testing.T) {
	catalog := []Promotion{{
		ID: 3, Type: TypeItemDiscount,
		BuyQuantity: 5, DiscountPercent: 20, IsActive: true,
	}}

	discount, _ := Evaluate(Line{ProductID: 1, Quantity: 4, UnitPrice: 1000}, catalog)
	if discount != 0 {
		t.Fatalf("below minimum: expected 0, got %v", discount)
	}
	discount, _ = Evaluate(Line{ProductID: 1, Quantity: 5, UnitPrice: 1000}, catalog)
	if discount != 1000 {
		t.Fatalf("at minimum: expected 1000, got %v", discount)
	}
}

func TestEvaluateClampsToLineValue(t *testing.T) {
	catalog := []Promotion{{
		ID: 4, Type: TypeItemDiscount,
		DiscountAmount: 9000, IsActive: true,
	}}
	discount, _ := Evaluate(Line{ProductID: 1, Quantity: 2, UnitPrice: 500}, catalog)
	if discount != 1000 {
		t.Fatalf("expected discount clamped to 1000, got %v", discount)
	}
}

func TestEvaluateTieKeepsCatalogOrder(t *testing.T) {
	catalog := []Promotion{
		{ID: 10, Name: "first", Type: TypeItemDiscount, DiscountPercent: 10, IsActive: true},
		{ID: 11, Name: "second", Type: TypeItemDiscount, DiscountPercent: 10, IsActive: true},
	}
	_, promo := Evaluate(Line{ProductID: 1, Quantity: 1, UnitPrice: 1000}, catalog)
	if promo == nil || promo.ID != 10 {
		t.Fatalf("expected first promotion to win the tie, got %+v", promo)
	}
}

func TestEvaluateSkipsIneligibleAndMalformed(t *testing.T) {
	gift := int64(99)
	catalog := []Promotion{
		// Wrong product set.
		{ID: 1, Type: TypeItemDiscount, DiscountPercent: 50, ProductIDs: []int64{42}, IsActive: true},
		// Zero get-quantity BOGO is misconfigured, not an error.
		{ID: 2, Type: TypeBOGO, BuyQuantity: 2, GetQuantity: 0, IsActive: true},
		// GWP never wins per-line evaluation.
		{ID: 3, Type: TypeGiftWithPurchase, BuyQuantity: 1, GiftProductID: &gift, ProductIDs: []int64{1}, IsActive: true},
	}
	discount, promo := Evaluate(Line{ProductID: 1, Quantity: 10, UnitPrice: 1000}, catalog)
	if discount != 0 || promo != nil {
		t.Fatalf("expected no winner, got %v / %+v", discount, promo)
	}
}

func TestPromotionActiveOn(t *testing.T) {
	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
	promo := Promotion{IsActive: true, StartDate: &start, EndDate: &end}

	if !promo.ActiveOn(time.Date(2026, 8, 31, 23, 59, 0, 0, time.UTC)) {
		t.Fatal("end date should be inclusive")
	}
	if !promo.ActiveOn(start) {
		t.Fatal("start date should be inclusive")
	}
	if promo.ActiveOn(time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatal("day after end date should be excluded")
	}
	promo.IsActive = false
	if promo.ActiveOn(start) {
		t.Fatal("inactive promotion should never be active")
	}

	open := Promotion{IsActive: true}
	if !open.ActiveOn(time.Now()) {
		t.Fatal("promotion without window should always be active")
	}
}
