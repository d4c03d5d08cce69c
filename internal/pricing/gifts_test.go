package pricing

import "testing"

func giftLookup(prices map[int64]Money) GiftInfo {
	return func(id int64) (string, Money, bool) {
		price, ok := prices[id]
		return "gift", price, ok
	}
}

func TestResolveGiftsMultiplier(t *testing.T) {
	giftProduct := int64(200)
	catalog := []Promotion{{
		ID: 5, Name: "gratis vitamin", Type: TypeGiftWithPurchase,
		BuyQuantity: 4, GiftQuantity: 1, GiftProductID: &giftProduct,
		ProductIDs: []int64{100}, IsActive: true,
	}}
	lines := []Line{{ProductID: 100, Quantity: 9, UnitPrice: 12000}}

	gifts := ResolveGifts(lines, catalog, giftLookup(map[int64]Money{200: 3000}))
	if len(gifts) != 1 {
		t.Fatalf("expected 1 gift line, got %d", len(gifts))
	}
	g := gifts[0]
	if g.ProductID != 200 || g.Quantity != 2 {
		t.Fatalf("expected 2 units of product 200, got %+v", g)
	}
	if g.DiscountAmount != 6000 || g.UnitPrice != 3000 {
		t.Fatalf("gift must be fully discounted: %+v", g)
	}
	if !g.IsGift || g.GiftSourcePromotionID == nil || *g.GiftSourcePromotionID != 5 {
		t.Fatalf("gift provenance missing: %+v", g)
	}
	if g.Gross()-g.DiscountAmount != 0 {
		t.Fatalf("gift net contribution must be zero, got %v", g.Gross()-g.DiscountAmount)
	}
}

func TestResolveGiftsAggregatesAcrossLines(t *testing.T) {
	giftProduct := int64(200)
	catalog := []Promotion{{
		ID: 5, Type: TypeGiftWithPurchase,
		BuyQuantity: 4, GiftQuantity: 2, GiftProductID: &giftProduct,
		ProductIDs: []int64{100, 101}, IsActive: true,
	}}
	lines := []Line{
		{ProductID: 100, Quantity: 3, UnitPrice: 1000},
		{ProductID: 101, Quantity: 5, UnitPrice: 2000},
		{ProductID: 102, Quantity: 50, UnitPrice: 100}, // outside trigger set
	}
	gifts := ResolveGifts(lines, catalog, giftLookup(map[int64]Money{200: 500}))
	if len(gifts) != 1 || gifts[0].Quantity != 4 {
		t.Fatalf("expected one gift line of qty 4 (2 sets x 2), got %+v", gifts)
	}
}

func TestResolveGiftsBelowThresholdAndUnknownProduct(t *testing.T) {
	giftProduct := int64(200)
	missing := int64(999)
	catalog := []Promotion{
		{ID: 1, Type: TypeGiftWithPurchase, BuyQuantity: 10, GiftProductID: &giftProduct, ProductIDs: []int64{100}, IsActive: true},
		{ID: 2, Type: TypeGiftWithPurchase, BuyQuantity: 1, GiftProductID: &missing, ProductIDs: []int64{100}, IsActive: true},
	}
	lines := []Line{{ProductID: 100, Quantity: 5, UnitPrice: 1000}}
	gifts := ResolveGifts(lines, catalog, giftLookup(map[int64]Money{200: 500}))
	if len(gifts) != 0 {
		t.Fatalf("expected no gifts, got %+v", gifts)
	}
}

func TestResolveGiftsIgnoresGiftLinesAsTriggers(t *testing.T) {
	giftProduct := int64(200)
	catalog := []Promotion{{
		ID: 1, Type: TypeGiftWithPurchase,
		BuyQuantity: 2, GiftProductID: &giftProduct, ProductIDs: []int64{200}, IsActive: true,
	}}
	src := int64(1)
	lines := []Line{{ProductID: 200, Quantity: 4, UnitPrice: 500, IsGift: true, GiftSourcePromotionID: &src}}
	gifts := ResolveGifts(lines, catalog, giftLookup(map[int64]Money{200: 500}))
	if len(gifts) != 0 {
		t.Fatalf("gift lines must not trigger further gifts, got %+v", gifts)
	}
}
