package pricing

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReconcileAppliesBestPromotionAndGifts(t *testing.T) {
	giftProduct := int64(300)
	catalog := []Promotion{
		{ID: 1, Name: "B2G1", Type: TypeBOGO, BuyQuantity: 2, GetQuantity: 1, IsActive: true},
		{ID: 2, Name: "gratis masker", Type: TypeGiftWithPurchase, BuyQuantity: 5, GiftQuantity: 1, GiftProductID: &giftProduct, ProductIDs: []int64{10}, IsActive: true},
	}
	cart := []Line{{ProductID: 10, Quantity: 6, UnitPrice: 10000}}

	next, changed := Reconcile(cart, catalog, giftLookup(map[int64]Money{300: 2500}))
	require.True(t, changed)
	require.Len(t, next, 2)

	base := next[0]
	require.Equal(t, Money(20000), base.DiscountAmount)
	require.NotNil(t, base.AppliedPromotionID)
	require.Equal(t, int64(1), *base.AppliedPromotionID)
	require.Equal(t, "B2G1", base.AppliedPromotionName)

	gift := next[1]
	require.True(t, gift.IsGift)
	require.Equal(t, int64(300), gift.ProductID)
	require.Equal(t, 1, gift.Quantity)
	require.Equal(t, Money(2500), gift.DiscountAmount)
}

func TestReconcileIdempotent(t *testing.T) {
	giftProduct := int64(300)
	catalog := []Promotion{
		{ID: 1, Type: TypeBuyXDiscountPercent, BuyQuantity: 3, DiscountPercent: 10, IsActive: true},
		{ID: 2, Type: TypeGiftWithPurchase, BuyQuantity: 2, GiftQuantity: 1, GiftProductID: &giftProduct, ProductIDs: []int64{10}, IsActive: true},
	}
	info := giftLookup(map[int64]Money{300: 1500})
	cart := []Line{
		{ProductID: 10, Quantity: 7, UnitPrice: 5000},
		{ProductID: 11, Quantity: 1, UnitPrice: 800},
	}

	first, changed := Reconcile(cart, catalog, info)
	require.True(t, changed)
	second, changed := Reconcile(first, catalog, info)
	require.False(t, changed, "second pass must not drift")
	require.Equal(t, first, second)
}

func TestReconcileReplacesStaleGifts(t *testing.T) {
	giftProduct := int64(300)
	catalog := []Promotion{{
		ID: 2, Type: TypeGiftWithPurchase, BuyQuantity: 4, GiftQuantity: 1,
		GiftProductID: &giftProduct, ProductIDs: []int64{10}, IsActive: true,
	}}
	info := giftLookup(map[int64]Money{300: 1000})

	cart, _ := Reconcile([]Line{{ProductID: 10, Quantity: 8, UnitPrice: 2000}}, catalog, info)
	require.Len(t, cart, 2)
	require.Equal(t, 2, cart[1].Quantity)

	// Quantity drops below one full set: the old gift line must disappear.
	cart[0].Quantity = 3
	next, changed := Reconcile(cart, catalog, info)
	require.True(t, changed)
	require.Len(t, next, 1)
	require.False(t, next[0].IsGift)
}

func TestReconcileManualOverridePrecedence(t *testing.T) {
	catalog := []Promotion{{ID: 1, Type: TypeItemDiscount, DiscountPercent: 50, IsActive: true}}
	cart := []Line{{ProductID: 10, Quantity: 2, UnitPrice: 1000, DiscountAmount: 500, IsManualDiscount: true}}

	next, changed := Reconcile(cart, catalog, nil)
	require.False(t, changed)
	require.Equal(t, Money(500), next[0].DiscountAmount, "manual discount must not be replaced by a better promotion")
	require.Nil(t, next[0].AppliedPromotionID)
}

func TestReconcileManualDiscountShrinksWithQuantity(t *testing.T) {
	cart := []Line{{ProductID: 10, Quantity: 1, UnitPrice: 400, DiscountAmount: 500, IsManualDiscount: true}}
	next, changed := Reconcile(cart, nil, nil)
	require.True(t, changed)
	require.Equal(t, Money(400), next[0].DiscountAmount, "manual discount re-clamps to the current line value")
}

func TestComputeTotalsIdentities(t *testing.T) {
	lines := []Line{
		{ProductID: 1, Quantity: 2, UnitPrice: 10000, DiscountAmount: 5000},
		{ProductID: 2, Quantity: 1, UnitPrice: 3000},
		{ProductID: 3, Quantity: 1, UnitPrice: 2000, DiscountAmount: 2000, IsGift: true},
	}
	totals := ComputeTotals(lines, SaleDiscount{Kind: SaleDiscountAmount, Value: 4000})

	require.Equal(t, Money(25000), totals.GrossSubtotal)
	require.Equal(t, Money(7000), totals.ItemDiscountTotal)
	require.Equal(t, Money(18000), totals.NetSubtotal)
	require.Equal(t, Money(4000), totals.SaleDiscountAmount)
	require.Equal(t, Money(14000), totals.TotalAmount)
}

func TestComputeTotalsPercentRoundingAndClamp(t *testing.T) {
	lines := []Line{{ProductID: 1, Quantity: 3, UnitPrice: 3333}}

	totals := ComputeTotals(lines, SaleDiscount{Kind: SaleDiscountPercent, Value: 12.5})
	require.Equal(t, Money(1249.88), totals.SaleDiscountAmount)
	require.Equal(t, Money(8749.12), totals.TotalAmount)

	// Percent above 100 is bounded; flat discount never exceeds the net.
	totals = ComputeTotals(lines, SaleDiscount{Kind: SaleDiscountPercent, Value: 250})
	require.Equal(t, totals.NetSubtotal, totals.SaleDiscountAmount)
	require.Equal(t, Money(0), totals.TotalAmount)

	totals = ComputeTotals(lines, SaleDiscount{Kind: SaleDiscountAmount, Value: 1_000_000})
	require.Equal(t, totals.NetSubtotal, totals.SaleDiscountAmount)
	require.Equal(t, Money(0), totals.TotalAmount)

	totals = ComputeTotals(lines, SaleDiscount{Kind: SaleDiscountAmount, Value: -50})
	require.Equal(t, Money(0), totals.SaleDiscountAmount)
}

func TestCanComplete(t *testing.T) {
	require.False(t, CanComplete(nil))
	fullyDiscounted := []Line{{ProductID: 1, Quantity: 1, UnitPrice: 1000, DiscountAmount: 1000}}
	require.False(t, CanComplete(fullyDiscounted))
	require.True(t, CanComplete([]Line{{ProductID: 1, Quantity: 1, UnitPrice: 1000}}))
}
