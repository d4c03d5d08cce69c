package promo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/apotekgemini/backend-apotek/internal/pricing"
)

func TestValidateRulePerType(t *testing.T) {
	giftID := int64(9)

	cases := []struct {
		name    string
		input   PromotionInput
		wantErr bool
	}{
		{
			name:  "bogo ok",
			input: PromotionInput{Name: "B1G1", Type: pricing.TypeBOGO, BuyQuantity: 1, GetQuantity: 1},
		},
		{
			name:    "bogo missing get",
			input:   PromotionInput{Name: "B1G0", Type: pricing.TypeBOGO, BuyQuantity: 1},
			wantErr: true,
		},
		{
			name:  "buy-x percent ok",
			input: PromotionInput{Name: "3 plus 10", Type: pricing.TypeBuyXDiscountPercent, BuyQuantity: 3, DiscountPercent: 10},
		},
		{
			name:    "buy-x without discount",
			input:   PromotionInput{Name: "3 plus 0", Type: pricing.TypeBuyXDiscountPercent, BuyQuantity: 3},
			wantErr: true,
		},
		{
			name:  "item discount amount only",
			input: PromotionInput{Name: "Potongan", Type: pricing.TypeItemDiscount, DiscountAmount: 500},
		},
		{
			name:    "item discount empty",
			input:   PromotionInput{Name: "Kosong", Type: pricing.TypeItemDiscount},
			wantErr: true,
		},
		{
			name: "gift ok",
			input: PromotionInput{
				Name: "Vit C Gratis", Type: pricing.TypeGiftWithPurchase,
				BuyQuantity: 4, GiftProductID: &giftID, ProductIDs: []int64{1, 2},
			},
		},
		{
			name: "gift without trigger products",
			input: PromotionInput{
				Name: "Vit C Gratis", Type: pricing.TypeGiftWithPurchase,
				BuyQuantity: 4, GiftProductID: &giftID,
			},
			wantErr: true,
		},
		{
			name: "gift without gift product",
			input: PromotionInput{
				Name: "Vit C Gratis", Type: pricing.TypeGiftWithPurchase,
				BuyQuantity: 4, ProductIDs: []int64{1},
			},
			wantErr: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := validateRule(tc.input)
			if tc.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestValidateRuleDateOrder(t *testing.T) {
	start := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, -1)
	err := validateRule(PromotionInput{
		Name: "Mundur", Type: pricing.TypeItemDiscount, DiscountAmount: 100,
		StartDate: &start, EndDate: &end,
	})
	require.Error(t, err)
}

func TestToEngineMapping(t *testing.T) {
	giftID := int64(4)
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	p := Promotion{
		ID: 7, Name: "Paket", Type: pricing.TypeGiftWithPurchase,
		BuyQuantity: 4, GiftProductID: &giftID, GiftQuantity: 2,
		StartDate: &start, IsActive: true, ProductIDs: []int64{1, 2},
	}
	engine := toEngine(p)
	require.Equal(t, p.ID, engine.ID)
	require.Equal(t, p.Type, engine.Type)
	require.Equal(t, p.ProductIDs, engine.ProductIDs)
	require.Equal(t, giftID, *engine.GiftProductID)
	require.Equal(t, 2, engine.GiftQuantity)
	require.True(t, engine.ActiveOn(time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)))
}
