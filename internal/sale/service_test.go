package sale

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/apotekgemini/backend-apotek/internal/common"
	"github.com/apotekgemini/backend-apotek/internal/pricing"
)

type fakePromos struct {
	catalog []pricing.Promotion
	err     error
}

func (f fakePromos) LoadActive(context.Context, time.Time) ([]pricing.Promotion, error) {
	return f.catalog, f.err
}

type fakeProducts map[int64]ProductInfo

func (f fakeProducts) ProductInfo(_ context.Context, ids []int64) (map[int64]ProductInfo, error) {
	out := make(map[int64]ProductInfo, len(ids))
	for _, id := range ids {
		if info, ok := f[id]; ok {
			out[id] = info
		}
	}
	return out, nil
}

func quoteService(catalog []pricing.Promotion, products fakeProducts) *Service {
	return NewService(nil, fakePromos{catalog: catalog}, products, zerolog.Nop())
}

type fakeRow struct {
	scan func(dest ...any) error
}

func (r fakeRow) Scan(dest ...any) error { return r.scan(dest...) }

// fakeTx scripts the three statements the commit path issues. Unscripted
// methods come from the embedded interface and panic if reached.
type fakeTx struct {
	pgx.Tx
	stock      map[int64]int
	nextItemID int64
	inserted   []int64
	committed  bool
	rolledBack bool
}

func (t *fakeTx) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	switch {
	case strings.HasPrefix(sql, "INSERT INTO sales "):
		return fakeRow{scan: func(dest ...any) error {
			*(dest[0].(*int64)) = 1
			*(dest[1].(*time.Time)) = time.Now()
			return nil
		}}
	case strings.HasPrefix(sql, "INSERT INTO sale_items "):
		t.nextItemID++
		t.inserted = append(t.inserted, args[1].(int64))
		id := t.nextItemID
		return fakeRow{scan: func(dest ...any) error {
			*(dest[0].(*int64)) = id
			return nil
		}}
	}
	return fakeRow{scan: func(...any) error { return errors.New("unexpected query: " + sql) }}
}

func (t *fakeTx) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if !strings.HasPrefix(sql, "UPDATE products ") {
		return pgconn.CommandTag{}, errors.New("unexpected exec: " + sql)
	}
	qty := args[0].(int)
	id := args[1].(int64)
	if t.stock[id] < qty {
		return pgconn.NewCommandTag("UPDATE 0"), nil
	}
	t.stock[id] -= qty
	return pgconn.NewCommandTag("UPDATE 1"), nil
}

func (t *fakeTx) Commit(context.Context) error { t.committed = true; return nil }

func (t *fakeTx) Rollback(context.Context) error {
	if !t.committed {
		t.rolledBack = true
	}
	return nil
}

type fakeDB struct {
	tx *fakeTx
}

func (f *fakeDB) BeginTx(context.Context, pgx.TxOptions) (pgx.Tx, error) { return f.tx, nil }

func (f *fakeDB) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("not scripted")
}

func (f *fakeDB) QueryRow(context.Context, string, ...any) pgx.Row {
	return fakeRow{scan: func(...any) error { return errors.New("not scripted") }}
}

func TestQuoteAppliesPromotionAndGift(t *testing.T) {
	catalog := []pricing.Promotion{
		{
			ID: 1, Name: "Beli 3 Diskon 10%", Type: pricing.TypeBuyXDiscountPercent,
			BuyQuantity: 3, DiscountPercent: 10, IsActive: true, ProductIDs: []int64{100},
		},
		{
			ID: 2, Name: "Gratis Vitamin", Type: pricing.TypeGiftWithPurchase,
			BuyQuantity: 4, GiftQuantity: 1, IsActive: true,
			ProductIDs: []int64{100}, GiftProductID: ptr(int64(200)),
		},
	}
	products := fakeProducts{
		100: {Name: "Paracetamol", Price: 5000},
		200: {Name: "Vitamin C", Price: 8000},
	}
	svc := quoteService(catalog, products)

	result, err := svc.Quote(context.Background(), QuoteRequest{
		Lines: []pricing.Line{{ProductID: 100, Name: "Paracetamol", Quantity: 4, UnitPrice: 5000}},
	})
	require.NoError(t, err)
	require.True(t, result.Changed)
	require.Len(t, result.Lines, 2)

	base := result.Lines[0]
	require.Equal(t, pricing.Money(1500), base.DiscountAmount)
	require.NotNil(t, base.AppliedPromotionID)
	require.Equal(t, int64(1), *base.AppliedPromotionID)

	gift := result.Lines[1]
	require.True(t, gift.IsGift)
	require.Equal(t, int64(200), gift.ProductID)
	require.Equal(t, pricing.Money(8000), gift.DiscountAmount)

	require.Equal(t, pricing.Money(28000), result.Totals.GrossSubtotal)
	require.Equal(t, pricing.Money(9500), result.Totals.ItemDiscountTotal)
	require.Equal(t, pricing.Money(18500), result.Totals.TotalAmount)
	require.True(t, result.CanComplete)
}

func TestQuoteSaleDiscountClamped(t *testing.T) {
	svc := quoteService(nil, fakeProducts{100: {Name: "Obat", Price: 1000}})

	result, err := svc.Quote(context.Background(), QuoteRequest{
		Lines:        []pricing.Line{{ProductID: 100, Name: "Obat", Quantity: 2, UnitPrice: 1000}},
		SaleDiscount: pricing.SaleDiscount{Kind: pricing.SaleDiscountAmount, Value: 99999},
	})
	require.NoError(t, err)
	require.Equal(t, pricing.Money(2000), result.Totals.SaleDiscountAmount)
	require.Equal(t, pricing.Money(0), result.Totals.TotalAmount)
	require.True(t, result.CanComplete)
}

func TestQuoteRejectsInvalidLines(t *testing.T) {
	svc := quoteService(nil, fakeProducts{})

	cases := []pricing.Line{
		{ProductID: 0, Quantity: 1, UnitPrice: 100},
		{ProductID: 1, Quantity: 0, UnitPrice: 100},
		{ProductID: 1, Quantity: 1, UnitPrice: -1},
	}
	for _, line := range cases {
		_, err := svc.Quote(context.Background(), QuoteRequest{Lines: []pricing.Line{line}})
		require.Error(t, err)
		var appErr *common.AppError
		require.True(t, errors.As(err, &appErr))
		require.Equal(t, "VALIDATION_ERROR", appErr.Code)
	}
}

func TestQuoteEmptyCart(t *testing.T) {
	svc := quoteService(nil, fakeProducts{})
	result, err := svc.Quote(context.Background(), QuoteRequest{})
	require.NoError(t, err)
	require.Empty(t, result.Lines)
	require.False(t, result.CanComplete)
}

func TestQuotePreservesManualDiscount(t *testing.T) {
	catalog := []pricing.Promotion{{
		ID: 1, Name: "Diskon 50%", Type: pricing.TypeItemDiscount,
		DiscountPercent: 50, IsActive: true, ProductIDs: []int64{100},
	}}
	svc := quoteService(catalog, fakeProducts{100: {Name: "Obat", Price: 1000}})

	result, err := svc.Quote(context.Background(), QuoteRequest{
		Lines: []pricing.Line{{
			ProductID: 100, Name: "Obat", Quantity: 1, UnitPrice: 1000,
			DiscountAmount: 200, IsManualDiscount: true,
		}},
	})
	require.NoError(t, err)
	require.False(t, result.Changed)
	require.Equal(t, pricing.Money(200), result.Lines[0].DiscountAmount)
	require.Nil(t, result.Lines[0].AppliedPromotionID)
}

func TestQuoteSkipsInactiveAndExpiredPromotions(t *testing.T) {
	past := time.Now().AddDate(0, 0, -2)
	catalog := []pricing.Promotion{
		{
			ID: 1, Name: "Diskon Kadaluarsa", Type: pricing.TypeItemDiscount,
			DiscountPercent: 50, IsActive: true, ProductIDs: []int64{100}, EndDate: &past,
		},
		{
			ID: 2, Name: "Diskon Nonaktif", Type: pricing.TypeItemDiscount,
			DiscountPercent: 50, IsActive: false, ProductIDs: []int64{100},
		},
	}
	svc := quoteService(catalog, fakeProducts{100: {Name: "Obat", Price: 1000}})

	result, err := svc.Quote(context.Background(), QuoteRequest{
		Lines: []pricing.Line{{ProductID: 100, Quantity: 2, UnitPrice: 1000}},
	})
	require.NoError(t, err)
	require.Equal(t, pricing.Money(0), result.Lines[0].DiscountAmount)
	require.Nil(t, result.Lines[0].AppliedPromotionID)
}

func TestCreateCommitsAndDecrementsStock(t *testing.T) {
	tx := &fakeTx{stock: map[int64]int{100: 10}}
	svc := NewService(&fakeDB{tx: tx}, fakePromos{}, fakeProducts{100: {Name: "Paracetamol", Price: 5000}}, zerolog.Nop())

	detail, err := svc.Create(context.Background(), 7, CreateRequest{
		Lines:         []pricing.Line{{ProductID: 100, Quantity: 3, UnitPrice: 5000}},
		PaymentMethod: "qris",
	})
	require.NoError(t, err)
	require.True(t, tx.committed)
	require.False(t, tx.rolledBack)
	require.Equal(t, 7, tx.stock[100])
	require.Equal(t, 15000.0, detail.TotalAmount)
	require.Equal(t, "qris", detail.PaymentMethod)
	require.Len(t, detail.Items, 1)
	require.Equal(t, "Paracetamol", detail.Items[0].ProductName)
}

func TestCreateInsufficientStockRollsBack(t *testing.T) {
	products := fakeProducts{
		100: {Name: "Paracetamol", Price: 5000},
		101: {Name: "Amoxicillin", Price: 9000},
	}
	tx := &fakeTx{stock: map[int64]int{100: 10, 101: 2}}
	svc := NewService(&fakeDB{tx: tx}, fakePromos{}, products, zerolog.Nop())

	_, err := svc.Create(context.Background(), 1, CreateRequest{
		Lines: []pricing.Line{
			{ProductID: 100, Quantity: 2, UnitPrice: 5000},
			{ProductID: 101, Quantity: 5, UnitPrice: 9000},
		},
	})
	require.Error(t, err)
	var appErr *common.AppError
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, "INSUFFICIENT_STOCK", appErr.Code)
	require.Contains(t, appErr.Message, "Amoxicillin")
	require.Contains(t, appErr.Message, "101")

	// Both item inserts ran inside the tx; rollback must discard them along
	// with the header, and the first line's decrement with it.
	require.Equal(t, []int64{100, 101}, tx.inserted)
	require.False(t, tx.committed)
	require.True(t, tx.rolledBack)
}

func TestDeriveTotals(t *testing.T) {
	subtotal, itemDiscount := deriveTotals([]Item{
		{Quantity: 2, PricePerItem: 5000, DiscountAmount: 1000},
		{Quantity: 1, PricePerItem: 8000, DiscountAmount: 8000, IsGift: true},
	})
	require.Equal(t, 18000.0, subtotal)
	require.Equal(t, 9000.0, itemDiscount)
}

func ptr[T any](v T) *T { return &v }
