package sale

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/apotekgemini/backend-apotek/internal/common"
	"github.com/apotekgemini/backend-apotek/internal/obs"
	"github.com/apotekgemini/backend-apotek/internal/pricing"
)

// DB is the querying surface the service needs; *pgxpool.Pool satisfies it.
type DB interface {
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PromotionSource supplies the promotion catalog active on a given day.
type PromotionSource interface {
	LoadActive(ctx context.Context, at time.Time) ([]pricing.Promotion, error)
}

// ProductInfo is the subset of product data the pricing engine needs.
type ProductInfo struct {
	Name  string
	Price float64
}

// ProductInfoSource resolves product names and prices by ID.
type ProductInfoSource interface {
	ProductInfo(ctx context.Context, ids []int64) (map[int64]ProductInfo, error)
}

// QuoteRequest is a cart snapshot to be repriced.
type QuoteRequest struct {
	Lines        []pricing.Line       `json:"lines"`
	SaleDiscount pricing.SaleDiscount `json:"sale_discount"`
}

// QuoteResult is the repriced cart with reconciled gifts and totals.
type QuoteResult struct {
	Lines       []pricing.Line `json:"lines"`
	Changed     bool           `json:"changed"`
	Totals      pricing.Totals `json:"totals"`
	CanComplete bool           `json:"can_complete"`
}

// CreateRequest is a checkout submission.
type CreateRequest struct {
	Lines         []pricing.Line       `json:"lines"`
	SaleDiscount  pricing.SaleDiscount `json:"sale_discount"`
	PaymentMethod string               `json:"payment_method"`
}

// Sale is a persisted sale header.
type Sale struct {
	ID             int64     `json:"id"`
	UserID         *int64    `json:"user_id,omitempty"`
	TotalAmount    float64   `json:"total_amount"`
	DiscountAmount float64   `json:"discount_amount"`
	PaymentMethod  string    `json:"payment_method"`
	CreatedAt      time.Time `json:"created_at"`
}

// Item is a persisted sale line.
type Item struct {
	ID                 int64   `json:"id"`
	ProductID          int64   `json:"product_id"`
	ProductName        string  `json:"product_name"`
	Quantity           int     `json:"quantity"`
	PricePerItem       float64 `json:"price_per_item"`
	DiscountAmount     float64 `json:"discount_amount"`
	AppliedPromotionID *int64  `json:"applied_promotion_id,omitempty"`
	IsGift             bool    `json:"is_gift"`
}

// Detail is a sale with its lines and derived subtotals.
type Detail struct {
	Sale
	Items             []Item  `json:"items"`
	SubtotalAmount    float64 `json:"subtotal_amount"`
	ItemDiscountTotal float64 `json:"item_discount_total"`
}

// Service prices carts and commits sales with guarded stock decrements.
type Service struct {
	pool     DB
	promos   PromotionSource
	products ProductInfoSource
	now      func() time.Time
	log      zerolog.Logger
}

// NewService constructs a sale service.
func NewService(pool DB, promos PromotionSource, products ProductInfoSource, log zerolog.Logger) *Service {
	return &Service{pool: pool, promos: promos, products: products, now: time.Now, log: log}
}

// WithNow allows tests to override the time provider.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Quote reprices the submitted cart against the active promotion catalog,
// rebuilds gift lines, and computes totals. It never touches stock.
func (s *Service) Quote(ctx context.Context, req QuoteRequest) (QuoteResult, error) {
	if err := validateLines(req.Lines, true); err != nil {
		return QuoteResult{}, err
	}
	catalog, err := s.promos.LoadActive(ctx, s.now())
	if err != nil {
		return QuoteResult{}, err
	}
	catalog = activeOn(catalog, s.now())
	infos, err := s.productInfos(ctx, req.Lines, catalog)
	if err != nil {
		return QuoteResult{}, err
	}

	lines, changed := pricing.Reconcile(req.Lines, catalog, giftInfo(infos))
	for i := range lines {
		if p, ok := infos[lines[i].ProductID]; ok {
			lines[i].Name = p.Name
		}
	}
	totals := pricing.ComputeTotals(lines, req.SaleDiscount)

	if obs.PromotionAppliedTotal != nil {
		types := promotionTypes(catalog)
		for _, line := range lines {
			if line.AppliedPromotionID != nil && !line.IsManualDiscount {
				if t, ok := types[*line.AppliedPromotionID]; ok {
					obs.PromotionAppliedTotal.WithLabelValues(t).Inc()
				}
			}
		}
	}

	return QuoteResult{
		Lines:       lines,
		Changed:     changed,
		Totals:      totals,
		CanComplete: pricing.CanComplete(lines),
	}, nil
}

// Create reprices the cart server side and commits it atomically. Stock is
// decremented with a guarded update per line; any shortfall rolls back the
// whole sale and reports the offending product.
func (s *Service) Create(ctx context.Context, userID int64, req CreateRequest) (Detail, error) {
	quote, err := s.Quote(ctx, QuoteRequest{Lines: req.Lines, SaleDiscount: req.SaleDiscount})
	if err != nil {
		rejected("quote_failed")
		return Detail{}, err
	}
	if !quote.CanComplete {
		rejected("empty_or_zero_total")
		return Detail{}, common.NewAppError("VALIDATION_ERROR", "sale has no payable total", http.StatusBadRequest, nil)
	}

	payment := strings.TrimSpace(req.PaymentMethod)
	if payment == "" {
		payment = "cash"
	}

	var detail Detail
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return Detail{}, fmt.Errorf("begin sale tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	header := Sale{
		TotalAmount:    quote.Totals.TotalAmount,
		DiscountAmount: quote.Totals.SaleDiscountAmount,
		PaymentMethod:  payment,
	}
	err = tx.QueryRow(ctx, `INSERT INTO sales (user_id, total_amount, discount_amount, payment_method)
VALUES ($1, $2, $3, $4)
RETURNING id, created_at`,
		nullableID(userID), header.TotalAmount, header.DiscountAmount, header.PaymentMethod).
		Scan(&header.ID, &header.CreatedAt)
	if err != nil {
		return Detail{}, fmt.Errorf("insert sale: %w", err)
	}
	if userID > 0 {
		header.UserID = &userID
	}

	items := make([]Item, 0, len(quote.Lines))
	for _, line := range quote.Lines {
		var itemID int64
		err = tx.QueryRow(ctx, `INSERT INTO sale_items (sale_id, product_id, quantity, price_per_item, discount_amount, applied_promotion_id, is_gift)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id`,
			header.ID, line.ProductID, line.Quantity, line.UnitPrice, line.DiscountAmount,
			line.AppliedPromotionID, line.IsGift).
			Scan(&itemID)
		if err != nil {
			return Detail{}, fmt.Errorf("insert sale item: %w", err)
		}

		tag, err := tx.Exec(ctx, `UPDATE products SET stock_quantity = stock_quantity - $1, updated_at = now()
WHERE id = $2 AND stock_quantity >= $1`, line.Quantity, line.ProductID)
		if err != nil {
			return Detail{}, fmt.Errorf("decrement stock: %w", err)
		}
		if tag.RowsAffected() == 0 {
			rejected("insufficient_stock")
			msg := fmt.Sprintf("insufficient stock for product %d", line.ProductID)
			if line.Name != "" {
				msg = fmt.Sprintf("insufficient stock for %q (product %d)", line.Name, line.ProductID)
			}
			return Detail{}, common.NewAppError("INSUFFICIENT_STOCK", msg, http.StatusConflict, nil)
		}

		items = append(items, Item{
			ID:                 itemID,
			ProductID:          line.ProductID,
			ProductName:        line.Name,
			Quantity:           line.Quantity,
			PricePerItem:       line.UnitPrice,
			DiscountAmount:     line.DiscountAmount,
			AppliedPromotionID: line.AppliedPromotionID,
			IsGift:             line.IsGift,
		})
	}

	if err := tx.Commit(ctx); err != nil {
		return Detail{}, fmt.Errorf("commit sale: %w", err)
	}
	if obs.SalesCommittedTotal != nil {
		obs.SalesCommittedTotal.Inc()
	}
	s.log.Info().Int64("sale_id", header.ID).Float64("total", header.TotalAmount).Msg("sale committed")

	detail = Detail{Sale: header, Items: items}
	detail.SubtotalAmount, detail.ItemDiscountTotal = deriveTotals(items)
	return detail, nil
}

// Get fetches a sale and its items.
func (s *Service) Get(ctx context.Context, id int64) (Detail, error) {
	var d Detail
	err := s.pool.QueryRow(ctx, `SELECT id, user_id, total_amount, discount_amount, payment_method, created_at
FROM sales WHERE id = $1`, id).
		Scan(&d.ID, &d.UserID, &d.TotalAmount, &d.DiscountAmount, &d.PaymentMethod, &d.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Detail{}, common.NewAppError("NOT_FOUND", "sale not found", http.StatusNotFound, err)
		}
		return Detail{}, fmt.Errorf("get sale: %w", err)
	}

	rows, err := s.pool.Query(ctx, `SELECT si.id, si.product_id, p.name, si.quantity, si.price_per_item, si.discount_amount, si.applied_promotion_id, si.is_gift
FROM sale_items si
JOIN products p ON p.id = si.product_id
WHERE si.sale_id = $1
ORDER BY si.id`, id)
	if err != nil {
		return Detail{}, fmt.Errorf("get sale items: %w", err)
	}
	defer rows.Close()

	d.Items = make([]Item, 0)
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.ProductID, &it.ProductName, &it.Quantity, &it.PricePerItem,
			&it.DiscountAmount, &it.AppliedPromotionID, &it.IsGift); err != nil {
			return Detail{}, err
		}
		d.Items = append(d.Items, it)
	}
	if err := rows.Err(); err != nil {
		return Detail{}, fmt.Errorf("get sale items: %w", err)
	}
	d.SubtotalAmount, d.ItemDiscountTotal = deriveTotals(d.Items)
	return d, nil
}

// List returns sale headers, newest first.
func (s *Service) List(ctx context.Context) ([]Sale, error) {
	return s.listWhere(ctx, "", nil)
}

// ListToday returns today's sale headers.
func (s *Service) ListToday(ctx context.Context) ([]Sale, error) {
	return s.listWhere(ctx, "WHERE created_at::date = $1::date", []any{s.now()})
}

func (s *Service) listWhere(ctx context.Context, where string, args []any) ([]Sale, error) {
	q := `SELECT id, user_id, total_amount, discount_amount, payment_method, created_at FROM sales `
	q += where + ` ORDER BY created_at DESC`
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list sales: %w", err)
	}
	defer rows.Close()

	sales := make([]Sale, 0)
	for rows.Next() {
		var sa Sale
		if err := rows.Scan(&sa.ID, &sa.UserID, &sa.TotalAmount, &sa.DiscountAmount, &sa.PaymentMethod, &sa.CreatedAt); err != nil {
			return nil, err
		}
		sales = append(sales, sa)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list sales: %w", err)
	}
	return sales, nil
}

// activeOn re-checks the promotion window through the engine's own rule so
// catalog loaders and the evaluator agree on inclusivity.
func activeOn(catalog []pricing.Promotion, at time.Time) []pricing.Promotion {
	out := make([]pricing.Promotion, 0, len(catalog))
	for _, p := range catalog {
		if p.ActiveOn(at) {
			out = append(out, p)
		}
	}
	return out
}

func (s *Service) productInfos(ctx context.Context, lines []pricing.Line, catalog []pricing.Promotion) (map[int64]ProductInfo, error) {
	idSet := make(map[int64]struct{})
	for _, line := range lines {
		idSet[line.ProductID] = struct{}{}
	}
	for _, promo := range catalog {
		if promo.GiftProductID != nil {
			idSet[*promo.GiftProductID] = struct{}{}
		}
	}
	ids := make([]int64, 0, len(idSet))
	for id := range idSet {
		ids = append(ids, id)
	}
	return s.products.ProductInfo(ctx, ids)
}

func giftInfo(infos map[int64]ProductInfo) pricing.GiftInfo {
	return func(productID int64) (string, pricing.Money, bool) {
		info, ok := infos[productID]
		if !ok {
			return "", 0, false
		}
		return info.Name, info.Price, true
	}
}

func validateLines(lines []pricing.Line, allowEmpty bool) error {
	if len(lines) == 0 && !allowEmpty {
		return common.NewAppError("VALIDATION_ERROR", "sale needs at least one line", http.StatusBadRequest, nil)
	}
	for _, line := range lines {
		if line.ProductID <= 0 {
			return common.NewAppError("VALIDATION_ERROR", "line product_id must be positive", http.StatusBadRequest, nil)
		}
		if line.Quantity <= 0 {
			return common.NewAppError("VALIDATION_ERROR", "line quantity must be positive", http.StatusBadRequest, nil)
		}
		if line.UnitPrice < 0 {
			return common.NewAppError("VALIDATION_ERROR", "line price must not be negative", http.StatusBadRequest, nil)
		}
	}
	return nil
}

func promotionTypes(catalog []pricing.Promotion) map[int64]string {
	types := make(map[int64]string, len(catalog))
	for _, promo := range catalog {
		types[promo.ID] = promo.Type
	}
	return types
}

func deriveTotals(items []Item) (subtotal, itemDiscount float64) {
	for _, it := range items {
		subtotal += float64(it.Quantity) * it.PricePerItem
		itemDiscount += it.DiscountAmount
	}
	return pricing.Round2(subtotal), pricing.Round2(itemDiscount)
}

func nullableID(id int64) *int64 {
	if id <= 0 {
		return nil
	}
	return &id
}

func rejected(reason string) {
	if obs.SalesRejectedTotal != nil {
		obs.SalesRejectedTotal.WithLabelValues(reason).Inc()
	}
}
