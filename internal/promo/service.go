package promo

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/apotekgemini/backend-apotek/internal/common"
	"github.com/apotekgemini/backend-apotek/internal/pricing"
)

// Promotion is the management view of a promotion rule.
type Promotion struct {
	ID              int64      `json:"id"`
	Name            string     `json:"name"`
	Type            string     `json:"type"`
	BuyQuantity     int        `json:"buy_quantity"`
	GetQuantity     int        `json:"get_quantity"`
	DiscountPercent float64    `json:"discount_percent"`
	DiscountAmount  float64    `json:"discount_amount"`
	GiftProductID   *int64     `json:"gift_product_id,omitempty"`
	GiftQuantity    int        `json:"gift_quantity"`
	StartDate       *time.Time `json:"start_date,omitempty"`
	EndDate         *time.Time `json:"end_date,omitempty"`
	IsActive        bool       `json:"is_active"`
	ProductIDs      []int64    `json:"product_ids"`
	CreatedAt       time.Time  `json:"created_at"`
}

// PromotionInput carries create/update payloads.
type PromotionInput struct {
	Name            string     `json:"name" validate:"required"`
	Type            string     `json:"type" validate:"required,oneof=BOGO BUY_X_DISCOUNT_PERCENT ITEM_DISCOUNT GIFT_WITH_PURCHASE"`
	BuyQuantity     int        `json:"buy_quantity" validate:"gte=0"`
	GetQuantity     int        `json:"get_quantity" validate:"gte=0"`
	DiscountPercent float64    `json:"discount_percent" validate:"gte=0,lte=100"`
	DiscountAmount  float64    `json:"discount_amount" validate:"gte=0"`
	GiftProductID   *int64     `json:"gift_product_id"`
	GiftQuantity    int        `json:"gift_quantity" validate:"gte=0"`
	StartDate       *time.Time `json:"start_date"`
	EndDate         *time.Time `json:"end_date"`
	IsActive        *bool      `json:"is_active"`
	ProductIDs      []int64    `json:"product_ids"`
}

// Service manages promotion rules and supplies active rules to the pricing engine.
type Service struct {
	pool     *pgxpool.Pool
	validate *validator.Validate
}

// NewService constructs a Service instance.
func NewService(pool *pgxpool.Pool) *Service {
	return &Service{pool: pool, validate: validator.New(validator.WithRequiredStructEnabled())}
}

const promotionColumns = `id, name, type, buy_quantity, get_quantity, discount_percent, discount_amount, gift_product_id, gift_quantity, start_date, end_date, is_active, created_at`

// List returns all promotions with their product assignments.
func (s *Service) List(ctx context.Context) ([]Promotion, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+promotionColumns+` FROM promotions ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list promotions: %w", err)
	}
	defer rows.Close()

	promos := make([]Promotion, 0)
	for rows.Next() {
		p, err := scanPromotion(rows)
		if err != nil {
			return nil, err
		}
		promos = append(promos, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list promotions: %w", err)
	}
	if err := s.attachProducts(ctx, promos); err != nil {
		return nil, err
	}
	return promos, nil
}

// Get fetches one promotion by primary key.
func (s *Service) Get(ctx context.Context, id int64) (Promotion, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+promotionColumns+` FROM promotions WHERE id = $1`, id)
	p, err := scanPromotion(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Promotion{}, common.NewAppError("NOT_FOUND", "promotion not found", http.StatusNotFound, err)
		}
		return Promotion{}, err
	}
	promos := []Promotion{p}
	if err := s.attachProducts(ctx, promos); err != nil {
		return Promotion{}, err
	}
	return promos[0], nil
}

// Create stores a promotion and its product assignments atomically.
func (s *Service) Create(ctx context.Context, input PromotionInput) (Promotion, error) {
	if err := s.validateInput(input); err != nil {
		return Promotion{}, err
	}
	var created Promotion
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `INSERT INTO promotions (name, type, buy_quantity, get_quantity, discount_percent, discount_amount, gift_product_id, gift_quantity, start_date, end_date, is_active)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
RETURNING `+promotionColumns,
			strings.TrimSpace(input.Name), input.Type, input.BuyQuantity, input.GetQuantity,
			input.DiscountPercent, input.DiscountAmount, input.GiftProductID, giftQuantityOrDefault(input),
			input.StartDate, input.EndDate, isActiveOrDefault(input))
		p, err := scanPromotion(row)
		if err != nil {
			return fmt.Errorf("create promotion: %w", err)
		}
		if err := replaceProducts(ctx, tx, p.ID, input.ProductIDs); err != nil {
			return err
		}
		p.ProductIDs = dedupe(input.ProductIDs)
		created = p
		return nil
	})
	if err != nil {
		return Promotion{}, err
	}
	return created, nil
}

// Update replaces a promotion and its product assignments atomically.
func (s *Service) Update(ctx context.Context, id int64, input PromotionInput) (Promotion, error) {
	if err := s.validateInput(input); err != nil {
		return Promotion{}, err
	}
	var updated Promotion
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `UPDATE promotions
SET name = $2, type = $3, buy_quantity = $4, get_quantity = $5, discount_percent = $6, discount_amount = $7, gift_product_id = $8, gift_quantity = $9, start_date = $10, end_date = $11, is_active = $12
WHERE id = $1
RETURNING `+promotionColumns,
			id, strings.TrimSpace(input.Name), input.Type, input.BuyQuantity, input.GetQuantity,
			input.DiscountPercent, input.DiscountAmount, input.GiftProductID, giftQuantityOrDefault(input),
			input.StartDate, input.EndDate, isActiveOrDefault(input))
		p, err := scanPromotion(row)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return common.NewAppError("NOT_FOUND", "promotion not found", http.StatusNotFound, err)
			}
			return fmt.Errorf("update promotion: %w", err)
		}
		if err := replaceProducts(ctx, tx, p.ID, input.ProductIDs); err != nil {
			return err
		}
		p.ProductIDs = dedupe(input.ProductIDs)
		updated = p
		return nil
	})
	if err != nil {
		return Promotion{}, err
	}
	return updated, nil
}

// Delete removes a promotion. Product assignments cascade.
func (s *Service) Delete(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM promotions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete promotion: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return common.NewAppError("NOT_FOUND", "promotion not found", http.StatusNotFound, nil)
	}
	return nil
}

// LoadActive returns the catalog of promotions active on the given day in
// the engine's representation, ordered by creation so earlier rules win ties.
func (s *Service) LoadActive(ctx context.Context, at time.Time) ([]pricing.Promotion, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+promotionColumns+` FROM promotions
WHERE is_active
  AND (start_date IS NULL OR start_date <= $1::date)
  AND (end_date IS NULL OR end_date >= $1::date)
ORDER BY created_at, id`, at)
	if err != nil {
		return nil, fmt.Errorf("load active promotions: %w", err)
	}
	defer rows.Close()

	promos := make([]Promotion, 0)
	for rows.Next() {
		p, err := scanPromotion(rows)
		if err != nil {
			return nil, err
		}
		promos = append(promos, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load active promotions: %w", err)
	}
	if err := s.attachProducts(ctx, promos); err != nil {
		return nil, err
	}

	out := make([]pricing.Promotion, 0, len(promos))
	for _, p := range promos {
		out = append(out, toEngine(p))
	}
	return out, nil
}

func toEngine(p Promotion) pricing.Promotion {
	return pricing.Promotion{
		ID:              p.ID,
		Name:            p.Name,
		Type:            p.Type,
		BuyQuantity:     p.BuyQuantity,
		GetQuantity:     p.GetQuantity,
		DiscountPercent: p.DiscountPercent,
		DiscountAmount:  p.DiscountAmount,
		StartDate:       p.StartDate,
		EndDate:         p.EndDate,
		IsActive:        p.IsActive,
		ProductIDs:      p.ProductIDs,
		GiftProductID:   p.GiftProductID,
		GiftQuantity:    p.GiftQuantity,
	}
}

func (s *Service) attachProducts(ctx context.Context, promos []Promotion) error {
	if len(promos) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(promos))
	index := make(map[int64]int, len(promos))
	for i := range promos {
		promos[i].ProductIDs = []int64{}
		ids = append(ids, promos[i].ID)
		index[promos[i].ID] = i
	}
	rows, err := s.pool.Query(ctx, `SELECT promotion_id, product_id FROM promotion_products WHERE promotion_id = ANY($1) ORDER BY product_id`, ids)
	if err != nil {
		return fmt.Errorf("load promotion products: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var promoID, productID int64
		if err := rows.Scan(&promoID, &productID); err != nil {
			return err
		}
		if i, ok := index[promoID]; ok {
			promos[i].ProductIDs = append(promos[i].ProductIDs, productID)
		}
	}
	return rows.Err()
}

func replaceProducts(ctx context.Context, tx pgx.Tx, promoID int64, productIDs []int64) error {
	if _, err := tx.Exec(ctx, `DELETE FROM promotion_products WHERE promotion_id = $1`, promoID); err != nil {
		return fmt.Errorf("clear promotion products: %w", err)
	}
	for _, productID := range dedupe(productIDs) {
		if _, err := tx.Exec(ctx, `INSERT INTO promotion_products (promotion_id, product_id) VALUES ($1, $2)`, promoID, productID); err != nil {
			return fmt.Errorf("assign promotion product: %w", err)
		}
	}
	return nil
}

func dedupe(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func giftQuantityOrDefault(input PromotionInput) int {
	if input.GiftQuantity <= 0 {
		return 1
	}
	return input.GiftQuantity
}

func isActiveOrDefault(input PromotionInput) bool {
	if input.IsActive == nil {
		return true
	}
	return *input.IsActive
}

func (s *Service) validateInput(input PromotionInput) error {
	if err := s.validate.Struct(input); err != nil {
		return common.NewAppError("VALIDATION_ERROR", "invalid promotion payload", http.StatusBadRequest, err)
	}
	if err := validateRule(input); err != nil {
		return common.NewAppError("VALIDATION_ERROR", err.Error(), http.StatusBadRequest, nil)
	}
	return nil
}

func validateRule(input PromotionInput) error {
	switch input.Type {
	case pricing.TypeBOGO:
		if input.BuyQuantity <= 0 || input.GetQuantity <= 0 {
			return errors.New("BOGO promotions need buy_quantity and get_quantity above zero")
		}
	case pricing.TypeBuyXDiscountPercent:
		if input.BuyQuantity <= 0 {
			return errors.New("buy-x promotions need buy_quantity above zero")
		}
		if input.DiscountPercent <= 0 && input.DiscountAmount <= 0 {
			return errors.New("buy-x promotions need a discount percent or amount")
		}
	case pricing.TypeItemDiscount:
		if input.DiscountPercent <= 0 && input.DiscountAmount <= 0 {
			return errors.New("item discounts need a discount percent or amount")
		}
	case pricing.TypeGiftWithPurchase:
		if input.BuyQuantity <= 0 {
			return errors.New("gift promotions need buy_quantity above zero")
		}
		if input.GiftProductID == nil {
			return errors.New("gift promotions need a gift_product_id")
		}
		if len(input.ProductIDs) == 0 {
			return errors.New("gift promotions need at least one trigger product")
		}
	}
	if input.StartDate != nil && input.EndDate != nil && input.EndDate.Before(*input.StartDate) {
		return errors.New("end_date must not precede start_date")
	}
	return nil
}

func scanPromotion(row pgx.Row) (Promotion, error) {
	var p Promotion
	err := row.Scan(&p.ID, &p.Name, &p.Type, &p.BuyQuantity, &p.GetQuantity,
		&p.DiscountPercent, &p.DiscountAmount, &p.GiftProductID, &p.GiftQuantity,
		&p.StartDate, &p.EndDate, &p.IsActive, &p.CreatedAt)
	return p, err
}
