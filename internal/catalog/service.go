package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/apotekgemini/backend-apotek/internal/common"
	"github.com/apotekgemini/backend-apotek/internal/sale"
)

const listCacheKey = "catalog:products:all"

// Product is the inventory model exposed to clients.
type Product struct {
	ID            int64      `json:"id"`
	SKU           string     `json:"sku"`
	Name          string     `json:"name"`
	Description   string     `json:"description"`
	Category      string     `json:"category"`
	Price         float64    `json:"price"`
	StockQuantity int        `json:"stock_quantity"`
	ExpiryDate    *time.Time `json:"expiry_date,omitempty"`
	Supplier      string     `json:"supplier"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// ProductInput carries create/update payloads.
type ProductInput struct {
	SKU           string     `json:"sku" validate:"required"`
	Name          string     `json:"name" validate:"required"`
	Description   string     `json:"description"`
	Category      string     `json:"category"`
	Price         float64    `json:"price" validate:"gte=0"`
	StockQuantity int        `json:"stock_quantity" validate:"gte=0"`
	ExpiryDate    *time.Time `json:"expiry_date"`
	Supplier      string     `json:"supplier"`
}

// Service orchestrates product queries, validation, and caching.
type Service struct {
	pool     *pgxpool.Pool
	cache    *Cache
	validate *validator.Validate
	log      zerolog.Logger
}

// NewService constructs a Service instance.
func NewService(pool *pgxpool.Pool, cache *Cache, log zerolog.Logger) *Service {
	return &Service{
		pool:     pool,
		cache:    cache,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		log:      log,
	}
}

const productColumns = `id, sku, name, description, category, price, stock_quantity, expiry_date, supplier, created_at, updated_at`

// List returns products, optionally filtered by a name or SKU search term.
// The unfiltered listing is served from cache when available.
func (s *Service) List(ctx context.Context, query string) ([]Product, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		var cached []Product
		if ok, err := s.cache.GetJSON(ctx, listCacheKey, &cached); err != nil {
			s.log.Warn().Err(err).Msg("product list cache read failed")
		} else if ok {
			return cached, nil
		}
	}

	sql := `SELECT ` + productColumns + ` FROM products ORDER BY name`
	args := []any{}
	if query != "" {
		sql = `SELECT ` + productColumns + ` FROM products
WHERE name ILIKE '%' || $1 || '%' OR sku ILIKE '%' || $1 || '%'
ORDER BY name`
		args = append(args, query)
	}

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products := make([]Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}

	if query == "" {
		if err := s.cache.SetJSON(ctx, listCacheKey, products); err != nil {
			s.log.Warn().Err(err).Msg("product list cache write failed")
		}
	}
	return products, nil
}

// Get fetches one product by primary key.
func (s *Service) Get(ctx context.Context, id int64) (Product, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, common.NewAppError("NOT_FOUND", "product not found", http.StatusNotFound, err)
		}
		return Product{}, err
	}
	return p, nil
}

// GetBySKU fetches one product by its SKU, used by barcode scans at the register.
func (s *Service) GetBySKU(ctx context.Context, sku string) (Product, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE sku = $1`, strings.TrimSpace(sku))
	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, common.NewAppError("NOT_FOUND", "product not found", http.StatusNotFound, err)
		}
		return Product{}, err
	}
	return p, nil
}

// Create inserts a new product.
func (s *Service) Create(ctx context.Context, input ProductInput) (Product, error) {
	if err := s.validateInput(input); err != nil {
		return Product{}, err
	}
	row := s.pool.QueryRow(ctx, `INSERT INTO products (sku, name, description, category, price, stock_quantity, expiry_date, supplier)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING `+productColumns,
		strings.TrimSpace(input.SKU), strings.TrimSpace(input.Name), input.Description, input.Category,
		input.Price, input.StockQuantity, input.ExpiryDate, input.Supplier)
	p, err := scanProduct(row)
	if err != nil {
		if isUniqueViolation(err) {
			return Product{}, common.NewAppError("SKU_TAKEN", "a product with this SKU already exists", http.StatusConflict, err)
		}
		return Product{}, fmt.Errorf("create product: %w", err)
	}
	s.invalidateList(ctx)
	return p, nil
}

// Update replaces the mutable fields of a product.
func (s *Service) Update(ctx context.Context, id int64, input ProductInput) (Product, error) {
	if err := s.validateInput(input); err != nil {
		return Product{}, err
	}
	row := s.pool.QueryRow(ctx, `UPDATE products
SET sku = $2, name = $3, description = $4, category = $5, price = $6, stock_quantity = $7, expiry_date = $8, supplier = $9, updated_at = now()
WHERE id = $1
RETURNING `+productColumns,
		id, strings.TrimSpace(input.SKU), strings.TrimSpace(input.Name), input.Description, input.Category,
		input.Price, input.StockQuantity, input.ExpiryDate, input.Supplier)
	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, common.NewAppError("NOT_FOUND", "product not found", http.StatusNotFound, err)
		}
		if isUniqueViolation(err) {
			return Product{}, common.NewAppError("SKU_TAKEN", "a product with this SKU already exists", http.StatusConflict, err)
		}
		return Product{}, fmt.Errorf("update product: %w", err)
	}
	s.invalidateList(ctx)
	return p, nil
}

// Delete removes a product.
func (s *Service) Delete(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return common.NewAppError("NOT_FOUND", "product not found", http.StatusNotFound, nil)
	}
	s.invalidateList(ctx)
	return nil
}

// ProductInfo returns name and price for the given product IDs. Unknown IDs
// are simply absent from the result.
func (s *Service) ProductInfo(ctx context.Context, ids []int64) (map[int64]sale.ProductInfo, error) {
	out := make(map[int64]sale.ProductInfo, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := s.pool.Query(ctx, `SELECT id, name, price FROM products WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("product info: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id    int64
			name  string
			price float64
		)
		if err := rows.Scan(&id, &name, &price); err != nil {
			return nil, err
		}
		out[id] = sale.ProductInfo{Name: name, Price: price}
	}
	return out, rows.Err()
}

func (s *Service) validateInput(input ProductInput) error {
	if err := s.validate.Struct(input); err != nil {
		return common.NewAppError("VALIDATION_ERROR", "invalid product payload", http.StatusBadRequest, err)
	}
	return nil
}

func (s *Service) invalidateList(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, listCacheKey); err != nil {
		s.log.Warn().Err(err).Msg("product list cache invalidation failed")
	}
}

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.SKU, &p.Name, &p.Description, &p.Category, &p.Price,
		&p.StockQuantity, &p.ExpiryDate, &p.Supplier, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
