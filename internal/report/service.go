package report

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/apotekgemini/backend-apotek/internal/prescription"
)

// Summary is the dashboard headline payload.
type Summary struct {
	TodaySalesTotal      float64 `json:"today_sales_total"`
	TodaySalesCount      int64   `json:"today_sales_count"`
	LowStockCount        int64   `json:"low_stock_count"`
	NewPrescriptionCount int64   `json:"new_prescription_count"`
}

// TopProduct is one row of the best-seller report.
type TopProduct struct {
	ProductID    int64   `json:"product_id"`
	Name         string  `json:"name"`
	QuantitySold int64   `json:"quantity_sold"`
	Revenue      float64 `json:"revenue"`
}

// DailySales is one day of the sales-over-time report.
type DailySales struct {
	Date  string  `json:"date"`
	Total float64 `json:"total"`
	Count int64   `json:"count"`
}

// Service aggregates reporting queries for the dashboard.
type Service struct {
	pool              *pgxpool.Pool
	lowStockThreshold int
	now               func() time.Time
}

// NewService constructs a report service.
func NewService(pool *pgxpool.Pool, lowStockThreshold int) *Service {
	if lowStockThreshold <= 0 {
		lowStockThreshold = 10
	}
	return &Service{pool: pool, lowStockThreshold: lowStockThreshold, now: time.Now}
}

// WithNow allows tests to override the time provider.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Summary returns today's revenue, low stock count, and new prescription count.
func (s *Service) Summary(ctx context.Context) (Summary, error) {
	var out Summary
	err := s.pool.QueryRow(ctx, `SELECT COALESCE(SUM(total_amount), 0), COUNT(*)
FROM sales WHERE created_at::date = $1::date`, s.now()).
		Scan(&out.TodaySalesTotal, &out.TodaySalesCount)
	if err != nil {
		return Summary{}, fmt.Errorf("summary sales: %w", err)
	}

	err = s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM products WHERE stock_quantity < $1`, s.lowStockThreshold).
		Scan(&out.LowStockCount)
	if err != nil {
		return Summary{}, fmt.Errorf("summary low stock: %w", err)
	}

	err = s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM prescriptions WHERE status = $1`, prescription.StatusNew).
		Scan(&out.NewPrescriptionCount)
	if err != nil {
		return Summary{}, fmt.Errorf("summary prescriptions: %w", err)
	}
	return out, nil
}

// TopProducts returns the best sellers by quantity, gift lines excluded.
func (s *Service) TopProducts(ctx context.Context, limit int) ([]TopProduct, error) {
	if limit <= 0 {
		limit = 5
	}
	rows, err := s.pool.Query(ctx, `SELECT si.product_id, p.name,
       SUM(si.quantity) AS quantity_sold,
       SUM(si.quantity * si.price_per_item - si.discount_amount) AS revenue
FROM sale_items si
JOIN products p ON p.id = si.product_id
WHERE NOT si.is_gift
GROUP BY si.product_id, p.name
ORDER BY quantity_sold DESC, p.name
LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("top products: %w", err)
	}
	defer rows.Close()

	products := make([]TopProduct, 0, limit)
	for rows.Next() {
		var tp TopProduct
		if err := rows.Scan(&tp.ProductID, &tp.Name, &tp.QuantitySold, &tp.Revenue); err != nil {
			return nil, err
		}
		products = append(products, tp)
	}
	return products, rows.Err()
}

// SalesOverTime returns per-day totals for the trailing window, zero-filled
// for days without sales.
func (s *Service) SalesOverTime(ctx context.Context, days int) ([]DailySales, error) {
	if days <= 0 {
		days = 7
	}
	end := s.now()
	start := end.AddDate(0, 0, -(days - 1))

	rows, err := s.pool.Query(ctx, `SELECT created_at::date, SUM(total_amount), COUNT(*)
FROM sales
WHERE created_at::date BETWEEN $1::date AND $2::date
GROUP BY created_at::date`, start, end)
	if err != nil {
		return nil, fmt.Errorf("sales over time: %w", err)
	}
	defer rows.Close()

	byDate := make(map[string]DailySales, days)
	for rows.Next() {
		var (
			day   time.Time
			total float64
			count int64
		)
		if err := rows.Scan(&day, &total, &count); err != nil {
			return nil, err
		}
		key := day.Format("2006-01-02")
		byDate[key] = DailySales{Date: key, Total: total, Count: count}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sales over time: %w", err)
	}

	out := make([]DailySales, 0, days)
	for i := 0; i < days; i++ {
		key := start.AddDate(0, 0, i).Format("2006-01-02")
		if ds, ok := byDate[key]; ok {
			out = append(out, ds)
		} else {
			out = append(out, DailySales{Date: key})
		}
	}
	return out, nil
}
