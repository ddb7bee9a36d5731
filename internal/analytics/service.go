package analytics

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/uptrace/bun"

	"github.com/kerm1977/rifas/internal/models"
	"github.com/kerm1977/rifas/internal/utils"
)

// Service handles analytics operations
type Service struct {
	db *bun.DB
}

// NewService creates a new analytics service
func NewService(db *bun.DB) *Service {
	return &Service{db: db}
}

// RaffleAnalytics represents aggregated sales data for a raffle.
// Revenue counts active selections only; canceled numbers earn nothing.
type RaffleAnalytics struct {
	RaffleID             int64                  `json:"raffle_id"`
	Price                float64                `json:"price"`
	ActiveNumbers        int                    `json:"active_numbers"`
	CanceledNumbers      int                    `json:"canceled_numbers"`
	AvailableNumbers     int                    `json:"available_numbers"`
	SoldPercentage       float64                `json:"sold_percentage"`
	ExpectedRevenue      float64                `json:"expected_revenue"`
	Customers            int                    `json:"customers"`
	DailySales           []DailySalesMetrics    `json:"daily_sales"`
	SalesByPaymentMethod []PaymentMethodMetrics `json:"sales_by_payment_method"`
}

// DailySalesMetrics contains metrics for a single day
type DailySalesMetrics struct {
	Date           string  `json:"date"`
	NumbersClaimed int     `json:"numbers_claimed"`
	Revenue        float64 `json:"revenue"`
}

// PaymentMethodMetrics contains sales metrics for one payment method
type PaymentMethodMetrics struct {
	PaymentMethod string  `json:"payment_method"`
	Numbers       int     `json:"numbers"`
	Revenue       float64 `json:"revenue"`
}

type saleRow struct {
	CustomerPhone string    `bun:"customer_phone"`
	PaymentMethod string    `bun:"payment_method"`
	IsCanceled    bool      `bun:"is_canceled"`
	CreatedAt     time.Time `bun:"created_at"`
}

// GetRaffleAnalytics returns sales analytics for a specific raffle
func (s *Service) GetRaffleAnalytics(ctx context.Context, raffleID int64) (*RaffleAnalytics, error) {
	var raffle models.Raffle
	err := s.db.NewSelect().
		Model(&raffle).
		Column("id", "price").
		Where("id = ?", raffleID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("raffle %d: %w", raffleID, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("raffle %d: %v: %w", raffleID, err, models.ErrStorage)
	}

	var rows []saleRow
	err = s.db.NewSelect().
		Model((*models.Selection)(nil)).
		Column("customer_phone", "payment_method", "is_canceled", "created_at").
		Where("raffle_id = ?", raffleID).
		Order("created_at ASC").
		Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("sales of raffle %d: %v: %w", raffleID, err, models.ErrStorage)
	}

	return aggregate(raffle.ID, raffle.Price, rows), nil
}

// GetBatchAnalytics returns analytics for several raffles. Unknown ids are
// skipped.
func (s *Service) GetBatchAnalytics(ctx context.Context, raffleIDs []int64) ([]RaffleAnalytics, error) {
	out := make([]RaffleAnalytics, 0, len(raffleIDs))
	for _, id := range raffleIDs {
		a, err := s.GetRaffleAnalytics(ctx, id)
		if errors.Is(err, models.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, nil
}

func aggregate(raffleID int64, price float64, rows []saleRow) *RaffleAnalytics {
	a := &RaffleAnalytics{
		RaffleID:             raffleID,
		Price:                price,
		DailySales:           []DailySalesMetrics{},
		SalesByPaymentMethod: []PaymentMethodMetrics{},
	}

	customers := map[string]bool{}
	daily := map[string]*DailySalesMetrics{}
	byMethod := map[string]*PaymentMethodMetrics{}
	for _, r := range rows {
		if r.IsCanceled {
			a.CanceledNumbers++
			continue
		}
		a.ActiveNumbers++
		customers[r.CustomerPhone] = true

		day := r.CreatedAt.UTC().Format(utils.DateLayout)
		d := daily[day]
		if d == nil {
			d = &DailySalesMetrics{Date: day}
			daily[day] = d
		}
		d.NumbersClaimed++
		d.Revenue += price

		method := r.PaymentMethod
		if method == "" {
			method = models.DefaultPaymentMethod
		}
		m := byMethod[method]
		if m == nil {
			m = &PaymentMethodMetrics{PaymentMethod: method}
			byMethod[method] = m
		}
		m.Numbers++
		m.Revenue += price
	}

	a.AvailableNumbers = models.NumberPoolSize - a.ActiveNumbers - a.CanceledNumbers
	a.SoldPercentage = float64(a.ActiveNumbers) * 100 / models.NumberPoolSize
	a.ExpectedRevenue = float64(a.ActiveNumbers) * price
	a.Customers = len(customers)

	for _, d := range daily {
		a.DailySales = append(a.DailySales, *d)
	}
	sort.Slice(a.DailySales, func(i, j int) bool { return a.DailySales[i].Date < a.DailySales[j].Date })

	for _, m := range byMethod {
		a.SalesByPaymentMethod = append(a.SalesByPaymentMethod, *m)
	}
	sort.Slice(a.SalesByPaymentMethod, func(i, j int) bool {
		return a.SalesByPaymentMethod[i].PaymentMethod < a.SalesByPaymentMethod[j].PaymentMethod
	})
	return a
}
