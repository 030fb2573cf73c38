package service

import (
	"context"
	"time"

	"vendhub-bot/internal/repository"
)

// lowStockThreshold marks items that are close to selling out.
const lowStockThreshold = 5

// Stats is the read-side sales projection served to the dashboard.
type Stats struct {
	TotalSales    int64 `json:"total_sales"`
	TotalRevenue  int64 `json:"total_revenue"`
	TotalStock    int64 `json:"total_stock"`
	LowStockItems int64 `json:"low_stock_items"`
	UserCount     int64 `json:"user_count"`
	NewUsers      int64 `json:"new_users"`
	SalesGrowth   int64 `json:"sales_growth"`
}

// StatsService computes reporting projections over the ledger. Pure
// read side; it never mutates anything.
type StatsService struct {
	store repository.Store
}

// NewStatsService creates a stats service.
func NewStatsService(store repository.Store) *StatsService {
	return &StatsService{store: store}
}

// Compute aggregates current catalog, account and ledger state.
func (s *StatsService) Compute(ctx context.Context) (*Stats, error) {
	items, err := s.store.ListItems(ctx)
	if err != nil {
		return nil, err
	}
	transactions, err := s.store.ListTransactions(ctx)
	if err != nil {
		return nil, err
	}
	accounts, err := s.store.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}

	stats := &Stats{
		TotalSales: int64(len(transactions)),
		UserCount:  int64(len(accounts)),
	}

	for _, tx := range transactions {
		stats.TotalRevenue += tx.TotalPrice
	}
	for _, item := range items {
		stats.TotalStock += item.Stock
		if !item.InfiniteStock && item.Stock > 0 && item.Stock < lowStockThreshold {
			stats.LowStockItems++
		}
	}

	oneWeekAgo := time.Now().AddDate(0, 0, -7)
	twoWeeksAgo := time.Now().AddDate(0, 0, -14)

	for _, account := range accounts {
		if account.CreatedAt.After(oneWeekAgo) {
			stats.NewUsers++
		}
	}

	var thisWeek, lastWeek int64
	for _, tx := range transactions {
		switch {
		case tx.CreatedAt.After(oneWeekAgo):
			thisWeek++
		case tx.CreatedAt.After(twoWeeksAgo):
			lastWeek++
		}
	}
	if lastWeek > 0 {
		stats.SalesGrowth = (thisWeek - lastWeek) * 100 / lastWeek
	}

	return stats, nil
}
