package store

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"
)

func (s *Store) SaveScan(ctx context.Context, sc Scan) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO scans(platform, query, result_count, created_at) VALUES(?, ?, ?, ?)`,
		sc.Platform, sc.Query, sc.ResultCount, unix(sc.CreatedAt),
	)
	if err != nil {
		return 0, fmt.Errorf("save scan: %w", err)
	}
	return res.LastInsertId()
}

func (s *Store) RecordOpportunity(ctx context.Context, o Opportunity) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO opportunities(query, buy_platform, buy_price, sell_platform, sell_price, est_profit, created_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?)`,
		o.Query, o.BuyPlatform, o.BuyPrice, o.SellPlatform, o.SellPrice, o.EstProfit, unix(o.CreatedAt),
	)
	if err != nil {
		return 0, fmt.Errorf("record opportunity: %w", err)
	}
	return res.LastInsertId()
}

// ListOpportunities returns the most profitable opportunities first.
// limit <= 0 means 20.
func (s *Store) ListOpportunities(ctx context.Context, minProfit float64, limit int) ([]Opportunity, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, query, buy_platform, buy_price, sell_platform, sell_price, est_profit, created_at
		 FROM opportunities WHERE est_profit >= ? ORDER BY est_profit DESC, id DESC LIMIT ?`,
		minProfit, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list opportunities: %w", err)
	}
	defer rows.Close()

	var out []Opportunity
	for rows.Next() {
		var o Opportunity
		var created int64
		if err := rows.Scan(&o.ID, &o.Query, &o.BuyPlatform, &o.BuyPrice, &o.SellPlatform, &o.SellPrice, &o.EstProfit, &created); err != nil {
			return nil, err
		}
		o.CreatedAt = time.Unix(created, 0)
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *Store) SaveListing(ctx context.Context, l Listing) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if l.Status == "" {
		l.Status = "active"
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO listings(platform, external_id, title, price, source_platform, source_cost, status, created_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?)`,
		l.Platform, l.ExternalID, l.Title, l.Price, l.SourcePlatform, l.SourceCost, l.Status, unix(l.CreatedAt),
	)
	if err != nil {
		return 0, fmt.Errorf("save listing: %w", err)
	}
	return res.LastInsertId()
}

// SetListingStatus updates listings matched by platform and external id.
func (s *Store) SetListingStatus(ctx context.Context, platform, externalID, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE listings SET status = ? WHERE platform = ? AND external_id = ?`,
		status, platform, externalID,
	)
	if err != nil {
		return fmt.Errorf("set listing status: %w", err)
	}
	return requireAffected(res)
}

// ListListings filters by platform and status when they are non-empty.
func (s *Store) ListListings(ctx context.Context, platform, status string) ([]Listing, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, platform, external_id, title, price, source_platform, source_cost, status, created_at
		 FROM listings
		 WHERE (? = '' OR platform = ?) AND (? = '' OR status = ?)
		 ORDER BY id DESC`,
		platform, platform, status, status,
	)
	if err != nil {
		return nil, fmt.Errorf("list listings: %w", err)
	}
	defer rows.Close()

	var out []Listing
	for rows.Next() {
		var l Listing
		var created int64
		if err := rows.Scan(&l.ID, &l.Platform, &l.ExternalID, &l.Title, &l.Price, &l.SourcePlatform, &l.SourceCost, &l.Status, &created); err != nil {
			return nil, err
		}
		l.CreatedAt = time.Unix(created, 0)
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *Store) SaveOrder(ctx context.Context, o Order) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if o.Status == "" {
		o.Status = "pending"
	}
	now := unix(o.CreatedAt)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO orders(platform, external_id, listing_id, sale_price, cost, fees, status, tracking, created_at, updated_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.Platform, o.ExternalID, o.ListingID, o.SalePrice, o.Cost, o.Fees, o.Status, o.Tracking, now, now,
	)
	if err != nil {
		return 0, fmt.Errorf("save order: %w", err)
	}
	return res.LastInsertId()
}

// UpdateOrderStatus sets status and, when non-empty, the tracking number.
func (s *Store) UpdateOrderStatus(ctx context.Context, id int64, status, tracking string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE orders SET status = ?, tracking = CASE WHEN ? = '' THEN tracking ELSE ? END, updated_at = ?
		 WHERE id = ?`,
		status, tracking, tracking, time.Now().Unix(), id,
	)
	if err != nil {
		return fmt.Errorf("update order %d: %w", id, err)
	}
	return requireAffected(res)
}

// ListOrders filters by status when it is non-empty, newest first.
func (s *Store) ListOrders(ctx context.Context, status string) ([]Order, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, platform, external_id, listing_id, sale_price, cost, fees, status, tracking, created_at, updated_at
		 FROM orders WHERE (? = '' OR status = ?) ORDER BY id DESC`,
		status, status,
	)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		var o Order
		var created, updated int64
		if err := rows.Scan(&o.ID, &o.Platform, &o.ExternalID, &o.ListingID, &o.SalePrice, &o.Cost, &o.Fees, &o.Status, &o.Tracking, &created, &updated); err != nil {
			return nil, err
		}
		o.CreatedAt = time.Unix(created, 0)
		o.UpdatedAt = time.Unix(updated, 0)
		out = append(out, o)
	}
	return out, rows.Err()
}

// ProfitSummary totals non-cancelled orders created at or after since.
func (s *Store) ProfitSummary(ctx context.Context, since time.Time) (ProfitSummary, error) {
	sum := ProfitSummary{Since: since}
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(sale_price), 0), COALESCE(SUM(cost), 0), COALESCE(SUM(fees), 0)
		 FROM orders WHERE created_at >= ? AND status != 'cancelled'`,
		since.Unix(),
	).Scan(&sum.Orders, &sum.Revenue, &sum.Cost, &sum.Fees)
	if err != nil {
		return sum, fmt.Errorf("profit summary: %w", err)
	}
	sum.Profit = round2(sum.Revenue - sum.Cost - sum.Fees)
	if sum.Revenue > 0 {
		sum.Margin = round2(sum.Profit / sum.Revenue * 100)
	}
	return sum, nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
