package tools

import (
	"context"
	"time"
)

type recordTools struct {
	records RecordStore
}

type listListingsArgs struct {
	Platform string `json:"platform"`
	Status   string `json:"status"`
}

func (r recordTools) listListings(ctx context.Context, args listListingsArgs) (any, error) {
	listings, err := r.records.ListListings(ctx, args.Platform, args.Status)
	if err != nil {
		return nil, err
	}
	return map[string]any{"count": len(listings), "listings": listings}, nil
}

type listOrdersArgs struct {
	Status string `json:"status"`
}

func (r recordTools) listOrders(ctx context.Context, args listOrdersArgs) (any, error) {
	orders, err := r.records.ListOrders(ctx, args.Status)
	if err != nil {
		return nil, err
	}
	return map[string]any{"count": len(orders), "orders": orders}, nil
}

type updateOrderArgs struct {
	OrderID  int64  `json:"order_id"`
	Status   string `json:"status"`
	Tracking string `json:"tracking"`
}

func (r recordTools) updateOrderStatus(ctx context.Context, args updateOrderArgs) (any, error) {
	if err := r.records.UpdateOrderStatus(ctx, args.OrderID, args.Status, args.Tracking); err != nil {
		return nil, err
	}
	return map[string]any{"status": "updated", "orderId": args.OrderID, "orderStatus": args.Status}, nil
}

type reportArgs struct {
	Days int `json:"days"`
}

func (r recordTools) profitReport(ctx context.Context, args reportArgs) (any, error) {
	days := args.Days
	if days <= 0 {
		days = 30
	}
	return r.records.ProfitSummary(ctx, time.Now().AddDate(0, 0, -days))
}

type listOpportunitiesArgs struct {
	MinProfit float64 `json:"min_profit"`
	Limit     int     `json:"limit"`
}

func (r recordTools) listOpportunities(ctx context.Context, args listOpportunitiesArgs) (any, error) {
	opps, err := r.records.ListOpportunities(ctx, args.MinProfit, args.Limit)
	if err != nil {
		return nil, err
	}
	return map[string]any{"count": len(opps), "opportunities": opps}, nil
}
