package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/flipagent/flipagent/internal/platform"
	"github.com/flipagent/flipagent/internal/schema"
	"github.com/flipagent/flipagent/internal/store"
)

// localKeys are bookkeeping inputs kept out of the marketplace request.
var localKeys = map[recordKind][]string{
	recordListing: {"source_platform", "source_cost"},
	recordOrder:   {"cost", "sale_platform", "sale_price"},
}

// remoteHandler serves a catalog tool with its marketplace operation and
// records successful outcomes in the data store.
type remoteHandler struct {
	def     definition
	invoker OperationInvoker
	records RecordStore
}

func (h remoteHandler) Execute(ctx context.Context, input map[string]any) (any, error) {
	body := make(map[string]any, len(input))
	for k, v := range input {
		body[k] = v
	}
	for _, k := range localKeys[h.def.record] {
		delete(body, k)
	}

	out, err := h.invoker.Invoke(ctx, *h.def.op, CredentialsFrom(ctx), body)
	if err != nil {
		return nil, err
	}
	if h.records != nil {
		if err := h.record(ctx, input, out); err != nil {
			slog.Warn("Recording tool outcome failed", "tool", h.def.desc.Name, "err", err)
		}
	}
	return out, nil
}

func (h remoteHandler) record(ctx context.Context, input map[string]any, out any) error {
	p := string(h.def.op.Platform)
	switch h.def.record {
	case recordScan:
		_, err := h.records.SaveScan(ctx, store.Scan{
			Platform:    p,
			Query:       str(input["query"]),
			ResultCount: len(firstArray(out)),
		})
		return err
	case recordListing:
		_, err := h.records.SaveListing(ctx, store.Listing{
			Platform:       p,
			ExternalID:     firstNonEmpty(str(find(out, "listingId", "offerId", "itemId", "sku", "id")), str(input["sku"])),
			Title:          str(input["title"]),
			Price:          num(input["price"]),
			SourcePlatform: str(input["source_platform"]),
			SourceCost:     num(input["source_cost"]),
		})
		return err
	case recordListingEnded:
		err := h.records.SetListingStatus(ctx, p, str(input["offer_id"]), "ended")
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	case recordOrder:
		salePlatform := str(input["sale_platform"])
		if salePlatform == "" {
			salePlatform = p
		}
		_, err := h.records.SaveOrder(ctx, store.Order{
			Platform:   salePlatform,
			ExternalID: str(find(out, "orderId", "order_id", "id")),
			SalePrice:  num(input["sale_price"]),
			Cost:       num(input["cost"]),
			Status:     "ordered",
		})
		return err
	}
	return nil
}

// comparePrices fans a search out over every connected marketplace and
// reports the widest profitable gap.
type comparePrices struct {
	invoker OperationInvoker
	creds   schema.CredentialStore
	records RecordStore
}

type compareArgs struct {
	Query     string   `json:"query"`
	Platforms []string `json:"platforms"`
	Shipping  float64  `json:"shipping"`
}

type platformQuote struct {
	Platform    schema.Platform `json:"platform"`
	LowestPrice float64         `json:"lowestPrice,omitempty"`
	Results     int             `json:"results"`
	Error       string          `json:"error,omitempty"`
}

func (c comparePrices) run(ctx context.Context, args compareArgs) (any, error) {
	targets := schema.Marketplaces
	if len(args.Platforms) > 0 {
		targets = nil
		for _, s := range args.Platforms {
			if p, ok := schema.ParsePlatform(s); ok && p != schema.PlatformGeneral {
				targets = append(targets, p)
			}
		}
	}

	userID := userFrom(ctx)
	type job struct {
		p     schema.Platform
		creds schema.Credentials
		op    platform.Operation
	}
	var jobs []job
	var skipped []string
	for _, p := range targets {
		op, ok := scanOperation(p)
		creds, has := c.creds.Lookup(userID, p)
		if !ok || !has || len(creds) == 0 || !c.invoker.Configured(p) {
			skipped = append(skipped, p.DisplayName())
			continue
		}
		jobs = append(jobs, job{p: p, creds: creds, op: op})
	}
	if len(jobs) < 2 {
		return nil, fmt.Errorf("compare_prices needs at least two connected marketplaces (not connected: %s). Use setup_credentials to add them", strings.Join(skipped, ", "))
	}

	quotes := make([]platformQuote, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	for i, j := range jobs {
		g.Go(func() error {
			q := platformQuote{Platform: j.p}
			out, err := c.invoker.Invoke(gctx, j.op, j.creds, map[string]any{"query": args.Query})
			if err != nil {
				q.Error = err.Error()
			} else {
				items := firstArray(out)
				q.Results = len(items)
				q.LowestPrice = lowestPrice(items)
			}
			quotes[i] = q
			return nil
		})
	}
	_ = g.Wait()

	priced := make([]platformQuote, 0, len(quotes))
	for _, q := range quotes {
		if q.Error == "" && q.LowestPrice > 0 {
			priced = append(priced, q)
		}
	}
	result := map[string]any{"query": args.Query, "quotes": quotes}
	if len(skipped) > 0 {
		result["notConnected"] = skipped
	}
	if len(priced) < 2 {
		result["opportunity"] = nil
		result["message"] = "Not enough priced results to compare."
		return result, nil
	}

	sort.SliceStable(priced, func(i, j int) bool { return priced[i].LowestPrice < priced[j].LowestPrice })
	buy, sell := priced[0], priced[len(priced)-1]
	est, err := EstimateProfit(sell.Platform, buy.LowestPrice, sell.LowestPrice, 0, args.Shipping)
	if err != nil {
		return nil, err
	}

	opp := store.Opportunity{
		Query:        args.Query,
		BuyPlatform:  string(buy.Platform),
		BuyPrice:     buy.LowestPrice,
		SellPlatform: string(sell.Platform),
		SellPrice:    sell.LowestPrice,
		EstProfit:    est.Profit,
	}
	if est.Profit > 0 && c.records != nil {
		id, err := c.records.RecordOpportunity(ctx, opp)
		if err != nil {
			slog.Warn("Recording opportunity failed", "err", err)
		}
		opp.ID = id
	}
	result["opportunity"] = opp
	result["estimate"] = est
	return result, nil
}

func scanOperation(p schema.Platform) (platform.Operation, bool) {
	for _, d := range definitions {
		if d.record == recordScan && d.op != nil && d.op.Platform == p {
			return *d.op, true
		}
	}
	return platform.Operation{}, false
}

// firstArray returns v itself when it is a JSON array, otherwise the first
// array found among its object fields (searched in key order, one level deep).
func firstArray(v any) []any {
	switch t := v.(type) {
	case []any:
		return t
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if arr, ok := t[k].([]any); ok {
				return arr
			}
		}
		for _, k := range keys {
			if inner, ok := t[k].(map[string]any); ok {
				if arr := firstArray(inner); arr != nil {
					return arr
				}
			}
		}
	}
	return nil
}

// lowestPrice finds the smallest positive price across result items.
// Prices may be numbers, numeric strings or {"value": …} objects.
func lowestPrice(items []any) float64 {
	low := 0.0
	for _, it := range items {
		obj, ok := it.(map[string]any)
		if !ok {
			continue
		}
		p := priceValue(find(obj, "price", "salePrice", "currentPrice", "amount"))
		if p > 0 && (low == 0 || p < low) {
			low = p
		}
	}
	return low
}

func priceValue(v any) float64 {
	if obj, ok := v.(map[string]any); ok {
		return num(find(obj, "value", "amount"))
	}
	return num(v)
}

func find(v any, keys ...string) any {
	obj, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	for _, k := range keys {
		if val, ok := obj[k]; ok && val != nil {
			return val
		}
	}
	return nil
}

func str(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	case float64:
		return fmt.Sprintf("%.0f", t)
	}
	return fmt.Sprint(v)
}

func num(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case string:
		var f float64
		if _, err := fmt.Sscanf(strings.TrimPrefix(strings.TrimSpace(t), "$"), "%g", &f); err == nil {
			return f
		}
	}
	return 0
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
