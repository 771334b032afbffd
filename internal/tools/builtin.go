package tools

import (
	"context"
	"time"

	"github.com/flipagent/flipagent/internal/platform"
	"github.com/flipagent/flipagent/internal/schema"
	"github.com/flipagent/flipagent/internal/store"
)

// OperationInvoker performs marketplace REST operations.
type OperationInvoker interface {
	Invoke(ctx context.Context, op platform.Operation, creds schema.Credentials, input map[string]any) (any, error)
	Configured(p schema.Platform) bool
}

// RecordStore is the slice of the data store the tools use.
type RecordStore interface {
	SaveScan(ctx context.Context, sc store.Scan) (int64, error)
	RecordOpportunity(ctx context.Context, o store.Opportunity) (int64, error)
	ListOpportunities(ctx context.Context, minProfit float64, limit int) ([]store.Opportunity, error)
	SaveListing(ctx context.Context, l store.Listing) (int64, error)
	SetListingStatus(ctx context.Context, platform, externalID, status string) error
	ListListings(ctx context.Context, platform, status string) ([]store.Listing, error)
	SaveOrder(ctx context.Context, o store.Order) (int64, error)
	UpdateOrderStatus(ctx context.Context, id int64, status, tracking string) error
	ListOrders(ctx context.Context, status string) ([]store.Order, error)
	ProfitSummary(ctx context.Context, since time.Time) (store.ProfitSummary, error)
}

// Deps are the collaborators the built-in handlers need. A nil dependency
// leaves the tools that need it unbound, which the dispatcher reports as
// unavailable.
type Deps struct {
	Registry    *Registry
	Platforms   OperationInvoker
	Records     RecordStore
	Credentials schema.CredentialManager
	Scheduler   schema.Scheduler
	Fetcher     *PageFetcher
}

// NewBuiltinRegistry registers the static catalog.
func NewBuiltinRegistry() (*Registry, error) {
	b := NewRegistryBuilder()
	if err := b.RegisterAll(Catalog()); err != nil {
		return nil, err
	}
	return b.Build(), nil
}

// BuiltinHandlers binds a handler to every catalog tool whose dependencies are present.
func BuiltinHandlers(deps Deps) map[string]schema.Handler {
	h := make(map[string]schema.Handler, len(definitions))

	h["fee_calculator"] = Typed(feeCalculator)
	h["calculate_profit"] = Typed(calculateProfit)

	if deps.Registry != nil {
		meta := metaTools{registry: deps.Registry, creds: deps.Credentials, platforms: deps.Platforms}
		h["search_tools"] = Typed(meta.searchTools)
		h["list_platforms"] = Typed(meta.listPlatforms)
	}

	if deps.Credentials != nil {
		ct := credentialTools{creds: deps.Credentials}
		h["setup_credentials"] = Typed(ct.setup)
		h["list_credentials"] = Typed(ct.list)
		h["remove_credentials"] = Typed(ct.remove)
	}

	if deps.Platforms != nil {
		for _, d := range definitions {
			if d.op != nil {
				h[d.desc.Name] = remoteHandler{def: d, invoker: deps.Platforms, records: deps.Records}
			}
		}
		if deps.Credentials != nil {
			cp := comparePrices{invoker: deps.Platforms, creds: deps.Credentials, records: deps.Records}
			h["compare_prices"] = Typed(cp.run)
		}
	}

	if deps.Records != nil {
		rt := recordTools{records: deps.Records}
		h["list_listings"] = Typed(rt.listListings)
		h["list_orders"] = Typed(rt.listOrders)
		h["update_order_status"] = Typed(rt.updateOrderStatus)
		h["profit_report"] = Typed(rt.profitReport)
		h["list_opportunities"] = Typed(rt.listOpportunities)
	}

	if deps.Fetcher != nil {
		h["fetch_product_page"] = Typed(deps.Fetcher.fetch)
	}

	if deps.Scheduler != nil {
		st := scheduleTools{svc: deps.Scheduler}
		h["schedule_scan"] = Typed(st.add)
		h["list_scheduled_scans"] = Typed(st.list)
		h["cancel_scheduled_scan"] = Typed(st.cancel)
	}

	return h
}
