package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "data", "flipagent.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpportunitiesOrderedByProfit(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	for _, p := range []float64{4.5, 12.0, -1.0} {
		_, err := s.RecordOpportunity(ctx, Opportunity{
			Query: "lego", BuyPlatform: "aliexpress", BuyPrice: 10,
			SellPlatform: "ebay", SellPrice: 10 + p, EstProfit: p,
		})
		require.NoError(t, err)
	}

	got, err := s.ListOpportunities(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 12.0, got[0].EstProfit)
	assert.Equal(t, 4.5, got[1].EstProfit)
}

func TestListingsFilter(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	_, err := s.SaveListing(ctx, Listing{Platform: "ebay", ExternalID: "e1", Title: "Lamp", Price: 30})
	require.NoError(t, err)
	_, err = s.SaveListing(ctx, Listing{Platform: "walmart", Title: "Desk", Price: 90})
	require.NoError(t, err)

	require.NoError(t, s.SetListingStatus(ctx, "ebay", "e1", "ended"))
	assert.ErrorIs(t, s.SetListingStatus(ctx, "ebay", "missing", "ended"), ErrNotFound)

	ebay, err := s.ListListings(ctx, "ebay", "")
	require.NoError(t, err)
	require.Len(t, ebay, 1)
	assert.Equal(t, "ended", ebay[0].Status)

	active, err := s.ListListings(ctx, "", "active")
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "Desk", active[0].Title)
}

func TestOrderLifecycleAndProfit(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	id, err := s.SaveOrder(ctx, Order{Platform: "ebay", SalePrice: 50, Cost: 20, Fees: 6.93})
	require.NoError(t, err)
	_, err = s.SaveOrder(ctx, Order{Platform: "ebay", SalePrice: 100, Cost: 10, Status: "cancelled"})
	require.NoError(t, err)

	require.NoError(t, s.UpdateOrderStatus(ctx, id, "shipped", "1Z999"))
	err = s.UpdateOrderStatus(ctx, 999, "shipped", "")
	assert.True(t, errors.Is(err, ErrNotFound))

	shipped, err := s.ListOrders(ctx, "shipped")
	require.NoError(t, err)
	require.Len(t, shipped, 1)
	assert.Equal(t, "1Z999", shipped[0].Tracking)

	sum, err := s.ProfitSummary(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Orders)
	assert.Equal(t, 23.07, sum.Profit)
	assert.Equal(t, 46.14, sum.Margin)
}

func TestSaveScan(t *testing.T) {
	s := openTemp(t)
	id, err := s.SaveScan(context.Background(), Scan{Platform: "amazon", Query: "airpods", ResultCount: 7})
	require.NoError(t, err)
	assert.Positive(t, id)
}
