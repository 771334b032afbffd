package store

import "time"

type Scan struct {
	ID          int64     `json:"id"`
	Platform    string    `json:"platform"`
	Query       string    `json:"query"`
	ResultCount int       `json:"resultCount"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Opportunity is a price gap worth acting on: buy on one marketplace, sell on another.
type Opportunity struct {
	ID           int64     `json:"id"`
	Query        string    `json:"query"`
	BuyPlatform  string    `json:"buyPlatform"`
	BuyPrice     float64   `json:"buyPrice"`
	SellPlatform string    `json:"sellPlatform"`
	SellPrice    float64   `json:"sellPrice"`
	EstProfit    float64   `json:"estProfit"`
	CreatedAt    time.Time `json:"createdAt"`
}

type Listing struct {
	ID             int64     `json:"id"`
	Platform       string    `json:"platform"`
	ExternalID     string    `json:"externalId,omitempty"`
	Title          string    `json:"title"`
	Price          float64   `json:"price"`
	SourcePlatform string    `json:"sourcePlatform,omitempty"`
	SourceCost     float64   `json:"sourceCost,omitempty"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"createdAt"`
}

type Order struct {
	ID         int64     `json:"id"`
	Platform   string    `json:"platform"`
	ExternalID string    `json:"externalId,omitempty"`
	ListingID  int64     `json:"listingId,omitempty"`
	SalePrice  float64   `json:"salePrice"`
	Cost       float64   `json:"cost"`
	Fees       float64   `json:"fees"`
	Status     string    `json:"status"`
	Tracking   string    `json:"tracking,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// ProfitSummary aggregates orders created since a point in time.
// Cancelled orders are excluded.
type ProfitSummary struct {
	Since   time.Time `json:"since"`
	Orders  int       `json:"orders"`
	Revenue float64   `json:"revenue"`
	Cost    float64   `json:"cost"`
	Fees    float64   `json:"fees"`
	Profit  float64   `json:"profit"`
	Margin  float64   `json:"marginPercent"`
}
