package tools

import (
	"context"
	"fmt"
	"math"

	"github.com/flipagent/flipagent/internal/schema"
)

// FeeBreakdown is the marketplace fee estimate for one sale.
type FeeBreakdown struct {
	Platform    schema.Platform `json:"platform"`
	SalePrice   float64         `json:"salePrice"`
	ReferralFee float64         `json:"referralFee"`
	FixedFee    float64         `json:"fixedFee,omitempty"`
	FBAFee      float64         `json:"fbaFee,omitempty"`
	TotalFees   float64         `json:"totalFees"`
	Shipping    float64         `json:"shipping,omitempty"`
	NetPayout   float64         `json:"netPayout"`
}

type feeRule struct {
	rate  float64
	fixed float64
}

var feeRules = map[schema.Platform]feeRule{
	schema.PlatformEbay:       {rate: 0.1325, fixed: 0.30},
	schema.PlatformAmazon:     {rate: 0.15},
	schema.PlatformWalmart:    {rate: 0.15},
	schema.PlatformAliExpress: {rate: 0.08},
}

// CalculateFees estimates selling fees. fbaFee only applies to Amazon.
func CalculateFees(p schema.Platform, price, fbaFee, shipping float64) (FeeBreakdown, error) {
	rule, ok := feeRules[p]
	if !ok {
		return FeeBreakdown{}, fmt.Errorf("no fee table for platform %q", p)
	}
	if price < 0 {
		return FeeBreakdown{}, fmt.Errorf("price must not be negative")
	}

	b := FeeBreakdown{
		Platform:    p,
		SalePrice:   price,
		ReferralFee: round2(price * rule.rate),
		FixedFee:    rule.fixed,
		Shipping:    shipping,
	}
	if p == schema.PlatformAmazon {
		b.FBAFee = fbaFee
	}
	b.TotalFees = round2(b.ReferralFee + b.FixedFee + b.FBAFee)
	b.NetPayout = round2(price - b.TotalFees - shipping)
	return b, nil
}

// ProfitEstimate is the outcome of buying on one marketplace and reselling on another.
type ProfitEstimate struct {
	BuyPrice      float64      `json:"buyPrice"`
	Fees          FeeBreakdown `json:"fees"`
	Profit        float64      `json:"profit"`
	MarginPercent float64      `json:"marginPercent"`
	ROIPercent    float64      `json:"roiPercent"`
}

func EstimateProfit(sell schema.Platform, buyPrice, sellPrice, fbaFee, shipping float64) (ProfitEstimate, error) {
	fees, err := CalculateFees(sell, sellPrice, fbaFee, shipping)
	if err != nil {
		return ProfitEstimate{}, err
	}
	est := ProfitEstimate{
		BuyPrice: buyPrice,
		Fees:     fees,
		Profit:   round2(fees.NetPayout - buyPrice),
	}
	if sellPrice > 0 {
		est.MarginPercent = round2(est.Profit / sellPrice * 100)
	}
	if buyPrice > 0 {
		est.ROIPercent = round2(est.Profit / buyPrice * 100)
	}
	return est, nil
}

type feeArgs struct {
	Platform string  `json:"platform"`
	Price    float64 `json:"price"`
	FBAFee   float64 `json:"fba_fee"`
	Shipping float64 `json:"shipping"`
}

func feeCalculator(_ context.Context, args feeArgs) (any, error) {
	return CalculateFees(schema.Platform(args.Platform), args.Price, args.FBAFee, args.Shipping)
}

type profitArgs struct {
	BuyPrice     float64 `json:"buy_price"`
	SellPrice    float64 `json:"sell_price"`
	SellPlatform string  `json:"sell_platform"`
	FBAFee       float64 `json:"fba_fee"`
	Shipping     float64 `json:"shipping"`
}

func calculateProfit(_ context.Context, args profitArgs) (any, error) {
	return EstimateProfit(schema.Platform(args.SellPlatform), args.BuyPrice, args.SellPrice, args.FBAFee, args.Shipping)
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
