package model

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/statsanytime/trade-bots/pkg/uid"
)

// Trade is the base record for withdrawals and deposits. Once appended to
// the ledger a trade is immutable, except for the explicit asset-id amend
// performed after Steam custody transfer completes.
type Trade struct {
	ID              string                 `json:"id"`
	Marketplace     string                 `json:"marketplace"`
	MarketplaceID   string                 `json:"marketplace_id"`
	AmountUSD       decimal.Decimal        `json:"amount_usd"`
	MarketplaceData map[string]interface{} `json:"marketplace_data,omitempty"`
	Item            Item                   `json:"item"`
	MadeAt          time.Time              `json:"made_at"`
}

// Withdrawal records the acquisition of an item from a marketplace.
type Withdrawal struct {
	Trade
}

// Deposit records the listing of an item onto a marketplace for resale.
type Deposit struct {
	Trade
}

// TradeOptions holds the caller-supplied fields of a new trade record.
type TradeOptions struct {
	Marketplace     string
	MarketplaceID   string
	AmountUSD       decimal.Decimal
	MarketplaceData map[string]interface{}
	Item            Item
}

func newTrade(opts TradeOptions, now time.Time) Trade {
	return Trade{
		ID:              uid.New(),
		Marketplace:     opts.Marketplace,
		MarketplaceID:   opts.MarketplaceID,
		AmountUSD:       opts.AmountUSD,
		MarketplaceData: opts.MarketplaceData,
		Item:            opts.Item,
		MadeAt:          now,
	}
}

// NewWithdrawal creates a withdrawal record with a fresh id and timestamp.
func NewWithdrawal(opts TradeOptions, now time.Time) Withdrawal {
	return Withdrawal{Trade: newTrade(opts, now)}
}

// NewDeposit creates a deposit record with a fresh id and timestamp.
func NewDeposit(opts TradeOptions, now time.Time) Deposit {
	return Deposit{Trade: newTrade(opts, now)}
}
