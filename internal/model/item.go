package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Auction holds the live auction state of a listing.
type Auction struct {
	HighestBid    decimal.Decimal `json:"highest_bid"`
	HighestBidder string          `json:"highest_bidder,omitempty"`
	EndsAt        time.Time       `json:"ends_at"`
	BidCount      int             `json:"bid_count"`
}

// Item is a tradable unit being evaluated or acquired on a marketplace.
// Plugins keep one live copy per listing, updated as events arrive, and
// hand out clones to pipeline handlers and trade records.
type Item struct {
	MarketName string          `json:"market_name"`
	MarketID   string          `json:"market_id"`
	PriceUSD   decimal.Decimal `json:"price_usd"`
	AssetID    string          `json:"asset_id,omitempty"`
	Auction    *Auction        `json:"auction,omitempty"`
}

// IsAuction reports whether the item is part of a still-running auction.
func (i *Item) IsAuction() bool {
	return i.IsAuctionAt(time.Now())
}

// IsAuctionAt reports whether the item's auction is still running at now.
func (i *Item) IsAuctionAt(now time.Time) bool {
	if i.Auction == nil {
		return false
	}
	return i.Auction.EndsAt.After(now)
}

// Clone returns a deep copy of the item. Trade records store clones so
// that later mutation of the live item does not alter the recorded trade.
func (i *Item) Clone() Item {
	clone := *i
	if i.Auction != nil {
		auction := *i.Auction
		clone.Auction = &auction
	}
	return clone
}
