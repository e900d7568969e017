package csgoempire

import (
	"bytes"
	"encoding/json"
)

// Socket event names on the CSGOEmpire trading socket.
const (
	eventNewItem       = "new_item"
	eventAuctionUpdate = "auction_update"
	eventTradeStatus   = "trade_status"
)

// TradeStatus enumerates the states a CSGOEmpire trade moves through.
type TradeStatus int

const (
	TradeStatusError      TradeStatus = -1
	TradeStatusProcessing TradeStatus = 2
	TradeStatusSending    TradeStatus = 3
	TradeStatusConfirming TradeStatus = 4
	TradeStatusSent       TradeStatus = 5
	TradeStatusCompleted  TradeStatus = 6
	TradeStatusCanceled   TradeStatus = 8
	TradeStatusTimedOut   TradeStatus = 9
)

// NewItemEvent announces a listing becoming available. Values are coin
// cents.
type NewItemEvent struct {
	ID                   int64  `json:"id"`
	MarketName           string `json:"market_name"`
	MarketValue          int64  `json:"market_value"`
	AuctionEndsAt        *int64 `json:"auction_ends_at"`
	AuctionHighestBid    *int64 `json:"auction_highest_bid"`
	AuctionHighestBidder *int64 `json:"auction_highest_bidder"`
	AuctionNumberOfBids  int    `json:"auction_number_of_bids"`
}

// AuctionUpdateEvent reports a change to a running auction.
type AuctionUpdateEvent struct {
	ID                   int64  `json:"id"`
	AuctionEndsAt        int64  `json:"auction_ends_at"`
	AuctionHighestBid    int64  `json:"auction_highest_bid"`
	AuctionHighestBidder int64  `json:"auction_highest_bidder"`
	AuctionNumberOfBids  int    `json:"auction_number_of_bids"`
}

// TradeStatusEvent reports progress of a withdrawal or deposit trade.
type TradeStatusEvent struct {
	Type string          `json:"type"`
	Data TradeStatusData `json:"data"`
}

// TradeStatusData is the payload of a trade status event.
type TradeStatusData struct {
	ID           int64           `json:"id"`
	ItemID       int64           `json:"item_id"`
	Status       TradeStatus     `json:"status"`
	TotalValue   int64           `json:"total_value"`
	Item         TradeStatusItem `json:"item"`
	TradeofferID int64           `json:"tradeoffer_id"`
}

// TradeStatusItem describes the item a trade status event concerns.
type TradeStatusItem struct {
	MarketName  string `json:"market_name"`
	MarketValue int64  `json:"market_value"`
	AssetID     int64  `json:"asset_id"`
}

// decodeEvents unmarshals a socket payload that may hold either one event
// or a batch of events.
func decodeEvents[T any](raw json.RawMessage) ([]T, error) {
	trimmed := bytes.TrimSpace(raw)

	if len(trimmed) > 0 && trimmed[0] == '[' {
		var events []T
		if err := json.Unmarshal(trimmed, &events); err != nil {
			return nil, err
		}
		return events, nil
	}

	var event T
	if err := json.Unmarshal(trimmed, &event); err != nil {
		return nil, err
	}
	return []T{event}, nil
}
