package csgo500

// Socket event names on the 500.casino trading socket.
const (
	eventListingUpdate = "market_listing_update"
	eventAuctionUpdate = "market_listing_auction_update"
)

// Listing statuses. Only the two the bot acts on are named; the
// marketplace uses more.
const (
	ListingStatusListed = 3
	ListingStatusSold   = 4
)

// ListingItem carries the Steam-side identity of a listed item.
type ListingItem struct {
	AssetID    string `json:"assetId"`
	ClassID    string `json:"classId"`
	InstanceID string `json:"instanceId"`
	AppID      int    `json:"appId"`
}

// Listing is a 500.casino market listing. Values are bux.
type Listing struct {
	ID                      string      `json:"id"`
	UserID                  string      `json:"userId"`
	Name                    string      `json:"name"`
	Item                    ListingItem `json:"item"`
	Value                   int64       `json:"value"`
	OriginalValue           int64       `json:"originalValue"`
	Status                  int         `json:"status"`
	AuctionHighestBidUserID string      `json:"auctionHighestBidUserId"`
	AuctionHighestBidValue  *int64      `json:"auctionHighestBidValue"`
	AuctionEndDate          string      `json:"auctionEndDate"`
	AuctionBidsCount        int         `json:"auctionBidsCount"`
}

// ListingUpdateEvent reports a listing changing state, including sales.
type ListingUpdateEvent struct {
	Listing Listing `json:"listing"`
}

// AuctionUpdateEvent reports bid activity on a listing. The payload is a
// trimmed listing with the auction fields populated.
type AuctionUpdateEvent struct {
	Listing Listing `json:"listing"`
}
