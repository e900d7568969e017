package csgo500

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/statsanytime/trade-bots/internal/ledger"
	"github.com/statsanytime/trade-bots/internal/marketplace"
	"github.com/statsanytime/trade-bots/internal/model"
	"github.com/statsanytime/trade-bots/internal/stream"
	"github.com/statsanytime/trade-bots/pkg/traderr"
)

// Marketplace is the identifier recorded on trades made through 500.casino.
const Marketplace = "csgo500"

// buxPerUSD is the published site currency rate.
const buxPerUSD = 1666

// outbidMargin tolerates the marketplace echoing our own bid back with
// rounding drift. The minimum bid increment is 1%.
var outbidMargin = decimal.NewFromFloat(1.005)

// liveListingTTL bounds how long a listing stays addressable after its
// last socket event.
const liveListingTTL = 5 * time.Minute

// BuxToUSD converts a bux amount to USD.
func BuxToUSD(bux int64) decimal.Decimal {
	return decimal.NewFromInt(bux).Div(decimal.NewFromInt(buxPerUSD))
}

// USDToBux converts a USD amount to whole bux.
func USDToBux(usd decimal.Decimal) int64 {
	return usd.Mul(decimal.NewFromInt(buxPerUSD)).Round(0).IntPart()
}

// Plugin connects 500.casino listing events to the trading pipeline.
type Plugin struct {
	api    API
	socket stream.Source
	ledger *ledger.Ledger

	now func() time.Time

	mu           sync.Mutex
	liveListings map[string]Listing
}

// New creates a 500.casino plugin on top of an API client and a connected
// trading socket.
func New(api API, socket stream.Source, l *ledger.Ledger) *Plugin {
	return &Plugin{
		api:          api,
		socket:       socket,
		ledger:       l,
		now:          time.Now,
		liveListings: make(map[string]Listing),
	}
}

// Name identifies the plugin.
func (p *Plugin) Name() string {
	return Marketplace
}

// OnItemBuyable invokes handler for every listing that becomes buyable:
// fresh listings entering the listed state and bid activity on running
// auctions.
func (p *Plugin) OnItemBuyable(handler marketplace.Handler) {
	listings := p.socket.Subscribe(eventListingUpdate)
	auctions := p.socket.Subscribe(eventAuctionUpdate)

	go func() {
		defer listings.Cancel()
		defer auctions.Cancel()
		for {
			select {
			case raw, ok := <-listings.C:
				if !ok {
					return
				}
				var event ListingUpdateEvent
				if err := json.Unmarshal(raw, &event); err != nil {
					continue
				}
				if event.Listing.Status != ListingStatusListed {
					continue
				}
				p.remember(event.Listing)
				p.invoke(handler, p.itemFromListing(event.Listing), event.Listing.ID)

			case raw, ok := <-auctions.C:
				if !ok {
					return
				}
				var event AuctionUpdateEvent
				if err := json.Unmarshal(raw, &event); err != nil {
					continue
				}
				p.remember(event.Listing)
				p.invoke(handler, p.itemFromListing(event.Listing), event.Listing.ID)
			}
		}
	}()
}

// itemFromListing normalizes a listing into the pipeline item shape.
func (p *Plugin) itemFromListing(listing Listing) *model.Item {
	item := &model.Item{
		MarketName: listing.Name,
		MarketID:   listing.ID,
		PriceUSD:   BuxToUSD(listing.Value),
		AssetID:    listing.Item.AssetID,
	}

	if endsAt, err := time.Parse(time.RFC3339, listing.AuctionEndDate); err == nil {
		auction := &model.Auction{
			HighestBidder: listing.AuctionHighestBidUserID,
			EndsAt:        endsAt,
			BidCount:      listing.AuctionBidsCount,
		}
		if listing.AuctionHighestBidValue != nil {
			auction.HighestBid = BuxToUSD(*listing.AuctionHighestBidValue).Round(2)
		}
		item.Auction = auction
	}

	return item
}

// remember keeps the raw listing addressable by id so a later withdraw
// can submit the exact listed bux value.
func (p *Plugin) remember(listing Listing) {
	p.mu.Lock()
	p.liveListings[listing.ID] = listing
	p.mu.Unlock()

	time.AfterFunc(liveListingTTL, func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if current, ok := p.liveListings[listing.ID]; ok && current.Status == listing.Status &&
			current.Value == listing.Value {
			delete(p.liveListings, listing.ID)
		}
	})
}

func (p *Plugin) listing(id string) (Listing, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	listing, ok := p.liveListings[id]
	return listing, ok
}

// invoke runs the handler on a fresh pipeline context. Handler errors go
// through the shared error policy.
func (p *Plugin) invoke(handler marketplace.Handler, item *model.Item, listingID string) {
	pctx := &marketplace.Context{
		Item:        item,
		Marketplace: Marketplace,
		EventID:     listingID,
	}

	go func() {
		if err := handler(context.Background(), pctx); err != nil {
			traderr.Handle(err)
		}
	}()
}

// createWithdrawal records the completed withdrawal in the ledger.
func (p *Plugin) createWithdrawal(ctx context.Context, pctx *marketplace.Context, marketplaceID string) (*model.Withdrawal, error) {
	withdrawal := model.NewWithdrawal(model.TradeOptions{
		Marketplace:   Marketplace,
		MarketplaceID: marketplaceID,
		AmountUSD:     pctx.Item.PriceUSD,
		Item:          pctx.Item.Clone(),
	}, p.now())

	if err := p.ledger.AppendWithdrawal(ctx, withdrawal); err != nil {
		return nil, err
	}
	return &withdrawal, nil
}

var _ marketplace.Plugin = (*Plugin)(nil)
