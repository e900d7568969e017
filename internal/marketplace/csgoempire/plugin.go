// Package csgoempire integrates the CSGOEmpire marketplace: listing
// normalization, outright and auction withdrawals, and the chunked
// deposit executor.
package csgoempire

import (
	"context"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/statsanytime/trade-bots/internal/ledger"
	"github.com/statsanytime/trade-bots/internal/marketplace"
	"github.com/statsanytime/trade-bots/internal/model"
	"github.com/statsanytime/trade-bots/internal/stream"
	"github.com/statsanytime/trade-bots/pkg/traderr"
)

// Marketplace is the tag used on trade records for this marketplace.
const Marketplace = "csgoempire"

// liveItemTTL is how long a listing is tracked after its new_item event.
// Auctions end after 3 minutes, so this leaves room to spare.
const liveItemTTL = 5 * time.Minute

var (
	usdToCoinsRate = decimal.NewFromFloat(1.62792)
	hundred        = decimal.NewFromInt(100)
	nextBidFactor  = decimal.NewFromFloat(1.01)
	outbidMargin   = decimal.NewFromFloat(1.005)
)

// CoinsToUSD converts a coin amount to USD at the published rate.
func CoinsToUSD(coins decimal.Decimal) decimal.Decimal {
	return coins.Div(usdToCoinsRate)
}

// USDToCoins converts a USD amount to coins at the published rate.
func USDToCoins(usd decimal.Decimal) decimal.Decimal {
	return usd.Mul(usdToCoinsRate)
}

// coinCentsToUSD converts an event's integer coin-cent value to USD.
func coinCentsToUSD(cents int64) decimal.Decimal {
	return CoinsToUSD(decimal.NewFromInt(cents).Div(hundred))
}

// Plugin wires the CSGOEmpire socket and REST API into the pipeline.
type Plugin struct {
	api    API
	socket stream.Source
	ledger *ledger.Ledger

	confirmTimeout time.Duration
	now            func() time.Time

	mu        sync.Mutex
	liveItems map[int64]*model.Item
}

// New creates the CSGOEmpire plugin.
func New(api API, socket stream.Source, l *ledger.Ledger) *Plugin {
	return &Plugin{
		api:            api,
		socket:         socket,
		ledger:         l,
		confirmTimeout: 60 * time.Second,
		now:            time.Now,
		liveItems:      make(map[int64]*model.Item),
	}
}

// Name returns the marketplace tag.
func (p *Plugin) Name() string {
	return Marketplace
}

// OnItemBuyable registers a pipeline handler invoked for every new listing
// and every auction update on a tracked listing.
func (p *Plugin) OnItemBuyable(handler marketplace.Handler) {
	newItems := p.socket.Subscribe(eventNewItem)
	auctionUpdates := p.socket.Subscribe(eventAuctionUpdate)

	go func() {
		defer newItems.Cancel()
		defer auctionUpdates.Cancel()
		for {
			select {
			case raw, ok := <-newItems.C:
				if !ok {
					return
				}
				events, err := decodeEvents[NewItemEvent](raw)
				if err != nil {
					log.Printf("[csgoempire] Malformed new_item event: %v", err)
					continue
				}
				for _, event := range events {
					p.handleNewItem(event, handler)
				}
			case raw, ok := <-auctionUpdates.C:
				if !ok {
					return
				}
				events, err := decodeEvents[AuctionUpdateEvent](raw)
				if err != nil {
					log.Printf("[csgoempire] Malformed auction_update event: %v", err)
					continue
				}
				for _, event := range events {
					p.handleAuctionUpdate(event, handler)
				}
			}
		}
	}()
}

func (p *Plugin) handleNewItem(event NewItemEvent, handler marketplace.Handler) {
	item := &model.Item{
		MarketName: event.MarketName,
		MarketID:   strconv.FormatInt(event.ID, 10),
		PriceUSD:   coinCentsToUSD(event.MarketValue),
	}

	if event.AuctionEndsAt != nil {
		auction := &model.Auction{
			EndsAt:   time.Unix(*event.AuctionEndsAt, 0),
			BidCount: event.AuctionNumberOfBids,
		}
		if event.AuctionHighestBid != nil {
			auction.HighestBid = coinCentsToUSD(*event.AuctionHighestBid).Round(2)
			// The effective price is the next minimum outbid, 1% above
			// the current highest bid.
			item.PriceUSD = auction.HighestBid.Mul(nextBidFactor).Round(2)
		}
		if event.AuctionHighestBidder != nil {
			auction.HighestBidder = strconv.FormatInt(*event.AuctionHighestBidder, 10)
		}
		item.Auction = auction
	}

	p.mu.Lock()
	p.liveItems[event.ID] = item
	snapshot := item.Clone()
	p.mu.Unlock()

	time.AfterFunc(liveItemTTL, func() {
		p.mu.Lock()
		delete(p.liveItems, event.ID)
		p.mu.Unlock()
	})

	p.invoke(handler, &snapshot, event.ID)
}

func (p *Plugin) handleAuctionUpdate(event AuctionUpdateEvent, handler marketplace.Handler) {
	highestBidUSD := coinCentsToUSD(event.AuctionHighestBid).Round(2)

	// The live item is only ever touched under the mutex; handlers get
	// their own clone.
	p.mu.Lock()
	item, ok := p.liveItems[event.ID]
	if !ok {
		p.mu.Unlock()
		return
	}

	item.Auction = &model.Auction{
		HighestBid:    highestBidUSD,
		HighestBidder: strconv.FormatInt(event.AuctionHighestBidder, 10),
		EndsAt:        time.Unix(event.AuctionEndsAt, 0),
		BidCount:      event.AuctionNumberOfBids,
	}

	// The new price is the next bid, 1% above the current highest bid.
	item.PriceUSD = highestBidUSD.Mul(nextBidFactor).Round(2)

	snapshot := item.Clone()
	p.mu.Unlock()

	p.invoke(handler, &snapshot, event.ID)
}

func (p *Plugin) invoke(handler marketplace.Handler, item *model.Item, listingID int64) {
	pctx := &marketplace.Context{
		Item:        item,
		Marketplace: Marketplace,
		EventID:     strconv.FormatInt(listingID, 10),
	}

	go func() {
		if err := handler(context.Background(), pctx); err != nil {
			traderr.Handle(err)
		}
	}()
}

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
