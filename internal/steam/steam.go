package steam

import (
	"context"
	"log"
	"sync"

	"github.com/statsanytime/trade-bots/internal/ledger"
	"github.com/statsanytime/trade-bots/internal/marketplace"
)

// OfferItem is one asset inside a trade offer.
type OfferItem struct {
	AssetID        string
	MarketHashName string
}

// TradeOffer is an incoming Steam trade offer.
type TradeOffer struct {
	ID             string
	ItemsToGive    []OfferItem
	ItemsToReceive []OfferItem
}

// OfferSource delivers incoming trade offers and accepts them. The
// channel closes when the source shuts down.
type OfferSource interface {
	Offers() <-chan TradeOffer
	Accept(ctx context.Context, offerID string) error
}

// Plugin watches the Steam account for incoming trade offers. Offers that
// give nothing away are gifts from marketplace bots delivering bought
// items; they are accepted automatically and announced to waiting
// pipelines so custody identifiers can be backfilled.
type Plugin struct {
	source OfferSource
	ledger *ledger.Ledger

	mu      sync.Mutex
	nextID  int
	waiters map[int]chan TradeOffer
}

// New creates a Steam plugin on top of an offer source.
func New(source OfferSource, l *ledger.Ledger) *Plugin {
	return &Plugin{
		source:  source,
		ledger:  l,
		waiters: make(map[int]chan TradeOffer),
	}
}

// Name identifies the plugin.
func (p *Plugin) Name() string {
	return "steam"
}

// Run consumes the offer source until the context is cancelled or the
// source closes. Offers that would give items away are left untouched for
// a human to review.
func (p *Plugin) Run(ctx context.Context) error {
	for {
		select {
		case offer, ok := <-p.source.Offers():
			if !ok {
				return nil
			}
			if len(offer.ItemsToGive) > 0 {
				log.Printf("[Steam] Ignoring trade offer %s asking for %d items", offer.ID, len(offer.ItemsToGive))
				continue
			}
			if err := p.source.Accept(ctx, offer.ID); err != nil {
				log.Printf("[Steam] Failed to accept trade offer %s: %v", offer.ID, err)
				continue
			}
			p.broadcast(offer)

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (p *Plugin) broadcast(offer TradeOffer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, waiter := range p.waiters {
		select {
		case waiter <- offer:
		default:
			// Waiter is draining its channel; it will catch up or time
			// out on its own.
		}
	}
}

func (p *Plugin) subscribe() (int, chan TradeOffer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++
	id := p.nextID
	ch := make(chan TradeOffer, 16)
	p.waiters[id] = ch
	return id, ch
}

func (p *Plugin) unsubscribe(id int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.waiters, id)
}

// AcceptTradeOffer blocks until an accepted offer delivers an item
// matching the context's market name, then backfills the asset id onto
// the live item and, when a withdrawal is recorded, patches the ledger
// entry. Custody transfer assigns the asset id; until then scheduled
// deposits for the item cannot be created.
func (p *Plugin) AcceptTradeOffer(ctx context.Context, pctx *marketplace.Context) error {
	id, offers := p.subscribe()
	defer p.unsubscribe(id)

	for {
		select {
		case offer := <-offers:
			assetID, ok := matchItem(offer, pctx.Item.MarketName)
			if !ok {
				continue
			}

			pctx.Item.AssetID = assetID
			if pctx.Withdrawal != nil {
				if err := p.ledger.AmendWithdrawalAsset(ctx, pctx.Withdrawal.ID, assetID); err != nil {
					return err
				}
				pctx.Withdrawal.Item.AssetID = assetID
			}
			return nil

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func matchItem(offer TradeOffer, marketName string) (string, bool) {
	for _, item := range offer.ItemsToReceive {
		if item.MarketHashName == marketName {
			return item.AssetID, true
		}
	}
	return "", false
}
