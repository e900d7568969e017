package csgo500

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/statsanytime/trade-bots/internal/marketplace"
	"github.com/statsanytime/trade-bots/internal/model"
	"github.com/statsanytime/trade-bots/internal/stream"
	"github.com/statsanytime/trade-bots/pkg/traderr"
)

// Withdraw acquires the context's listing: a direct purchase for regular
// listings, a bid-and-watch for running auctions. On success the resulting
// withdrawal is recorded in the ledger and attached to the context.
func (p *Plugin) Withdraw(ctx context.Context, pctx *marketplace.Context) (*model.Withdrawal, error) {
	var (
		withdrawal *model.Withdrawal
		err        error
	)

	if pctx.Item.IsAuctionAt(p.now()) {
		withdrawal, err = p.withdrawUsingBid(ctx, pctx)
	} else {
		withdrawal, err = p.withdrawNormal(ctx, pctx)
	}
	if err != nil {
		return nil, err
	}

	pctx.Withdrawal = withdrawal
	return withdrawal, nil
}

func (p *Plugin) withdrawNormal(ctx context.Context, pctx *marketplace.Context) (*model.Withdrawal, error) {
	listing, ok := p.listing(pctx.EventID)
	if !ok {
		return nil, fmt.Errorf("listing %s is no longer tracked", pctx.EventID)
	}

	marketplaceID, err := p.api.MakeWithdrawal(ctx, listing.ID, listing.Value)
	if err != nil {
		return nil, traderr.Silent("Failed to withdraw item", err)
	}

	return p.createWithdrawal(ctx, pctx, marketplaceID)
}

// withdrawUsingBid places a bid and races two event streams: the listing
// update stream resolving the sale, and the auction update stream
// reporting competing bids. A listing update moving to the sold state
// means the auction went to us; the bid response alone proves nothing.
func (p *Plugin) withdrawUsingBid(ctx context.Context, pctx *marketplace.Context) (*model.Withdrawal, error) {
	listingID := pctx.EventID

	subs := stream.NewSet()
	defer subs.Cancel()

	listingUpdates := subs.Add(p.socket, eventListingUpdate)
	auctionUpdates := subs.Add(p.socket, eventAuctionUpdate)

	ownBidUSD := pctx.Item.PriceUSD
	outbidThreshold := ownBidUSD.Mul(outbidMargin)

	placed := make(chan error, 1)
	go func() {
		placed <- p.api.PlaceBid(ctx, listingID, USDToBux(ownBidUSD))
	}()

	for {
		select {
		case err := <-placed:
			if err != nil {
				return nil, traderr.Silent("Failed to withdraw item", err)
			}
			// Bid accepted; keep watching. A nil channel blocks forever.
			placed = nil

		case raw, ok := <-listingUpdates.C:
			if !ok {
				return nil, traderr.Silent("Listing update stream closed", nil)
			}
			var event ListingUpdateEvent
			if err := json.Unmarshal(raw, &event); err != nil {
				continue
			}
			if event.Listing.ID != listingID {
				continue
			}
			if event.Listing.Status == ListingStatusSold {
				subs.Cancel()
				return p.createWithdrawal(ctx, pctx, listingID)
			}

		case raw, ok := <-auctionUpdates.C:
			if !ok {
				return nil, traderr.Silent("Auction update stream closed", nil)
			}
			var event AuctionUpdateEvent
			if err := json.Unmarshal(raw, &event); err != nil {
				continue
			}
			if event.Listing.ID != listingID || event.Listing.AuctionHighestBidValue == nil {
				continue
			}
			highestBidUSD := BuxToUSD(*event.Listing.AuctionHighestBidValue).Round(2)
			if highestBidUSD.GreaterThan(outbidThreshold) {
				subs.Cancel()
				return nil, traderr.Silent("Bid was outbid by another user.", nil)
			}

		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}
