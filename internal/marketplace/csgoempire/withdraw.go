package csgoempire

import (
	"context"
	"strconv"

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
	listingID, err := strconv.ParseInt(pctx.EventID, 10, 64)
	if err != nil {
		return nil, err
	}

	marketplaceID, err := p.api.MakeWithdrawal(ctx, listingID)
	if err != nil {
		return nil, traderr.Silent("Failed to withdraw item", err)
	}

	return p.createWithdrawal(ctx, pctx, marketplaceID)
}

// withdrawUsingBid places a bid and races two event streams: the trade
// status stream resolving the bid into a withdrawal, and the auction
// update stream reporting competing bids. Both subscriptions are torn down
// together on any terminal transition. The confirmation may arrive before
// the place-bid call itself returns; both orders are handled.
func (p *Plugin) withdrawUsingBid(ctx context.Context, pctx *marketplace.Context) (*model.Withdrawal, error) {
	listingID, err := strconv.ParseInt(pctx.EventID, 10, 64)
	if err != nil {
		return nil, err
	}

	subs := stream.NewSet()
	defer subs.Cancel()

	tradeStatus := subs.Add(p.socket, eventTradeStatus)
	auctionUpdates := subs.Add(p.socket, eventAuctionUpdate)

	// The item price already includes the 1% outbid markup over the last
	// known highest bid.
	ownBidUSD := pctx.Item.PriceUSD
	bidCoins := USDToCoins(ownBidUSD).Round(2)

	// An auction update at or below this is our own bid echoed back, not a
	// competitor. The 0.5% margin absorbs rounding differences; the
	// minimum bid increment is 1%.
	outbidThreshold := ownBidUSD.Mul(outbidMargin)

	placed := make(chan error, 1)
	go func() {
		placed <- p.api.PlaceBid(ctx, listingID, bidCoins)
	}()

	for {
		select {
		case err := <-placed:
			if err != nil {
				return nil, traderr.Silent("Failed to place bid", err)
			}
			// Bid accepted; keep watching. A nil channel blocks forever.
			placed = nil

		case raw, ok := <-tradeStatus.C:
			if !ok {
				return nil, traderr.Silent("Trade status stream closed", nil)
			}
			events, err := decodeEvents[TradeStatusEvent](raw)
			if err != nil {
				continue
			}
			for _, event := range events {
				if event.Type != "withdrawal" || event.Data.ItemID != listingID {
					continue
				}
				if event.Data.Status == TradeStatusConfirming {
					subs.Cancel()
					return p.createWithdrawal(ctx, pctx, strconv.FormatInt(event.Data.ID, 10))
				}
			}

		case raw, ok := <-auctionUpdates.C:
			if !ok {
				return nil, traderr.Silent("Auction update stream closed", nil)
			}
			events, err := decodeEvents[AuctionUpdateEvent](raw)
			if err != nil {
				continue
			}
			for _, event := range events {
				if event.ID != listingID {
					continue
				}
				highestBidUSD := coinCentsToUSD(event.AuctionHighestBid)
				if highestBidUSD.GreaterThan(outbidThreshold) {
					subs.Cancel()
					return nil, traderr.Silent("Bid was outbid by another user.", nil)
				}
			}

		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}
