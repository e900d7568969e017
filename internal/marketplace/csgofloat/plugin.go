package csgofloat

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/statsanytime/trade-bots/internal/ledger"
	"github.com/statsanytime/trade-bots/internal/marketplace"
	"github.com/statsanytime/trade-bots/internal/model"
	"github.com/statsanytime/trade-bots/pkg/traderr"
)

// Marketplace is the identifier recorded on trades made through CSGOFloat.
const Marketplace = "csgofloat"

// Plugin relists withdrawn items on CSGOFloat. It is deposit only; items
// are bought elsewhere and sold here.
type Plugin struct {
	api    API
	ledger *ledger.Ledger

	now func() time.Time
}

// New creates a CSGOFloat plugin on top of an API client.
func New(api API, l *ledger.Ledger) *Plugin {
	return &Plugin{
		api:    api,
		ledger: l,
		now:    time.Now,
	}
}

// Name identifies the plugin.
func (p *Plugin) Name() string {
	return Marketplace
}

// Marketplace identifies this plugin to the redeposit scheduler.
func (p *Plugin) Marketplace() string {
	return Marketplace
}

// ScheduleDepositOptions holds the caller-supplied fields of a relist
// intent on CSGOFloat. Everything beyond the amount maps onto optional
// listing parameters and is omitted when unset.
type ScheduleDepositOptions struct {
	AmountUSD decimal.Decimal

	// Type is the listing type, "buy_now" or "auction".
	Type string

	// MaxOfferDiscount is the largest accepted offer discount in cents.
	MaxOfferDiscount int64

	// ReservePrice is the auction reserve in cents.
	ReservePrice int64

	// DurationDays is the auction length.
	DurationDays int

	Description string
	Private     bool
}

// marketplaceData flattens the optional listing parameters, dropping
// unset fields so the deposit call only sends what the caller chose.
func (o ScheduleDepositOptions) marketplaceData() map[string]interface{} {
	data := make(map[string]interface{})
	if o.Type != "" {
		data["type"] = o.Type
	}
	if o.MaxOfferDiscount != 0 {
		data["max_offer_discount"] = o.MaxOfferDiscount
	}
	if o.ReservePrice != 0 {
		data["reserve_price"] = o.ReservePrice
	}
	if o.DurationDays != 0 {
		data["duration_days"] = o.DurationDays
	}
	if o.Description != "" {
		data["description"] = o.Description
	}
	if o.Private {
		data["private"] = true
	}
	if len(data) == 0 {
		return nil
	}
	return data
}

// ScheduleDeposit records a relist intent for the context's item, to be
// executed once its trade lock clears. Requires a completed withdrawal
// with an assigned asset id.
func (p *Plugin) ScheduleDeposit(ctx context.Context, pctx *marketplace.Context, opts ScheduleDepositOptions) (model.ScheduledDeposit, error) {
	if pctx.Item == nil || pctx.Item.AssetID == "" {
		return model.ScheduledDeposit{}, traderr.Precondition(
			"Asset ID is not defined. Ensure a withdrawal has been made and awaited.")
	}
	if pctx.Withdrawal == nil {
		return model.ScheduledDeposit{}, traderr.Precondition(
			"Withdrawal is not defined. Ensure a withdrawal has been made and awaited.")
	}

	return p.ledger.ScheduleDeposit(ctx, model.ScheduledDeposit{
		Marketplace:         Marketplace,
		WithdrawMarketplace: pctx.Marketplace,
		AmountUSD:           opts.AmountUSD.Round(2),
		AssetID:             pctx.Item.AssetID,
		MarketplaceData:     opts.marketplaceData(),
		WithdrawalID:        pctx.Withdrawal.ID,
	})
}

// Deposit executes one scheduled deposit by creating a listing at the
// scheduled price. Used by the redeposit scheduler. The listing call is
// authoritative; on success the deposit is recorded in the ledger.
func (p *Plugin) Deposit(ctx context.Context, deposit model.ScheduledDeposit, withdrawal *model.Withdrawal) error {
	listing := make(map[string]interface{}, len(deposit.MarketplaceData)+2)
	for key, value := range deposit.MarketplaceData {
		listing[key] = value
	}
	listing["asset_id"] = deposit.AssetID
	listing["price"] = deposit.AmountUSD.Mul(decimal.NewFromInt(100)).IntPart()

	listingID, err := p.api.CreateListing(ctx, listing)
	if err != nil {
		return err
	}

	snapshot := withdrawal.Item.Clone()
	snapshot.PriceUSD = deposit.AmountUSD

	record := model.NewDeposit(model.TradeOptions{
		Marketplace:     Marketplace,
		MarketplaceID:   listingID,
		AmountUSD:       deposit.AmountUSD,
		MarketplaceData: deposit.MarketplaceData,
		Item:            snapshot,
	}, p.now())

	return p.ledger.AppendDeposit(ctx, record)
}
