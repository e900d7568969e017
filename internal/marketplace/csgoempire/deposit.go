package csgoempire

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/statsanytime/trade-bots/internal/marketplace"
	"github.com/statsanytime/trade-bots/internal/model"
	"github.com/statsanytime/trade-bots/internal/scheduler"
	"github.com/statsanytime/trade-bots/pkg/traderr"
)

var _ scheduler.BatchDepositExecutor = (*Plugin)(nil)

// depositChunkSize is the marketplace batch limit for deposit calls.
const depositChunkSize = 20

// Marketplace identifies this plugin to the redeposit scheduler.
func (p *Plugin) Marketplace() string {
	return Marketplace
}

// ScheduleDepositOptions holds the caller-supplied fields of a relist
// intent on CSGOEmpire.
type ScheduleDepositOptions struct {
	AmountUSD decimal.Decimal
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
		WithdrawalID:        pctx.Withdrawal.ID,
	})
}

// Deposit executes one scheduled deposit, snapshotting the withdrawn item
// into the ledger record. Used by the redeposit scheduler.
func (p *Plugin) Deposit(ctx context.Context, deposit model.ScheduledDeposit, withdrawal *model.Withdrawal) error {
	inventory, err := p.api.GetInventory(ctx)
	if err != nil {
		return err
	}

	confirmed, err := p.depositChunk(ctx, inventory,
		[]model.ScheduledDeposit{deposit},
		map[string]model.Item{deposit.AssetID: withdrawal.Item})
	if err != nil {
		return err
	}
	if len(confirmed) == 0 {
		return fmt.Errorf("deposit of asset %s was not confirmed", deposit.AssetID)
	}
	return nil
}

// DepositMultiple converts a batch of scheduled deposits into marketplace
// deposit calls, chunked to the batch limit, and returns the entries the
// marketplace confirmed. Chunk failures are logged and do not stop later
// chunks; entries of a failed chunk are simply absent from the result.
func (p *Plugin) DepositMultiple(ctx context.Context, deposits []model.ScheduledDeposit) ([]model.ScheduledDeposit, error) {
	inventory, err := p.api.GetInventory(ctx)
	if err != nil {
		return nil, err
	}

	items := make(map[string]model.Item, len(deposits))
	eligible := make([]model.ScheduledDeposit, 0, len(deposits))
	for _, deposit := range deposits {
		withdrawal, err := p.ledger.Withdrawal(ctx, deposit.WithdrawalID)
		if err != nil {
			return nil, err
		}
		if withdrawal == nil {
			log.Printf("[csgoempire] No withdrawal %s for scheduled deposit, skipping", deposit.WithdrawalID)
			continue
		}
		items[deposit.AssetID] = withdrawal.Item
		eligible = append(eligible, deposit)
	}

	var confirmed []model.ScheduledDeposit
	for start := 0; start < len(eligible); start += depositChunkSize {
		end := start + depositChunkSize
		if end > len(eligible) {
			end = len(eligible)
		}
		chunk := eligible[start:end]

		chunkConfirmed, err := p.depositChunk(ctx, inventory, chunk, items)
		confirmed = append(confirmed, chunkConfirmed...)
		if err != nil {
			log.Printf("[csgoempire] Failed to deposit item chunk (%d items): %v", len(chunk), err)
		}
	}
	return confirmed, nil
}

// depositChunk submits one chunk, waits for the marketplace to confirm
// each item over the trading socket, and returns the confirmed entries.
// Deposits aren't actually made until the trade_status event arrives, so
// the HTTP response alone is not enough.
func (p *Plugin) depositChunk(ctx context.Context, inventory []InventoryItem, chunk []model.ScheduledDeposit, items map[string]model.Item) ([]model.ScheduledDeposit, error) {
	// Subscribe before submitting so an early confirmation is not missed.
	confirmations := p.socket.Subscribe(eventTradeStatus)
	defer confirmations.Cancel()

	byAsset := make(map[string]model.ScheduledDeposit, len(chunk))
	requests := make([]DepositRequest, 0, len(chunk))

	for _, deposit := range chunk {
		found := false
		for _, inventoryItem := range inventory {
			if inventoryItem.AssetID == deposit.AssetID {
				found = true
				break
			}
		}
		if !found {
			log.Printf("[csgoempire] Failed to find item %s in CSGOEmpire inventory", deposit.AssetID)
			continue
		}

		byAsset[deposit.AssetID] = deposit
		requests = append(requests, DepositRequest{
			AssetID:      deposit.AssetID,
			DepositValue: USDToCoins(deposit.AmountUSD).Round(2),
		})
	}

	if len(requests) == 0 {
		return nil, fmt.Errorf("no deposit items were found in inventory")
	}

	if err := p.api.MakeDeposits(ctx, requests); err != nil {
		return nil, err
	}

	timeout := time.NewTimer(p.confirmTimeout)
	defer timeout.Stop()

	var confirmed []model.ScheduledDeposit
	pending := len(byAsset)
	for pending > 0 {
		select {
		case raw, ok := <-confirmations.C:
			if !ok {
				return confirmed, fmt.Errorf("trade status stream closed while awaiting deposit confirmation")
			}
			events, err := decodeEvents[TradeStatusEvent](raw)
			if err != nil {
				continue
			}
			for _, event := range events {
				if event.Type != "deposit" || event.Data.Status != TradeStatusConfirming {
					continue
				}

				assetID := strconv.FormatInt(event.Data.Item.AssetID, 10)
				deposit, ok := byAsset[assetID]
				if !ok {
					continue
				}
				delete(byAsset, assetID)
				pending--

				if err := p.recordDeposit(ctx, deposit, items[assetID], event.Data.ID); err != nil {
					return confirmed, err
				}
				confirmed = append(confirmed, deposit)
			}

		case <-timeout.C:
			// Retryable: unconfirmed entries stay scheduled and are
			// retried on the next sweep.
			return confirmed, fmt.Errorf("timed out waiting for trade_status event")

		case <-ctx.Done():
			return confirmed, ctx.Err()
		}
	}
	return confirmed, nil
}

func (p *Plugin) recordDeposit(ctx context.Context, deposit model.ScheduledDeposit, item model.Item, tradeID int64) error {
	snapshot := item.Clone()
	snapshot.PriceUSD = deposit.AmountUSD

	record := model.NewDeposit(model.TradeOptions{
		Marketplace:     Marketplace,
		MarketplaceID:   strconv.FormatInt(tradeID, 10),
		AmountUSD:       deposit.AmountUSD,
		MarketplaceData: deposit.MarketplaceData,
		Item:            snapshot,
	}, p.now())

	return p.ledger.AppendDeposit(ctx, record)
}
