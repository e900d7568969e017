package ledger

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/statsanytime/trade-bots/internal/model"
	"github.com/statsanytime/trade-bots/pkg/traderr"
)

// ScheduledDepositFilter selects scheduled deposits by field equality.
// Zero-valued fields are ignored.
type ScheduledDepositFilter struct {
	Marketplace         string
	WithdrawMarketplace string
	AssetID             string
	WithdrawalID        string
}

func (f ScheduledDepositFilter) matches(d model.ScheduledDeposit) bool {
	if f.Marketplace != "" && d.Marketplace != f.Marketplace {
		return false
	}
	if f.WithdrawMarketplace != "" && d.WithdrawMarketplace != f.WithdrawMarketplace {
		return false
	}
	if f.AssetID != "" && d.AssetID != f.AssetID {
		return false
	}
	if f.WithdrawalID != "" && d.WithdrawalID != f.WithdrawalID {
		return false
	}
	return true
}

// ScheduleDeposit validates and persists a deposit intent. The amount is
// rounded to 2 decimal places before persisting.
func (l *Ledger) ScheduleDeposit(ctx context.Context, deposit model.ScheduledDeposit) (model.ScheduledDeposit, error) {
	if deposit.AssetID == "" {
		return model.ScheduledDeposit{}, traderr.Precondition(
			"Asset ID is not defined. Ensure a withdrawal has been made and awaited.")
	}
	if deposit.WithdrawalID == "" {
		return model.ScheduledDeposit{}, traderr.Precondition(
			"Withdrawal is not defined. Ensure a withdrawal has been made and awaited.")
	}

	deposit.AmountUSD = deposit.AmountUSD.Round(2)

	if err := l.appendItem(ctx, CollectionScheduledDeposits, deposit); err != nil {
		return model.ScheduledDeposit{}, err
	}
	return deposit, nil
}

// ScheduledDeposits returns all scheduled deposits matching the filter.
func (l *Ledger) ScheduledDeposits(ctx context.Context, filter ScheduledDepositFilter) ([]model.ScheduledDeposit, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	deposits, err := l.scheduledDepositsLocked(ctx)
	if err != nil {
		return nil, err
	}

	matched := make([]model.ScheduledDeposit, 0, len(deposits))
	for _, d := range deposits {
		if filter.matches(d) {
			matched = append(matched, d)
		}
	}
	return matched, nil
}

func (l *Ledger) scheduledDepositsLocked(ctx context.Context) ([]model.ScheduledDeposit, error) {
	items, err := l.readList(ctx, CollectionScheduledDeposits)
	if err != nil {
		return nil, err
	}

	deposits := make([]model.ScheduledDeposit, 0, len(items))
	for _, raw := range items {
		var d model.ScheduledDeposit
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, traderr.Storage(fmt.Sprintf("malformed scheduled deposit record: %v", err))
		}
		deposits = append(deposits, d)
	}
	return deposits, nil
}

// RemoveScheduledDeposit removes entries matching on the
// (marketplace, withdrawalId) composite key. If the collection has never
// been written this is a silent no-op.
func (l *Ledger) RemoveScheduledDeposit(ctx context.Context, deposit model.ScheduledDeposit) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	exists, err := l.store.HasItem(ctx, CollectionScheduledDeposits)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}

	deposits, err := l.scheduledDepositsLocked(ctx)
	if err != nil {
		return err
	}

	items := make([]json.RawMessage, 0, len(deposits))
	for _, d := range deposits {
		if d.Marketplace == deposit.Marketplace && d.WithdrawalID == deposit.WithdrawalID {
			continue
		}
		raw, err := json.Marshal(d)
		if err != nil {
			return err
		}
		items = append(items, raw)
	}

	return l.writeList(ctx, CollectionScheduledDeposits, items)
}
