package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/statsanytime/trade-bots/internal/model"
	"github.com/statsanytime/trade-bots/internal/storage"
	"github.com/statsanytime/trade-bots/pkg/traderr"
)

// Collection keys in the backing store. Each holds an ordered JSON list of
// records, insertion order = chronological.
const (
	CollectionWithdrawals       = "withdrawals"
	CollectionDeposits          = "deposits"
	CollectionScheduledDeposits = "scheduled-deposits"
)

// Ledger is the append-only source of truth for withdrawals, deposits and
// scheduled deposits. All read-modify-write sequences against the backing
// store are serialized through a single mutex so concurrent flows (listing
// handlers, the redeposit sweep, bid controllers) cannot lose updates.
type Ledger struct {
	store storage.Store
	mu    sync.Mutex
}

// New creates a ledger over the given store.
func New(store storage.Store) *Ledger {
	return &Ledger{store: store}
}

// readList loads the collection under key as a JSON list. A missing
// collection yields an empty list; a present non-list value is a storage
// shape error.
func (l *Ledger) readList(ctx context.Context, key string) ([]json.RawMessage, error) {
	raw, err := l.store.GetItem(ctx, key)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, traderr.Storage(fmt.Sprintf("Expected %s to be an array", key))
	}
	return items, nil
}

func (l *Ledger) writeList(ctx context.Context, key string, items []json.RawMessage) error {
	raw, err := json.Marshal(items)
	if err != nil {
		return err
	}
	return l.store.SetItem(ctx, key, raw)
}

// appendItem appends a record to the named collection.
func (l *Ledger) appendItem(ctx context.Context, key string, record interface{}) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	items, err := l.readList(ctx, key)
	if err != nil {
		return err
	}

	raw, err := json.Marshal(record)
	if err != nil {
		return err
	}

	return l.writeList(ctx, key, append(items, raw))
}

// AppendWithdrawal persists a withdrawal record.
func (l *Ledger) AppendWithdrawal(ctx context.Context, w model.Withdrawal) error {
	return l.appendItem(ctx, CollectionWithdrawals, w)
}

// AppendDeposit persists a deposit record.
func (l *Ledger) AppendDeposit(ctx context.Context, d model.Deposit) error {
	return l.appendItem(ctx, CollectionDeposits, d)
}

// Withdrawals returns all recorded withdrawals in chronological order.
func (l *Ledger) Withdrawals(ctx context.Context) ([]model.Withdrawal, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.withdrawalsLocked(ctx)
}

func (l *Ledger) withdrawalsLocked(ctx context.Context) ([]model.Withdrawal, error) {
	items, err := l.readList(ctx, CollectionWithdrawals)
	if err != nil {
		return nil, err
	}

	withdrawals := make([]model.Withdrawal, 0, len(items))
	for _, raw := range items {
		var w model.Withdrawal
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, traderr.Storage(fmt.Sprintf("malformed withdrawal record: %v", err))
		}
		withdrawals = append(withdrawals, w)
	}
	return withdrawals, nil
}

// Withdrawal finds a withdrawal by id. Returns nil when not found.
func (l *Ledger) Withdrawal(ctx context.Context, id string) (*model.Withdrawal, error) {
	withdrawals, err := l.Withdrawals(ctx)
	if err != nil {
		return nil, err
	}

	for i := range withdrawals {
		if withdrawals[i].ID == id {
			return &withdrawals[i], nil
		}
	}
	return nil, nil
}

// Deposits returns all recorded deposits in chronological order.
func (l *Ledger) Deposits(ctx context.Context) ([]model.Deposit, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	items, err := l.readList(ctx, CollectionDeposits)
	if err != nil {
		return nil, err
	}

	deposits := make([]model.Deposit, 0, len(items))
	for _, raw := range items {
		var d model.Deposit
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, traderr.Storage(fmt.Sprintf("malformed deposit record: %v", err))
		}
		deposits = append(deposits, d)
	}
	return deposits, nil
}

// AmendWithdrawalAsset patches the item asset id of an already-persisted
// withdrawal. This is the only sanctioned mutation of a recorded trade; it
// exists because the asset id is only known once the Steam custody
// transfer completes, after the withdrawal was recorded.
func (l *Ledger) AmendWithdrawalAsset(ctx context.Context, id, assetID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	withdrawals, err := l.withdrawalsLocked(ctx)
	if err != nil {
		return err
	}

	found := false
	items := make([]json.RawMessage, 0, len(withdrawals))
	for i := range withdrawals {
		if withdrawals[i].ID == id {
			withdrawals[i].Item.AssetID = assetID
			found = true
		}
		raw, err := json.Marshal(withdrawals[i])
		if err != nil {
			return err
		}
		items = append(items, raw)
	}

	if !found {
		return fmt.Errorf("withdrawal %s not found", id)
	}

	return l.writeList(ctx, CollectionWithdrawals, items)
}
