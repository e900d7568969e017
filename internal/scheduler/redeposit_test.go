package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/statsanytime/trade-bots/internal/ledger"
	"github.com/statsanytime/trade-bots/internal/model"
	"github.com/statsanytime/trade-bots/internal/storage"
)

type fakeExecutor struct {
	marketplace string
	err         error
	calls       []model.ScheduledDeposit
}

func (f *fakeExecutor) Marketplace() string { return f.marketplace }

func (f *fakeExecutor) Deposit(_ context.Context, d model.ScheduledDeposit, _ *model.Withdrawal) error {
	f.calls = append(f.calls, d)
	return f.err
}

func setupLedger(t *testing.T, withdrawnAt time.Time) (*ledger.Ledger, model.ScheduledDeposit) {
	t.Helper()
	ctx := context.Background()
	l := ledger.New(storage.NewMemoryStore())

	w := model.NewWithdrawal(model.TradeOptions{
		Marketplace:   "csgoempire",
		MarketplaceID: "2391470",
		AmountUSD:     decimal.NewFromFloat(65.19),
		Item: model.Item{
			MarketName: "USP-S | Kill Confirmed (Minimal Wear)",
			MarketID:   "1",
			PriceUSD:   decimal.NewFromFloat(65.19),
		},
	}, withdrawnAt)
	if err := l.AppendWithdrawal(ctx, w); err != nil {
		t.Fatal(err)
	}

	deposit, err := l.ScheduleDeposit(ctx, model.ScheduledDeposit{
		Marketplace:         "csgofloat",
		WithdrawMarketplace: "csgoempire",
		AmountUSD:           decimal.NewFromFloat(68.45),
		AssetID:             "11776391870",
		WithdrawalID:        w.ID,
	})
	if err != nil {
		t.Fatal(err)
	}
	return l, deposit
}

func newTestScheduler(l *ledger.Ledger, exec DepositExecutor, now time.Time) *RedepositScheduler {
	s := New(l, []DepositExecutor{exec}, Config{})
	s.now = func() time.Time { return now }
	return s
}

func TestSweepDepositsEligibleAndRemoves(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	l, _ := setupLedger(t, now.AddDate(0, 0, -9))

	exec := &fakeExecutor{marketplace: "csgofloat"}
	s := newTestScheduler(l, exec, now)

	deposited, err := s.Sweep(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if deposited != 1 || len(exec.calls) != 1 {
		t.Fatalf("deposited = %d, executor calls = %d, want 1/1", deposited, len(exec.calls))
	}

	remaining, err := l.ScheduledDeposits(ctx, ledger.ScheduledDepositFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(remaining) != 0 {
		t.Fatalf("executed deposit still in store: %+v", remaining)
	}

	// Re-running the sweep must not re-deposit.
	deposited, err = s.Sweep(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if deposited != 0 || len(exec.calls) != 1 {
		t.Fatalf("second sweep re-deposited: deposited=%d calls=%d", deposited, len(exec.calls))
	}
}

func TestSweepLeavesLockedDeposits(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	l, _ := setupLedger(t, now.AddDate(0, 0, -2))

	exec := &fakeExecutor{marketplace: "csgofloat"}
	s := newTestScheduler(l, exec, now)

	deposited, err := s.Sweep(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if deposited != 0 || len(exec.calls) != 0 {
		t.Fatalf("locked deposit was executed: deposited=%d calls=%d", deposited, len(exec.calls))
	}

	remaining, _ := l.ScheduledDeposits(ctx, ledger.ScheduledDepositFilter{})
	if len(remaining) != 1 {
		t.Fatalf("locked deposit missing from store: %+v", remaining)
	}
}

func TestSweepRetriesOnFailure(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	l, _ := setupLedger(t, now.AddDate(0, 0, -9))

	exec := &fakeExecutor{marketplace: "csgofloat", err: errors.New("marketplace is down")}
	s := newTestScheduler(l, exec, now)

	if _, err := s.Sweep(ctx); err != nil {
		t.Fatal(err)
	}

	remaining, _ := l.ScheduledDeposits(ctx, ledger.ScheduledDepositFilter{})
	if len(remaining) != 1 {
		t.Fatalf("failed deposit was removed from store: %+v", remaining)
	}

	// Once the transient condition clears, the next sweep succeeds.
	exec.err = nil
	deposited, err := s.Sweep(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if deposited != 1 {
		t.Fatalf("retry sweep deposited %d, want 1", deposited)
	}
	remaining, _ = l.ScheduledDeposits(ctx, ledger.ScheduledDepositFilter{})
	if len(remaining) != 0 {
		t.Fatalf("deposit not removed after successful retry: %+v", remaining)
	}
}

func TestSweepIsolatesEntryFailures(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	l := ledger.New(storage.NewMemoryStore())

	var ids []string
	for _, marketplaceID := range []string{"1", "2"} {
		w := model.NewWithdrawal(model.TradeOptions{
			Marketplace:   "csgoempire",
			MarketplaceID: marketplaceID,
			AmountUSD:     decimal.NewFromFloat(10),
			Item:          model.Item{MarketName: "item " + marketplaceID, MarketID: marketplaceID, PriceUSD: decimal.NewFromFloat(10)},
		}, now.AddDate(0, 0, -9))
		if err := l.AppendWithdrawal(ctx, w); err != nil {
			t.Fatal(err)
		}
		ids = append(ids, w.ID)
	}

	// First entry targets a failing marketplace, second a healthy one.
	failing := &fakeExecutor{marketplace: "csgofloat", err: errors.New("boom")}
	healthy := &fakeExecutor{marketplace: "csgoempire"}

	for i, marketplace := range []string{"csgofloat", "csgoempire"} {
		if _, err := l.ScheduleDeposit(ctx, model.ScheduledDeposit{
			Marketplace:         marketplace,
			WithdrawMarketplace: "csgoempire",
			AmountUSD:           decimal.NewFromFloat(12),
			AssetID:             "asset-" + ids[i],
			WithdrawalID:        ids[i],
		}); err != nil {
			t.Fatal(err)
		}
	}

	s := New(l, []DepositExecutor{failing, healthy}, Config{})
	s.now = func() time.Time { return now }

	deposited, err := s.Sweep(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if deposited != 1 {
		t.Fatalf("deposited = %d, want 1 (healthy entry must proceed despite sibling failure)", deposited)
	}
	if len(healthy.calls) != 1 {
		t.Fatalf("healthy executor calls = %d, want 1", len(healthy.calls))
	}

	remaining, _ := l.ScheduledDeposits(ctx, ledger.ScheduledDepositFilter{})
	if len(remaining) != 1 || remaining[0].Marketplace != "csgofloat" {
		t.Fatalf("unexpected remaining deposits: %+v", remaining)
	}
}

func TestSweepSkipsUnknownMarketplace(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	l, _ := setupLedger(t, now.AddDate(0, 0, -9))

	s := New(l, nil, Config{})
	s.now = func() time.Time { return now }

	deposited, err := s.Sweep(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if deposited != 0 {
		t.Fatalf("deposited = %d, want 0", deposited)
	}
}

type fakeBatchExecutor struct {
	fakeExecutor

	batches  [][]model.ScheduledDeposit
	confirm  int
	batchErr error
}

func (f *fakeBatchExecutor) DepositMultiple(_ context.Context, deposits []model.ScheduledDeposit) ([]model.ScheduledDeposit, error) {
	f.batches = append(f.batches, deposits)
	n := f.confirm
	if n > len(deposits) {
		n = len(deposits)
	}
	return deposits[:n], f.batchErr
}

func TestSweepBatchesEligibleDeposits(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	l := ledger.New(storage.NewMemoryStore())

	assetIDs := []string{"11776391870", "11776391871", "11776391872"}
	for i, assetID := range assetIDs {
		w := model.NewWithdrawal(model.TradeOptions{
			Marketplace:   "csgoempire",
			MarketplaceID: assetID,
			AmountUSD:     decimal.NewFromFloat(65.19),
			Item: model.Item{
				MarketName: "USP-S | Kill Confirmed (Minimal Wear)",
				AssetID:    assetID,
				PriceUSD:   decimal.NewFromFloat(65.19),
			},
		}, now.AddDate(0, 0, -9))
		if err := l.AppendWithdrawal(ctx, w); err != nil {
			t.Fatal(err)
		}

		if _, err := l.ScheduleDeposit(ctx, model.ScheduledDeposit{
			Marketplace:         "csgoempire",
			WithdrawMarketplace: "csgoempire",
			AmountUSD:           decimal.NewFromFloat(68.45).Add(decimal.NewFromInt(int64(i))),
			AssetID:             assetID,
			WithdrawalID:        w.ID,
		}); err != nil {
			t.Fatal(err)
		}
	}

	// Two of three confirm; the batch as a whole reports a chunk error.
	exec := &fakeBatchExecutor{
		fakeExecutor: fakeExecutor{marketplace: "csgoempire"},
		confirm:      2,
		batchErr:     errors.New("timed out waiting for trade_status event"),
	}
	s := newTestScheduler(l, exec, now)

	deposited, err := s.Sweep(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if deposited != 2 {
		t.Fatalf("deposited %d, want 2", deposited)
	}
	if len(exec.batches) != 1 || len(exec.batches[0]) != 3 {
		t.Fatalf("expected one batch of 3 entries, got %+v", exec.batches)
	}
	if len(exec.calls) != 0 {
		t.Fatalf("batch executor must not receive per-entry calls: %+v", exec.calls)
	}

	remaining, _ := l.ScheduledDeposits(ctx, ledger.ScheduledDepositFilter{})
	if len(remaining) != 1 || remaining[0].AssetID != assetIDs[2] {
		t.Fatalf("confirmed entries not removed, remaining: %+v", remaining)
	}

	// The unconfirmed entry is retried on the next sweep.
	exec.confirm = 3
	exec.batchErr = nil
	deposited, err = s.Sweep(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if deposited != 1 {
		t.Fatalf("retry sweep deposited %d, want 1", deposited)
	}
	if len(exec.batches) != 2 || len(exec.batches[1]) != 1 {
		t.Fatalf("retry batch should carry the one remaining entry, got %+v", exec.batches)
	}
	remaining, _ = l.ScheduledDeposits(ctx, ledger.ScheduledDepositFilter{})
	if len(remaining) != 0 {
		t.Fatalf("entry not removed after successful retry: %+v", remaining)
	}
}
