package ledger

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/statsanytime/trade-bots/internal/model"
	"github.com/statsanytime/trade-bots/internal/storage"
	"github.com/statsanytime/trade-bots/pkg/traderr"
)

func testScheduledDeposit(marketplace, withdrawalID string) model.ScheduledDeposit {
	return model.ScheduledDeposit{
		Marketplace:         marketplace,
		WithdrawMarketplace: "csgoempire",
		AmountUSD:           decimal.NewFromFloat(68.45),
		AssetID:             "11776391870",
		WithdrawalID:        withdrawalID,
	}
}

func TestScheduleDepositRoundsAmount(t *testing.T) {
	ctx := context.Background()
	l := New(storage.NewMemoryStore())

	deposit := testScheduledDeposit("csgofloat", "w-1")
	deposit.AmountUSD = decimal.NewFromFloat(68.44875)

	saved, err := l.ScheduleDeposit(ctx, deposit)
	if err != nil {
		t.Fatalf("schedule deposit: %v", err)
	}
	if !saved.AmountUSD.Equal(decimal.NewFromFloat(68.45)) {
		t.Fatalf("amount = %s, want 68.45", saved.AmountUSD)
	}

	stored, err := l.ScheduledDeposits(ctx, ScheduledDepositFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(stored) != 1 || !stored[0].AmountUSD.Equal(decimal.NewFromFloat(68.45)) {
		t.Fatalf("unexpected stored deposits: %+v", stored)
	}
}

func TestScheduleDepositPreconditions(t *testing.T) {
	ctx := context.Background()
	l := New(storage.NewMemoryStore())

	missingAsset := testScheduledDeposit("csgofloat", "w-1")
	missingAsset.AssetID = ""
	if _, err := l.ScheduleDeposit(ctx, missingAsset); !traderr.IsPrecondition(err) {
		t.Fatalf("expected precondition error for missing asset id, got %v", err)
	}

	missingWithdrawal := testScheduledDeposit("csgofloat", "")
	if _, err := l.ScheduleDeposit(ctx, missingWithdrawal); !traderr.IsPrecondition(err) {
		t.Fatalf("expected precondition error for missing withdrawal, got %v", err)
	}
}

func TestScheduledDepositsFilter(t *testing.T) {
	ctx := context.Background()
	l := New(storage.NewMemoryStore())

	for _, d := range []model.ScheduledDeposit{
		testScheduledDeposit("csgofloat", "w-1"),
		testScheduledDeposit("csgoempire", "w-2"),
		testScheduledDeposit("csgofloat", "w-3"),
	} {
		if _, err := l.ScheduleDeposit(ctx, d); err != nil {
			t.Fatal(err)
		}
	}

	floats, err := l.ScheduledDeposits(ctx, ScheduledDepositFilter{Marketplace: "csgofloat"})
	if err != nil {
		t.Fatal(err)
	}
	if len(floats) != 2 {
		t.Fatalf("got %d csgofloat deposits, want 2", len(floats))
	}

	one, err := l.ScheduledDeposits(ctx, ScheduledDepositFilter{Marketplace: "csgofloat", WithdrawalID: "w-3"})
	if err != nil {
		t.Fatal(err)
	}
	if len(one) != 1 || one[0].WithdrawalID != "w-3" {
		t.Fatalf("unexpected filter result: %+v", one)
	}
}

func TestRemoveScheduledDeposit(t *testing.T) {
	ctx := context.Background()
	l := New(storage.NewMemoryStore())

	first := testScheduledDeposit("csgofloat", "w-1")
	second := testScheduledDeposit("csgofloat", "w-2")
	for _, d := range []model.ScheduledDeposit{first, second} {
		if _, err := l.ScheduleDeposit(ctx, d); err != nil {
			t.Fatal(err)
		}
	}

	if err := l.RemoveScheduledDeposit(ctx, first); err != nil {
		t.Fatalf("remove: %v", err)
	}

	remaining, err := l.ScheduledDeposits(ctx, ScheduledDepositFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(remaining) != 1 || remaining[0].WithdrawalID != "w-2" {
		t.Fatalf("unexpected remaining deposits: %+v", remaining)
	}

	// Removing again is harmless.
	if err := l.RemoveScheduledDeposit(ctx, first); err != nil {
		t.Fatalf("second remove: %v", err)
	}
}

func TestRemoveScheduledDepositNoStoreIsNoop(t *testing.T) {
	ctx := context.Background()
	l := New(storage.NewMemoryStore())

	if err := l.RemoveScheduledDeposit(ctx, testScheduledDeposit("csgofloat", "w-1")); err != nil {
		t.Fatalf("remove on empty store should be a no-op, got %v", err)
	}
}
