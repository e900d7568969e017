package csgo500

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"

	"github.com/statsanytime/trade-bots/internal/ledger"
	"github.com/statsanytime/trade-bots/internal/marketplace"
	"github.com/statsanytime/trade-bots/internal/model"
	"github.com/statsanytime/trade-bots/internal/storage"
	"github.com/statsanytime/trade-bots/internal/stream"
	"github.com/statsanytime/trade-bots/pkg/traderr"
)

type fakeAPI struct {
	mu sync.Mutex

	withdrawals []string
	withdrawErr error
	withdrawID  string

	bids      []int64
	bidErr    error
	bidPlaced chan struct{}
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		withdrawID: "abc123",
		bidPlaced:  make(chan struct{}, 8),
	}
}

func (f *fakeAPI) MakeWithdrawal(_ context.Context, listingID string, _ int64) (string, error) {
	f.mu.Lock()
	f.withdrawals = append(f.withdrawals, listingID)
	f.mu.Unlock()

	if f.withdrawErr != nil {
		return "", f.withdrawErr
	}
	return f.withdrawID, nil
}

func (f *fakeAPI) PlaceBid(_ context.Context, _ string, bidBux int64) error {
	f.mu.Lock()
	f.bids = append(f.bids, bidBux)
	f.mu.Unlock()

	f.bidPlaced <- struct{}{}
	return f.bidErr
}

func newTestPlugin(api API) (*Plugin, *stream.Dispatcher, *ledger.Ledger) {
	d := stream.NewDispatcher()
	l := ledger.New(storage.NewMemoryStore())
	return New(api, d, l), d, l
}

func dispatch(t *testing.T, d *stream.Dispatcher, event string, payload interface{}) {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatal(err)
	}
	d.Dispatch(event, raw)
}

func TestAuthTokenRoundTrip(t *testing.T) {
	signed, err := AuthToken("user-1", "secret")
	if err != nil {
		t.Fatal(err)
	}

	parsed, err := jwt.Parse(signed, func(*jwt.Token) (interface{}, error) {
		return []byte("secret"), nil
	})
	if err != nil || !parsed.Valid {
		t.Fatalf("token does not verify: %v", err)
	}
	claims := parsed.Claims.(jwt.MapClaims)
	if claims["userId"] != "user-1" {
		t.Fatalf("claims = %v", claims)
	}
}

func TestOnItemBuyableSkipsNonListedStatuses(t *testing.T) {
	p, d, _ := newTestPlugin(newFakeAPI())

	items := make(chan *model.Item, 2)
	p.OnItemBuyable(func(_ context.Context, pctx *marketplace.Context) error {
		items <- pctx.Item
		return nil
	})

	dispatch(t, d, eventListingUpdate, ListingUpdateEvent{
		Listing: Listing{ID: "sold", Name: "x", Value: 1666, Status: ListingStatusSold},
	})
	dispatch(t, d, eventListingUpdate, ListingUpdateEvent{
		Listing: Listing{ID: "live", Name: "USP-S | Kill Confirmed (Minimal Wear)", Value: 108606, Status: ListingStatusListed},
	})

	select {
	case item := <-items:
		if item.MarketID != "live" {
			t.Fatalf("handler saw listing %s, want only the listed one", item.MarketID)
		}
		// 108606 bux at 1666 bux per dollar.
		if !item.PriceUSD.Round(2).Equal(decimal.NewFromFloat(65.19)) {
			t.Fatalf("priceUsd = %s, want ~65.19", item.PriceUSD)
		}
	case <-time.After(time.Second):
		t.Fatal("handler was not invoked for the listed listing")
	}

	select {
	case item := <-items:
		t.Fatalf("unexpected second invocation for %s", item.MarketID)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestAuctionUpdateInvokesHandlerWithAuction(t *testing.T) {
	p, d, _ := newTestPlugin(newFakeAPI())

	items := make(chan *model.Item, 1)
	p.OnItemBuyable(func(_ context.Context, pctx *marketplace.Context) error {
		items <- pctx.Item
		return nil
	})

	highest := int64(112583)
	dispatch(t, d, eventAuctionUpdate, AuctionUpdateEvent{
		Listing: Listing{
			ID:                     "auction-1",
			Name:                   "AK-47 | Redline (Field-Tested)",
			Value:                  108606,
			AuctionHighestBidValue: &highest,
			AuctionEndDate:         time.Now().Add(3 * time.Minute).Format(time.RFC3339),
			AuctionBidsCount:       2,
		},
	})

	select {
	case item := <-items:
		if !item.IsAuction() {
			t.Fatal("item should carry a live auction")
		}
		if !item.Auction.HighestBid.Equal(decimal.NewFromFloat(67.58)) {
			t.Fatalf("highest bid = %s, want 67.58", item.Auction.HighestBid)
		}
	case <-time.After(time.Second):
		t.Fatal("handler was not invoked for the auction update")
	}
}

func TestWithdrawNormalUsesListedValue(t *testing.T) {
	api := newFakeAPI()
	p, d, l := newTestPlugin(api)

	results := make(chan *model.Withdrawal, 1)
	p.OnItemBuyable(func(ctx context.Context, pctx *marketplace.Context) error {
		w, err := p.Withdraw(ctx, pctx)
		if err != nil {
			return err
		}
		results <- w
		return nil
	})

	dispatch(t, d, eventListingUpdate, ListingUpdateEvent{
		Listing: Listing{ID: "live", Name: "x", Value: 108606, Status: ListingStatusListed},
	})

	select {
	case w := <-results:
		if w.Marketplace != Marketplace || w.MarketplaceID != "abc123" {
			t.Fatalf("unexpected withdrawal: %+v", w)
		}
		stored, err := l.Withdrawal(context.Background(), w.ID)
		if err != nil || stored == nil {
			t.Fatalf("withdrawal not in ledger: %v", err)
		}
		if len(api.withdrawals) != 1 || api.withdrawals[0] != "live" {
			t.Fatalf("withdraw calls = %v", api.withdrawals)
		}
	case <-time.After(time.Second):
		t.Fatal("withdraw did not complete")
	}
}

func TestWithdrawNormalFailureIsSilent(t *testing.T) {
	api := newFakeAPI()
	api.withdrawErr = errors.New("listing already sold")
	p, _, _ := newTestPlugin(api)

	p.remember(Listing{ID: "live", Value: 1666, Status: ListingStatusListed})
	pctx := &marketplace.Context{
		Item:        &model.Item{MarketName: "x", MarketID: "live", PriceUSD: decimal.NewFromFloat(1)},
		Marketplace: Marketplace,
		EventID:     "live",
	}

	_, err := p.Withdraw(context.Background(), pctx)
	if !traderr.IsSilent(err) {
		t.Fatalf("expected silent error, got %v", err)
	}
}

func auctionContext() *marketplace.Context {
	return &marketplace.Context{
		Item: &model.Item{
			MarketName: "x",
			MarketID:   "auction-1",
			PriceUSD:   decimal.NewFromFloat(68.25),
			Auction: &model.Auction{
				HighestBid: decimal.NewFromFloat(67.57),
				EndsAt:     time.Now().Add(3 * time.Minute),
				BidCount:   1,
			},
		},
		Marketplace: Marketplace,
		EventID:     "auction-1",
	}
}

func TestBidResolvesWhenListingSells(t *testing.T) {
	api := newFakeAPI()
	p, d, _ := newTestPlugin(api)

	pctx := auctionContext()
	done := make(chan error, 1)
	go func() {
		_, err := p.Withdraw(context.Background(), pctx)
		done <- err
	}()
	// Subscriptions are registered before the bid is placed.
	<-api.bidPlaced

	if len(api.bids) != 1 || api.bids[0] != 113705 {
		t.Fatalf("bid bux = %v, want [113705]", api.bids)
	}

	dispatch(t, d, eventListingUpdate, ListingUpdateEvent{
		Listing: Listing{ID: "auction-1", Status: ListingStatusSold},
	})

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("withdraw failed: %v", err)
		}
		if pctx.Withdrawal == nil || pctx.Withdrawal.MarketplaceID != "auction-1" {
			t.Fatalf("withdrawal not attached: %+v", pctx.Withdrawal)
		}
	case <-time.After(time.Second):
		t.Fatal("sold listing did not resolve the bid")
	}
}

func TestBidSelfEchoDoesNotRejectAndCompetitorDoes(t *testing.T) {
	api := newFakeAPI()
	p, d, _ := newTestPlugin(api)

	done := make(chan error, 1)
	go func() {
		_, err := p.Withdraw(context.Background(), auctionContext())
		done <- err
	}()
	<-api.bidPlaced

	// The previous highest bid echoed back is below our own bid and must
	// not be read as a competitor.
	echo := int64(112572) // $67.57
	dispatch(t, d, eventAuctionUpdate, AuctionUpdateEvent{
		Listing: Listing{ID: "auction-1", AuctionHighestBidValue: &echo},
	})

	select {
	case err := <-done:
		t.Fatalf("own-bid echo terminated the controller: %v", err)
	case <-time.After(100 * time.Millisecond):
	}

	competitor := int64(116620) // $70.00
	dispatch(t, d, eventAuctionUpdate, AuctionUpdateEvent{
		Listing: Listing{ID: "auction-1", AuctionHighestBidValue: &competitor},
	})

	select {
	case err := <-done:
		if !traderr.IsSilent(err) {
			t.Fatalf("expected silent outbid error, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("competing bid did not terminate the controller")
	}
}

func TestBidPlacementFailureIsSilent(t *testing.T) {
	api := newFakeAPI()
	api.bidErr = errors.New("auction ended")
	p, _, _ := newTestPlugin(api)

	_, err := p.Withdraw(context.Background(), auctionContext())
	if !traderr.IsSilent(err) {
		t.Fatalf("expected silent error, got %v", err)
	}
}

func TestBuxConversions(t *testing.T) {
	if got := USDToBux(decimal.NewFromFloat(65.19)); got != 108607 {
		t.Errorf("USDToBux(65.19) = %d, want 108607", got)
	}
	if got := BuxToUSD(1666); !got.Equal(decimal.NewFromInt(1)) {
		t.Errorf("BuxToUSD(1666) = %s, want 1", got)
	}
	for _, bux := range []int64{1666, 108606, 112583} {
		back := USDToBux(BuxToUSD(bux))
		if back != bux {
			t.Errorf("bux %d -> usd -> %d", bux, back)
		}
	}
}
