package pricing

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/statsanytime/trade-bots/internal/model"
	"github.com/statsanytime/trade-bots/internal/storage"
	"github.com/statsanytime/trade-bots/pkg/traderr"
)

func priceServer(t *testing.T, hits *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		if r.URL.Query().Get("api_key") != "key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]map[string]map[string]int64{
			"USP-S | Kill Confirmed (Minimal Wear)": {
				"buff": {"price": 6519},
			},
		})
	}))
}

func TestFetchAndLookup(t *testing.T) {
	var hits int32
	server := priceServer(t, &hits)
	defer server.Close()

	store := storage.NewMemoryStore()
	source := NewPricempire(server.URL, "key", []string{"buff"}, store)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := source.Boot(ctx); err != nil {
		t.Fatal(err)
	}

	price, ok := source.Price("USP-S | Kill Confirmed (Minimal Wear)", "buff")
	if !ok || !price.Equal(decimal.NewFromFloat(65.19)) {
		t.Fatalf("price = %s ok=%v, want 65.19", price, ok)
	}

	if _, ok := source.Price("AK-47 | Redline (Field-Tested)", "buff"); ok {
		t.Fatal("unknown item must not resolve")
	}
	if _, ok := source.Price("USP-S | Kill Confirmed (Minimal Wear)", "csgofloat"); ok {
		t.Fatal("unknown source must not resolve")
	}
}

func TestBootPrefersFreshCache(t *testing.T) {
	var hits int32
	server := priceServer(t, &hits)
	defer server.Close()

	store := storage.NewMemoryStore()

	first := NewPricempire(server.URL, "key", []string{"buff"}, store)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := first.Boot(ctx); err != nil {
		t.Fatal(err)
	}
	if atomic.LoadInt32(&hits) != 1 {
		t.Fatalf("hits = %d, want 1", hits)
	}

	// A second boot against the same store reads the cache instead of
	// the network.
	second := NewPricempire(server.URL, "key", []string{"buff"}, store)
	if err := second.Boot(ctx); err != nil {
		t.Fatal(err)
	}
	if atomic.LoadInt32(&hits) != 1 {
		t.Fatalf("hits = %d after cached boot, want 1", hits)
	}

	price, ok := second.Price("USP-S | Kill Confirmed (Minimal Wear)", "buff")
	if !ok || !price.Equal(decimal.NewFromFloat(65.19)) {
		t.Fatalf("cached price = %s ok=%v", price, ok)
	}
}

func TestBootIgnoresStaleCache(t *testing.T) {
	var hits int32
	server := priceServer(t, &hits)
	defer server.Close()

	store := storage.NewMemoryStore()

	first := NewPricempire(server.URL, "key", []string{"buff"}, store)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := first.Boot(ctx); err != nil {
		t.Fatal(err)
	}

	second := NewPricempire(server.URL, "key", []string{"buff"}, store)
	second.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if err := second.Boot(ctx); err != nil {
		t.Fatal(err)
	}
	if atomic.LoadInt32(&hits) != 2 {
		t.Fatalf("hits = %d, want refetch on stale cache", hits)
	}
}

func TestPricePercentage(t *testing.T) {
	var hits int32
	server := priceServer(t, &hits)
	defer server.Close()

	source := NewPricempire(server.URL, "key", []string{"buff"}, storage.NewMemoryStore())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := source.Boot(ctx); err != nil {
		t.Fatal(err)
	}

	item := &model.Item{
		MarketName: "USP-S | Kill Confirmed (Minimal Wear)",
		MarketID:   "1",
		PriceUSD:   decimal.NewFromFloat(58.67),
	}

	pct, err := source.PricePercentage(item, "buff")
	if err != nil {
		t.Fatal(err)
	}
	if !pct.Round(2).Equal(decimal.NewFromFloat(90.00)) {
		t.Fatalf("percentage = %s, want ~90.00", pct)
	}

	missing := &model.Item{MarketName: "AK-47 | Redline (Field-Tested)", MarketID: "2", PriceUSD: decimal.NewFromFloat(10)}
	if _, err := source.PricePercentage(missing, "buff"); !traderr.IsSilent(err) {
		t.Fatalf("expected silent error for missing quote, got %v", err)
	}
}
