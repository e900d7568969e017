package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"github.com/statsanytime/trade-bots/internal/model"
	"github.com/statsanytime/trade-bots/internal/storage"
	"github.com/statsanytime/trade-bots/pkg/traderr"
)

const (
	cacheKey        = "pricempire-prices"
	cacheTTL        = time.Hour
	refreshInterval = time.Hour
)

// priceEntry is one source's quote for an item, in cents.
type priceEntry struct {
	Price int64 `json:"price"`
}

// priceTable maps market name to price source to quote.
type priceTable map[string]map[string]priceEntry

type cachedPrices struct {
	Prices   priceTable `json:"prices"`
	CachedAt time.Time  `json:"cachedAt"`
}

// Pricempire is a price source backed by the Pricempire aggregated price
// API. Prices refresh hourly and survive restarts through the storage
// layer.
type Pricempire struct {
	http    *resty.Client
	apiKey  string
	sources []string
	store   storage.Store

	now func() time.Time

	mu     sync.RWMutex
	prices priceTable
}

// NewPricempire creates a Pricempire price source. Sources selects which
// upstream markets to aggregate, e.g. "buff" or "csgofloat".
func NewPricempire(baseURL, apiKey string, sources []string, store storage.Store) *Pricempire {
	return &Pricempire{
		http:    resty.New().SetBaseURL(baseURL),
		apiKey:  apiKey,
		sources: sources,
		store:   store,
		now:     time.Now,
		prices:  make(priceTable),
	}
}

// Name identifies the price source.
func (p *Pricempire) Name() string {
	return "pricempire"
}

// Boot loads the cached price table when it is fresh enough, fetching
// otherwise, and keeps refreshing until the context is cancelled.
func (p *Pricempire) Boot(ctx context.Context) error {
	if !p.loadCache(ctx) {
		if err := p.fetch(ctx); err != nil {
			return err
		}
	}

	go func() {
		ticker := time.NewTicker(refreshInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := p.fetch(ctx); err != nil {
					log.Printf("[Pricempire] Failed to fetch prices: %v", err)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

func (p *Pricempire) loadCache(ctx context.Context) bool {
	if p.store == nil {
		return false
	}

	raw, err := p.store.GetItem(ctx, cacheKey)
	if err != nil || raw == nil {
		return false
	}

	var cached cachedPrices
	if err := json.Unmarshal(raw, &cached); err != nil {
		return false
	}
	if p.now().Sub(cached.CachedAt) > cacheTTL {
		return false
	}

	p.mu.Lock()
	p.prices = cached.Prices
	p.mu.Unlock()
	return true
}

func (p *Pricempire) fetch(ctx context.Context) error {
	var table priceTable

	resp, err := p.http.R().
		SetContext(ctx).
		SetQueryParam("api_key", p.apiKey).
		SetQueryParam("sources", strings.Join(p.sources, ",")).
		SetResult(&table).
		Get("/v3/items/prices")
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("fetch prices: %s", resp.Status())
	}

	p.mu.Lock()
	p.prices = table
	p.mu.Unlock()

	if p.store != nil {
		raw, err := json.Marshal(cachedPrices{Prices: table, CachedAt: p.now()})
		if err == nil {
			err = p.store.SetItem(ctx, cacheKey, raw)
		}
		if err != nil {
			log.Printf("[Pricempire] Failed to cache prices: %v", err)
		}
	}
	return nil
}

// Price returns a source's USD quote for a market name, or false when no
// quote is known.
func (p *Pricempire) Price(marketName, source string) (decimal.Decimal, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	entry, ok := p.prices[marketName][source]
	if !ok || entry.Price == 0 {
		return decimal.Decimal{}, false
	}
	return decimal.NewFromInt(entry.Price).Div(decimal.NewFromInt(100)), true
}

// PricePercentage expresses an item's current price as a percentage of a
// source's quote; below 100 means the item is listed under the quote.
func (p *Pricempire) PricePercentage(item *model.Item, source string) (decimal.Decimal, error) {
	target, ok := p.Price(item.MarketName, source)
	if !ok {
		return decimal.Decimal{}, traderr.Silent(
			fmt.Sprintf("Failed to get pricempire price %s for item %s", source, item.MarketName), nil)
	}
	return item.PriceUSD.Div(target).Mul(decimal.NewFromInt(100)), nil
}
