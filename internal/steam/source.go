package steam

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultPollInterval = 30 * time.Second

// PollingSource implements OfferSource by polling the Steam web API for
// active received offers. Acceptance goes through the community endpoint
// with the account's web session.
type PollingSource struct {
	http      *resty.Client
	community *resty.Client
	apiKey    string
	sessionID string

	interval time.Duration
	offers   chan TradeOffer
	seen     map[string]bool
}

// NewPollingSource creates a source polling with the given API key. The
// session id authorizes offer acceptance.
func NewPollingSource(apiKey, sessionID string) *PollingSource {
	return &PollingSource{
		http:      resty.New().SetBaseURL("https://api.steampowered.com"),
		community: resty.New().SetBaseURL("https://steamcommunity.com"),
		apiKey:    apiKey,
		sessionID: sessionID,
		interval:  defaultPollInterval,
		offers:    make(chan TradeOffer, 16),
		seen:      make(map[string]bool),
	}
}

// Offers returns the channel of newly discovered offers. Run must be
// started for the channel to produce.
func (s *PollingSource) Offers() <-chan TradeOffer {
	return s.offers
}

type offerAsset struct {
	AssetID        string `json:"assetid"`
	MarketHashName string `json:"market_hash_name"`
}

type apiOffer struct {
	TradeOfferID   string       `json:"tradeofferid"`
	ItemsToGive    []offerAsset `json:"items_to_give"`
	ItemsToReceive []offerAsset `json:"items_to_receive"`
}

type offersResponse struct {
	Response struct {
		TradeOffersReceived []apiOffer `json:"trade_offers_received"`
	} `json:"response"`
}

// Run polls until the context is cancelled, then closes the offer
// channel.
func (s *PollingSource) Run(ctx context.Context) {
	defer close(s.offers)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if err := s.poll(ctx); err != nil {
			log.Printf("[Steam] Failed to poll trade offers: %v", err)
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}

func (s *PollingSource) poll(ctx context.Context) error {
	var out offersResponse

	resp, err := s.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"key":                 s.apiKey,
			"get_received_offers": "1",
			"active_only":         "1",
			"get_descriptions":    "1",
		}).
		SetResult(&out).
		Get("/IEconService/GetTradeOffers/v1/")
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("fetch trade offers: %s", resp.Status())
	}

	for _, raw := range out.Response.TradeOffersReceived {
		if s.seen[raw.TradeOfferID] {
			continue
		}
		s.seen[raw.TradeOfferID] = true

		offer := TradeOffer{ID: raw.TradeOfferID}
		for _, asset := range raw.ItemsToGive {
			offer.ItemsToGive = append(offer.ItemsToGive, OfferItem{AssetID: asset.AssetID, MarketHashName: asset.MarketHashName})
		}
		for _, asset := range raw.ItemsToReceive {
			offer.ItemsToReceive = append(offer.ItemsToReceive, OfferItem{AssetID: asset.AssetID, MarketHashName: asset.MarketHashName})
		}

		select {
		case s.offers <- offer:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Accept confirms a received offer through the community endpoint.
func (s *PollingSource) Accept(ctx context.Context, offerID string) error {
	resp, err := s.community.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"sessionid":    s.sessionID,
			"tradeofferid": offerID,
		}).
		Post(fmt.Sprintf("/tradeoffer/%s/accept", offerID))
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("accept offer %s: %s", offerID, resp.Status())
	}
	return nil
}

var _ OfferSource = (*PollingSource)(nil)
