package csgoempire

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
)

// InventoryItem is one entry of the marketplace-side inventory listing.
type InventoryItem struct {
	AssetID     string `json:"asset_id"`
	MarketName  string `json:"market_name"`
	MarketValue int64  `json:"market_value"`
	Tradable    bool   `json:"tradable"`
}

// DepositRequest lists one inventory item for sale.
type DepositRequest struct {
	AssetID      string          `json:"asset_id"`
	DepositValue decimal.Decimal `json:"deposit_value"`
}

// API is the command surface of the CSGOEmpire REST API used by the
// plugin. Withdrawal/deposit progress arrives separately over the trading
// socket.
type API interface {
	// MakeWithdrawal buys a listing outright and returns the marketplace
	// trade id.
	MakeWithdrawal(ctx context.Context, listingID int64) (string, error)

	// PlaceBid places an auction bid in coins.
	PlaceBid(ctx context.Context, listingID int64, amountCoins decimal.Decimal) error

	// GetInventory fetches the marketplace's view of the account inventory.
	GetInventory(ctx context.Context) ([]InventoryItem, error)

	// MakeDeposits submits a batch of items for listing. Confirmation is
	// delivered per item as trade_status socket events.
	MakeDeposits(ctx context.Context, deposits []DepositRequest) error
}

// Client implements API against the live CSGOEmpire endpoints.
type Client struct {
	http *resty.Client
}

// NewClient creates an authenticated CSGOEmpire API client.
func NewClient(baseURL, apiKey string) *Client {
	http := resty.New().
		SetBaseURL(baseURL).
		SetAuthToken(apiKey).
		SetHeader("Content-Type", "application/json")

	return &Client{http: http}
}

type withdrawResponse struct {
	Data struct {
		ID int64 `json:"id"`
	} `json:"data"`
}

// MakeWithdrawal buys a listing outright.
func (c *Client) MakeWithdrawal(ctx context.Context, listingID int64) (string, error) {
	var out withdrawResponse

	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		Post(fmt.Sprintf("/api/v2/trading/deposit/%d/withdraw", listingID))
	if err != nil {
		return "", err
	}
	if resp.IsError() {
		return "", fmt.Errorf("withdraw listing %d: %s", listingID, resp.Status())
	}

	return fmt.Sprintf("%d", out.Data.ID), nil
}

// PlaceBid places an auction bid in coins.
func (c *Client) PlaceBid(ctx context.Context, listingID int64, amountCoins decimal.Decimal) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]interface{}{"bid_value": amountCoins}).
		Post(fmt.Sprintf("/api/v2/trading/deposit/%d/bid", listingID))
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("bid on listing %d: %s", listingID, resp.Status())
	}
	return nil
}

type inventoryResponse struct {
	Data []InventoryItem `json:"data"`
}

// GetInventory fetches the marketplace's view of the account inventory.
func (c *Client) GetInventory(ctx context.Context) ([]InventoryItem, error) {
	var out inventoryResponse

	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/api/v2/trading/user/inventory")
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fetch inventory: %s", resp.Status())
	}

	return out.Data, nil
}

// MakeDeposits submits a batch of items for listing.
func (c *Client) MakeDeposits(ctx context.Context, deposits []DepositRequest) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]interface{}{"items": deposits}).
		Post("/api/v2/trading/deposit")
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("deposit %d items: %s", len(deposits), resp.Status())
	}
	return nil
}

var _ API = (*Client)(nil)
