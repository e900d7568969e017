package csgo500

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
	"github.com/golang-jwt/jwt/v5"
)

// API is the command surface of the 500.casino trading API used by the
// plugin. Sale confirmations arrive separately over the trading socket.
type API interface {
	// MakeWithdrawal buys a listing outright at its listed bux value and
	// returns the marketplace listing id of the resulting trade.
	MakeWithdrawal(ctx context.Context, listingID string, valueBux int64) (string, error)

	// PlaceBid places an auction bid in bux.
	PlaceBid(ctx context.Context, listingID string, bidBux int64) error
}

// Client implements API against the live 500.casino endpoints. All calls
// spend from the bux balance.
type Client struct {
	http *resty.Client
}

// AuthToken signs the socket and API credential for a user. The
// marketplace expects a HS256 JWT of the user id signed with the API key.
func AuthToken(userID, apiKey string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"userId": userID,
	})
	return token.SignedString([]byte(apiKey))
}

// NewClient creates an authenticated 500.casino API client.
func NewClient(baseURL, userID, apiKey string) (*Client, error) {
	token, err := AuthToken(userID, apiKey)
	if err != nil {
		return nil, fmt.Errorf("sign auth token: %w", err)
	}

	http := resty.New().
		SetBaseURL(baseURL).
		SetHeader("x-500-auth", token).
		SetHeader("Content-Type", "application/json")

	return &Client{http: http}, nil
}

type withdrawResponse struct {
	Data struct {
		Listing Listing `json:"listing"`
	} `json:"data"`
}

// MakeWithdrawal buys a listing outright.
func (c *Client) MakeWithdrawal(ctx context.Context, listingID string, valueBux int64) (string, error) {
	var out withdrawResponse

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]interface{}{
			"listingId":       listingID,
			"listingValue":    valueBux,
			"selectedBalance": "bux",
		}).
		SetResult(&out).
		Post("/api/v1/market/withdraw")
	if err != nil {
		return "", err
	}
	if resp.IsError() {
		return "", fmt.Errorf("withdraw listing %s: %s", listingID, resp.Status())
	}

	return out.Data.Listing.ID, nil
}

// PlaceBid places an auction bid in bux.
func (c *Client) PlaceBid(ctx context.Context, listingID string, bidBux int64) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]interface{}{
			"listingId":       listingID,
			"bidValue":        bidBux,
			"selectedBalance": "bux",
		}).
		Post("/api/v1/market/auction/bid")
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("bid on listing %s: %s", listingID, resp.Status())
	}
	return nil
}

var _ API = (*Client)(nil)
