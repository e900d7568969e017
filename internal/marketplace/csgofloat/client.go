package csgofloat

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
)

// API is the slice of the CSGOFloat REST API the plugin uses. Listings
// are live as soon as the call succeeds; there is no socket confirmation
// step.
type API interface {
	// CreateListing lists an inventory asset for sale and returns the
	// listing id. Extra fields beyond asset id and price are passed
	// through as given.
	CreateListing(ctx context.Context, listing map[string]interface{}) (string, error)
}

// Client implements API against the live CSGOFloat endpoints.
type Client struct {
	http *resty.Client
}

// NewClient creates an authenticated CSGOFloat API client. The API
// expects the raw key as the Authorization header value.
func NewClient(baseURL, apiKey string) *Client {
	http := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Authorization", apiKey).
		SetHeader("Content-Type", "application/json")

	return &Client{http: http}
}

type listingResponse struct {
	ID string `json:"id"`
}

// CreateListing lists an inventory asset for sale.
func (c *Client) CreateListing(ctx context.Context, listing map[string]interface{}) (string, error) {
	var out listingResponse

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(listing).
		SetResult(&out).
		Post("/api/v1/listings")
	if err != nil {
		return "", err
	}
	if resp.IsError() {
		return "", fmt.Errorf("create listing: %s", resp.Status())
	}

	return out.ID, nil
}

var _ API = (*Client)(nil)
