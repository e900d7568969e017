// Package marketplace defines the surface shared by all marketplace
// plugins: the per-listing pipeline context and the plugin contract.
package marketplace

import (
	"context"

	"github.com/statsanytime/trade-bots/internal/model"
)

// Context carries the state of one pipeline invocation: the listing that
// triggered it and, once made, the withdrawal acquiring it. Each
// invocation gets its own instance; there is no ambient shared state.
type Context struct {
	// Item is the live item for the triggering listing event.
	Item *model.Item

	// Marketplace is the tag of the marketplace the event came from.
	Marketplace string

	// EventID is the marketplace-native id of the triggering listing.
	EventID string

	// Withdrawal is set once a withdrawal has been made and awaited.
	Withdrawal *model.Withdrawal
}

// Handler is a pipeline callback invoked when a listing becomes buyable.
type Handler func(ctx context.Context, pctx *Context) error

// Plugin is a marketplace integration.
type Plugin interface {
	// Name returns the marketplace tag ("csgoempire", "csgo500", ...).
	Name() string

	// OnItemBuyable registers a pipeline handler for new and updated
	// listings.
	OnItemBuyable(handler Handler)
}
