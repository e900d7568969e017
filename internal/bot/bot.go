package bot

import (
	"context"
	"fmt"
	"log"

	"github.com/statsanytime/trade-bots/internal/ledger"
	"github.com/statsanytime/trade-bots/internal/marketplace"
	"github.com/statsanytime/trade-bots/internal/marketplace/csgo500"
	"github.com/statsanytime/trade-bots/internal/marketplace/csgoempire"
	"github.com/statsanytime/trade-bots/internal/marketplace/csgofloat"
	"github.com/statsanytime/trade-bots/internal/pricing"
	"github.com/statsanytime/trade-bots/internal/scheduler"
	"github.com/statsanytime/trade-bots/internal/steam"
)

// Pipeline is a user-supplied trading strategy. It is invoked once per
// buyable item event, on the plugin the item appeared on.
type Pipeline struct {
	Name    string
	Handler marketplace.Handler
}

// Options wire a bot together. Any plugin may be nil; the bot only
// drives what it is given.
type Options struct {
	Ledger *ledger.Ledger

	CSGOEmpire *csgoempire.Plugin
	CSGO500    *csgo500.Plugin
	CSGOFloat  *csgofloat.Plugin
	Steam      *steam.Plugin
	Pricempire *pricing.Pricempire

	Scheduler scheduler.Config
}

// Bot owns the plugins, the redeposit scheduler, and the pipeline
// registrations of one trading account.
type Bot struct {
	ledger *ledger.Ledger

	CSGOEmpire *csgoempire.Plugin
	CSGO500    *csgo500.Plugin
	CSGOFloat  *csgofloat.Plugin
	Steam      *steam.Plugin
	Pricempire *pricing.Pricempire

	Scheduler *scheduler.RedepositScheduler

	cancel context.CancelFunc
}

// New assembles a bot. Every plugin able to execute scheduled deposits is
// registered with the redeposit scheduler.
func New(opts Options) (*Bot, error) {
	if opts.Ledger == nil {
		return nil, fmt.Errorf("bot requires a ledger")
	}

	var executors []scheduler.DepositExecutor
	if opts.CSGOEmpire != nil {
		executors = append(executors, opts.CSGOEmpire)
	}
	if opts.CSGOFloat != nil {
		executors = append(executors, opts.CSGOFloat)
	}

	return &Bot{
		ledger:     opts.Ledger,
		CSGOEmpire: opts.CSGOEmpire,
		CSGO500:    opts.CSGO500,
		CSGOFloat:  opts.CSGOFloat,
		Steam:      opts.Steam,
		Pricempire: opts.Pricempire,
		Scheduler:  scheduler.New(opts.Ledger, executors, opts.Scheduler),
	}, nil
}

// Ledger exposes the trade ledger.
func (b *Bot) Ledger() *ledger.Ledger {
	return b.ledger
}

// RegisterPipeline attaches a strategy to every marketplace plugin that
// emits buyable items.
func (b *Bot) RegisterPipeline(p Pipeline) {
	log.Printf("[Bot] Registering pipeline %q", p.Name)

	if b.CSGOEmpire != nil {
		b.CSGOEmpire.OnItemBuyable(p.Handler)
	}
	if b.CSGO500 != nil {
		b.CSGO500.OnItemBuyable(p.Handler)
	}
}

// Start boots the background machinery: the price source, the Steam offer
// loop, and the redeposit scheduler.
func (b *Bot) Start(ctx context.Context) error {
	ctx, b.cancel = context.WithCancel(ctx)

	if b.Pricempire != nil {
		if err := b.Pricempire.Boot(ctx); err != nil {
			log.Printf("[Bot] Price source boot failed, continuing without prices: %v", err)
		}
	}

	if b.Steam != nil {
		go func() {
			if err := b.Steam.Run(ctx); err != nil && err != context.Canceled {
				log.Printf("[Bot] Steam offer loop stopped: %v", err)
			}
		}()
	}

	b.Scheduler.Start()
	return nil
}

// Stop shuts the background machinery down.
func (b *Bot) Stop() {
	if b.cancel != nil {
		b.cancel()
	}
	b.Scheduler.Stop()
}
