package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/statsanytime/trade-bots/internal/ledger"
	"github.com/statsanytime/trade-bots/internal/model"
	"github.com/statsanytime/trade-bots/internal/tradelock"
)

// DepositExecutor performs the actual marketplace deposit for scheduled
// deposits targeting its marketplace.
type DepositExecutor interface {
	// Marketplace returns the marketplace tag this executor serves.
	Marketplace() string

	// Deposit executes one scheduled deposit. The governing withdrawal is
	// resolved by the scheduler and passed along so executors can snapshot
	// the withdrawn item.
	Deposit(ctx context.Context, deposit model.ScheduledDeposit, withdrawal *model.Withdrawal) error
}

// BatchDepositExecutor is implemented by executors whose marketplace takes
// many deposits in one call. The sweep hands such executors all eligible
// entries at once; the executor reports back which were confirmed so the
// scheduler can remove exactly those.
type BatchDepositExecutor interface {
	DepositExecutor

	DepositMultiple(ctx context.Context, deposits []model.ScheduledDeposit) ([]model.ScheduledDeposit, error)
}

// Config holds configuration for the redeposit scheduler.
type Config struct {
	// SweepInterval is how often scheduled deposits are re-checked.
	// Default: 5 minutes.
	SweepInterval time.Duration

	// SweepTimeout bounds a single sweep. Default: 5 minutes.
	SweepTimeout time.Duration
}

// RedepositScheduler periodically sweeps the scheduled deposit store,
// executes entries whose trade lock has cleared, and removes them on
// success. Failed entries stay in the store and are retried on every
// subsequent sweep; there is no backoff and no attempt cutoff.
type RedepositScheduler struct {
	ledger    *ledger.Ledger
	executors map[string]DepositExecutor
	config    Config
	ticker    *time.Ticker
	stopCh    chan struct{}
	stopOnce  sync.Once
	isRunning bool
	mu        sync.Mutex
	now       func() time.Time
}

// New creates a redeposit scheduler over the given ledger and executors.
func New(l *ledger.Ledger, executors []DepositExecutor, config Config) *RedepositScheduler {
	if config.SweepInterval == 0 {
		config.SweepInterval = 5 * time.Minute
	}
	if config.SweepTimeout == 0 {
		config.SweepTimeout = 5 * time.Minute
	}

	byMarketplace := make(map[string]DepositExecutor, len(executors))
	for _, e := range executors {
		byMarketplace[e.Marketplace()] = e
	}

	return &RedepositScheduler{
		ledger:    l,
		executors: byMarketplace,
		config:    config,
		stopCh:    make(chan struct{}),
		now:       time.Now,
	}
}

// Start begins the sweep loop and runs one sweep immediately.
func (s *RedepositScheduler) Start() {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = true
	s.ticker = time.NewTicker(s.config.SweepInterval)
	s.mu.Unlock()

	log.Printf("[RedepositScheduler] Started - Interval: %v", s.config.SweepInterval)

	// Boot-time sweep picks up deposits that became eligible while the
	// bot was down.
	go s.runSweep()

	go s.run()
}

func (s *RedepositScheduler) run() {
	for {
		select {
		case <-s.ticker.C:
			s.runSweep()
		case <-s.stopCh:
			log.Printf("[RedepositScheduler] Stopped")
			return
		}
	}
}

func (s *RedepositScheduler) runSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.SweepTimeout)
	defer cancel()

	if _, err := s.Sweep(ctx); err != nil {
		log.Printf("[RedepositScheduler] Sweep failed: %v", err)
	}
}

// Stop stops the scheduler.
func (s *RedepositScheduler) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		if s.ticker != nil {
			s.ticker.Stop()
		}
		close(s.stopCh)
		s.isRunning = false
	})
}

type sweepEntry struct {
	deposit    model.ScheduledDeposit
	withdrawal *model.Withdrawal
}

// Sweep runs one pass over the scheduled deposit store and returns the
// number of deposits executed successfully. Eligible entries are grouped
// by marketplace; executors that support batching get the whole group in
// one call. A failure on one entry or group never aborts the rest of the
// sweep; the error return is reserved for failures loading the store
// itself.
func (s *RedepositScheduler) Sweep(ctx context.Context) (int, error) {
	deposits, err := s.ledger.ScheduledDeposits(ctx, ledger.ScheduledDepositFilter{})
	if err != nil {
		return 0, err
	}

	var order []string
	groups := make(map[string][]sweepEntry)
	for _, deposit := range deposits {
		if _, ok := s.executors[deposit.Marketplace]; !ok {
			log.Printf("[RedepositScheduler] No executor for marketplace %s, skipping", deposit.Marketplace)
			continue
		}

		withdrawal, err := s.ledger.Withdrawal(ctx, deposit.WithdrawalID)
		if err != nil {
			log.Printf("[RedepositScheduler] Failed to resolve withdrawal %s: %v", deposit.WithdrawalID, err)
			continue
		}
		if withdrawal == nil {
			log.Printf("[RedepositScheduler] Withdrawal %s not found for scheduled deposit, skipping", deposit.WithdrawalID)
			continue
		}

		if !tradelock.IsTradable(withdrawal.MadeAt, s.now()) {
			continue
		}

		if _, ok := groups[deposit.Marketplace]; !ok {
			order = append(order, deposit.Marketplace)
		}
		groups[deposit.Marketplace] = append(groups[deposit.Marketplace], sweepEntry{deposit, withdrawal})
	}

	deposited := 0
	for _, tag := range order {
		executor := s.executors[tag]
		entries := groups[tag]

		if batch, ok := executor.(BatchDepositExecutor); ok {
			group := make([]model.ScheduledDeposit, len(entries))
			for i, entry := range entries {
				group[i] = entry.deposit
			}

			// Confirmed entries are removed even when the batch as a
			// whole errors; the rest stay scheduled for the next sweep.
			confirmed, err := batch.DepositMultiple(ctx, group)
			if err != nil {
				log.Printf("[RedepositScheduler] Batch deposit on %s failed: %v", tag, err)
			}
			for _, deposit := range confirmed {
				if err := s.ledger.RemoveScheduledDeposit(ctx, deposit); err != nil {
					log.Printf("[RedepositScheduler] Failed to remove executed deposit: %v", err)
					continue
				}
				deposited++
			}
			continue
		}

		for _, entry := range entries {
			if err := executor.Deposit(ctx, entry.deposit, entry.withdrawal); err != nil {
				// Left in the store for retry on the next sweep.
				log.Printf("[RedepositScheduler] Failed to deposit item (asset %s on %s): %v",
					entry.deposit.AssetID, entry.deposit.Marketplace, err)
				continue
			}

			if err := s.ledger.RemoveScheduledDeposit(ctx, entry.deposit); err != nil {
				log.Printf("[RedepositScheduler] Failed to remove executed deposit: %v", err)
				continue
			}
			deposited++
		}
	}

	if deposited > 0 {
		log.Printf("[RedepositScheduler] Executed %d scheduled deposit(s)", deposited)
	}
	return deposited, nil
}
