package services

import (
	"context"
	"errors"
	"time"
)

// OrderSweeperDeps configures the periodic auto-cancellation sweep.
type OrderSweeperDeps struct {
	Orders    OrderService
	Interval  time.Duration
	BatchSize int
	Logger    func(ctx context.Context, event string, fields map[string]any)
}

// OrderSweeper periodically cancels unpaid orders that overran the payment
// window. It complements the lazy cancellation performed on reads so orders
// nobody looks at still get closed.
type OrderSweeper struct {
	orders    OrderService
	interval  time.Duration
	batchSize int
	logger    func(context.Context, string, map[string]any)
}

// NewOrderSweeper validates dependencies and constructs a sweeper.
func NewOrderSweeper(deps OrderSweeperDeps) (*OrderSweeper, error) {
	if deps.Orders == nil {
		return nil, errors.New("order sweeper: order service is required")
	}
	if deps.Interval <= 0 {
		return nil, errors.New("order sweeper: interval must be positive")
	}
	if deps.BatchSize <= 0 {
		return nil, errors.New("order sweeper: batch size must be positive")
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &OrderSweeper{
		orders:    deps.Orders,
		interval:  deps.Interval,
		batchSize: deps.BatchSize,
		logger:    logger,
	}, nil
}

// Run sweeps on every tick until the context is cancelled. It blocks, so
// callers start it on its own goroutine.
func (s *OrderSweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce performs a single bounded sweep.
func (s *OrderSweeper) SweepOnce(ctx context.Context) {
	cancelled, err := s.orders.CancelExpired(ctx, s.batchSize)
	if err != nil {
		s.logger(ctx, "order.sweep.failed", map[string]any{
			"error": err.Error(),
		})
		return
	}
	if cancelled > 0 {
		s.logger(ctx, "order.sweep.completed", map[string]any{
			"cancelled": cancelled,
		})
	}
}
