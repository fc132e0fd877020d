package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopfusion/api/internal/platform/config"
	"github.com/shopfusion/api/internal/repositories"
	"github.com/shopfusion/api/internal/services"
)

// Services bundles the service-layer contracts that handlers rely upon. Concrete implementations
// are assembled via dependency injection in NewContainer.
type Services struct {
	Orders  services.OrderService
	System  services.SystemService
	Sweeper *services.OrderSweeper
}

// Collaborators carries the infrastructure adapters constructed in main that
// services depend on. Events and Notifier may be nil, order transitions then
// proceed without publishing or mail.
type Collaborators struct {
	Events   services.OrderEventPublisher
	Notifier services.NotificationDispatcher
	Logger   func(ctx context.Context, event string, fields map[string]any)
	Build    services.BuildInfo
}

// Container wires repositories, services, and background infrastructure for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Services     Services
}

// NewContainer constructs the runtime dependencies. Production wiring provides real
// implementations, while tests can supply in-memory registries.
func NewContainer(_ context.Context, cfg config.Config, reg repositories.Registry, collab Collaborators) (*Container, error) {
	if reg == nil {
		return nil, errors.New("repositories registry is required")
	}

	svc, err := buildServices(reg, cfg, collab)
	if err != nil {
		return nil, err
	}

	return &Container{
		Config:       cfg,
		Repositories: reg,
		Services:     svc,
	}, nil
}

// Close releases resources such as repository clients, background workers, or caches.
func (c *Container) Close(ctx context.Context) error {
	if c == nil || c.Repositories == nil {
		return nil
	}
	return c.Repositories.Close(ctx)
}

func buildServices(reg repositories.Registry, cfg config.Config, collab Collaborators) (Services, error) {
	var svc Services

	orderSvc, err := services.NewOrderService(services.OrderServiceDeps{
		Orders:            reg.Orders(),
		Users:             reg.Users(),
		Products:          reg.Products(),
		Counters:          reg.Counters(),
		UnitOfWork:        reg,
		Clock:             time.Now,
		Events:            collab.Events,
		Notifier:          collab.Notifier,
		Logger:            collab.Logger,
		CancelTimeout:     cfg.Lifecycle.CancelTimeout,
		RefundGraceWindow: cfg.Lifecycle.RefundGraceWindow,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build order service: %w", err)
	}
	svc.Orders = orderSvc

	sweeper, err := services.NewOrderSweeper(services.OrderSweeperDeps{
		Orders:    orderSvc,
		Interval:  cfg.Lifecycle.SweepInterval,
		BatchSize: cfg.Lifecycle.SweepBatchSize,
		Logger:    collab.Logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build order sweeper: %w", err)
	}
	svc.Sweeper = sweeper

	if healthRepo := reg.Health(); healthRepo != nil {
		build := collab.Build
		if build.Environment == "" {
			build.Environment = cfg.Security.Environment
		}
		systemSvc, err := services.NewSystemService(services.SystemServiceDeps{
			HealthRepository: healthRepo,
			Clock:            time.Now,
			Build:            build,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build system service: %w", err)
		}
		svc.System = systemSvc
	}

	return svc, nil
}
