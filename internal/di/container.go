package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Heang0/Digital-Label-sub001/internal/platform/config"
	"github.com/Heang0/Digital-Label-sub001/internal/platform/observability"
	"github.com/Heang0/Digital-Label-sub001/internal/repositories"
	"github.com/Heang0/Digital-Label-sub001/internal/services"
)

// Services bundles the service-layer contracts that handlers rely upon.
type Services struct {
	Counters services.CounterService
	Resolver services.LabelResolver
	Pricing  services.PricingEngine
	Labels   services.LabelService
	Catalog  services.CatalogService
	Branches services.BranchService
	Sales    services.SalesService
	System   services.SystemService
}

// Infrastructure carries optional adapters. Nil fields disable the feature
// they back: no cache, no price events, no image uploads, no metrics.
type Infrastructure struct {
	Logger  *zap.Logger
	Metrics *observability.Metrics
	Cache   services.LabelCache
	Events  services.PriceEventPublisher
	Images  services.ImageStore
	Health  repositories.HealthRepository
	Build   services.BuildInfo
	Clock   func() time.Time
}

// Container wires repositories and services for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Services     Services
}

// NewContainer constructs the runtime dependencies on top of reg. Tests pass
// the memory registry.
func NewContainer(ctx context.Context, cfg config.Config, reg repositories.Registry, infra Infrastructure) (*Container, error) {
	if reg == nil {
		return nil, errors.New("repositories registry is required")
	}

	svc, err := buildServices(ctx, reg, cfg, infra)
	if err != nil {
		return nil, err
	}

	return &Container{
		Config:       cfg,
		Repositories: reg,
		Services:     svc,
	}, nil
}

// Close releases repository clients.
func (c *Container) Close(ctx context.Context) error {
	if c == nil || c.Repositories == nil {
		return nil
	}
	return c.Repositories.Close(ctx)
}

func buildServices(_ context.Context, reg repositories.Registry, cfg config.Config, infra Infrastructure) (Services, error) {
	var svc Services

	clock := infra.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	logger := infra.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	events := observability.EventLogger(logger.Named("services"))

	var (
		resolveObserver services.ResolveObserver
		priceObserver   services.PriceChangeObserver
	)
	if infra.Metrics != nil {
		resolveObserver = infra.Metrics
		priceObserver = infra.Metrics
	}

	counters, err := services.NewCounterService(services.CounterServiceDeps{
		Repository: reg.Counters(),
		Logger:     events,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build counter service: %w", err)
	}
	svc.Counters = counters

	resolver, err := services.NewLabelResolver(services.LabelResolverDeps{
		Labels:   reg.Labels(),
		Cache:    infra.Cache,
		Observer: resolveObserver,
		Logger:   events,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build label resolver: %w", err)
	}
	svc.Resolver = resolver

	pricing, err := services.NewPricingEngine(services.PricingEngineDeps{
		Labels:         reg.Labels(),
		Products:       reg.Products(),
		BranchProducts: reg.BranchProducts(),
		Cache:          infra.Cache,
		Events:         infra.Events,
		Observer:       priceObserver,
		Clock:          clock,
		Logger:         events,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build pricing engine: %w", err)
	}
	svc.Pricing = pricing

	labels, err := services.NewLabelService(services.LabelServiceDeps{
		Labels:         reg.Labels(),
		Branches:       reg.Branches(),
		Products:       reg.Products(),
		BranchProducts: reg.BranchProducts(),
		Counters:       counters,
		Resolver:       resolver,
		Cache:          infra.Cache,
		Events:         infra.Events,
		Observer:       priceObserver,
		Clock:          clock,
		Logger:         events,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build label service: %w", err)
	}
	svc.Labels = labels

	catalogDeps := services.CatalogServiceDeps{
		Products:      reg.Products(),
		Categories:    reg.Categories(),
		Counters:      counters,
		ImageMaxBytes: int(cfg.Storage.ImageMaxBytes),
		Clock:         clock,
		Logger:        events,
	}
	if cfg.Features.EnableImageUpload {
		catalogDeps.Images = infra.Images
	}
	catalog, err := services.NewCatalogService(catalogDeps)
	if err != nil {
		return Services{}, fmt.Errorf("build catalog service: %w", err)
	}
	svc.Catalog = catalog

	branches, err := services.NewBranchService(services.BranchServiceDeps{
		Branches:       reg.Branches(),
		BranchProducts: reg.BranchProducts(),
		Products:       reg.Products(),
		Counters:       counters,
		Clock:          clock,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build branch service: %w", err)
	}
	svc.Branches = branches

	sales, err := services.NewSalesService(services.SalesServiceDeps{
		Sales:    reg.Sales(),
		Branches: reg.Branches(),
		Counters: counters,
		Clock:    clock,
		Logger:   events,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build sales service: %w", err)
	}
	svc.Sales = sales

	if infra.Health != nil {
		system, err := services.NewSystemService(services.SystemServiceDeps{
			HealthRepository: infra.Health,
			Clock:            clock,
			Build:            infra.Build,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build system service: %w", err)
		}
		svc.System = system
	}

	return svc, nil
}
