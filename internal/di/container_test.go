package di

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	domain "github.com/Heang0/Digital-Label-sub001/internal/domain"
	"github.com/Heang0/Digital-Label-sub001/internal/platform/config"
	"github.com/Heang0/Digital-Label-sub001/internal/platform/observability"
	"github.com/Heang0/Digital-Label-sub001/internal/repositories"
	"github.com/Heang0/Digital-Label-sub001/internal/repositories/memory"
	"github.com/Heang0/Digital-Label-sub001/internal/services"
)

func TestNewContainerRequiresRegistry(t *testing.T) {
	if _, err := NewContainer(context.Background(), config.Config{}, nil, Infrastructure{}); err == nil {
		t.Fatalf("expected error without registry")
	}
}

func TestNewContainerWiresLabelPricingFlow(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 7, 1, 8, 0, 0, 0, time.UTC)
	reg := memory.NewRegistry()
	reg.PutCompany(domain.Company{ID: "company-1", Name: "Corner Market"})
	metrics := observability.NewMetrics("test")

	health, err := repositories.NewDependencyHealthRepository([]repositories.DependencyCheck{
		{Name: "store", Check: func(context.Context) error { return nil }},
	})
	if err != nil {
		t.Fatalf("health repository: %v", err)
	}

	c, err := NewContainer(ctx, config.Config{}, reg, Infrastructure{
		Metrics: metrics,
		Health:  health,
		Build:   services.BuildInfo{Version: "test"},
		Clock:   func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("NewContainer: %v", err)
	}
	defer c.Close(ctx)

	vendor := &domain.User{ID: "vendor-1", CompanyID: "company-1", Role: domain.RoleVendor}

	branch, err := c.Services.Branches.CreateBranch(ctx, services.UpsertBranchCommand{Actor: vendor, Name: "Downtown"})
	if err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}
	if branch.Code != "BR-0001" {
		t.Fatalf("expected first branch code, got %s", branch.Code)
	}
	product, err := c.Services.Catalog.CreateProduct(ctx, services.CreateProductCommand{Actor: vendor, Name: "Oat Milk", Category: "Dairy", BasePrice: 10})
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}
	label, err := c.Services.Labels.CreateLabel(ctx, services.CreateLabelCommand{Actor: vendor, BranchID: branch.ID})
	if err != nil {
		t.Fatalf("CreateLabel: %v", err)
	}
	if _, err := c.Services.Labels.AssignLabel(ctx, services.AssignLabelCommand{Actor: vendor, LabelID: label.ID, ProductID: product.ID}); err != nil {
		t.Fatalf("AssignLabel: %v", err)
	}
	if _, err := c.Services.Pricing.ApplyDiscount(ctx, services.ApplyDiscountCommand{Actor: vendor, LabelID: label.ID, BasePrice: 10, Percent: 20}); err != nil {
		t.Fatalf("ApplyDiscount: %v", err)
	}

	resolved, err := c.Services.Resolver.Resolve(ctx, label.LabelCode)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if resolved.FinalPrice != 8 || resolved.EffectivePrice(now) != 8 {
		t.Fatalf("expected discounted price 8, got final %v", resolved.FinalPrice)
	}

	exposition, err := testutil.GatherAndCount(metrics.Registry())
	if err != nil || exposition == 0 {
		t.Fatalf("expected metrics to be registered, got %d (%v)", exposition, err)
	}

	report, err := c.Services.System.HealthReport(ctx)
	if err != nil {
		t.Fatalf("HealthReport: %v", err)
	}
	if report.Status != domain.HealthStatusOK || !strings.EqualFold(report.Version, "test") {
		t.Fatalf("unexpected health report %+v", report)
	}
}

func TestNewContainerSkipsImagesWhenDisabled(t *testing.T) {
	ctx := context.Background()
	c, err := NewContainer(ctx, config.Config{}, memory.NewRegistry(), Infrastructure{})
	if err != nil {
		t.Fatalf("NewContainer: %v", err)
	}
	vendor := &domain.User{ID: "vendor-1", CompanyID: "company-1", Role: domain.RoleVendor}
	product, err := c.Services.Catalog.CreateProduct(ctx, services.CreateProductCommand{Actor: vendor, Name: "Tea", BasePrice: 2})
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}
	_, err = c.Services.Catalog.UploadProductImage(ctx, services.UploadProductImageCommand{
		Actor: vendor, ProductID: product.ID, ContentType: "image/png", Data: []byte{1},
	})
	if err == nil {
		t.Fatalf("expected image upload to be disabled")
	}
	if c.Services.System != nil {
		t.Fatalf("expected no system service without a health repository")
	}
}
