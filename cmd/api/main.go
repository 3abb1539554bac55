package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	cloudstorage "cloud.google.com/go/storage"
	firebaseauth "firebase.google.com/go/v4/auth"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/Heang0/Digital-Label-sub001/internal/di"
	domain "github.com/Heang0/Digital-Label-sub001/internal/domain"
	"github.com/Heang0/Digital-Label-sub001/internal/handlers"
	"github.com/Heang0/Digital-Label-sub001/internal/platform/auth"
	"github.com/Heang0/Digital-Label-sub001/internal/platform/cache"
	"github.com/Heang0/Digital-Label-sub001/internal/platform/config"
	"github.com/Heang0/Digital-Label-sub001/internal/platform/events"
	pfirestore "github.com/Heang0/Digital-Label-sub001/internal/platform/firestore"
	"github.com/Heang0/Digital-Label-sub001/internal/platform/idempotency"
	"github.com/Heang0/Digital-Label-sub001/internal/platform/observability"
	"github.com/Heang0/Digital-Label-sub001/internal/platform/secrets"
	platformstorage "github.com/Heang0/Digital-Label-sub001/internal/platform/storage"
	"github.com/Heang0/Digital-Label-sub001/internal/repositories"
	firestoreRepo "github.com/Heang0/Digital-Label-sub001/internal/repositories/firestore"
	"github.com/Heang0/Digital-Label-sub001/internal/repositories/memory"
	"github.com/Heang0/Digital-Label-sub001/internal/services"
)

const (
	publicRateLimit     = 120
	publicRateWindow    = time.Minute
	devTokenPrefix      = "dev:"
	devCompanyID        = "dev-company"
	devVendorUID        = "dev-vendor"
	shutdownGracePeriod = 10 * time.Second
)

func main() {
	ctx := context.Background()
	startedAt := time.Now().UTC()

	baseLogger, err := observability.NewLogger(os.Getenv("LOG_LEVEL"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("api")
	ctx = observability.WithLogger(ctx, logger)

	resolver, err := secrets.NewResolver(ctx,
		secrets.WithProject(secretProjectID()),
		secrets.WithLogger(logger.Named("secrets")),
	)
	if err != nil {
		logger.Fatal("failed to initialise secret resolver", zap.Error(err))
	}
	defer func() {
		if err := resolver.Close(); err != nil {
			logger.Warn("secret resolver close error", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx, config.WithSecretResolver(resolver))
	if err != nil {
		var invalid *config.ValidationError
		if errors.As(err, &invalid) {
			logger.Fatal("invalid configuration", zap.Strings("fields", invalid.Fields()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	buildInfo := buildInfoFromEnv(cfg, startedAt)
	metrics := observability.NewMetrics(cfg.Metrics.Prefix)

	var checks []repositories.DependencyCheck
	reg, verifier, storeChecks, err := openStore(ctx, logger, cfg)
	if err != nil {
		logger.Fatal("failed to initialise store", zap.Error(err))
	}
	checks = append(checks, storeChecks...)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := reg.Close(closeCtx); err != nil {
			logger.Warn("store close error", zap.Error(err))
		}
	}()

	infra := di.Infrastructure{
		Logger:  logger,
		Metrics: metrics,
		Build:   buildInfo,
	}

	var idemStore idempotency.Store = idempotency.NewMemoryStore()
	if addr := strings.TrimSpace(cfg.Redis.Addr); addr != "" {
		client := cache.NewRedisClient(cfg.Redis)
		defer client.Close()
		redisIdem, err := idempotency.NewRedisStore(client)
		if err != nil {
			logger.Fatal("failed to initialise idempotency store", zap.Error(err))
		}
		idemStore = redisIdem
		labelCache, err := cache.NewRedisLabelCache(client, cfg.Redis.LabelTTL)
		if err != nil {
			logger.Fatal("failed to initialise label cache", zap.Error(err))
		}
		infra.Cache = labelCache
		checks = append(checks, repositories.DependencyCheck{Name: "redis", Check: labelCache.Ping})
		logger.Info("label cache enabled", zap.String("addr", addr), zap.Duration("ttl", cfg.Redis.LabelTTL))
	}

	if topicName := strings.TrimSpace(cfg.Events.PriceTopic); topicName != "" {
		client, err := pubsub.NewClient(ctx, cfg.Events.ProjectID)
		if err != nil {
			logger.Fatal("failed to initialise pubsub client", zap.Error(err))
		}
		defer client.Close()
		topic := client.Topic(topicName)
		topic.EnableMessageOrdering = true
		publisher, err := events.NewPriceChangePublisher(topic, events.WithPublishTimeout(cfg.Events.PublishTimeout))
		if err != nil {
			logger.Fatal("failed to initialise price publisher", zap.Error(err))
		}
		defer publisher.Stop()
		infra.Events = publisher
		checks = append(checks, repositories.DependencyCheck{
			Name: "pubsub",
			Check: func(ctx context.Context) error {
				ok, err := topic.Exists(ctx)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("topic %s does not exist", topicName)
				}
				return nil
			},
		})
	}

	if cfg.Features.EnableImageUpload {
		client, err := cloudstorage.NewClient(ctx)
		if err != nil {
			logger.Fatal("failed to initialise storage client", zap.Error(err))
		}
		defer func() {
			if err := client.Close(); err != nil {
				logger.Warn("storage close error", zap.Error(err))
			}
		}()
		images, err := platformstorage.NewImageStore(client, cfg.Storage.ImagesBucket)
		if err != nil {
			logger.Fatal("failed to initialise image store", zap.Error(err))
		}
		infra.Images = images
	}

	health, err := repositories.NewDependencyHealthRepository(checks)
	if err != nil {
		logger.Fatal("failed to initialise health checks", zap.Error(err))
	}
	infra.Health = health

	container, err := di.NewContainer(ctx, cfg, reg, infra)
	if err != nil {
		logger.Fatal("failed to build services", zap.Error(err))
	}
	svc := container.Services

	authenticator := auth.NewAuthenticator(verifier, reg.Users())

	labelHandlers := handlers.NewLabelHandlers(svc.Labels, svc.Pricing,
		handlers.WithLabelStream(cfg.Features.EnableLabelStream),
	)
	catalogHandlers := handlers.NewCatalogHandlers(svc.Catalog,
		handlers.WithMaxImageBytes(cfg.Storage.ImageMaxBytes),
	)
	branchHandlers := handlers.NewBranchHandlers(svc.Branches)
	salesHandlers := handlers.NewSalesHandlers(svc.Sales)
	meHandlers := handlers.NewMeHandlers()
	publicHandlers := handlers.NewPublicLabelHandlers(svc.Resolver,
		handlers.WithPublicBaseURL(cfg.Public.BaseURL),
		handlers.WithEditorPath(cfg.Public.EditorBasePath),
		handlers.WithQRProvider(cfg.Public.QRProviderURL),
		handlers.WithPublicRateLimit(publicRateLimit, publicRateWindow),
	)
	healthHandlers := handlers.NewHealthHandlers(
		handlers.WithHealthBuildInfo(buildInfo),
		handlers.WithHealthSystemService(svc.System),
	)

	projectID := traceProjectID(cfg)
	router := handlers.NewRouter(
		handlers.WithMiddlewares(
			observability.InjectLoggerMiddleware(logger.Named("http")),
			observability.TraceMiddleware(projectID),
			observability.RecoveryMiddleware(logger.Named("http")),
			observability.RequestLoggerMiddleware(),
			metrics.Middleware,
			middleware.Compress(5, "application/json", "text/html"),
		),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithMetricsHandler(metrics.Handler()),
		handlers.WithAuthMiddleware(authenticator.RequireFirebaseAuth()),
		handlers.WithPrivateMiddlewares(idempotency.NewMiddleware(idemStore).Handler),
		handlers.WithSiteRoutes(publicHandlers.SiteRoutes),
		handlers.WithPublicRoutes(publicHandlers.APIRoutes),
		handlers.WithMeRoutes(meHandlers.Routes),
		handlers.WithLabelRoutes(labelHandlers.Routes),
		handlers.WithProductRoutes(catalogHandlers.ProductRoutes),
		handlers.WithCategoryRoutes(catalogHandlers.CategoryRoutes),
		handlers.WithBranchRoutes(branchHandlers.Routes),
		handlers.WithSalesRoutes(salesHandlers.Routes),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr), zap.String("store", cfg.Store.Driver))
	go func() {
		serverLogger.Info("digital label api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

// openStore selects the repository driver and the matching token verifier.
func openStore(ctx context.Context, logger *zap.Logger, cfg config.Config) (repositories.Registry, auth.TokenVerifier, []repositories.DependencyCheck, error) {
	switch cfg.Store.Driver {
	case config.StoreDriverMemory:
		reg := memory.NewRegistry()
		reg.PutCompany(domain.Company{ID: devCompanyID, Name: "Development Company", Status: "active"})
		reg.PutUser(domain.User{
			ID:        devVendorUID,
			CompanyID: devCompanyID,
			Name:      "Development Vendor",
			Email:     "vendor@localhost",
			Role:      domain.RoleVendor,
			Status:    "active",
		})
		check := repositories.DependencyCheck{Name: "memory", Check: func(context.Context) error { return nil }}
		if strings.TrimSpace(cfg.Firebase.ProjectID) == "" {
			logger.Warn("memory store without firebase project; accepting development tokens",
				zap.String("token", devTokenPrefix+devVendorUID))
			return reg, developmentVerifier{}, []repositories.DependencyCheck{check}, nil
		}
		verifier, err := auth.NewFirebaseVerifier(ctx, cfg.Firebase)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("firebase verifier: %w", err)
		}
		return reg, verifier, []repositories.DependencyCheck{check}, nil

	default:
		provider := pfirestore.NewProvider(cfg.Firestore)
		if _, err := provider.Client(ctx); err != nil {
			return nil, nil, nil, fmt.Errorf("firestore client: %w", err)
		}
		reg, err := firestoreRepo.NewRegistry(provider)
		if err != nil {
			return nil, nil, nil, err
		}
		verifier, err := auth.NewFirebaseVerifier(ctx, cfg.Firebase)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("firebase verifier: %w", err)
		}
		checks := []repositories.DependencyCheck{{Name: "firestore", Check: provider.Ping}}
		return reg, verifier, checks, nil
	}
}

// developmentVerifier accepts bearer tokens of the form dev:<uid>. It is only
// installed for the memory store when no Firebase project is configured.
type developmentVerifier struct{}

func (developmentVerifier) VerifyIDToken(_ context.Context, idToken string) (*firebaseauth.Token, error) {
	uid, ok := strings.CutPrefix(idToken, devTokenPrefix)
	if !ok || strings.TrimSpace(uid) == "" {
		return nil, errors.New("development token must look like dev:<uid>")
	}
	return &firebaseauth.Token{UID: uid, Claims: map[string]interface{}{}}, nil
}

func buildInfoFromEnv(cfg config.Config, started time.Time) services.BuildInfo {
	version := strings.TrimSpace(os.Getenv("API_BUILD_VERSION"))
	if version == "" {
		version = "dev"
	}
	commit := strings.TrimSpace(os.Getenv("API_BUILD_COMMIT_SHA"))
	if commit == "" {
		commit = "unknown"
	}
	environment := strings.TrimSpace(os.Getenv("API_ENVIRONMENT"))
	if environment == "" {
		environment = "local"
		if cfg.Store.Driver == config.StoreDriverFirestore {
			environment = "cloud"
		}
	}
	return services.BuildInfo{
		Version:     version,
		CommitSHA:   commit,
		Environment: environment,
		StartedAt:   started,
	}
}

func traceProjectID(cfg config.Config) string {
	if id := strings.TrimSpace(cfg.Firebase.ProjectID); id != "" {
		return id
	}
	return strings.TrimSpace(cfg.Firestore.ProjectID)
}

// secretProjectID is read before configuration loads because the resolver is
// needed to load it.
func secretProjectID() string {
	for _, key := range []string{"API_SECRETS_PROJECT_ID", "API_FIREBASE_PROJECT_ID", "GOOGLE_CLOUD_PROJECT"} {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			return v
		}
	}
	return ""
}
