package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jyush98/jason-co-ecom-sub003/internal/breaker"
	"github.com/jyush98/jason-co-ecom-sub003/internal/cache"
	"github.com/jyush98/jason-co-ecom-sub003/internal/cart"
	"github.com/jyush98/jason-co-ecom-sub003/internal/catalog"
	"github.com/jyush98/jason-co-ecom-sub003/internal/checkout"
	"github.com/jyush98/jason-co-ecom-sub003/internal/config"
	"github.com/jyush98/jason-co-ecom-sub003/internal/consumer"
	servicehealth "github.com/jyush98/jason-co-ecom-sub003/internal/health"
	apihttp "github.com/jyush98/jason-co-ecom-sub003/internal/http"
	"github.com/jyush98/jason-co-ecom-sub003/internal/order"
	"github.com/jyush98/jason-co-ecom-sub003/internal/payment"
	"github.com/jyush98/jason-co-ecom-sub003/internal/pricing"
	"github.com/jyush98/jason-co-ecom-sub003/internal/publisher"
	"github.com/jyush98/jason-co-ecom-sub003/internal/repository"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

const serviceName = "checkout-service"

func main() {
	app := &cli.App{
		Name:  serviceName,
		Usage: "cart pricing, checkout and order lifecycle",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "pricing",
				Usage:   "path to the pricing YAML document",
				EnvVars: []string{"CHECKOUT_PRICING_FILE"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP API, gRPC health endpoint and background workers",
				Action: serve,
			},
			{
				Name:   "migrate",
				Usage:  "apply order and catalog migrations, then exit",
				Action: migrateOnly,
			},
		},
		DefaultCommand: "serve",
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("checkout-service exited")
	}
}

func setupLogger(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = time.RFC3339Nano
	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Str("service", serviceName).Logger()
}

func loadConfig(c *cli.Context) (config.Service, config.Pricing, error) {
	cfg, err := config.LoadService()
	if err != nil {
		return config.Service{}, config.Pricing{}, err
	}
	setupLogger(cfg.LogLevel)

	path := c.String("pricing")
	if path == "" {
		path = cfg.PricingFile
	}
	pricingCfg, err := config.LoadPricing(path)
	if err != nil {
		return config.Service{}, config.Pricing{}, err
	}
	return cfg, pricingCfg, nil
}

func credentials(cfg config.Service) *repository.Credentials {
	return &repository.Credentials{
		Host:              cfg.DBHost,
		Port:              cfg.DBPort,
		User:              cfg.DBUser,
		Password:          cfg.DBPassword,
		DBName:            cfg.DBName,
		MigrationsDirPath: cfg.OrderMigrationsPath,
	}
}

func migrateOnly(c *cli.Context) error {
	cfg, _, err := loadConfig(c)
	if err != nil {
		return err
	}

	creds := credentials(cfg)
	db, err := repository.ConnectPostgres(c.Context, creds)
	if err != nil {
		return err
	}
	orders := repository.NewPostgresOrderRepository(db)
	defer orders.Close()
	if err := orders.RunMigrations(creds); err != nil {
		return err
	}
	log.Info().Msg("order migrations completed")

	products, err := catalog.NewRepository(cfg.CatalogPath)
	if err != nil {
		return err
	}
	defer products.Close()
	if err := products.RunMigrations(cfg.CatalogMigrationsPath); err != nil {
		return err
	}
	log.Info().Msg("catalog migrations completed")
	return nil
}

func serve(c *cli.Context) error {
	cfg, pricingCfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	log.Info().
		Str("currency", pricingCfg.Currency).
		Strs("jurisdictions", pricingCfg.Jurisdictions()).
		Msg("checkout-service starting")

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Orders (Postgres)
	creds := credentials(cfg)
	db, err := repository.ConnectPostgres(ctx, creds)
	if err != nil {
		return err
	}
	orderRepo := repository.NewPostgresOrderRepository(db)
	defer orderRepo.Close()
	if err := orderRepo.RunMigrations(creds); err != nil {
		return err
	}
	log.Info().Msg("order migrations completed")

	// Catalog (SQLite)
	products, err := catalog.NewRepository(cfg.CatalogPath)
	if err != nil {
		return err
	}
	defer products.Close()
	if err := products.RunMigrations(cfg.CatalogMigrationsPath); err != nil {
		return err
	}

	// Carts (MongoDB)
	mongoDB, err := repository.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		return err
	}
	defer func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := mongoDB.Client().Disconnect(disconnectCtx); err != nil {
			log.Warn().Err(err).Msg("mongo disconnect")
		}
	}()
	cartRepo := repository.NewMongoCartRepository(mongoDB)
	if err := cartRepo.CreateIndexes(ctx); err != nil {
		return err
	}

	// Cart cache and checkout sessions (Redis)
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}

	breakers := breaker.Config{Failures: cfg.BreakerFailures, Cooldown: cfg.BreakerCooldown}
	engine := pricing.NewEngineFromConfig(pricingCfg)
	carts := cart.NewService(
		cartRepo,
		cache.NewRedisCache(rdb),
		breaker.NewProducts(products, breakers),
		cart.NewAggregator(pricingCfg.Limits),
		engine.Promos(),
	)
	orders := order.NewService(orderRepo, order.NewMachine(pricingCfg.ReturnWindow))
	quoter := checkout.NewStaticQuoter(pricingCfg.ShippingMethods)
	orchestrator := checkout.NewOrchestrator(
		cache.NewRedisSessionStore(rdb, cfg.SessionTTL),
		carts,
		engine,
		quoter,
		breaker.NewPayments(payment.NewSimulator(payment.RandomStatus{}), breakers),
		orderRepo,
		orders,
		cfg.PaymentTimeout,
	)

	router := apihttp.NewRouter(apihttp.Handlers{
		Cart:     apihttp.NewCartHandler(carts, cfg.RequestTimeout),
		Pricing:  apihttp.NewPricingHandler(carts, engine, quoter, cfg.RequestTimeout),
		Checkout: apihttp.NewCheckoutHandler(orchestrator, cfg.RequestTimeout),
		Orders:   apihttp.NewOrdersHandler(orders, cfg.RequestTimeout),
		Admin:    apihttp.NewAdminHandler(orders, cfg.RequestTimeout),
	}, apihttp.RouterConfig{
		Logger:         log.Logger,
		RequestTimeout: cfg.RequestTimeout,
		AdminToken:     cfg.AdminToken,
	})

	httpServer := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	reflection.Register(grpcServer)

	monitor := servicehealth.NewMonitor(serviceName, healthServer, map[string]servicehealth.CheckFunc{
		"postgres": orderRepo.Ping,
		"catalog":  products.Ping,
		"mongodb": func(ctx context.Context) error {
			return mongoDB.Client().Ping(ctx, nil)
		},
		"redis": func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		},
	})

	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		return fmt.Errorf("failed to listen on grpc port: %w", err)
	}

	poller := publisher.NewOutboxPoller(orderRepo, publisher.NewKafkaWriter(cfg.OrderEventsTopic, cfg.KafkaBrokers...))
	payments := consumer.NewConsumer(orchestrator, consumer.NewKafkaReader(cfg.PaymentEventsTopic, cfg.ConsumerGroup, cfg.KafkaBrokers...))

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("addr", httpServer.Addr).Msg("http server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		log.Info().Str("addr", lis.Addr().String()).Msg("grpc health server listening")
		if err := grpcServer.Serve(lis); err != nil {
			return fmt.Errorf("grpc server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return monitor.Run(gctx)
	})

	g.Go(func() error {
		return poller.Run(gctx)
	})

	g.Go(func() error {
		return payments.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down checkout-service...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("http server forced to shutdown")
		}
		grpcServer.GracefulStop()
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info().Msg("checkout-service stopped")
	return nil
}
