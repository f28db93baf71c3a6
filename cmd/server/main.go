package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Gobusters/ectoenv"
	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/go-playground/validator/v10"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.uber.org/zap"

	"github.com/Ramsey-B/aster/config"
	"github.com/Ramsey-B/aster/internal/handlers"
	"github.com/Ramsey-B/aster/internal/repositories/companylink"
	"github.com/Ramsey-B/aster/internal/repositories/mergecandidate"
	"github.com/Ramsey-B/aster/internal/repositories/sourcemapping"
	"github.com/Ramsey-B/aster/internal/repositories/unifiedentity"
	"github.com/Ramsey-B/aster/pkg/cache"
	"github.com/Ramsey-B/aster/pkg/database"
	"github.com/Ramsey-B/aster/pkg/events"
	"github.com/Ramsey-B/aster/pkg/health"
	"github.com/Ramsey-B/aster/pkg/kafka"
	"github.com/Ramsey-B/aster/pkg/matching"
	"github.com/Ramsey-B/aster/pkg/middleware"
	"github.com/Ramsey-B/aster/pkg/reconcile"
	"github.com/Ramsey-B/aster/pkg/redis"
	"github.com/Ramsey-B/aster/pkg/resolver"
	"github.com/Ramsey-B/aster/pkg/startup"
	"github.com/Ramsey-B/aster/pkg/tracing"
	"github.com/Ramsey-B/aster/pkg/tracing/exporters"
)

func main() {
	_ = godotenv.Load()

	var cfg config.Config
	if err := ectoenv.BindEnv(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx, cfg, logger); err != nil {
		logger.WithError(err).Error("Service exited with error")
		os.Exit(1)
	}
}

func newLogger(cfg config.Config) ectologger.Logger {
	var zapLogger *zap.Logger
	if cfg.PrettyLogs {
		zapLogger, _ = zap.NewDevelopment()
	} else {
		zapLogger, _ = zap.NewProduction()
	}
	return zapadapter.NewZapEctoLogger(zapLogger, nil)
}

func run(ctx context.Context, cfg config.Config, logger ectologger.Logger) error {
	shutdownTracing, err := initTracing(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.WithError(err).Warn("Failed to shut down tracing")
		}
	}()

	app := &application{cfg: cfg, logger: logger}
	checker := health.NewChecker(cfg.AppName)

	boot := startup.NewStartup(logger, cfg.StartupMaxAttempts)
	boot.AddDependency(&dependency{
		name:  "database",
		start: app.startDatabase,
		stop:  app.stopDatabase,
	})
	boot.AddDependency(&dependency{
		name:  "redis",
		start: app.startRedis,
		stop:  app.stopRedis,
	})
	if cfg.KafkaEnabled {
		boot.AddDependency(&dependency{
			name:  "kafka",
			start: app.startKafka,
			stop:  app.stopKafka,
		})
	}
	boot.AddDependency(&dependency{
		name:      "resolver",
		dependsOn: []string{"database", "redis"},
		start:     app.startResolver,
		stop:      func(context.Context) error { return nil },
	})
	if cfg.ReconcileEnabled {
		boot.AddDependency(&dependency{
			name:      "reconciliation",
			dependsOn: []string{"resolver"},
			start:     app.startReconciliation,
			stop:      app.stopReconciliation,
		})
	}
	boot.AddDependency(&dependency{
		name:      "http",
		dependsOn: []string{"resolver"},
		start: func(ctx context.Context) error {
			return app.startHTTP(ctx, checker)
		},
		stop: app.stopHTTP,
	})

	if err := boot.Start(ctx); err != nil {
		return fmt.Errorf("startup failed: %w", err)
	}
	checker.SetReady(true)
	logger.WithContext(ctx).Infof("%s is ready on port %d", cfg.AppName, cfg.Port)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.WithContext(ctx).Infof("Received signal %s, shutting down", sig)
	case <-ctx.Done():
	}

	checker.SetReady(false)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()
	return boot.Stop(stopCtx)
}

// initTracing installs the OTLP tracer provider. When tracing is disabled the
// global no-op provider stays in place and the returned shutdown does nothing.
func initTracing(ctx context.Context, cfg config.Config) (func(context.Context) error, error) {
	if !cfg.TracingEnabled {
		tracing.SetTracer(otel.Tracer(cfg.AppName))
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := exporters.NewOTLPExporter(ctx, exporters.OTLPConfig{
		Endpoint: cfg.TracingOTLPEndpoint,
		Protocol: cfg.TracingOTLPProtocol,
		Insecure: cfg.TracingOTLPInsecure,
	})
	if err != nil {
		return nil, err
	}

	res, err := sdkresource.Merge(sdkresource.Default(), sdkresource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.AppName),
	))
	if err != nil {
		return nil, err
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	tracing.SetTracer(provider.Tracer(cfg.AppName))

	return provider.Shutdown, nil
}

// dependency adapts start/stop funcs to the startup.Dependency interface.
type dependency struct {
	name      string
	dependsOn []string
	start     func(ctx context.Context) error
	stop      func(ctx context.Context) error
}

func (d *dependency) GetName() string          { return d.name }
func (d *dependency) DependsOn() []string      { return d.dependsOn }
func (d *dependency) Start(ctx context.Context) error { return d.start(ctx) }
func (d *dependency) Stop(ctx context.Context) error  { return d.stop(ctx) }

// application holds the wired components so start funcs can share them.
type application struct {
	cfg    config.Config
	logger ectologger.Logger

	db         database.DB
	redis      *redis.Client
	producer   *kafka.Producer
	emitter    *events.Emitter
	matchCache *cache.MatchCache
	resolver   *resolver.Resolver

	entities   *unifiedentity.Repository
	mappings   *sourcemapping.Repository
	links      *companylink.Repository
	candidates *mergecandidate.Repository

	job    *reconcile.Job
	server *echo.Echo
}

func (a *application) startDatabase(ctx context.Context) error {
	db, err := database.Connect(database.ConnectionConfig{
		Driver:          a.cfg.DatabaseDriver,
		Host:            a.cfg.DatabaseHost,
		Port:            a.cfg.DatabasePort,
		UserName:        a.cfg.DatabaseUserName,
		Password:        a.cfg.DatabasePassword,
		Name:            a.cfg.DatabaseName,
		SSLMode:         a.cfg.DatabaseSSLMode,
		MaxOpenConns:    a.cfg.DatabaseMaxOpenConns,
		MaxIdleConns:    a.cfg.DatabaseMaxIdleConns,
		ConnMaxLifetime: a.cfg.DatabaseConnMaxLifetime,
	}, a.logger)
	if err != nil {
		return err
	}

	driver, err := postgres.WithInstance(db.DB, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}
	migrations := database.NewMigrationService(a.logger, &database.MigrationConfig{
		MigrationFolderPath: a.cfg.DatabaseMigrationFolderPath,
		Version:             uint(a.cfg.DatabaseMigrationVersion),
		Force:               a.cfg.DatabaseMigrationForce,
	})
	if err := migrations.Migrate(a.cfg.DatabaseName, driver); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	a.db = database.NewDatabaseInstance(db, a.logger)
	return nil
}

func (a *application) stopDatabase(context.Context) error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}

func (a *application) startRedis(context.Context) error {
	client, err := redis.NewClient(redis.Config{
		Host:     a.cfg.RedisHost,
		Port:     a.cfg.RedisPort,
		Password: a.cfg.RedisPassword,
		DB:       a.cfg.RedisDB,
	}, a.logger)
	if err != nil {
		return err
	}
	a.redis = client
	return nil
}

func (a *application) stopRedis(context.Context) error {
	if a.redis == nil {
		return nil
	}
	return a.redis.Close()
}

func (a *application) startKafka(context.Context) error {
	a.producer = kafka.NewProducer(kafka.ProducerConfig{
		Brokers:      a.cfg.KafkaBrokers,
		Topic:        a.cfg.KafkaOutputTopic,
		BatchSize:    a.cfg.KafkaBatchSize,
		BatchTimeout: time.Duration(a.cfg.KafkaBatchTimeout) * time.Millisecond,
		RequiredAcks: a.cfg.KafkaRequiredAcks,
		Compression:  a.cfg.KafkaCompression,
	}, a.logger)
	a.emitter = events.NewEmitter(a.producer, a.logger)
	return nil
}

func (a *application) stopKafka(context.Context) error {
	if a.producer == nil {
		return nil
	}
	return a.producer.Close()
}

func (a *application) startResolver(ctx context.Context) error {
	a.entities = unifiedentity.NewRepository(a.db, a.logger)
	a.mappings = sourcemapping.NewRepository(a.db, a.logger)
	a.links = companylink.NewRepository(a.db, a.logger)
	a.candidates = mergecandidate.NewRepository(a.db, a.logger)

	a.matchCache = cache.New()
	if a.cfg.CacheWarmEnabled {
		if err := a.matchCache.Warm(ctx, a.mappings, a.logger); err != nil {
			a.logger.WithContext(ctx).WithError(err).Warn("Failed to warm match cache, continuing cold")
		}
	}

	matcher := matching.NewMatcher(a.entities, a.links, matching.Config{
		PersonThreshold:  a.cfg.PersonMatchThreshold,
		CompanyThreshold: a.cfg.CompanyMatchThreshold,
		ContextBoost:     a.cfg.ContextBoostFactor,
	}, a.logger)

	var sink resolver.EventSink
	if a.emitter != nil {
		sink = a.emitter
	}
	a.resolver = resolver.NewResolver(a.entities, a.mappings, a.links, matcher, a.matchCache, sink, a.logger)
	return nil
}

func (a *application) startReconciliation(ctx context.Context) error {
	var sink reconcile.EventSink
	if a.emitter != nil {
		sink = a.emitter
	}
	a.job = reconcile.NewJob(
		a.resolver,
		a.mappings,
		a.candidates,
		redis.NewLocker(a.redis, "aster:"),
		sink,
		reconcile.Config{
			Interval:  time.Duration(a.cfg.ReconcileIntervalSeconds) * time.Second,
			BatchSize: a.cfg.ReconcileBatchSize,
			LockTTL:   time.Duration(a.cfg.ReconcileLockTTLSeconds) * time.Second,
		},
		a.logger,
	)
	return a.job.Start(ctx)
}

func (a *application) stopReconciliation(ctx context.Context) error {
	if a.job == nil {
		return nil
	}
	return a.job.Stop(ctx)
}

type requestValidator struct {
	validate *validator.Validate
}

func (v *requestValidator) Validate(i any) error {
	return v.validate.Struct(i)
}

func (a *application) startHTTP(ctx context.Context, checker *health.Checker) error {
	e := echo.New()
	e.HideBanner = true
	e.Server.ReadTimeout = time.Duration(a.cfg.HttpServerReadTimeoutSeconds) * time.Second
	e.Server.WriteTimeout = time.Duration(a.cfg.HttpServerWriteTimeoutSeconds) * time.Second
	e.Server.IdleTimeout = time.Duration(a.cfg.HttpServerIdleTimeoutSeconds) * time.Second
	e.Server.ReadHeaderTimeout = time.Duration(a.cfg.ReadHeaderTimeoutSeconds) * time.Second
	e.Server.MaxHeaderBytes = a.cfg.MaxHeaderBytes
	e.Validator = &requestValidator{validate: validator.New()}

	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins: a.cfg.AllowOrigins,
		AllowMethods: a.cfg.AllowMethods,
	}))
	e.Use(otelecho.Middleware(a.cfg.AppName))
	e.Use(middleware.Context())
	e.Use(middleware.Logger(a.logger))
	e.HTTPErrorHandler = middleware.Error(a.logger)

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	checker.Register("database", health.DatabaseCheck(a.db))
	checker.Register("redis", health.RedisCheck(a.redis))
	checker.RegisterRoutes(e)

	api := e.Group("/api/v1")
	handlers.NewResolveHandler(a.resolver, a.logger).Register(api)
	handlers.NewEntityHandler(a.resolver, a.logger).Register(api.Group("/entities"))

	var candidateEvents handlers.MergeCandidateEvents
	if a.emitter != nil {
		candidateEvents = a.emitter
	}
	handlers.NewMergeCandidateHandler(a.candidates, a.mappings, a.matchCache, candidateEvents, a.logger).
		Register(api.Group("/merge-candidates"))

	if a.job != nil {
		handlers.NewReconcileHandler(a.job, a.logger).Register(api.Group("/reconcile"))
	}

	a.server = e
	go func() {
		addr := fmt.Sprintf(":%d", a.cfg.Port)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			a.logger.WithError(err).Error("HTTP server stopped unexpectedly")
		}
	}()
	return nil
}

func (a *application) stopHTTP(ctx context.Context) error {
	if a.server == nil {
		return nil
	}
	return a.server.Shutdown(ctx)
}
