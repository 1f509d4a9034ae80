package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Gobusters/ectoinject"
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/Ramsey-B/clover/config"
	"github.com/Ramsey-B/clover/internal/repositories/listing"
	"github.com/Ramsey-B/clover/internal/repositories/productgroup"
	runrepo "github.com/Ramsey-B/clover/internal/repositories/run"
	"github.com/Ramsey-B/clover/internal/repositories/verdict"
	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/events"
	"github.com/Ramsey-B/clover/pkg/graph"
	"github.com/Ramsey-B/clover/pkg/kafka"
	"github.com/Ramsey-B/clover/pkg/middleware"
	"github.com/Ramsey-B/clover/pkg/oracle"
	"github.com/Ramsey-B/clover/pkg/processor"
	grouproutes "github.com/Ramsey-B/clover/pkg/routes/group"
	"github.com/Ramsey-B/clover/pkg/routes/health"
	listingroutes "github.com/Ramsey-B/clover/pkg/routes/listing"
	runroutes "github.com/Ramsey-B/clover/pkg/routes/run"
	verdictroutes "github.com/Ramsey-B/clover/pkg/routes/verdict"
	"github.com/Ramsey-B/clover/pkg/startup"
	"github.com/Ramsey-B/clover/pkg/tracing"

	_ "github.com/lib/pq"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the clover API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.New()
		if err != nil {
			return err
		}

		logger, err := newLogger(cfg)
		if err != nil {
			return err
		}

		shutdownTracing := tracing.NewProvider(cfg.AppName)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTracing(flushCtx); err != nil {
				logger.WithError(err).Warn("Failed to flush tracing")
			}
		}()

		return serve(ctx, cfg, logger)
	},
}

// dependency adapts a start/stop pair to the startup sequence
type dependency struct {
	name  string
	start func(ctx context.Context) error
	stop  func(ctx context.Context) error
}

func (d *dependency) Name() string { return d.name }
func (d *dependency) Start(ctx context.Context) error {
	if d.start == nil {
		return nil
	}
	return d.start(ctx)
}
func (d *dependency) Stop(ctx context.Context) error {
	if d.stop == nil {
		return nil
	}
	return d.stop(ctx)
}

func serve(ctx context.Context, cfg *config.Config, logger ectologger.Logger) error {
	boot := startup.New(logger, cfg.StartupMaxAttempts)

	var db database.DB
	boot.Add(&dependency{
		name: "database",
		start: func(ctx context.Context) error {
			conn, err := database.Connect(dbConfig(cfg), logger)
			if err != nil {
				return err
			}
			db = conn
			return db.PingContext(ctx)
		},
		stop: func(ctx context.Context) error {
			if db == nil {
				return nil
			}
			return db.Close()
		},
	})

	boot.Add(&dependency{
		name: "migrations",
		start: func(ctx context.Context) error {
			svc := database.NewMigrationService(database.MigrationConfig{
				FolderPath:   cfg.DatabaseMigrationFolderPath,
				Version:      cfg.DatabaseMigrationVersion,
				Force:        cfg.DatabaseMigrationForce,
				AutoRollback: cfg.DatabaseMigrationAutoRollback,
			}, dbConfig(cfg), logger)
			return svc.Migrate()
		},
	})

	var graphClient *graph.Client
	if cfg.GraphDBEnabled {
		boot.Add(&dependency{
			name: "graph",
			start: func(ctx context.Context) error {
				client, err := graph.NewClient(graph.Config{
					Host:     cfg.GraphDBHost,
					Port:     cfg.GraphDBPort,
					Username: cfg.GraphDBUser,
					Password: cfg.GraphDBPassword,
				}, logger)
				if err != nil {
					return err
				}
				graphClient = client
				return client.VerifyConnectivity(ctx)
			},
			stop: func(ctx context.Context) error {
				if graphClient == nil {
					return nil
				}
				return graphClient.Close(ctx)
			},
		})
	}

	if err := boot.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := boot.Stop(context.Background()); err != nil {
			logger.WithError(err).Error("Shutdown left dependencies running")
		}
	}()

	listingRepo := listing.NewRepository(db, logger)
	verdictRepo := verdict.NewRepository(db, logger)
	groupRepo := productgroup.NewRepository(db, logger)
	runRepo := runrepo.NewRepository(db, logger)

	arbiter := oracle.New(cfg.OracleAPIKey, cfg.OracleBaseURL, oracle.Config{
		Model:        cfg.OracleModel,
		MaxAttempts:  cfg.OracleMaxAttempts,
		RetryDelay:   cfg.OracleRetryDelay,
		CallsPerSec:  cfg.OracleCallsPerSec,
		MaxBatchSize: cfg.OracleMaxBatchSize,
	}, logger)

	producer := kafka.NewProducer(kafka.ProducerConfig{
		Brokers:      cfg.KafkaBrokers,
		Topic:        cfg.KafkaOutputTopic,
		BatchSize:    cfg.KafkaBatchSize,
		BatchTimeout: time.Duration(cfg.KafkaBatchTimeout) * time.Millisecond,
		RequiredAcks: cfg.KafkaRequiredAcks,
		Compression:  cfg.KafkaCompression,
	}, logger)
	defer producer.Close()

	emitter := events.NewEmitter(producer, logger)

	var projector *graph.Projector
	if graphClient != nil {
		projector = graph.NewProjector(graphClient, logger)
	}

	runService := processor.NewRunService(logger, *cfg, listingRepo, verdictRepo, groupRepo, runRepo, arbiter, emitter, projector)
	proc := processor.NewProcessor(logger, listingRepo, runService)

	var consumer *kafka.Consumer
	if cfg.KafkaConsumerEnabled {
		consumer = kafka.NewConsumer(*cfg, logger, proc.ProcessMessage)
		if err := consumer.Start(ctx); err != nil {
			return err
		}
		defer func() {
			if err := consumer.Stop(); err != nil {
				logger.WithError(err).Error("Failed to stop consumer")
			}
		}()
	}

	container, err := ectoinject.NewDIDefaultContainer()
	if err != nil {
		return err
	}
	if err := ectoinject.RegisterInstance[ectologger.Logger](container, logger); err != nil {
		return err
	}
	if err := ectoinject.RegisterInstance[*listing.Repository](container, listingRepo); err != nil {
		return err
	}
	if err := ectoinject.RegisterInstance[*verdict.Repository](container, verdictRepo); err != nil {
		return err
	}
	if err := ectoinject.RegisterInstance[*productgroup.Repository](container, groupRepo); err != nil {
		return err
	}
	if err := ectoinject.RegisterInstance[*runrepo.Repository](container, runRepo); err != nil {
		return err
	}
	if err := ectoinject.RegisterInstance[*processor.RunService](container, runService); err != nil {
		return err
	}

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = middleware.Error(logger)
	e.Server.ReadTimeout = time.Duration(cfg.HttpServerReadTimeoutSeconds) * time.Second
	e.Server.WriteTimeout = time.Duration(cfg.HttpServerWriteTimeoutSeconds) * time.Second
	e.Server.IdleTimeout = time.Duration(cfg.HttpServerIdleTimeoutSeconds) * time.Second
	e.Server.ReadHeaderTimeout = time.Duration(cfg.ReadHeaderTimeoutSeconds) * time.Second
	e.Server.MaxHeaderBytes = cfg.MaxHeaderBytes

	e.Use(otelecho.Middleware(cfg.AppName))
	e.Use(middleware.Context())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.AllowOrigins,
		AllowMethods: cfg.AllowMethods,
	}))

	var consumerHealth interface{ Health() bool }
	if consumer != nil {
		consumerHealth = consumer
	}
	checker := health.NewChecker(db, consumerHealth, version)
	checker.RegisterRoutes(e)

	api := e.Group("/api/v1")
	listingroutes.Register(api.Group("/listings"))
	grouproutes.Register(api.Group("/groups"))
	runroutes.Register(api.Group("/runs"))
	verdictroutes.Register(api.Group("/verdicts"))

	checker.SetReady(true)

	errCh := make(chan error, 1)
	go func() {
		errCh <- e.Start(fmt.Sprintf(":%d", cfg.Port))
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-ctx.Done():
		logger.Info("Shutting down")
	}

	checker.SetReady(false)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
