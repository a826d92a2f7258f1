// Command fern starts the record linkage API and its background job runner.
//
// The API accepts linkage job specs, persists them to PostgreSQL, and the
// runner executes them against the embedding provider and match oracle,
// emitting lifecycle events to Kafka as runs complete.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Gobusters/ectoenv"
	"github.com/Gobusters/ectologger"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/Ramsey-B/fern/config"
	"github.com/Ramsey-B/fern/internal/handlers"
	linkagejobrepo "github.com/Ramsey-B/fern/internal/repositories/linkagejob"
	oraclelabelrepo "github.com/Ramsey-B/fern/internal/repositories/oraclelabel"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/embeddings"
	"github.com/Ramsey-B/fern/pkg/events"
	"github.com/Ramsey-B/fern/pkg/jobs"
	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/linkage"
	"github.com/Ramsey-B/fern/pkg/oracle"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const version = "0.1.0"

func main() {
	// Missing .env is fine outside local development.
	_ = godotenv.Load()

	var cfg config.Config
	if err := ectoenv.BindEnv(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	zapLogger, err := newZapLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer zapLogger.Sync()

	logger := ectologger.NewEctoLogger(func(msg ectologger.EctoLogMessage) {
		payload, err := json.Marshal(msg)
		if err != nil {
			zapLogger.Error("failed to marshal log message", zap.Error(err))
			return
		}
		zapLogger.Info(string(payload))
	})

	tracerProvider := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tracerProvider)
	tracing.SetTracer(otel.Tracer(cfg.AppName))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(ctx, database.Config{
		Driver:          cfg.DatabaseDriver,
		Host:            cfg.DatabaseHost,
		Port:            cfg.DatabasePort,
		User:            cfg.DatabaseUserName,
		Password:        cfg.DatabasePassword,
		Name:            cfg.DatabaseName,
		SSLMode:         cfg.DatabaseSSLMode,
		MaxOpenConns:    cfg.DatabaseMaxOpenConns,
		MaxIdleConns:    cfg.DatabaseMaxIdleConns,
		ConnMaxLifetime: cfg.DatabaseConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.WithError(err).Error("Failed to connect to database")
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Migrate(cfg.DatabaseMigrationFolderPath, cfg.DatabaseName); err != nil {
		logger.WithError(err).Error("Failed to run migrations")
		os.Exit(1)
	}

	var emitter *events.Emitter
	if cfg.KafkaEnabled {
		producer := kafka.NewProducer(kafka.ProducerConfig{
			Brokers:      cfg.KafkaBrokers,
			Topic:        cfg.KafkaOutputTopic,
			BatchSize:    cfg.KafkaBatchSize,
			BatchTimeout: time.Duration(cfg.KafkaBatchTimeout) * time.Millisecond,
			RequiredAcks: cfg.KafkaRequiredAcks,
			Compression:  cfg.KafkaCompression,
		}, logger)
		defer producer.Close()
		emitter = events.NewEmitter(producer, logger)
	}

	provider := embeddings.NewClient(embeddings.ClientConfig{
		BaseURL:        cfg.EmbeddingBaseURL,
		APIKey:         cfg.EmbeddingAPIKey,
		Model:          cfg.EmbeddingModel,
		BatchSize:      cfg.EmbeddingBatchSize,
		MaxInFlight:    cfg.EmbeddingMaxInFlight,
		RequestTimeout: time.Duration(cfg.EmbeddingTimeoutSeconds) * time.Second,
	}, logger)

	matchOracle := oracle.NewClient(oracle.ClientConfig{
		BaseURL:        cfg.OracleBaseURL,
		APIKey:         cfg.OracleAPIKey,
		Model:          cfg.OracleModel,
		MaxInFlight:    cfg.OracleMaxInFlight,
		RequestTimeout: time.Duration(cfg.OracleTimeoutSeconds) * time.Second,
	}, logger)

	labelCache := oraclelabelrepo.NewRepository(db, logger)
	jobRepo := linkagejobrepo.NewRepository(db, logger)

	engine := linkage.NewEngine(logger, provider, matchOracle, labelCache, linkage.Config{
		BootstrapBudget: cfg.BootstrapBudget,
		BatchSize:       cfg.BatchSize,
		Window:          cfg.GradientWindow,
		Sigma:           cfg.SamplingSigma,
		LabelCap:        cfg.LabelCap,
		Seed:            cfg.SamplingSeed,
	})

	runner := jobs.NewRunner(logger, engine, jobRepo, emitter, jobs.Config{
		Workers:      cfg.JobWorkerCount,
		PollInterval: time.Duration(cfg.JobPollIntervalSeconds) * time.Second,
	})
	runner.Start(ctx)

	e := echo.New()
	e.HideBanner = true
	e.Use(otelecho.Middleware(cfg.AppName))
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins: cfg.AllowOrigins,
		AllowMethods: cfg.AllowMethods,
	}))

	healthHandler := handlers.NewHealthHandler(db, version)
	healthHandler.Register(e.Group("/health"))

	jobHandler := handlers.NewLinkageJobHandler(jobRepo, validator.New(), logger)
	jobHandler.Register(e.Group("/api/v1/linkage-jobs"))

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           e,
		ReadTimeout:       time.Duration(cfg.HttpServerReadTimeoutSeconds) * time.Second,
		WriteTimeout:      time.Duration(cfg.HttpServerWriteTimeoutSeconds) * time.Second,
		IdleTimeout:       time.Duration(cfg.HttpServerIdleTimeoutSeconds) * time.Second,
		ReadHeaderTimeout: time.Duration(cfg.ReadHeaderTimeoutSeconds) * time.Second,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		<-ctx.Done()
		logger.Info("Shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Error("Server shutdown error")
		}
	}()

	healthHandler.SetReady(true)
	logger.WithField("port", cfg.Port).Infof("%s listening on :%d", cfg.AppName, cfg.Port)

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.WithError(err).Error("Server error")
		os.Exit(1)
	}

	runner.Wait()
	logger.Info("Service stopped")
}

func newZapLogger(cfg config.Config) (*zap.Logger, error) {
	if cfg.PrettyLogs {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
