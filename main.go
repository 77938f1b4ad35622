package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/gov-dx-sandbox/attribute-forms/internal/config"
	"github.com/gov-dx-sandbox/attribute-forms/shared/monitoring"
	"github.com/gov-dx-sandbox/attribute-forms/shared/redis"
	v1 "github.com/gov-dx-sandbox/attribute-forms/v1"
	"github.com/gov-dx-sandbox/attribute-forms/v1/actions"
	"github.com/gov-dx-sandbox/attribute-forms/v1/attributes"
	"github.com/gov-dx-sandbox/attribute-forms/v1/handlers"
	"github.com/gov-dx-sandbox/attribute-forms/v1/hooks"
	"github.com/gov-dx-sandbox/attribute-forms/v1/models"
	"github.com/gov-dx-sandbox/attribute-forms/v1/notify"
	"github.com/gov-dx-sandbox/attribute-forms/v1/router"
	"github.com/gov-dx-sandbox/attribute-forms/v1/security"
	"github.com/gov-dx-sandbox/attribute-forms/v1/services"
)

func main() {
	configPath := flag.String("config", config.DefaultConfigPath, "path to the YAML configuration file")
	flag.Parse()

	// Load .env file if it exists (optional - fails silently if not found)
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(newLogHandler(cfg.Logging))
	slog.SetDefault(logger)
	slog.Info("Starting attribute forms service", "environment", cfg.Environment, "port", cfg.Service.Port)

	metricsCfg := monitoring.DefaultConfig(cfg.Service.Name)
	metricsCfg.ExporterType = cfg.Metrics.Exporter
	metricsCfg.OTLPEndpoint = cfg.Metrics.OTLPEndpoint
	if err := monitoring.Initialize(metricsCfg); err != nil {
		slog.Warn("Failed to initialize metrics, continuing without them", "error", err)
	}

	gormDB, err := v1.ConnectGormDB(v1.NewDatabaseConfig(cfg.DB))
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	var redisClient *redis.RedisClient
	if cfg.Redis.Addr != "" {
		redisClient, err = redis.NewClient(redis.Config{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err != nil {
			slog.Error("Failed to connect to redis", "addr", cfg.Redis.Addr, "error", err)
			os.Exit(1)
		}
		defer redisClient.Close()
		slog.Info("Connected to redis", "addr", cfg.Redis.Addr)
	}

	var mongoDB *mongo.Database
	if cfg.Mongo.URI != "" {
		client, err := connectMongo(cfg.Mongo.URI)
		if err != nil {
			slog.Error("Failed to connect to mongo", "error", err)
			os.Exit(1)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = client.Disconnect(ctx)
		}()
		mongoDB = client.Database(cfg.Mongo.Database)
	}

	mailer, err := notify.NewMailer(cfg.Mail)
	if err != nil {
		slog.Error("Failed to create mailer", "error", err)
		os.Exit(1)
	}
	notifier := notify.NewDispatcher(mailer, cfg.Mail, cfg.Site)

	actionTypes := actions.NewRegistry()
	actionTypes.MustRegister(actions.NewSendEmailAction(mailer, notifier.From()))
	actionTypes.MustRegister(actions.NewWebhookAction(nil))
	if redisClient != nil {
		actionTypes.MustRegister(actions.NewRedisStreamAction(redisClient, cfg.Redis.EventStream))
	}
	if mongoDB != nil {
		actionTypes.MustRegister(actions.NewDocumentArchiveAction(actions.NewMongoDocumentStore(mongoDB)))
	}

	submitHooks := hooks.NewDispatcher()
	var banList security.BanList
	staticBans, err := security.NewCIDRBanList(cfg.Security.BannedIPs)
	if err != nil {
		slog.Error("Invalid banned IP configuration", "error", err)
		os.Exit(1)
	}
	banList = staticBans
	if redisClient != nil {
		banList = security.CompositeBanList{staticBans, security.NewRedisBanList(redisClient.GetClient(), cfg.Redis.BannedIPsKey)}
		submitHooks.On(models.EventPostSubmit, hooks.StreamListener(redisClient, cfg.Redis.EventStream))
	}

	attributeTypes := attributes.NewDefaultRegistry()
	keys := services.NewFieldKeyService(gormDB, attributeTypes)
	formTypes := services.NewFormTypeService(gormDB, keys)
	instances := services.NewFormInstanceService(gormDB, formTypes, actionTypes)
	tokens := security.NewTokenService(cfg.Security.CSRFSecret, cfg.Security.TokenTTL)

	pipeline := services.NewSubmissionPipeline(gormDB, services.PipelineDependencies{
		Instances: instances,
		FormTypes: formTypes,
		Keys:      keys,
		Actions:   actionTypes,
		Notifier:  notifier,
		Tokens:    tokens,
		Captcha:   security.NewCaptchaVerifier(cfg.Captcha),
		BanList:   banList,
		Spam:      security.NewRuleSpamClassifier(cfg.Spam),
		Hooks:     submitHooks,
		SiteName:  cfg.Site.Name,
	})

	v1Router := router.NewV1Router(
		handlers.NewAdminHandler(keys, formTypes, instances, actionTypes, attributeTypes),
		handlers.NewFormHandler(services.NewFormRenderer(instances, formTypes, tokens), pipeline),
		handlers.NewResultsHandler(services.NewResultsService(gormDB, formTypes, keys)),
		handlers.NewHealthHandler(gormDB),
		router.Options{
			AllowedOrigins:  cfg.Service.AllowedOrigins,
			SubmitRateLimit: cfg.Security.RateLimit,
		},
	)

	server := &http.Server{
		Addr:         net.JoinHostPort(cfg.Service.Host, cfg.Service.Port),
		Handler:      v1Router.Handler(),
		ReadTimeout:  cfg.Service.ReadTimeout,
		WriteTimeout: cfg.Service.WriteTimeout,
		IdleTimeout:  cfg.Service.IdleTimeout,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("Attribute forms service listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-stop
	slog.Info("Shutting down the server")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		slog.Error("Server shutdown failed", "error", err)
	}
	if sqlDB, err := gormDB.DB(); err == nil {
		_ = sqlDB.Close()
	}
	slog.Info("Server gracefully stopped")
}

func newLogHandler(cfg config.LoggingConfig) slog.Handler {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{AddSource: true, Level: level}
	if strings.EqualFold(cfg.Format, "text") {
		return slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.NewJSONHandler(os.Stdout, opts)
}

func connectMongo(uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return client, nil
}
