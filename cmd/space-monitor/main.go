package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/diwise/messaging-golang/pkg/messaging"
	"github.com/diwise/service-chassis/pkg/infrastructure/buildinfo"
	"github.com/diwise/space-monitor/internal/pkg/application/alerts"
	"github.com/diwise/space-monitor/internal/pkg/application/broadcast"
	"github.com/diwise/space-monitor/internal/pkg/application/facility"
	"github.com/diwise/space-monitor/internal/pkg/application/readings"
	"github.com/diwise/space-monitor/internal/pkg/application/simulator"
	"github.com/diwise/space-monitor/internal/pkg/application/webevents"
	"github.com/diwise/space-monitor/internal/pkg/infrastructure/logging"
	"github.com/diwise/space-monitor/internal/pkg/infrastructure/repositories/database"
	"github.com/diwise/space-monitor/internal/pkg/infrastructure/router"
	"github.com/diwise/space-monitor/internal/pkg/infrastructure/tracing"
	"github.com/diwise/space-monitor/internal/pkg/presentation/api"
	"github.com/go-chi/jwtauth/v5"
	"github.com/rs/zerolog"
)

const serviceName string = "space-monitor"
const developmentSecret string = "space-monitor-development-secret"

func defaultFlags() flagMap {
	return flagMap{
		listenAddress: "0.0.0.0",
		servicePort:   "8080",
		logLevel:      "info",

		configurationFile: "",
		uploadsDir:        "./private_uploads",

		dbDriver:   "sqlite",
		dbHost:     "",
		dbUser:     "",
		dbPassword: "",
		dbPort:     "",
		dbName:     "space_monitor",
		dbSSLMode:  "disable",
		sqliteFile: "./space_monitor.db",

		jwtSecret:         "",
		allowedOrigins:    "http://localhost:5173",
		broadcastInterval: "2s",

		simulatorEnabled:  "true",
		simulatorInterval: "5s",
		rabbitMQEnabled:   "false",
	}
}

func main() {
	ctx, flags := parseExternalConfig(context.Background(), defaultFlags())

	serviceVersion := buildinfo.SourceVersion()
	ctx, logger := logging.NewLogger(ctx, serviceName, serviceVersion, flags[logLevel])
	logger.Info().Msg("starting up ...")

	cleanup, err := tracing.Init(ctx, logger, serviceName, serviceVersion)
	exitIf(err, logger, "failed to init tracing")
	defer cleanup()

	cfg, err := loadAppConfig(flags[configurationFile])
	exitIf(err, logger, "could not load configuration file")

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := initialize(ctx, flags, cfg)
	exitIf(err, logger, "failed to initialize service")

	a.start(ctx)

	server := &http.Server{
		Addr:              flags[listenAddress] + ":" + flags[servicePort],
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		logger.Info().Msg("shutting down")
		server.Shutdown(shutdownCtx)
	}()

	logger.Info().Str("addr", server.Addr).Msg("listening for connections")

	err = server.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		exitIf(err, logger, "failed to start request router")
	}

	a.close()
}

type app struct {
	router      http.Handler
	repo        database.Repository
	hub         *broadcast.Hub
	broadcaster *broadcast.Broadcaster
	simulator   *simulator.Simulator
	messenger   messaging.MsgContext
	web         webevents.WebEvents
}

func initialize(ctx context.Context, flags flagMap, cfg *appConfig) (*app, error) {
	log := logging.GetLoggerFromContext(ctx)

	connect, err := database.NewConnector(ctx, database.ConnectorConfig{
		Driver:   flags[dbDriver],
		Host:     flags[dbHost],
		Port:     flags[dbPort],
		Username: flags[dbUser],
		Password: flags[dbPassword],
		DbName:   flags[dbName],
		SslMode:  flags[dbSSLMode],
		File:     flags[sqliteFile],
	})
	if err != nil {
		return nil, err
	}

	repo, err := database.New(connect)
	if err != nil {
		return nil, err
	}

	if err = database.SeedDeviceTypes(ctx, repo, cfg.DeviceTypes); err != nil {
		return nil, err
	}

	if err = database.SeedFloorplans(ctx, repo, cfg.Floorplans); err != nil {
		return nil, err
	}

	a := &app{repo: repo}

	var publisher alerts.Publisher
	if flags[rabbitMQEnabled] == "true" {
		a.messenger, err = messaging.Initialize(messaging.LoadConfiguration(serviceName, log))
		if err != nil {
			return nil, err
		}
		publisher = a.messenger
	}

	a.web = webevents.New()

	notifier, err := alerts.NewNotifier(publisher, a.web, &cfg.Config)
	if err != nil {
		return nil, err
	}

	secret := flags[jwtSecret]
	if secret == "" {
		log.Warn().Msg("JWT_SECRET is not set, using the development secret")
		secret = developmentSecret
	}

	svc := facility.New(repo, notifier, jwtauth.New("HS256", []byte(secret), nil))

	if a.messenger != nil {
		a.messenger.RegisterTopicMessageHandler(readings.TopicName, readings.NewReadingHandler(svc))
	}

	interval, err := time.ParseDuration(flags[broadcastInterval])
	if err != nil {
		return nil, err
	}

	a.hub = broadcast.NewHub()
	a.broadcaster = broadcast.NewBroadcaster(a.hub, svc, interval)

	if flags[simulatorEnabled] == "true" {
		simInterval, err := time.ParseDuration(flags[simulatorInterval])
		if err != nil {
			return nil, err
		}
		a.simulator = simulator.New(svc, simInterval, time.Now().UnixNano())
	}

	origins := splitOrigins(flags[allowedOrigins])

	r := router.New(serviceName, origins...)
	a.router = api.RegisterHandlers(ctx, r, api.Config{
		UploadsDir:     flags[uploadsDir],
		AllowedOrigins: origins,
		Events:         a.web.Server(),
	}, svc, a.hub)

	return a, nil
}

func (a *app) start(ctx context.Context) {
	go a.hub.Run(ctx)
	go a.broadcaster.Run(ctx)

	if a.simulator != nil {
		go a.simulator.Run(ctx)
	}
}

func (a *app) close() {
	a.web.Shutdown()
	if a.messenger != nil {
		a.messenger.Close()
	}
	a.repo.Close()
}

func parseExternalConfig(ctx context.Context, flags flagMap) (context.Context, flagMap) {
	// Allow environment variables to override certain defaults
	envOrDef := func(key string, def string) string {
		if value, ok := os.LookupEnv(key); ok {
			return value
		}
		return def
	}

	flags[listenAddress] = envOrDef("LISTEN_ADDRESS", flags[listenAddress])
	flags[servicePort] = envOrDef("SERVICE_PORT", flags[servicePort])
	flags[logLevel] = envOrDef("LOG_LEVEL", flags[logLevel])
	flags[uploadsDir] = envOrDef("UPLOADS_DIR", flags[uploadsDir])

	flags[dbDriver] = envOrDef("DB_DRIVER", flags[dbDriver])

	switch flags[dbDriver] {
	case "", "sqlite":
		flags[sqliteFile] = envOrDef("SQLITE_PATH", flags[sqliteFile])
	case "mysql":
		flags[dbPort] = "3306"
		flags[dbHost] = envOrDef("MYSQL_HOST", flags[dbHost])
		flags[dbPort] = envOrDef("MYSQL_PORT", flags[dbPort])
		flags[dbName] = envOrDef("MYSQL_DBNAME", flags[dbName])
		flags[dbUser] = envOrDef("MYSQL_USER", flags[dbUser])
		flags[dbPassword] = envOrDef("MYSQL_PASSWORD", flags[dbPassword])
	default:
		flags[dbPort] = "5432"
		flags[dbHost] = envOrDef("POSTGRES_HOST", flags[dbHost])
		flags[dbPort] = envOrDef("POSTGRES_PORT", flags[dbPort])
		flags[dbName] = envOrDef("POSTGRES_DBNAME", flags[dbName])
		flags[dbUser] = envOrDef("POSTGRES_USER", flags[dbUser])
		flags[dbPassword] = envOrDef("POSTGRES_PASSWORD", flags[dbPassword])
		flags[dbSSLMode] = envOrDef("POSTGRES_SSLMODE", flags[dbSSLMode])
	}

	flags[jwtSecret] = envOrDef("JWT_SECRET", flags[jwtSecret])
	flags[allowedOrigins] = envOrDef("CORS_ALLOWED_ORIGINS", flags[allowedOrigins])
	flags[broadcastInterval] = envOrDef("BROADCAST_INTERVAL", flags[broadcastInterval])
	flags[simulatorEnabled] = envOrDef("SIMULATOR_ENABLED", flags[simulatorEnabled])
	flags[simulatorInterval] = envOrDef("SIMULATOR_INTERVAL", flags[simulatorInterval])
	flags[rabbitMQEnabled] = envOrDef("RABBITMQ_ENABLED", flags[rabbitMQEnabled])

	apply := func(f flagType) func(string) error {
		return func(value string) error {
			flags[f] = value
			return nil
		}
	}

	// Allow command line arguments to override defaults and environment variables
	flag.Func("config", "configuration file with notification subscribers and seed data", apply(configurationFile))
	flag.Func("uploads", "directory served under /private_uploads", apply(uploadsDir))
	flag.Func("simulate", "enable simulated sensor readings (true/false)", apply(simulatorEnabled))
	flag.Parse()

	return ctx, flags
}

func exitIf(err error, logger zerolog.Logger, msg string) {
	if err != nil {
		logger.Fatal().Err(err).Msg(msg)
	}
}
