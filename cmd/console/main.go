package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/aquamarinepk/aqm"
	"github.com/aquamarinepk/aqm/middleware"
	"github.com/google/uuid"

	"github.com/venueops/opssync/internal/console"
	"github.com/venueops/opssync/internal/ticket"
)

const (
	appNamespace = "CONSOLE"
	appName      = "console"
	appVersion   = "0.1.0"
)

func main() {
	config, err := aqm.LoadConfig(appNamespace, os.Args[1:])
	if err != nil {
		log.Fatalf("Cannot setup %s(%s): %v", appName, appVersion, err)
	}

	logLevel, _ := config.GetString("log.level")
	logger := aqm.NewLogger(logLevel)

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT,
	)
	defer stop()

	hubURL, _ := config.GetString("services.hub.url")
	if hubURL == "" {
		hubURL = "http://localhost:8080"
	}

	natsURL, _ := config.GetString("nats.url")
	if natsURL == "" {
		natsURL = "nats://localhost:4222"
	}

	scope := console.Scope{UserID: uuid.New()}
	if userIDStr, _ := config.GetString("console.user_id"); userIDStr != "" {
		userID, err := uuid.Parse(userIDStr)
		if err != nil {
			log.Fatalf("Invalid console.user_id: %v", err)
		}
		scope.UserID = userID
	}
	if locationIDStr, _ := config.GetString("console.location_id"); locationIDStr != "" {
		locationID, err := uuid.Parse(locationIDStr)
		if err != nil {
			log.Fatalf("Invalid console.location_id: %v", err)
		}
		scope.LocationID = &locationID
	}

	store := console.NewStore(logger)
	api := console.NewHubSnapshotAPI(hubURL, logger)
	dialer := console.NewNATSDialer(natsURL)

	trans := ticket.NewTransitioner(ticket.DefaultPolicy())
	gateway := console.NewGateway(hubURL, store, trans, logger)
	commands := console.NewRetryingGateway(gateway, console.DefaultRetryConfig(), logger)

	session := console.NewSession(scope, store, api, dialer, commands, logger)
	handler := console.NewHandler(session, logger)

	stack := middleware.DefaultStack(middleware.StackOptions{
		Logger:      logger,
		DisableCORS: true,
	})
	stack = append(stack, middleware.InternalOnly())

	sessionLifecycle := aqm.LifecycleHooks{
		OnStart: func(ctx context.Context) error { return session.Start(ctx) },
		OnStop:  func(ctx context.Context) error { return session.Stop(ctx) },
	}

	options := []aqm.Option{
		aqm.WithConfig(config),
		aqm.WithLogger(logger),
		aqm.WithHTTPMiddleware(stack...),
		aqm.WithHTTPServerModules("web.port", handler),
		aqm.WithLifecycle(sessionLifecycle),
		aqm.WithHealthChecks(appName),
	}

	ms := aqm.NewMicro(options...)
	logger.Infof("Starting %s(%s)", appName, appVersion)

	if err := ms.Run(ctx); err != nil {
		log.Fatalf("%s(%s) stopped with error: %v", appName, appVersion, err)
	}

	logger.Infof("%s(%s) stopped", appName, appVersion)
}
