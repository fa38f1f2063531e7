package app

import (
	"context"
	"strconv"
	"time"

	"github.com/aquamarinepk/aqm"
	aqmevents "github.com/aquamarinepk/aqm/events"
	"github.com/aquamarinepk/aqm/middleware"

	"github.com/venueops/opssync/internal/events"
	"github.com/venueops/opssync/internal/hub"
	"github.com/venueops/opssync/internal/mongo"
	"github.com/venueops/opssync/internal/ticket"
	"github.com/venueops/opssync/pkg"
	"github.com/venueops/opssync/pkg/event"
)

const (
	AppName    = "hub"
	AppVersion = "0.1.0"
)

// App encapsulates the hub service application
type App struct {
	config        *aqm.Config
	logger        aqm.Logger
	micro         *aqm.Micro
	deliveryRepo  *mongo.DeliveryRepo
	emergencyRepo *mongo.EmergencyRepo
}

// New creates a new hub service application
func New(config *aqm.Config, logger aqm.Logger) (*App, error) {
	return &App{
		config: config,
		logger: logger,
	}, nil
}

// Initialize sets up all dependencies and components
func (a *App) Initialize(ctx context.Context) error {
	a.deliveryRepo = mongo.NewDeliveryRepo(a.config, a.logger)
	a.emergencyRepo = mongo.NewEmergencyRepo(a.config, a.logger)

	natsURL, _ := a.config.GetString("nats.url")
	if natsURL == "" {
		natsURL = "nats://localhost:4222"
	}

	// Upserts go over core NATS by default; with streaming enabled the
	// emergency topic gains JetStream retention so alert history survives
	// restarts.
	var emergencyStream *pkg.NATSStream
	var eventPublisher aqmevents.Publisher

	streamEnabled, _ := a.config.GetString("nats.stream.enabled")
	if streamEnabled == "true" {
		streamCfg := pkg.NATSStreamConfig{
			URL:          natsURL,
			StreamName:   "OPS_EVENTS",
			Topic:        event.EmergenciesTopic,
			ConsumerName: "hub-publisher",
			MaxAge:       24 * time.Hour,
			MaxMsgs:      0,
		}
		stream, err := pkg.NewNATSStream(streamCfg)
		if err != nil {
			return err
		}
		a.logger.Info("NATS stream initialized for persistent emergency events")
		emergencyStream = stream

		corePublisher, err := pkg.NewNATSPublisher(natsURL)
		if err != nil {
			return err
		}
		eventPublisher = &splitPublisher{
			emergencies: stream,
			rest:        corePublisher,
		}
	} else {
		publisher, err := pkg.NewNATSPublisher(natsURL)
		if err != nil {
			return err
		}
		eventPublisher = publisher
	}

	intakeSubscriber, err := pkg.NewNATSSubscriber(natsURL)
	if err != nil {
		return err
	}

	trans := ticket.NewTransitioner(defaultPolicy(a.config))
	service := hub.NewService(a.deliveryRepo, a.emergencyRepo, eventPublisher, trans, a.logger)

	eventSubscriber := events.NewRequestSubscriber(intakeSubscriber, service, a.logger)

	handler := hub.NewHandler(service, a.config, a.logger)

	stack := middleware.DefaultStack(middleware.StackOptions{
		Logger:      a.logger,
		DisableCORS: true,
	})
	stack = append(stack, middleware.InternalOnly())

	// Seeding runs after the repos' Start hooks so Mongo is connected.
	seedLifecycle := aqm.LifecycleHooks{
		OnStart: func(ctx context.Context) error {
			if err := hub.ApplyDemoSeeds(ctx, a.config, a.deliveryRepo.GetDatabase, a.logger); err != nil {
				a.logger.Errorf("Demo seeding failed (non-fatal): %v", err)
			}
			return nil
		},
	}

	lifecycles := []interface{}{a.deliveryRepo, a.emergencyRepo, seedLifecycle, eventSubscriber}

	if emergencyStream != nil {
		stream := emergencyStream
		streamLifecycle := aqm.LifecycleHooks{
			// A restarted hub rebuilds its recent-activity feed from the
			// retained emergency upserts before serving snapshots.
			OnStart: func(ctx context.Context) error {
				if err := service.WarmActivity(ctx, stream); err != nil {
					a.logger.Errorf("Activity warm-up failed (non-fatal): %v", err)
				}
				return nil
			},
			OnStop: func(context.Context) error { return stream.Close() },
		}
		lifecycles = append(lifecycles, streamLifecycle)
	}
	subscriberLifecycle := aqm.LifecycleHooks{
		OnStop: func(context.Context) error { return intakeSubscriber.Close() },
	}
	lifecycles = append(lifecycles, subscriberLifecycle)

	options := []aqm.Option{
		aqm.WithConfig(a.config),
		aqm.WithLogger(a.logger),
		aqm.WithHTTPMiddleware(stack...),
		aqm.WithHTTPServerModules("web.port", handler),
		aqm.WithLifecycle(lifecycles...),
		aqm.WithHealthChecks(AppName),
	}

	a.micro = aqm.NewMicro(options...)
	return nil
}

// Run starts the application
func (a *App) Run(ctx context.Context) error {
	a.logger.Infof("Starting %s(%s)", AppName, AppVersion)
	if err := a.micro.Run(ctx); err != nil {
		return err
	}
	a.logger.Infof("%s(%s) stopped", AppName, AppVersion)
	return nil
}

// defaultPolicy reads the dispatch ETA default, minutes, from config.
func defaultPolicy(config *aqm.Config) ticket.Policy {
	policy := ticket.DefaultPolicy()
	if raw, _ := config.GetString("delivery.default_eta_minutes"); raw != "" {
		if minutes, err := strconv.Atoi(raw); err == nil && minutes > 0 {
			policy.DefaultETA = minutes
		}
	}
	return policy
}

// splitPublisher routes emergency upserts to the persistent stream and
// everything else to core NATS.
type splitPublisher struct {
	emergencies aqmevents.Publisher
	rest        aqmevents.Publisher
}

func (p *splitPublisher) Publish(ctx context.Context, topic string, msg []byte) error {
	if topic == event.EmergenciesTopic {
		return p.emergencies.Publish(ctx, topic, msg)
	}
	return p.rest.Publish(ctx, topic, msg)
}
