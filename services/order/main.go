package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aquamarinepk/aqm"
	"github.com/aquamarinepk/aqm/events"
	"github.com/aquamarinepk/aqm/middleware"

	"github.com/froggyflex/hotelma/pkg"
	"github.com/froggyflex/hotelma/pkg/event"
	"github.com/froggyflex/hotelma/services/order/internal/mongo"
	"github.com/froggyflex/hotelma/services/order/internal/order"
)

const (
	appNamespace = "ORDER"
	appName      = "order"
	appVersion   = "0.1.0"
)

func main() {
	config, err := aqm.LoadConfig(appNamespace, os.Args[1:])
	if err != nil {
		log.Fatalf("%s(%s) cannot setup: %v", appName, appVersion, err)
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

	seedCtx, cancelSeeds := context.WithCancel(ctx)
	defer cancelSeeds()

	store := mongo.NewStore(config, logger)
	if err := store.Start(ctx); err != nil {
		log.Fatalf("%s(%s) cannot start order store: %v", appName, appVersion, err)
	}

	orderRepo, err := store.Orders(ctx)
	if err != nil {
		log.Fatalf("%s(%s) cannot open order repository: %v", appName, appVersion, err)
	}
	db := store.Database()

	natsURL := config.GetStringOrDef("nats.url", "nats://localhost:4222")

	var publisher events.Publisher
	var closePublisher func() error
	if config.GetStringOrDef("nats.stream.enabled", "false") == "true" {
		stream, err := pkg.NewNATSStream(pkg.NATSStreamConfig{
			URL:        natsURL,
			Name:       appName,
			StreamName: "ORDER_EVENTS",
			Subjects:   []string{event.OrderEventsTopic, pkg.OrderTableTopic},
			MaxAge:     24 * time.Hour,
			Duplicates: 10 * time.Minute,
			Logger:     logger,
		})
		if err != nil {
			log.Fatalf("%s(%s) cannot create NATS stream: %v", appName, appVersion, err)
		}
		publisher, closePublisher = stream, stream.Close
	} else {
		pub, err := pkg.NewNATSPublisher(natsURL, appName, logger)
		if err != nil {
			log.Fatalf("%s(%s) cannot connect to NATS publisher: %v", appName, appVersion, err)
		}
		publisher, closePublisher = pub, pub.Close
	}

	publisherLifecycle := aqm.LifecycleHooks{
		OnStop: func(context.Context) error {
			return closePublisher()
		},
	}

	orderEvents := order.NewOrderEventStreamServer(logger)
	notifier := order.NewEventNotifier(publisher, orderEvents, logger)
	svc := order.NewService(orderRepo, notifier, logger)
	handler := order.NewHandler(svc, config, logger)

	lifecycles := []interface{}{
		aqm.LifecycleHooks{OnStop: store.Stop},
		publisherLifecycle,
	}

	if config.GetStringOrDef("seeding.demo", "false") == "true" {
		logger.Info("Demo seeding enabled for order service")
		lifecycles = append(lifecycles, aqm.LifecycleHooks{
			OnStart: order.DemoSeedingFunc(seedCtx, svc, db, logger),
			OnStop: func(context.Context) error {
				cancelSeeds()
				return nil
			},
		})
	}

	stack := middleware.DefaultStack(middleware.StackOptions{
		Logger:      logger,
		DisableCORS: true,
	})
	stack = append(stack, middleware.InternalOnly())

	options := []aqm.Option{
		aqm.WithConfig(config),
		aqm.WithLogger(logger),
		aqm.WithHTTPMiddleware(stack...),
		aqm.WithHTTPServerModules("web.port", handler),
		aqm.WithGRPCServerModules("grpc.port", orderEvents),
		aqm.WithLifecycle(lifecycles...),
		aqm.WithHealthChecks(appName),
	}

	ms := aqm.NewMicro(options...)
	logger.Infof("Starting %s(%s)", appName, appVersion)

	err = ms.Run(ctx)
	if err != nil {
		_ = store.Stop(context.Background())
		log.Fatalf("%s(%s) stopped: %v", appName, appVersion, err)
	}

	logger.Infof("%s(%s) stopped", appName, appVersion)
}
