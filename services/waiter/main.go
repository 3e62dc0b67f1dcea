package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aquamarinepk/aqm"
	"github.com/aquamarinepk/aqm/middleware"

	"github.com/froggyflex/hotelma/pkg"
	"github.com/froggyflex/hotelma/services/waiter/internal/bridge"
	"github.com/froggyflex/hotelma/services/waiter/internal/catalog"
	"github.com/froggyflex/hotelma/services/waiter/internal/feed"
	"github.com/froggyflex/hotelma/services/waiter/internal/orderapi"
	"github.com/froggyflex/hotelma/services/waiter/internal/printq"
	"github.com/froggyflex/hotelma/services/waiter/internal/ticket"
	"github.com/froggyflex/hotelma/services/waiter/internal/waiter"
)

const (
	appNamespace = "WAITER"
	appName      = "waiter"
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

	orders, err := orderapi.NewClient(config, logger)
	if err != nil {
		log.Fatalf("%s(%s) cannot initialize order client: %v", appName, appVersion, err)
	}

	// Catalog: a local file wins over the menu service
	var loader catalog.Loader
	if path, _ := config.GetString("catalog.file"); path != "" {
		loader = catalog.FileLoader{Path: path}
	} else if menuURL, _ := config.GetString("services.menu.url"); menuURL != "" {
		loader = catalog.NewRemoteLoader(aqm.NewServiceClient(menuURL))
	}
	cat := catalog.New(loader, logger)

	printerBridge, err := newBridge(config)
	if err != nil {
		log.Fatalf("%s(%s) cannot initialize printer: %v", appName, appVersion, err)
	}

	cooldown := duration(config, "printer.cooldown", printq.DefaultCooldown)
	queue := printq.New(printq.WithCooldown(cooldown), printq.WithLogger(logger))

	location := time.Local
	if tz, _ := config.GetString("ticket.timezone"); tz != "" {
		location, err = time.LoadLocation(tz)
		if err != nil {
			log.Fatalf("%s(%s) invalid ticket timezone %q: %v", appName, appVersion, tz, err)
		}
	}

	printer := waiter.NewPrinter(queue, printerBridge, orders, cat, waiter.PrinterConfig{
		FlushDelay: duration(config, "printer.flush_delay", waiter.DefaultFlushDelay),
		Layout: ticket.Layout{
			BarCategories:     list(config.GetStringOrDef("ticket.bar_categories", "")),
			KitchenCategories: list(config.GetStringOrDef("ticket.kitchen_categories", "")),
		},
		Location: location,
	}, logger)

	source, err := newFeed(config, logger)
	if err != nil {
		log.Fatalf("%s(%s) cannot initialize order events: %v", appName, appVersion, err)
	}

	sessions := waiter.NewSessions(orders, cat, printer, source, logger)
	handler := waiter.NewHandler(sessions, cat, orders, printer, source, logger)

	lifecycles := []interface{}{cat}
	if source != nil {
		lifecycles = append(lifecycles, source)
	}
	lifecycles = append(lifecycles, sessions, aqm.LifecycleHooks{OnStop: queue.Stop})

	stack := middleware.DefaultStack(middleware.StackOptions{
		Logger:      logger,
		DisableCORS: false,
	})

	options := []aqm.Option{
		aqm.WithConfig(config),
		aqm.WithLogger(logger),
		aqm.WithHTTPMiddleware(stack...),
		aqm.WithHTTPServerModules("web.port", handler),
		aqm.WithLifecycle(lifecycles...),
		aqm.WithHealthChecks(appName),
	}

	ms := aqm.NewMicro(options...)
	logger.Infof("Starting %s(%s) with printer %s", appName, appVersion, bridge.NameOf(printerBridge))

	if err := ms.Run(ctx); err != nil {
		log.Fatalf("%s(%s) stopped: %v", appName, appVersion, err)
	}

	logger.Infof("%s(%s) stopped", appName, appVersion)
}

func newBridge(config *aqm.Config) (bridge.PrinterBridge, error) {
	switch driver := config.GetStringOrDef("printer.driver", "tcp"); driver {
	case "none":
		return bridge.Null{}, nil
	case "memory":
		return bridge.NewGuarded(bridge.NewRecorder()), nil
	case "tcp":
		addr, _ := config.GetString("printer.addr")
		if addr == "" {
			return bridge.Null{}, nil
		}

		var opts []bridge.TCPOption
		cm, err := bridge.CodePage(config.GetStringOrDef("printer.codepage", ""))
		if err != nil {
			return nil, err
		}
		if cm != nil {
			opts = append(opts, bridge.WithCodePage(cm))
		}
		if config.GetStringOrDef("printer.wake", "false") == "true" {
			opts = append(opts, bridge.WithWake(bridge.DefaultWakePause))
		}

		timeout := duration(config, "printer.timeout", 15*time.Second)
		return bridge.NewDevice(bridge.NewTCP(addr, opts...), timeout), nil
	default:
		return nil, fmt.Errorf("unknown printer driver %q", driver)
	}
}

func newFeed(config *aqm.Config, logger aqm.Logger) (feed.Source, error) {
	switch kind := config.GetStringOrDef("events.source", "grpc"); kind {
	case "none":
		return nil, nil
	case "grpc":
		addr, _ := config.GetString("services.order.grpc_addr")
		if addr == "" {
			return nil, nil
		}
		return feed.NewGRPCClient(addr, logger), nil
	case "nats":
		natsURL := config.GetStringOrDef("nats.url", "nats://localhost:4222")
		sub, err := pkg.NewNATSSubscriber(natsURL, appName, logger)
		if err != nil {
			return nil, err
		}
		return feed.NewNATSFeed(sub, logger), nil
	default:
		return nil, fmt.Errorf("unknown events source %q", kind)
	}
}

func duration(config *aqm.Config, key string, def time.Duration) time.Duration {
	raw := config.GetStringOrDef(key, "")
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		log.Printf("invalid %s %q, using %s", key, raw, def)
		return def
	}
	return d
}

func list(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
