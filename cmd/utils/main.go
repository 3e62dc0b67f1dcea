package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aquamarinepk/aqm"

	"github.com/froggyflex/hotelma/cmd/utils/internal/commands"
)

const (
	appName      = "hotelma-utils"
	appVersion   = "0.1.0"
	appNamespace = "UTILS"

	commandTimeout = 2 * time.Minute
)

type command struct {
	name    string
	summary string
	done    string
	run     func(ctx context.Context, config *aqm.Config, logger aqm.Logger) error
}

var registry = []command{
	{
		name:    "demo-catalog",
		summary: "Write the demo waiter catalog (products, notes, tables) as JSON",
		run: func(_ context.Context, config *aqm.Config, logger aqm.Logger) error {
			return commands.DemoCatalog(config, os.Stdout, logger)
		},
	},
	{
		name:    "clear-demo",
		summary: "Remove orders on demo tables and the demo seed marker",
		done:    "Demo data cleared",
		run:     commands.ClearDemo,
	},
	{
		name:    "reset-db",
		summary: "Drop the order database (USE WITH CAUTION)",
		done:    "Database reset completed",
		run:     commands.ResetDB,
	},
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	name := os.Args[1]
	switch name {
	case "version":
		fmt.Printf("%s version %s\n", appName, appVersion)
		return
	case "help", "-h", "--help":
		printUsage()
		return
	}

	cmd, ok := lookup(name)
	if !ok {
		fmt.Printf("Unknown command: %s\n\n", name)
		printUsage()
		os.Exit(1)
	}

	config, err := aqm.LoadConfig(appNamespace, os.Args[2:])
	if err != nil {
		log.Fatalf("%s: cannot load config: %v", appName, err)
	}
	logger := aqm.NewLogger(config.GetStringOrDef("log.level", "info"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	if err := cmd.run(ctx, config, logger); err != nil {
		log.Fatalf("%s %s failed: %v", appName, cmd.name, err)
	}
	if cmd.done != "" {
		logger.Info(cmd.done, "command", cmd.name)
	}
}

func lookup(name string) (command, bool) {
	for _, c := range registry {
		if c.name == name {
			return c, true
		}
	}
	return command{}, false
}

func printUsage() {
	fmt.Printf("%s - Hotelma utility commands\n\nUsage:\n  %s <command> [options]\n\nCommands:\n", appName, appName)
	for _, c := range registry {
		fmt.Printf("  %-13s %s\n", c.name, c.summary)
	}
	fmt.Printf("  %-13s %s\n", "version", "Print version information")
	fmt.Printf("  %-13s %s\n", "help", "Show this help message")

	fmt.Print(`
Environment Variables:
  UTILS_MONGO_URL     MongoDB connection URL (default: mongodb://localhost:27017)
  UTILS_MONGO_NAME    Order database name (default: hotelma_order)
  UTILS_CATALOG_OUT   File written by demo-catalog (default: stdout)
  UTILS_LOG_LEVEL     Log level: debug, info, warn, error (default: info)

`)
}
