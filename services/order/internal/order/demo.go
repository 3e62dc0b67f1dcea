package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/aquamarinepk/aqm"
	"github.com/aquamarinepk/aqm/seed"
	"github.com/froggyflex/hotelma/pkg/demo"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"
)

const orderDemoSeedApplication = "order_demo"

// ApplyDemoSeeds opens a couple of demo orders through the service so they
// carry the same invariants and events as real ones.
func ApplyDemoSeeds(ctx context.Context, svc *Service, db *mongo.Database, logger aqm.Logger) error {
	if db == nil {
		return errors.New("database is required for demo seeding")
	}

	tracker := seed.NewMongoTracker(db)

	logger.Info("Applying demo order seeds")
	if err := seed.Apply(ctx, tracker, buildDemoOrderSeeds(svc, logger), orderDemoSeedApplication); err != nil {
		return err
	}
	logger.Info("Demo order seeds applied successfully")
	return nil
}

func buildDemoOrderSeeds(svc *Service, logger aqm.Logger) []seed.Seed {
	return []seed.Seed{
		{
			ID:          demo.SeedID,
			Description: "Open demo orders on two tables, one partially printed",
			Run: func(ctx context.Context) error {
				return seedDemoOrders(ctx, svc, logger)
			},
		},
	}
}

func seedDemoOrders(ctx context.Context, svc *Service, logger aqm.Logger) error {
	for _, req := range demoOrders() {
		o, err := svc.Create(ctx, req)
		if errors.Is(err, ErrConflict) {
			logger.Info("Demo table already has an open order, skipping", "table", req.Table.Name)
			continue
		}
		if err != nil {
			return fmt.Errorf("create demo order for %s: %w", req.Table.Name, err)
		}

		if req.Table.Name == "T2" && len(o.Items) > 0 {
			if _, err := svc.ConfirmPrinted(ctx, o.ID, []uuid.UUID{o.Items[0].ID}, uuid.New()); err != nil {
				return fmt.Errorf("confirm demo print: %w", err)
			}
		}
		logger.Info("Created demo order", "table", req.Table.Name, "order_id", o.ID)
	}
	return nil
}

func demoOrders() []CreateRequest {
	item := func(name, category string, qty int, notes ...string) ItemInput {
		return ItemInput{ProductID: demo.ProductID(name), Name: name, Category: category, Quantity: qty, Notes: notes}
	}
	return []CreateRequest{
		{
			Table:    TableRef{ID: demo.TableID("T1"), Name: "T1"},
			Nickname: "Sea view",
			Items: []ItemInput{
				item("Greek Salad", "Salads", 1, "no onion"),
				item("Mythos", "Beers", 2),
			},
		},
		{
			Table: TableRef{ID: demo.TableID("T2"), Name: "T2"},
			Items: []ItemInput{
				item("Moussaka", "Mains", 2),
				item("Frappe", "Coffees", 1, "medium sugar"),
			},
		},
	}
}

// DemoSeedingFunc returns an aqm lifecycle OnStart-compatible function for demo seeding.
func DemoSeedingFunc(seedCtx context.Context, svc *Service, db *mongo.Database, logger aqm.Logger) func(ctx context.Context) error {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}

	return func(ctx context.Context) error {
		logger.Info("Starting demo order seeding in background")
		go func() {
			if err := ApplyDemoSeeds(seedCtx, svc, db, logger); err != nil && !errors.Is(err, context.Canceled) {
				logger.Errorf("Demo order seeds failed: %v", err)
			} else if err == nil {
				logger.Info("Demo order seeding completed successfully")
			}
		}()
		return nil
	}
}
