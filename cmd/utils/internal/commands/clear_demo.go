package commands

import (
	"context"
	"fmt"

	"github.com/aquamarinepk/aqm"
	"github.com/froggyflex/hotelma/pkg/demo"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// ClearDemo removes every order placed on a demo table, open or closed, and
// the seed marker so the order service seeds again on its next start.
func ClearDemo(ctx context.Context, config *aqm.Config, logger aqm.Logger) error {
	client, db, err := connect(ctx, config, logger)
	if err != nil {
		return err
	}
	defer client.Disconnect(ctx)

	return clearDemoOrders(ctx, db, logger)
}

func clearDemoOrders(ctx context.Context, db *mongo.Database, logger aqm.Logger) error {
	logger.Info("Clearing demo orders...")

	result, err := db.Collection("orders").DeleteMany(ctx, demoOrderFilter())
	if err != nil {
		return fmt.Errorf("delete demo orders: %w", err)
	}
	logger.Info("Deleted demo orders", "count", result.DeletedCount)

	tracker, err := db.Collection("_seeds").DeleteOne(ctx, bson.M{"_id": demo.SeedID})
	if err != nil {
		return fmt.Errorf("delete order seed tracker: %w", err)
	}
	logger.Info("Cleared order seed tracker", "deleted", tracker.DeletedCount)

	return nil
}

func demoOrderFilter() bson.M {
	ids := make([]uuid.UUID, 0, len(demo.Tables))
	for _, name := range demo.Tables {
		ids = append(ids, demo.TableID(name))
	}
	return bson.M{"table.id": bson.M{"$in": ids}}
}
