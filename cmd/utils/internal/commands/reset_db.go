package commands

import (
	"context"
	"fmt"

	"github.com/aquamarinepk/aqm"
)

// ResetDB drops the order database with every order, print attempt and seed
// marker in it.
func ResetDB(ctx context.Context, config *aqm.Config, logger aqm.Logger) error {
	client, db, err := connect(ctx, config, logger)
	if err != nil {
		return err
	}
	defer client.Disconnect(ctx)

	logger.Infof("Dropping database %s, this cannot be undone", db.Name())
	if err := db.Drop(ctx); err != nil {
		return fmt.Errorf("drop %s: %w", db.Name(), err)
	}

	logger.Info("Database dropped", "database", db.Name())
	return nil
}
