package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/aquamarinepk/aqm"
	"github.com/froggyflex/hotelma/pkg/demo"
)

// DemoCatalog writes the demo catalog to catalog.out, or to w when unset.
// Point the waiter's catalog.file at the result.
func DemoCatalog(config *aqm.Config, w io.Writer, logger aqm.Logger) error {
	raw, err := json.MarshalIndent(demo.BuildCatalog(), "", "  ")
	if err != nil {
		return fmt.Errorf("encode demo catalog: %w", err)
	}
	raw = append(raw, '\n')

	path := config.GetStringOrDef("catalog.out", "")
	if path == "" {
		_, err := w.Write(raw)
		return err
	}

	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("write demo catalog: %w", err)
	}
	logger.Info("Demo catalog written", "path", path, "tables", len(demo.Tables), "products", len(demo.Products))
	return nil
}
