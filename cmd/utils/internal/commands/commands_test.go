package commands

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/aquamarinepk/aqm"
	"github.com/froggyflex/hotelma/pkg/demo"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
)

func TestDemoCatalogToWriter(t *testing.T) {
	var buf bytes.Buffer

	if err := DemoCatalog(aqm.NewConfig(), &buf, aqm.NewNoopLogger()); err != nil {
		t.Fatalf("DemoCatalog() error = %v", err)
	}

	var got demo.Catalog
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not a catalog: %v", err)
	}
	if len(got.Tables) != len(demo.Tables) {
		t.Errorf("tables = %d, want %d", len(got.Tables), len(demo.Tables))
	}
	if len(got.Products) != len(demo.Products) {
		t.Errorf("products = %d, want %d", len(got.Products), len(demo.Products))
	}
}

func TestDemoOrderFilter(t *testing.T) {
	filter := demoOrderFilter()

	in, ok := filter["table.id"].(bson.M)
	if !ok {
		t.Fatalf("filter = %v, want a table.id clause", filter)
	}
	ids, ok := in["$in"].([]uuid.UUID)
	if !ok || len(ids) != len(demo.Tables) {
		t.Fatalf("$in = %v, want one id per demo table", in["$in"])
	}
	if ids[0] != demo.TableID(demo.Tables[0]) {
		t.Errorf("first id = %s, want %s", ids[0], demo.TableID(demo.Tables[0]))
	}
}
