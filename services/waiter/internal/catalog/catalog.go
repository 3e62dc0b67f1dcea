// Package catalog holds the read-only reference data the waiter needs:
// products, note templates and tables.
package catalog

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aquamarinepk/aqm"
	"github.com/froggyflex/hotelma/services/waiter/internal/draft"
	"github.com/google/uuid"
)

type Product struct {
	ID              uuid.UUID   `json:"id"`
	Name            string      `json:"name"`
	Category        string      `json:"category"`
	Active          bool        `json:"active"`
	AllowCustomNote bool        `json:"allow_custom_note"`
	NoteTemplateIDs []uuid.UUID `json:"note_template_ids,omitempty"`
}

type NoteTemplate struct {
	ID     uuid.UUID `json:"id"`
	Label  string    `json:"label"`
	Active bool      `json:"active"`
}

type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type Table struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Active   bool      `json:"active"`
	Position *Position `json:"position,omitempty"`
}

// Snapshot is one full load of reference data.
type Snapshot struct {
	Products []Product      `json:"products"`
	Notes    []NoteTemplate `json:"notes"`
	Tables   []Table        `json:"tables"`
}

type Loader interface {
	Load(ctx context.Context) (*Snapshot, error)
}

// Catalog serves the active subset of the last loaded snapshot.
type Catalog struct {
	loader Loader
	logger aqm.Logger

	mu       sync.RWMutex
	products map[uuid.UUID]Product
	notes    map[uuid.UUID]NoteTemplate
	tables   map[uuid.UUID]Table
	order    []uuid.UUID
}

func New(loader Loader, logger aqm.Logger) *Catalog {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	return &Catalog{
		loader:   loader,
		logger:   logger,
		products: map[uuid.UUID]Product{},
		notes:    map[uuid.UUID]NoteTemplate{},
		tables:   map[uuid.UUID]Table{},
	}
}

// Start loads the catalog once. A failed load leaves it empty and is only
// logged so the waiter can still come up and reload later.
func (c *Catalog) Start(ctx context.Context) error {
	if err := c.Reload(ctx); err != nil {
		c.logger.Error("cannot load catalog", "error", err)
	}
	return nil
}

func (c *Catalog) Stop(ctx context.Context) error {
	return nil
}

func (c *Catalog) Reload(ctx context.Context) error {
	if c.loader == nil {
		return fmt.Errorf("catalog loader not configured")
	}
	snap, err := c.loader.Load(ctx)
	if err != nil {
		return err
	}
	c.apply(snap)
	return nil
}

func (c *Catalog) apply(snap *Snapshot) {
	products := make(map[uuid.UUID]Product)
	notes := make(map[uuid.UUID]NoteTemplate)
	tables := make(map[uuid.UUID]Table)
	var order []uuid.UUID

	for _, p := range snap.Products {
		if p.Active {
			products[p.ID] = p
			order = append(order, p.ID)
		}
	}
	for _, n := range snap.Notes {
		if n.Active {
			notes[n.ID] = n
		}
	}
	for _, t := range snap.Tables {
		if t.Active {
			tables[t.ID] = t
		}
	}

	c.mu.Lock()
	c.products, c.notes, c.tables, c.order = products, notes, tables, order
	c.mu.Unlock()

	c.logger.Info("catalog loaded", "products", len(products), "notes", len(notes), "tables", len(tables))
}

func (c *Catalog) Product(id uuid.UUID) (Product, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.products[id]
	return p, ok
}

// ProductCategory resolves a product category for ticket grouping.
func (c *Catalog) ProductCategory(id uuid.UUID) string {
	p, _ := c.Product(id)
	return p.Category
}

// DraftProduct resolves a product with the labels of its active note templates.
func (c *Catalog) DraftProduct(id uuid.UUID) (draft.Product, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	p, ok := c.products[id]
	if !ok {
		return draft.Product{}, false
	}

	var labels []string
	for _, noteID := range p.NoteTemplateIDs {
		if n, ok := c.notes[noteID]; ok {
			labels = append(labels, n.Label)
		}
	}

	return draft.Product{
		ID:              p.ID,
		Name:            p.Name,
		Category:        p.Category,
		NoteTemplates:   labels,
		AllowCustomNote: p.AllowCustomNote,
	}, true
}

// Products lists active products in load order.
func (c *Catalog) Products() []Product {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Product, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.products[id])
	}
	return out
}

func (c *Catalog) Table(id uuid.UUID) (Table, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.tables[id]
	return t, ok
}

// Tables lists active tables sorted by name.
func (c *Catalog) Tables() []Table {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Table, 0, len(c.tables))
	for _, t := range c.tables {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
