// Package demo holds the reference data shared by the demo order seeds, the
// waiter demo catalog and the utils commands. Ids are derived from names so
// every side agrees on them without a shared store.
package demo

import (
	"github.com/google/uuid"
)

// SeedID is the tracker id of the demo order seed.
const SeedID = "2026-03-01_demo_open_orders_v1"

func TableID(name string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("hotelma:table:"+name))
}

func ProductID(name string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("hotelma:product:"+name))
}

func NoteID(label string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("hotelma:note:"+label))
}

// Tables are the demo tables in floor order.
var Tables = []string{"T1", "T2", "T3", "T4", "T5", "T6"}

type Product struct {
	Name            string
	Category        string
	AllowCustomNote bool
	Notes           []string
}

var Products = []Product{
	{Name: "Frappe", Category: "Coffees", Notes: []string{"no sugar", "medium sugar", "sweet"}},
	{Name: "Freddo Espresso", Category: "Coffees", Notes: []string{"no sugar", "medium sugar", "sweet"}},
	{Name: "Mythos", Category: "Beers"},
	{Name: "Coke", Category: "Soft Drinks"},
	{Name: "Greek Salad", Category: "Salads", AllowCustomNote: true, Notes: []string{"no onion"}},
	{Name: "Moussaka", Category: "Mains", AllowCustomNote: true},
	{Name: "Souvlaki", Category: "Grill", AllowCustomNote: true},
}

// Catalog is the demo data in the JSON shape the waiter reads from
// catalog.file.
type Catalog struct {
	Products []CatalogProduct `json:"products"`
	Notes    []CatalogNote    `json:"notes"`
	Tables   []CatalogTable   `json:"tables"`
}

type CatalogProduct struct {
	ID              uuid.UUID   `json:"id"`
	Name            string      `json:"name"`
	Category        string      `json:"category"`
	Active          bool        `json:"active"`
	AllowCustomNote bool        `json:"allow_custom_note"`
	NoteTemplateIDs []uuid.UUID `json:"note_template_ids,omitempty"`
}

type CatalogNote struct {
	ID     uuid.UUID `json:"id"`
	Label  string    `json:"label"`
	Active bool      `json:"active"`
}

type CatalogTable struct {
	ID     uuid.UUID `json:"id"`
	Name   string    `json:"name"`
	Active bool      `json:"active"`
}

func BuildCatalog() Catalog {
	c := Catalog{
		Products: []CatalogProduct{},
		Notes:    []CatalogNote{},
		Tables:   []CatalogTable{},
	}

	seen := map[string]bool{}
	for _, p := range Products {
		cp := CatalogProduct{
			ID:              ProductID(p.Name),
			Name:            p.Name,
			Category:        p.Category,
			Active:          true,
			AllowCustomNote: p.AllowCustomNote,
		}
		for _, label := range p.Notes {
			cp.NoteTemplateIDs = append(cp.NoteTemplateIDs, NoteID(label))
			if !seen[label] {
				seen[label] = true
				c.Notes = append(c.Notes, CatalogNote{ID: NoteID(label), Label: label, Active: true})
			}
		}
		c.Products = append(c.Products, cp)
	}

	for _, name := range Tables {
		c.Tables = append(c.Tables, CatalogTable{ID: TableID(name), Name: name, Active: true})
	}
	return c
}
