// Package ticket renders kitchen tickets for 58mm thermal printers. Output
// is plain text with ESC/POS size commands and is deterministic for a given
// input.
package ticket

import (
	"fmt"
	"strings"
	"time"

	"github.com/froggyflex/hotelma/pkg/enums/station"
	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	BigOn  = "\x1D\x21\x11"
	BigOff = "\x1D\x21\x00"
	// CutLine feeds three lines and performs a partial cut between tickets.
	CutLine = "\x1D\x56\x41\x03"

	Rule          = "--------------------------------"
	OtherCategory = "Other"
)

var upper = cases.Upper(language.Und)

// Header is the per-ticket context.
type Header struct {
	TableName string
	Nickname  string
	Note      string
	Time      time.Time
	Location  *time.Location
}

// Line is one printable order line.
type Line struct {
	ProductID  uuid.UUID
	Name       string
	Category   string
	Qty        int
	Notes      []string
	CustomNote string
}

// Catalog resolves the current category of a product. An empty result falls
// back to the line's own category.
type Catalog interface {
	ProductCategory(id uuid.UUID) string
}

// MapCatalog is a Catalog backed by a map.
type MapCatalog map[uuid.UUID]string

func (m MapCatalog) ProductCategory(id uuid.UUID) string {
	return m[id]
}

// Layout routes categories to stations. When both lists are set and the
// lines span both, Build emits a bar ticket followed by a kitchen ticket.
// Categories in neither list print on the kitchen ticket.
type Layout struct {
	BarCategories     []string
	KitchenCategories []string
}

func (l Layout) routing() station.Routing {
	return station.Routing{Bar: l.BarCategories, Kitchen: l.KitchenCategories}
}

// Build renders lines as one ticket, or as a bar and a kitchen ticket joined
// by CutLine when the layout splits them.
func Build(h Header, lines []Line, catalog Catalog, layout Layout) string {
	routing := layout.routing()
	if !routing.Splits() {
		return render(h, lines, catalog)
	}

	var bar, kitchen []Line
	for _, l := range lines {
		if routing.Of(categoryOf(l, catalog)) == station.Bar {
			bar = append(bar, l)
		} else {
			kitchen = append(kitchen, l)
		}
	}
	if len(bar) == 0 || len(kitchen) == 0 {
		return render(h, lines, catalog)
	}

	return render(h, bar, catalog) + "\n" + CutLine + "\n" + render(h, kitchen, catalog)
}

func render(h Header, lines []Line, catalog Catalog) string {
	var out []string
	out = append(out, BigOn, Rule)
	out = append(out, "TABLE: "+tableLabel(h))
	if note := strings.TrimSpace(h.Note); note != "" {
		out = append(out, "NOTE: "+note)
	}
	out = append(out, "TIME: "+clock(h))
	out = append(out, Rule, "")

	for _, g := range group(lines, catalog) {
		out = append(out, g.name)
		for _, l := range g.lines {
			out = append(out, fmt.Sprintf("%dx %s", l.Qty, l.Name))
			for _, n := range l.Notes {
				out = append(out, "  - "+n)
			}
			if c := strings.TrimSpace(l.CustomNote); c != "" {
				out = append(out, "  * "+c)
			}
		}
		out = append(out, "")
	}

	out = append(out, Rule, BigOff)
	return strings.Join(out, "\n")
}

type categoryGroup struct {
	name  string
	lines []Line
}

// group keeps categories in first-seen order.
func group(lines []Line, catalog Catalog) []categoryGroup {
	var groups []categoryGroup
	index := map[string]int{}
	for _, l := range lines {
		name := upper.String(categoryOf(l, catalog))
		i, ok := index[name]
		if !ok {
			i = len(groups)
			index[name] = i
			groups = append(groups, categoryGroup{name: name})
		}
		groups[i].lines = append(groups[i].lines, l)
	}
	return groups
}

func categoryOf(l Line, catalog Catalog) string {
	if catalog != nil {
		if c := catalog.ProductCategory(l.ProductID); c != "" {
			return c
		}
	}
	if l.Category != "" {
		return l.Category
	}
	return OtherCategory
}

func tableLabel(h Header) string {
	if n := strings.TrimSpace(h.Nickname); n != "" {
		return n
	}
	return h.TableName
}

func clock(h Header) string {
	t := h.Time
	if t.IsZero() {
		t = time.Now()
	}
	if h.Location != nil {
		t = t.In(h.Location)
	}
	return t.Format("15:04")
}
