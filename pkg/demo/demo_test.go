package demo

import "testing"

func TestIDsAreStable(t *testing.T) {
	tests := []struct {
		name string
		id   func(string) string
	}{
		{name: "table", id: func(s string) string { return TableID(s).String() }},
		{name: "product", id: func(s string) string { return ProductID(s).String() }},
		{name: "note", id: func(s string) string { return NoteID(s).String() }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.id("T1") != tt.id("T1") {
				t.Error("id should be deterministic")
			}
			if tt.id("T1") == tt.id("T2") {
				t.Error("id should differ per name")
			}
		})
	}

	if TableID("Frappe") == ProductID("Frappe") {
		t.Error("table and product ids should not collide")
	}
}

func TestBuildCatalog(t *testing.T) {
	c := BuildCatalog()

	if len(c.Tables) != len(Tables) || len(c.Products) != len(Products) {
		t.Fatalf("catalog has %d tables %d products", len(c.Tables), len(c.Products))
	}

	notes := map[string]bool{}
	for _, n := range c.Notes {
		if notes[n.Label] {
			t.Errorf("note %q listed twice", n.Label)
		}
		notes[n.Label] = true
	}

	for _, p := range c.Products {
		if p.Name == "Frappe" && len(p.NoteTemplateIDs) != 3 {
			t.Errorf("Frappe notes = %d, want 3", len(p.NoteTemplateIDs))
		}
		if p.ID != ProductID(p.Name) {
			t.Errorf("product %s id mismatch", p.Name)
		}
	}
}
