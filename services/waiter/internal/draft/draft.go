// Package draft holds the waiter's unsent lines for one table. Lines with
// the same Signature are merged by incrementing quantity.
package draft

import (
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
)

var (
	ErrNoPending    = errors.New("no item is being customized")
	ErrItemNotFound = errors.New("draft item not found")
)

// Product is the catalog view the draft needs to add a line.
type Product struct {
	ID              uuid.UUID
	Name            string
	Category        string
	NoteTemplates   []string
	AllowCustomNote bool
}

// HasModifiers reports whether adding the product opens customization.
func (p Product) HasModifiers() bool {
	return len(p.NoteTemplates) > 0 || p.AllowCustomNote
}

// Item is a draft line. ID is local to the terminal and never sent.
type Item struct {
	ID              uuid.UUID `json:"id"`
	ProductID       uuid.UUID `json:"product_id"`
	Name            string    `json:"name"`
	Category        string    `json:"category,omitempty"`
	Qty             int       `json:"qty"`
	Notes           []string  `json:"notes,omitempty"`
	CustomNote      string    `json:"custom_note,omitempty"`
	AllowCustomNote bool      `json:"allow_custom_note"`
}

func (i Item) Signature() Signature {
	return SignatureOf(i.ProductID, i.Notes, i.CustomNote)
}

func (i Item) clone() Item {
	i.Notes = append([]string(nil), i.Notes...)
	return i
}

// Patch carries the customization chosen for the pending item.
type Patch struct {
	Notes      []string `json:"notes"`
	CustomNote string   `json:"custom_note"`
}

// Pending is the single item in customization. Editing is set when it
// refers to an existing line rather than a new unit.
type Pending struct {
	Item    Item `json:"item"`
	Editing bool `json:"editing"`
}

type Buffer struct {
	mu      sync.Mutex
	items   []Item
	pending *Pending
}

func NewBuffer() *Buffer {
	return &Buffer{}
}

// Add creates a one unit line for product. Products without modifiers are
// merged right away and merged is true; otherwise the new unit becomes the
// pending item and is returned for customization.
func (b *Buffer) Add(p Product) (*Item, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	item := Item{
		ID:              uuid.New(),
		ProductID:       p.ID,
		Name:            p.Name,
		Category:        p.Category,
		Qty:             1,
		AllowCustomNote: p.AllowCustomNote,
	}

	if p.HasModifiers() {
		b.pending = &Pending{Item: item}
		out := item.clone()
		return &out, false
	}

	merged := b.merge(item)
	return &merged, true
}

// Save applies patch to the pending item. A new unit is merged by
// signature. An edit splits one unit off the original line.
func (b *Buffer) Save(patch Patch) (*Item, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.pending == nil {
		return nil, ErrNoPending
	}
	p := b.pending
	b.pending = nil

	if !p.Editing {
		candidate := p.Item
		candidate.Notes = append([]string(nil), patch.Notes...)
		candidate.CustomNote = strings.TrimSpace(patch.CustomNote)
		candidate.Qty = 1
		merged := b.merge(candidate)
		return &merged, nil
	}

	idx := b.index(p.Item.ID)
	if idx < 0 {
		return nil, ErrItemNotFound
	}

	unit := b.items[idx].clone()
	unit.ID = uuid.New()
	unit.Qty = 1
	unit.Notes = append([]string(nil), patch.Notes...)
	unit.CustomNote = strings.TrimSpace(patch.CustomNote)

	b.items[idx].Qty--
	if b.items[idx].Qty <= 0 {
		b.items = append(b.items[:idx], b.items[idx+1:]...)
	}

	merged := b.merge(unit)
	return &merged, nil
}

// Skip closes customization. A new unit is still added, without notes; an
// edit is abandoned and the line stays as it was.
func (b *Buffer) Skip() (*Item, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.pending == nil {
		return nil, ErrNoPending
	}
	p := b.pending
	b.pending = nil

	if p.Editing {
		idx := b.index(p.Item.ID)
		if idx < 0 {
			return nil, ErrItemNotFound
		}
		out := b.items[idx].clone()
		return &out, nil
	}

	merged := b.merge(p.Item)
	return &merged, nil
}

// Edit puts an existing line in customization.
func (b *Buffer) Edit(id uuid.UUID) (*Item, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	idx := b.index(id)
	if idx < 0 {
		return nil, ErrItemNotFound
	}
	item := b.items[idx].clone()
	b.pending = &Pending{Item: item, Editing: true}
	out := item.clone()
	return &out, nil
}

// UpdateQty sets a line quantity. Values below one clamp to one; use Remove
// to drop a line.
func (b *Buffer) UpdateQty(id uuid.UUID, qty int) (*Item, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	idx := b.index(id)
	if idx < 0 {
		return nil, ErrItemNotFound
	}
	if qty < 1 {
		qty = 1
	}
	b.items[idx].Qty = qty
	out := b.items[idx].clone()
	return &out, nil
}

func (b *Buffer) Remove(id uuid.UUID) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	idx := b.index(id)
	if idx < 0 {
		return ErrItemNotFound
	}
	b.items = append(b.items[:idx], b.items[idx+1:]...)
	if b.pending != nil && b.pending.Editing && b.pending.Item.ID == id {
		b.pending = nil
	}
	return nil
}

// Clear drops every line and any pending customization.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items = nil
	b.pending = nil
}

func (b *Buffer) Items() []Item {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Item, len(b.items))
	for i, item := range b.items {
		out[i] = item.clone()
	}
	return out
}

func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

func (b *Buffer) Pending() *Pending {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pending == nil {
		return nil
	}
	p := Pending{Item: b.pending.Item.clone(), Editing: b.pending.Editing}
	return &p
}

// merge adds item.Qty to the line sharing its signature, or appends it.
func (b *Buffer) merge(item Item) Item {
	sig := item.Signature()
	for i := range b.items {
		if b.items[i].Signature() == sig {
			b.items[i].Qty += item.Qty
			return b.items[i].clone()
		}
	}
	b.items = append(b.items, item.clone())
	return item.clone()
}

func (b *Buffer) index(id uuid.UUID) int {
	for i := range b.items {
		if b.items[i].ID == id {
			return i
		}
	}
	return -1
}
