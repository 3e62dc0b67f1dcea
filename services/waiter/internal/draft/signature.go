package draft

import (
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Signature identifies lines that may be merged: same product, same note
// set regardless of order, same trimmed custom note.
type Signature struct {
	ProductID  uuid.UUID
	Notes      string
	CustomNote string
}

func SignatureOf(productID uuid.UUID, notes []string, customNote string) Signature {
	return Signature{
		ProductID:  productID,
		Notes:      encodeNotes(notes),
		CustomNote: strings.TrimSpace(customNote),
	}
}

// encodeNotes length-prefixes each sorted label so no label content can
// collide with a separator.
func encodeNotes(notes []string) string {
	if len(notes) == 0 {
		return ""
	}
	sorted := append([]string(nil), notes...)
	sort.Strings(sorted)

	var b strings.Builder
	prev := ""
	for i, n := range sorted {
		if i > 0 && n == prev {
			continue
		}
		prev = n
		b.WriteString(strconv.Itoa(len(n)))
		b.WriteByte(':')
		b.WriteString(n)
	}
	return b.String()
}
