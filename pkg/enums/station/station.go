// Package station names the physical tickets a send can be split into.
package station

import "strings"

type Station string

const (
	Bar     Station = "bar"
	Kitchen Station = "kitchen"
	Other   Station = "other"
)

var All = []Station{Bar, Kitchen, Other}

func (s Station) Code() string {
	return string(s)
}

// Parse accepts a station code in any case.
func Parse(code string) (Station, bool) {
	code = strings.ToLower(strings.TrimSpace(code))
	for _, s := range All {
		if string(s) == code {
			return s, true
		}
	}
	return "", false
}

// Routing assigns product categories to the bar and kitchen tickets.
// Category matching ignores case.
type Routing struct {
	Bar     []string
	Kitchen []string
}

// Splits reports whether both stations are configured.
func (r Routing) Splits() bool {
	return len(r.Bar) > 0 && len(r.Kitchen) > 0
}

// Of returns Other for a category listed on neither station.
func (r Routing) Of(category string) Station {
	switch {
	case contains(r.Bar, category):
		return Bar
	case contains(r.Kitchen, category):
		return Kitchen
	default:
		return Other
	}
}

func contains(categories []string, category string) bool {
	for _, c := range categories {
		if strings.EqualFold(strings.TrimSpace(c), strings.TrimSpace(category)) {
			return true
		}
	}
	return false
}
