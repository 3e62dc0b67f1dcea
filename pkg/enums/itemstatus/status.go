// Package itemstatus holds the lifecycle of a single order line.
//
// A line starts as new, becomes sent once a ticket for it is confirmed
// printed and ends as delivered. Delivery may skip sent when the waiter
// serves a line by hand.
package itemstatus

import "fmt"

type Status struct {
	Name string
}

func (s Status) Code() string {
	return s.Name
}

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	return s.Name == Statuses.Delivered.Name
}

// CanMove reports whether a line in status from may move to to. Staying in
// the same status is allowed so replays stay idempotent.
func CanMove(from, to string) bool {
	if from == to {
		return true
	}
	switch from {
	case Statuses.New.Name:
		return to == Statuses.Sent.Name || to == Statuses.Delivered.Name
	case Statuses.Sent.Name:
		return to == Statuses.Delivered.Name
	}
	return false
}

type Enum struct {
	New       Status
	Sent      Status
	Delivered Status
}

var Statuses = Enum{
	New:       Status{Name: "new"},
	Sent:      Status{Name: "sent"},
	Delivered: Status{Name: "delivered"},
}

var All = []Status{
	Statuses.New,
	Statuses.Sent,
	Statuses.Delivered,
}

// Parse resolves a stored code. Unknown codes are an error rather than a
// silent default.
func Parse(code string) (Status, error) {
	for _, s := range All {
		if s.Name == code {
			return s, nil
		}
	}
	return Status{}, fmt.Errorf("unknown item status %q", code)
}
