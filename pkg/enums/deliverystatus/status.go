package deliverystatus

import (
	"strings"
)

type Status struct {
	Name string
}

func (s Status) Code() string {
	return s.Name
}

func (s Status) Label() string {
	parts := strings.Split(s.Name, "-")
	for i := range parts {
		if len(parts[i]) > 0 {
			parts[i] = strings.ToUpper(parts[i][:1]) + parts[i][1:]
		}
	}
	return strings.Join(parts, " ")
}

// Next returns the only legal successor status, or nil for the terminal one.
// Delivery requests move strictly forward: no skipping, no going back.
func (s Status) Next() *Status {
	for i := range All {
		if All[i].Name == s.Name && i+1 < len(All) {
			next := All[i+1]
			return &next
		}
	}
	return nil
}

// Terminal reports whether no further transitions are legal from s.
func (s Status) Terminal() bool {
	return s.Name == Statuses.Delivered.Name
}

type Enum struct {
	Requested    Status
	Acknowledged Status
	InProgress   Status
	OnTheWay     Status
	Delivered    Status
}

var Statuses = Enum{
	Requested:    Status{Name: "requested"},
	Acknowledged: Status{Name: "acknowledged"},
	InProgress:   Status{Name: "in-progress"},
	OnTheWay:     Status{Name: "on-the-way"},
	Delivered:    Status{Name: "delivered"},
}

var All = []Status{
	Statuses.Requested,
	Statuses.Acknowledged,
	Statuses.InProgress,
	Statuses.OnTheWay,
	Statuses.Delivered,
}

// ByName returns the status for a given name, or nil if not found
func ByName(name string) *Status {
	for _, s := range All {
		if s.Name == name {
			return &s
		}
	}
	return nil
}
