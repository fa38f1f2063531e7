package alerttype

import (
	"strings"
)

type AlertType struct {
	Name string
}

func (a AlertType) Code() string {
	return a.Name
}

func (a AlertType) Label() string {
	if len(a.Name) == 0 {
		return a.Name
	}
	return strings.ToUpper(a.Name[:1]) + a.Name[1:]
}

type Enum struct {
	Medical   AlertType
	Security  AlertType
	Fire      AlertType
	Equipment AlertType
	Weather   AlertType
	Other     AlertType
}

var Types = Enum{
	Medical:   AlertType{Name: "medical"},
	Security:  AlertType{Name: "security"},
	Fire:      AlertType{Name: "fire"},
	Equipment: AlertType{Name: "equipment"},
	Weather:   AlertType{Name: "weather"},
	Other:     AlertType{Name: "other"},
}

var All = []AlertType{
	Types.Medical,
	Types.Security,
	Types.Fire,
	Types.Equipment,
	Types.Weather,
	Types.Other,
}

// ByName returns the alert type for a given name, or nil if not found
func ByName(name string) *AlertType {
	for _, a := range All {
		if a.Name == name {
			return &a
		}
	}
	return nil
}
