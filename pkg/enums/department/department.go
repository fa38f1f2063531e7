package department

import (
	"strings"
)

type Department struct {
	Name string
}

func (d Department) Code() string {
	return d.Name
}

func (d Department) Label() string {
	if d.Name == Departments.IT.Name || d.Name == Departments.HR.Name {
		return strings.ToUpper(d.Name)
	}
	if len(d.Name) == 0 {
		return d.Name
	}
	return strings.ToUpper(d.Name[:1]) + d.Name[1:]
}

type Enum struct {
	Warehouse  Department
	Kitchen    Department
	Bar        Department
	IT         Department
	Operations Department
	HR         Department
}

var Departments = Enum{
	Warehouse:  Department{Name: "warehouse"},
	Kitchen:    Department{Name: "kitchen"},
	Bar:        Department{Name: "bar"},
	IT:         Department{Name: "it"},
	Operations: Department{Name: "operations"},
	HR:         Department{Name: "hr"},
}

var All = []Department{
	Departments.Warehouse,
	Departments.Kitchen,
	Departments.Bar,
	Departments.IT,
	Departments.Operations,
	Departments.HR,
}

// ByName returns the department for a given name, or nil if not found
func ByName(name string) *Department {
	for _, d := range All {
		if d.Name == name {
			return &d
		}
	}
	return nil
}
