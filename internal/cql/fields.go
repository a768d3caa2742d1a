package cql

import "fmt"

// Field is one entry of the filterable-attribute allow-list.
type Field struct {
	Name  string `json:"name" mapstructure:"name" doc:"Attribute name" example:"region_name"`
	Label string `json:"label" mapstructure:"label" doc:"Display label" example:"Region"`
}

// Fields is the ordered allow-list of filterable attributes.
type Fields []Field

// Has reports whether name is allowed.
func (f Fields) Has(name string) bool {
	for _, field := range f {
		if field.Name == name {
			return true
		}
	}
	return false
}

// Validate returns an error when name is neither empty nor allowed.
// An empty name is the form's "Select a field" placeholder.
func (f Fields) Validate(name string) error {
	if name == "" || f.Has(name) {
		return nil
	}
	return fmt.Errorf("field %q is not filterable", name)
}

// ValidateRows checks every row's field and connective.
func (f Fields) ValidateRows(rows []Row) error {
	for i, r := range rows {
		if err := f.Validate(r.Field); err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
		if r.Connective != "" && !r.Connective.Valid() {
			return fmt.Errorf("row %d: connective %q must be AND or OR", i, r.Connective)
		}
	}
	return nil
}
