// Package cql builds GeoServer CQL filter expressions from filter form rows.
//
// Rows are edited interactively (add, remove, edit one attribute) and read
// once at submission time by [Build], which renders
//
//	field = literal [AND|OR field = literal ...]
//
// Each row's own connective joins it to the previous retained row; the
// first retained row's connective is ignored.
package cql

import "strings"

// Connective joins a row's clause to the clause before it.
type Connective string

const (
	And Connective = "AND"
	Or  Connective = "OR"
)

// String renders the connective as it appears in an expression.
// Anything other than OR (case-insensitive) renders as AND.
func (c Connective) String() string {
	if strings.EqualFold(string(c), string(Or)) {
		return string(Or)
	}
	return string(And)
}

// Valid reports whether c is AND or OR.
func (c Connective) Valid() bool {
	return strings.EqualFold(string(c), string(And)) || strings.EqualFold(string(c), string(Or))
}

// Attribute names one editable column of a Row.
type Attribute string

const (
	AttrField      Attribute = "field"
	AttrValue      Attribute = "value"
	AttrConnective Attribute = "connective"
)

// Row is one line of the filter form.
type Row struct {
	Field      string     `json:"field" doc:"Attribute name from the allow-list" example:"region_name"`
	Value      string     `json:"value" doc:"Value to match" example:"Tel Aviv"`
	Connective Connective `json:"connective" enum:"AND,OR" default:"AND" doc:"Joins this row to the previous one"`
}

// NewRow returns the blank row the form starts with.
func NewRow() Row {
	return Row{Connective: And}
}

// Retained reports whether the row contributes a clause.
func (r Row) Retained() bool {
	return r.Field != "" && r.Value != ""
}

// AddRow returns rows with a blank row appended.
func AddRow(rows []Row) []Row {
	out := make([]Row, len(rows), len(rows)+1)
	copy(out, rows)
	return append(out, NewRow())
}

// RemoveRow returns rows without the row at index. Out-of-range indexes
// return an unchanged copy.
func RemoveRow(rows []Row, index int) []Row {
	out := make([]Row, 0, len(rows))
	for i, r := range rows {
		if i != index {
			out = append(out, r)
		}
	}
	return out
}

// EditRow returns rows with one attribute of the row at index replaced.
// The field is not checked against the allow-list here; callers validate
// with [Fields.Validate] before accepting user input.
func EditRow(rows []Row, index int, attr Attribute, value string) []Row {
	out := make([]Row, len(rows))
	copy(out, rows)
	if index < 0 || index >= len(out) {
		return out
	}
	switch attr {
	case AttrField:
		out[index].Field = value
	case AttrValue:
		out[index].Value = value
	case AttrConnective:
		out[index].Connective = Connective(strings.ToUpper(value))
	}
	return out
}
