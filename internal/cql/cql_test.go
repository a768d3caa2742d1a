package cql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild_Empty(t *testing.T) {
	_, ok := Build(nil)
	assert.False(t, ok)

	_, ok = Build([]Row{NewRow()})
	assert.False(t, ok)

	_, err := BuildErr([]Row{{Field: "region_name"}, {Value: "x"}})
	assert.ErrorIs(t, err, ErrEmptyFilter)

	expr, err := BuildErr([]Row{{Field: "region_name", Value: "x"}})
	assert.NoError(t, err)
	assert.Equal(t, "region_name = 'x'", expr)
}

func TestBuild_ConnectiveBelongsToAppendedRow(t *testing.T) {
	rows := []Row{
		{Field: "region_name", Value: "Tel Aviv", Connective: And},
		{Field: "county_name", Value: "5", Connective: Or},
	}

	expr, ok := Build(rows)
	require.True(t, ok)
	assert.Equal(t, "region_name = 'Tel Aviv' OR county_name = 5", expr)
}

func TestBuild_DropsIncompleteRows(t *testing.T) {
	rows := []Row{
		{Field: "", Value: "ignored", Connective: Or},
		{Field: "region_name", Value: "Center", Connective: Or},
		{Field: "county_name", Value: "", Connective: Or},
		{Field: "locality_name", Value: "Haifa", Connective: And},
	}

	expr, ok := Build(rows)
	require.True(t, ok)
	// First retained row's OR is ignored; Haifa row joins with its own AND.
	assert.Equal(t, "region_name = 'Center' AND locality_name = 'Haifa'", expr)
}

func TestBuild_UnknownConnectiveRendersAnd(t *testing.T) {
	rows := []Row{
		{Field: "a", Value: "1"},
		{Field: "b", Value: "2", Connective: "or"},
		{Field: "c", Value: "3", Connective: "XOR; DROP"},
	}

	expr, ok := Build(rows)
	require.True(t, ok)
	assert.Equal(t, "a = 1 OR b = 2 AND c = 3", expr)
}

func TestLiteral(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"007", "007"},
		{"5", "5"},
		{" 42 ", "42"},
		{"-3.5", "-3.5"},
		{".5", ".5"},
		{"5.", "5."},
		{"1e3", "1e3"},
		{"Tel Aviv", "'Tel Aviv'"},
		{"O'Brien", "'O''Brien'"},
		{"1' OR '1'='1", "'1'' OR ''1''=''1'"},
		{"0x1F", "'0x1F'"},
		{"Infinity", "'Infinity'"},
		{"1e", "'1e'"},
		{"   ", "'   '"},
		{"+", "'+'"},
		{".", "'.'"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Literal(tt.in))
		})
	}
}

func TestRowEditing(t *testing.T) {
	rows := AddRow(nil)
	require.Len(t, rows, 1)
	assert.Equal(t, Row{Connective: And}, rows[0])

	rows = AddRow(rows)
	rows = EditRow(rows, 1, AttrField, "county_name")
	rows = EditRow(rows, 1, AttrValue, "5")
	rows = EditRow(rows, 1, AttrConnective, "or")
	assert.Equal(t, Row{Field: "county_name", Value: "5", Connective: Or}, rows[1])

	// Out of range edits and removals are no-ops.
	assert.Equal(t, rows, EditRow(rows, 7, AttrField, "x"))
	assert.Equal(t, rows, EditRow(rows, 0, Attribute("bogus"), "x"))
	assert.Equal(t, rows, RemoveRow(rows, -1))
	assert.Equal(t, rows, RemoveRow(rows, 2))

	rows = RemoveRow(rows, 0)
	require.Len(t, rows, 1)
	assert.Equal(t, "county_name", rows[0].Field)
}

func TestEditRow_DoesNotAliasInput(t *testing.T) {
	rows := []Row{NewRow()}
	edited := EditRow(rows, 0, AttrValue, "x")
	assert.Equal(t, "", rows[0].Value)
	assert.Equal(t, "x", edited[0].Value)
}

func TestFields_ValidateRows(t *testing.T) {
	fields := Fields{{Name: "region_name", Label: "Region"}}

	require.NoError(t, fields.ValidateRows([]Row{NewRow(), {Field: "region_name", Value: "x"}}))
	assert.Error(t, fields.ValidateRows([]Row{{Field: "price; --"}}))
	assert.Error(t, fields.ValidateRows([]Row{{Field: "region_name", Connective: "NOT"}}))
}
