package cql

import (
	"errors"
	"strings"
)

// ErrEmptyFilter is returned when no row has both a field and a value.
// It is a no-op signal, not a user-facing failure.
var ErrEmptyFilter = errors.New("no valid filter rows")

// Clause is a single equality comparison.
type Clause struct {
	Field string
	Value string
}

// String renders the clause as "field = literal".
func (c Clause) String() string {
	return c.Field + " = " + Literal(c.Value)
}

// Build renders the retained rows as one expression. It returns false when
// no row is retained, in which case no fetch should be issued.
func Build(rows []Row) (string, bool) {
	var b strings.Builder
	n := 0
	for _, r := range rows {
		if !r.Retained() {
			continue
		}
		if n > 0 {
			b.WriteString(" ")
			b.WriteString(r.Connective.String())
			b.WriteString(" ")
		}
		b.WriteString(Clause{Field: r.Field, Value: r.Value}.String())
		n++
	}
	if n == 0 {
		return "", false
	}
	return b.String(), true
}

// BuildErr is Build returning ErrEmptyFilter instead of a bool.
func BuildErr(rows []Row) (string, error) {
	expr, ok := Build(rows)
	if !ok {
		return "", ErrEmptyFilter
	}
	return expr, nil
}

// Literal renders a value as a CQL literal.
//
// A value that is entirely a decimal number (blanks trimmed) is rendered
// bare, so "5" and "007" become 5 and 007. This is a guess about the
// column type: zero-padded codes stored as text will not match. Everything
// else is single-quoted with embedded quotes doubled.
func Literal(value string) string {
	if IsNumeric(value) {
		return strings.TrimSpace(value)
	}
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}

// IsNumeric reports whether the trimmed value matches
// [+-]?(digits[.digits] | .digits)([eE][+-]?digits)?.
func IsNumeric(value string) bool {
	s := strings.TrimSpace(value)
	if s == "" {
		return false
	}
	i := 0
	if s[i] == '+' || s[i] == '-' {
		i++
	}
	intDigits := countDigits(s[i:])
	i += intDigits
	fracDigits := 0
	if i < len(s) && s[i] == '.' {
		i++
		fracDigits = countDigits(s[i:])
		i += fracDigits
	}
	if intDigits == 0 && fracDigits == 0 {
		return false
	}
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		i++
		if i < len(s) && (s[i] == '+' || s[i] == '-') {
			i++
		}
		exp := countDigits(s[i:])
		if exp == 0 {
			return false
		}
		i += exp
	}
	return i == len(s)
}

func countDigits(s string) int {
	n := 0
	for n < len(s) && s[n] >= '0' && s[n] <= '9' {
		n++
	}
	return n
}
