package db

import (
	"strings"
)

// Query helps build SQL queries using bind parameters.
// Use Unsafe to write fixed parts of a query and Param to add bind parameters.
// The final query and parameters can be retrieved using the Get method.
//
// The zero value is ready to use.
type Query struct {
	b      strings.Builder
	params []any
	sets   int
}

// Unsafe writes a non-parameterized part of a query.
func (q *Query) Unsafe(s string) {
	q.b.WriteString(s)
}

// Param writes a parameterized part of a query.
func (q *Query) Param(v any) {
	q.b.WriteString("?")
	q.params = append(q.params, v)
}

// Params writes multiple parameterized parts of a query separated by commas.
func (q *Query) Params(v ...any) {
	for i, p := range v {
		if i > 0 {
			q.b.WriteString(", ")
		}
		q.Param(p)
	}
}

// Set writes a "column = ?" assignment, prefixed by a comma for every
// assignment after the first one.
func (q *Query) Set(column string, v any) {
	if q.sets > 0 {
		q.b.WriteString(", ")
	}
	q.sets++
	q.b.WriteString(column)
	q.b.WriteString(" = ")
	q.Param(v)
}

// Get returns the constructed query and parameter values.
func (q *Query) Get() (string, []any) {
	return q.b.String(), q.params
}
