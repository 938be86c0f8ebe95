// Package query composes parameterized SQL fragments. Placeholders and their
// values are tracked as one ordered list so positional parameters cannot
// drift apart from the arguments bound to them.
package query

import (
	"fmt"
	"strings"
)

type Builder struct {
	conditions []string
	args       []interface{}
}

func NewBuilder() *Builder {
	return &Builder{}
}

// Arg binds value and returns its positional placeholder, e.g. $3.
func (b *Builder) Arg(value interface{}) string {
	b.args = append(b.args, value)
	return fmt.Sprintf("$%d", len(b.args))
}

// Where adds a condition. Every %s verb in format is replaced by the
// placeholder of a single bound value, so the same parameter may be
// referenced more than once.
func (b *Builder) Where(format string, value interface{}) *Builder {
	placeholder := b.Arg(value)
	n := strings.Count(format, "%s")
	refs := make([]interface{}, n)
	for i := range refs {
		refs[i] = placeholder
	}
	b.conditions = append(b.conditions, fmt.Sprintf(format, refs...))
	return b
}

// WhereEq adds column = value.
func (b *Builder) WhereEq(column string, value interface{}) *Builder {
	return b.Where(column+" = %s", value)
}

// WhereContainsAny matches term as a case-insensitive substring of any of
// the given column expressions. A single parameter is bound.
func (b *Builder) WhereContainsAny(term string, columns ...string) *Builder {
	if len(columns) == 0 {
		return b
	}
	predicates := make([]string, len(columns))
	for i, c := range columns {
		predicates[i] = c + " ILIKE %s"
	}
	return b.Where("("+strings.Join(predicates, " OR ")+")", Contains(term))
}

// WhereClause returns the conditions joined with AND and prefixed with
// WHERE, or an empty string when there are none.
func (b *Builder) WhereClause() string {
	if len(b.conditions) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(b.conditions, " AND ")
}

// Limit returns a LIMIT clause bound to n, or an empty string for n <= 0.
func (b *Builder) Limit(n int) string {
	if n <= 0 {
		return ""
	}
	return " LIMIT " + b.Arg(n)
}

// Args returns the bound values in placeholder order.
func (b *Builder) Args() []interface{} {
	return b.args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// EscapeLike escapes LIKE wildcards using the default backslash escape.
func EscapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// Contains returns a LIKE pattern matching s anywhere.
func Contains(s string) string {
	return "%" + EscapeLike(s) + "%"
}
