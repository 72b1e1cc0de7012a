package sqlbuilder

import (
	"strconv"
	"strings"
)

type PlaceholderStyle int

const (
	PlaceholderQuestion PlaceholderStyle = iota
	PlaceholderDollar
)

type Builder struct {
	Style PlaceholderStyle
	args  []any
}

func New(style PlaceholderStyle) *Builder {
	return &Builder{Style: style, args: make([]any, 0)}
}

func (b *Builder) Arg(v any) string {
	b.args = append(b.args, v)
	switch b.Style {
	case PlaceholderDollar:
		return "$" + strconv.Itoa(len(b.args))
	default:
		return "?"
	}
}

func (b *Builder) Args() []any { return b.args }
func (b *Builder) Len() int    { return len(b.args) }

// Ident quotes an identifier. Embedded quotes are doubled.
func Ident(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// Column returns a qualified, quoted column reference
func Column(table, column string) string {
	return Ident(table) + "." + Ident(column)
}

// Join is a LEFT JOIN clause
type Join struct {
	Table string
	Alias string
	On    string
}

// Select assembles a single SELECT statement
type Select struct {
	Columns []string
	From    string
	Alias   string
	Joins   []Join
	Where   []string
	OrderBy []string
}

// AddColumn selects expr under a quoted alias
func (s *Select) AddColumn(expr, alias string) {
	s.Columns = append(s.Columns, expr+" AS "+Ident(alias))
}

func (s *Select) SQL() string {
	var sb strings.Builder
	sb.WriteString("SELECT ")
	if len(s.Columns) == 0 {
		sb.WriteString("1")
	} else {
		sb.WriteString(strings.Join(s.Columns, ", "))
	}
	sb.WriteString(" FROM ")
	sb.WriteString(Ident(s.From))
	if s.Alias != "" {
		sb.WriteString(" ")
		sb.WriteString(Ident(s.Alias))
	}
	for _, j := range s.Joins {
		sb.WriteString(" LEFT JOIN ")
		sb.WriteString(Ident(j.Table))
		sb.WriteString(" ")
		sb.WriteString(Ident(j.Alias))
		sb.WriteString(" ON ")
		sb.WriteString(j.On)
	}
	if len(s.Where) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(s.Where, " AND "))
	}
	if len(s.OrderBy) > 0 {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(strings.Join(s.OrderBy, ", "))
	}
	return sb.String()
}
