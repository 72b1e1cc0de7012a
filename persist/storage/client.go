package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/ministore/persist/persist"
	"github.com/ministore/persist/persist/storage/sqlbuilder"
)

// EntityMapping binds an entity to its table and the tables of its relations
type EntityMapping struct {
	Table     string                     `yaml:"table"`
	Key       string                     `yaml:"key"`
	Relations map[string]RelationMapping `yaml:"relations"`
}

// RelationMapping joins Table.Remote to the parent's Local column. To-one
// relations are fetched with a LEFT JOIN, to-many relations with one child
// query per parent row. Both arrive in the row nested under the include name.
type RelationMapping struct {
	Table  string `yaml:"table"`
	Local  string `yaml:"local"`
	Remote string `yaml:"remote"`
	Order  string `yaml:"order,omitempty"`
}

const (
	rootAlias      = "t"
	childAlias     = "c"
	relKeyPrefix   = "$rel."
	manyPathMarker = "[]."
)

// EntityClient reads one entity from a SQL database
type EntityClient struct {
	db      *sql.DB
	style   sqlbuilder.PlaceholderStyle
	entity  string
	mapping EntityMapping
	logger  *slog.Logger
}

func NewEntityClient(db *sql.DB, style sqlbuilder.PlaceholderStyle, entity string, mapping EntityMapping, logger *slog.Logger) *EntityClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &EntityClient{db: db, style: style, entity: entity, mapping: mapping, logger: logger}
}

type manyInclude struct {
	name     string
	rel      RelationMapping
	fields   []string
	keyAlias string
}

// oneInclude is a joined relation. marker aliases the joined key, which is
// NULL exactly when no related row exists.
type oneInclude struct {
	name   string
	alias  string
	fields []string
	marker string
}

type selectPlan struct {
	stmt    sqlbuilder.Select
	builder *sqlbuilder.Builder
	one     []oneInclude
	many    []manyInclude
}

func (c *EntityClient) relation(include string) (RelationMapping, error) {
	rel, ok := c.mapping.Relations[include]
	if !ok {
		return RelationMapping{}, persist.Wrap(persist.ErrStorage,
			fmt.Sprintf("entity %s has no relation mapping for include %q", c.entity, include), nil)
	}
	return rel, nil
}

// buildSelect turns leaf field paths into a SELECT whose column aliases are
// the paths themselves. rowSchema, when given, must contain every plain leaf.
func (c *EntityClient) buildSelect(rowSchema *persist.RecordSchema, fields, includes []string) (*selectPlan, error) {
	p := &selectPlan{
		stmt:    sqlbuilder.Select{From: c.mapping.Table, Alias: rootAlias},
		builder: sqlbuilder.New(c.style),
	}
	joined := make(map[string]int, len(includes))
	many := make(map[string]int, len(includes))

	for _, leaf := range fields {
		if inc, sub, ok := strings.Cut(leaf, manyPathMarker); ok {
			idx, seen := many[inc]
			if !seen {
				rel, err := c.relation(inc)
				if err != nil {
					return nil, err
				}
				idx = len(p.many)
				many[inc] = idx
				p.many = append(p.many, manyInclude{name: inc, rel: rel, keyAlias: relKeyPrefix + inc})
				p.stmt.AddColumn(sqlbuilder.Column(rootAlias, rel.Local), relKeyPrefix+inc)
			}
			p.many[idx].fields = append(p.many[idx].fields, sub)
			continue
		}
		if inc, sub, ok := strings.Cut(leaf, "."); ok {
			idx, seen := joined[inc]
			if !seen {
				rel, err := c.relation(inc)
				if err != nil {
					return nil, err
				}
				idx = len(p.one)
				joined[inc] = idx
				alias := fmt.Sprintf("r%d", idx)
				p.stmt.Joins = append(p.stmt.Joins, sqlbuilder.Join{
					Table: rel.Table,
					Alias: alias,
					On:    sqlbuilder.Column(alias, rel.Remote) + " = " + sqlbuilder.Column(rootAlias, rel.Local),
				})
				p.one = append(p.one, oneInclude{name: inc, alias: alias, marker: relKeyPrefix + inc})
				p.stmt.AddColumn(sqlbuilder.Column(alias, rel.Remote), relKeyPrefix+inc)
			}
			p.one[idx].fields = append(p.one[idx].fields, sub)
			p.stmt.AddColumn(sqlbuilder.Column(p.one[idx].alias, sub), leaf)
			continue
		}
		if rowSchema != nil && !rowSchema.HasField(leaf) {
			return nil, persist.Wrap(persist.ErrStorage,
				fmt.Sprintf("leaf field %q is not a column of %s", leaf, rowSchema.Name), nil)
		}
		p.stmt.AddColumn(sqlbuilder.Column(rootAlias, leaf), leaf)
	}
	return p, nil
}

// RunQuery reads every row of the entity table
func (c *EntityClient) RunQuery(ctx context.Context, rowSchema, target *persist.RecordSchema, fields, includes []string) (persist.RowStream, error) {
	p, err := c.buildSelect(rowSchema, fields, includes)
	if err != nil {
		return nil, err
	}
	if key := c.mapping.Key; key != "" {
		p.stmt.OrderBy = append(p.stmt.OrderBy, sqlbuilder.Column(rootAlias, key))
	}
	return c.open(ctx, p)
}

// RunQueryByKey reads the row whose key column equals key and nests it
func (c *EntityClient) RunQueryByKey(ctx context.Context, target *persist.RecordSchema, key any, fields, includes []string, includeSchemas []*persist.RecordSchema) (persist.Record, bool, error) {
	if c.mapping.Key == "" {
		return nil, false, persist.Wrap(persist.ErrStorage, fmt.Sprintf("entity %s has no key column", c.entity), nil)
	}
	p, err := c.buildSelect(nil, fields, includes)
	if err != nil {
		return nil, false, err
	}
	p.stmt.Where = append(p.stmt.Where, sqlbuilder.Column(rootAlias, c.mapping.Key)+" = "+p.builder.Arg(key))

	rows, err := c.open(ctx, p)
	if err != nil {
		return nil, false, err
	}
	defer rows.Close()

	row, err := rows.Next(ctx)
	if errors.Is(err, io.EOF) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	plan := persist.Plan{LeafFields: fields, Includes: includes, IncludeSchemas: includeSchemas}
	return persist.Materialize(row, target, plan), true, nil
}

func (c *EntityClient) open(ctx context.Context, p *selectPlan) (*sqlRows, error) {
	query := p.stmt.SQL()
	c.logger.Debug("run entity query", "entity", c.entity, "sql", query)
	rows, err := c.db.QueryContext(ctx, query, p.builder.Args()...)
	if err != nil {
		return nil, persist.Wrap(persist.ErrStorage, "query "+c.entity, err)
	}
	cols, err := rows.Columns()
	if err != nil {
		_ = rows.Close()
		return nil, persist.Wrap(persist.ErrStorage, "columns "+c.entity, err)
	}
	return &sqlRows{client: c, rows: rows, cols: cols, one: p.one, many: p.many}, nil
}
