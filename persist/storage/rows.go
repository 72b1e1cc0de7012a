package storage

import (
	"context"
	"database/sql"
	"io"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/ministore/persist/persist"
	"github.com/ministore/persist/persist/storage/sqlbuilder"
)

// sqlRows streams entity rows. To-many relations of each row are read when
// the row is pulled.
type sqlRows struct {
	client *EntityClient
	rows   *sql.Rows
	cols   []string
	one    []oneInclude
	many   []manyInclude
	closed bool
}

func (r *sqlRows) Next(ctx context.Context) (persist.Row, error) {
	if r.closed {
		return nil, io.EOF
	}
	if !r.rows.Next() {
		if err := r.rows.Err(); err != nil {
			return nil, persist.Wrap(persist.ErrStorage, "read "+r.client.entity, err)
		}
		return nil, io.EOF
	}

	vals := make([]any, len(r.cols))
	ptrs := make([]any, len(r.cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if err := r.rows.Scan(ptrs...); err != nil {
		return nil, persist.Wrap(persist.ErrStorage, "scan "+r.client.entity, err)
	}

	row := make(persist.Row, len(r.cols))
	relKeys := make(map[string]any, len(r.one)+len(r.many))
	for i, col := range r.cols {
		if strings.HasPrefix(col, relKeyPrefix) {
			relKeys[col] = vals[i]
			continue
		}
		row[col] = vals[i]
	}

	for _, inc := range r.one {
		nestOne(row, inc, relKeys[inc.marker])
	}
	if len(r.many) == 0 {
		return row, nil
	}
	children, err := r.client.fetchMany(ctx, r.many, relKeys)
	if err != nil {
		return nil, err
	}
	for i, inc := range r.many {
		row[inc.name] = children[i]
	}
	return row, nil
}

// nestOne moves the joined columns of inc under its name. The include is nil
// when the join found no row, whatever the selected columns hold.
func nestOne(row persist.Row, inc oneInclude, marker any) {
	prefix := persist.IncludePrefix(inc.name, false)
	var sub persist.Record
	if marker != nil {
		sub = make(persist.Record, len(inc.fields))
	}
	for _, f := range inc.fields {
		if sub != nil {
			sub[f] = row[prefix+f]
		}
		delete(row, prefix+f)
	}
	if sub == nil {
		row[inc.name] = nil
		return
	}
	row[inc.name] = sub
}

func (r *sqlRows) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	return r.rows.Close()
}

// fetchMany reads every to-many relation of one parent row concurrently.
// Result i holds the child records of many[i] in query order.
func (c *EntityClient) fetchMany(ctx context.Context, many []manyInclude, parentKeys map[string]any) ([][]persist.Record, error) {
	out := make([][]persist.Record, len(many))
	g, gctx := errgroup.WithContext(ctx)
	for i, inc := range many {
		g.Go(func() error {
			res, err := c.fetchChildren(gctx, inc, parentKeys[inc.keyAlias])
			if err != nil {
				return err
			}
			out[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// fetchChildren returns one record per child row. Child rows are never
// dropped for holding only NULLs in the selected columns.
func (c *EntityClient) fetchChildren(ctx context.Context, inc manyInclude, parentKey any) ([]persist.Record, error) {
	res := []persist.Record{}
	if parentKey == nil {
		return res, nil
	}

	b := sqlbuilder.New(c.style)
	stmt := sqlbuilder.Select{From: inc.rel.Table, Alias: childAlias}
	for _, f := range inc.fields {
		stmt.AddColumn(sqlbuilder.Column(childAlias, f), f)
	}
	stmt.Where = append(stmt.Where, sqlbuilder.Column(childAlias, inc.rel.Remote)+" = "+b.Arg(parentKey))
	if inc.rel.Order != "" {
		stmt.OrderBy = append(stmt.OrderBy, sqlbuilder.Column(childAlias, inc.rel.Order))
	}

	query := stmt.SQL()
	c.logger.Debug("fetch relation", "entity", c.entity, "include", inc.name, "sql", query)
	rows, err := c.db.QueryContext(ctx, query, b.Args()...)
	if err != nil {
		return nil, persist.Wrap(persist.ErrStorage, "query relation "+inc.name, err)
	}
	defer rows.Close()

	for rows.Next() {
		vals := make([]any, len(inc.fields))
		ptrs := make([]any, len(inc.fields))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, persist.Wrap(persist.ErrStorage, "scan relation "+inc.name, err)
		}
		rec := make(persist.Record, len(inc.fields))
		for i, f := range inc.fields {
			rec[f] = vals[i]
		}
		res = append(res, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, persist.Wrap(persist.ErrStorage, "read relation "+inc.name, err)
	}
	return res, nil
}
