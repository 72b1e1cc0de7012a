package persist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/panjf2000/ants/v2"
)

// Dispatcher runs entity queries against the clients of a registry. Each
// client call runs as one task on a worker pool while the caller waits for
// it to finish.
type Dispatcher struct {
	registry  Registry
	flattener Flattener
	pool      *ants.Pool
	logger    *slog.Logger
}

// NewDispatcher creates a dispatcher over reg
func NewDispatcher(reg Registry, opts Options) (*Dispatcher, error) {
	if reg == nil {
		return nil, ConfigError("registry is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, Wrap(ErrConfig, "create worker pool", err)
	}
	return &Dispatcher{
		registry:  reg,
		flattener: NewFlattener(opts.KnownTypes),
		pool:      pool,
		logger:    logger,
	}, nil
}

// Close releases the worker pool
func (d *Dispatcher) Close() error {
	d.pool.Release()
	return nil
}

// Flattener returns the flattener used to plan queries
func (d *Dispatcher) Flattener() Flattener {
	return d.flattener
}

func (d *Dispatcher) client(entity string) (Client, error) {
	cl, ok := d.registry.Client(entity)
	if !ok || cl == nil {
		return nil, UnknownEntityError(entity)
	}
	return cl, nil
}

// Query dispatches a multi-row read of entity shaped as target. The returned
// stream has not read any rows yet.
func (d *Dispatcher) Query(ctx context.Context, entity string, target *RecordSchema) (*Stream, error) {
	cl, err := d.client(entity)
	if err != nil {
		return nil, err
	}
	plan, err := d.flattener.Flatten(target)
	if err != nil {
		return nil, err
	}
	rowSchema, err := d.flattener.ProjectRowSchema(target)
	if err != nil {
		return nil, err
	}

	d.logger.Debug("dispatch query",
		"entity", entity,
		"fields", len(plan.LeafFields),
		"includes", plan.Includes,
	)

	rows, err := await(d, func() (RowStream, error) {
		return cl.RunQuery(ctx, rowSchema, target, plan.LeafFields, plan.Includes)
	})
	if err != nil {
		d.logger.Warn("query failed", "entity", entity, "error", err)
		return nil, err
	}
	if rows == nil {
		return nil, New(ErrStorage, fmt.Sprintf("client for %s returned no row stream", entity))
	}
	return NewStream(rows, target, plan), nil
}

type lookup struct {
	rec   Record
	found bool
}

// QueryOne reads a single entity by key. The client returns the record
// fully nested; found is false when no record matches.
func (d *Dispatcher) QueryOne(ctx context.Context, entity string, key any, target *RecordSchema) (Record, bool, error) {
	cl, err := d.client(entity)
	if err != nil {
		return nil, false, err
	}
	plan, err := d.flattener.Flatten(target)
	if err != nil {
		return nil, false, err
	}

	d.logger.Debug("dispatch query by key",
		"entity", entity,
		"key", key,
		"fields", len(plan.LeafFields),
		"includes", plan.Includes,
	)

	res, err := await(d, func() (lookup, error) {
		rec, found, err := cl.RunQueryByKey(ctx, target, key, plan.LeafFields, plan.Includes, plan.IncludeSchemas)
		return lookup{rec: rec, found: found}, err
	})
	if err != nil {
		d.logger.Warn("query by key failed", "entity", entity, "error", err)
		return nil, false, err
	}
	if !res.found {
		return nil, false, nil
	}
	return res.rec, true, nil
}

type result[T any] struct {
	val T
	err error
}

// await runs fn on the pool and blocks until it returns. Errors from fn are
// passed through untouched; a panic in fn becomes an ErrStorage error.
func await[T any](d *Dispatcher, fn func() (T, error)) (T, error) {
	done := make(chan result[T], 1)
	task := func() {
		defer func() {
			if v := recover(); v != nil {
				d.logger.Error("storage client panic", "panic", v)
				var zero T
				done <- result[T]{val: zero, err: Wrap(ErrStorage, "storage client panic", fmt.Errorf("%v", v))}
			}
		}()
		val, err := fn()
		done <- result[T]{val: val, err: err}
	}
	if err := d.pool.Submit(task); err != nil {
		var zero T
		if errors.Is(err, ants.ErrPoolClosed) {
			return zero, ClosedError("dispatcher")
		}
		return zero, Wrap(ErrStorage, "submit query", err)
	}
	r := <-done
	return r.val, r.err
}
