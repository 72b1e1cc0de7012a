package persist

import (
	"context"
	"log/slog"
)

// TypeKind classifies a declared field type
type TypeKind int

const (
	KindScalar TypeKind = iota
	KindRecord
	KindArray
	KindRef
)

func (k TypeKind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindRecord:
		return "record"
	case KindArray:
		return "array"
	case KindRef:
		return "ref"
	default:
		return "unknown"
	}
}

// Type describes the declared type of a field.
//
// A KindRef type names another type; a nil Target means the reference is
// dangling and the type cannot be resolved.
type Type struct {
	Kind   TypeKind
	Name   string
	Record *RecordSchema // KindRecord
	Elem   *Type         // KindArray
	Target *Type         // KindRef
}

func Scalar(name string) *Type {
	return &Type{Kind: KindScalar, Name: name}
}

// RecordOf returns a record type named after its schema
func RecordOf(s *RecordSchema) *Type {
	name := ""
	if s != nil {
		name = s.Name
	}
	return &Type{Kind: KindRecord, Name: name, Record: s}
}

func ArrayOf(elem *Type) *Type {
	return &Type{Kind: KindArray, Elem: elem}
}

func Ref(name string, target *Type) *Type {
	return &Type{Kind: KindRef, Name: name, Target: target}
}

func (t *Type) String() string {
	if t == nil {
		return "<nil>"
	}
	switch t.Kind {
	case KindArray:
		return t.Elem.String() + "[]"
	default:
		if t.Name == "" {
			return t.Kind.String()
		}
		return t.Name
	}
}

// Record is a nested result value. Relation fields hold a Record, a
// []Record, or nil.
type Record map[string]any

// Row is one flat row from a storage client keyed by leaf field path.
type Row map[string]any

// RowStream is a forward-only stream of raw rows. Next returns io.EOF once
// the stream is drained.
type RowStream interface {
	Next(ctx context.Context) (Row, error)
	Close() error
}

// Client executes reads for a single entity.
type Client interface {
	RunQuery(ctx context.Context, rowSchema, target *RecordSchema, fields, includes []string) (RowStream, error)
	RunQueryByKey(ctx context.Context, target *RecordSchema, key any, fields, includes []string, includeSchemas []*RecordSchema) (Record, bool, error)
}

// Registry resolves the storage client of an entity
type Registry interface {
	Client(entity string) (Client, bool)
}

// Clients is a fixed entity name to client lookup table
type Clients map[string]Client

func (c Clients) Client(entity string) (Client, bool) {
	cl, ok := c[entity]
	return cl, ok
}

// Options configures a Dispatcher
type Options struct {
	Workers    int
	Logger     *slog.Logger
	KnownTypes KnownTypes
}

// DefaultOptions returns sensible defaults
func DefaultOptions() Options {
	return Options{
		Workers:    DefaultWorkers,
		Logger:     slog.Default(),
		KnownTypes: DefaultKnownTypes(),
	}
}
