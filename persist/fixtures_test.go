package persist

import (
	"context"
	"io"
	"sync"
)

func addressSchema() *RecordSchema {
	return NewRecordSchema("Address",
		FieldDescriptor{Name: "city", Type: Scalar("string")},
		FieldDescriptor{Name: "zip", Type: Scalar("string")},
	)
}

func dateSchema() *RecordSchema {
	return NewRecordSchema(TypeDate,
		FieldDescriptor{Name: "year", Type: Scalar("int")},
		FieldDescriptor{Name: "month", Type: Scalar("int")},
		FieldDescriptor{Name: "day", Type: Scalar("int")},
	)
}

func personSchema(addr *Type) *RecordSchema {
	return NewRecordSchema("Person",
		FieldDescriptor{Name: "id", Type: Scalar("int"), Flags: FlagKey},
		FieldDescriptor{Name: "addr", Type: addr, Flags: FlagOptional},
		FieldDescriptor{Name: "name", Type: Scalar("string")},
	)
}

// sliceRows replays rows and then fails with err, or ends with io.EOF
type sliceRows struct {
	mu     sync.Mutex
	rows   []Row
	err    error
	pulls  int
	closes int
}

func (s *sliceRows) Next(ctx context.Context) (Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pulls++
	if len(s.rows) == 0 {
		if s.err != nil {
			return nil, s.err
		}
		return nil, io.EOF
	}
	r := s.rows[0]
	s.rows = s.rows[1:]
	return r, nil
}

func (s *sliceRows) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	return nil
}

type queryCall struct {
	rowSchema *RecordSchema
	target    *RecordSchema
	fields    []string
	includes  []string
}

type byKeyCall struct {
	key            any
	fields         []string
	includes       []string
	includeSchemas []*RecordSchema
}

type fakeClient struct {
	mu       sync.Mutex
	rows     RowStream
	err      error
	record   Record
	found    bool
	panicMsg string
	queries  []queryCall
	lookups  []byKeyCall
}

func (f *fakeClient) RunQuery(ctx context.Context, rowSchema, target *RecordSchema, fields, includes []string) (RowStream, error) {
	f.mu.Lock()
	f.queries = append(f.queries, queryCall{rowSchema: rowSchema, target: target, fields: fields, includes: includes})
	f.mu.Unlock()
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.rows, nil
}

func (f *fakeClient) RunQueryByKey(ctx context.Context, target *RecordSchema, key any, fields, includes []string, includeSchemas []*RecordSchema) (Record, bool, error) {
	f.mu.Lock()
	f.lookups = append(f.lookups, byKeyCall{key: key, fields: fields, includes: includes, includeSchemas: includeSchemas})
	f.mu.Unlock()
	if f.err != nil {
		return nil, false, f.err
	}
	return f.record, f.found, nil
}
