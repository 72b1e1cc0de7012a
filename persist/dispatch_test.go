package persist

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type storeError struct {
	code int
}

func (e *storeError) Error() string { return "store failure" }

func newDispatcher(t *testing.T, clients Clients) *Dispatcher {
	t.Helper()
	opts := DefaultOptions()
	opts.Workers = 4
	opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	d, err := NewDispatcher(clients, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func TestQueryPassesPlanToClient(t *testing.T) {
	addr := addressSchema()
	target := personSchema(ArrayOf(RecordOf(addr)))
	rows := &sliceRows{rows: []Row{
		{"id": 7, "name": "Ann", "addr[].city": []any{"X"}, "addr[].zip": []any{"1"}},
	}}
	client := &fakeClient{rows: rows}
	d := newDispatcher(t, Clients{"Person": client})
	ctx := context.Background()

	s, err := d.Query(ctx, "Person", target)
	require.NoError(t, err)
	assert.Equal(t, 0, rows.pulls, "no rows are read before Next")

	require.Len(t, client.queries, 1)
	call := client.queries[0]
	assert.Same(t, target, call.target)
	assert.Equal(t, []string{"id", "addr[].city", "addr[].zip", "name"}, call.fields)
	assert.Equal(t, []string{"addr"}, call.includes)
	addrCol, ok := call.rowSchema.Field("addr")
	require.True(t, ok)
	assert.Equal(t, PlaceholderType, addrCol.Type.Name)

	got, err := s.Collect(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Record{{
		"id":   7,
		"name": "Ann",
		"addr": []Record{{"city": "X", "zip": "1"}},
	}}, got)
}

func TestQueryUnknownEntity(t *testing.T) {
	client := &fakeClient{}
	d := newDispatcher(t, Clients{"Person": client})

	_, err := d.Query(context.Background(), "Robot", personSchema(Scalar("string")))
	require.Error(t, err)
	assert.True(t, IsKind(err, ErrUnknownEntity))
	assert.Empty(t, client.queries)
}

func TestQueryOneUnknownEntity(t *testing.T) {
	client := &fakeClient{}
	d := newDispatcher(t, Clients{"Person": client})

	_, _, err := d.QueryOne(context.Background(), "Robot", 1, personSchema(Scalar("string")))
	require.Error(t, err)
	assert.True(t, IsKind(err, ErrUnknownEntity))
	assert.Empty(t, client.lookups)
}

func TestQueryPropagatesClientErrorUnchanged(t *testing.T) {
	want := &storeError{code: 42}
	client := &fakeClient{err: want}
	d := newDispatcher(t, Clients{"Person": client})

	_, err := d.Query(context.Background(), "Person", personSchema(Scalar("string")))
	require.Error(t, err)
	assert.Same(t, want, err)

	var se *storeError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, 42, se.code)
}

func TestQueryMalformedSchemaSkipsClient(t *testing.T) {
	client := &fakeClient{}
	d := newDispatcher(t, Clients{"Person": client})

	_, err := d.Query(context.Background(), "Person", personSchema(Ref("Missing", nil)))
	assert.True(t, IsKind(err, ErrMalformedSchema))
	_, _, err = d.QueryOne(context.Background(), "Person", 1, personSchema(Ref("Missing", nil)))
	assert.True(t, IsKind(err, ErrMalformedSchema))
	assert.Empty(t, client.queries)
	assert.Empty(t, client.lookups)
}

func TestQueryRecoversClientPanic(t *testing.T) {
	client := &fakeClient{panicMsg: "driver exploded"}
	d := newDispatcher(t, Clients{"Person": client})

	_, err := d.Query(context.Background(), "Person", personSchema(Scalar("string")))
	require.Error(t, err)
	assert.True(t, IsKind(err, ErrStorage))
	assert.Contains(t, err.Error(), "driver exploded")
}

func TestQueryOne(t *testing.T) {
	addr := addressSchema()
	target := personSchema(RecordOf(addr))
	want := Record{"id": 1, "name": "Bob", "addr": Record{"city": "X", "zip": "1"}}
	client := &fakeClient{record: want, found: true}
	d := newDispatcher(t, Clients{"Person": client})

	got, found, err := d.QueryOne(context.Background(), "Person", 1, target)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, want, got)

	require.Len(t, client.lookups, 1)
	call := client.lookups[0]
	assert.Equal(t, 1, call.key)
	assert.Equal(t, []string{"id", "addr.city", "addr.zip", "name"}, call.fields)
	assert.Equal(t, []string{"addr"}, call.includes)
	assert.Equal(t, []*RecordSchema{addr}, call.includeSchemas)
}

func TestQueryOneNotFound(t *testing.T) {
	client := &fakeClient{found: false}
	d := newDispatcher(t, Clients{"Person": client})

	got, found, err := d.QueryOne(context.Background(), "Person", 99, personSchema(Scalar("string")))
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, got)
}

func TestQueryOnePropagatesClientError(t *testing.T) {
	want := &storeError{code: 7}
	d := newDispatcher(t, Clients{"Person": &fakeClient{err: want}})

	_, _, err := d.QueryOne(context.Background(), "Person", 1, personSchema(Scalar("string")))
	assert.Same(t, want, err)
}

func TestNewDispatcherRequiresRegistry(t *testing.T) {
	_, err := NewDispatcher(nil, DefaultOptions())
	assert.True(t, IsKind(err, ErrConfig))
}

func TestDispatcherConcurrentQueries(t *testing.T) {
	d := newDispatcher(t, Clients{"Person": &fakeClient{record: Record{"id": 1}, found: true}})
	target := personSchema(Scalar("string"))

	errs := make(chan error, 32)
	for i := 0; i < cap(errs); i++ {
		go func(key int) {
			_, _, err := d.QueryOne(context.Background(), "Person", key, target)
			errs <- err
		}(i)
	}
	for i := 0; i < cap(errs); i++ {
		assert.NoError(t, <-errs)
	}
}

func TestQueryRejectsMissingRowStream(t *testing.T) {
	client := &fakeClient{}
	d := newDispatcher(t, Clients{"Person": client})

	s, err := d.Query(context.Background(), "Person", personSchema(Scalar("string")))
	require.Error(t, err)
	assert.Nil(t, s)
	assert.True(t, IsKind(err, ErrStorage), "got %v", err)
	assert.Contains(t, err.Error(), "no row stream")
	assert.Len(t, client.queries, 1)
}

func TestQueryAfterClose(t *testing.T) {
	client := &fakeClient{rows: &sliceRows{}, found: true}
	d := newDispatcher(t, Clients{"Person": client})
	require.NoError(t, d.Close())
	target := personSchema(Scalar("string"))

	_, err := d.Query(context.Background(), "Person", target)
	require.Error(t, err)
	assert.True(t, IsKind(err, ErrClosed), "got %v", err)
	assert.False(t, IsKind(err, ErrStorage))

	_, _, err = d.QueryOne(context.Background(), "Person", 1, target)
	assert.True(t, IsKind(err, ErrClosed), "got %v", err)
	assert.Empty(t, client.queries)
	assert.Empty(t, client.lookups)
}

func TestQueryPathLikeFieldSkipsClient(t *testing.T) {
	client := &fakeClient{rows: &sliceRows{}}
	d := newDispatcher(t, Clients{"Person": client})
	s := NewRecordSchema("Person", FieldDescriptor{Name: "addr.city", Type: Scalar("string")})

	_, err := d.Query(context.Background(), "Person", s)
	assert.True(t, IsKind(err, ErrMalformedSchema), "got %v", err)
	_, _, err = d.QueryOne(context.Background(), "Person", 1, s)
	assert.True(t, IsKind(err, ErrMalformedSchema), "got %v", err)
	assert.Empty(t, client.queries)
	assert.Empty(t, client.lookups)
}
