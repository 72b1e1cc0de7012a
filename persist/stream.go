package persist

import (
	"context"
	"errors"
	"io"
	"iter"
)

type streamState int

const (
	streamOpen streamState = iota
	streamExhausted
	streamClosed
	streamFailed
)

// Stream lazily turns raw rows into nested records. It is forward-only and
// must be used by a single consumer.
type Stream struct {
	rows     RowStream
	target   *RecordSchema
	plan     Plan
	state    streamState
	err      error
	released bool
}

// NewStream wraps rows; no row is read until Next is called
func NewStream(rows RowStream, target *RecordSchema, plan Plan) *Stream {
	return &Stream{rows: rows, target: target, plan: plan}
}

// Next returns the next record, or io.EOF once the rows are drained. After a
// failure the same error is returned without reading again.
func (s *Stream) Next(ctx context.Context) (Record, error) {
	switch s.state {
	case streamExhausted:
		return nil, io.EOF
	case streamClosed:
		return nil, StreamClosedError()
	case streamFailed:
		return nil, s.err
	}

	row, err := s.rows.Next(ctx)
	if errors.Is(err, io.EOF) {
		s.state = streamExhausted
		return nil, io.EOF
	}
	if err != nil {
		s.state = streamFailed
		s.err = err
		return nil, err
	}
	return Materialize(row, s.target, s.plan), nil
}

// Close releases the underlying rows. It is safe to call in any state and
// more than once.
func (s *Stream) Close() error {
	if s.state == streamOpen {
		s.state = streamClosed
	}
	if s.released {
		return nil
	}
	s.released = true
	return s.rows.Close()
}

// Err returns the failure that ended the stream, if any
func (s *Stream) Err() error {
	return s.err
}

// Plan returns the plan the stream materializes with
func (s *Stream) Plan() Plan {
	return s.plan
}

// All yields every remaining record. Iteration stops after the first error.
func (s *Stream) All(ctx context.Context) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		for {
			rec, err := s.Next(ctx)
			if errors.Is(err, io.EOF) {
				return
			}
			if !yield(rec, err) || err != nil {
				return
			}
		}
	}
}

// Collect drains the stream and closes it
func (s *Stream) Collect(ctx context.Context) ([]Record, error) {
	var out []Record
	for rec, err := range s.All(ctx) {
		if err != nil {
			_ = s.Close()
			return out, err
		}
		out = append(out, rec)
	}
	return out, s.Close()
}
