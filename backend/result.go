package backend

import (
	"context"
	"encoding/json"

	"github.com/kbukum/bizbackend/errors"
)

// Result pairs data with a normalised error. Exactly one of them is meaningful:
// when Error is nil, Data holds the outcome (which may itself be empty).
type Result[T any] struct {
	Data  T                `json:"data"`
	Error *errors.AppError `json:"error,omitempty"`
}

// OK wraps a successful value.
func OK[T any](data T) Result[T] {
	return Result[T]{Data: data}
}

// Fail wraps an error, normalising plain errors to internal AppErrors.
func Fail[T any](err error) Result[T] {
	return Result[T]{Error: errors.From(err)}
}

// Err returns the error as a plain error value, nil on success.
func (r Result[T]) Err() error {
	if r.Error == nil {
		return nil
	}
	return r.Error
}

// OK reports whether the result carries no error.
func (r Result[T]) OK() bool { return r.Error == nil }

// Unwrap returns data and error in the usual Go order.
func (r Result[T]) Unwrap() (T, error) {
	return r.Data, r.Err()
}

// Decode converts loosely typed data (maps, slices of maps) into T via JSON.
func Decode[T any](src any) (T, error) {
	var out T
	raw, err := json.Marshal(src)
	if err != nil {
		return out, errors.Internal(err)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, errors.InvalidInput("", "row does not match the requested shape").WithCause(err)
	}
	return out, nil
}

// QueryAs runs q and decodes every row into T.
func QueryAs[T any](ctx context.Context, s RecordStore, q Query) Result[[]T] {
	res := s.Query(ctx, q)
	if res.Error != nil {
		return Result[[]T]{Error: res.Error}
	}
	out, err := Decode[[]T](res.Data)
	if err != nil {
		return Fail[[]T](err)
	}
	if out == nil {
		out = []T{}
	}
	return OK(out)
}

// QueryOneAs runs q for a single row. A missing row yields a nil Data and no error.
func QueryOneAs[T any](ctx context.Context, s RecordStore, q Query) Result[*T] {
	res := s.QueryOne(ctx, q)
	if res.Error != nil {
		return Result[*T]{Error: res.Error}
	}
	if res.Data == nil {
		return OK[*T](nil)
	}
	out, err := Decode[T](res.Data)
	if err != nil {
		return Fail[*T](err)
	}
	return OK(&out)
}

// InsertAs inserts rec and decodes the stored row into T.
func InsertAs[T any](ctx context.Context, s RecordStore, table string, rec Record) Result[*T] {
	return decodeOne[T](s.Insert(ctx, table, rec))
}

// UpdateAs updates the row with id and decodes the stored row into T.
// No matching row yields a nil Data and no error.
func UpdateAs[T any](ctx context.Context, s RecordStore, table, id string, rec Record) Result[*T] {
	return decodeOne[T](s.Update(ctx, table, id, rec))
}

func decodeOne[T any](res Result[Record]) Result[*T] {
	if res.Error != nil {
		return Result[*T]{Error: res.Error}
	}
	if res.Data == nil {
		return OK[*T](nil)
	}
	out, err := Decode[T](res.Data)
	if err != nil {
		return Fail[*T](err)
	}
	return OK(&out)
}
