package pgstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kbukum/bizbackend/backend"
	"github.com/kbukum/bizbackend/errors"
)

var (
	_ backend.RecordStore    = (*Store)(nil)
	_ backend.ProfileStore   = (*Store)(nil)
	_ backend.FunctionCaller = (*Store)(nil)
)

// Store serves records, profiles and functions straight from the database.
// Every table is expected to carry a text or uuid primary key named id.
type Store struct {
	db       *DB
	profiles string
}

// NewStore creates a store on db.
func NewStore(db *DB) *Store {
	return &Store{db: db, profiles: db.cfg.ProfilesTable}
}

// Query returns every row matching q.
func (s *Store) Query(ctx context.Context, q backend.Query) backend.Result[[]backend.Record] {
	if err := q.Validate(); err != nil {
		return backend.Fail[[]backend.Record](errors.InvalidInput("query", err.Error()))
	}
	rows := []map[string]any{}
	if err := s.scope(ctx, q).Find(&rows).Error; err != nil {
		return backend.Fail[[]backend.Record](translate(err, "query", q.Table))
	}
	for _, row := range rows {
		normalizeRow(row)
	}
	return backend.OK(rows)
}

// QueryOne returns the first row matching q, or nil Data when none does.
func (s *Store) QueryOne(ctx context.Context, q backend.Query) backend.Result[backend.Record] {
	q.Limit = 1
	res := s.Query(ctx, q)
	if res.Error != nil {
		return backend.Result[backend.Record]{Error: res.Error}
	}
	if len(res.Data) == 0 {
		return backend.OK[backend.Record](nil)
	}
	return backend.OK(res.Data[0])
}

// Insert stores rec and returns the stored row. A missing id is filled
// with a random UUID.
func (s *Store) Insert(ctx context.Context, table string, rec backend.Record) backend.Result[backend.Record] {
	row, err := columns(table, rec)
	if err != nil {
		return backend.Fail[backend.Record](err)
	}
	if id, ok := row["id"]; !ok || id == nil || id == "" {
		row["id"] = uuid.NewString()
	}
	if err := s.db.WithContext(ctx).Table(table).Create(row).Error; err != nil {
		return backend.Fail[backend.Record](translate(err, "insert", table))
	}
	return s.QueryOne(ctx, backend.From(table).Eq("id", row["id"]))
}

// Update writes rec to the row with id. No matching row yields nil Data.
func (s *Store) Update(ctx context.Context, table, id string, rec backend.Record) backend.Result[backend.Record] {
	if id == "" {
		return backend.Fail[backend.Record](errors.InvalidInput("id", "record id is required"))
	}
	fields, err := columns(table, rec)
	if err != nil {
		return backend.Fail[backend.Record](err)
	}
	delete(fields, "id")
	if len(fields) == 0 {
		return backend.Fail[backend.Record](errors.InvalidInput("record", "no columns to update"))
	}
	res := s.db.WithContext(ctx).Table(table).Where(byID(id)).Updates(fields)
	if res.Error != nil {
		return backend.Fail[backend.Record](translate(res.Error, "update", table))
	}
	if res.RowsAffected == 0 {
		return backend.OK[backend.Record](nil)
	}
	return s.QueryOne(ctx, backend.From(table).Eq("id", id))
}

// Delete removes the row with id. Deleting a missing row succeeds.
func (s *Store) Delete(ctx context.Context, table, id string) backend.Result[struct{}] {
	if !backend.ValidIdentifier(table) {
		return backend.Fail[struct{}](errors.InvalidInput("table", fmt.Sprintf("invalid table name %q", table)))
	}
	if id == "" {
		return backend.Fail[struct{}](errors.InvalidInput("id", "record id is required"))
	}
	err := s.db.WithContext(ctx).
		Exec("DELETE FROM ? WHERE ? = ?", clause.Table{Name: table}, clause.Column{Name: "id"}, id).Error
	if err != nil {
		return backend.Fail[struct{}](translate(err, "delete", table))
	}
	return backend.OK(struct{}{})
}

func (s *Store) scope(ctx context.Context, q backend.Query) *gorm.DB {
	tx := s.db.WithContext(ctx).Table(q.Table)
	if len(q.Columns) > 0 {
		tx = tx.Select(q.Columns)
	}
	for _, f := range q.Filters {
		tx = tx.Where(condition(f))
	}
	for _, o := range q.Orders {
		tx = tx.Order(clause.OrderByColumn{Column: clause.Column{Name: o.Column}, Desc: o.Descending})
	}
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}
	if q.Offset > 0 {
		tx = tx.Offset(q.Offset)
	}
	return tx
}

func byID(id string) clause.Expression {
	return clause.Eq{Column: clause.Column{Name: "id"}, Value: id}
}

func condition(f backend.Filter) clause.Expression {
	col := clause.Column{Name: f.Column}
	switch f.Op {
	case backend.OpNeq:
		return clause.Neq{Column: col, Value: f.Value}
	case backend.OpGt:
		return clause.Gt{Column: col, Value: f.Value}
	case backend.OpGte:
		return clause.Gte{Column: col, Value: f.Value}
	case backend.OpLt:
		return clause.Lt{Column: col, Value: f.Value}
	case backend.OpLte:
		return clause.Lte{Column: col, Value: f.Value}
	case backend.OpLike:
		return clause.Like{Column: col, Value: f.Value}
	case backend.OpIlike:
		return clause.Expr{SQL: "LOWER(?) LIKE LOWER(?)", Vars: []any{col, f.Value}}
	case backend.OpIn:
		return clause.IN{Column: col, Values: inValues(f.Value)}
	case backend.OpIs:
		switch f.Value {
		case true:
			return clause.Expr{SQL: "? IS TRUE", Vars: []any{col}}
		case false:
			return clause.Expr{SQL: "? IS FALSE", Vars: []any{col}}
		default:
			return clause.Expr{SQL: "? IS NULL", Vars: []any{col}}
		}
	default:
		return clause.Eq{Column: col, Value: f.Value}
	}
}

func inValues(v any) []any {
	switch vals := v.(type) {
	case []any:
		return vals
	case []string:
		out := make([]any, len(vals))
		for i, s := range vals {
			out[i] = s
		}
		return out
	case nil:
		return nil
	default:
		return []any{vals}
	}
}

// columns validates the column names of rec and returns a copy with nested
// values encoded as JSON text.
func columns(table string, rec backend.Record) (map[string]any, error) {
	if !backend.ValidIdentifier(table) {
		return nil, errors.InvalidInput("table", fmt.Sprintf("invalid table name %q", table))
	}
	if len(rec) == 0 {
		return nil, errors.InvalidInput("record", "record is empty")
	}
	out := make(map[string]any, len(rec)+1)
	for k, v := range rec {
		if !backend.ValidIdentifier(k) {
			return nil, errors.InvalidInput(k, "invalid column name")
		}
		switch v.(type) {
		case map[string]any, []any:
			raw, err := json.Marshal(v)
			if err != nil {
				return nil, errors.InvalidInput(k, err.Error())
			}
			out[k] = string(raw)
		default:
			out[k] = v
		}
	}
	return out, nil
}

// normalizeRow turns driver-specific scan types into JSON-friendly values.
func normalizeRow(row map[string]any) {
	for k, v := range row {
		switch val := v.(type) {
		case []byte:
			row[k] = string(val)
		case [16]byte:
			row[k] = uuid.UUID(val).String()
		}
	}
}
