package pgstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/kbukum/bizbackend/backend"
	"github.com/kbukum/bizbackend/errors"
)

// CallFunction runs a PostgreSQL function with named arguments and returns
// its result as JSON: a scalar for single-value results, otherwise the rows.
// Other dialects have no server-side functions and report FUNCTION_NOT_FOUND.
func (s *Store) CallFunction(ctx context.Context, name string, params map[string]any) backend.Result[json.RawMessage] {
	if !backend.ValidIdentifier(name) {
		return backend.Fail[json.RawMessage](errors.InvalidInput("function", fmt.Sprintf("invalid function name %q", name)))
	}
	if s.db.Dialect() != backendName {
		return backend.Fail[json.RawMessage](errors.FunctionNotFound(name).WithDetail(errors.DetailBackend, s.db.Dialect()))
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		if !backend.ValidIdentifier(k) || strings.Contains(k, ".") {
			return backend.Fail[json.RawMessage](errors.InvalidInput(k, "invalid parameter name"))
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	args := make([]string, len(keys))
	vars := make([]any, len(keys))
	for i, k := range keys {
		args[i] = quoteIdent(k) + " => ?"
		vars[i] = params[k]
	}
	sql := fmt.Sprintf("SELECT * FROM %s(%s)", quoteIdent(name), strings.Join(args, ", "))

	rows := []map[string]any{}
	if err := s.db.WithContext(ctx).Raw(sql, vars...).Scan(&rows).Error; err != nil {
		return backend.Fail[json.RawMessage](translate(err, "call "+name, name))
	}
	for _, row := range rows {
		normalizeRow(row)
	}

	var out any = rows
	if len(rows) == 1 && len(rows[0]) == 1 {
		for _, v := range rows[0] {
			out = v
		}
	}
	raw, err := json.Marshal(out)
	if err != nil {
		return backend.Fail[json.RawMessage](errors.Internal(err))
	}
	return backend.OK(json.RawMessage(raw))
}

// quoteIdent quotes an already validated, optionally schema-qualified identifier.
func quoteIdent(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = `"` + p + `"`
	}
	return strings.Join(parts, ".")
}
