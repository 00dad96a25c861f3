package backend

import (
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Operator is a filter operator in PostgREST notation.
type Operator string

const (
	OpEq    Operator = "eq"
	OpNeq   Operator = "neq"
	OpGt    Operator = "gt"
	OpGte   Operator = "gte"
	OpLt    Operator = "lt"
	OpLte   Operator = "lte"
	OpLike  Operator = "like"
	OpIlike Operator = "ilike"
	OpIn    Operator = "in"
	OpIs    Operator = "is"
)

// IsValid reports whether the operator is known.
func (o Operator) IsValid() bool {
	switch o {
	case OpEq, OpNeq, OpGt, OpGte, OpLt, OpLte, OpLike, OpIlike, OpIn, OpIs:
		return true
	}
	return false
}

// Filter is a single column condition. Like patterns use SQL wildcards (%).
// OpIn takes a slice; OpIs takes nil, true or false.
type Filter struct {
	Column string
	Op     Operator
	Value  any
}

// Order sorts by a column.
type Order struct {
	Column     string
	Descending bool
}

// Query describes a read against one table.
type Query struct {
	Table   string
	Columns []string
	Filters []Filter
	Orders  []Order
	Limit   int
	Offset  int
}

// From starts a query on table.
func From(table string) Query {
	return Query{Table: table}
}

// Select restricts the returned columns.
func (q Query) Select(columns ...string) Query {
	q.Columns = append(append([]string(nil), q.Columns...), columns...)
	return q
}

// Where adds a filter.
func (q Query) Where(column string, op Operator, value any) Query {
	q.Filters = append(append([]Filter(nil), q.Filters...), Filter{Column: column, Op: op, Value: value})
	return q
}

// Eq adds an equality filter.
func (q Query) Eq(column string, value any) Query {
	return q.Where(column, OpEq, value)
}

// Sort adds an ordering.
func (q Query) Sort(column string, descending bool) Query {
	q.Orders = append(append([]Order(nil), q.Orders...), Order{Column: column, Descending: descending})
	return q
}

// Page sets limit and offset.
func (q Query) Page(limit, offset int) Query {
	q.Limit, q.Offset = limit, offset
	return q
}

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// ValidIdentifier reports whether s is a plain (optionally schema-qualified) SQL identifier.
func ValidIdentifier(s string) bool {
	return identifierPattern.MatchString(s)
}

// Validate checks identifiers, operators and paging.
func (q Query) Validate() error {
	if !ValidIdentifier(q.Table) {
		return fmt.Errorf("invalid table name %q", q.Table)
	}
	for _, c := range q.Columns {
		if c != "*" && !ValidIdentifier(c) {
			return fmt.Errorf("invalid column %q", c)
		}
	}
	for _, f := range q.Filters {
		if !ValidIdentifier(f.Column) {
			return fmt.Errorf("invalid filter column %q", f.Column)
		}
		if !f.Op.IsValid() {
			return fmt.Errorf("invalid operator %q on %s", f.Op, f.Column)
		}
		if f.Op == OpIs && !isIsValue(f.Value) {
			return fmt.Errorf("operator is on %s takes null, true or false", f.Column)
		}
	}
	for _, o := range q.Orders {
		if !ValidIdentifier(o.Column) {
			return fmt.Errorf("invalid order column %q", o.Column)
		}
	}
	if q.Limit < 0 || q.Offset < 0 {
		return fmt.Errorf("limit and offset must not be negative")
	}
	return nil
}

func isIsValue(v any) bool {
	switch v {
	case nil, true, false:
		return true
	}
	return false
}

// reserved query-string keys that are not filters.
var reservedParams = map[string]bool{"select": true, "order": true, "limit": true, "offset": true}

// Values encodes the query in PostgREST query-string form:
// col=op.value, select=a,b, order=col.desc, limit, offset.
func (q Query) Values() url.Values {
	v := url.Values{}
	if len(q.Columns) > 0 {
		v.Set("select", strings.Join(q.Columns, ","))
	}
	for _, f := range q.Filters {
		v.Add(f.Column, string(f.Op)+"."+encodeFilterValue(f))
	}
	if len(q.Orders) > 0 {
		parts := make([]string, len(q.Orders))
		for i, o := range q.Orders {
			dir := "asc"
			if o.Descending {
				dir = "desc"
			}
			parts[i] = o.Column + "." + dir
		}
		v.Set("order", strings.Join(parts, ","))
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Offset > 0 {
		v.Set("offset", strconv.Itoa(q.Offset))
	}
	return v
}

func encodeFilterValue(f Filter) string {
	switch f.Op {
	case OpIs:
		if f.Value == nil {
			return "null"
		}
		return fmt.Sprint(f.Value)
	case OpIn:
		items := toStrings(f.Value)
		for i, s := range items {
			if strings.ContainsAny(s, ",()\"") {
				items[i] = strconv.Quote(s)
			}
		}
		return "(" + strings.Join(items, ",") + ")"
	case OpLike, OpIlike:
		return strings.ReplaceAll(fmt.Sprint(f.Value), "%", "*")
	default:
		return fmt.Sprint(f.Value)
	}
}

func toStrings(v any) []string {
	switch vals := v.(type) {
	case []string:
		return append([]string(nil), vals...)
	case []any:
		out := make([]string, len(vals))
		for i, x := range vals {
			out[i] = fmt.Sprint(x)
		}
		return out
	case nil:
		return nil
	default:
		return []string{fmt.Sprint(vals)}
	}
}

// ParseQuery reads a query for table from PostgREST-style parameters.
// Filter values stay strings; in lists become []string.
func ParseQuery(table string, params url.Values) (Query, error) {
	q := From(table)
	if sel := params.Get("select"); sel != "" && sel != "*" {
		q.Columns = splitList(sel)
	}
	if order := params.Get("order"); order != "" {
		for _, part := range splitList(order) {
			col, dir, _ := strings.Cut(part, ".")
			q.Orders = append(q.Orders, Order{Column: col, Descending: strings.EqualFold(dir, "desc")})
		}
	}
	var err error
	if q.Limit, err = parseNonNegative(params.Get("limit")); err != nil {
		return Query{}, fmt.Errorf("limit: %w", err)
	}
	if q.Offset, err = parseNonNegative(params.Get("offset")); err != nil {
		return Query{}, fmt.Errorf("offset: %w", err)
	}
	columns := make([]string, 0, len(params))
	for col := range params {
		if !reservedParams[col] {
			columns = append(columns, col)
		}
	}
	sort.Strings(columns)
	for _, col := range columns {
		for _, raw := range params[col] {
			q.Filters = append(q.Filters, parseFilter(col, raw))
		}
	}
	return q, q.Validate()
}

func parseFilter(column, raw string) Filter {
	opText, value, found := strings.Cut(raw, ".")
	op := Operator(opText)
	if !found || !op.IsValid() {
		return Filter{Column: column, Op: OpEq, Value: raw}
	}
	switch op {
	case OpIs:
		switch strings.ToLower(value) {
		case "null":
			return Filter{Column: column, Op: OpIs, Value: nil}
		case "true":
			return Filter{Column: column, Op: OpIs, Value: true}
		case "false":
			return Filter{Column: column, Op: OpIs, Value: false}
		}
		return Filter{Column: column, Op: OpIs, Value: value}
	case OpIn:
		inner := strings.TrimSuffix(strings.TrimPrefix(value, "("), ")")
		return Filter{Column: column, Op: OpIn, Value: splitList(inner)}
	case OpLike, OpIlike:
		return Filter{Column: column, Op: op, Value: strings.ReplaceAll(value, "*", "%")}
	}
	return Filter{Column: column, Op: op, Value: value}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if unq, err := strconv.Unquote(part); err == nil {
			part = unq
		}
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseNonNegative(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("must be a non-negative integer, got %q", s)
	}
	return n, nil
}
