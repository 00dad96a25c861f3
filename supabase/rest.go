package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/kbukum/bizbackend/backend"
	"github.com/kbukum/bizbackend/errors"
	"github.com/kbukum/bizbackend/httpclient"
)

const (
	restPrefix     = "/rest/v1/"
	mediaObject    = "application/vnd.pgrst.object+json"
	preferReturnID = "return=representation"
)

// TokenSource returns the bearer for data requests. An empty token falls
// back to the anon key configured on the client.
type TokenSource func(ctx context.Context) (string, error)

// REST is the PostgREST client implementing backend.RecordStore and
// backend.FunctionCaller.
type REST struct {
	client *httpclient.Client
	token  TokenSource
}

var (
	_ backend.RecordStore    = (*REST)(nil)
	_ backend.FunctionCaller = (*REST)(nil)
)

// NewREST creates a PostgREST client. token may be nil.
func NewREST(client *httpclient.Client, token TokenSource) *REST {
	return &REST{client: client, token: token}
}

// Query returns every row matching q.
func (r *REST) Query(ctx context.Context, q backend.Query) backend.Result[[]backend.Record] {
	if err := q.Validate(); err != nil {
		return backend.Fail[[]backend.Record](err)
	}
	resp, err := r.do(ctx, httpclient.Request{
		Method: http.MethodGet,
		Path:   restPrefix + q.Table,
		Query:  q.Values(),
	})
	if err != nil {
		return backend.Fail[[]backend.Record](translateREST(err, "query", q.Table))
	}
	rows := []backend.Record{}
	if err := decodeBody(resp.Body, &rows); err != nil {
		return backend.Fail[[]backend.Record](errors.ExternalServiceError(backendName, err))
	}
	return backend.OK(rows)
}

// QueryOne returns the first row matching q, or nil Data when none does.
func (r *REST) QueryOne(ctx context.Context, q backend.Query) backend.Result[backend.Record] {
	if err := q.Validate(); err != nil {
		return backend.Fail[backend.Record](err)
	}
	if q.Limit == 0 {
		q.Limit = 1
	}
	resp, err := r.do(ctx, httpclient.Request{
		Method:  http.MethodGet,
		Path:    restPrefix + q.Table,
		Query:   q.Values(),
		Headers: map[string]string{"Accept": mediaObject},
	})
	if err != nil {
		appErr := translateREST(err, "query", q.Table)
		if appErr.BackendCode() == codeNoRows {
			return backend.OK[backend.Record](nil)
		}
		return backend.Fail[backend.Record](appErr)
	}
	var row backend.Record
	if err := decodeBody(resp.Body, &row); err != nil {
		return backend.Fail[backend.Record](errors.ExternalServiceError(backendName, err))
	}
	return backend.OK(row)
}

// Insert writes rec and returns the stored row.
func (r *REST) Insert(ctx context.Context, table string, rec backend.Record) backend.Result[backend.Record] {
	if !backend.ValidIdentifier(table) {
		return backend.Fail[backend.Record](errors.InvalidInput("table", "invalid table name "+table))
	}
	resp, err := r.do(ctx, httpclient.Request{
		Method: http.MethodPost,
		Path:   restPrefix + table,
		Body:   rec,
		Headers: map[string]string{
			"Accept": mediaObject,
			"Prefer": preferReturnID,
		},
	})
	if err != nil {
		return backend.Fail[backend.Record](translateREST(err, "insert", table))
	}
	var row backend.Record
	if err := decodeBody(resp.Body, &row); err != nil {
		return backend.Fail[backend.Record](errors.ExternalServiceError(backendName, err))
	}
	return backend.OK(row)
}

// Update patches the row with id. No matching row yields nil Data.
func (r *REST) Update(ctx context.Context, table, id string, rec backend.Record) backend.Result[backend.Record] {
	if !backend.ValidIdentifier(table) {
		return backend.Fail[backend.Record](errors.InvalidInput("table", "invalid table name "+table))
	}
	resp, err := r.do(ctx, httpclient.Request{
		Method:  http.MethodPatch,
		Path:    restPrefix + table,
		Query:   url.Values{"id": {"eq." + id}},
		Body:    rec,
		Headers: map[string]string{"Prefer": preferReturnID},
	})
	if err != nil {
		return backend.Fail[backend.Record](translateREST(err, "update", table))
	}
	var rows []backend.Record
	if err := decodeBody(resp.Body, &rows); err != nil {
		return backend.Fail[backend.Record](errors.ExternalServiceError(backendName, err))
	}
	if len(rows) == 0 {
		return backend.OK[backend.Record](nil)
	}
	return backend.OK(rows[0])
}

// Delete removes the row with id. Deleting a missing row succeeds.
func (r *REST) Delete(ctx context.Context, table, id string) backend.Result[struct{}] {
	if !backend.ValidIdentifier(table) {
		return backend.Fail[struct{}](errors.InvalidInput("table", "invalid table name "+table))
	}
	_, err := r.do(ctx, httpclient.Request{
		Method: http.MethodDelete,
		Path:   restPrefix + table,
		Query:  url.Values{"id": {"eq." + id}},
	})
	if err != nil {
		return backend.Fail[struct{}](translateREST(err, "delete", table))
	}
	return backend.OK(struct{}{})
}

// CallFunction invokes a Postgres function through /rpc. A void function
// returns JSON null.
func (r *REST) CallFunction(ctx context.Context, name string, params map[string]any) backend.Result[json.RawMessage] {
	if !backend.ValidIdentifier(name) {
		return backend.Fail[json.RawMessage](errors.InvalidInput("function", "invalid function name "+name))
	}
	if params == nil {
		params = map[string]any{}
	}
	resp, err := r.do(ctx, httpclient.Request{
		Method: http.MethodPost,
		Path:   restPrefix + "rpc/" + name,
		Body:   params,
	})
	if err != nil {
		return backend.Fail[json.RawMessage](translateREST(err, "rpc", name))
	}
	body := bytes.TrimSpace(resp.Body)
	if len(body) == 0 {
		body = []byte("null")
	}
	return backend.OK(json.RawMessage(body))
}

func (r *REST) do(ctx context.Context, req httpclient.Request) (*httpclient.Response, error) {
	if r.token != nil {
		token, err := r.token(ctx)
		if err != nil {
			return nil, err
		}
		if token != "" {
			req.Auth = httpclient.BearerAuth(token)
		}
	}
	return r.client.Do(ctx, req)
}

func decodeBody(body []byte, v any) error {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	return json.Unmarshal(body, v)
}
