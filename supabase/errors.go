package supabase

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/kbukum/bizbackend/errors"
	"github.com/kbukum/bizbackend/httpclient"
)

const backendName = "supabase"

// PostgREST and Postgres codes the adapter distinguishes.
const (
	codeNoRows           = "PGRST116"
	codeFunctionMissing  = "PGRST202"
	codeJWTInvalid       = "PGRST301"
	codeJWTMissing       = "PGRST302"
	codeUniqueViolation  = "23505"
	codeForeignKey       = "23503"
	codeNotNull          = "23502"
	codeCheckViolation   = "23514"
	codeInvalidText      = "22P02"
	codeInsufficientPriv = "42501"
	codeUndefinedFunc    = "42883"
	codeUndefinedColumn  = "42703"
	codeUndefinedTable   = "42P01"
)

// restError is the PostgREST error document.
type restError struct {
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Details json.RawMessage `json:"details"`
	Hint    string          `json:"hint"`
}

// authError covers both GoTrue error document shapes.
type authError struct {
	ErrorCode        string `json:"error_code"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func (a authError) code() string {
	if a.ErrorCode != "" {
		return a.ErrorCode
	}
	return a.Error
}

func (a authError) message() string {
	for _, m := range []string{a.Msg, a.ErrorDescription, a.Message, a.Error} {
		if m != "" {
			return m
		}
	}
	return ""
}

// transportError maps failures that never reached the backend.
func transportError(err error, op string) (*errors.AppError, bool) {
	if appErr, ok := errors.AsAppError(err); ok {
		return appErr, true
	}
	herr, ok := httpclient.AsError(err)
	if !ok {
		return errors.ExternalServiceError(backendName, err), true
	}
	switch herr.Code {
	case httpclient.ErrCodeTimeout:
		return errors.Timeout(op).WithCause(err).WithDetail(errors.DetailBackend, backendName), true
	case httpclient.ErrCodeConnection:
		return errors.ConnectionFailed(backendName).WithCause(err), true
	}
	return nil, false
}

// translateREST converts a PostgREST failure for resource into an AppError.
func translateREST(err error, op, resource string) *errors.AppError {
	if err == nil {
		return nil
	}
	if appErr, done := transportError(err, op); done {
		return appErr
	}
	herr, _ := httpclient.AsError(err)

	var body restError
	_ = json.Unmarshal(herr.Body, &body)

	var appErr *errors.AppError
	switch body.Code {
	case codeUniqueViolation:
		appErr = errors.AlreadyExists(resource)
	case codeForeignKey:
		appErr = errors.MissingReference(resource)
	case codeInsufficientPriv:
		appErr = errors.PermissionDenied(body.Message)
	case codeFunctionMissing, codeUndefinedFunc:
		appErr = errors.FunctionNotFound(resource)
	case codeJWTInvalid, codeJWTMissing:
		appErr = errors.Unauthorized(body.Message)
	case codeNoRows:
		appErr = errors.NotFound(resource, "")
	case codeNotNull, codeCheckViolation, codeInvalidText, codeUndefinedColumn, codeUndefinedTable:
		appErr = errors.InvalidInput("", body.Message)
	default:
		appErr = fromStatus(herr.StatusCode, resource, body.Message)
	}
	return decorate(appErr, herr, body.Code, body.Message, body.Hint, body.Details)
}

// translateAuth converts a GoTrue failure. Client errors are AUTH_ERROR.
func translateAuth(err error, op string) *errors.AppError {
	if err == nil {
		return nil
	}
	if appErr, done := transportError(err, op); done {
		return appErr
	}
	herr, _ := httpclient.AsError(err)

	var body authError
	_ = json.Unmarshal(herr.Body, &body)

	var appErr *errors.AppError
	switch {
	case herr.StatusCode == http.StatusTooManyRequests:
		appErr = errors.New(errors.ErrCodeRateLimited, "too many requests", http.StatusTooManyRequests)
	case herr.StatusCode >= 400 && herr.StatusCode < 500:
		appErr = errors.AuthFailed(body.message())
	default:
		appErr = fromStatus(herr.StatusCode, "auth", body.message())
	}
	return decorate(appErr, herr, body.code(), body.message(), "", nil)
}

func fromStatus(status int, resource, message string) *errors.AppError {
	switch {
	case status == http.StatusUnauthorized:
		return errors.Unauthorized(message)
	case status == http.StatusForbidden:
		return errors.PermissionDenied(message)
	case status == http.StatusNotFound:
		return errors.NotFound(resource, "")
	case status == http.StatusConflict:
		return errors.AlreadyExists(resource)
	case status == http.StatusTooManyRequests:
		return errors.New(errors.ErrCodeRateLimited, "too many requests", status)
	case status == http.StatusServiceUnavailable:
		return errors.ServiceUnavailable(backendName)
	case status >= 500:
		return errors.ExternalServiceError(backendName, fmt.Errorf("HTTP %d", status))
	default:
		return errors.InvalidInput("", message)
	}
}

func decorate(appErr *errors.AppError, herr *httpclient.Error, code, message, hint string, details json.RawMessage) *errors.AppError {
	if message != "" {
		appErr.Message = message
	}
	if hint != "" {
		appErr.Hint = hint
	}
	if code != "" {
		appErr.WithDetail(errors.DetailBackendCode, code)
	}
	if len(details) > 0 && string(details) != "null" {
		var d any
		if json.Unmarshal(details, &d) == nil {
			appErr.WithDetail(errors.DetailInfo, d)
		}
	}
	appErr.WithDetail(errors.DetailBackend, backendName)
	if appErr.Cause == nil {
		appErr.Cause = herr
	}
	return appErr
}
