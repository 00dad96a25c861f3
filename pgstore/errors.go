package pgstore

import (
	"context"
	"database/sql"
	"database/sql/driver"
	stderrors "errors"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/kbukum/bizbackend/errors"
)

const backendName = "postgres"

// SQLSTATE codes the store classifies.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeNotNullViolation    = "23502"
	codeCheckViolation      = "23514"
	codeInvalidText         = "22P02"
	codeUndefinedColumn     = "42703"
	codeUndefinedTable      = "42P01"
	codeUndefinedFunction   = "42883"
	codeInsufficientPriv    = "42501"
	codeQueryCanceled       = "57014"
	codeTooManyConnections  = "53300"
)

// translate converts a driver or gorm error into an AppError. resource is
// the table or function name the operation touched.
func translate(err error, op, resource string) *errors.AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := errors.AsAppError(err); ok {
		return appErr
	}

	var pgErr *pgconn.PgError
	if stderrors.As(err, &pgErr) {
		return fromSQLState(pgErr, op, resource)
	}

	var appErr *errors.AppError
	switch {
	case stderrors.Is(err, gorm.ErrDuplicatedKey) || hasPattern(err, "unique constraint failed"):
		appErr = errors.AlreadyExists(resource).WithDetail(errors.DetailBackendCode, codeUniqueViolation)
	case stderrors.Is(err, gorm.ErrForeignKeyViolated) || hasPattern(err, "foreign key constraint failed"):
		appErr = errors.MissingReference(resource).WithDetail(errors.DetailBackendCode, codeForeignKeyViolation)
	case stderrors.Is(err, gorm.ErrCheckConstraintViolated):
		appErr = errors.InvalidInput("", err.Error()).WithDetail(errors.DetailBackendCode, codeCheckViolation)
	case stderrors.Is(err, gorm.ErrInvalidField):
		appErr = errors.InvalidInput("", err.Error()).WithDetail(errors.DetailBackendCode, codeUndefinedColumn)
	case stderrors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err):
		appErr = errors.Timeout(op)
	case isConnectionError(err):
		appErr = errors.ConnectionFailed(backendName)
	default:
		appErr = errors.DatabaseError(err)
	}
	if appErr.Cause == nil {
		appErr.WithCause(err)
	}
	return appErr.WithDetail(errors.DetailBackend, backendName)
}

func fromSQLState(pgErr *pgconn.PgError, op, resource string) *errors.AppError {
	var appErr *errors.AppError
	switch code := pgErr.Code; {
	case code == codeUniqueViolation:
		appErr = errors.AlreadyExists(resource)
	case code == codeForeignKeyViolation:
		appErr = errors.MissingReference(resource)
	case code == codeInsufficientPriv:
		appErr = errors.PermissionDenied(pgErr.Message)
	case code == codeUndefinedFunction:
		appErr = errors.FunctionNotFound(resource)
	case code == codeNotNullViolation, code == codeCheckViolation, code == codeInvalidText,
		code == codeUndefinedColumn, code == codeUndefinedTable:
		appErr = errors.InvalidInput(pgErr.ColumnName, pgErr.Message)
	case code == codeQueryCanceled:
		appErr = errors.Timeout(op)
	case code == codeTooManyConnections:
		appErr = errors.ServiceUnavailable(backendName)
	case strings.HasPrefix(code, "08"):
		appErr = errors.ConnectionFailed(backendName)
	default:
		appErr = errors.DatabaseError(pgErr)
	}
	appErr.WithCause(pgErr).WithDetails(map[string]any{
		errors.DetailBackend:     backendName,
		errors.DetailBackendCode: pgErr.Code,
	})
	if pgErr.Detail != "" {
		appErr.WithDetail(errors.DetailInfo, pgErr.Detail)
	}
	if pgErr.Hint != "" {
		appErr.WithHint(pgErr.Hint)
	}
	return appErr
}

var connectionPatterns = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"no route to host",
	"network is unreachable",
	"connection closed",
	"driver: bad connection",
}

func isConnectionError(err error) bool {
	var connErr *pgconn.ConnectError
	var netErr net.Error
	if stderrors.As(err, &connErr) || stderrors.As(err, &netErr) ||
		stderrors.Is(err, driver.ErrBadConn) || stderrors.Is(err, sql.ErrConnDone) {
		return true
	}
	return hasPattern(err, connectionPatterns...)
}

func hasPattern(err error, patterns ...string) bool {
	msg := strings.ToLower(err.Error())
	for _, p := range patterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
