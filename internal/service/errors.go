package service

import (
	"errors"
	"net/http"
)

// ErrNoData means the warehouse returned zero rows
var ErrNoData = errors.New("No data found for the specified parameters")

// ErrNoFeeHistory means fee snapshots are not being recorded
var ErrNoFeeHistory = errors.New("fee history needs a redis cache")

// RequestError is a client mistake that maps to an HTTP status
type RequestError struct {
	Status  int
	Message string
}

func (e *RequestError) Error() string { return e.Message }

func badRequest(msg string) *RequestError {
	return &RequestError{Status: http.StatusBadRequest, Message: msg}
}

// QueryError wraps a warehouse failure
type QueryError struct {
	Err error
}

func (e *QueryError) Error() string { return "BigQuery query failed: " + e.Err.Error() }

func (e *QueryError) Unwrap() error { return e.Err }

// BroadcastError carries the user-facing reason a transaction was not sent
type BroadcastError struct {
	Message string
	Err     error
}

func (e *BroadcastError) Error() string { return e.Message }

func (e *BroadcastError) Unwrap() error { return e.Err }
