package types

import (
	"agent-tools/pkg/apperr"
)

// ResultStatus is the externally visible outcome of a tool action
type ResultStatus string

const (
	StatusSuccess ResultStatus = "success"
	StatusPending ResultStatus = "pending"
	StatusError   ResultStatus = "error"
)

// ErrorBody is the serialisable form of a failure
type ErrorBody struct {
	Kind    apperr.Kind `json:"kind"`
	Message string      `json:"message"`
	Status  int         `json:"status,omitempty"`
	Details string      `json:"details,omitempty"`
}

// Result is the uniform envelope returned to the agent
type Result struct {
	Status ResultStatus `json:"status"`
	Result any          `json:"result,omitempty"`
	Error  *ErrorBody   `json:"error,omitempty"`
}

// Success wraps a successful payload
func Success(result any) Result {
	return Result{Status: StatusSuccess, Result: result}
}

// Pending wraps a payload whose final state is not known yet
func Pending(result any) Result {
	return Result{Status: StatusPending, Result: result}
}

// Failure converts err into an error envelope
func Failure(err error) Result {
	return Result{Status: StatusError, Error: NewErrorBody(err)}
}

// NewErrorBody flattens err, keeping the kind and any upstream details
func NewErrorBody(err error) *ErrorBody {
	if err == nil {
		return nil
	}
	body := &ErrorBody{Kind: apperr.KindOf(err), Message: err.Error()}
	if e, ok := apperr.As(err); ok {
		body.Status = e.Status
		body.Details = e.Body
	}
	return body
}
