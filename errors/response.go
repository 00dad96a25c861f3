package errors

// ErrorResponse is the JSON envelope the gateway answers with.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody is the client-visible part of an AppError.
type ErrorBody struct {
	Code      ErrorCode      `json:"code"`
	Message   string         `json:"message"`
	Hint      string         `json:"hint,omitempty"`
	Retryable bool           `json:"retryable"`
	Details   map[string]any `json:"details,omitempty"`
}

// ToResponse converts an AppError to an ErrorResponse for JSON serialization.
func (e *AppError) ToResponse() ErrorResponse {
	return ErrorResponse{
		Error: ErrorBody{
			Code:      e.Code,
			Message:   e.Message,
			Hint:      e.Hint,
			Retryable: e.Retryable,
			Details:   e.Details,
		},
	}
}

// Status returns the HTTP status to answer with, defaulting to 500.
func (e *AppError) Status() int {
	if e.HTTPStatus == 0 {
		return 500
	}
	return e.HTTPStatus
}
