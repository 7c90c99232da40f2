// Package apperrors defines the error taxonomy of the aggregation service,
// separating upstream transport failures, malformed upstream payloads and
// join integrity violations so the HTTP boundary can map each class to a
// status code.
//
// All error types implement Unwrap() where they carry a cause, so callers
// should use errors.As and errors.Is rather than type switches.
package apperrors
