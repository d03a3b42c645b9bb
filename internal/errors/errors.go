package errors

import "fmt"

// FeedError is raised by the feed connection: dial, subscribe, read or close.
// The supervisor treats every FeedError as transient.
type FeedError struct {
	Operation string
	Err       error
}

func (e *FeedError) Error() string {
	return fmt.Sprintf("feed error during %s: %v", e.Operation, e.Err)
}

func (e *FeedError) Unwrap() error { return e.Err }

// DecodeError marks an inbound frame or transaction that could not be decoded.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("decode error: %s", e.Reason)
	}
	return fmt.Sprintf("decode error: %s: %v", e.Reason, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

type AlertError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *AlertError) Error() string {
	return fmt.Sprintf("alert error (status %d): %s - %v", e.StatusCode, e.Message, e.Err)
}

func (e *AlertError) Unwrap() error { return e.Err }

type WebSocketError struct {
	Operation string
	Err       error
}

func (e *WebSocketError) Error() string {
	return fmt.Sprintf("WebSocket error during %s: %v", e.Operation, e.Err)
}

func (e *WebSocketError) Unwrap() error { return e.Err }

type DatabaseError struct {
	Operation string
	Err       error
}

func (e *DatabaseError) Error() string {
	return fmt.Sprintf("database error during %s: %v", e.Operation, e.Err)
}

func (e *DatabaseError) Unwrap() error { return e.Err }

type PublishError struct {
	Sink string
	Err  error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish error on %s: %v", e.Sink, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }

// ConfigError is fatal at startup.
type ConfigError struct {
	Key string
	Err error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error for %s: %v", e.Key, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

type NotFoundError struct {
	Resource   string
	Identifier string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.Identifier)
}

type APIError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (status %d): %s - %v", e.StatusCode, e.Message, e.Err)
}

func (e *APIError) Unwrap() error { return e.Err }
