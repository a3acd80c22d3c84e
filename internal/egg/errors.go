package egg

import "errors"

var (
	// ErrDuplicateType is returned when registering a name that already exists.
	ErrDuplicateType = errors.New("egg type already exists")
	// ErrUnknownType is returned for operations on an unregistered name.
	ErrUnknownType = errors.New("unknown egg type")
	// ErrInvalidRule is returned when a matching rule fails to compile.
	ErrInvalidRule = errors.New("invalid matching rule")
	// ErrChannelUnavailable is returned when the event source cannot serve a
	// history query.
	ErrChannelUnavailable = errors.New("event source unavailable")
	// ErrPersistence is returned when a durable store read or write fails on a
	// synchronous path. Ingestion-path write failures are logged and retried
	// instead, never surfaced.
	ErrPersistence = errors.New("persistent store unavailable")
)
