package model

import "errors"

// Error kinds. Callers wrap these with context and test them with errors.Is.
var (
	// ErrValidation marks malformed input: missing fields, unsorted or
	// duplicate timestamps, undetectable granularity, bad parameters.
	ErrValidation = errors.New("validation error")

	// ErrDataMismatch marks series that cannot be aligned or joined.
	ErrDataMismatch = errors.New("data mismatch")

	// ErrExecution marks a rejected or failed fill from an execution adapter.
	ErrExecution = errors.New("execution error")

	// ErrCapacity is returned when opening an order would exceed a cap.
	ErrCapacity = errors.New("open order cap reached")

	// ErrOrderClosed is returned when closing an order that is not OPEN.
	ErrOrderClosed = errors.New("order already closed")

	// ErrNoTrades is returned by the summarizer when nothing was matched.
	ErrNoTrades = errors.New("no trade executed")
)
