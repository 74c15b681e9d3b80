package types

import "errors"

// Sentinel errors. Order rejections are not errors: they are reported via
// Order.Status.
var (
	// Order request errors
	ErrInvalidQuantity   = errors.New("invalid order quantity")
	ErrInvalidLimitPrice = errors.New("limit order requires a positive limit price")
	ErrUnknownRequest    = errors.New("unknown order request type")

	// Harness errors
	ErrUnknownStrategy = errors.New("unknown strategy")
	ErrUnknownMetric   = errors.New("unknown success metric")
	ErrInvalidTrades   = errors.New("number of trades must be positive")
	ErrTestNotRunnable = errors.New("hypothesis test is not in the configured state")

	// Storage errors
	ErrStoreClosed    = errors.New("result store closed")
	ErrResultNotFound = errors.New("result not found")

	// Validation errors
	ErrInvalidConfig = errors.New("invalid configuration")
)
