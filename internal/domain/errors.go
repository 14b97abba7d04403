package domain

import "errors"

// ErrInvalidID and related errors describe validation failures for planning inputs.
var (
	ErrInvalidID         = errors.New("invalid id")
	ErrInvalidTitle      = errors.New("invalid title")
	ErrInvalidState      = errors.New("invalid state")
	ErrInvalidPriority   = errors.New("invalid priority")
	ErrMissingEstimate   = errors.New("missing estimate")
	ErrInvalidEstimate   = errors.New("invalid estimate")
	ErrInvalidTimestamp  = errors.New("invalid timestamp")
	ErrInvalidThresholds = errors.New("invalid thresholds")
	ErrInvalidRatioBound = errors.New("invalid ratio bounds")
	ErrInvalidLimit      = errors.New("invalid limit")
)
