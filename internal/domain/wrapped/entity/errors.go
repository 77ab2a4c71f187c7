package entity

import "errors"

// Domain errors for wrapped generation
var (
	// Normal abort paths
	ErrAlreadyProcessed = errors.New("user has already been processed")
	ErrNoContent        = errors.New("user has no eligible posts")

	// Upstream errors
	ErrUserNotFound     = errors.New("user not found")
	ErrUpstreamFetch    = errors.New("upstream fetch failed")
	ErrStreamDisconnect = errors.New("event stream disconnected")

	// Programmer and configuration errors
	ErrEmptyInput      = errors.New("aggregation called on empty input")
	ErrMissingAsset    = errors.New("required asset is missing")
	ErrInvalidUsername = errors.New("invalid username")
	ErrUnknownKind     = errors.New("unknown image kind")
)
