package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Transport errors
	ErrTransportFailure   = fmt.Errorf("transport failure")
	ErrServerReported     = fmt.Errorf("server reported error")
	ErrReconnectExhausted = fmt.Errorf("reconnect attempts exhausted")
	ErrStreamUnsupported  = fmt.Errorf("stream transport unsupported")
	ErrSyncStopped        = fmt.Errorf("synchronization stopped")

	// Workflow errors
	ErrSessionNotFound   = fmt.Errorf("session not found")
	ErrNotAwaitingInput  = fmt.Errorf("session not awaiting input")
	ErrTerminalNoResults = fmt.Errorf("terminal stage with no results")
	ErrEditFailed        = fmt.Errorf("edit rejected")
	ErrTrackNotFound     = fmt.Errorf("track not found")
	ErrSearchFailed      = fmt.Errorf("search request failed")

	// Identity errors
	ErrUnauthorized     = fmt.Errorf("unauthorized")
	ErrVerifyTransient  = fmt.Errorf("identity verification failed")
	ErrCacheMiss        = fmt.Errorf("identity cache miss")
	ErrNotAuthenticated = fmt.Errorf("not authenticated")

	// API and input errors
	ErrAPIRequest      = fmt.Errorf("API request failed")
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidFlag     = fmt.Errorf("invalid flag value")
)
