package dashboard

import "errors"

// Request errors
var (
	// ErrRateLimited indicates the client has exceeded the rate limit
	ErrRateLimited = errors.New("rate limit exceeded, please try again later")

	// ErrNotFound indicates no route or static file matched
	ErrNotFound = errors.New("not found")

	// ErrNoServers indicates no server of the requested kind is configured
	ErrNoServers = errors.New("no server of this kind configured")

	// ErrHistoryDisabled indicates the history store is not configured
	ErrHistoryDisabled = errors.New("status history is disabled")

	// ErrInvalidLimit indicates the limit query parameter is not a number
	ErrInvalidLimit = errors.New("limit must be a positive integer")
)

// WebSocket protocol errors
var (
	// ErrInvalidMessage indicates the message is malformed
	ErrInvalidMessage = errors.New("invalid message format")

	// ErrInvalidMessageType indicates the message type is not recognized
	ErrInvalidMessageType = errors.New("invalid message type")

	// ErrUnknownTopic indicates a subscription named a topic that does not exist
	ErrUnknownTopic = errors.New("unknown topic")
)

// Server errors
var (
	// ErrServerNotRunning indicates the server is not currently running
	ErrServerNotRunning = errors.New("server is not running")

	// ErrServerAlreadyRunning indicates the server is already running
	ErrServerAlreadyRunning = errors.New("server is already running")
)
