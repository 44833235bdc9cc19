/*
Package errs provides the client's typed error values and application error code constants.

Code ranges map onto the error taxonomy: 1xxx are validation failures rejected before any
network call, 3xxx are authentication failures, 4xxx are transport failures (REST network
errors, unexpected responses and push-connection errors), and 5xxx are internal errors.
*/
package errs

// 1xxx: Validation Errors
const (
	// ErrInvalidParams indicates that input validation failed.
	ErrInvalidParams = 1001

	// ErrUnsupportedMediaType indicates that a bridge request had an unsupported Content-Type.
	ErrUnsupportedMediaType = 1002

	// ErrInvalidJSONFormat indicates that a bridge request body was not valid JSON.
	ErrInvalidJSONFormat = 1003

	// ErrExtraContentInBody indicates that a bridge request body had data after the JSON value.
	ErrExtraContentInBody = 1004

	// ErrRateLimitExceeded indicates that a local rate limit rejected the request.
	ErrRateLimitExceeded = 1007

	// ErrEmptyContent indicates that message content was empty after trimming.
	ErrEmptyContent = 1101

	// ErrNoActiveChannel indicates that an operation needs an active channel and none is set.
	ErrNoActiveChannel = 1102

	// ErrChannelNotInServer indicates that a channel does not belong to the active server.
	ErrChannelNotInServer = 1103

	// ErrUnknownServer indicates that a server id is not among the fetched servers.
	ErrUnknownServer = 1104

	// ErrInvalidChannelType indicates a channel type other than text or voice.
	ErrInvalidChannelType = 1105

	// ErrEmptyName indicates that a server or channel name was empty.
	ErrEmptyName = 1106

	// ErrNoActiveServer indicates that an operation needs an active server and none is set.
	ErrNoActiveServer = 1107
)

// 3xxx: Authentication Errors
const (
	// ErrUnauthorized indicates the credential was rejected (HTTP 401/403).
	ErrUnauthorized = 3001

	// ErrInvalidCredentials indicates that login or registration failed.
	ErrInvalidCredentials = 3002

	// ErrNotLoggedIn indicates that an authenticated operation was attempted without a session.
	ErrNotLoggedIn = 3003

	// ErrSessionExpired indicates that the stored credential's expiry has passed.
	ErrSessionExpired = 3004
)

// 4xxx: Transport Errors
const (
	// ErrNetwork indicates that a REST request failed to complete.
	ErrNetwork = 4001

	// ErrConnectionLost indicates that the push connection dropped.
	ErrConnectionLost = 4101

	// ErrReconnectExhausted indicates that the reconnect policy gave up.
	ErrReconnectExhausted = 4102

	// ErrUnexpectedStatus indicates a non-2xx response that is not an auth failure.
	ErrUnexpectedStatus = 4201

	// ErrDecodeResponse indicates that a response body could not be decoded.
	ErrDecodeResponse = 4202
)

// 5xxx: Internal Errors
const (
	// ErrUnknown represents an unclassified internal error.
	ErrUnknown = 5000

	// ErrStorage indicates that the local credential store failed.
	ErrStorage = 5001

	// ErrEngineStopped indicates that the sync engine is no longer running.
	ErrEngineStopped = 5002
)
