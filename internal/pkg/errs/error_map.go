/*
Package errs provides the client's typed error values and application error code constants.

This file maps every error code to its template CustomError.
*/
package errs

import "net/http"

// errorMap stores the template CustomError for every application error code.
// Status is the HTTP status the local bridge answers with for that code.
var errorMap = map[int]CustomError{
	// 1xxx: Validation Errors
	ErrInvalidParams:        {Code: ErrInvalidParams, Message: "Invalid parameters.", Status: http.StatusBadRequest},
	ErrUnsupportedMediaType: {Code: ErrUnsupportedMediaType, Message: "Unsupported request format.", Status: http.StatusUnsupportedMediaType},
	ErrInvalidJSONFormat:    {Code: ErrInvalidJSONFormat, Message: "Unsupported request format.", Status: http.StatusBadRequest},
	ErrExtraContentInBody:   {Code: ErrExtraContentInBody, Message: "Request contains unexpected data.", Status: http.StatusBadRequest},
	ErrRateLimitExceeded:    {Code: ErrRateLimitExceeded, Message: "Too many requests. Please try again later.", Status: http.StatusTooManyRequests},
	ErrEmptyContent:         {Code: ErrEmptyContent, Message: "Message is empty.", Status: http.StatusBadRequest},
	ErrNoActiveChannel:      {Code: ErrNoActiveChannel, Message: "No channel selected.", Status: http.StatusConflict},
	ErrChannelNotInServer:   {Code: ErrChannelNotInServer, Message: "Channel %s does not belong to the active server.", Status: http.StatusBadRequest},
	ErrUnknownServer:        {Code: ErrUnknownServer, Message: "Server %s is not available.", Status: http.StatusBadRequest},
	ErrInvalidChannelType:   {Code: ErrInvalidChannelType, Message: "Invalid channel type %q.", Status: http.StatusBadRequest},
	ErrEmptyName:            {Code: ErrEmptyName, Message: "Name is required.", Status: http.StatusBadRequest},
	ErrNoActiveServer:       {Code: ErrNoActiveServer, Message: "No server selected.", Status: http.StatusConflict},

	// 3xxx: Authentication Errors
	ErrUnauthorized:       {Code: ErrUnauthorized, Message: "Please sign in to continue.", Status: http.StatusUnauthorized},
	ErrInvalidCredentials: {Code: ErrInvalidCredentials, Message: "Authentication failed.", Status: http.StatusUnauthorized},
	ErrNotLoggedIn:        {Code: ErrNotLoggedIn, Message: "You are not signed in.", Status: http.StatusUnauthorized},
	ErrSessionExpired:     {Code: ErrSessionExpired, Message: "Your session has expired.", Status: http.StatusUnauthorized},

	// 4xxx: Transport Errors
	ErrNetwork:            {Code: ErrNetwork, Message: "Network request failed.", Status: http.StatusBadGateway},
	ErrConnectionLost:     {Code: ErrConnectionLost, Message: "Realtime connection lost.", Status: http.StatusBadGateway},
	ErrReconnectExhausted: {Code: ErrReconnectExhausted, Message: "Could not reconnect after %d attempts.", Status: http.StatusBadGateway},
	ErrUnexpectedStatus:   {Code: ErrUnexpectedStatus, Message: "Server responded with status %d.", Status: http.StatusBadGateway},
	ErrDecodeResponse:     {Code: ErrDecodeResponse, Message: "Server response could not be read.", Status: http.StatusBadGateway},

	// 5xxx: Internal Errors
	ErrUnknown:       {Code: ErrUnknown, Message: "Something went wrong. Please try again.", Status: http.StatusInternalServerError},
	ErrStorage:       {Code: ErrStorage, Message: "Local session storage failed.", Status: http.StatusInternalServerError},
	ErrEngineStopped: {Code: ErrEngineStopped, Message: "The client is shutting down.", Status: http.StatusServiceUnavailable},
}
