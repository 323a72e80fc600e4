/*
Package errs provides custom error types and application-level error code constants.

The same codes back two surfaces: the Error status text written on a chat
stream, and the JSON body returned by the admin HTTP API.
*/
package errs

// 1xxx: General Request Handling Errors
const (
	// ErrInvalidParams indicates that request parameter validation failed.
	ErrInvalidParams = 1001

	// ErrUnsupportedMediaType indicates that the request header Content-Type is not supported.
	ErrUnsupportedMediaType = 1002

	// ErrInvalidJSONFormat indicates that the request body is not valid JSON.
	ErrInvalidJSONFormat = 1003

	// ErrExtraContentInBody indicates trailing data after the JSON value.
	ErrExtraContentInBody = 1004

	// ErrRequestEntityTooLarge indicates that the request body exceeded the server limit.
	ErrRequestEntityTooLarge = 1006

	// ErrRateLimitExceeded indicates that the caller sent requests or commands too quickly.
	ErrRateLimitExceeded = 1007
)

// 2xxx: Chat Content Errors
const (
	// ErrMessageContentTooLong indicates that a message exceeded the configured byte limit.
	ErrMessageContentTooLong = 2201

	// ErrMessageContentEmpty indicates a message that is blank after trimming.
	ErrMessageContentEmpty = 2202
)

// 3xxx: Login and Session Errors
const (
	// ErrNameTaken indicates that another logged-in peer already uses the name.
	ErrNameTaken = 3101

	// ErrInvalidName indicates a name that is blank after trimming.
	ErrInvalidName = 3102

	// ErrNameTooLong indicates a name over the configured byte limit.
	ErrNameTooLong = 3103

	// ErrAlreadyLoggedIn indicates a second Login on an authenticated connection.
	ErrAlreadyLoggedIn = 3104

	// ErrUnauthorized indicates a command that requires a prior Login.
	ErrUnauthorized = 3105

	// ErrSessionMismatch indicates a request carrying a session id that is not the connection's own.
	ErrSessionMismatch = 3106
)

// 5xxx: Internal System Errors
const (
	// ErrUnknown represents an unclassified, general server internal error.
	ErrUnknown = 5000

	// ErrServerShuttingDown indicates the server no longer accepts work.
	ErrServerShuttingDown = 5003
)
