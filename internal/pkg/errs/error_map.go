/*
Package errs provides custom error types and application-level error code constants.

This file maps every code to its user-facing message and HTTP status.
*/
package errs

import "net/http"

// errorMap holds the template for every application error code.
// Messages containing printf verbs are formatted with NewError's details.
var errorMap = map[int]CustomError{
	// 1xxx: General Request Handling Errors
	ErrInvalidParams:         {Code: ErrInvalidParams, Message: "Invalid request parameters.", Status: http.StatusBadRequest},
	ErrUnsupportedMediaType:  {Code: ErrUnsupportedMediaType, Message: "Unsupported request format.", Status: http.StatusUnsupportedMediaType},
	ErrInvalidJSONFormat:     {Code: ErrInvalidJSONFormat, Message: "Unsupported request format.", Status: http.StatusBadRequest},
	ErrExtraContentInBody:    {Code: ErrExtraContentInBody, Message: "Request contains unexpected data.", Status: http.StatusBadRequest},
	ErrRequestEntityTooLarge: {Code: ErrRequestEntityTooLarge, Message: "Request size is too large.", Status: http.StatusRequestEntityTooLarge},
	ErrRateLimitExceeded:     {Code: ErrRateLimitExceeded, Message: "Too many requests. Please try again later.", Status: http.StatusTooManyRequests},

	// 2xxx: Chat Content Errors
	ErrMessageContentTooLong: {Code: ErrMessageContentTooLong, Message: "Message must be at most %d bytes."},
	ErrMessageContentEmpty:   {Code: ErrMessageContentEmpty, Message: "Message is empty."},

	// 3xxx: Login and Session Errors
	ErrNameTaken:       {Code: ErrNameTaken, Message: "Username already used!", Status: http.StatusConflict},
	ErrInvalidName:     {Code: ErrInvalidName, Message: "Username must not be empty."},
	ErrNameTooLong:     {Code: ErrNameTooLong, Message: "Username must be at most %d bytes."},
	ErrAlreadyLoggedIn: {Code: ErrAlreadyLoggedIn, Message: "You are already signed in."},
	ErrUnauthorized:    {Code: ErrUnauthorized, Message: "Please sign in to continue.", Status: http.StatusUnauthorized},
	ErrSessionMismatch: {Code: ErrSessionMismatch, Message: "Session does not belong to this connection.", Status: http.StatusForbidden},

	// 5xxx: Internal System Errors
	ErrUnknown:            {Code: ErrUnknown, Message: "Something went wrong. Please try again.", Status: http.StatusInternalServerError},
	ErrServerShuttingDown: {Code: ErrServerShuttingDown, Message: "Server is shutting down.", Status: http.StatusServiceUnavailable},
}
