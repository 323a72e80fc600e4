/*
Package protocol defines the chat protocol carried on top of the wire codec.

This file declares the request, response and notification schemas. Each schema
is a plain struct; the wire package derives its encoding from the field order,
so changing a struct here changes the wire format.
*/
package protocol

import (
	"github.com/google/uuid"

	"quichat/internal/app/user"
)

// LoginRequest asks the server to register a display name.
type LoginRequest struct {
	Name string
}

// LoginResponse returns the session issued for the connection.
type LoginResponse struct {
	SessionID uuid.UUID
}

// PingRequest is a liveness probe. SessionID must match the connection's session.
type PingRequest struct {
	SessionID uuid.UUID
	Sequence  uint32
}

// PingResponse echoes the request's sequence number.
type PingResponse struct {
	Sequence uint32
}

// ChatMessage is one entry in the chat history. Sender is nil for messages
// produced by the server itself, such as join and leave announcements.
type ChatMessage struct {
	Text   string     `json:"text"`
	Sender *user.User `json:"sender"`
}

// SendMessageRequest publishes Text as the connection's logged-in user.
type SendMessageRequest struct {
	Text string
}

// PeerListResponse lists the users currently logged in.
type PeerListResponse struct {
	Peers []user.User
}

// NewSystemMessage builds a message without a sender.
func NewSystemMessage(text string) ChatMessage {
	return ChatMessage{Text: text}
}

// NewUserMessage builds a message sent by u.
func NewUserMessage(text string, u user.User) ChatMessage {
	sender := u
	return ChatMessage{Text: text, Sender: &sender}
}
