/*
Package protocol defines the chat protocol carried on top of the wire codec.

This file holds the command registry: the one-byte tags that open every
client request, every server notification and every response. Mapping a byte
to a tag never fails; bytes outside the known set are kept as an Unknown value.
*/
package protocol

import "fmt"

// Command is the first byte of a client-to-server exchange.
type Command uint8

const (
	// CommandLogin carries a LoginRequest and returns a LoginResponse.
	CommandLogin Command = 0x00

	// CommandSendMessage carries a SendMessageRequest and returns no payload.
	CommandSendMessage Command = 0x01

	// CommandPing carries a PingRequest and returns a PingResponse.
	CommandPing Command = 0x02

	// CommandListPeers carries no payload and returns a PeerListResponse.
	CommandListPeers Command = 0x03
)

// ParseCommand maps a raw byte to a Command. Unrecognised bytes are returned
// as-is and report Known() == false.
func ParseCommand(b byte) Command {
	return Command(b)
}

// Known reports whether c is part of the command set.
func (c Command) Known() bool {
	switch c {
	case CommandLogin, CommandSendMessage, CommandPing, CommandListPeers:
		return true
	default:
		return false
	}
}

func (c Command) String() string {
	switch c {
	case CommandLogin:
		return "Login"
	case CommandSendMessage:
		return "SendMessage"
	case CommandPing:
		return "Ping"
	case CommandListPeers:
		return "ListPeers"
	default:
		return fmt.Sprintf("Unknown(0x%02x)", uint8(c))
	}
}

// Notification is the first byte of a server-initiated one-way stream.
type Notification uint8

const (
	// NotificationNewMessage carries a []ChatMessage.
	NotificationNewMessage Notification = 0x00
)

// ParseNotification maps a raw byte to a Notification.
func ParseNotification(b byte) Notification {
	return Notification(b)
}

func (n Notification) Known() bool {
	return n == NotificationNewMessage
}

func (n Notification) String() string {
	if n == NotificationNewMessage {
		return "NewMessage"
	}
	return fmt.Sprintf("Unknown(0x%02x)", uint8(n))
}

// Status is the first byte of every response.
type Status uint8

const (
	StatusSuccess Status = 0x00
	StatusFailure Status = 0x01
)

// ParseStatus maps a raw byte to a Status.
func ParseStatus(b byte) Status {
	return Status(b)
}

func (s Status) Known() bool {
	return s == StatusSuccess || s == StatusFailure
}

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "Success"
	case StatusFailure:
		return "Error"
	default:
		return fmt.Sprintf("Unknown(0x%02x)", uint8(s))
	}
}
