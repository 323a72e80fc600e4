/*
Package protocol defines the chat protocol carried on top of the wire codec.

This file frames single exchanges:

	request:      [command tag][request schema]
	response:     [Success][response schema] or [Error][raw UTF-8 text until end of stream]
	notification: [notification tag][payload schema] on a fresh one-way stream

Outgoing frames are encoded into memory first and written with one call, so an
encoding failure never leaves half a frame on the stream.
*/
package protocol

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"quichat/internal/pkg/wire"
)

// ErrUnknownStatus is returned when a response starts with an unrecognised status byte.
var ErrUnknownStatus = errors.New("protocol: unknown response status")

// StatusError carries the text of an Error response.
type StatusError struct {
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("protocol: request failed: %s", e.Message)
}

func frame(tag byte, payload any) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(tag)
	if payload != nil {
		if err := wire.NewEncoder(&buf).Encode(payload); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func writeFrame(w io.Writer, tag byte, payload any) error {
	data, err := frame(tag, payload)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// WriteRequest writes a command tag followed by its request. req may be nil
// for commands without a payload.
func WriteRequest(w io.Writer, cmd Command, req any) error {
	return writeFrame(w, byte(cmd), req)
}

// WriteSuccess writes a Success status followed by resp, which may be nil.
func WriteSuccess(w io.Writer, resp any) error {
	return writeFrame(w, byte(StatusSuccess), resp)
}

// WriteError writes an Error status followed by the raw message bytes.
func WriteError(w io.Writer, message string) error {
	data := make([]byte, 0, 1+len(message))
	data = append(data, byte(StatusFailure))
	data = append(data, message...)
	_, err := w.Write(data)
	return err
}

// WriteNotification writes a notification tag followed by its payload.
func WriteNotification(w io.Writer, n Notification, payload any) error {
	return writeFrame(w, byte(n), payload)
}

// ReadCommand reads the tag that opens a client exchange.
func ReadCommand(dec *wire.Decoder) (Command, error) {
	b, err := dec.Uint8()
	if err != nil {
		return 0, err
	}
	return ParseCommand(b), nil
}

// ReadResponse reads a status byte and, on success, decodes the response into
// resp (skipped when resp is nil). An Error status is returned as *StatusError
// holding everything up to the end of the stream.
func ReadResponse(r io.Reader, resp any, opts ...wire.Option) error {
	dec := wire.NewDecoder(r, opts...)
	b, err := dec.Uint8()
	if err != nil {
		return err
	}

	switch status := ParseStatus(b); status {
	case StatusSuccess:
		if resp == nil {
			return nil
		}
		return dec.Decode(resp)
	case StatusFailure:
		text, err := io.ReadAll(r)
		if err != nil {
			return err
		}
		return &StatusError{Message: string(text)}
	default:
		return fmt.Errorf("%w: %s", ErrUnknownStatus, status)
	}
}

// ReadNotification reads one notification. For NewMessage the decoded messages
// are returned; for unknown tags the messages are nil and the caller decides
// whether to log and move on.
func ReadNotification(r io.Reader, opts ...wire.Option) (Notification, []ChatMessage, error) {
	dec := wire.NewDecoder(r, opts...)
	b, err := dec.Uint8()
	if err != nil {
		return 0, nil, err
	}

	n := ParseNotification(b)
	if n != NotificationNewMessage {
		return n, nil, nil
	}

	var messages []ChatMessage
	if err := dec.Decode(&messages); err != nil {
		return n, nil, err
	}
	return n, messages, nil
}
