package client

import "fmt"

// SequenceMismatchError is returned when a ping reply does not echo the request.
type SequenceMismatchError struct {
	Sent     uint32
	Received uint32
}

func (e *SequenceMismatchError) Error() string {
	return fmt.Sprintf("client: ping sequence %d answered with %d", e.Sent, e.Received)
}
