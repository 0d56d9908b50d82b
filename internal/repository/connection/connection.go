package connection

import "errors"

var ErrNotFound = errors.New("connection not found")

// Conn is an outbound member connection.
type Conn interface {
	Send(v any) error
	Close(code int, reason string)
}

// Binding identifies the room membership a connection serves.
type Binding struct {
	RoomId   string
	MemberId string
}
