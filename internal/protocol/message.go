package protocol

import (
	"bytes"
	"fmt"
	"strings"
)

// ConnectionID identifies one logical sub-connection within a session.
// Uniqueness and lifecycle ordering are the caller's concern.
type ConnectionID = uint16

// Kind is the variant tag written at the head of every frame.
type Kind uint32

const (
	KindClose           Kind = 0
	KindNewConnection   Kind = 1
	KindData            Kind = 2
	KindConnectionClose Kind = 3
	KindLog             Kind = 4
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindClose:
		return "close"
	case KindNewConnection:
		return "new_connection"
	case KindData:
		return "data"
	case KindConnectionClose:
		return "connection_close"
	case KindLog:
		return "log"
	default:
		return "unknown"
	}
}

// ParseKind accepts the names produced by String, with '-' allowed in
// place of '_'.
func ParseKind(raw string) (Kind, error) {
	name := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(raw)), "-", "_")
	for k := KindClose; k <= KindLog; k++ {
		if k.String() == name {
			return k, nil
		}
	}
	return 0, fmt.Errorf("protocol: unknown message kind %q", raw)
}

// Valid reports whether k names one of the known variants.
func (k Kind) Valid() bool {
	return k <= KindLog
}

// Message is one of Close, NewConnection, Data, ConnectionClose or Log.
// The set is closed: only types in this package implement it.
type Message interface {
	Kind() Kind
	isMessage()
}

// Close asks the peer to terminate the whole multiplexed session.
type Close struct{}

// NewConnection announces a logical sub-connection bound to Port.
type NewConnection struct {
	ConnectionID ConnectionID
	Port         uint16
}

// Data forwards payload bytes belonging to a sub-connection.
type Data struct {
	ConnectionID ConnectionID
	Data         []byte
}

// ConnectionClose signals that a sub-connection ended.
type ConnectionClose struct {
	ConnectionID ConnectionID
}

// Log carries out-of-band diagnostic text.
type Log struct {
	Message string
}

func (Close) Kind() Kind           { return KindClose }
func (NewConnection) Kind() Kind   { return KindNewConnection }
func (Data) Kind() Kind            { return KindData }
func (ConnectionClose) Kind() Kind { return KindConnectionClose }
func (Log) Kind() Kind             { return KindLog }

func (Close) isMessage()           {}
func (NewConnection) isMessage()   {}
func (Data) isMessage()            {}
func (ConnectionClose) isMessage() {}
func (Log) isMessage()             {}

// ConnectionOf returns the sub-connection a message belongs to, if any.
func ConnectionOf(m Message) (ConnectionID, bool) {
	switch v := m.(type) {
	case NewConnection:
		return v.ConnectionID, true
	case Data:
		return v.ConnectionID, true
	case ConnectionClose:
		return v.ConnectionID, true
	default:
		return 0, false
	}
}

// Equal reports whether a and b are the same variant with the same fields.
// A nil and an empty Data payload compare equal.
func Equal(a, b Message) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	a, errA := normalize(a)
	b, errB := normalize(b)
	if errA != nil || errB != nil {
		return false
	}
	if da, ok := a.(Data); ok {
		db, ok := b.(Data)
		return ok && da.ConnectionID == db.ConnectionID && bytes.Equal(da.Data, db.Data)
	}
	return a == b
}
