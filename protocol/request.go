// Package protocol defines the datagram exchanged between worker
// instrumentation, node agents and the coordinator.
//
// Every datagram carries exactly one Request in a fixed 8 byte layout:
//
//	bytes 0..3  kind ordinal, uint32 little endian
//	bytes 4..7  pid, int32 little endian
//
// The layout must be identical in every binary of a deployment. It is never
// negotiated at runtime.
package protocol

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// RequestSize is the exact length of an encoded Request.
const RequestSize = 8

const (
	DefaultAgentPort       = 8210
	DefaultCoordinatorPort = 8211
)

type Kind uint32

const (
	Unregister Kind = iota
	Register
	Stop
	Cont
	CommBegin
	CommEnd

	numKinds
)

var kindNames = [...]string{
	Unregister: "Unregister",
	Register:   "Register",
	Stop:       "Stop",
	Cont:       "Cont",
	CommBegin:  "CommBegin",
	CommEnd:    "CommEnd",
}

// cli names, see ParseKind
var kindFlags = map[string]Kind{
	"unregister": Unregister,
	"register":   Register,
	"stop":       Stop,
	"cont":       Cont,
	"comm-begin": CommBegin,
	"comm-end":   CommEnd,
}

func (k Kind) Valid() bool {
	return k < numKinds
}

func (k Kind) String() string {
	if !k.Valid() {
		return fmt.Sprintf("Kind(%d)", uint32(k))
	}
	return kindNames[k]
}

// CLIName is the inverse of ParseKind.
func (k Kind) CLIName() string {
	for name, kind := range kindFlags {
		if kind == k {
			return name
		}
	}
	return strings.ToLower(k.String())
}

// ParseKind maps a command line name such as "comm-begin" to its Kind.
func ParseKind(s string) (Kind, error) {
	k, ok := kindFlags[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return 0, fmt.Errorf("unknown request kind %q", s)
	}
	return k, nil
}

// Request is a single control message. Pid is only meaningful for
// Register and Unregister and is zero otherwise.
type Request struct {
	Kind Kind
	Pid  int32
}

func (r Request) String() string {
	return fmt.Sprintf("%s{pid=%d}", r.Kind, r.Pid)
}

func NewRegister(pid int32) Request   { return Request{Kind: Register, Pid: pid} }
func NewUnregister(pid int32) Request { return Request{Kind: Unregister, Pid: pid} }
func NewStop() Request                { return Request{Kind: Stop} }
func NewCont() Request                { return Request{Kind: Cont} }
func NewCommBegin() Request           { return Request{Kind: CommBegin} }
func NewCommEnd() Request             { return Request{Kind: CommEnd} }

// DecodeError reports a datagram that cannot be turned into a Request.
// It never indicates a broken socket: receivers drop the datagram and go on.
type DecodeError struct {
	Len  int
	Kind uint32
	msg  string
}

func (e *DecodeError) Error() string {
	return "decode request: " + e.msg
}

// Encode serializes r into its fixed wire layout.
func Encode(r Request) [RequestSize]byte {
	var buf [RequestSize]byte
	binary.LittleEndian.PutUint32(buf[0:4], uint32(r.Kind))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(r.Pid))
	return buf
}

// Decode parses one datagram. It returns a *DecodeError when the length is
// not RequestSize or the kind ordinal is out of range.
func Decode(b []byte) (Request, error) {
	if len(b) != RequestSize {
		return Request{}, &DecodeError{
			Len: len(b),
			msg: fmt.Sprintf("got %d bytes, want %d", len(b), RequestSize),
		}
	}
	k := binary.LittleEndian.Uint32(b[0:4])
	if !Kind(k).Valid() {
		return Request{}, &DecodeError{
			Len:  len(b),
			Kind: k,
			msg:  fmt.Sprintf("kind ordinal %d out of range", k),
		}
	}
	return Request{
		Kind: Kind(k),
		Pid:  int32(binary.LittleEndian.Uint32(b[4:8])),
	}, nil
}
