// Package codec implements the on-disk framing for log entries.
//
// Layout (all integers little-endian):
//
//	[4]byte   length N of the envelope that follows
//	envelope:
//	  [8]byte  timestamp, ms since epoch
//	  [1]byte  operation tag (0=insert, 1=update, 2=delete)
//	  [8]byte  length M of data
//	  [M]byte  data, JSON-encoded projected record
//
// This is the implementation's chosen boundary; spec.md §9 leaves the
// exact binary layout as an open question and asks that it be documented
// and treated as stable by tests.
package codec

import (
	"encoding/binary"
	"fmt"
)

// Operation tags a log entry.
type Operation uint8

const (
	OpInsert Operation = 0
	OpUpdate Operation = 1
	OpDelete Operation = 2
)

// Entry is the logical content of one framed log record.
type Entry struct {
	Timestamp uint64
	Operation Operation
	Data      []byte
}

// LengthHeaderSize is the size in bytes of the outer frame length prefix.
const LengthHeaderSize = 4

const envelopeFixedSize = 8 + 1 + 8 // timestamp + operation + data length

// EncodeEnvelope serializes an Entry's envelope (without the outer 4-byte
// frame length). Callers prefix the returned bytes with a little-endian
// uint32 length before writing to the log.
func EncodeEnvelope(e Entry) []byte {
	buf := make([]byte, envelopeFixedSize+len(e.Data))
	binary.LittleEndian.PutUint64(buf[0:8], e.Timestamp)
	buf[8] = byte(e.Operation)
	binary.LittleEndian.PutUint64(buf[9:17], uint64(len(e.Data)))
	copy(buf[17:], e.Data)
	return buf
}

// DecodeEnvelope parses the bytes produced by EncodeEnvelope.
func DecodeEnvelope(buf []byte) (Entry, error) {
	if len(buf) < envelopeFixedSize {
		return Entry{}, fmt.Errorf("codec: envelope too short: %d bytes", len(buf))
	}
	ts := binary.LittleEndian.Uint64(buf[0:8])
	op := Operation(buf[8])
	dataLen := binary.LittleEndian.Uint64(buf[9:17])
	rest := buf[17:]
	if uint64(len(rest)) < dataLen {
		return Entry{}, fmt.Errorf("codec: envelope data truncated: want %d have %d", dataLen, len(rest))
	}
	data := make([]byte, dataLen)
	copy(data, rest[:dataLen])
	return Entry{Timestamp: ts, Operation: op, Data: data}, nil
}

// PutFrameLength writes N as a little-endian uint32 into buf[0:4].
func PutFrameLength(buf []byte, n uint32) {
	binary.LittleEndian.PutUint32(buf, n)
}

// FrameLength reads a little-endian uint32 frame length from buf[0:4].
func FrameLength(buf []byte) uint32 {
	return binary.LittleEndian.Uint32(buf)
}
