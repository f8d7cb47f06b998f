package codec

import (
	"bytes"
	"testing"
)

func TestEncodeDecodeEnvelopeRoundTrip(t *testing.T) {
	e := Entry{Timestamp: 1700000000000, Operation: OpInsert, Data: []byte(`{"id":1,"email":"a@b"}`)}
	buf := EncodeEnvelope(e)

	got, err := DecodeEnvelope(buf)
	if err != nil {
		t.Fatalf("DecodeEnvelope: %v", err)
	}
	if got.Timestamp != e.Timestamp {
		t.Errorf("timestamp = %d, want %d", got.Timestamp, e.Timestamp)
	}
	if got.Operation != e.Operation {
		t.Errorf("operation = %d, want %d", got.Operation, e.Operation)
	}
	if !bytes.Equal(got.Data, e.Data) {
		t.Errorf("data = %q, want %q", got.Data, e.Data)
	}
}

func TestDecodeEnvelopeTruncated(t *testing.T) {
	e := Entry{Timestamp: 1, Operation: OpInsert, Data: []byte("hello")}
	buf := EncodeEnvelope(e)

	if _, err := DecodeEnvelope(buf[:envelopeFixedSize+2]); err == nil {
		t.Fatal("expected error decoding truncated envelope")
	}
	if _, err := DecodeEnvelope(buf[:5]); err == nil {
		t.Fatal("expected error decoding short envelope header")
	}
}

func TestFrameLengthRoundTrip(t *testing.T) {
	var hdr [LengthHeaderSize]byte
	PutFrameLength(hdr[:], 12345)
	if got := FrameLength(hdr[:]); got != 12345 {
		t.Errorf("FrameLength = %d, want 12345", got)
	}
}
