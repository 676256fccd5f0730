package vision

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"testing"
	"time"
)

// bufTransport is an in-memory Transport: Write appends to sent, Read drains
// from a preloaded response buffer.
type bufTransport struct {
	sent     bytes.Buffer
	response bytes.Buffer
	writeErr error
	readErr  error
}

func (b *bufTransport) Write(p []byte) (int, error) {
	if b.writeErr != nil {
		return 0, b.writeErr
	}
	return b.sent.Write(p)
}
func (b *bufTransport) Read(p []byte) (int, error) {
	if b.readErr != nil {
		return 0, b.readErr
	}
	return b.response.Read(p)
}
func (b *bufTransport) SetDeadline(t time.Time) error { return nil }

func framedResponse(payload []byte) []byte {
	var buf bytes.Buffer
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	buf.Write(lenBuf[:])
	buf.Write(payload)
	return buf.Bytes()
}

func TestInvokeOnceParsesDetections(t *testing.T) {
	tr := &bufTransport{}
	tr.response.Write(framedResponse([]byte(`[{"score":0.9,"x":10,"y":20,"w":5,"h":5,"center_x":12,"center_y":22}]`)))
	c := New(tr)

	dets, err := c.InvokeOnce(context.Background(), time.Second)
	if err != nil {
		t.Fatalf("InvokeOnce: %v", err)
	}
	if len(dets) != 1 || dets[0].Score != 0.9 {
		t.Errorf("dets = %+v, want one detection with score 0.9", dets)
	}
	if tr.sent.Len() != 1 || tr.sent.Bytes()[0] != 0x01 {
		t.Errorf("expected a single invoke command byte 0x01 to be written, got %v", tr.sent.Bytes())
	}
}

func TestInvokeOnceRejectsContextAlreadyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := New(&bufTransport{})
	if _, err := c.InvokeOnce(ctx, time.Second); err == nil {
		t.Error("expected error for an already-cancelled context")
	}
}

func TestInvokeOnceReturnsTimeoutErrorOnWriteFailure(t *testing.T) {
	tr := &bufTransport{writeErr: errors.New("device unplugged")}
	c := New(tr)
	_, err := c.InvokeOnce(context.Background(), time.Second)
	var timeoutErr *TimeoutError
	if !errors.As(err, &timeoutErr) {
		t.Errorf("err = %v, want *TimeoutError", err)
	}
}

func TestInvokeOnceRejectsImplausiblePayloadLength(t *testing.T) {
	tr := &bufTransport{}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], 1<<21)
	tr.response.Write(lenBuf[:])
	c := New(tr)

	_, err := c.InvokeOnce(context.Background(), time.Second)
	var protoErr *ProtocolError
	if !errors.As(err, &protoErr) {
		t.Errorf("err = %v, want *ProtocolError for implausible length", err)
	}
}

func TestInvokeOnceRejectsMalformedJSON(t *testing.T) {
	tr := &bufTransport{}
	tr.response.Write(framedResponse([]byte(`not json`)))
	c := New(tr)

	_, err := c.InvokeOnce(context.Background(), time.Second)
	var protoErr *ProtocolError
	if !errors.As(err, &protoErr) {
		t.Errorf("err = %v, want *ProtocolError for malformed JSON", err)
	}
}
