// Package vision is a request/response façade over an external camera-side
// detector, ported from grove_vision_ai.py's serial framing.
package vision

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"
)

// Detection is one labeled bounding box from the vision module.
type Detection struct {
	Score    float64 `json:"score"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	W        float64 `json:"w"`
	H        float64 `json:"h"`
	CenterX  float64 `json:"center_x"`
	CenterY  float64 `json:"center_y"`
}

// TimeoutError is returned when InvokeOnce's command write or response read
// fails, whether from the deadline passing or any other I/O error.
type TimeoutError struct{ After time.Duration }

func (e *TimeoutError) Error() string { return fmt.Sprintf("vision: timeout after %s", e.After) }

// ProtocolError indicates malformed response framing.
type ProtocolError struct{ Detail string }

func (e *ProtocolError) Error() string { return "vision: protocol error: " + e.Detail }

// Transport is a byte-oriented serial link with request/response framing.
type Transport interface {
	io.ReadWriter
	SetDeadline(t time.Time) error
}

// Client serializes requests over Transport with a single mutex, matching
// the spec's single-owner serial-bus requirement.
type Client struct {
	mu  sync.Mutex
	tr  Transport
}

// New wraps tr.
func New(tr Transport) *Client {
	return &Client{tr: tr}
}

// InvokeOnce blocks up to timeout for one detection round-trip, independent
// of ctx's own deadline. ctx is checked once, before the command is written;
// it does not interrupt a round-trip already in progress.
func (c *Client) InvokeOnce(ctx context.Context, timeout time.Duration) ([]Detection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	deadline := time.Now().Add(timeout)
	if err := c.tr.SetDeadline(deadline); err != nil {
		return nil, fmt.Errorf("vision: set deadline: %w", err)
	}

	if _, err := c.tr.Write([]byte{0x01}); err != nil { // "invoke" command byte
		return nil, &TimeoutError{After: timeout}
	}

	var lenBuf [4]byte
	if _, err := io.ReadFull(c.tr, lenBuf[:]); err != nil {
		return nil, &TimeoutError{After: timeout}
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n > 1<<20 {
		return nil, &ProtocolError{Detail: fmt.Sprintf("implausible payload length %d", n)}
	}

	payload := make([]byte, n)
	if _, err := io.ReadFull(c.tr, payload); err != nil {
		return nil, &TimeoutError{After: timeout}
	}

	var detections []Detection
	if err := json.Unmarshal(payload, &detections); err != nil {
		return nil, &ProtocolError{Detail: err.Error()}
	}
	return detections, nil
}
