package tts

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"syscall"

	"github.com/google/uuid"
)

// FIFOBackend writes line-delimited JSON say/cancel commands to a named
// pipe and reads status lines back from a second pipe, the fallback
// transport ported from piper_mqtt_tts.py's _fifo_write_nonblock.
type FIFOBackend struct {
	sayPipe    *os.File
	statusPipe *os.File
	events     chan Event

	mu     sync.Mutex
	lastID string
}

// OpenFIFO opens sayPipePath for writing and statusPipePath for reading,
// both expected to already exist as named pipes (mkfifo).
func OpenFIFO(ctx context.Context, sayPipePath, statusPipePath string) (*FIFOBackend, error) {
	sayPipe, err := os.OpenFile(sayPipePath, os.O_WRONLY|syscall.O_NONBLOCK, os.ModeNamedPipe)
	if err != nil {
		return nil, fmt.Errorf("tts: open say fifo %s: %w", sayPipePath, err)
	}
	statusPipe, err := os.OpenFile(statusPipePath, os.O_RDONLY, os.ModeNamedPipe)
	if err != nil {
		sayPipe.Close()
		return nil, fmt.Errorf("tts: open status fifo %s: %w", statusPipePath, err)
	}

	b := &FIFOBackend{sayPipe: sayPipe, statusPipe: statusPipe, events: make(chan Event, 16)}
	go b.readStatus(ctx)
	return b, nil
}

func (b *FIFOBackend) readStatus(ctx context.Context) {
	scanner := bufio.NewScanner(b.statusPipe)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return
		default:
		}
		var msg statusMessage
		if err := json.Unmarshal(scanner.Bytes(), &msg); err != nil {
			continue
		}
		b.events <- Event{ID: msg.ID, Kind: parseKind(msg.Kind)}
	}
}

func (b *FIFOBackend) Say(ctx context.Context, id, text string) error {
	if id == "" {
		id = uuid.NewString()
	}
	line, err := json.Marshal(sayCommand{ID: id, Text: text})
	if err != nil {
		return fmt.Errorf("tts: marshal say command: %w", err)
	}
	b.mu.Lock()
	b.lastID = id
	b.mu.Unlock()
	return b.writeNonblock(append(line, '\n'))
}

func (b *FIFOBackend) Cancel(id string) error {
	if id == "" {
		b.mu.Lock()
		id = b.lastID
		b.mu.Unlock()
	}
	line, err := json.Marshal(cancelCommand{ID: id})
	if err != nil {
		return fmt.Errorf("tts: marshal cancel command: %w", err)
	}
	return b.writeNonblock(append(line, '\n'))
}

// writeNonblock mirrors _fifo_write_nonblock's best-effort write: a reader
// not currently attached must not block the caller.
func (b *FIFOBackend) writeNonblock(data []byte) error {
	_, err := b.sayPipe.Write(data)
	if err != nil {
		return fmt.Errorf("tts: fifo write: %w", err)
	}
	return nil
}

func (b *FIFOBackend) Events() <-chan Event { return b.events }

func (b *FIFOBackend) Close() error {
	err1 := b.sayPipe.Close()
	err2 := b.statusPipe.Close()
	if err1 != nil {
		return err1
	}
	return err2
}
