package api

import (
	"bytes"
	"io"
	"sync"
)

// EventWriter is an io.Writer that broadcasts everything written to it
// as an output event to every subscribed WebSocket client.
type EventWriter struct {
	broadcaster *Broadcaster
	sessionID   string
	stream      string // "stdout" or "stderr"
	buffer      *bytes.Buffer
	mutex       sync.Mutex
}

// NewEventWriter creates a writer that broadcasts through broadcaster
// under sessionID, tagged with the given stream name.
func NewEventWriter(broadcaster *Broadcaster, sessionID, stream string) *EventWriter {
	return &EventWriter{
		broadcaster: broadcaster,
		sessionID:   sessionID,
		stream:      stream,
		buffer:      &bytes.Buffer{},
	}
}

func (w *EventWriter) Write(p []byte) (n int, err error) {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	n, err = w.buffer.Write(p)
	if err == nil && n > 0 && w.broadcaster != nil {
		w.broadcaster.BroadcastOutput(w.sessionID, w.stream, string(p))
	}
	return n, err
}

// GetBufferAndClear returns the buffered content and clears it.
func (w *EventWriter) GetBufferAndClear() string {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	output := w.buffer.String()
	w.buffer.Reset()
	return output
}

var _ io.Writer = (*EventWriter)(nil)
