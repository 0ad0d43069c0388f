package stdio

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"sync"
)

// writeMux serializes whole lines onto the output stream. Each line is
// written and flushed under the lock, so concurrent senders never interleave.
type writeMux struct {
	mu sync.Mutex
	w  *bufio.Writer
}

func newWriteMux(w io.Writer) *writeMux {
	return &writeMux{w: bufio.NewWriter(w)}
}

func (m *writeMux) writeJSONRPC(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	b = append(b, '\n')

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.w.Write(b); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	if err := m.w.Flush(); err != nil {
		return fmt.Errorf("flush message: %w", err)
	}
	return nil
}
