package realtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"alert-service/internal/logging"
	"alert-service/internal/models"
)

type fakeHandle struct {
	id       string
	mu       sync.Mutex
	messages [][]byte
	failSend bool
	closed   bool
	rejected string
}

func newHandle(id string) *fakeHandle {
	return &fakeHandle{id: id}
}

func (h *fakeHandle) ID() string { return h.id }

func (h *fakeHandle) Send(message []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.failSend {
		return errors.New("broken pipe")
	}
	h.messages = append(h.messages, message)
	return nil
}

func (h *fakeHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	return nil
}

func (h *fakeHandle) isClosed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

func (h *fakeHandle) events(t *testing.T) []string {
	t.Helper()
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []string
	for _, m := range h.messages {
		var env models.Envelope
		require.NoError(t, json.Unmarshal(m, &env))
		out = append(out, env.Event)
	}
	return out
}

// rejectingHandle records the reason given by the gateway.
type rejectingHandle struct {
	*fakeHandle
}

func (h rejectingHandle) Reject(reason string) error {
	h.mu.Lock()
	h.rejected = reason
	h.mu.Unlock()
	return h.Close()
}

type fakeVerifier struct {
	tokens map[string]int64
}

func (v fakeVerifier) Verify(token string) (int64, error) {
	if id, ok := v.tokens[token]; ok {
		return id, nil
	}
	return 0, fmt.Errorf("unknown token %q", token)
}

func testLogger() *logging.Logger {
	return logging.NewWithWriter(io.Discard, "debug")
}
