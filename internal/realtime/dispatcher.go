package realtime

import (
	"encoding/json"

	"alert-service/internal/logging"
	"alert-service/internal/metrics"
	"alert-service/internal/models"
)

// Dispatcher pushes events to live connections. Delivery is best-effort: a
// failed write drops that connection and is never retried.
type Dispatcher struct {
	registry *Registry
	logger   *logging.Logger
}

func NewDispatcher(registry *Registry, logger *logging.Logger) *Dispatcher {
	return &Dispatcher{registry: registry, logger: logger}
}

// SendToUser delivers the event to every connection of userID and returns how
// many writes succeeded. A user without connections is a no-op.
func (d *Dispatcher) SendToUser(userID int64, event string, data interface{}) int {
	handles := d.registry.Connections(userID)
	if len(handles) == 0 {
		d.logger.Debugf("No live connection for user %d, skipping %s", userID, event)
		return 0
	}
	msg, ok := d.encode(event, data)
	if !ok {
		return 0
	}
	return d.deliver(handles, event, msg)
}

// Broadcast delivers the event to every live connection.
func (d *Dispatcher) Broadcast(event string, data interface{}) int {
	handles := d.registry.All()
	if len(handles) == 0 {
		return 0
	}
	msg, ok := d.encode(event, data)
	if !ok {
		return 0
	}
	return d.deliver(handles, event, msg)
}

func (d *Dispatcher) encode(event string, data interface{}) ([]byte, bool) {
	msg, err := json.Marshal(models.Envelope{Event: event, Data: data})
	if err != nil {
		d.logger.Errorf("Failed to encode %s event: %v", event, err)
		return nil, false
	}
	return msg, true
}

func (d *Dispatcher) deliver(handles []Handle, event string, msg []byte) int {
	delivered := 0
	for _, h := range handles {
		if err := h.Send(msg); err != nil {
			metrics.PushFailures.Inc()
			userID, _ := d.registry.Remove(h)
			d.logger.Warnf("Failed to send %s to connection %s of user %d, dropping it: %v", event, h.ID(), userID, err)
			_ = h.Close()
			continue
		}
		delivered++
	}
	metrics.PushesTotal.WithLabelValues(event).Add(float64(delivered))
	return delivered
}
