package realtime

import (
	"fmt"

	"alert-service/internal/logging"
	"alert-service/internal/models"
)

// TokenVerifier resolves a bearer token to a user ID.
type TokenVerifier interface {
	Verify(token string) (int64, error)
}

// rejecter is implemented by handles that can tell the peer why they are
// being terminated before closing.
type rejecter interface {
	Reject(reason string) error
}

// Gateway admits connections into the registry.
type Gateway struct {
	registry *Registry
	verifier TokenVerifier
	logger   *logging.Logger
}

func NewGateway(registry *Registry, verifier TokenVerifier, logger *logging.Logger) *Gateway {
	return &Gateway{registry: registry, verifier: verifier, logger: logger}
}

// OnConnection verifies token and registers h for its user. On any failure h
// is terminated and nothing is registered.
func (g *Gateway) OnConnection(token string, h Handle) (int64, error) {
	if token == "" {
		g.terminate(h, "missing token")
		return 0, fmt.Errorf("missing token: %w", models.ErrUnauthorized)
	}
	userID, err := g.verifier.Verify(token)
	if err != nil {
		g.terminate(h, "invalid token")
		return 0, fmt.Errorf("invalid token: %v: %w", err, models.ErrUnauthorized)
	}
	if err := g.registry.Add(userID, h); err != nil {
		g.terminate(h, "connection refused")
		return 0, err
	}
	return userID, nil
}

// OnDisconnection removes h from the registry.
func (g *Gateway) OnDisconnection(h Handle) {
	if _, ok := g.registry.Remove(h); !ok {
		g.logger.Debugf("Connection %s was not registered", h.ID())
	}
}

func (g *Gateway) terminate(h Handle, reason string) {
	g.logger.Warnf("Terminating connection %s: %s", h.ID(), reason)
	var err error
	if r, ok := h.(rejecter); ok {
		err = r.Reject(reason)
	} else {
		err = h.Close()
	}
	if err != nil {
		g.logger.Debugf("Close of connection %s failed: %v", h.ID(), err)
	}
}
