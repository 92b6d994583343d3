package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"alert-service/internal/logging"
	"alert-service/internal/models"
	"alert-service/internal/realtime"
)

// AlertManager is the slice of the alert lifecycle the HTTP layer drives.
type AlertManager interface {
	Get(ctx context.Context, id int64) (models.Alert, error)
	CreateForEvent(ctx context.Context, in models.AlertCreate) (models.Alert, error)
	Resolve(ctx context.Context, id int64) (models.Alert, error)
	Delete(ctx context.Context, id int64) (models.Alert, error)
}

// NotificationInbox serves a user's own notifications.
type NotificationInbox interface {
	GetNotificationsByUserID(ctx context.Context, userID int64, limit, offset int) ([]models.Notification, error)
	MarkNotificationRead(ctx context.Context, userID, id int64) (models.Notification, error)
	SoftDeleteNotification(ctx context.Context, userID, id int64) (models.Notification, error)
}

// ConnectionGateway admits and releases websocket sessions.
type ConnectionGateway interface {
	OnConnection(token string, h realtime.Handle) (int64, error)
	OnDisconnection(h realtime.Handle)
}

type Handler struct {
	alerts        AlertManager
	notifications NotificationInbox
	gateway       ConnectionGateway
	verifier      realtime.TokenVerifier
	upgrader      websocket.Upgrader
	writeTimeout  time.Duration
	logger        *logging.Logger
}

func NewHandler(alerts AlertManager, notifications NotificationInbox, gateway ConnectionGateway, verifier realtime.TokenVerifier, writeTimeout time.Duration, logger *logging.Logger) *Handler {
	return &Handler{
		alerts:        alerts,
		notifications: notifications,
		gateway:       gateway,
		verifier:      verifier,
		writeTimeout:  writeTimeout,
		logger:        logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

func (h *Handler) CreateAlert(c *gin.Context) {
	var in models.AlertCreate
	if err := c.ShouldBindJSON(&in); err != nil {
		h.logger.Errorf("Invalid request body for alert: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	alert, err := h.alerts.CreateForEvent(c.Request.Context(), in)
	if err != nil {
		h.fail(c, "Failed to create alert", err)
		return
	}
	c.JSON(http.StatusCreated, alert)
}

func (h *Handler) GetAlert(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	alert, err := h.alerts.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "Failed to get alert", err)
		return
	}
	c.JSON(http.StatusOK, alert)
}

func (h *Handler) ResolveAlert(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	alert, err := h.alerts.Resolve(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "Failed to resolve alert", err)
		return
	}
	h.logger.Infof("Resolved alert: %d", id)
	c.JSON(http.StatusOK, alert)
}

func (h *Handler) DeleteAlert(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	if _, err := h.alerts.Delete(c.Request.Context(), id); err != nil {
		h.fail(c, "Failed to delete alert", err)
		return
	}
	h.logger.Infof("Deleted alert: %d", id)
	c.Status(http.StatusNoContent)
}

func (h *Handler) GetNotifications(c *gin.Context) {
	userID := c.GetInt64(userIDKey)
	limit, err := queryInt(c, "limit", 50)
	if err != nil || limit <= 0 || limit > 200 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
		return
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil || offset < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid offset"})
		return
	}

	list, err := h.notifications.GetNotificationsByUserID(c.Request.Context(), userID, limit, offset)
	if err != nil {
		h.fail(c, "Failed to get notifications", err)
		return
	}
	if list == nil {
		list = []models.Notification{}
	}
	h.logger.Debugf("Retrieved %d notifications for user_id %d", len(list), userID)
	c.JSON(http.StatusOK, list)
}

func (h *Handler) MarkNotificationRead(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	n, err := h.notifications.MarkNotificationRead(c.Request.Context(), c.GetInt64(userIDKey), id)
	if err != nil {
		h.fail(c, "Failed to mark notification read", err)
		return
	}
	c.JSON(http.StatusOK, n)
}

func (h *Handler) DeleteNotification(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	if _, err := h.notifications.SoftDeleteNotification(c.Request.Context(), c.GetInt64(userIDKey), id); err != nil {
		h.fail(c, "Failed to delete notification", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ServeWebSocket upgrades the request and hands the session to the gateway,
// which closes it again when the token does not check out.
func (h *Handler) ServeWebSocket(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Errorf("WebSocket upgrade failed: %v", err)
		return
	}

	session := realtime.NewSession(conn, h.writeTimeout)
	userID, err := h.gateway.OnConnection(bearerToken(c), session)
	if err != nil {
		h.logger.Warnf("WebSocket connection %s rejected: %v", session.ID(), err)
		return
	}
	h.logger.Infof("WebSocket connection %s opened for user_id %d", session.ID(), userID)

	session.Run()

	h.gateway.OnDisconnection(session)
	_ = session.Close()
	h.logger.Infof("WebSocket connection %s closed for user_id %d", session.ID(), userID)
}

func (h *Handler) pathID(c *gin.Context) (int64, bool) {
	raw := c.Param("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		h.logger.Errorf("Invalid id %s: %v", raw, err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid id"})
		return 0, false
	}
	return id, true
}

// fail maps domain errors onto HTTP statuses.
func (h *Handler) fail(c *gin.Context, msg string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Errorf("%s: %v", msg, err)
	} else {
		h.logger.Warnf("%s: %v", msg, err)
	}
	c.JSON(status, gin.H{"error": msg + ": " + publicReason(err, status)})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrAlreadyResolved), errors.Is(err, models.ErrInvalidLevelTransition):
		return http.StatusConflict
	case errors.Is(err, models.ErrUnauthorized):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func publicReason(err error, status int) string {
	switch status {
	case http.StatusNotFound:
		return models.ErrNotFound.Error()
	case http.StatusConflict:
		if errors.Is(err, models.ErrAlreadyResolved) {
			return models.ErrAlreadyResolved.Error()
		}
		return models.ErrInvalidLevelTransition.Error()
	case http.StatusUnauthorized:
		return models.ErrUnauthorized.Error()
	default:
		return "internal error"
	}
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
