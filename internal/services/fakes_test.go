package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"alert-service/internal/logging"
	"alert-service/internal/models"
)

var (
	testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	errBoom = errors.New("boom")
)

const (
	entityE int64 = 10
	entityF int64 = 20
)

// memStore is an in-memory stand-in for the database. Like the real schema it
// refuses a second notification for the same (user, alert) pair.
type memStore struct {
	mu            sync.Mutex
	nextAlertID   int64
	nextNotifID   int64
	alerts        map[int64]models.Alert
	notifications map[int64]models.Notification
	staff         []models.Recipient
	scoped        map[int64][]models.Recipient
	entities      map[int64]models.Entity
	movements     map[int64]models.Movement

	failCreateFor map[int64]error // keyed by user
	failFindFor   map[int64]error // keyed by user
	raceFor       map[int64]bool  // existence check misses, insert conflicts
	failLevelFor  map[int64]error // keyed by alert
	failStaff     error
	failContext   error
	failMarkRead  error

	hideOpenForMovement bool   // lookup misses, as if a concurrent create is in flight
	beforeStatusUpdate  func() // runs once, outside the lock, before UpdateAlertStatus
}

func newMemStore() *memStore {
	return &memStore{
		alerts:        make(map[int64]models.Alert),
		notifications: make(map[int64]models.Notification),
		scoped:        make(map[int64][]models.Recipient),
		entities:      make(map[int64]models.Entity),
		movements:     make(map[int64]models.Movement),
		failCreateFor: make(map[int64]error),
		failFindFor:   make(map[int64]error),
		raceFor:       make(map[int64]bool),
		failLevelFor:  make(map[int64]error),
	}
}

// seedDirectory sets up staff u1 (admin) and u2 (accountant), client u3
// scoped to entity E and client u4 scoped to entity F.
func (s *memStore) seedDirectory() {
	s.staff = []models.Recipient{{ID: 1, Role: "admin"}, {ID: 2, Role: "accountant"}}
	s.scoped[entityE] = []models.Recipient{{ID: 3, Role: "client"}}
	s.scoped[entityF] = []models.Recipient{{ID: 4, Role: "client"}}
	s.entities[entityE] = models.Entity{ID: entityE, Name: "Acme", FiscalID: "B12345678"}
	s.entities[entityF] = models.Entity{ID: entityF, Name: "Globex", FiscalID: "B87654321"}
}

func (s *memStore) seedAlert(level models.AlertLevel, entityID int64, createdAt time.Time) models.Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextAlertID++
	a := models.Alert{
		ID:        s.nextAlertID,
		Type:      models.AlertTypeMovement,
		Level:     level,
		Status:    models.StatusOpen,
		EntityID:  entityID,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
	s.alerts[a.ID] = a
	return a
}

func (s *memStore) alert(id int64) models.Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.alerts[id]
}

func (s *memStore) notificationsFor(alertID int64) []models.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Notification
	for _, n := range s.notifications {
		if n.AlertID != nil && *n.AlertID == alertID {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

func (s *memStore) softDelete(userID, alertID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, n := range s.notifications {
		if n.UserID == userID && n.AlertID != nil && *n.AlertID == alertID {
			ts := testNow
			n.Deleted = true
			n.DeletedAt = &ts
			s.notifications[id] = n
		}
	}
}

// AlertStore

func (s *memStore) CreateAlert(_ context.Context, in models.AlertCreate) (models.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if in.SourceMovementID != nil {
		if _, ok := s.openForMovement(*in.SourceMovementID, in.Type); ok {
			return models.Alert{}, models.ErrDuplicateAlert
		}
	}
	s.nextAlertID++
	a := models.Alert{
		ID:               s.nextAlertID,
		Type:             in.Type,
		Level:            models.LevelSimple,
		Status:           models.StatusOpen,
		EntityID:         in.EntityID,
		SourceMovementID: in.SourceMovementID,
		Notes:            in.Notes,
		CreatedAt:        testNow,
		UpdatedAt:        testNow,
	}
	s.alerts[a.ID] = a
	return a, nil
}

func (s *memStore) GetAlert(_ context.Context, id int64) (models.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.alerts[id]
	if !ok {
		return models.Alert{}, fmt.Errorf("alert %d: %w", id, models.ErrNotFound)
	}
	return a, nil
}

func (s *memStore) FindOpenAlertForMovement(_ context.Context, movementID int64, alertType string) (*models.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hideOpenForMovement {
		s.hideOpenForMovement = false
		return nil, nil
	}
	if a, ok := s.openForMovement(movementID, alertType); ok {
		return &a, nil
	}
	return nil, nil
}

func (s *memStore) openForMovement(movementID int64, alertType string) (models.Alert, bool) {
	for _, a := range s.alerts {
		if a.IsOpen() && a.Type == alertType && a.SourceMovementID != nil && *a.SourceMovementID == movementID {
			return a, true
		}
	}
	return models.Alert{}, false
}

func (s *memStore) UpdateAlertLevel(_ context.Context, id int64, level models.AlertLevel) (models.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failLevelFor[id]; err != nil {
		return models.Alert{}, err
	}
	a, ok := s.alerts[id]
	if !ok {
		return models.Alert{}, fmt.Errorf("alert %d: %w", id, models.ErrNotFound)
	}
	if !a.IsOpen() || !a.Level.CanEscalateTo(level) {
		return models.Alert{}, models.ErrInvalidLevelTransition
	}
	a.Level = level
	a.UpdatedAt = testNow
	s.alerts[id] = a
	return a, nil
}

func (s *memStore) UpdateAlertStatus(_ context.Context, id int64, status models.AlertStatus, resolvedAt *time.Time) (models.Alert, error) {
	if hook := s.takeStatusHook(); hook != nil {
		hook()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.alerts[id]
	if !ok {
		return models.Alert{}, fmt.Errorf("alert %d: %w", id, models.ErrNotFound)
	}
	if !a.IsOpen() {
		return models.Alert{}, fmt.Errorf("alert %d: %w", id, models.ErrAlreadyResolved)
	}
	a.Status = status
	a.ResolvedAt = resolvedAt
	a.UpdatedAt = testNow
	s.alerts[id] = a
	return a, nil
}

func (s *memStore) takeStatusHook() func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	hook := s.beforeStatusUpdate
	s.beforeStatusUpdate = nil
	return hook
}

func (s *memStore) MarkAlertNotified(_ context.Context, id int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.alerts[id]
	if !ok {
		return models.ErrNotFound
	}
	a.NotifiedAt = &at
	s.alerts[id] = a
	return nil
}

func (s *memStore) DeleteAlert(_ context.Context, id int64) (models.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.alerts[id]
	if !ok {
		return models.Alert{}, fmt.Errorf("alert %d: %w", id, models.ErrNotFound)
	}
	delete(s.alerts, id)
	return a, nil
}

func (s *memStore) FindOpenAlertsOlderThan(_ context.Context, levels []models.AlertLevel, cutoff time.Time) ([]models.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Alert
	for _, a := range s.alerts {
		if !a.IsOpen() || a.CreatedAt.After(cutoff) {
			continue
		}
		for _, l := range levels {
			if a.Level == l {
				out = append(out, a)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// NotificationStore

func (s *memStore) FindNotificationByUserAndAlert(_ context.Context, userID, alertID int64) (*models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failFindFor[userID]; err != nil {
		return nil, err
	}
	if s.raceFor[userID] {
		return nil, nil
	}
	for _, n := range s.notifications {
		if n.UserID == userID && n.AlertID != nil && *n.AlertID == alertID {
			n := n
			return &n, nil
		}
	}
	return nil, nil
}

func (s *memStore) CreateNotification(_ context.Context, in models.NotificationCreate) (models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failCreateFor[in.UserID]; err != nil {
		return models.Notification{}, err
	}
	if s.raceFor[in.UserID] {
		return models.Notification{}, models.ErrDuplicateNotification
	}
	for _, n := range s.notifications {
		if n.UserID == in.UserID && n.AlertID != nil && in.AlertID != nil && *n.AlertID == *in.AlertID {
			return models.Notification{}, models.ErrDuplicateNotification
		}
	}
	s.nextNotifID++
	n := models.Notification{
		ID:        s.nextNotifID,
		UserID:    in.UserID,
		AlertID:   in.AlertID,
		Payload:   in.Payload,
		CreatedAt: testNow,
	}
	s.notifications[n.ID] = n
	return n, nil
}

func (s *memStore) MarkAllReadForAlert(_ context.Context, alertID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failMarkRead != nil {
		return s.failMarkRead
	}
	for id, n := range s.notifications {
		if n.AlertID != nil && *n.AlertID == alertID {
			n.Read = true
			s.notifications[id] = n
		}
	}
	return nil
}

func (s *memStore) DeleteAllForAlert(_ context.Context, alertID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, n := range s.notifications {
		if n.AlertID != nil && *n.AlertID == alertID {
			delete(s.notifications, id)
		}
	}
	return nil
}

func (s *memStore) FindUserIDsForAlert(_ context.Context, alertID int64) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[int64]bool)
	var ids []int64
	for _, n := range s.notifications {
		if n.AlertID != nil && *n.AlertID == alertID && !seen[n.UserID] {
			seen[n.UserID] = true
			ids = append(ids, n.UserID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// UserDirectory

func (s *memStore) FindStaffUsers(_ context.Context) ([]models.Recipient, error) {
	if s.failStaff != nil {
		return nil, s.failStaff
	}
	return s.staff, nil
}

func (s *memStore) FindUsersByEntity(_ context.Context, entityID int64) ([]models.Recipient, error) {
	return s.scoped[entityID], nil
}

// ContextLoader

func (s *memStore) LoadAlertContext(_ context.Context, alert models.Alert) (models.AlertContext, error) {
	if s.failContext != nil {
		return models.AlertContext{}, s.failContext
	}
	var actx models.AlertContext
	if e, ok := s.entities[alert.EntityID]; ok {
		actx.Entity = &e
	}
	if alert.SourceMovementID != nil {
		if m, ok := s.movements[*alert.SourceMovementID]; ok {
			actx.Movement = &m
		}
	}
	return actx, nil
}

type push struct {
	userID    int64
	broadcast bool
	event     string
	data      interface{}
}

type fakePusher struct {
	mu     sync.Mutex
	pushes []push
}

func (p *fakePusher) SendToUser(userID int64, event string, data interface{}) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pushes = append(p.pushes, push{userID: userID, event: event, data: data})
	return 1
}

func (p *fakePusher) Broadcast(event string, data interface{}) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pushes = append(p.pushes, push{broadcast: true, event: event, data: data})
	return 1
}

func (p *fakePusher) byEvent(event string) []push {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []push
	for _, ps := range p.pushes {
		if ps.event == event {
			out = append(out, ps)
		}
	}
	return out
}

func (p *fakePusher) usersFor(event string) []int64 {
	var ids []int64
	for _, ps := range p.byEvent(event) {
		if !ps.broadcast {
			ids = append(ids, ps.userID)
		}
	}
	return ids
}

func (p *fakePusher) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pushes = nil
}

type fakeRelay struct {
	mu     sync.Mutex
	alerts []models.Alert
	err    error
}

func (r *fakeRelay) NotifyUrgent(_ context.Context, alert models.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, alert)
	return r.err
}

type fakeLocker struct {
	held     bool
	err      error
	acquired int
	released int
}

func (l *fakeLocker) TryLock(_ context.Context, _ string, _ time.Duration) (func(), bool, error) {
	if l.err != nil {
		return nil, false, l.err
	}
	if l.held {
		return nil, false, nil
	}
	l.acquired++
	return func() { l.released++ }, true, nil
}

type harness struct {
	store   *memStore
	pusher  *fakePusher
	relay   *fakeRelay
	fanout  *FanOut
	manager *Manager
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := newMemStore()
	store.seedDirectory()
	pusher := &fakePusher{}
	relay := &fakeRelay{}
	logger := logging.NewWithWriter(io.Discard, "error")

	fanout := NewFanOut(NewResolver(store), store, store, store, pusher, logger)
	manager := NewManager(store, store, fanout, pusher, logger,
		WithClock(func() time.Time { return testNow }),
		WithUrgentRelay(relay),
	)
	return &harness{store: store, pusher: pusher, relay: relay, fanout: fanout, manager: manager}
}

func int64Ptr(v int64) *int64 { return &v }

func strPtr(s string) *string { return &s }
