package services

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/freightdesk/sentinel/internal/models"
	pkglogger "github.com/freightdesk/sentinel/pkg/logger"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

var testNow = time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// memoryAttemptStore is an in-memory attempt history. Results come back oldest first
// so the gateway's ordering is exercised.
type memoryAttemptStore struct {
	mu        sync.Mutex
	attempts  []models.LoginAttempt
	recordErr error
	QueryFunc func(filter models.AttemptFilter, since time.Time) ([]models.LoginAttempt, error)
}

func (s *memoryAttemptStore) add(a models.LoginAttempt) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Status == "" {
		a.Status = models.AttemptStatusFailed
	}
	s.attempts = append(s.attempts, a)
	return a.ID
}

func (s *memoryAttemptStore) RecordAttempt(_ context.Context, attempt *models.LoginAttempt) error {
	if s.recordErr != nil {
		return s.recordErr
	}
	attempt.ID = s.add(*attempt)
	return nil
}

func (s *memoryAttemptStore) CompleteAttempt(_ context.Context, id, accountID string, status models.AttemptStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.attempts {
		if s.attempts[i].ID != id {
			continue
		}
		s.attempts[i].Status = status
		if accountID != "" {
			s.attempts[i].AccountID = accountID
		}
		return nil
	}
	return models.ErrNotFound
}

// byStatus returns the stored attempts with the given status
func (s *memoryAttemptStore) byStatus(status models.AttemptStatus) []models.LoginAttempt {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.LoginAttempt, 0)
	for _, a := range s.attempts {
		if a.Status == status {
			out = append(out, a)
		}
	}
	return out
}

func (s *memoryAttemptStore) Query(_ context.Context, filter models.AttemptFilter, since time.Time) ([]models.LoginAttempt, error) {
	if s.QueryFunc != nil {
		return s.QueryFunc(filter, since)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.LoginAttempt, 0)
	for _, a := range s.attempts {
		if a.AttemptTime.Before(since) {
			continue
		}
		if filter.IPAddress != "" && a.IPAddress != filter.IPAddress {
			continue
		}
		if filter.Identifier != "" && a.Identifier != filter.Identifier {
			continue
		}
		if filter.AccountID != "" && a.AccountID != filter.AccountID {
			continue
		}
		if len(filter.Statuses) > 0 && !hasStatus(filter.Statuses, a.Status) {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func hasStatus(statuses []models.AttemptStatus, s models.AttemptStatus) bool {
	for _, candidate := range statuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// memoryAccounts resolves identifiers by case-insensitive email or exact username
type memoryAccounts struct {
	users []*models.User
	err   error
}

func (m *memoryAccounts) GetByIdentifier(_ context.Context, identifier string) (*models.User, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, u := range m.users {
		if strings.EqualFold(u.Email, identifier) || (u.Username != nil && *u.Username == identifier) {
			return u, nil
		}
	}
	return nil, models.ErrNotFound
}

func (m *memoryAccounts) GetByID(_ context.Context, id string) (*models.User, error) {
	for _, u := range m.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, models.ErrNotFound
}

type memoryAnomalyStore struct {
	created   []*models.Anomaly
	blocked   []uuid.UUID
	createErr error
	blockErr  error
}

func (m *memoryAnomalyStore) Create(_ context.Context, anomaly *models.Anomaly) (*models.Anomaly, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	stored := *anomaly
	stored.ID = uuid.New()
	stored.CreatedAt = testNow
	m.created = append(m.created, &stored)
	return &stored, nil
}

func (m *memoryAnomalyStore) MarkBlocked(_ context.Context, ids []uuid.UUID) (int64, error) {
	if m.blockErr != nil {
		return 0, m.blockErr
	}
	m.blocked = append(m.blocked, ids...)
	for _, a := range m.created {
		for _, id := range ids {
			if a.ID == id && a.MitigationStatus == models.MitigationDetected {
				a.MitigationStatus = models.MitigationBlocked
			}
		}
	}
	return int64(len(ids)), nil
}

func (m *memoryAnomalyStore) byType(anomalyType string) []*models.Anomaly {
	out := make([]*models.Anomaly, 0)
	for _, a := range m.created {
		if a.Type == anomalyType {
			out = append(out, a)
		}
	}
	return out
}

type sentAlert struct {
	AccountID *string
	Kind      string
	Details   map[string]any
}

type recordingAlertSink struct {
	sent []sentAlert
	err  error
}

func (r *recordingAlertSink) SendAlert(_ context.Context, accountID *string, kind string, details map[string]any) error {
	r.sent = append(r.sent, sentAlert{AccountID: accountID, Kind: kind, Details: details})
	return r.err
}

// detectionHarness wires a SecurityGate against in-memory collaborators and a fixed clock
type detectionHarness struct {
	attempts  *memoryAttemptStore
	accounts  *memoryAccounts
	anomalies *memoryAnomalyStore
	alerts    *recordingAlertSink
	gateway   *AttemptGateway
	metrics   *DetectionMetrics
	gate      *SecurityGate
	now       time.Time
}

func newDetectionHarness() *detectionHarness {
	h := &detectionHarness{
		attempts:  &memoryAttemptStore{},
		accounts:  &memoryAccounts{},
		anomalies: &memoryAnomalyStore{},
		alerts:    &recordingAlertSink{},
		now:       testNow,
	}

	h.gateway = NewAttemptGateway(h.attempts, h.accounts, time.Second)
	h.gateway.now = func() time.Time { return h.now }

	metrics, err := NewDetectionMetrics(prometheus.NewRegistry())
	if err != nil {
		panic(err)
	}
	h.metrics = metrics

	logger := discardLogger()
	audit := pkglogger.NewAuditLogger(logger)
	recorder := NewAnomalyRecorder(h.anomalies, h.alerts, audit, logger)
	h.gate = NewSecurityGate(
		h.gateway,
		NewHeuristicDetector(h.gateway),
		NewAccountDetector(h.gateway, DefaultCooldown),
		h.attempts,
		24*time.Hour,
		recorder,
		h.metrics,
		audit,
		logger,
	)
	return h
}

// at returns the harness clock offset by d (negative for the past)
func (h *detectionHarness) at(d time.Duration) time.Time {
	return h.now.Add(d)
}

func (h *detectionHarness) addUser(id, email string) *models.User {
	u := &models.User{ID: id, Email: email, Role: "user", Status: models.UserStatusActive}
	h.accounts.users = append(h.accounts.users, u)
	return u
}

func ptr[T any](v T) *T {
	return &v
}
