package middleware

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/freightdesk/sentinel/internal/models"
	"github.com/freightdesk/sentinel/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEvaluator struct {
	eval *services.Evaluation
	seen []services.LoginContext
}

func (f *fakeEvaluator) Evaluate(_ context.Context, login services.LoginContext) *services.Evaluation {
	f.seen = append(f.seen, login)
	return f.eval
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestAnomalyGate_ContinuePassesBodyAndAnomalies(t *testing.T) {
	refs := []services.AnomalyRef{{Type: models.AnomalyTypeRapidSuccession, Severity: models.SeverityMedium}}
	eval := &fakeEvaluator{eval: &services.Evaluation{Decision: services.DecisionContinue, Anomalies: refs}}

	var gotBody string
	var gotRefs []services.AnomalyRef
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		gotRefs = AnomaliesFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	body := `{"identifier":"alice@example.com","password":"hunter2hunter2"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
	req.RemoteAddr = "198.51.100.4:5000"
	req.Header.Set("User-Agent", "curl/8.0")
	rec := httptest.NewRecorder()

	AnomalyGate(eval, nil, discardLogger())(next).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, body, gotBody)
	assert.Equal(t, refs, gotRefs)
	require.Len(t, eval.seen, 1)
	assert.Equal(t, services.LoginContext{
		Identifier: "alice@example.com",
		IPAddress:  "198.51.100.4",
		UserAgent:  "curl/8.0",
	}, eval.seen[0])
}

func TestAnomalyGate_RejectionStopsRequest(t *testing.T) {
	tests := []struct {
		name       string
		rejection  services.Rejection
		retryAfter string
	}{
		{
			name: "account cooldown",
			rejection: services.Rejection{
				HTTPStatus:      http.StatusTooManyRequests,
				Code:            "too_many_attempts",
				Message:         services.MessageTooManyAttempts,
				CooldownMinutes: 15,
			},
			retryAfter: "900",
		},
		{
			name: "suspicious activity",
			rejection: services.Rejection{
				HTTPStatus: http.StatusForbidden,
				Code:       "suspicious_activity",
				Message:    services.MessageSuspiciousActivity,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rejection := tt.rejection
			eval := &fakeEvaluator{eval: &services.Evaluation{Decision: services.DecisionRejected, Rejection: &rejection}}
			called := false
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true })

			req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"identifier":"bob"}`))
			rec := httptest.NewRecorder()
			AnomalyGate(eval, nil, discardLogger())(next).ServeHTTP(rec, req)

			assert.False(t, called)
			assert.Equal(t, tt.rejection.HTTPStatus, rec.Code)
			assert.Equal(t, tt.retryAfter, rec.Header().Get("Retry-After"))
			assert.Contains(t, rec.Body.String(), tt.rejection.Code)
		})
	}
}

func TestAnomalyGate_MalformedBodyStillEvaluatedByAddress(t *testing.T) {
	eval := &fakeEvaluator{eval: &services.Evaluation{Decision: services.DecisionContinue}}
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Nil(t, AnomaliesFromContext(r.Context()))
		w.WriteHeader(http.StatusBadRequest)
	})

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader("not json"))
	req.RemoteAddr = "203.0.113.9:1"
	rec := httptest.NewRecorder()
	AnomalyGate(eval, nil, discardLogger())(next).ServeHTTP(rec, req)

	require.Len(t, eval.seen, 1)
	assert.Empty(t, eval.seen[0].Identifier)
	assert.Equal(t, "203.0.113.9", eval.seen[0].IPAddress)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnomalyGate_TrimsIdentifierAndForwardsAttempt(t *testing.T) {
	eval := &fakeEvaluator{eval: &services.Evaluation{Decision: services.DecisionContinue, AttemptID: "attempt-7"}}

	var gotAttempt string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAttempt = AttemptIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"identifier":" \talice@example.com  ","password":"x"}`))
	rec := httptest.NewRecorder()
	AnomalyGate(eval, nil, discardLogger())(next).ServeHTTP(rec, req)

	require.Len(t, eval.seen, 1)
	assert.Equal(t, "alice@example.com", eval.seen[0].Identifier)
	assert.Equal(t, "attempt-7", gotAttempt)
}
