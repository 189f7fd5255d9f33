package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/freightdesk/sentinel/internal/services"
	pkghttp "github.com/freightdesk/sentinel/pkg/http"
)

// MaxLoginBodyBytes caps the login body read by the gate
const MaxLoginBodyBytes = 1 << 16

type contextKey string

const (
	anomaliesContextKey contextKey = "login_anomalies"
	attemptContextKey   contextKey = "login_attempt_id"
)

// LoginEvaluator decides whether a login request may reach authentication
type LoginEvaluator interface {
	Evaluate(ctx context.Context, login services.LoginContext) *services.Evaluation
}

// AnomalyGate evaluates every login request before the handler runs.
// Rejected requests are answered here and never reach authentication.
// Admitted requests carry the fired anomalies and the pending attempt id in their context.
func AnomalyGate(gate LoginEvaluator, ipConfig *pkghttp.IPConfig, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, err := io.ReadAll(io.LimitReader(r.Body, MaxLoginBodyBytes))
			if err != nil {
				pkghttp.WriteBadRequest(w, "Invalid request body")
				return
			}
			_ = r.Body.Close()
			r.Body = io.NopCloser(bytes.NewReader(body))

			// a malformed body still gets evaluated by address; the handler rejects it afterwards
			var payload struct {
				Identifier string `json:"identifier"`
			}
			_ = json.Unmarshal(body, &payload)

			login := services.LoginContext{
				Identifier: services.NormalizeIdentifier(payload.Identifier),
				IPAddress:  pkghttp.ExtractClientIP(r, ipConfig),
				UserAgent:  r.UserAgent(),
			}

			eval := gate.Evaluate(r.Context(), login)
			if eval == nil {
				next.ServeHTTP(w, r)
				return
			}

			if eval.Rejected() && eval.Rejection != nil {
				logger.WarnContext(r.Context(), "login rejected by security gate",
					"ip_address", login.IPAddress,
					"status", eval.Rejection.HTTPStatus,
					"code", eval.Rejection.Code,
					"anomaly_count", len(eval.Anomalies))
				pkghttp.WriteRejection(w, eval.Rejection.HTTPStatus, eval.Rejection.Code,
					eval.Rejection.Message, eval.Rejection.CooldownMinutes)
				return
			}

			ctx := r.Context()
			if len(eval.Anomalies) > 0 {
				ctx = context.WithValue(ctx, anomaliesContextKey, eval.Anomalies)
			}
			if eval.AttemptID != "" {
				ctx = context.WithValue(ctx, attemptContextKey, eval.AttemptID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AnomaliesFromContext returns the anomalies the gate attached to an admitted request
func AnomaliesFromContext(ctx context.Context) []services.AnomalyRef {
	refs, _ := ctx.Value(anomaliesContextKey).([]services.AnomalyRef)
	return refs
}

// AttemptIDFromContext returns the attempt the gate recorded for an admitted request
func AttemptIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(attemptContextKey).(string)
	return id
}
