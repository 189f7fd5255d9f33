package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/freightdesk/sentinel/internal/database"
	"github.com/freightdesk/sentinel/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var anomalyColumns = []string{
	"id",
	"account_id::text",
	"ip_address",
	"user_agent",
	"identifier",
	"anomaly_type",
	"reason",
	"details",
	"features",
	"severity",
	"mitigation_status",
	"score",
	"created_at",
	"resolved_at",
	"resolved_by::text",
	"notes",
}

// AnomalyRepository handles persistence of detected login anomalies
type AnomalyRepository struct {
	db      database.Querier
	builder squirrel.StatementBuilderType
}

// NewAnomalyRepository creates a new AnomalyRepository
func NewAnomalyRepository(db database.Querier) *AnomalyRepository {
	return &AnomalyRepository{
		db:      db,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// scanAnomalyRow decodes the JSON columns and label columns of an anomaly row
func scanAnomalyRow(row rowScanner) (*models.Anomaly, error) {
	var a models.Anomaly
	var detailsJSON, featuresJSON []byte
	var severity, status string

	err := row.Scan(
		&a.ID, &a.AccountID, &a.IPAddress, &a.UserAgent, &a.Identifier,
		&a.Type, &a.Reason, &detailsJSON, &featuresJSON, &severity, &status,
		&a.Score, &a.CreatedAt, &a.ResolvedAt, &a.ResolvedBy, &a.Notes,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	if len(detailsJSON) > 0 {
		if err := json.Unmarshal(detailsJSON, &a.Details); err != nil {
			return nil, fmt.Errorf("decode anomaly details: %w", err)
		}
	}
	if len(featuresJSON) > 0 {
		a.Features = &models.AnomalyFeatures{}
		if err := json.Unmarshal(featuresJSON, a.Features); err != nil {
			return nil, fmt.Errorf("decode anomaly features: %w", err)
		}
	}

	if a.Severity, err = models.ParseSeverity(severity); err != nil {
		return nil, fmt.Errorf("decode anomaly severity: %w", err)
	}
	a.MitigationStatus = models.MitigationStatus(status)

	return &a, nil
}

// Create inserts a new anomaly and returns it with its generated id and timestamp
func (r *AnomalyRepository) Create(ctx context.Context, anomaly *models.Anomaly) (*models.Anomaly, error) {
	details := anomaly.Details
	if details == nil {
		details = models.AnomalyDetails{}
	}
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return nil, fmt.Errorf("encode anomaly details: %w", err)
	}

	var featuresJSON []byte
	if anomaly.Features != nil {
		if featuresJSON, err = json.Marshal(anomaly.Features); err != nil {
			return nil, fmt.Errorf("encode anomaly features: %w", err)
		}
	}

	status := anomaly.MitigationStatus
	if status == "" {
		status = models.MitigationDetected
	}

	query := `
		INSERT INTO login_anomalies (
			account_id, ip_address, user_agent, identifier, anomaly_type, reason,
			details, features, severity, mitigation_status, score
		)
		VALUES ($1::uuid, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at
	`

	created := *anomaly
	created.Details = details
	created.MitigationStatus = status

	err = r.db.QueryRow(ctx, query,
		anomaly.AccountID, anomaly.IPAddress, anomaly.UserAgent, anomaly.Identifier,
		anomaly.Type, anomaly.Reason, detailsJSON, featuresJSON,
		anomaly.Severity.String(), string(status), anomaly.Score,
	).Scan(&created.ID, &created.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create anomaly: %w", database.MapPostgresError(err))
	}

	return &created, nil
}

// GetByID retrieves a single anomaly
func (r *AnomalyRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Anomaly, error) {
	sql, args, err := r.builder.Select(anomalyColumns...).
		From("login_anomalies").
		Where(squirrel.Eq{"id": id.String()}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build anomaly query: %w", err)
	}

	return scanAnomalyRow(r.db.QueryRow(ctx, sql, args...))
}

// List returns anomalies matching the filter, newest first
func (r *AnomalyRepository) List(ctx context.Context, filter models.AnomalyListFilter) ([]*models.Anomaly, error) {
	builder := r.builder.Select(anomalyColumns...).From("login_anomalies")

	if filter.Severity != models.SeverityNone {
		builder = builder.Where(squirrel.Eq{"severity": filter.Severity.String()})
	}
	if filter.MitigationStatus != "" {
		builder = builder.Where(squirrel.Eq{"mitigation_status": string(filter.MitigationStatus)})
	}
	if filter.IPAddress != "" {
		builder = builder.Where(squirrel.Eq{"ip_address": filter.IPAddress})
	}
	if filter.AccountID != "" {
		builder = builder.Where(squirrel.Eq{"account_id": filter.AccountID})
	}

	sql, args, err := builder.
		OrderBy("created_at DESC").
		Limit(uint64(filter.Limit)).
		Offset(uint64(filter.Offset)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build anomaly list query: %w", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query anomalies: %w", err)
	}

	return scanAnomalyRows(rows)
}

func scanAnomalyRows(rows pgx.Rows) ([]*models.Anomaly, error) {
	defer rows.Close()

	anomalies := make([]*models.Anomaly, 0)
	for rows.Next() {
		a, err := scanAnomalyRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan anomaly: %w", err)
		}
		anomalies = append(anomalies, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating anomaly rows: %w", err)
	}

	return anomalies, nil
}

// MarkBlocked moves freshly detected anomalies to blocked. Reviewed anomalies are left alone.
func (r *AnomalyRepository) MarkBlocked(ctx context.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	idStrings := make([]string, 0, len(ids))
	for _, id := range ids {
		idStrings = append(idStrings, id.String())
	}

	query := `
		UPDATE login_anomalies
		SET mitigation_status = 'blocked'
		WHERE id = ANY($1::uuid[]) AND mitigation_status = 'detected'
	`

	result, err := r.db.Exec(ctx, query, idStrings)
	if err != nil {
		return 0, fmt.Errorf("failed to mark anomalies blocked: %w", err)
	}

	return result.RowsAffected(), nil
}

// Resolve applies a reviewer's decision. Only mitigation and resolution fields change.
// resolved_at and resolved_by are written on terminal statuses only, so moving an anomaly
// back to monitoring keeps who closed it and when.
func (r *AnomalyRepository) Resolve(ctx context.Context, id uuid.UUID, resolution models.AnomalyResolution) (*models.Anomaly, error) {
	update := r.builder.Update("login_anomalies").
		Set("mitigation_status", string(resolution.Status)).
		Set("notes", squirrel.Expr("COALESCE(?, notes)", resolution.Notes))

	if resolution.Status.IsTerminal() {
		update = update.
			Set("resolved_at", time.Now().UTC()).
			Set("resolved_by", squirrel.Expr("?::uuid", resolution.ReviewerID))
	}

	sql, args, err := update.
		Where(squirrel.Eq{"id": id.String()}).
		Suffix("RETURNING " + strings.Join(anomalyColumns, ", ")).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build anomaly resolve query: %w", err)
	}

	return scanAnomalyRow(r.db.QueryRow(ctx, sql, args...))
}
