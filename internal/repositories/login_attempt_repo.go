package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/freightdesk/sentinel/internal/database"
	"github.com/freightdesk/sentinel/internal/models"
)

// LoginAttemptRepository handles database operations for login attempts
type LoginAttemptRepository struct {
	db      database.Querier
	builder squirrel.StatementBuilderType
}

// NewLoginAttemptRepository creates a new LoginAttemptRepository
func NewLoginAttemptRepository(db database.Querier) *LoginAttemptRepository {
	return &LoginAttemptRepository{
		db:      db,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// RecordAttempt records a login attempt in the database and sets attempt.ID
func (r *LoginAttemptRepository) RecordAttempt(ctx context.Context, attempt *models.LoginAttempt) error {
	query := `
		INSERT INTO login_attempts (identifier, account_id, ip_address, user_agent, attempt_time, status, expires_at)
		VALUES (NULLIF($1, ''), NULLIF($2, '')::uuid, $3, $4, $5, $6, $7)
		RETURNING id::text
	`

	err := r.db.QueryRow(ctx, query,
		attempt.Identifier,
		attempt.AccountID,
		attempt.IPAddress,
		attempt.UserAgent,
		attempt.AttemptTime,
		string(attempt.Status),
		attempt.ExpiresAt,
	).Scan(&attempt.ID)
	if err != nil {
		return fmt.Errorf("failed to record login attempt: %w", err)
	}

	return nil
}

// CompleteAttempt sets the outcome of an attempt recorded before authentication ran.
// An empty accountID keeps whatever account the attempt already carries.
func (r *LoginAttemptRepository) CompleteAttempt(ctx context.Context, id, accountID string, status models.AttemptStatus) error {
	query := `
		UPDATE login_attempts
		SET status = $2, account_id = COALESCE(NULLIF($3, '')::uuid, account_id)
		WHERE id = $1::uuid
	`

	result, err := r.db.Exec(ctx, query, id, string(status), accountID)
	if err != nil {
		return fmt.Errorf("failed to complete login attempt: %w", err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}

// Query returns attempts matching the filter made at or after since, newest first
func (r *LoginAttemptRepository) Query(ctx context.Context, filter models.AttemptFilter, since time.Time) ([]models.LoginAttempt, error) {
	builder := r.builder.
		Select(
			"id::text",
			"COALESCE(identifier, '')",
			"COALESCE(account_id::text, '')",
			"ip_address",
			"user_agent",
			"attempt_time",
			"status",
			"expires_at",
		).
		From("login_attempts").
		Where(squirrel.GtOrEq{"attempt_time": since})

	if filter.IPAddress != "" {
		builder = builder.Where(squirrel.Eq{"ip_address": filter.IPAddress})
	}
	if filter.Identifier != "" {
		builder = builder.Where(squirrel.Eq{"identifier": filter.Identifier})
	}
	if filter.AccountID != "" {
		builder = builder.Where(squirrel.Eq{"account_id": filter.AccountID})
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, 0, len(filter.Statuses))
		for _, s := range filter.Statuses {
			statuses = append(statuses, string(s))
		}
		builder = builder.Where(squirrel.Eq{"status": statuses})
	}

	sql, args, err := builder.OrderBy("attempt_time DESC").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build login attempt query: %w", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query login attempts: %w", err)
	}
	defer rows.Close()

	attempts := make([]models.LoginAttempt, 0)
	for rows.Next() {
		var attempt models.LoginAttempt
		var status string
		if err := rows.Scan(
			&attempt.ID,
			&attempt.Identifier,
			&attempt.AccountID,
			&attempt.IPAddress,
			&attempt.UserAgent,
			&attempt.AttemptTime,
			&status,
			&attempt.ExpiresAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan login attempt: %w", err)
		}
		attempt.Status = models.AttemptStatus(status)
		attempts = append(attempts, attempt)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating login attempt rows: %w", err)
	}

	return attempts, nil
}

// DeleteExpiredAttempts removes login attempts past their retention window
func (r *LoginAttemptRepository) DeleteExpiredAttempts(ctx context.Context) (int64, error) {
	query := `DELETE FROM login_attempts WHERE expires_at <= CURRENT_TIMESTAMP`

	result, err := r.db.Exec(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired login attempts: %w", err)
	}

	return result.RowsAffected(), nil
}
