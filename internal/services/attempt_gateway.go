package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/freightdesk/sentinel/internal/models"
)

// DefaultDetectionQueryTimeout bounds each attempt-history read on the login hot path
const DefaultDetectionQueryTimeout = 2 * time.Second

// AttemptStore is the append-only attempt history the detectors read from
type AttemptStore interface {
	Query(ctx context.Context, filter models.AttemptFilter, since time.Time) ([]models.LoginAttempt, error)
}

// AccountResolver resolves what a caller typed at login to an account
type AccountResolver interface {
	GetByIdentifier(ctx context.Context, identifier string) (*models.User, error)
}

// AttemptGateway is the only path from the detectors to persistence.
// Every call runs under its own timeout and store failures come back as ErrStoreUnavailable.
type AttemptGateway struct {
	store    AttemptStore
	accounts AccountResolver
	timeout  time.Duration
	now      func() time.Time
}

// NewAttemptGateway creates a new AttemptGateway
func NewAttemptGateway(store AttemptStore, accounts AccountResolver, timeout time.Duration) *AttemptGateway {
	if timeout <= 0 {
		timeout = DefaultDetectionQueryTimeout
	}
	return &AttemptGateway{
		store:    store,
		accounts: accounts,
		timeout:  timeout,
		now:      time.Now,
	}
}

// Now returns the gateway's notion of the current time
func (g *AttemptGateway) Now() time.Time {
	return g.now()
}

// Query returns attempts matching filter within the last window, newest first
func (g *AttemptGateway) Query(ctx context.Context, filter models.AttemptFilter, window time.Duration) ([]models.LoginAttempt, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	since := g.now().Add(-window)
	attempts, err := g.store.Query(ctx, filter, since)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrStoreUnavailable, err)
	}

	for _, attempt := range attempts {
		if strings.TrimSpace(attempt.IPAddress) == "" || attempt.AttemptTime.IsZero() {
			return nil, fmt.Errorf("%w: attempt %q is missing ip address or timestamp", models.ErrMalformedRecord, attempt.ID)
		}
	}

	sort.SliceStable(attempts, func(i, j int) bool {
		return attempts[i].AttemptTime.After(attempts[j].AttemptTime)
	})

	return attempts, nil
}

// ResolveAccount returns the account id for an identifier, or models.ErrNotFound
func (g *AttemptGateway) ResolveAccount(ctx context.Context, identifier string) (string, error) {
	if strings.TrimSpace(identifier) == "" {
		return "", models.ErrNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	user, err := g.accounts.GetByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return "", models.ErrNotFound
		}
		return "", fmt.Errorf("%w: resolve account: %w", models.ErrStoreUnavailable, err)
	}

	return user.ID, nil
}
