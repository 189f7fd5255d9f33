package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/freightdesk/sentinel/internal/models"
)

// LogAlertSink writes alerts to the application log
type LogAlertSink struct {
	logger *slog.Logger
}

// NewLogAlertSink creates a new LogAlertSink
func NewLogAlertSink(logger *slog.Logger) *LogAlertSink {
	return &LogAlertSink{logger: logger}
}

// SendAlert logs the alert at warn level
func (s *LogAlertSink) SendAlert(ctx context.Context, accountID *string, kind string, details map[string]any) error {
	attrs := []slog.Attr{
		slog.String("kind", kind),
		slog.Any("details", details),
	}
	if accountID != nil {
		attrs = append(attrs, slog.String("account_id", *accountID))
	}
	s.logger.LogAttrs(ctx, slog.LevelWarn, "security alert", attrs...)
	return nil
}

// AccountLookup finds the owner of an account for account-scoped alerts
type AccountLookup interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}

type sesSender interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESAlertSink emails alerts through AWS SES. Account alerts go to the account owner,
// account-less alerts (and owners that cannot be found) go to the security mailbox.
type SESAlertSink struct {
	client        sesSender
	accounts      AccountLookup
	fromAddress   string
	securityEmail string
	logger        *slog.Logger
}

// NewSESAlertSink creates an SES alert sink using the default AWS credential chain
func NewSESAlertSink(ctx context.Context, region, fromAddress, securityEmail string, accounts AccountLookup, logger *slog.Logger) (*SESAlertSink, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &SESAlertSink{
		client:        ses.NewFromConfig(cfg),
		accounts:      accounts,
		fromAddress:   fromAddress,
		securityEmail: securityEmail,
		logger:        logger,
	}, nil
}

// SendAlert emails a plain-text summary of the alert
func (s *SESAlertSink) SendAlert(ctx context.Context, accountID *string, kind string, details map[string]any) error {
	recipient := s.recipient(ctx, accountID)
	if recipient == "" {
		s.logger.Debug("no recipient for security alert, skipping email", slog.String("kind", kind))
		return nil
	}

	input := &ses.SendEmailInput{
		Source: aws.String(s.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{recipient},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data: aws.String(alertSubject(kind)),
			},
			Body: &types.Body{
				Text: &types.Content{
					Data: aws.String(alertBody(kind, details)),
				},
			},
		},
	}

	result, err := s.client.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to send alert email: %w", err)
	}

	messageID := ""
	if result != nil && result.MessageId != nil {
		messageID = *result.MessageId
	}
	s.logger.Info("security alert emailed",
		slog.String("kind", kind),
		slog.String("message_id", messageID))

	return nil
}

func (s *SESAlertSink) recipient(ctx context.Context, accountID *string) string {
	if accountID == nil || s.accounts == nil {
		return s.securityEmail
	}

	user, err := s.accounts.GetByID(ctx, *accountID)
	if err != nil {
		s.logger.Warn("alert account lookup failed, using security mailbox",
			slog.String("account_id", *accountID),
			slog.Any("error", err))
		return s.securityEmail
	}
	return user.Email
}

func alertSubject(kind string) string {
	return "Security alert: " + strings.ReplaceAll(kind, "_", " ")
}

func alertBody(kind string, details map[string]any) string {
	keys := make([]string, 0, len(details))
	for k := range details {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	fmt.Fprintf(&b, "Unusual sign-in activity was detected (%s).\n\n", strings.ReplaceAll(kind, "_", " "))
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %v\n", k, details[k])
	}
	b.WriteString("\nIf this was not you, contact your administrator.\n")
	return b.String()
}

// EventPublisher publishes an event to a message broker
type EventPublisher interface {
	Publish(ctx context.Context, key string, event any) error
}

// SecurityAlertEvent is the broker payload for a security alert
type SecurityAlertEvent struct {
	Type       string         `json:"type"`
	Kind       string         `json:"kind"`
	AccountID  *string        `json:"account_id,omitempty"`
	Details    map[string]any `json:"details"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// KafkaAlertSink publishes alerts as security_alert events
type KafkaAlertSink struct {
	publisher EventPublisher
	now       func() time.Time
}

// NewKafkaAlertSink creates a new KafkaAlertSink
func NewKafkaAlertSink(publisher EventPublisher) *KafkaAlertSink {
	return &KafkaAlertSink{publisher: publisher, now: time.Now}
}

// SendAlert publishes the alert keyed by account so events for one account stay ordered
func (s *KafkaAlertSink) SendAlert(ctx context.Context, accountID *string, kind string, details map[string]any) error {
	key := kind
	if accountID != nil {
		key = *accountID
	}

	event := SecurityAlertEvent{
		Type:       "security_alert",
		Kind:       kind,
		AccountID:  accountID,
		Details:    details,
		OccurredAt: s.now().UTC(),
	}
	return s.publisher.Publish(ctx, key, event)
}

// MultiAlertSink fans an alert out to every sink. All sinks are attempted.
type MultiAlertSink []AlertSink

// SendAlert returns ErrAlertDeliveryFailed joined with every sink error, or nil
func (m MultiAlertSink) SendAlert(ctx context.Context, accountID *string, kind string, details map[string]any) error {
	var errs []error
	for _, sink := range m {
		if err := sink.SendAlert(ctx, accountID, kind, details); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", models.ErrAlertDeliveryFailed, errors.Join(errs...))
}
