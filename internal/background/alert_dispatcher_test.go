package background

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/freightdesk/sentinel/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type blockingSender struct {
	mu      sync.Mutex
	release chan struct{}
	kinds   []string
	ctxErrs []error
	err     error
}

func (s *blockingSender) SendAlert(ctx context.Context, _ *string, kind string, _ map[string]any) error {
	if s.release != nil {
		<-s.release
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kinds = append(s.kinds, kind)
	s.ctxErrs = append(s.ctxErrs, ctx.Err())
	return s.err
}

func (s *blockingSender) delivered() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.kinds...)
}

func TestAlertDispatcher_SendDoesNotWaitForDelivery(t *testing.T) {
	sender := &blockingSender{release: make(chan struct{})}
	d := NewAlertDispatcher(sender, 1, 4, time.Second, discardLogger())

	start := time.Now()
	require.NoError(t, d.SendAlert(context.Background(), nil, models.AnomalyTypePasswordSpray, nil))
	assert.Less(t, time.Since(start), 100*time.Millisecond)
	assert.Empty(t, sender.delivered())

	close(sender.release)
	d.Close()

	assert.Equal(t, []string{models.AnomalyTypePasswordSpray}, sender.delivered())
}

func TestAlertDispatcher_DeliveryOutlivesRequestContext(t *testing.T) {
	sender := &blockingSender{}
	d := NewAlertDispatcher(sender, 1, 4, time.Second, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, d.SendAlert(ctx, nil, models.AnomalyTypeRapidRetry, nil))
	cancel()
	d.Close()

	require.Len(t, sender.ctxErrs, 1)
	assert.NoError(t, sender.ctxErrs[0])
}

func TestAlertDispatcher_FullQueueDropsAlert(t *testing.T) {
	sender := &blockingSender{release: make(chan struct{})}
	d := NewAlertDispatcher(sender, 1, 1, time.Second, discardLogger())

	// the worker holds one alert and the queue holds the next
	require.NoError(t, d.SendAlert(context.Background(), nil, "first", nil))
	require.Eventually(t, func() bool { return len(d.queue) == 0 }, time.Second, time.Millisecond)
	require.NoError(t, d.SendAlert(context.Background(), nil, "second", nil))

	err := d.SendAlert(context.Background(), nil, "third", nil)
	assert.ErrorIs(t, err, models.ErrAlertDeliveryFailed)

	close(sender.release)
	d.Close()
	assert.Equal(t, []string{"first", "second"}, sender.delivered())
}

func TestAlertDispatcher_ClosedRejectsAndSenderErrorsAreLogged(t *testing.T) {
	sender := &blockingSender{err: errors.New("ses throttled")}
	d := NewAlertDispatcher(sender, 2, 4, time.Second, discardLogger())

	require.NoError(t, d.SendAlert(context.Background(), nil, "kind", nil))
	d.Close()
	d.Close()

	assert.Equal(t, []string{"kind"}, sender.delivered())
	assert.ErrorIs(t, d.SendAlert(context.Background(), nil, "late", nil), models.ErrAlertDeliveryFailed)
}
