package services

import (
	"testing"
	"time"

	"github.com/freightdesk/sentinel/internal/models"
	"github.com/stretchr/testify/assert"
)

func attemptsAt(offsets ...time.Duration) []models.LoginAttempt {
	out := make([]models.LoginAttempt, 0, len(offsets))
	for _, o := range offsets {
		out = append(out, models.LoginAttempt{IPAddress: "10.0.0.1", AttemptTime: testNow.Add(o)})
	}
	return out
}

func TestAdjacentGaps_SortsBeforeMeasuring(t *testing.T) {
	gaps := adjacentGaps(attemptsAt(3*time.Second, 0, time.Second))

	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, gaps)
	assert.Nil(t, adjacentGaps(attemptsAt(0)))
}

func TestAverageAndMinimumGap(t *testing.T) {
	gaps := []time.Duration{500 * time.Millisecond, 1500 * time.Millisecond, time.Second}

	assert.Equal(t, time.Second, averageGap(gaps))
	minGap, ok := minimumGap(gaps)
	assert.True(t, ok)
	assert.Equal(t, 500*time.Millisecond, minGap)

	_, ok = minimumGap(nil)
	assert.False(t, ok)
	assert.Zero(t, averageGap(nil))
}

func TestDistinctValues_SkipsEmpty(t *testing.T) {
	attempts := []models.LoginAttempt{
		{Identifier: "bob"}, {Identifier: ""}, {Identifier: "alice"}, {Identifier: "bob"},
	}

	got := distinctValues(attempts, func(a models.LoginAttempt) string { return a.Identifier })
	assert.Equal(t, []string{"alice", "bob"}, got)
}

func TestClassifyRapidSuccession(t *testing.T) {
	tests := []struct {
		name  string
		count int
		avg   time.Duration
		want  models.Severity
	}{
		{"too few attempts", 2, 10 * time.Millisecond, models.SeverityNone},
		{"sub-second gap", 3, 999 * time.Millisecond, models.SeverityHigh},
		{"one second gap", 3, time.Second, models.SeverityMedium},
		{"just under two seconds", 4, 1999 * time.Millisecond, models.SeverityMedium},
		{"two seconds", 4, 2 * time.Second, models.SeverityNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classifyRapidSuccession(tt.count, tt.avg))
		})
	}
}

func TestClassifyDistributed(t *testing.T) {
	tests := []struct {
		name  string
		count int
		ips   int
		want  models.Severity
	}{
		{"four attempts", 4, 4, models.SeverityNone},
		{"two ips", 6, 2, models.SeverityNone},
		{"three ips", 5, 3, models.SeverityHigh},
		{"four ips", 5, 4, models.SeverityHigh},
		{"five ips", 5, 5, models.SeverityCritical},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classifyDistributed(tt.count, tt.ips))
		})
	}
}

func TestClassifySpray(t *testing.T) {
	tests := []struct {
		name        string
		count       int
		identifiers int
		want        models.Severity
	}{
		{"four attempts", 4, 4, models.SeverityNone},
		{"two identifiers", 9, 2, models.SeverityNone},
		{"three identifiers", 5, 3, models.SeverityMedium},
		{"five identifiers", 7, 5, models.SeverityHigh},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classifySpray(tt.count, tt.identifiers))
		})
	}
}

func TestClassifyAccountRetry(t *testing.T) {
	slow := 3 * time.Second
	tests := []struct {
		name          string
		count         int
		minGap        time.Duration
		hasGap        bool
		wantSeverity  models.Severity
		wantScore     float64
		wantAutomated bool
	}{
		{"two attempts", 2, slow, true, models.SeverityNone, 0, false},
		{"three attempts", 3, slow, true, models.SeverityMedium, 0.5, false},
		{"three fast attempts stay medium", 3, 100 * time.Millisecond, true, models.SeverityMedium, 0.5, false},
		{"four attempts", 4, slow, true, models.SeverityMedium, 0.5, false},
		{"five attempts", 5, slow, true, models.SeverityHigh, 0.7, false},
		{"seven attempts", 7, slow, true, models.SeverityHigh, 0.7, false},
		{"eight attempts", 8, slow, true, models.SeverityCritical, 0.9, false},
		{"four fast attempts override", 4, 500 * time.Millisecond, true, models.SeverityCritical, 0.95, true},
		{"gap of exactly two seconds", 5, 2 * time.Second, true, models.SeverityHigh, 0.7, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			severity, score, automated := classifyAccountRetry(tt.count, tt.minGap, tt.hasGap)
			assert.Equal(t, tt.wantSeverity, severity)
			assert.InDelta(t, tt.wantScore, score, 1e-9)
			assert.Equal(t, tt.wantAutomated, automated)
		})
	}
}
