package services

import (
	"sort"
	"time"

	"github.com/freightdesk/sentinel/internal/models"
)

// Detection windows and thresholds
const (
	rapidSuccessionWindow      = 60 * time.Second
	rapidSuccessionMinAttempts = 3
	rapidSuccessionMaxAvgGap   = 2000 * time.Millisecond
	rapidSuccessionHighAvgGap  = 1000 * time.Millisecond

	distributedWindow         = 5 * time.Minute
	distributedMinAttempts    = 5
	distributedMinIPs         = 3
	distributedCriticalIPs    = 5
	sprayWindow               = 15 * time.Minute
	sprayMinAttempts          = 5
	sprayMinIdentifiers       = 3
	sprayHighIdentifiers      = 5
	accountRetryWindow        = 5 * time.Minute
	accountRetryMinAttempts   = 3
	accountRetryHighAttempts  = 5
	accountRetryCritAttempts  = 8
	accountRetryAutomationGap = 2000 * time.Millisecond
)

// Account detector scores
const (
	scoreAccountMedium    = 0.5
	scoreAccountHigh      = 0.7
	scoreAccountCritical  = 0.9
	scoreAccountAutomated = 0.95
)

// adjacentGaps returns the absolute gaps between temporally adjacent attempts
func adjacentGaps(attempts []models.LoginAttempt) []time.Duration {
	if len(attempts) < 2 {
		return nil
	}

	times := make([]time.Time, 0, len(attempts))
	for _, a := range attempts {
		times = append(times, a.AttemptTime)
	}
	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })

	gaps := make([]time.Duration, 0, len(times)-1)
	for i := 1; i < len(times); i++ {
		gap := times[i].Sub(times[i-1])
		if gap < 0 {
			gap = -gap
		}
		gaps = append(gaps, gap)
	}
	return gaps
}

func averageGap(gaps []time.Duration) time.Duration {
	if len(gaps) == 0 {
		return 0
	}
	var total time.Duration
	for _, g := range gaps {
		total += g
	}
	return total / time.Duration(len(gaps))
}

func minimumGap(gaps []time.Duration) (time.Duration, bool) {
	if len(gaps) == 0 {
		return 0, false
	}
	lowest := gaps[0]
	for _, g := range gaps[1:] {
		if g < lowest {
			lowest = g
		}
	}
	return lowest, true
}

// distinctValues returns the sorted set of non-empty values picked from attempts
func distinctValues(attempts []models.LoginAttempt, pick func(models.LoginAttempt) string) []string {
	seen := make(map[string]struct{}, len(attempts))
	values := make([]string, 0)
	for _, a := range attempts {
		v := pick(a)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		values = append(values, v)
	}
	sort.Strings(values)
	return values
}

func classifyRapidSuccession(attemptCount int, avgGap time.Duration) models.Severity {
	if attemptCount < rapidSuccessionMinAttempts || avgGap >= rapidSuccessionMaxAvgGap {
		return models.SeverityNone
	}
	if avgGap < rapidSuccessionHighAvgGap {
		return models.SeverityHigh
	}
	return models.SeverityMedium
}

func classifyDistributed(attemptCount, distinctIPs int) models.Severity {
	if attemptCount < distributedMinAttempts || distinctIPs < distributedMinIPs {
		return models.SeverityNone
	}
	if distinctIPs >= distributedCriticalIPs {
		return models.SeverityCritical
	}
	return models.SeverityHigh
}

func classifySpray(attemptCount, distinctIdentifiers int) models.Severity {
	if attemptCount < sprayMinAttempts || distinctIdentifiers < sprayMinIdentifiers {
		return models.SeverityNone
	}
	if distinctIdentifiers >= sprayHighIdentifiers {
		return models.SeverityHigh
	}
	return models.SeverityMedium
}

// classifyAccountRetry maps an account's attempt count and tightest gap to severity and score.
// A sub-2s gap with more than three attempts overrides the count thresholds.
func classifyAccountRetry(attemptCount int, minGap time.Duration, hasGap bool) (models.Severity, float64, bool) {
	if attemptCount < accountRetryMinAttempts {
		return models.SeverityNone, 0, false
	}

	if hasGap && minGap < accountRetryAutomationGap && attemptCount > accountRetryMinAttempts {
		return models.SeverityCritical, scoreAccountAutomated, true
	}

	switch {
	case attemptCount >= accountRetryCritAttempts:
		return models.SeverityCritical, scoreAccountCritical, false
	case attemptCount >= accountRetryHighAttempts:
		return models.SeverityHigh, scoreAccountHigh, false
	default:
		return models.SeverityMedium, scoreAccountMedium, false
	}
}
