package models

import (
	"fmt"
	"strings"
)

// Severity is the ordered severity of a detected anomaly.
// The zero value is SeverityNone and never appears on a persisted anomaly.
type Severity int

const (
	SeverityNone Severity = iota
	SeverityLow
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

var severityNames = map[Severity]string{
	SeverityNone:     "none",
	SeverityLow:      "low",
	SeverityMedium:   "medium",
	SeverityHigh:     "high",
	SeverityCritical: "critical",
}

func (s Severity) String() string {
	if name, ok := severityNames[s]; ok {
		return name
	}
	return fmt.Sprintf("severity(%d)", int(s))
}

// ParseSeverity converts a stored or user-supplied label into a Severity
func ParseSeverity(value string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "low":
		return SeverityLow, nil
	case "medium":
		return SeverityMedium, nil
	case "high":
		return SeverityHigh, nil
	case "critical":
		return SeverityCritical, nil
	}
	return SeverityNone, fmt.Errorf("%w: unknown severity %q", ErrBadRequest, value)
}

// MarshalText implements encoding.TextMarshaler so severities serialize as labels
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. It accepts "none" so that every
// value MarshalText produces reads back, while ParseSeverity keeps rejecting it for filters.
func (s *Severity) UnmarshalText(text []byte) error {
	if strings.EqualFold(strings.TrimSpace(string(text)), severityNames[SeverityNone]) {
		*s = SeverityNone
		return nil
	}
	parsed, err := ParseSeverity(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// MaxSeverity returns the highest severity in the list, SeverityNone for an empty list
func MaxSeverity(severities ...Severity) Severity {
	highest := SeverityNone
	for _, s := range severities {
		if s > highest {
			highest = s
		}
	}
	return highest
}
