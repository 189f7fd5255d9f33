package logger

import (
	"net/url"
	"strings"
)

var sensitiveQueryKeys = []string{"password", "token", "secret", "key", "email", "identifier", "auth"}

// SanitizedEmail masks an email address for logging, e.g. "a****@*******.com"
func SanitizedEmail(email string) string {
	local, domain, ok := strings.Cut(email, "@")
	if !ok || strings.Contains(domain, "@") {
		return "[invalid-email]"
	}

	if len(local) > 1 {
		local = local[:1] + strings.Repeat("*", len(local)-1)
	}

	labels := strings.Split(domain, ".")
	for i := 0; i < len(labels)-1; i++ {
		labels[i] = strings.Repeat("*", len(labels[i]))
	}

	return local + "@" + strings.Join(labels, ".")
}

// SanitizedIdentifier masks whatever a caller typed at login. Emails keep their TLD,
// login names keep their first character.
func SanitizedIdentifier(identifier string) string {
	if strings.Contains(identifier, "@") {
		return SanitizedEmail(identifier)
	}
	if len(identifier) <= 1 {
		return strings.Repeat("*", len(identifier))
	}
	return identifier[:1] + strings.Repeat("*", len(identifier)-1)
}

// SanitizeQueryString reports whether a query string carries a credential or personal
// value and must be redacted from access logs. Unparseable queries are redacted.
func SanitizeQueryString(rawQuery string) bool {
	if rawQuery == "" {
		return false
	}
	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		return true
	}
	for name := range values {
		name = strings.ToLower(name)
		for _, sensitive := range sensitiveQueryKeys {
			if strings.Contains(name, sensitive) {
				return true
			}
		}
	}
	return false
}
