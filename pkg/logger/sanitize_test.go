package logger

import "testing"

func TestSanitizedIdentifier(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"alice@example.com", "a****@*******.com"},
		{"dispatcher7", "d**********"},
		{"x", "*"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := SanitizedIdentifier(tt.in); got != tt.want {
			t.Errorf("SanitizedIdentifier(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSanitizeQueryString(t *testing.T) {
	if !SanitizeQueryString("identifier=alice") {
		t.Error("expected identifier query to be redacted")
	}
	if SanitizeQueryString("severity=critical&limit=10") {
		t.Error("expected review filters to be logged as-is")
	}
}

func TestSanitizeQueryString_MatchesKeysOnly(t *testing.T) {
	if SanitizeQueryString("status=password_spray") {
		t.Error("values must not trigger redaction")
	}
	if !SanitizeQueryString("access_token=abc") {
		t.Error("expected token key to be redacted")
	}
	if !SanitizeQueryString("%zz") {
		t.Error("expected unparseable query to be redacted")
	}
}
