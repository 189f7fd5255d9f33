package http_test

import (
	"net/http/httptest"
	"testing"

	pkghttp "github.com/freightdesk/sentinel/pkg/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIPConfig_RejectsBadCIDR(t *testing.T) {
	_, err := pkghttp.NewIPConfig([]string{"10.0.0.0/8", "not-a-cidr"})
	assert.Error(t, err)
}

func TestExtractClientIP(t *testing.T) {
	cfg, err := pkghttp.NewIPConfig([]string{"10.0.0.0/8", " 127.0.0.1/32 ", ""})
	require.NoError(t, err)

	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		xRealIP    string
		want       string
	}{
		{
			name:       "direct client ignores spoofed headers",
			remoteAddr: "203.0.113.10:54321",
			xff:        "1.2.3.4",
			xRealIP:    "192.168.1.1",
			want:       "203.0.113.10",
		},
		{
			name:       "trusted proxy uses forwarded client",
			remoteAddr: "10.0.0.5:443",
			xff:        "198.51.100.7",
			want:       "198.51.100.7",
		},
		{
			name:       "client-supplied prefix is skipped",
			remoteAddr: "10.0.0.5:443",
			xff:        "1.2.3.4, 198.51.100.7, 10.0.0.9",
			want:       "198.51.100.7",
		},
		{
			name:       "trusted proxy falls back to X-Real-IP",
			remoteAddr: "127.0.0.1:8080",
			xRealIP:    "198.51.100.8",
			want:       "198.51.100.8",
		},
		{
			name:       "trusted proxy without headers",
			remoteAddr: "10.1.2.3:80",
			want:       "10.1.2.3",
		},
		{
			name:       "remote addr without port",
			remoteAddr: "2001:db8::1",
			want:       "2001:db8::1",
		},
		{
			name:       "unparseable remote addr",
			remoteAddr: "pipe",
			want:       "unknown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/auth/login", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xRealIP != "" {
				req.Header.Set("X-Real-IP", tt.xRealIP)
			}

			assert.Equal(t, tt.want, pkghttp.ExtractClientIP(req, cfg))
		})
	}
}

func TestExtractClientIP_NilConfigTrustsNobody(t *testing.T) {
	req := httptest.NewRequest("POST", "/auth/login", nil)
	req.RemoteAddr = "10.0.0.5:443"
	req.Header.Set("X-Forwarded-For", "1.2.3.4")

	assert.Equal(t, "10.0.0.5", pkghttp.ExtractClientIP(req, nil))
}
