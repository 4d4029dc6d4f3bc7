package clientip_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/clientip"
)

func TestResolverIP(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		headers []string
		set     map[string]string
		remote  string
		want    string
	}{
		{name: "remote addr", remote: "10.0.0.1:5555", want: "10.0.0.1"},
		{
			name:   "untrusted headers ignored",
			set:    map[string]string{"X-Forwarded-For": "1.2.3.4"},
			remote: "10.0.0.1:5555",
			want:   "10.0.0.1",
		},
		{
			name:    "first valid forwarded entry",
			headers: clientip.DefaultHeaders,
			set:     map[string]string{"X-Forwarded-For": "garbage, 203.0.113.7, 10.0.0.2"},
			remote:  "10.0.0.1:5555",
			want:    "203.0.113.7",
		},
		{
			name:    "header priority",
			headers: clientip.DefaultHeaders,
			set:     map[string]string{"CF-Connecting-IP": "198.51.100.1", "X-Real-IP": "198.51.100.2"},
			remote:  "10.0.0.1:5555",
			want:    "198.51.100.1",
		},
		{
			name:    "ipv6 normalized",
			headers: []string{"X-Real-IP"},
			set:     map[string]string{"X-Real-IP": "2001:DB8:0:0:0:0:0:1"},
			want:    "2001:db8::1",
		},
		{name: "invalid remote", remote: "not-an-ip", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.set {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, clientip.New(tt.headers...).IP(r))
		})
	}
}

func TestMiddleware(t *testing.T) {
	t.Parallel()

	var got string
	h := clientip.New().Middleware(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got = clientip.FromContext(r.Context())
	}))
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "192.0.2.10:1234"
	h.ServeHTTP(httptest.NewRecorder(), r)
	assert.Equal(t, "192.0.2.10", got)

	attr, ok := clientip.LoggerExtractor()(clientip.WithContext(context.Background(), got))
	assert.True(t, ok)
	assert.Equal(t, "client_ip", attr.Key)

	_, ok = clientip.LoggerExtractor()(context.Background())
	assert.False(t, ok)
}
