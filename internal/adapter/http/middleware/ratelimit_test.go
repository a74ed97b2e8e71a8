package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_Limit(t *testing.T) {
	limited := 0
	rl := NewRateLimiter(1, 2, func() { limited++ })

	handler := rl.Limit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(remote string, caller *Caller) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = remote
		if caller != nil {
			req = req.WithContext(WithCaller(req.Context(), caller))
		}
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr.Code
	}

	assert.Equal(t, http.StatusOK, send("10.0.0.1:1234", nil))
	assert.Equal(t, http.StatusOK, send("10.0.0.1:5678", nil))
	assert.Equal(t, http.StatusTooManyRequests, send("10.0.0.1:9999", nil))
	assert.Equal(t, 1, limited)

	// Other clients have their own budget.
	assert.Equal(t, http.StatusOK, send("10.0.0.2:1234", nil))
	assert.Equal(t, http.StatusOK, send("10.0.0.1:1234", &Caller{AccountID: "alice"}))
}

func TestRateLimiter_CleanupLimiters(t *testing.T) {
	rl := NewRateLimiter(10, 10, nil)

	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	rl.getLimiter("ip:old")

	now = now.Add(10 * time.Minute)
	rl.getLimiter("ip:new")

	removed := rl.CleanupLimiters(5 * time.Minute)

	assert.Equal(t, 1, removed)
	assert.Contains(t, rl.visitors, "ip:new")
	assert.NotContains(t, rl.visitors, "ip:old")
}

func TestGetIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{name: "forwarded chain", headers: map[string]string{"X-Forwarded-For": "1.1.1.1, 2.2.2.2"}, remote: "3.3.3.3:1", want: "1.1.1.1"},
		{name: "real ip", headers: map[string]string{"X-Real-IP": "4.4.4.4"}, remote: "3.3.3.3:1", want: "4.4.4.4"},
		{name: "remote addr", remote: "5.5.5.5:4321", want: "5.5.5.5"},
		{name: "remote without port", remote: "6.6.6.6", want: "6.6.6.6"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, getIP(req))
		})
	}
}
