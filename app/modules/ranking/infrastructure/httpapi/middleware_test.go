package rankinghttp

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	rankingjwt "github.com/Black-And-White-Club/photoseason/app/modules/ranking/infrastructure/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
}

func hitFrom(h http.Handler, addr string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = addr
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestLimitByIP(t *testing.T) {
	h := LimitByIP(NewClientLimiter(Limit{Rate: 0, Burst: 1}))(okHandler())

	assert.Equal(t, http.StatusOK, hitFrom(h, "192.0.2.1:1000", nil).Code)
	rec := hitFrom(h, "192.0.2.1:2000", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code, "same IP on another port shares the bucket")
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Equal(t, http.StatusOK, hitFrom(h, "192.0.2.2:1000", nil).Code)
}

func TestLimitByIP_RetryAfterFollowsRate(t *testing.T) {
	h := LimitByIP(NewClientLimiter(Limit{Rate: rate.Every(5 * time.Second), Burst: 1}))(okHandler())

	require.Equal(t, http.StatusOK, hitFrom(h, "192.0.2.1:1000", nil).Code)
	rec := hitFrom(h, "192.0.2.1:1000", nil)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "5", rec.Header().Get("Retry-After"))
}

func TestLimitBySubject(t *testing.T) {
	tokens := rankingjwt.NewProvider(testSecret)
	limiter := NewClientLimiter(Limit{Rate: 0, Burst: 1})
	h := BearerAuth(tokens, rankingjwt.RoleAdmin)(LimitBySubject(limiter)(okHandler()))

	bearer := func(subject string) http.Header {
		tok, err := tokens.GenerateToken(subject, rankingjwt.RoleAdmin, time.Hour)
		require.NoError(t, err)
		return http.Header{"Authorization": {"Bearer " + tok}}
	}

	assert.Equal(t, http.StatusOK, hitFrom(h, "192.0.2.1:1000", bearer("ops")).Code)
	assert.Equal(t, http.StatusTooManyRequests, hitFrom(h, "192.0.2.9:1000", bearer("ops")).Code, "subject is limited across IPs")
	assert.Equal(t, http.StatusOK, hitFrom(h, "192.0.2.1:1000", bearer("cron")).Code, "other subjects keep their own budget")
}

func TestLimitBySubject_WithoutClaimsUsesIP(t *testing.T) {
	h := LimitBySubject(NewClientLimiter(Limit{Rate: 0, Burst: 1}))(okHandler())

	assert.Equal(t, http.StatusOK, hitFrom(h, "192.0.2.1:1000", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, hitFrom(h, "192.0.2.1:2000", nil).Code)
	assert.Equal(t, http.StatusOK, hitFrom(h, "192.0.2.2:1000", nil).Code)
}

func TestClientLimiter_PrunesIdleClients(t *testing.T) {
	now := time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)
	l := NewClientLimiter(Limit{Rate: rate.Inf, Burst: 1})
	l.now = func() time.Time { return now }

	for i := 0; i <= pruneAbove; i++ {
		require.True(t, l.Allow(strconv.Itoa(i)))
	}
	require.Equal(t, pruneAbove+1, l.Clients())

	now = now.Add(idleAfter + time.Second)
	require.True(t, l.Allow("fresh"))
	assert.Equal(t, 1, l.Clients())
}

func TestNewRouteLimits_SeparatesClasses(t *testing.T) {
	limits := NewRouteLimits(Limit{Rate: 0, Burst: 1}, Limit{Rate: 0, Burst: 2})

	assert.True(t, limits.Read.Allow("192.0.2.1"))
	assert.False(t, limits.Read.Allow("192.0.2.1"))
	assert.True(t, limits.Admin.Allow("192.0.2.1"), "admin budget is independent of reads")
	assert.True(t, limits.Admin.Allow("192.0.2.1"))
	assert.False(t, limits.Admin.Allow("192.0.2.1"))
}

func TestBearerAuth(t *testing.T) {
	tokens := rankingjwt.NewProvider(testSecret)
	var seen *rankingjwt.Claims
	h := BearerAuth(tokens, rankingjwt.RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = ClaimsFrom(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	admin, err := tokens.GenerateToken("ops", rankingjwt.RoleAdmin, time.Hour)
	require.NoError(t, err)
	expired, err := tokens.GenerateToken("ops", rankingjwt.RoleAdmin, -time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{name: "missing", header: "", want: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic " + admin, want: http.StatusUnauthorized},
		{name: "expired", header: "Bearer " + expired, want: http.StatusUnauthorized},
		{name: "valid", header: "Bearer " + admin, want: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = nil
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusOK {
				require.NotNil(t, seen)
				assert.Equal(t, "ops", seen.Subject)
			} else {
				assert.Nil(t, seen)
			}
		})
	}
}
