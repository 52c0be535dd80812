package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"engagement-rewards/internal/adapter/http/middleware"
	redisStore "engagement-rewards/internal/adapter/storage/redis"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newThrottle(t *testing.T) (*redisStore.RateLimitStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return redisStore.NewRateLimitStore(client), mr
}

// throttledRouter serves GET /limited behind a 3-per-minute rule. The
// X-Test-User header, when it holds a UUID, plays the authenticated caller.
func throttledRouter(store middleware.Throttle) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	asUser := func(c *gin.Context) {
		if id, err := uuid.Parse(c.GetHeader("X-Test-User")); err == nil {
			c.Set(middleware.CtxUserID, id)
		}
	}
	rule := middleware.RateLimitRule{Limit: 3, Window: time.Minute}
	r.GET("/limited", asUser, middleware.RateLimiter(store, "test", rule, zerolog.Nop()), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func hit(r http.Handler, user string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/limited", nil)
	if user != "" {
		req.Header.Set("X-Test-User", user)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimiter_CountsDownThenBlocks(t *testing.T) {
	store, _ := newThrottle(t)
	r := throttledRouter(store)

	for i := 1; i <= 3; i++ {
		w := hit(r, "")
		require.Equal(t, http.StatusNoContent, w.Code, "request %d", i)
		assert.Equal(t, "3", w.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, strconv.Itoa(3-i), w.Header().Get("X-RateLimit-Remaining"))
		assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))
	}

	w := hit(r, "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "RATE_001")
	retry, err := strconv.Atoi(w.Header().Get("Retry-After"))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, retry, 1)
}

func TestRateLimiter_SeparateCountersPerUser(t *testing.T) {
	store, _ := newThrottle(t)
	r := throttledRouter(store)
	userA, userB := uuid.NewString(), uuid.NewString()

	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusNoContent, hit(r, userA).Code)
	}
	assert.Equal(t, http.StatusTooManyRequests, hit(r, userA).Code)

	// Same client IP, different user.
	assert.Equal(t, http.StatusNoContent, hit(r, userB).Code)
	// Anonymous callers from that IP have their own counter too.
	assert.Equal(t, http.StatusNoContent, hit(r, "").Code)
}

func TestRateLimiter_StoreDownLetsRequestsThrough(t *testing.T) {
	store, mr := newThrottle(t)
	r := throttledRouter(store)
	mr.Close()

	w := hit(r, "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Header().Get("X-RateLimit-Limit"))
}

func TestDefaultRateLimitRules(t *testing.T) {
	want := map[string]int64{
		"submissions": 30,
		"videos":      30,
		"withdrawals": 10,
		"read":        120,
		"admin":       300,
		"ws":          20,
	}
	rules := middleware.DefaultRateLimitRules()
	require.Len(t, rules, len(want))
	for group, limit := range want {
		assert.Equal(t, limit, rules[group].Limit, group)
		assert.Equal(t, time.Minute, rules[group].Window, group)
	}
}
