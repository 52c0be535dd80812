package app

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"

	"engagement-rewards/internal/core/ports"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// post is safe to call from worker goroutines: it reports failures as a
// zero status instead of calling require.
func (h *harness) post(path, token string, body interface{}) (int, string) {
	raw, err := json.Marshal(body)
	if err != nil {
		return 0, ""
	}
	req, err := http.NewRequest(http.MethodPost, h.srv.URL+path, bytes.NewReader(raw))
	if err != nil {
		return 0, ""
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, ""
	}
	defer resp.Body.Close()

	var out struct {
		ErrorCode string `json:"error_code"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out.ErrorCode
}

// TestConcurrentWithdrawals_NeverOverdraw fires more withdrawals than the
// balance can cover and checks the user lock serializes the reservations.
func TestConcurrentWithdrawals_NeverOverdraw(t *testing.T) {
	cfg := testConfig(t)
	cfg.Withdrawal.Minimum = "30.00"
	prints := images{}
	for i := 0; i < 5; i++ {
		prints[fmt.Sprintf("https://cdn.test/%d.png", i)] = fmt.Sprintf("%016x", uint64(0xff)<<(8*uint(i)))
	}
	h := newHarness(t, cfg, prints)
	user := h.token(uuid.New(), ports.RoleUser)

	for i := 0; i < 5; i++ {
		r := h.submit(user, "facebook", fmt.Sprintf("https://cdn.test/%d.png", i))
		require.Equal(t, http.StatusCreated, r.status, r.body)
	}
	require.Equal(t, "150.00", h.earnings(user)["available_balance"])

	concurrency := 20
	var wg sync.WaitGroup
	var created, declined, other atomic.Int64

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			status, code := h.post("/api/v1/withdrawals", user, map[string]string{
				"amount":         "30.00",
				"account_name":   "Jane Doe",
				"account_number": "0123456789",
				"bank_name":      "First Bank",
			})
			switch {
			case status == http.StatusCreated:
				created.Add(1)
			case status == http.StatusPaymentRequired && code == "WDR_001":
				declined.Add(1)
			default:
				other.Add(1)
			}
		}()
	}
	wg.Wait()

	t.Logf("Concurrent withdrawals: %d created, %d declined, %d other (out of %d)",
		created.Load(), declined.Load(), other.Load(), concurrency)

	assert.Equal(t, int64(5), created.Load())
	assert.Equal(t, int64(concurrency-5), declined.Load())
	assert.Zero(t, other.Load())

	bal := h.earnings(user)
	assert.Equal(t, "0.00", bal["available_balance"])
	assert.Equal(t, "150.00", bal["pending_withdrawal"])
	assert.Equal(t, "150.00", bal["total_earned"])
}

// TestConcurrentSubmissions_SameScreenshot races identical screenshots from
// one user; only one may be credited.
func TestConcurrentSubmissions_SameScreenshot(t *testing.T) {
	h := newHarness(t, testConfig(t), images{"https://cdn.test/same.png": "c3c3c3c3c3c3c3c3"})
	user := h.token(uuid.New(), ports.RoleUser)

	concurrency := 10
	var wg sync.WaitGroup
	var created, duplicate, other atomic.Int64

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			status, code := h.post("/api/v1/submissions", user, map[string]string{
				"platform":       "facebook",
				"screenshot_url": "https://cdn.test/same.png",
			})
			switch {
			case status == http.StatusCreated:
				created.Add(1)
			case status == http.StatusConflict && code == "SUB_001":
				duplicate.Add(1)
			default:
				other.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), created.Load())
	assert.Equal(t, int64(concurrency-1), duplicate.Load())
	assert.Zero(t, other.Load())
	assert.Equal(t, "30.00", h.earnings(user)["total_earned"])
}
