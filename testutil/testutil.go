// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/danielhkuo/coinpoll/cliparse"
	"github.com/danielhkuo/coinpoll/models"
)

// Epoch is the fixed start time of every test Clock.
var Epoch = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

// Clock is a manually advanced clock.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock() *Clock {
	return &Clock{now: Epoch}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// GetTestConfig returns a standard test configuration
func GetTestConfig() cliparse.Config {
	cfg := cliparse.Defaults()
	cfg.DatabaseURL = ":memory:"
	cfg.DatabaseType = "sqlite"
	cfg.AdminKeySalt = "test-admin-salt"
	return cfg
}

// TestPoll returns an active two-option poll created by creator that ends
// a day after Epoch. Amounts match a 100_000_000 lamport investment.
func TestPoll(id, creator string) models.Poll {
	return models.Poll{
		ID:                id,
		Seq:               1,
		Creator:           creator,
		Title:             "Test Poll " + id,
		Category:          "general",
		Options:           []string{"Yes", "No"},
		VoteCounts:        []int64{0, 0},
		UnitPrice:         10_000_000,
		EndTime:           Epoch.Add(24 * time.Hour),
		TotalPool:         98_000_000,
		CreatorInvestment: 100_000_000,
		PlatformFee:       1_000_000,
		CreatorReward:     1_000_000,
		Status:            models.StatusActive,
		WinningOption:     models.NoWinner,
		CreatedAt:         Epoch,
	}
}

// TestUser returns an account holding balance lamports with fresh windows.
func TestUser(wallet string, balance int64) models.UserAccount {
	return models.UserAccount{
		Wallet:         wallet,
		Balance:        balance,
		WeeklyResetAt:  Epoch,
		MonthlyResetAt: Epoch,
	}
}

// MakeRequest creates an HTTP test request
func MakeRequest(method, path string, body interface{}, headers map[string]string) *http.Request {
	var req *http.Request
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(jsonBody))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return req
}

// AssertStatus checks that the response has the expected status code
func AssertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, w.Code, w.Body.String())
	}
}

// AssertJSON decodes the response body into the provided struct
func AssertJSON(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode JSON response: %v", err)
	}
}
