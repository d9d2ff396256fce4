// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/danielhkuo/coinpoll/auth"
	"github.com/danielhkuo/coinpoll/models"
	"github.com/danielhkuo/coinpoll/session"
)

const testWallet = "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU"

func TestWithLogging(t *testing.T) {
	handlerCalled := false
	testHandler := func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("success"))
	}

	wrappedHandler := WithLogging(testHandler)

	req := httptest.NewRequest("GET", "/test-path", nil)
	w := httptest.NewRecorder()

	wrappedHandler(w, req)

	if !handlerCalled {
		t.Error("Expected handler to be called")
	}
	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	if w.Body.String() != "success" {
		t.Errorf("Expected body 'success', got '%s'", w.Body.String())
	}
}

func TestWithLogging_PreservesResponse(t *testing.T) {
	testCases := []struct {
		name       string
		statusCode int
		body       string
	}{
		{"OK", http.StatusOK, "ok"},
		{"Created", http.StatusCreated, `{"id":"123"}`},
		{"BadRequest", http.StatusBadRequest, `{"error":"bad request"}`},
		{"NotFound", http.StatusNotFound, "not found"},
		{"InternalError", http.StatusInternalServerError, "error"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			handler := WithLogging(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.statusCode)
				w.Write([]byte(tc.body))
			})

			req := httptest.NewRequest("POST", "/api/test", nil)
			w := httptest.NewRecorder()

			handler(w, req)

			if w.Code != tc.statusCode {
				t.Errorf("Expected status %d, got %d", tc.statusCode, w.Code)
			}
			if w.Body.String() != tc.body {
				t.Errorf("Expected body '%s', got '%s'", tc.body, w.Body.String())
			}
		})
	}
}

func TestJSONResponse(t *testing.T) {
	testCases := []struct {
		name       string
		statusCode int
		data       interface{}
		expected   string
	}{
		{
			name:       "simple struct",
			statusCode: http.StatusOK,
			data:       map[string]string{"message": "hello"},
			expected:   `{"message":"hello"}`,
		},
		{
			name:       "claim response",
			statusCode: http.StatusOK,
			data:       models.ClaimRewardResponse{PollID: "abc123", Reward: 55_500_000},
			expected:   `{"poll_id":"abc123","reward_lamports":55500000}`,
		},
		{
			name:       "error response",
			statusCode: http.StatusBadRequest,
			data:       models.ErrorResponse{Error: "Bad Request", Message: "missing field"},
			expected:   `{"error":"Bad Request","message":"missing field"}`,
		},
		{
			name:       "array data",
			statusCode: http.StatusOK,
			data:       []string{"a", "b", "c"},
			expected:   `["a","b","c"]`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()

			JSONResponse(w, tc.statusCode, tc.data)

			if w.Code != tc.statusCode {
				t.Errorf("Expected status %d, got %d", tc.statusCode, w.Code)
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Expected Content-Type 'application/json', got '%s'", ct)
			}

			// Encode appends a newline
			body := strings.TrimSpace(w.Body.String())
			if body != tc.expected {
				t.Errorf("Expected body '%s', got '%s'", tc.expected, body)
			}
		})
	}
}

func TestErrorResponse(t *testing.T) {
	testCases := []struct {
		name          string
		statusCode    int
		message       string
		expectedError string
	}{
		{"bad request", http.StatusBadRequest, "title is required", "Bad Request"},
		{"unauthorized", http.StatusUnauthorized, "no wallet connected", "Unauthorized"},
		{"not found", http.StatusNotFound, "poll not found", "Not Found"},
		{"conflict", http.StatusConflict, "poll already settled", "Conflict"},
		{"bad gateway", http.StatusBadGateway, "network error", "Bad Gateway"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()

			ErrorResponse(w, tc.statusCode, tc.message)

			if w.Code != tc.statusCode {
				t.Errorf("Expected status %d, got %d", tc.statusCode, w.Code)
			}
			if w.Header().Get("Content-Type") != "application/json" {
				t.Error("Expected Content-Type 'application/json'")
			}

			var resp models.ErrorResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("Failed to decode error response: %v", err)
			}
			if resp.Error != tc.expectedError {
				t.Errorf("Expected error '%s', got '%s'", tc.expectedError, resp.Error)
			}
			if resp.Message != tc.message {
				t.Errorf("Expected message '%s', got '%s'", tc.message, resp.Message)
			}
		})
	}
}

func TestParseJSONBody(t *testing.T) {
	t.Run("valid JSON", func(t *testing.T) {
		body := `{"title":"Test Poll","options":["Yes","No"],"unit_price_lamports":10000000}`
		req := httptest.NewRequest("POST", "/", strings.NewReader(body))

		var parsed models.PollDraft
		if err := ParseJSONBody(req, &parsed); err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		if parsed.Title != "Test Poll" || len(parsed.Options) != 2 || parsed.UnitPrice != 10_000_000 {
			t.Errorf("Unexpected draft: %+v", parsed)
		}
	})

	t.Run("invalid JSON", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/", strings.NewReader(`{invalid json}`))

		var parsed models.PollDraft
		if err := ParseJSONBody(req, &parsed); err == nil {
			t.Error("Expected error for invalid JSON")
		}
	})

	t.Run("empty body", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/", strings.NewReader(""))

		var parsed models.PollDraft
		if err := ParseJSONBody(req, &parsed); err == nil {
			t.Error("Expected error for empty body")
		}
	})

	t.Run("extra fields ignored", func(t *testing.T) {
		body := `{"option":1,"coins":3,"unknown_field":"ignored"}`
		req := httptest.NewRequest("POST", "/", strings.NewReader(body))

		var parsed models.CastVoteRequest
		if err := ParseJSONBody(req, &parsed); err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		if parsed.Option != 1 || parsed.Coins != 3 {
			t.Errorf("Unexpected request: %+v", parsed)
		}
	})

	t.Run("body is consumed after parsing", func(t *testing.T) {
		bodyReader := io.NopCloser(bytes.NewReader([]byte(`{"coins":1}`)))
		req := httptest.NewRequest("POST", "/", bodyReader)

		var parsed models.CastVoteRequest
		_ = ParseJSONBody(req, &parsed)

		remaining, _ := io.ReadAll(req.Body)
		if len(remaining) > 0 {
			t.Error("Expected body to be consumed/closed")
		}
	})
}

func TestCORS(t *testing.T) {
	nextHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("handled"))
	})

	corsHandler := CORS(nextHandler)

	t.Run("preflight OPTIONS request", func(t *testing.T) {
		req := httptest.NewRequest("OPTIONS", "/polls", nil)
		req.Header.Set("Origin", "http://localhost:5173")
		w := httptest.NewRecorder()

		corsHandler.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("Expected status 200, got %d", w.Code)
		}
		if w.Body.String() != "" {
			t.Errorf("Expected empty body for preflight, got '%s'", w.Body.String())
		}
		if w.Header().Get("Access-Control-Allow-Origin") != "http://localhost:5173" {
			t.Error("Expected Access-Control-Allow-Origin to match request origin")
		}
	})

	t.Run("request without origin defaults to wildcard", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/polls", nil)
		w := httptest.NewRecorder()

		corsHandler.ServeHTTP(w, req)

		if w.Body.String() != "handled" {
			t.Error("Expected next handler to be called")
		}
		if w.Header().Get("Access-Control-Allow-Origin") != "*" {
			t.Error("Expected Access-Control-Allow-Origin to default to '*'")
		}
	})

	t.Run("allows identity headers and methods", func(t *testing.T) {
		req := httptest.NewRequest("OPTIONS", "/polls", nil)
		w := httptest.NewRecorder()

		corsHandler.ServeHTTP(w, req)

		allowedHeaders := w.Header().Get("Access-Control-Allow-Headers")
		for _, h := range []string{"Content-Type", WalletHeader, AdminKeyHeader} {
			if !strings.Contains(allowedHeaders, h) {
				t.Errorf("Expected %s in allowed headers", h)
			}
		}
		allowedMethods := w.Header().Get("Access-Control-Allow-Methods")
		for _, m := range []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"} {
			if !strings.Contains(allowedMethods, m) {
				t.Errorf("Expected %s in allowed methods", m)
			}
		}
	})
}

func TestIsAdmin(t *testing.T) {
	const salt = "test-admin-salt"
	key := auth.GenerateAdminKey(testWallet, salt)

	testCases := []struct {
		name   string
		wallet string
		key    string
		want   bool
	}{
		{"valid key", testWallet, key, true},
		{"padded wallet", "  " + testWallet + " ", key, true},
		{"wrong key", testWallet, "not-the-key", false},
		{"no key", testWallet, "", false},
		{"no wallet", "", key, false},
		{"key for other wallet", "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM", key, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/polls/p1/settle", nil)
			req.Header.Set(WalletHeader, tc.wallet)
			req.Header.Set(AdminKeyHeader, tc.key)

			if got := IsAdmin(req, salt); got != tc.want {
				t.Errorf("IsAdmin() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestRequireSession(t *testing.T) {
	sess := session.New()
	handler := RequireSession(sess, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	call := func(wallet string) int {
		req := httptest.NewRequest("POST", "/polls", nil)
		if wallet != "" {
			req.Header.Set(WalletHeader, wallet)
		}
		w := httptest.NewRecorder()
		handler(w, req)
		return w.Code
	}

	if got := call(testWallet); got != http.StatusUnauthorized {
		t.Errorf("without session: status %d, want 401", got)
	}

	if err := sess.Connect(testWallet); err != nil {
		t.Fatal(err)
	}
	if got := call(testWallet); got != http.StatusNoContent {
		t.Errorf("matching wallet: status %d, want 204", got)
	}
	if got := call("9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM"); got != http.StatusForbidden {
		t.Errorf("other wallet: status %d, want 403", got)
	}
	if got := call(""); got != http.StatusForbidden {
		t.Errorf("missing header: status %d, want 403", got)
	}
}

func TestGetClientIP(t *testing.T) {
	testCases := []struct {
		name       string
		headers    map[string]string
		remoteAddr string
		expectedIP string
	}{
		{"X-Forwarded-For single IP", map[string]string{"X-Forwarded-For": "192.168.1.100"}, "10.0.0.1:12345", "192.168.1.100"},
		{"X-Forwarded-For chain", map[string]string{"X-Forwarded-For": "203.0.113.195, 70.41.3.18"}, "127.0.0.1:12345", "203.0.113.195"},
		{"X-Real-IP", map[string]string{"X-Real-IP": "203.0.113.50"}, "10.0.0.1:12345", "203.0.113.50"},
		{"X-Forwarded-For over X-Real-IP", map[string]string{"X-Forwarded-For": "192.168.1.100", "X-Real-IP": "203.0.113.50"}, "10.0.0.1:12345", "192.168.1.100"},
		{"RemoteAddr with port", map[string]string{}, "192.168.1.50:54321", "192.168.1.50"},
		{"RemoteAddr without port", map[string]string{}, "192.168.1.50", "192.168.1.50"},
		{"IPv6 RemoteAddr with port", map[string]string{}, "[::1]:12345", "[::1]"},
		{"IPv6 in X-Forwarded-For", map[string]string{"X-Forwarded-For": "2001:db8::1"}, "127.0.0.1:12345", "2001:db8::1"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tc.remoteAddr
			for k, v := range tc.headers {
				req.Header.Set(k, v)
			}

			if result := GetClientIP(req); result != tc.expectedIP {
				t.Errorf("Expected IP '%s', got '%s'", tc.expectedIP, result)
			}
		})
	}
}
