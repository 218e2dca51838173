package httpclient

import (
	"net/http"
	"testing"
	"time"
)

func TestParseRateLimitHeaders(t *testing.T) {
	tests := []struct {
		name     string
		headers  http.Header
		validate func(t *testing.T, info RateLimitInfo)
	}{
		{
			name:    "retry_after_seconds",
			headers: http.Header{"Retry-After": []string{"30"}},
			validate: func(t *testing.T, info RateLimitInfo) {
				if info.RetryAfter != 30*time.Second {
					t.Errorf("RetryAfter = %v, want 30s", info.RetryAfter)
				}
			},
		},
		{
			name: "retry_after_http_date",
			headers: http.Header{
				"Retry-After": []string{time.Now().Add(10 * time.Second).UTC().Format(http.TimeFormat)},
			},
			validate: func(t *testing.T, info RateLimitInfo) {
				if info.RetryAfter < 8*time.Second || info.RetryAfter > 11*time.Second {
					t.Errorf("RetryAfter = %v, want approximately 10s", info.RetryAfter)
				}
			},
		},
		{
			name: "retry_after_http_date_in_past_ignored",
			headers: http.Header{
				"Retry-After": []string{time.Now().Add(-time.Minute).UTC().Format(http.TimeFormat)},
			},
			validate: func(t *testing.T, info RateLimitInfo) {
				if info.RetryAfter != 0 {
					t.Errorf("RetryAfter = %v, want 0 for past date", info.RetryAfter)
				}
			},
		},
		{
			name:    "reset_time_unix_seconds",
			headers: http.Header{"X-Ratelimit-Reset": []string{"1700000000"}},
			validate: func(t *testing.T, info RateLimitInfo) {
				if info.ResetTime != 1700000000 {
					t.Errorf("ResetTime = %d, want 1700000000", info.ResetTime)
				}
			},
		},
		{
			name:    "requests_remaining",
			headers: http.Header{"X-Ratelimit-Remaining": []string{"42"}},
			validate: func(t *testing.T, info RateLimitInfo) {
				if info.RequestsRemaining != 42 {
					t.Errorf("RequestsRemaining = %d, want 42", info.RequestsRemaining)
				}
			},
		},
		{
			name:    "garbage_values_ignored",
			headers: http.Header{"Retry-After": []string{"soon"}, "X-Ratelimit-Reset": []string{"later"}},
			validate: func(t *testing.T, info RateLimitInfo) {
				if info.RetryAfter != 0 || info.ResetTime != 0 {
					t.Errorf("info = %+v, want zero values", info)
				}
			},
		},
		{
			name:    "empty_headers",
			headers: http.Header{},
			validate: func(t *testing.T, info RateLimitInfo) {
				if info != (RateLimitInfo{}) {
					t.Errorf("info = %+v, want zero value", info)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := ParseRateLimitHeaders(tt.headers)
			tt.validate(t, info)
		})
	}
}
