package services

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/appwright/pageforge/pkg/domain"
)

func newTestNotifier(t *testing.T) (*notifierService, *[]time.Duration) {
	t.Helper()
	svc := NewNotifierService(slog.Default(), 5, time.Second, time.Minute).(*notifierService)
	var sleeps []time.Duration
	svc.sleep = func(ctx context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return nil
	}
	return svc, &sleeps
}

func TestNotifyRetryBackoff(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 5 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	svc, sleeps := newTestNotifier(t)
	svc.Notify(context.Background(), srv.URL, domain.NotificationPayload{Task: "t1"})

	if got := atomic.LoadInt32(&attempts); got != 5 {
		t.Errorf("attempts = %d, want 5", got)
	}
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second}
	if len(*sleeps) != len(want) {
		t.Fatalf("waits = %v, want %v", *sleeps, want)
	}
	for i := range want {
		if (*sleeps)[i] != want[i] {
			t.Errorf("wait %d = %v, want %v", i, (*sleeps)[i], want[i])
		}
	}
}

func TestNotifyFirstAttemptSuccessSleepsNever(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)

	svc, sleeps := newTestNotifier(t)
	svc.Notify(context.Background(), srv.URL, domain.NotificationPayload{Task: "t1"})
	if len(*sleeps) != 0 {
		t.Errorf("waits = %v, want none", *sleeps)
	}
}

func TestNotifyPermanentFailure(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	svc, sleeps := newTestNotifier(t)
	// Must return without raising.
	svc.Notify(context.Background(), srv.URL, domain.NotificationPayload{Task: "t1"})

	if got := atomic.LoadInt32(&attempts); got != 5 {
		t.Errorf("attempts = %d, want exactly 5", got)
	}
	if len(*sleeps) != 4 {
		t.Errorf("waits between attempts = %d, want 4", len(*sleeps))
	}
}

func TestNotifyMarkdownWrappedURL(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	svc, _ := newTestNotifier(t)
	wrapped := "[see here](" + srv.URL + "/cb)"
	svc.Notify(context.Background(), wrapped, domain.NotificationPayload{Task: "t1"})
	if gotPath != "/cb" {
		t.Errorf("POST path = %q, want /cb", gotPath)
	}
}

func TestNotifyInvalidURLDoesNotCrash(t *testing.T) {
	svc, sleeps := newTestNotifier(t)
	svc.Notify(context.Background(), "not a url at all", domain.NotificationPayload{Task: "t1"})
	// All five attempts fail, with the usual waits in between.
	if len(*sleeps) != 4 {
		t.Errorf("waits = %d, want 4", len(*sleeps))
	}
}

func TestSanitizeCallbackURL(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		want  string
		valid bool
	}{
		{"plain", "https://example.com/cb", "https://example.com/cb", true},
		{"markdown link", "[see here](https://example.com/cb)", "https://example.com/cb", true},
		{"angle brackets", "<https://example.com/cb>", "https://example.com/cb", true},
		{"whitespace", "  https://example.com/cb  ", "https://example.com/cb", true},
		{"markdown inside brackets", "<[x](https://example.com/cb)>", "https://example.com/cb", true},
		{"no scheme", "example.com/cb", "example.com/cb", false},
		{"wrong scheme", "ftp://example.com/cb", "ftp://example.com/cb", false},
		{"garbage", "not a url", "not a url", false},
		{"empty", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, valid := SanitizeCallbackURL(tt.in)
			if got != tt.want || valid != tt.valid {
				t.Errorf("SanitizeCallbackURL(%q) = (%q, %v), want (%q, %v)", tt.in, got, valid, tt.want, tt.valid)
			}
		})
	}
}
