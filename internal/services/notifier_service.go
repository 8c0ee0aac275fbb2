package services

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/appwright/pageforge/internal/backoff"
	"github.com/appwright/pageforge/internal/metrics"
	"github.com/appwright/pageforge/internal/tracing"
	"github.com/appwright/pageforge/pkg/domain"
)

// NotifierService posts the completion payload to the evaluation callback.
// It never fails its caller: after exhausting retries it logs and returns.
type NotifierService interface {
	Notify(ctx context.Context, rawURL string, payload domain.NotificationPayload)
}

type notifierService struct {
	logger      *slog.Logger
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
	client      *http.Client
	sleep       func(ctx context.Context, d time.Duration) error
}

func NewNotifierService(logger *slog.Logger, maxAttempts int, baseDelay, maxDelay time.Duration) NotifierService {
	if logger == nil {
		logger = slog.Default()
	}
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	if baseDelay <= 0 {
		baseDelay = time.Second
	}
	if maxDelay <= 0 {
		maxDelay = time.Minute
	}
	return &notifierService{
		logger:      logger,
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
		maxDelay:    maxDelay,
		client:      &http.Client{Timeout: 30 * time.Second},
		sleep:       sleepOrDone,
	}
}

// markdownLink matches callbacks delivered as [text](url).
var markdownLink = regexp.MustCompile(`\[[^\]]*\]\(([^)\s]+)\)`)

// SanitizeCallbackURL unwraps markdown hyperlink syntax and surrounding angle
// brackets/whitespace, returning the cleaned URL and whether it is usable.
func SanitizeCallbackURL(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if m := markdownLink.FindStringSubmatch(s); m != nil {
		s = m[1]
	}
	s = strings.Trim(s, "<>")
	s = strings.TrimSpace(s)

	u, err := url.Parse(s)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return s, false
	}
	return s, true
}

func (s *notifierService) Notify(ctx context.Context, rawURL string, payload domain.NotificationPayload) {
	target, valid := SanitizeCallbackURL(rawURL)
	body, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("notification payload marshal failed", "task", payload.Task, "err", err)
		metrics.CallbackDeliveriesTotal.WithLabelValues("failure").Inc()
		return
	}

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		// An unusable URL counts as a failed attempt, not a crash.
		if valid && s.post(ctx, target, body) {
			metrics.CallbackDeliveriesTotal.WithLabelValues("success").Inc()
			return
		}
		if attempt < s.maxAttempts {
			delay := backoff.Delay("exponential", s.baseDelay, s.maxDelay, attempt-1, nil)
			if s.sleep(ctx, delay) != nil {
				break
			}
		}
	}
	metrics.CallbackDeliveriesTotal.WithLabelValues("failure").Inc()
	s.logger.Warn("evaluation callback failed after all attempts", "url", target, "task", payload.Task, "attempts", s.maxAttempts)
}

func (s *notifierService) post(ctx context.Context, target string, body []byte) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return false
	}
	req.Header.Set("Content-Type", "application/json")
	tracing.InjectHeaders(ctx, req.Header)

	resp, err := s.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}
