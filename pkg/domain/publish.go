package domain

import "time"

// PublishMode is the resolved intent of a publish call. A Create that hits an
// already-existing repository demotes to Revise once, at entry; the rest of
// the pipeline only ever sees the resolved mode.
type PublishMode string

const (
	ModeCreate PublishMode = "CREATE"
	ModeRevise PublishMode = "REVISE"
)

// PublishResult is recomputed on every publish attempt; nothing caches it.
type PublishResult struct {
	RepoURL   string `json:"repo_url"`
	CommitSHA string `json:"commit_sha"`
	PagesURL  string `json:"pages_url"`
}

// NotificationPayload is posted to the evaluation callback after a successful
// publish. Sent at most NotifyMaxAttempts times, always to the same URL.
type NotificationPayload struct {
	Email     string `json:"email"`
	Task      string `json:"task"`
	Round     int    `json:"round"`
	Nonce     string `json:"nonce"`
	RepoURL   string `json:"repo_url"`
	CommitSHA string `json:"commit_sha"`
	PagesURL  string `json:"pages_url"`
}

// TaskRun is the in-flight record of one accepted request. It lives only on
// the call stack of the background task; there is no registry of runs.
type TaskRun struct {
	ID        string
	Request   GenerationRequest
	StartedAt time.Time
}
