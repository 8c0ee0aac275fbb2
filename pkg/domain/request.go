package domain

import "strings"

// GenerationRequest is the inbound body of POST /api-endpoint. The task id is
// the identity of the whole pipeline run: it names the target repository, so a
// second round with the same id revises the same repository.
type GenerationRequest struct {
	Secret        string `json:"secret"`
	Brief         string `json:"brief"`
	Task          string `json:"task"`
	Email         string `json:"email,omitempty"`
	Round         int    `json:"round,omitempty"`
	Nonce         string `json:"nonce,omitempty"`
	EvaluationURL string `json:"evaluation_url,omitempty"`
}

// RepoID returns the repository name derived from the task id.
func (r GenerationRequest) RepoID() string {
	return strings.TrimSpace(r.Task)
}

// IsRevision reports whether this request targets an existing repository.
// Round 2 is defined as a revision of round 1's repository.
func (r GenerationRequest) IsRevision() bool {
	return r.Round >= 2
}
