package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/appwright/pageforge/internal/metrics"
	"github.com/appwright/pageforge/internal/providers"
	"github.com/appwright/pageforge/pkg/domain"
)

// PublishError is the only error class that escapes the publisher: a remote
// rejection whose cause is not already-exists / not-found (those are absorbed
// or demote the mode).
type PublishError struct {
	Op  string
	Err error
}

func (e *PublishError) Error() string { return "publish " + e.Op + ": " + e.Err.Error() }
func (e *PublishError) Unwrap() error { return e.Err }

// stepResult classifies the outcome of a best-effort publish step. Only
// stepFatal propagates; stepRecoverable is logged and swallowed.
type stepStatus int

const (
	stepOK stepStatus = iota
	stepRecoverable
	stepFatal
)

type stepResult struct {
	status stepStatus
	reason string
	err    error
}

func okStep() stepResult { return stepResult{status: stepOK} }

func recoverable(reason string, err error) stepResult {
	return stepResult{status: stepRecoverable, reason: reason, err: err}
}

func fatal(err error) stepResult { return stepResult{status: stepFatal, err: err} }

// PublisherService commits the artifact set to the task repository and
// enables static hosting for it.
type PublisherService interface {
	Publish(ctx context.Context, repoID string, files domain.ArtifactSet, revision bool) (domain.PublishResult, error)
}

type publisherService struct {
	host   providers.RepoHost
	logger *slog.Logger
	branch string
	settle time.Duration
	sleep  func(ctx context.Context, d time.Duration) error
}

func NewPublisherService(host providers.RepoHost, logger *slog.Logger, branch string, settle time.Duration) PublisherService {
	if logger == nil {
		logger = slog.Default()
	}
	if branch == "" {
		branch = "main"
	}
	return &publisherService{
		host:   host,
		logger: logger,
		branch: branch,
		settle: settle,
		sleep:  sleepOrDone,
	}
}

func (s *publisherService) Publish(ctx context.Context, repoID string, files domain.ArtifactSet, revision bool) (domain.PublishResult, error) {
	if repoID == "" {
		return domain.PublishResult{}, &PublishError{Op: "validate", Err: errors.New("empty repo id")}
	}
	if len(files) == 0 {
		return domain.PublishResult{}, &PublishError{Op: "validate", Err: errors.New("empty file set")}
	}

	mode := domain.ModeCreate
	if revision {
		mode = domain.ModeRevise
	}

	if mode == domain.ModeCreate {
		err := s.host.CreateRepo(ctx, repoID)
		switch {
		case err == nil:
		case errors.Is(err, providers.ErrRepoExists):
			// Same task id published before: continue as a revision.
			s.logger.Info("repository already exists, demoting to revision", "repo", repoID)
			mode = domain.ModeRevise
		default:
			metrics.PublishTotal.WithLabelValues(string(mode), "failure").Inc()
			return domain.PublishResult{}, &PublishError{Op: "create repo", Err: err}
		}
	}

	if mode == domain.ModeCreate {
		if res := s.ensureBranch(ctx, repoID); res.status != stepOK {
			if res.status == stepFatal {
				metrics.PublishTotal.WithLabelValues(string(mode), "failure").Inc()
				return domain.PublishResult{}, &PublishError{Op: "ensure branch", Err: res.err}
			}
			s.logger.Warn("branch setup skipped", "repo", repoID, "reason", res.reason, "err", res.err)
		}
	}

	lastCommit, err := s.commitFiles(ctx, repoID, files, mode)
	if err != nil {
		metrics.PublishTotal.WithLabelValues(string(mode), "failure").Inc()
		return domain.PublishResult{}, err
	}

	if mode == domain.ModeCreate {
		if res := s.enablePages(ctx, repoID); res.status != stepOK {
			if res.status == stepFatal {
				metrics.PublishTotal.WithLabelValues(string(mode), "failure").Inc()
				return domain.PublishResult{}, &PublishError{Op: "enable pages", Err: res.err}
			}
			s.logger.Warn("pages enablement skipped", "repo", repoID, "reason", res.reason, "err", res.err)
		}
	}

	// Hosting providers build asynchronously; give the page a moment.
	if s.settle > 0 {
		_ = s.sleep(ctx, s.settle)
	}

	owner := s.host.Owner()
	metrics.PublishTotal.WithLabelValues(string(mode), "success").Inc()
	return domain.PublishResult{
		RepoURL:   fmt.Sprintf("https://github.com/%s/%s", owner, repoID),
		CommitSHA: lastCommit,
		PagesURL:  fmt.Sprintf("https://%s.github.io/%s/", owner, repoID),
	}, nil
}

// ensureBranch makes the canonical branch exist and point at the same commit
// as the repository's actual default branch. Best-effort: hosting still works
// off whatever branch exists.
func (s *publisherService) ensureBranch(ctx context.Context, repoID string) stepResult {
	if ctx.Err() != nil {
		return fatal(ctx.Err())
	}
	if _, err := s.host.GetBranchSHA(ctx, repoID, s.branch); err == nil {
		return okStep()
	} else if !errors.Is(err, providers.ErrNotFound) {
		return recoverable("branch inspection failed", err)
	}

	defaultBranch, err := s.host.GetRepo(ctx, repoID)
	if err != nil {
		return recoverable("default branch lookup failed", err)
	}
	if defaultBranch == s.branch {
		// Nothing to mirror; the canonical branch will appear with the first commit.
		return okStep()
	}
	sha, err := s.host.GetBranchSHA(ctx, repoID, defaultBranch)
	if err != nil {
		return recoverable("default branch ref lookup failed", err)
	}
	if err := s.host.CreateBranch(ctx, repoID, s.branch, sha); err != nil {
		return recoverable("branch creation failed", err)
	}
	return okStep()
}

// commitFiles commits each file strictly in input order as create-or-update.
// A stale or missing content identifier is re-fetched and retried exactly
// once; a second rejection propagates the original error.
func (s *publisherService) commitFiles(ctx context.Context, repoID string, files domain.ArtifactSet, mode domain.PublishMode) (string, error) {
	// Fresh repos look up prior content on the canonical branch; revisions use
	// the repository's default view.
	ref := ""
	if mode == domain.ModeCreate {
		ref = s.branch
	}

	var lastCommit string
	for _, f := range files {
		sha, err := s.host.GetFileSHA(ctx, repoID, f.Path, ref)
		if err != nil && !errors.Is(err, providers.ErrNotFound) {
			return "", &PublishError{Op: "inspect " + f.Path, Err: err}
		}

		message := "Add " + f.Path
		if sha != "" {
			message = "Update " + f.Path
		}
		commit, err := s.host.PutFile(ctx, repoID, f.Path, s.branch, message, f.Content, sha)
		if errors.Is(err, providers.ErrSHAConflict) {
			origErr := err
			freshSHA, shaErr := s.host.GetFileSHA(ctx, repoID, f.Path, ref)
			if shaErr != nil && !errors.Is(shaErr, providers.ErrNotFound) {
				return "", &PublishError{Op: "commit " + f.Path, Err: origErr}
			}
			commit, err = s.host.PutFile(ctx, repoID, f.Path, s.branch, message, f.Content, freshSHA)
			if err != nil {
				return "", &PublishError{Op: "commit " + f.Path, Err: origErr}
			}
		} else if err != nil {
			return "", &PublishError{Op: "commit " + f.Path, Err: err}
		}
		lastCommit = commit
	}
	return lastCommit, nil
}

func (s *publisherService) enablePages(ctx context.Context, repoID string) stepResult {
	if ctx.Err() != nil {
		return fatal(ctx.Err())
	}
	if err := s.host.EnablePages(ctx, repoID, s.branch, "/"); err != nil {
		return recoverable("pages enablement failed", err)
	}
	return okStep()
}

func sleepOrDone(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
