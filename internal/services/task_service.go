package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/appwright/pageforge/internal/assets"
	"github.com/appwright/pageforge/internal/metrics"
	"github.com/appwright/pageforge/pkg/domain"
)

// TaskService drives one accepted request through generate → publish →
// notify, strictly in that order, off the request goroutine. There is no task
// registry: state lives in the remote repository and on this call stack.
type TaskService interface {
	// Submit schedules the pipeline and returns immediately.
	Submit(req domain.GenerationRequest)
	// Run executes the pipeline synchronously. Exposed for tests and for
	// callers that already run on a background goroutine.
	Run(ctx context.Context, req domain.GenerationRequest)
}

type taskService struct {
	generator GeneratorService
	publisher PublisherService
	notifier  NotifierService
	logger    *slog.Logger
	now       func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewTaskService(generator GeneratorService, publisher PublisherService, notifier NotifierService, logger *slog.Logger) TaskService {
	if logger == nil {
		logger = slog.Default()
	}
	return &taskService{
		generator: generator,
		publisher: publisher,
		notifier:  notifier,
		logger:    logger,
		now:       time.Now,
		locks:     make(map[string]*sync.Mutex),
	}
}

func (s *taskService) Submit(req domain.GenerationRequest) {
	metrics.TasksAcceptedTotal.Inc()
	// The request's context dies with the HTTP response; the pipeline gets its own.
	go s.Run(context.Background(), req)
}

func (s *taskService) Run(ctx context.Context, req domain.GenerationRequest) {
	run := domain.TaskRun{ID: uuid.NewString(), Request: req, StartedAt: s.now()}
	logger := s.logger.With("run", run.ID, "task", req.Task, "round", req.Round)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("task panicked, abandoning", "panic", r)
			metrics.TasksAbandonedTotal.Inc()
			metrics.TaskDurationSeconds.WithLabelValues("panic").Observe(s.now().Sub(run.StartedAt).Seconds())
		}
	}()

	// Concurrent requests for the same task id would race on the same
	// repository; serialize them within this process.
	lock := s.lockFor(req.RepoID())
	lock.Lock()
	defer lock.Unlock()

	content := s.generator.Generate(ctx, req.Brief)

	files := domain.ArtifactSet{
		{Path: "index.html", Content: []byte(content)},
		{Path: "README.md", Content: []byte(assets.Readme(req.Task, req.Brief))},
		{Path: "LICENSE", Content: []byte(assets.LicenseMIT)},
	}

	result, err := s.publisher.Publish(ctx, req.RepoID(), files, req.IsRevision())
	if err != nil {
		logger.Error("publish failed, abandoning task", "err", err)
		metrics.TasksAbandonedTotal.Inc()
		metrics.TaskDurationSeconds.WithLabelValues("failure").Observe(s.now().Sub(run.StartedAt).Seconds())
		return
	}
	logger.Info("published", "repo_url", result.RepoURL, "commit", result.CommitSHA, "pages_url", result.PagesURL)

	if req.EvaluationURL != "" {
		round := req.Round
		if round <= 0 {
			round = 1
		}
		s.notifier.Notify(ctx, req.EvaluationURL, domain.NotificationPayload{
			Email:     req.Email,
			Task:      req.Task,
			Round:     round,
			Nonce:     req.Nonce,
			RepoURL:   result.RepoURL,
			CommitSHA: result.CommitSHA,
			PagesURL:  result.PagesURL,
		})
	}

	metrics.TaskDurationSeconds.WithLabelValues("success").Observe(s.now().Sub(run.StartedAt).Seconds())
	logger.Info("task complete")
}

func (s *taskService) lockFor(repoID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.locks[repoID]; ok {
		return m
	}
	m := &sync.Mutex{}
	s.locks[repoID] = m
	return m
}
