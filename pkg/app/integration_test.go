package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/appwright/pageforge/internal/providers"
	"github.com/appwright/pageforge/pkg/config"
	"github.com/appwright/pageforge/pkg/domain"
)

type memResponder struct {
	mu      sync.Mutex
	calls   int
	release chan struct{} // when non-nil, Respond blocks until closed
}

func (r *memResponder) Respond(ctx context.Context, input string) (string, error) {
	r.mu.Lock()
	r.calls++
	release := r.release
	r.mu.Unlock()
	if release != nil {
		<-release
	}
	return "<html><body>generated</body></html>", nil
}

func (r *memResponder) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

// memHost is a minimal in-memory repository host.
type memHost struct {
	mu       sync.Mutex
	calls    int
	repos    map[string]bool
	files    map[string]map[string][]byte // repo -> path -> content
	branches map[string]string
	pages    map[string]bool
	commits  int
}

func newMemHost() *memHost {
	return &memHost{
		repos:    make(map[string]bool),
		files:    make(map[string]map[string][]byte),
		branches: make(map[string]string),
		pages:    make(map[string]bool),
	}
}

func (h *memHost) touch() {
	h.calls++
}

func (h *memHost) callCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls
}

func (h *memHost) Owner() string { return "acct" }

func (h *memHost) CreateRepo(ctx context.Context, name string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.touch()
	if h.repos[name] {
		return fmt.Errorf("create repo %s: %w", name, providers.ErrRepoExists)
	}
	h.repos[name] = true
	h.files[name] = make(map[string][]byte)
	h.branches[name+"/main"] = "seed"
	return nil
}

func (h *memHost) GetRepo(ctx context.Context, name string) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.touch()
	if !h.repos[name] {
		return "", providers.ErrNotFound
	}
	return "main", nil
}

func (h *memHost) GetBranchSHA(ctx context.Context, repo, branch string) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.touch()
	sha, ok := h.branches[repo+"/"+branch]
	if !ok {
		return "", fmt.Errorf("branch %s: %w", branch, providers.ErrNotFound)
	}
	return sha, nil
}

func (h *memHost) CreateBranch(ctx context.Context, repo, branch, sha string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.touch()
	h.branches[repo+"/"+branch] = sha
	return nil
}

func (h *memHost) GetFileSHA(ctx context.Context, repo, path, ref string) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.touch()
	if _, ok := h.files[repo][path]; !ok {
		return "", fmt.Errorf("file %s: %w", path, providers.ErrNotFound)
	}
	return "blob-" + path, nil
}

func (h *memHost) PutFile(ctx context.Context, repo, path, branch, message string, content []byte, sha string) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.touch()
	if h.files[repo] == nil {
		h.files[repo] = make(map[string][]byte)
	}
	h.files[repo][path] = content
	h.commits++
	commit := fmt.Sprintf("commit-%d", h.commits)
	h.branches[repo+"/"+branch] = commit
	return commit, nil
}

func (h *memHost) EnablePages(ctx context.Context, repo, branch, dir string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.touch()
	h.pages[repo] = true
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		Port:                  0,
		SharedSecret:          "S",
		GitHubUsername:        "acct",
		GitHubAPIURL:          "https://api.github.com",
		GenerationBaseURL:     config.DefaultGenerationBaseURL,
		Model:                 "test-model",
		MaxOutputTokens:       256,
		LogLevel:              "error",
		LogFormat:             "json",
		Env:                   "test",
		NotifyMaxAttempts:     3,
		NotifyBaseDelayMillis: 1,
		NotifyMaxDelaySeconds: 1,
		PagesSettleSeconds:    0,
		DefaultBranch:         "main",
	}
}

func postRequest(t *testing.T, serverURL string, body any) (*http.Response, []byte) {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.Post(serverURL+"/api-endpoint", "application/json", bytes.NewReader(b))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	out, _ := io.ReadAll(resp.Body)
	return resp, out
}

func TestInvalidSecretHasNoSideEffects(t *testing.T) {
	responder := &memResponder{}
	host := newMemHost()
	application, err := NewApplication(testConfig(), WithResponder(responder), WithRepoHost(host))
	if err != nil {
		t.Fatalf("init app: %v", err)
	}
	SetupMappings(application)
	server := httptest.NewServer(application.Engine)
	t.Cleanup(server.Close)

	resp, body := postRequest(t, server.URL, domain.GenerationRequest{Secret: "wrong", Task: "t1", Brief: "x"})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", resp.StatusCode)
	}
	if !strings.Contains(string(body), "Invalid secret") {
		t.Errorf("body = %s", body)
	}

	time.Sleep(50 * time.Millisecond)
	if responder.callCount() != 0 {
		t.Error("generation must not run on auth failure")
	}
	if host.callCount() != 0 {
		t.Error("publishing must not run on auth failure")
	}
}

func TestAckReturnsBeforeWorkStarts(t *testing.T) {
	release := make(chan struct{})
	responder := &memResponder{release: release}
	host := newMemHost()
	application, err := NewApplication(testConfig(), WithResponder(responder), WithRepoHost(host))
	if err != nil {
		t.Fatalf("init app: %v", err)
	}
	SetupMappings(application)
	server := httptest.NewServer(application.Engine)
	t.Cleanup(server.Close)

	// The generator is blocked; the ack must still come back immediately.
	resp, body := postRequest(t, server.URL, domain.GenerationRequest{Secret: "S", Task: "t1", Brief: "x"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if !strings.Contains(string(body), "being processed") {
		t.Errorf("body = %s", body)
	}
	if host.callCount() != 0 {
		t.Error("publish must not start before generation completes")
	}
	close(release)
}

func TestEndToEndScenario(t *testing.T) {
	callbackCh := make(chan domain.NotificationPayload, 1)
	hookSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload domain.NotificationPayload
		_ = json.NewDecoder(r.Body).Decode(&payload)
		select {
		case callbackCh <- payload:
		default:
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(hookSrv.Close)

	responder := &memResponder{}
	host := newMemHost()
	application, err := NewApplication(testConfig(), WithResponder(responder), WithRepoHost(host))
	if err != nil {
		t.Fatalf("init app: %v", err)
	}
	SetupMappings(application)
	server := httptest.NewServer(application.Engine)
	t.Cleanup(server.Close)

	resp, _ := postRequest(t, server.URL, domain.GenerationRequest{
		Secret:        "S",
		Brief:         "todo app",
		Task:          "t1",
		Email:         "dev@example.com",
		Round:         1,
		Nonce:         "n-1",
		EvaluationURL: hookSrv.URL,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var payload domain.NotificationPayload
	select {
	case payload = <-callbackCh:
	case <-time.After(5 * time.Second):
		t.Fatal("no callback received")
	}

	if !strings.HasSuffix(payload.RepoURL, "/t1") {
		t.Errorf("repo_url = %q, want suffix /t1", payload.RepoURL)
	}
	if payload.Task != "t1" || payload.Round != 1 || payload.Nonce != "n-1" {
		t.Errorf("payload = %+v", payload)
	}
	if payload.CommitSHA == "" || payload.PagesURL == "" {
		t.Errorf("payload missing publish results: %+v", payload)
	}

	host.mu.Lock()
	defer host.mu.Unlock()
	if len(host.files["t1"]) != 3 {
		t.Errorf("committed files = %d, want 3", len(host.files["t1"]))
	}
	for _, p := range []string{"index.html", "README.md", "LICENSE"} {
		if _, ok := host.files["t1"][p]; !ok {
			t.Errorf("missing file %s", p)
		}
	}
	if !host.pages["t1"] {
		t.Error("pages not enabled")
	}
}

func TestRoundTwoRevisesSameRepo(t *testing.T) {
	callbackCh := make(chan domain.NotificationPayload, 2)
	hookSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload domain.NotificationPayload
		_ = json.NewDecoder(r.Body).Decode(&payload)
		callbackCh <- payload
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(hookSrv.Close)

	responder := &memResponder{}
	host := newMemHost()
	application, err := NewApplication(testConfig(), WithResponder(responder), WithRepoHost(host))
	if err != nil {
		t.Fatalf("init app: %v", err)
	}
	SetupMappings(application)
	server := httptest.NewServer(application.Engine)
	t.Cleanup(server.Close)

	for round := 1; round <= 2; round++ {
		resp, _ := postRequest(t, server.URL, domain.GenerationRequest{
			Secret:        "S",
			Brief:         "todo app",
			Task:          "t1",
			Round:         round,
			EvaluationURL: hookSrv.URL,
		})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("round %d status = %d", round, resp.StatusCode)
		}
		select {
		case <-callbackCh:
		case <-time.After(5 * time.Second):
			t.Fatalf("round %d: no callback", round)
		}
	}

	host.mu.Lock()
	defer host.mu.Unlock()
	if len(host.repos) != 1 {
		t.Errorf("repos = %d, want exactly one (revision reuses it)", len(host.repos))
	}
}
