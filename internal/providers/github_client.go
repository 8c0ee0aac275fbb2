package providers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// RepoHost is the port onto the remote repository provider. Implementations
// translate provider rejections into the sentinel errors below so the
// publisher can branch on cause instead of status codes.
type RepoHost interface {
	Owner() string
	CreateRepo(ctx context.Context, name string) error
	GetRepo(ctx context.Context, name string) (defaultBranch string, err error)
	GetBranchSHA(ctx context.Context, repo, branch string) (string, error)
	CreateBranch(ctx context.Context, repo, branch, sha string) error
	GetFileSHA(ctx context.Context, repo, path, ref string) (string, error)
	PutFile(ctx context.Context, repo, path, branch, message string, content []byte, sha string) (commitSHA string, err error)
	EnablePages(ctx context.Context, repo, branch, dir string) error
}

var (
	ErrRepoExists  = errors.New("repository already exists")
	ErrNotFound    = errors.New("not found")
	ErrSHAConflict = errors.New("content sha conflict")
)

type GitHubClient struct {
	apiURL string
	owner  string
	token  string
	http   *http.Client
}

func NewGitHubClient(apiURL, owner, token string) *GitHubClient {
	return &GitHubClient{
		apiURL: strings.TrimSuffix(apiURL, "/"),
		owner:  owner,
		token:  token,
		http:   &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *GitHubClient) Owner() string { return c.owner }

func (c *GitHubClient) CreateRepo(ctx context.Context, name string) error {
	body := map[string]any{
		"name":      name,
		"auto_init": true,
		"private":   false,
	}
	status, respBody, err := c.do(ctx, http.MethodPost, "/user/repos", body)
	if err != nil {
		return err
	}
	switch {
	case status == http.StatusCreated:
		return nil
	case status == http.StatusUnprocessableEntity && bytes.Contains(respBody, []byte("already exists")):
		return fmt.Errorf("create repo %s: %w", name, ErrRepoExists)
	default:
		return fmt.Errorf("create repo %s: status=%d body=%s", name, status, truncate(respBody, 512))
	}
}

func (c *GitHubClient) GetRepo(ctx context.Context, name string) (string, error) {
	status, respBody, err := c.do(ctx, http.MethodGet, "/repos/"+c.owner+"/"+name, nil)
	if err != nil {
		return "", err
	}
	if status == http.StatusNotFound {
		return "", fmt.Errorf("get repo %s: %w", name, ErrNotFound)
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("get repo %s: status=%d", name, status)
	}
	var v struct {
		DefaultBranch string `json:"default_branch"`
	}
	if err := json.Unmarshal(respBody, &v); err != nil {
		return "", fmt.Errorf("get repo %s: decode: %w", name, err)
	}
	return v.DefaultBranch, nil
}

func (c *GitHubClient) GetBranchSHA(ctx context.Context, repo, branch string) (string, error) {
	path := fmt.Sprintf("/repos/%s/%s/git/ref/heads/%s", c.owner, repo, branch)
	status, respBody, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return "", err
	}
	if status == http.StatusNotFound {
		return "", fmt.Errorf("branch %s: %w", branch, ErrNotFound)
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("get branch %s: status=%d", branch, status)
	}
	var v struct {
		Object struct {
			SHA string `json:"sha"`
		} `json:"object"`
	}
	if err := json.Unmarshal(respBody, &v); err != nil {
		return "", fmt.Errorf("get branch %s: decode: %w", branch, err)
	}
	return v.Object.SHA, nil
}

func (c *GitHubClient) CreateBranch(ctx context.Context, repo, branch, sha string) error {
	path := fmt.Sprintf("/repos/%s/%s/git/refs", c.owner, repo)
	body := map[string]any{"ref": "refs/heads/" + branch, "sha": sha}
	status, respBody, err := c.do(ctx, http.MethodPost, path, body)
	if err != nil {
		return err
	}
	if status != http.StatusCreated {
		return fmt.Errorf("create branch %s: status=%d body=%s", branch, status, truncate(respBody, 256))
	}
	return nil
}

func (c *GitHubClient) GetFileSHA(ctx context.Context, repo, filePath, ref string) (string, error) {
	path := fmt.Sprintf("/repos/%s/%s/contents/%s", c.owner, repo, filePath)
	if ref != "" {
		path += "?ref=" + url.QueryEscape(ref)
	}
	status, respBody, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return "", err
	}
	if status == http.StatusNotFound {
		return "", fmt.Errorf("file %s: %w", filePath, ErrNotFound)
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("get file %s: status=%d", filePath, status)
	}
	var v struct {
		SHA string `json:"sha"`
	}
	if err := json.Unmarshal(respBody, &v); err != nil {
		return "", fmt.Errorf("get file %s: decode: %w", filePath, err)
	}
	return v.SHA, nil
}

func (c *GitHubClient) PutFile(ctx context.Context, repo, filePath, branch, message string, content []byte, sha string) (string, error) {
	path := fmt.Sprintf("/repos/%s/%s/contents/%s", c.owner, repo, filePath)
	body := map[string]any{
		"message": message,
		"content": base64.StdEncoding.EncodeToString(content),
	}
	if branch != "" {
		body["branch"] = branch
	}
	if sha != "" {
		body["sha"] = sha
	}
	status, respBody, err := c.do(ctx, http.MethodPut, path, body)
	if err != nil {
		return "", err
	}
	switch {
	case status == http.StatusOK || status == http.StatusCreated:
		var v struct {
			Commit struct {
				SHA string `json:"sha"`
			} `json:"commit"`
		}
		if err := json.Unmarshal(respBody, &v); err != nil {
			return "", fmt.Errorf("put file %s: decode: %w", filePath, err)
		}
		return v.Commit.SHA, nil
	case status == http.StatusConflict,
		status == http.StatusUnprocessableEntity && bytes.Contains(respBody, []byte("sha")):
		return "", fmt.Errorf("put file %s: %w", filePath, ErrSHAConflict)
	default:
		return "", fmt.Errorf("put file %s: status=%d body=%s", filePath, status, truncate(respBody, 512))
	}
}

func (c *GitHubClient) EnablePages(ctx context.Context, repo, branch, dir string) error {
	path := fmt.Sprintf("/repos/%s/%s/pages", c.owner, repo)
	if dir == "" {
		dir = "/"
	}
	body := map[string]any{"source": map[string]any{"branch": branch, "path": dir}}
	status, respBody, err := c.do(ctx, http.MethodPost, path, body)
	if err != nil {
		return err
	}
	switch status {
	case http.StatusCreated:
		return nil
	case http.StatusConflict:
		// Pages already enabled for this repository.
		return nil
	default:
		return fmt.Errorf("enable pages: status=%d body=%s", status, truncate(respBody, 256))
	}
}

func (c *GitHubClient) do(ctx context.Context, method, path string, body any) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, nil, err
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.apiURL+path, reader)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	res, err := c.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer res.Body.Close()
	respBody, _ := io.ReadAll(res.Body)
	return res.StatusCode, respBody, nil
}
