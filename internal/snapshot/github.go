package snapshot

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const DefaultGitHubAPIURL = "https://api.github.com"

// GitHubStore keeps the document as a file in a repository through the contents API.
// The revision is the blob sha; GitHub rejects a PUT whose sha is stale.
type GitHubStore struct {
	client     *http.Client
	baseURL    string
	token      string
	repository string
	path       string
	branch     string
	now        func() time.Time
}

// GitHubConfig configures NewGitHubStore. Repository is "owner/name".
type GitHubConfig struct {
	BaseURL    string
	Token      string
	Repository string
	Path       string
	Branch     string
}

// NewGitHubStore returns a contents API store.
func NewGitHubStore(client *http.Client, cfg GitHubConfig) *GitHubStore {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultGitHubAPIURL
	}
	if cfg.Branch == "" {
		cfg.Branch = "main"
	}
	return &GitHubStore{
		client:     client,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.Token,
		repository: cfg.Repository,
		path:       strings.TrimLeft(cfg.Path, "/"),
		branch:     cfg.Branch,
		now:        time.Now,
	}
}

type githubContent struct {
	SHA      string `json:"sha"`
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

type githubPutRequest struct {
	Message string `json:"message"`
	Content string `json:"content"`
	Branch  string `json:"branch"`
	SHA     string `json:"sha,omitempty"`
}

type githubPutResponse struct {
	Content githubContent `json:"content"`
}

func (s *GitHubStore) contentsURL() string {
	return fmt.Sprintf("%s/repos/%s/contents/%s", s.baseURL, s.repository, s.path)
}

func (s *GitHubStore) newRequest(ctx context.Context, method, rawURL string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	if s.token != "" {
		req.Header.Set("Authorization", "token "+s.token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// Read implements Store.
func (s *GitHubStore) Read(ctx context.Context) (Document, error) {
	req, err := s.newRequest(ctx, http.MethodGet, s.contentsURL()+"?ref="+url.QueryEscape(s.branch), nil)
	if err != nil {
		return Document{}, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return Document{}, fmt.Errorf("get %s: %w", s.path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return Document{}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return Document{}, fmt.Errorf("get %s: HTTP %d", s.path, resp.StatusCode)
	}

	var content githubContent
	if err := json.NewDecoder(resp.Body).Decode(&content); err != nil {
		return Document{}, fmt.Errorf("parse contents response: %w", err)
	}
	data, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(content.Content, "\n", ""))
	if err != nil {
		return Document{}, fmt.Errorf("decode %s: %w", s.path, err)
	}
	return Document{Data: data, Revision: content.SHA}, nil
}

// Write implements Store. Each write is one commit on the configured branch.
func (s *GitHubStore) Write(ctx context.Context, data []byte, revision string) (string, error) {
	stamp := s.now().Format("2006-01-02 15:04")
	message := "Update model stats " + stamp
	if revision == "" {
		message = "Initial model stats " + stamp
	}

	body, err := json.Marshal(githubPutRequest{
		Message: message,
		Content: base64.StdEncoding.EncodeToString(data),
		Branch:  s.branch,
		SHA:     revision,
	})
	if err != nil {
		return "", err
	}

	req, err := s.newRequest(ctx, http.MethodPut, s.contentsURL(), bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("put %s: %w", s.path, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
	case http.StatusConflict, http.StatusUnprocessableEntity:
		return "", ErrConflict
	default:
		return "", fmt.Errorf("put %s: HTTP %d", s.path, resp.StatusCode)
	}

	var out githubPutResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("parse contents response: %w", err)
	}
	return out.Content.SHA, nil
}
