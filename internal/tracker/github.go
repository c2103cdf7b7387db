package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"support-agent/internal/message"
)

type IssueRequest struct {
	Title   string
	Body    string
	Labels  []string
	FiledBy string
}

type Client interface {
	CreateIssue(ctx context.Context, req IssueRequest) (message.IssueRef, error)
}

// APIError is returned for any non-2xx response from the tracker.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("tracker: status=%d body=%s", e.Status, e.Body)
}

// GitHubClient files issues into a single configured repository using the
// service identity's token.
type GitHubClient struct {
	BaseURL string
	Token   string
	Owner   string
	Repo    string
	HTTP    *http.Client
}

func NewGitHubClient(baseURL, token, owner, repo string, timeout time.Duration) *GitHubClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &GitHubClient{
		BaseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		Token:   strings.TrimSpace(token),
		Owner:   strings.TrimSpace(owner),
		Repo:    strings.TrimSpace(repo),
		HTTP:    &http.Client{Timeout: timeout},
	}
}

type createIssueReq struct {
	Title  string   `json:"title"`
	Body   string   `json:"body"`
	Labels []string `json:"labels,omitempty"`
}

type createIssueResp struct {
	HTMLURL string `json:"html_url"`
	Number  int    `json:"number"`
}

func (c *GitHubClient) CreateIssue(ctx context.Context, req IssueRequest) (message.IssueRef, error) {
	if c.Token == "" {
		return message.IssueRef{}, errors.New("tracker token is required")
	}
	if c.Owner == "" || c.Repo == "" {
		return message.IssueRef{}, errors.New("tracker owner/repo is required")
	}

	body, err := json.Marshal(createIssueReq{
		Title:  req.Title,
		Body:   req.Body,
		Labels: req.Labels,
	})
	if err != nil {
		return message.IssueRef{}, err
	}
	endpoint := fmt.Sprintf("%s/repos/%s/%s/issues", c.BaseURL, c.Owner, c.Repo)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return message.IssueRef{}, err
	}
	httpReq.Header.Set("Accept", "application/vnd.github+json")
	httpReq.Header.Set("Authorization", "Bearer "+c.Token)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		return message.IssueRef{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 16*1024))
		return message.IssueRef{}, &APIError{Status: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	var out createIssueResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return message.IssueRef{}, fmt.Errorf("decode issue response: %w", err)
	}
	return message.IssueRef{URL: out.HTMLURL, Number: out.Number}, nil
}
