// Package github implements the issue-tracker collaborator against the
// GitHub REST API.
package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/minutetrack/internal/reconcile"
	"github.com/minutetrack/internal/retry"
)

const defaultBaseURL = "https://api.github.com"

// Client posts and lists issue comments. It satisfies
// reconcile.Tracker.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	userAgent  string
	limiter    *rate.Limiter
	retryCfg   retry.Config
}

// Options configure a Client; zero values pick sensible defaults.
type Options struct {
	BaseURL   string
	Token     string
	UserAgent string
	// RequestsPerSecond caps outbound calls; GitHub's secondary rate
	// limits punish bursts hard.
	RequestsPerSecond float64
}

// NewClient constructs a GitHub client.
func NewClient(opts Options) *Client {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	rps := opts.RequestsPerSecond
	if rps <= 0 {
		rps = 2
	}
	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = "minutetrack-bot"
	}
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      opts.Token,
		userAgent:  userAgent,
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		retryCfg:   retry.DefaultConfig(),
	}
}

var _ reconcile.Tracker = (*Client)(nil)

type commentPayload struct {
	Body string `json:"body"`
}

type commentResponse struct {
	ID   int64  `json:"id"`
	Body string `json:"body"`
}

type issueResponse struct {
	Title string `json:"title"`
}

// CreateComment posts a new comment and returns its id.
func (c *Client) CreateComment(ctx context.Context, repo string, number int, body string) (int64, error) {
	url := fmt.Sprintf("%s/repos/%s/issues/%d/comments", c.baseURL, repo, number)
	var created commentResponse
	if err := c.do(ctx, http.MethodPost, url, commentPayload{Body: body}, &created); err != nil {
		return 0, fmt.Errorf("create comment on %s#%d: %w", repo, number, err)
	}
	return created.ID, nil
}

// UpdateComment rewrites an existing comment's body.
func (c *Client) UpdateComment(ctx context.Context, repo string, commentID int64, body string) error {
	url := fmt.Sprintf("%s/repos/%s/issues/comments/%d", c.baseURL, repo, commentID)
	if err := c.do(ctx, http.MethodPatch, url, commentPayload{Body: body}, nil); err != nil {
		return fmt.Errorf("update comment %d on %s: %w", commentID, repo, err)
	}
	return nil
}

// ListRecentComments returns the newest comments on an issue, newest
// page only; the reconciler just needs a recency window to match its
// occurrence marker against.
func (c *Client) ListRecentComments(ctx context.Context, repo string, number int) ([]reconcile.Comment, error) {
	url := fmt.Sprintf("%s/repos/%s/issues/%d/comments?sort=created&direction=desc&per_page=30", c.baseURL, repo, number)
	var raw []commentResponse
	err := retry.Do(ctx, c.retryCfg, "list_comments", func() error {
		raw = raw[:0]
		return c.do(ctx, http.MethodGet, url, nil, &raw)
	})
	if err != nil {
		return nil, fmt.Errorf("list comments on %s#%d: %w", repo, number, err)
	}
	out := make([]reconcile.Comment, 0, len(raw))
	for _, r := range raw {
		out = append(out, reconcile.Comment{ID: r.ID, Body: r.Body})
	}
	return out, nil
}

// IssueTitle fetches an issue or PR title for acknowledgment text.
func (c *Client) IssueTitle(ctx context.Context, repo string, number int) (string, error) {
	url := fmt.Sprintf("%s/repos/%s/issues/%d", c.baseURL, repo, number)
	var issue issueResponse
	err := retry.Do(ctx, c.retryCfg, "issue_title", func() error {
		return c.do(ctx, http.MethodGet, url, nil, &issue)
	})
	if err != nil {
		return "", fmt.Errorf("fetch title of %s#%d: %w", repo, number, err)
	}
	return issue.Title, nil
}

func (c *Client) do(ctx context.Context, method, url string, payload, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var reqBody io.Reader
	if payload != nil {
		jsonBody, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("User-Agent", c.userAgent)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "token "+c.token)
	}

	log.Debug().Str("method", method).Str("url", url).Msg("github api request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make HTTP request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("github api returned %d: %s", resp.StatusCode, truncate(string(respBody), 200))
	}
	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
