package moderation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type Result struct {
	Flagged bool
}

// Classifier is the pre-flight content-safety check applied to raw user
// text before any other processing.
type Classifier interface {
	Classify(ctx context.Context, text string) (Result, error)
}

// Client calls an OpenAI-compatible moderations endpoint.
type Client struct {
	BaseURL string
	APIKey  string
	Model   string
	HTTP    *http.Client
}

func New(baseURL, apiKey, model string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		BaseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		APIKey:  strings.TrimSpace(apiKey),
		Model:   strings.TrimSpace(model),
		HTTP:    &http.Client{Timeout: timeout},
	}
}

type moderationReq struct {
	Input string `json:"input"`
	Model string `json:"model,omitempty"`
}

type moderationResp struct {
	Results []struct {
		Flagged bool `json:"flagged"`
	} `json:"results"`
}

func (c *Client) Classify(ctx context.Context, text string) (Result, error) {
	if c == nil {
		return Result{}, fmt.Errorf("nil moderation client")
	}
	if strings.TrimSpace(c.BaseURL) == "" {
		return Result{}, fmt.Errorf("moderation base url is empty")
	}

	body, err := json.Marshal(moderationReq{Input: text, Model: c.Model})
	if err != nil {
		return Result{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/moderations", bytes.NewReader(body))
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 16*1024))
		return Result{}, fmt.Errorf("moderation request failed: status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var out moderationResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Result{}, fmt.Errorf("decode moderation response: %w", err)
	}
	if len(out.Results) == 0 {
		return Result{}, fmt.Errorf("moderation response has no results")
	}
	return Result{Flagged: out.Results[0].Flagged}, nil
}
