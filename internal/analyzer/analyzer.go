// Package analyzer asks an Anthropic-compatible messages endpoint to diagnose
// a failed CI job from its log tail.
package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

const (
	DefaultURL       = "https://api.minimaxi.com/anthropic/v1/messages"
	DefaultModel     = "MiniMax-M2.5-highspeed"
	DefaultMaxTokens = 2048

	// maxLogBytes is how much of the log tail is sent.
	maxLogBytes   = 4000
	elisionMarker = "[… earlier output omitted …]\n"
	maxErrorBody  = 500
)

var ErrNotConfigured = errors.New("analyzer API key is not configured")

const promptTemplate = `You are a senior CI/CD engineer who specialises in GitHub Actions failures.

Analyse the failure log of CI job %q and reply in exactly this layout:

FAILURE TYPE
(one of: compile error / test failure / lint error / dependency problem / timeout / permission problem / other)

ROOT CAUSE
(one or two sentences)

ERROR DETAILS
Error message: ...
Location: ...

SUGGESTED FIXES
1. ...
2. ...
3. ...

Rules:
No tables.
No markdown markup.
Plain text only.

Log:
` + "```" + `
%s
` + "```" + `
`

type Options struct {
	APIKey     string
	URL        string
	Model      string
	MaxTokens  int
	HTTPClient *http.Client
}

type Client struct {
	apiKey    string
	url       string
	model     string
	maxTokens int
	http      *http.Client
	logger    *slog.Logger
}

func New(opts Options, logger *slog.Logger) *Client {
	c := &Client{
		apiKey:    strings.TrimSpace(opts.APIKey),
		url:       opts.URL,
		model:     opts.Model,
		maxTokens: opts.MaxTokens,
		http:      opts.HTTPClient,
		logger:    logger,
	}
	if c.url == "" {
		c.url = DefaultURL
	}
	if c.model == "" {
		c.model = DefaultModel
	}
	if c.maxTokens <= 0 {
		c.maxTokens = DefaultMaxTokens
	}
	if c.http == nil {
		c.http = http.DefaultClient
	}
	return c
}

// Configured reports whether an API key is set.
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type request struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	Messages  []message `json:"messages"`
}

type response struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Analyze returns the model's plain-text diagnosis of logs.
func (c *Client) Analyze(ctx context.Context, jobName, logs string) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}

	body, err := json.Marshal(request{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Messages:  []message{{Role: "user", Content: BuildPrompt(jobName, logs)}},
	})
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")
	req.Header.Set("Content-Type", "application/json")

	c.logger.Debug("requesting analysis", "job", jobName, "model", c.model)
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("analysis request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read analysis response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := string(raw)
		if len(snippet) > maxErrorBody {
			snippet = snippet[:maxErrorBody]
		}
		return "", fmt.Errorf("HTTP %d: %s", resp.StatusCode, snippet)
	}

	return extractText(raw)
}

// extractText accepts Anthropic-style content blocks and OpenAI-style choices.
func extractText(raw []byte) (string, error) {
	var r response
	if err := json.Unmarshal(raw, &r); err != nil {
		return "", fmt.Errorf("parse analysis response: %w", err)
	}
	for _, block := range r.Content {
		if block.Type == "text" && block.Text != "" {
			return block.Text, nil
		}
	}
	if len(r.Content) > 0 && r.Content[0].Text != "" {
		return r.Content[0].Text, nil
	}
	if len(r.Choices) > 0 && r.Choices[0].Message.Content != "" {
		return r.Choices[0].Message.Content, nil
	}
	return "", errors.New("analysis response has no text content")
}

// BuildPrompt embeds the job name and the truncated log tail in the prompt.
func BuildPrompt(jobName, logs string) string {
	return fmt.Sprintf(promptTemplate, jobName, Truncate(logs))
}

// Truncate keeps the last 4000 bytes of logs, marking the cut.
func Truncate(logs string) string {
	if len(logs) <= maxLogBytes {
		return logs
	}
	tail := logs[len(logs)-maxLogBytes:]
	// Do not start in the middle of a UTF-8 sequence.
	for len(tail) > 0 && tail[0]&0xC0 == 0x80 {
		tail = tail[1:]
	}
	return elisionMarker + tail
}
