// Package ollama implements the Translator and Summarizer ports against the
// Ollama text generation API.
package ollama

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
	"time"

	"github.com/ericfisherdev/repodigest/internal/domain/model"
	"github.com/ericfisherdev/repodigest/internal/domain/port/driven"
)

// Compile-time interface satisfaction checks.
var (
	_ driven.Translator = (*Client)(nil)
	_ driven.Summarizer = (*Client)(nil)
)

// maxErrorBody bounds how much of a failed response is read into an error.
const maxErrorBody = 1 << 10

// Client calls POST {baseURL}/api/generate without streaming.
type Client struct {
	httpClient *http.Client
	baseURL    string
	model      string
	language   string
}

// NewClient creates a Client for the server at baseURL. language is the
// target of translations and the language summaries are written in; empty
// means English.
func NewClient(baseURL, model, language string, timeout time.Duration) *Client {
	return NewClientWithHTTPClient(&http.Client{Timeout: timeout}, baseURL, model, language)
}

// NewClientWithHTTPClient creates a Client with a custom http.Client.
// This constructor is intended for testing, allowing injection of an httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL, model, language string) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		model:      model,
		language:   language,
	}
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateOptions struct {
	Temperature float64 `json:"temperature"`
}

type generateResponse struct {
	Response string `json:"response"`
	Error    string `json:"error"`
}

// generate sends one prompt and returns the model's answer.
func (c *Client) generate(ctx context.Context, action, prompt string) (string, error) {
	body, err := json.Marshal(generateRequest{
		Model:   c.model,
		Prompt:  prompt,
		Options: generateOptions{Temperature: 0.2},
	})
	if err != nil {
		return "", fmt.Errorf("%s: encode request: %w", action, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%s: build request: %w", action, err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return "", fmt.Errorf("%s: %w", action, err)
		}
		return "", fmt.Errorf("%s: %w: %w", action, driven.ErrModelUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		var decoded generateResponse
		if json.Unmarshal(msg, &decoded) == nil && decoded.Error != "" {
			msg = []byte(decoded.Error)
		}
		return "", fmt.Errorf("%s: status %d: %s: %w",
			action, resp.StatusCode, strings.TrimSpace(string(msg)), driven.ErrModelUnavailable)
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%s: decode response: %w: %w", action, driven.ErrModelUnavailable, err)
	}

	answer := strings.TrimSpace(out.Response)
	if answer == "" {
		return "", fmt.Errorf("%s: empty answer: %w", action, driven.ErrModelUnavailable)
	}

	slog.Debug("ollama generate",
		"action", action,
		"model", c.model,
		"prompt_chars", len(prompt),
		"duration", time.Since(start).Round(time.Millisecond),
	)

	return answer, nil
}

// TranslateBatch translates texts into the configured language in one call.
// Lines the model drops come back as empty strings.
func (c *Client) TranslateBatch(ctx context.Context, texts []string) ([]string, error) {
	out := make([]string, len(texts))

	items := make([]translateItem, 0, len(texts))
	for i, text := range texts {
		if text = singleLine(text); text != "" {
			items = append(items, translateItem{Number: i + 1, Text: text})
		}
	}
	if len(items) == 0 {
		return out, nil
	}

	prompt, err := render("translate.tmpl", translateData{Language: c.targetLanguage(), Items: items})
	if err != nil {
		return nil, err
	}

	answer, err := c.generate(ctx, "translate", prompt)
	if err != nil {
		return nil, err
	}

	if parseNumberedLines(answer, out) == 0 {
		return nil, fmt.Errorf("translate: no numbered lines in answer: %w", driven.ErrModelUnavailable)
	}

	// Only inputs that had text can carry a translation.
	for i, text := range texts {
		if singleLine(text) == "" {
			out[i] = ""
		}
	}
	return out, nil
}

// SummarizeActivity summarizes one repository's activities.
func (c *Client) SummarizeActivity(ctx context.Context, repoFullName string, activities []model.Activity, lookbackDays int) (string, error) {
	prompt, err := render("activity.tmpl", activityData{
		Repo:       repoFullName,
		Days:       lookbackDays,
		Language:   c.language,
		Activities: promptActivities(activities, maxPromptActivities),
	})
	if err != nil {
		return "", err
	}
	return c.generate(ctx, "summarize activity", prompt)
}

// SummarizeTracked writes a report across tracked repositories.
func (c *Client) SummarizeTracked(ctx context.Context, statuses []model.TrackedRepoStatus) (string, error) {
	repos := make([]trackedRepo, 0, len(statuses))
	for _, s := range statuses {
		repo := trackedRepo{Name: s.FullName}
		if s.HasUpdates {
			repo.Activities = promptActivities(s.Activities, activitiesPerTrackedRepo)
		}
		repos = append(repos, repo)
	}

	prompt, err := render("tracked.tmpl", trackedData{Language: c.language, Repos: repos})
	if err != nil {
		return "", err
	}
	return c.generate(ctx, "summarize tracked", prompt)
}

// SummarizeHot writes a report on trending repositories.
func (c *Client) SummarizeHot(ctx context.Context, repos []model.Repository) (string, error) {
	items := make([]hotRepo, 0, len(repos))
	for _, r := range repos {
		item := hotRepo{
			Name:        r.FullName,
			Description: singleLine(r.Description),
			Stars:       r.Stars,
			Forks:       r.Forks,
			UpdatedAt:   "unknown",
		}
		if !r.UpdatedAt.IsZero() {
			item.UpdatedAt = r.UpdatedAt.UTC().Format("2006-01-02")
		}
		items = append(items, item)
	}

	prompt, err := render("hot.tmpl", hotData{Language: c.language, Repos: items})
	if err != nil {
		return "", err
	}
	return c.generate(ctx, "summarize hot", prompt)
}

func (c *Client) targetLanguage() string {
	if c.language == "" {
		return "English"
	}
	return c.language
}
