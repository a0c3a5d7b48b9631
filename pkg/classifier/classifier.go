// Package classifier calls a chat-completions API to assess the importance of
// a page to the configured audience. The response is modeled as a tagged
// result: either a structured assessment or the raw, unusable text. Callers
// map unstructured results onto the zero assessment; this package never
// guesses at malformed output.
package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/amosWeiskopf/sitescout/internal/models"
)

const systemPrompt = `You are analyzing webpages from a single website on behalf of a specific audience.
Given a page's URL, title and content, return JSON with exactly this shape:
{
  "importance_score": 0.0-1.0,
  "tags": ["short", "topic", "labels"],
  "abstract": "100-word summary of the key content",
  "recommended_links": [{"url": "absolute url", "priority": 0.0-1.0, "kind": "navigation|content|application|resource|other"}],
  "related_topics": ["broader topics this page relates to"]
}
Score how important this page is to the audience. Recommend only links worth exploring next.`

const analysisPrompt = `You are analyzing one page from a website on behalf of a specific audience.
Extract and structure the valuable content, excluding navigation and boilerplate.
Return JSON with exactly this shape:
{
  "sections": [{"text": "content (max 1000 chars)", "type": "category name", "context": "brief context"}],
  "program_info": {
    "key_points": ["point1", "point2"],
    "requirements": ["req1", "req2"]
  }
}
Keep related information together and preserve the content hierarchy. If the page
is an error page or holds no meaningful content, return an empty sections array.`

// Error is a classification failure for one URL. Classification failures are
// expected and degrade to the zero assessment at the pipeline level.
type Error struct {
	URL   string
	Cause error
}

func (e *Error) Error() string {
	return fmt.Sprintf("classify %s: %v", e.URL, e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Result is the tagged outcome of one classification call.
type Result struct {
	// Structured is true when the response parsed into an Assessment.
	Structured bool
	Assessment models.Assessment
	// Raw holds the response text when Structured is false.
	Raw string
	// TokensUsed is the metered cost of the call, from the API usage block
	// or estimated at one token per four characters when absent.
	TokensUsed int
}

// AnalysisResult is the tagged outcome of one deep-analysis call.
type AnalysisResult struct {
	// Structured is true when the response parsed into a PageAnalysis.
	Structured bool
	Analysis   models.PageAnalysis
	// Raw holds the response text when Structured is false.
	Raw string
	// TokensUsed is the metered cost of the call.
	TokensUsed int
}

// Options configures a Client. The API key and endpoint are injected at
// construction; there is no process-wide client state.
type Options struct {
	APIKey            string
	BaseURL           string
	Model             string
	Temperature       float64
	MaxRetries        int
	ContentCharBudget int
	// AnalysisCharBudget bounds the content sent to the deep-analysis call,
	// which works on much larger prefixes than classification.
	AnalysisCharBudget int
}

// Client is a chat-completions classifier client.
type Client struct {
	httpClient *http.Client
	opts       Options
	logger     *log.Logger
}

// New creates a classifier Client.
func New(opts Options, logger *log.Logger) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.openai.com/v1"
	}
	if opts.Model == "" {
		opts.Model = "gpt-4o-mini"
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.ContentCharBudget <= 0 {
		opts.ContentCharBudget = 8000
	}
	if opts.AnalysisCharBudget <= 0 {
		opts.AnalysisCharBudget = 24000
	}
	return &Client{
		httpClient: &http.Client{Timeout: 120 * time.Second},
		opts:       opts,
		logger:     logger.With("component", "classifier"),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    float64       `json:"temperature"`
	ResponseFormat struct {
		Type string `json:"type"`
	} `json:"response_format"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// Classify assesses one page. The content is truncated to the configured
// character budget before the call; anything beyond it is never seen by the
// model. Transport and API failures are retried with exponential backoff and
// jitter; exhausted retries return an *Error.
func (c *Client) Classify(ctx context.Context, pageURL, title, content string) (Result, error) {
	if len(content) > c.opts.ContentCharBudget {
		content = content[:c.opts.ContentCharBudget]
	}

	raw, tokens, err := c.complete(ctx, pageURL, systemPrompt, title, content)
	if err != nil {
		return Result{}, &Error{URL: pageURL, Cause: err}
	}

	assessment, ok := parseAssessment(raw)
	if !ok {
		c.logger.Warn("unstructured classifier response", "url", pageURL, "response_prefix", prefix(raw, 120))
		return Result{Raw: raw, TokensUsed: tokens}, nil
	}

	return Result{Structured: true, Assessment: assessment, TokensUsed: tokens}, nil
}

// Analyze runs the deep-analysis pass for one ranked page, restructuring its
// content into typed sections and program facts. Same transport and retry
// contract as Classify; a response without sections is unstructured and the
// caller skips the page.
func (c *Client) Analyze(ctx context.Context, pageURL, title, content string) (AnalysisResult, error) {
	if len(content) > c.opts.AnalysisCharBudget {
		content = content[:c.opts.AnalysisCharBudget]
	}

	raw, tokens, err := c.complete(ctx, pageURL, analysisPrompt, title, content)
	if err != nil {
		return AnalysisResult{}, &Error{URL: pageURL, Cause: err}
	}

	analysis, ok := parseAnalysis(raw)
	if !ok {
		c.logger.Warn("unstructured analysis response", "url", pageURL, "response_prefix", prefix(raw, 120))
		return AnalysisResult{Raw: raw, TokensUsed: tokens}, nil
	}

	return AnalysisResult{Structured: true, Analysis: analysis, TokensUsed: tokens}, nil
}

// complete posts one system+page exchange and returns the response text and
// metered token cost.
func (c *Client) complete(ctx context.Context, pageURL, system, title, content string) (string, int, error) {
	payload, err := json.Marshal(map[string]string{
		"url":     pageURL,
		"title":   title,
		"content": content,
	})
	if err != nil {
		return "", 0, err
	}

	reqBody := chatRequest{
		Model:       c.opts.Model,
		Temperature: c.opts.Temperature,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: string(payload)},
		},
	}
	reqBody.ResponseFormat.Type = "json_object"

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", 0, err
	}

	resp, err := c.send(ctx, pageURL, body)
	if err != nil {
		return "", 0, err
	}
	if len(resp.Choices) == 0 {
		return "", 0, fmt.Errorf("empty choices in response")
	}

	tokens := resp.Usage.TotalTokens
	if tokens == 0 {
		// Usage block absent; estimate one token per four characters.
		tokens = (len(content) + len(system)) / 4
	}
	return resp.Choices[0].Message.Content, tokens, nil
}

// send posts the request, retrying transport errors and non-200 statuses with
// exponential backoff plus jitter.
func (c *Client) send(ctx context.Context, pageURL string, body []byte) (*chatResponse, error) {
	endpoint := strings.TrimSuffix(c.opts.BaseURL, "/") + "/chat/completions"
	baseDelay := time.Second

	var lastErr error
	for attempt := 0; attempt < c.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := baseDelay * time.Duration(1<<uint(attempt-1))
			delay += time.Duration(rand.Int63n(int64(delay)/2 + 1))
			c.logger.Debug("retrying classifier request", "url", pageURL, "attempt", attempt, "delay", delay)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.opts.APIKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode != http.StatusOK {
			msg, _ := readBody(resp)
			lastErr = fmt.Errorf("api status %d: %s", resp.StatusCode, prefix(msg, 200))
			continue
		}

		var decoded chatResponse
		err = json.NewDecoder(resp.Body).Decode(&decoded)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}
		return &decoded, nil
	}
	return nil, fmt.Errorf("after %d attempts: %w", c.opts.MaxRetries, lastErr)
}

func readBody(resp *http.Response) (string, error) {
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	return string(b), err
}

// assessmentPayload mirrors the model's JSON, tolerating both the numeric and
// the high/medium/low string forms of link priority.
type assessmentPayload struct {
	ImportanceScore  float64  `json:"importance_score"`
	Tags             []string `json:"tags"`
	Abstract         string   `json:"abstract"`
	RecommendedLinks []struct {
		URL      string        `json:"url"`
		Priority priorityValue `json:"priority"`
		Kind     string        `json:"kind"`
	} `json:"recommended_links"`
	RelatedTopics []string `json:"related_topics"`
}

type priorityValue float64

func (p *priorityValue) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		switch strings.ToLower(s) {
		case "high":
			*p = 0.9
		case "medium":
			*p = 0.6
		case "low":
			*p = 0.3
		default:
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return err
			}
			*p = priorityValue(v)
		}
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*p = priorityValue(v)
	return nil
}

// parseAssessment attempts to decode the response text into an Assessment,
// stripping markdown code fences first. Models occasionally wrap JSON in
// fences despite json_object mode.
func parseAssessment(raw string) (models.Assessment, bool) {
	text := stripCodeFences(raw)

	var payload assessmentPayload
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		return models.Assessment{}, false
	}

	a := models.ZeroAssessment()
	a.ImportanceScore = payload.ImportanceScore
	a.Abstract = payload.Abstract
	if payload.Tags != nil {
		a.Tags = payload.Tags
	}
	if payload.RelatedTopics != nil {
		a.RelatedTopics = payload.RelatedTopics
	}
	for _, l := range payload.RecommendedLinks {
		if l.URL == "" {
			continue
		}
		a.RecommendedLinks = append(a.RecommendedLinks, models.RecommendedLink{
			URL:      l.URL,
			Priority: float64(l.Priority),
			Kind:     models.ParseLinkKind(l.Kind),
		})
	}
	return a, true
}

// analysisPayload mirrors the deep-analysis JSON shape.
type analysisPayload struct {
	Sections    []models.AnalysisSection `json:"sections"`
	ProgramInfo struct {
		KeyPoints    []string `json:"key_points"`
		Requirements []string `json:"requirements"`
	} `json:"program_info"`
}

// parseAnalysis decodes the deep-analysis response. A decodable document with
// no sections means the model judged the page empty or invalid; that counts
// as unstructured so the caller skips it.
func parseAnalysis(raw string) (models.PageAnalysis, bool) {
	text := stripCodeFences(raw)

	var payload analysisPayload
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		return models.PageAnalysis{}, false
	}
	if len(payload.Sections) == 0 {
		return models.PageAnalysis{}, false
	}

	return models.PageAnalysis{
		Sections:     payload.Sections,
		KeyPoints:    payload.ProgramInfo.KeyPoints,
		Requirements: payload.ProgramInfo.Requirements,
	}, true
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.Contains(s, "```") {
		return s
	}
	parts := strings.Split(s, "```")
	if len(parts) < 2 {
		return s
	}
	inner := parts[1]
	inner = strings.TrimPrefix(inner, "json")
	return strings.TrimSpace(inner)
}

func prefix(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
