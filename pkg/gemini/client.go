// Package gemini asks Google's Gemini models which IANA zone a free-text place is in.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"google.golang.org/genai"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.5-flash-lite"

// Response is the structured answer for one place.
type Response struct {
	Timezone   string `json:"timezone"`
	Location   string `json:"location"`
	Confidence string `json:"confidence"` // "high", "medium", or "low"
}

// Cache stores answers keyed by model and prompt. *httpcache.Cache satisfies it.
type Cache interface {
	APICall(key string, payload []byte) ([]byte, bool)
	SetAPICall(key string, payload, data []byte) error
}

// Client is a Gemini API client.
type Client struct {
	cache      Cache
	logger     *slog.Logger
	generate   func(ctx context.Context, prompt string) (string, error)
	apiKey     string
	model      string
	gcpProject string
}

// NewClient creates a client. With no API key it uses Vertex AI with
// Application Default Credentials in gcpProject. cache may be nil.
func NewClient(apiKey, model, gcpProject string, cache Cache, logger *slog.Logger) *Client {
	if model == "" {
		model = DefaultModel
	}
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		apiKey:     apiKey,
		model:      strings.TrimPrefix(model, "models/"),
		gcpProject: gcpProject,
		cache:      cache,
		logger:     logger,
	}
	c.generate = c.generateWithSDK
	return c
}

// Enabled reports whether the client has credentials to try.
func (c *Client) Enabled() bool {
	return c != nil && (c.apiKey != "" || c.projectID() != "")
}

// ZoneForPlace returns Gemini's answer for place. The zone is checked against
// the local zone database before it is returned.
func (c *Client) ZoneForPlace(ctx context.Context, place string) (*Response, error) {
	prompt := PlacePrompt(place)
	cacheKey := "genai:" + c.model

	if c.cache != nil {
		if data, ok := c.cache.APICall(cacheKey, []byte(prompt)); ok {
			var cached Response
			if err := json.Unmarshal(data, &cached); err == nil && validate(&cached) == nil {
				c.logger.Debug("Gemini cache hit", "place", place, "timezone", cached.Timezone)
				return &cached, nil
			}
			c.logger.Debug("ignoring unusable cached Gemini response", "place", place)
		}
	}

	var text string
	err := retry.Do(
		func() error {
			var err error
			text, err = c.generate(ctx, prompt)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(100*time.Millisecond),
		retry.MaxDelay(2*time.Second),
		retry.DelayType(retry.FullJitterBackoffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(isTransientError),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Debug("retrying Gemini call", "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("gemini call: %w", err)
	}

	resp, err := parseResponse(text)
	if err != nil {
		c.logger.Warn("unusable Gemini response", "place", place, "error", err, "response_text", text)
		return nil, err
	}
	c.logger.Debug("Gemini answered", "place", place, "timezone", resp.Timezone,
		"location", resp.Location, "confidence", resp.Confidence)

	if c.cache != nil {
		if data, err := json.Marshal(resp); err == nil {
			if err := c.cache.SetAPICall(cacheKey, []byte(prompt), data); err != nil {
				c.logger.Debug("failed to cache Gemini response", "error", err)
			}
		}
	}
	return resp, nil
}

func (c *Client) generateWithSDK(ctx context.Context, prompt string) (string, error) {
	client, err := c.createClient(ctx)
	if err != nil {
		return "", retry.Unrecoverable(err)
	}

	temperature := float32(0.1)
	config := &genai.GenerateContentConfig{
		Temperature:      &temperature,
		MaxOutputTokens:  512,
		ResponseMIMEType: "application/json",
		ResponseSchema:   responseSchema(),
	}
	contents := []*genai.Content{{Role: "user", Parts: []*genai.Part{{Text: prompt}}}}

	resp, err := client.Models.GenerateContent(ctx, c.model, contents, config)
	if err != nil {
		return "", err
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return "", errors.New("empty response from Gemini API")
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 || candidate.Content.Parts[0].Text == "" {
		return "", errors.New("no content in Gemini response")
	}
	return candidate.Content.Parts[0].Text, nil
}

func (c *Client) createClient(ctx context.Context) (*genai.Client, error) {
	config := &genai.ClientConfig{Backend: genai.BackendGeminiAPI, APIKey: c.apiKey}
	if c.apiKey == "" {
		config = &genai.ClientConfig{
			Backend:  genai.BackendVertexAI,
			Project:  c.projectID(),
			Location: "us-central1",
		}
		c.logger.Debug("using Vertex AI with Application Default Credentials", "project", config.Project)
	}

	client, err := genai.NewClient(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return client, nil
}

func (c *Client) projectID() string {
	if c.gcpProject != "" {
		return c.gcpProject
	}
	if id := os.Getenv("GCP_PROJECT"); id != "" {
		return id
	}
	return os.Getenv("GOOGLE_CLOUD_PROJECT")
}

func responseSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"timezone": {
				Type:        genai.TypeString,
				Description: "IANA time zone identifier for the place, e.g. 'America/New_York' or 'Asia/Kolkata'",
			},
			"location": {
				Type:        genai.TypeString,
				Description: "The place as understood, e.g. 'Pune, India'",
			},
			"confidence": {
				Type:        genai.TypeString,
				Enum:        []string{"high", "medium", "low"},
				Description: "How certain the zone is: low when the place spans several zones or is ambiguous",
			},
		},
		PropertyOrdering: []string{"timezone", "location", "confidence"},
		Required:         []string{"timezone", "location", "confidence"},
	}
}

func isTransientError(err error) bool {
	s := strings.ToLower(err.Error())
	for _, indicator := range []string{
		"rate limit", "quota", "timeout", "deadline", "unavailable",
		"internal server error", "502", "503", "504",
	} {
		if strings.Contains(s, indicator) {
			return true
		}
	}
	return false
}

func parseResponse(text string) (*Response, error) {
	var resp Response
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		extracted, extractErr := extractJSON(text)
		if extractErr != nil {
			return nil, fmt.Errorf("parsing Gemini JSON response: %w", err)
		}
		if err := json.Unmarshal([]byte(extracted), &resp); err != nil {
			return nil, fmt.Errorf("parsing extracted Gemini JSON: %w", err)
		}
	}

	resp.Timezone = strings.TrimSpace(resp.Timezone)
	resp.Location = strings.TrimSpace(strings.ReplaceAll(resp.Location, "\n", " "))
	resp.Confidence = strings.ToLower(strings.TrimSpace(resp.Confidence))
	if err := validate(&resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func validate(resp *Response) error {
	if resp.Timezone == "" {
		return errors.New("gemini response missing timezone")
	}
	if resp.Timezone == "Local" {
		return fmt.Errorf("gemini returned unknown zone %q", resp.Timezone)
	}
	if _, err := time.LoadLocation(resp.Timezone); err != nil {
		return fmt.Errorf("gemini returned unknown zone %q: %w", resp.Timezone, err)
	}
	return nil
}

// extractJSON pulls a JSON object out of text that may wrap it in prose or a code fence.
func extractJSON(text string) (string, error) {
	if isValidJSON(text) {
		return text, nil
	}

	for _, fence := range []string{"```json", "```"} {
		if start := strings.Index(text, fence); start != -1 {
			start += len(fence)
			if end := strings.Index(text[start:], "```"); end != -1 {
				if s := strings.TrimSpace(text[start : start+end]); isValidJSON(s) {
					return s, nil
				}
			}
		}
	}

	if start := strings.Index(text, "{"); start != -1 {
		if end := strings.LastIndex(text, "}"); end > start {
			if s := text[start : end+1]; isValidJSON(s) {
				return s, nil
			}
		}
	}
	return "", errors.New("no valid JSON found in response")
}

func isValidJSON(s string) bool {
	var js map[string]any
	return json.Unmarshal([]byte(s), &js) == nil
}
