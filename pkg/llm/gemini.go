package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// GeminiClient handles communication with Google's Gemini API for both
// text-only (Planner) and multimodal (Evaluator) turns.
type GeminiClient struct {
	client  *genai.Client
	model   string
	limiter *rate.Limiter
}

// Options configures retry and rate-limit behavior; DefaultOptions() is
// appropriate for interactive single-run use.
type Options struct {
	// RequestsPerSecond bounds outgoing calls; the evaluator's
	// exploration loop is the heaviest caller (spec §4.10, up to 15
	// steps per iteration).
	RequestsPerSecond float64
	// Burst allows short bursts above RequestsPerSecond.
	Burst int
	// MaxElapsed is carried in Options but not read by GeminiClient: Chat
	// retries at most 3 times within its own 120s timeout, and ChatStream
	// does not retry.
	MaxElapsed time.Duration
}

// DefaultOptions mirrors a conservative single-key quota.
func DefaultOptions() Options {
	return Options{RequestsPerSecond: 2, Burst: 2, MaxElapsed: 60 * time.Second}
}

// NewGeminiClient creates a client with the given API key and model. The
// default model is "gemini-2.5-pro" if none is specified.
func NewGeminiClient(apiKey, model string, opts Options) (*GeminiClient, error) {
	if model == "" {
		model = "gemini-2.5-pro"
	}
	if opts.RequestsPerSecond <= 0 {
		opts = DefaultOptions()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiClient{
		client:  client,
		model:   model,
		limiter: rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), opts.Burst),
	}, nil
}

// convertMessages converts our Message type to Gemini Content, attaching
// inline image Parts ahead of the text part for any message that carries
// them (the convention genai expects for multimodal turns).
func (c *GeminiClient) convertMessages(messages []Message) []*genai.Content {
	var contents []*genai.Content

	for _, msg := range messages {
		role := string(msg.Role)
		if msg.Role == RoleModel {
			role = "model"
		} else {
			role = "user"
		}

		var parts []*genai.Part
		for _, img := range msg.Images {
			parts = append(parts, genai.NewPartFromBytes(img.Data, img.MIMEType))
		}
		if msg.Content != "" {
			parts = append(parts, genai.NewPartFromText(msg.Content))
		}

		contents = append(contents, &genai.Content{Role: role, Parts: parts})
	}

	return contents
}

func (c *GeminiClient) extractSystemInstruction(messages []Message) (string, []Message) {
	var systemInstruction string
	var remaining []Message

	for _, msg := range messages {
		if msg.Role == RoleSystem {
			if systemInstruction != "" {
				systemInstruction += "\n\n"
			}
			systemInstruction += msg.Content
		} else {
			remaining = append(remaining, msg)
		}
	}

	return systemInstruction, remaining
}

func (c *GeminiClient) buildConfig(systemInstruction string) *genai.GenerateContentConfig {
	if systemInstruction == "" {
		return nil
	}
	return &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{genai.NewPartFromText(systemInstruction)},
		},
	}
}

// Chat sends a non-streaming request, possibly multimodal, and returns the
// complete text response. Transient failures are retried with exponential
// backoff; the call also waits on the client's rate limiter.
func (c *GeminiClient) Chat(messages []Message) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("gemini: rate limiter: %w", err)
	}

	systemInstruction, conversationMessages := c.extractSystemInstruction(messages)
	contents := c.convertMessages(conversationMessages)
	config := c.buildConfig(systemInstruction)

	var text string
	op := func() error {
		response, err := c.client.Models.GenerateContent(ctx, c.model, contents, config)
		if err != nil {
			return err
		}
		text = response.Text()
		if text == "" {
			return backoff.Permanent(&emptyResponseError{})
		}
		return nil
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	if err := backoff.Retry(op, bo); err != nil {
		if _, ok := err.(*emptyResponseError); ok {
			return "", err
		}
		return "", fmt.Errorf("gemini (model: %s) request failed: %w", c.model, err)
	}

	return text, nil
}

type emptyResponseError struct{}

func (e *emptyResponseError) Error() string { return "gemini: empty response" }

// ChatStream sends a streaming request and calls callback for each chunk.
func (c *GeminiClient) ChatStream(messages []Message, callback StreamCallback) (string, error) {
	ctx := context.Background()

	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("gemini: rate limiter: %w", err)
	}

	systemInstruction, conversationMessages := c.extractSystemInstruction(messages)
	contents := c.convertMessages(conversationMessages)
	config := c.buildConfig(systemInstruction)

	var fullContent string
	for response, err := range c.client.Models.GenerateContentStream(ctx, c.model, contents, config) {
		if err != nil {
			if fullContent != "" {
				return fullContent, fmt.Errorf("streaming interrupted: %w", err)
			}
			return "", fmt.Errorf("gemini streaming failed: %w", err)
		}

		chunk := response.Text()
		if chunk != "" {
			fullContent += chunk
			if callback != nil {
				callback(chunk)
			}
		}
	}

	return fullContent, nil
}

// CheckConnection verifies that the Gemini API is accessible.
func (c *GeminiClient) CheckConnection() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	contents := []*genai.Content{
		{Role: "user", Parts: []*genai.Part{genai.NewPartFromText("ping")}},
	}

	_, err := c.client.Models.GenerateContent(ctx, c.model, contents, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to Gemini API: %w", err)
	}
	return nil
}

// GetModel returns the model identifier in use.
func (c *GeminiClient) GetModel() string {
	return c.model
}
