// Package llm suggests scores for essay answers using an OpenAI-compatible
// chat completion API. Suggestions are advisory: a teacher still records the
// final grade.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/pavelanni/coursehub/internal/llm/prompts"
	"github.com/pavelanni/coursehub/internal/model"

	openai "github.com/sashabaranov/go-openai"
)

// Suggestion holds the model's assessment of a single essay answer.
type Suggestion struct {
	Score    float64 `json:"score"`
	Feedback string  `json:"feedback"`
}

// Client wraps an OpenAI-compatible API client.
type Client struct {
	api     *openai.Client
	model   string
	variant prompts.PromptVariant
}

// New creates a new LLM client. An empty variant selects the standard prompt.
func New(baseURL, apiKey, modelName, variant string) (*Client, error) {
	if variant == "" {
		variant = string(prompts.PromptStandard)
	}
	if !prompts.IsValidVariant(variant) {
		return nil, fmt.Errorf("unknown prompt variant %q", variant)
	}
	if err := prompts.Load(prompts.Templates); err != nil {
		return nil, err
	}
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &Client{
		api:     openai.NewClientWithConfig(config),
		model:   modelName,
		variant: prompts.PromptVariant(variant),
	}, nil
}

// Ping checks that the API is reachable.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.api.ListModels(ctx); err != nil {
		return fmt.Errorf("LLM API unreachable: %w", err)
	}
	return nil
}

// SuggestEssayScore asks the model to grade an essay answer. The returned
// score is clamped to the question's points.
func (c *Client) SuggestEssayScore(ctx context.Context, q model.Question, answer string) (*Suggestion, error) {
	prompt, err := prompts.BuildGradePrompt(c.variant, q, answer)
	if err != nil {
		return nil, err
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.1,
	})
	if err != nil {
		return nil, fmt.Errorf("LLM grading API call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("LLM returned no choices for grading")
	}

	raw := resp.Choices[0].Message.Content
	slog.Debug("LLM response", "question_id", q.ID, "raw", raw)

	var s Suggestion
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil, fmt.Errorf("parse grading response: %w (raw: %s)", err, raw)
	}
	s.Score = clampScore(s.Score, q.Points)
	return &s, nil
}

func clampScore(score float64, points int) float64 {
	if math.IsNaN(score) || score < 0 {
		return 0
	}
	return math.Min(score, float64(points))
}
