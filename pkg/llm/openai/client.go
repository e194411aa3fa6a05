// Package openai implements llm.Judge against an OpenAI-compatible chat
// completion API, prompting with "are these the same person?".
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/memscribe/memscribe/pkg/llm"
)

// Client is an OpenAI-compatible llm.Judge.
type Client struct {
	client *openai.Client
	model  string
}

// Config configures a Client. APIKey is required; Model defaults to
// "gpt-4o-mini".
type Config struct {
	APIKey  string
	Model   string
	BaseURL string
}

func NewClient(cfg *Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("llm: api key is required")
	}
	conf := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		conf.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &Client{client: openai.NewClientWithConfig(conf), model: model}, nil
}

type judgeResponse struct {
	Duplicate  bool   `json:"duplicate"`
	Confidence int    `json:"confidence"`
	Reason     string `json:"reason"`
}

// JudgeDuplicate satisfies llm.Judge.
func (c *Client) JudgeDuplicate(ctx context.Context, a, b string) (llm.JudgeResult, error) {
	prompt := fmt.Sprintf(
		"Are these the same person? Respond with a single JSON object of the form "+
			`{"duplicate": bool, "confidence": 0-100, "reason": "..."}`+" and nothing else.\n\n"+
			"Record A:\n%s\n\nRecord B:\n%s\n", a, b)

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature:    0,
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	})
	if err != nil {
		return llm.JudgeResult{}, fmt.Errorf("llm judge call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return llm.JudgeResult{}, errors.New("llm: judge returned no choices")
	}

	var parsed judgeResponse
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &parsed); err != nil {
		return llm.JudgeResult{}, fmt.Errorf("llm: judge returned unparsable JSON: %w", err)
	}

	return llm.JudgeResult{
		Duplicate:  parsed.Duplicate,
		Confidence: parsed.Confidence,
		Reason:     parsed.Reason,
	}, nil
}

func (c *Client) Close() error { return nil }
