package openai

import (
    "context"
    "errors"
    "fmt"
    "strings"

    "github.com/sashabaranov/go-openai"

    "github.com/fairlens/fairlens/internal/domain/insights"
    "github.com/fairlens/fairlens/internal/infra/ai/prompt"
)

const maxTokens = 2048

type Client struct {
    *openai.Client
    Model string
}

func NewClient(apiKey, model string) *Client {
    return &Client{Client: openai.NewClient(apiKey), Model: model}
}

func (c *Client) Summarize(ctx context.Context, resultJSON string) (string, error) {
    model := c.Model
    if model == "" {
        model = "o3-2025-04-16"
    }
    req := openai.ChatCompletionRequest{
        Model: model,
        ResponseFormat: &openai.ChatCompletionResponseFormat{
            Type: openai.ChatCompletionResponseFormatTypeJSONObject,
        },
        Messages: []openai.ChatCompletionMessage{
            {Role: openai.ChatMessageRoleSystem, Content: prompt.GetSystemPrompt()},
            {Role: openai.ChatMessageRoleUser, Content: prompt.GetUserPrompt(resultJSON)},
        },
    }
    // For reasoning models (o1/o3/o4/gpt-5*) use MaxCompletionTokens instead of MaxTokens
    if strings.HasPrefix(model, "o1") || strings.HasPrefix(model, "o3") || strings.HasPrefix(model, "o4") || strings.HasPrefix(model, "gpt-5") {
        req.MaxCompletionTokens = maxTokens
    } else {
        req.MaxTokens = maxTokens
    }

    resp, err := c.CreateChatCompletion(ctx, req)
    if err != nil {
        var apiErr *openai.APIError
        if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == 429 {
            return "", insights.ErrQuotaExceeded
        }
        return "", fmt.Errorf("failed to create chat completion: %w", err)
    }

    return resp.Choices[0].Message.Content, nil
}
