package llm

import (
	"context"

	"github.com/habiliai/memoryd/errors"
	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/shared"
)

// OpenAICompleter talks to OpenAI or any OpenAI-compatible router.
type OpenAICompleter struct {
	client      openai.Client
	model       string
	temperature float64
	maxTokens   int
}

var _ Completer = (*OpenAICompleter)(nil)

func NewOpenAICompleter(apiKey, baseURL, model string, temperature float64, maxTokens int) *OpenAICompleter {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAICompleter{
		client:      openai.NewClient(opts...),
		model:       model,
		temperature: temperature,
		maxTokens:   maxTokens,
	}
}

func (c *OpenAICompleter) Complete(ctx context.Context, req Request) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(req.System),
			openai.UserMessage(req.Prompt),
		},
		Temperature: openai.Float(c.temperature),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
	}
	if c.maxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(c.maxTokens))
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", errors.WrapKindf(err, errors.ErrProvider, "failed to complete with %s", c.model)
	}
	if len(resp.Choices) == 0 {
		return "", errors.Mark(errors.Errorf("%s returned no choices", c.model), errors.ErrProvider)
	}

	return resp.Choices[0].Message.Content, nil
}
