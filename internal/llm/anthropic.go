package llm

import (
	"context"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/habiliai/memoryd/errors"
)

type AnthropicCompleter struct {
	client      anthropic.Client
	model       string
	temperature float64
	maxTokens   int
}

var _ Completer = (*AnthropicCompleter)(nil)

func NewAnthropicCompleter(apiKey, model string, temperature float64, maxTokens int) *AnthropicCompleter {
	if maxTokens <= 0 {
		maxTokens = 2048
	}
	return &AnthropicCompleter{
		client:      anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:       model,
		temperature: temperature,
		maxTokens:   maxTokens,
	}
}

func (c *AnthropicCompleter) Complete(ctx context.Context, req Request) (string, error) {
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		MaxTokens:   int64(c.maxTokens),
		Temperature: anthropic.Float(c.temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if strings.TrimSpace(req.System) != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", errors.WrapKindf(err, errors.ErrProvider, "failed to complete with %s", c.model)
	}

	var sb strings.Builder
	for _, content := range resp.Content {
		if block, ok := content.AsAny().(anthropic.TextBlock); ok {
			sb.WriteString(block.Text)
		}
	}
	return sb.String(), nil
}
