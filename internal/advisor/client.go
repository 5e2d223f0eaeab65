package advisor

import (
	"context"
	"errors"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// Message is one conversation turn sent to the model.
type Message struct {
	Role    string
	Content string
}

// GenerateRequest is a single model invocation.
type GenerateRequest struct {
	System    string
	Messages  []Message
	MaxTokens int64
}

// TextGenerator produces model completions. The Anthropic API backs the
// real implementation; tests swap in a stub.
type TextGenerator interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

type anthropicGenerator struct {
	client anthropic.Client
	model  string
}

// NewAnthropicGenerator builds a generator backed by the Anthropic
// Messages API.
func NewAnthropicGenerator(apiKey, model string) TextGenerator {
	return &anthropicGenerator{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

func (g *anthropicGenerator) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	msgs := make([]anthropic.MessageParam, 0, len(req.Messages))
	for _, m := range req.Messages {
		block := anthropic.NewTextBlock(m.Content)
		if m.Role == "assistant" {
			msgs = append(msgs, anthropic.NewAssistantMessage(block))
		} else {
			msgs = append(msgs, anthropic.NewUserMessage(block))
		}
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(g.model),
		MaxTokens: req.MaxTokens,
		Messages:  msgs,
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	resp, err := g.client.Messages.New(ctx, params)
	if err != nil {
		return "", err
	}
	for _, block := range resp.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			return tb.Text, nil
		}
	}
	return "", errors.New("anthropic: response carried no text block")
}
