package codegen

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// Provider turns a prompt into raw model output.
type Provider interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// EinoProvider adapts an Eino chat model.
type EinoProvider struct {
	model model.BaseChatModel
}

// NewEinoProvider wraps m.
func NewEinoProvider(m model.BaseChatModel) *EinoProvider {
	return &EinoProvider{model: m}
}

func (p *EinoProvider) Complete(ctx context.Context, system, user string) (string, error) {
	messages := []*schema.Message{
		schema.SystemMessage(system),
		schema.UserMessage(user),
	}
	resp, err := p.model.Generate(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("LLM generate: %w", err)
	}
	if resp == nil {
		return "", fmt.Errorf("LLM generate: empty response")
	}
	return resp.Content, nil
}
