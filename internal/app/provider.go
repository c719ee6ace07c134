package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/josephgoksu/TodoBuilder/internal/apperr"
	"github.com/josephgoksu/TodoBuilder/internal/codegen"
	"github.com/josephgoksu/TodoBuilder/internal/config"
	"github.com/josephgoksu/TodoBuilder/internal/llm"
)

// lazyProvider builds the chat model on first use, so registry commands work
// without LLM credentials. A failed build is retried on the next call.
type lazyProvider struct {
	cfg *config.Config

	mu       sync.Mutex
	provider codegen.Provider
}

func (p *lazyProvider) Complete(ctx context.Context, system, user string) (string, error) {
	inner, err := p.get(ctx)
	if err != nil {
		return "", err
	}
	return inner.Complete(ctx, system, user)
}

func (p *lazyProvider) get(ctx context.Context) (codegen.Provider, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.provider != nil {
		return p.provider, nil
	}
	llmCfg, err := p.cfg.ChatModel()
	if err != nil {
		return nil, apperr.Wrap(apperr.KindGeneration, "app.provider", err)
	}
	if llm.RequiresAPIKey(llmCfg.Provider) && llmCfg.APIKey == "" {
		return nil, apperr.New(apperr.KindGeneration,
			fmt.Sprintf("no API key configured for %s (set llm.apiKey or TODOBUILDER_LLM_APIKEY)", llmCfg.Provider))
	}
	m, err := llm.NewChatModel(ctx, llmCfg)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindGeneration, "app.provider", err)
	}
	p.provider = codegen.NewEinoProvider(m)
	return p.provider, nil
}
