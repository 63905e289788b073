package mock

import (
	"context"
	"sync"

	"github.com/kamal-haider/ai-consensus-cli/internal/llm"
)

// Provider is a deterministic test double implementing llm.Provider.
// CompleteFn takes precedence; otherwise Scripted replies are returned in
// order, cycling once exhausted.
type Provider struct {
	NameValue   string
	JSONSupport bool
	CompleteFn  func(ctx context.Context, req llm.Request) (string, error)
	Scripted    []ScriptedReply

	mu    sync.Mutex
	calls int
}

// ScriptedReply is one canned response or error.
type ScriptedReply struct {
	Raw string
	Err error
}

func (p *Provider) Name() string {
	if p.NameValue != "" {
		return p.NameValue
	}
	return "mock"
}

func (p *Provider) SupportsJSON() bool {
	return p.JSONSupport
}

func (p *Provider) Complete(ctx context.Context, req llm.Request) (string, error) {
	p.mu.Lock()
	call := p.calls
	p.calls++
	p.mu.Unlock()

	if p.CompleteFn != nil {
		return p.CompleteFn(ctx, req)
	}
	if len(p.Scripted) == 0 {
		return `{"answer": "mock answer"}`, nil
	}
	reply := p.Scripted[call%len(p.Scripted)]
	if reply.Err != nil {
		return "", reply.Err
	}
	return reply.Raw, nil
}

// Calls reports how many times Complete has been invoked.
func (p *Provider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}
