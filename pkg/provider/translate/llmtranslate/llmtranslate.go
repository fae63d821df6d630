// Package llmtranslate implements translate.Provider on top of an LLM.
// It serves as a fallback when no dedicated translation service is available.
package llmtranslate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MrWong99/interviewpilot/pkg/provider/llm"
	"github.com/MrWong99/interviewpilot/pkg/provider/translate"
)

const instruction = "You are a translation engine. Translate the user's text into the language with code %s. " +
	"Reply with the translation only, without quotes, notes or explanations."

// Provider translates by prompting an LLM.
type Provider struct {
	llm       llm.Provider
	maxTokens int
}

var _ translate.Provider = (*Provider)(nil)

// New wraps p. p must not be nil.
func New(p llm.Provider) (*Provider, error) {
	if p == nil {
		return nil, errors.New("llmtranslate: llm provider must not be nil")
	}
	return &Provider{llm: p, maxTokens: p.Capabilities().ClampMaxTokens(1024)}, nil
}

// Translate implements translate.Provider.
func (p *Provider) Translate(ctx context.Context, req translate.Request) (translate.Result, error) {
	if req.TargetLang == "" {
		return translate.Result{}, errors.New("llmtranslate: target language must not be empty")
	}
	resp, err := p.llm.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: fmt.Sprintf(instruction, strings.ToUpper(req.TargetLang)),
		Messages:     []llm.Message{{Role: llm.RoleUser, Content: req.Text}},
		MaxTokens:    p.maxTokens,
	})
	if err != nil {
		return translate.Result{}, fmt.Errorf("llmtranslate: %w", err)
	}
	if resp == nil {
		return translate.Result{}, errors.New("llmtranslate: empty response")
	}
	return translate.Result{Text: strings.TrimSpace(resp.Content), DetectedSourceLang: req.SourceLang}, nil
}
