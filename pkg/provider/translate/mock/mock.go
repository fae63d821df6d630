// Package mock provides a test double for the translate.Provider interface.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/interviewpilot/pkg/provider/translate"
)

// Provider is a mock implementation of translate.Provider.
type Provider struct {
	mu sync.Mutex

	// Result is returned by Translate.
	Result translate.Result

	// Err, if non-nil, is returned as the error from Translate.
	Err error

	// TranslateFunc, if set, takes precedence over Result and Err.
	TranslateFunc func(ctx context.Context, req translate.Request) (translate.Result, error)

	// Calls records every request passed to Translate.
	Calls []translate.Request
}

var _ translate.Provider = (*Provider)(nil)

// Translate records the request and returns Result, Err.
func (p *Provider) Translate(ctx context.Context, req translate.Request) (translate.Result, error) {
	p.mu.Lock()
	p.Calls = append(p.Calls, req)
	fn, res, err := p.TranslateFunc, p.Result, p.Err
	p.mu.Unlock()
	if fn != nil {
		return fn(ctx, req)
	}
	return res, err
}

// CallCount returns the number of Translate calls.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Calls)
}
