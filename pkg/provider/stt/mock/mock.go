// Package mock provides a test double for [stt.Provider].
//
// Example:
//
//	p := &mock.Provider{Result: stt.Transcript{Text: "hello there"}}
//	t, _ := p.Transcribe(ctx, stt.Request{Clip: clip})
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/fluentforge/pkg/provider/stt"
)

// Provider is a mock implementation of stt.Provider.
type Provider struct {
	mu sync.Mutex

	// Result is returned by every Transcribe call.
	Result stt.Transcript

	// Err, if non-nil, is returned instead of Result.
	Err error

	// Calls records every request in order.
	Calls []stt.Request
}

var _ stt.Provider = (*Provider)(nil)

// Transcribe records the request and returns Result, Err.
func (p *Provider) Transcribe(_ context.Context, req stt.Request) (stt.Transcript, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = append(p.Calls, req)
	if p.Err != nil {
		return stt.Transcript{}, p.Err
	}
	return p.Result, nil
}

// CallCount returns the number of Transcribe calls. Thread-safe.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Calls)
}
