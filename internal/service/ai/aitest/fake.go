// Package aitest provides a scripted chat model for tests.
package aitest

import (
	"context"
	"errors"
	"sync"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// FakeChatModel streams Chunks, then RecvErr if set. OpenErr fails the Stream
// call itself. Every call's input and options are recorded.
type FakeChatModel struct {
	Chunks  []string
	OpenErr error
	RecvErr error
	// Block, when non-nil, is waited on (or ctx.Done) before each chunk.
	Block chan struct{}

	mu    sync.Mutex
	calls [][]*schema.Message
	opts  []*model.Options
}

func (f *FakeChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	return nil, errors.New("aitest: Generate not supported")
}

func (f *FakeChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	f.mu.Lock()
	f.calls = append(f.calls, input)
	f.opts = append(f.opts, model.GetCommonOptions(nil, opts...))
	f.mu.Unlock()
	if f.OpenErr != nil {
		return nil, f.OpenErr
	}

	sr, sw := schema.Pipe[*schema.Message](len(f.Chunks) + 1)
	go func() {
		defer sw.Close()
		for _, chunk := range f.Chunks {
			if f.Block != nil {
				select {
				case <-f.Block:
				case <-ctx.Done():
					sw.Send(nil, ctx.Err())
					return
				}
			}
			if closed := sw.Send(schema.AssistantMessage(chunk, nil), nil); closed {
				return
			}
		}
		if f.RecvErr != nil {
			sw.Send(nil, f.RecvErr)
		}
	}()
	return sr, nil
}

// Calls returns the message lists passed to Stream, in call order.
func (f *FakeChatModel) Calls() [][]*schema.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]*schema.Message(nil), f.calls...)
}

// Options returns the resolved common options of each Stream call.
func (f *FakeChatModel) Options() []*model.Options {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*model.Options(nil), f.opts...)
}
