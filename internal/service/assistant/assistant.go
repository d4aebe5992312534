// Package assistant relays a conversation to the chat model: it splices the
// knowledge context into the system prompt and hands back the model's stream.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"medbot/internal/models"
)

const (
	// Temperature is kept low for consistent, conservative wording.
	Temperature float32 = 0.3
	MaxTokens           = 1000

	tracerName = "medbot/assistant"
)

var ErrNilModel = errors.New("assistant: chat model is nil")

// Assistant is safe for concurrent use; it keeps no per-request state.
type Assistant struct {
	chatModel model.BaseChatModel
	tracer    trace.Tracer
}

type Option func(*Assistant)

// WithTracerProvider overrides the global tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(a *Assistant) {
		a.tracer = tp.Tracer(tracerName)
	}
}

func New(chatModel model.BaseChatModel, opts ...Option) *Assistant {
	a := &Assistant{
		chatModel: chatModel,
		tracer:    otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Stream builds the prompt for history and opens one streaming completion.
// The caller must Close the returned stream. Provider errors are returned
// wrapped, never retried.
func (a *Assistant) Stream(ctx context.Context, history []models.Message) (*Stream, error) {
	if a == nil || a.chatModel == nil {
		return nil, ErrNilModel
	}
	prompt := BuildPrompt(history)

	ctx, span := a.tracer.Start(ctx, "assistant.stream", trace.WithAttributes(
		attribute.Int("medbot.messages", len(history)),
		attribute.Int("medbot.context.symptoms", len(prompt.Matches.Symptoms)),
		attribute.Int("medbot.context.drugs", len(prompt.Matches.Drugs)),
		attribute.Bool("medbot.context.tips", len(prompt.Matches.Tips) > 0),
	))

	reader, err := a.chatModel.Stream(ctx, prompt.Messages,
		model.WithTemperature(Temperature),
		model.WithMaxTokens(MaxTokens),
	)
	if err != nil {
		err = fmt.Errorf("open model stream: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.End()
		return nil, err
	}
	return &Stream{reader: reader, span: span, prompt: prompt}, nil
}

// Stream is a finite, single-use sequence of response fragments.
type Stream struct {
	reader    *schema.StreamReader[*schema.Message]
	span      trace.Span
	prompt    Prompt
	fragments int
	once      sync.Once
}

// Prompt returns the prompt the stream was opened with.
func (s *Stream) Prompt() Prompt {
	return s.prompt
}

// Recv returns the next fragment as the provider sent it. It returns io.EOF once
// the provider signals completion.
func (s *Stream) Recv() (string, error) {
	chunk, err := s.reader.Recv()
	if errors.Is(err, io.EOF) {
		s.finish(nil)
		return "", io.EOF
	}
	if err != nil {
		err = fmt.Errorf("receive model stream: %w", err)
		s.finish(err)
		return "", err
	}
	if chunk == nil {
		return "", nil
	}
	s.fragments++
	return chunk.Content, nil
}

// Close releases the provider stream. Safe to call more than once.
func (s *Stream) Close() {
	s.finish(nil)
}

func (s *Stream) finish(err error) {
	s.once.Do(func() {
		s.reader.Close()
		s.span.SetAttributes(attribute.Int("medbot.fragments", s.fragments))
		if err != nil {
			s.span.RecordError(err)
			s.span.SetStatus(codes.Error, err.Error())
		}
		s.span.End()
	})
}
