package assistant

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"medbot/internal/models"
	"medbot/internal/service/ai/aitest"
)

func drain(t *testing.T, s *Stream) ([]string, error) {
	t.Helper()
	var out []string
	for {
		fragment, err := s.Recv()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, fragment)
	}
}

func newTraced(fake *aitest.FakeChatModel) (*Assistant, *tracetest.SpanRecorder) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	return New(fake, WithTracerProvider(tp)), recorder
}

func TestStreamRelaysFragmentsInOrder(t *testing.T) {
	fake := &aitest.FakeChatModel{Chunks: []string{"Head", "aches ", "are common."}}
	a := New(fake)

	s, err := a.Stream(context.Background(), []models.Message{
		{Role: models.RoleUser, Content: "I have a headache"},
	})
	require.NoError(t, err)
	defer s.Close()

	got, err := drain(t, s)
	require.NoError(t, err)
	assert.Equal(t, []string{"Head", "aches ", "are common."}, got)

	_, err = s.Recv()
	assert.ErrorIs(t, err, io.EOF)
}

func TestStreamSendsSystemPromptAndFullHistory(t *testing.T) {
	fake := &aitest.FakeChatModel{Chunks: []string{"ok"}}
	history := []models.Message{
		{Role: models.RoleUser, Content: "hi"},
		{Role: models.RoleAssistant, Content: "Hello, how can I help?"},
		{Role: models.RoleUser, Content: "tell me about ibuprofen"},
	}
	s, err := New(fake).Stream(context.Background(), history)
	require.NoError(t, err)
	_, _ = drain(t, s)
	s.Close()

	calls := fake.Calls()
	require.Len(t, calls, 1)
	input := calls[0]
	require.Len(t, input, 4)
	assert.Equal(t, schema.System, input[0].Role)
	assert.Contains(t, input[0].Content, "Dosage: Adults: 200-400mg every 4-6 hours, max 1200mg/day")
	assert.NotContains(t, input[0].Content, ContextPlaceholder)
	for i, msg := range history {
		assert.Equal(t, msg.Content, input[i+1].Content)
	}
	assert.Equal(t, schema.Assistant, input[2].Role)

	opts := fake.Options()
	require.Len(t, opts, 1)
	require.NotNil(t, opts[0].Temperature)
	require.NotNil(t, opts[0].MaxTokens)
	assert.Equal(t, float32(0.3), *opts[0].Temperature)
	assert.Equal(t, 1000, *opts[0].MaxTokens)
}

func TestStreamEmptyHistoryStillForwarded(t *testing.T) {
	fake := &aitest.FakeChatModel{Chunks: []string{"Hello"}}
	s, err := New(fake).Stream(context.Background(), nil)
	require.NoError(t, err)
	defer s.Close()

	assert.Empty(t, s.Prompt().Latest)
	assert.True(t, s.Prompt().Matches.Empty())

	calls := fake.Calls()
	require.Len(t, calls, 1)
	require.Len(t, calls[0], 1)
	assert.Equal(t, RenderSystemPrompt(""), calls[0][0].Content)
	assert.Contains(t, calls[0][0].Content, "Use the following medical context when available: \n")
}

func TestStreamOpenErrorPropagates(t *testing.T) {
	upstream := errors.New("429 rate limited")
	fake := &aitest.FakeChatModel{OpenErr: upstream}
	a, recorder := newTraced(fake)

	s, err := a.Stream(context.Background(), []models.Message{{Role: models.RoleUser, Content: "fever"}})
	assert.Nil(t, s)
	require.Error(t, err)
	assert.ErrorIs(t, err, upstream)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
}

func TestStreamRecvErrorPropagates(t *testing.T) {
	upstream := errors.New("connection reset")
	fake := &aitest.FakeChatModel{Chunks: []string{"partial"}, RecvErr: upstream}
	a, recorder := newTraced(fake)

	s, err := a.Stream(context.Background(), []models.Message{{Role: models.RoleUser, Content: "hello"}})
	require.NoError(t, err)
	got, err := drain(t, s)
	assert.Equal(t, []string{"partial"}, got)
	assert.ErrorIs(t, err, upstream)
	s.Close()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
}

func TestStreamSpanAttributes(t *testing.T) {
	fake := &aitest.FakeChatModel{Chunks: []string{"a", "b"}}
	a, recorder := newTraced(fake)

	s, err := a.Stream(context.Background(), []models.Message{
		{Role: models.RoleUser, Content: "I have chest pain and a headache, took aspirin"},
	})
	require.NoError(t, err)
	_, _ = drain(t, s)
	s.Close()
	s.Close()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "assistant.stream", spans[0].Name())
	attrs := map[string]any{}
	for _, kv := range spans[0].Attributes() {
		attrs[string(kv.Key)] = kv.Value.AsInterface()
	}
	assert.Equal(t, int64(1), attrs["medbot.messages"])
	assert.Equal(t, int64(2), attrs["medbot.context.symptoms"])
	assert.Equal(t, int64(1), attrs["medbot.context.drugs"])
	assert.Equal(t, false, attrs["medbot.context.tips"])
	assert.Equal(t, int64(2), attrs["medbot.fragments"])
}

func TestStreamNilModel(t *testing.T) {
	_, err := New(nil).Stream(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNilModel)
}

func TestBuildPromptUsesLatestMessageOnly(t *testing.T) {
	p := BuildPrompt([]models.Message{
		{Role: models.RoleUser, Content: "I had a fever"},
		{Role: models.RoleAssistant, Content: "Sorry to hear that"},
		{Role: models.RoleUser, Content: "I have chest pain and a headache"},
	})
	assert.Equal(t, "I have chest pain and a headache", p.Latest)
	assert.Contains(t, p.System, "Symptom: chest pain")
	assert.Contains(t, p.System, "SEEK IMMEDIATE MEDICAL ATTENTION")
	assert.Contains(t, p.System, "Symptom: headache")
	assert.NotContains(t, p.System, "Symptom: fever")
	require.Len(t, p.Messages, 4)
}

func TestRenderSystemPromptReplacesOnce(t *testing.T) {
	got := RenderSystemPrompt("CTX {context}")
	assert.Equal(t, 1, strings.Count(got, "CTX"))
	assert.Contains(t, got, "Use the following medical context when available: CTX {context}\n")
	assert.True(t, strings.HasPrefix(got, "You are MedBot"))
	assert.Contains(t, got, "You are NOT a substitute for professional medical advice")
}
