package llm

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/vitalq/internal/store"
)

var pickSchema = &Schema{
	Name: "test-pick",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"question_id": map[string]any{"type": "string"},
		},
		"required":             []any{"question_id"},
		"additionalProperties": false,
	},
}

func fastRetry(n int) RetryConfig {
	return RetryConfig{MaxAttempts: n, InitialWait: time.Millisecond, MaxWait: 2 * time.Millisecond, Multiplier: 2}
}

func TestMockProvider(t *testing.T) {
	m := NewMockProvider(MockResponse{Content: json.RawMessage(`{"question_id":"q1"}`), Usage: Usage{InputTokens: 4}})

	resp, err := m.Generate(context.Background(), Request{Schema: pickSchema})
	require.NoError(t, err)
	assert.JSONEq(t, `{"question_id":"q1"}`, string(resp.Content))
	assert.Equal(t, 4, resp.Usage.InputTokens)
	assert.Equal(t, "mock", resp.Model)

	_, err = m.Generate(context.Background(), Request{})
	var unavailable *ErrProviderUnavailable
	assert.ErrorAs(t, err, &unavailable, "empty queue")
	assert.Equal(t, 2, m.CallCount())
}

func TestMockProviderRejectsSchemaViolation(t *testing.T) {
	m := NewMockProvider(MockResponse{Content: json.RawMessage(`{"question_id":7}`)})
	_, err := m.Generate(context.Background(), Request{Schema: pickSchema})
	var invalid *ErrInvalidResponse
	assert.ErrorAs(t, err, &invalid)
}

func TestMockProviderDelayHonorsCancel(t *testing.T) {
	m := NewMockProvider(MockResponse{Content: json.RawMessage(`{}`), Delay: time.Minute})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := m.Generate(ctx, Request{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestValidateResponse(t *testing.T) {
	tests := []struct {
		name    string
		schema  *Schema
		raw     string
		wantErr bool
	}{
		{"nil schema", nil, `not json`, false},
		{"valid", pickSchema, `{"question_id":"q2"}`, false},
		{"missing field", pickSchema, `{}`, true},
		{"extra field", pickSchema, `{"question_id":"q2","x":1}`, true},
		{"not json", pickSchema, `{`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateResponse(tt.schema, json.RawMessage(tt.raw))
			if tt.wantErr {
				var invalid *ErrInvalidResponse
				assert.ErrorAs(t, err, &invalid)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRetryTransientThenSuccess(t *testing.T) {
	m := NewMockProvider(
		MockResponse{Err: &ErrProviderUnavailable{}},
		MockResponse{Err: &ErrRateLimit{RetryAfter: time.Millisecond}},
		MockResponse{Content: json.RawMessage(`{"question_id":"q1"}`)},
	)
	p := WithRetry(m, fastRetry(3))

	resp, err := p.Generate(context.Background(), Request{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"question_id":"q1"}`, string(resp.Content))
	assert.Equal(t, 3, m.CallCount())
	assert.Equal(t, "mock", p.ModelID())
}

func TestRetryGivesUp(t *testing.T) {
	tests := []struct {
		name      string
		responses []MockResponse
		attempts  int
		wantCalls int
	}{
		{
			name:      "max tokens is final",
			responses: []MockResponse{{Err: &ErrMaxTokensExceeded{}}, {Content: json.RawMessage(`{}`)}},
			attempts:  3,
			wantCalls: 1,
		},
		{
			name: "invalid response retried once",
			responses: []MockResponse{
				{Err: &ErrInvalidResponse{Err: errors.New("bad")}},
				{Err: &ErrInvalidResponse{Err: errors.New("bad")}},
				{Content: json.RawMessage(`{}`)},
			},
			attempts:  5,
			wantCalls: 2,
		},
		{
			name:      "attempts exhausted",
			responses: []MockResponse{{Err: &ErrProviderUnavailable{}}, {Err: &ErrProviderUnavailable{}}},
			attempts:  2,
			wantCalls: 2,
		},
		{
			name:      "deadline is final",
			responses: []MockResponse{{Err: context.DeadlineExceeded}, {Content: json.RawMessage(`{}`)}},
			attempts:  3,
			wantCalls: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMockProvider(tt.responses...)
			_, err := WithRetry(m, fastRetry(tt.attempts)).Generate(context.Background(), Request{})
			assert.Error(t, err)
			assert.Equal(t, tt.wantCalls, m.CallCount())
		})
	}
}

func TestRetryStopsOnCancel(t *testing.T) {
	m := NewMockProvider(MockResponse{Err: &ErrProviderUnavailable{}}, MockResponse{Content: json.RawMessage(`{}`)})
	cfg := RetryConfig{MaxAttempts: 2, InitialWait: time.Minute, MaxWait: time.Minute, Multiplier: 1}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := WithRetry(m, cfg).Generate(ctx, Request{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, m.CallCount())
}

func TestBackoffBounds(t *testing.T) {
	r := &RetryProvider{config: RetryConfig{InitialWait: 100 * time.Millisecond, MaxWait: 300 * time.Millisecond, Multiplier: 2}}
	for attempt := range 5 {
		d := r.backoff(attempt, errors.New("x"))
		assert.LessOrEqual(t, d, 360*time.Millisecond)
		assert.GreaterOrEqual(t, d, 80*time.Millisecond)
	}
	assert.Equal(t, 7*time.Second, r.backoff(0, &ErrRateLimit{RetryAfter: 7 * time.Second}))
}

type eventSink struct {
	mu     sync.Mutex
	events []store.LLMEvent
	err    error
}

func (s *eventSink) AppendLLMEvent(_ context.Context, ev store.LLMEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return s.err
}

func TestLoggingRecordsEvents(t *testing.T) {
	sink := &eventSink{}
	m := NewMockProvider(
		MockResponse{Content: json.RawMessage(`{"question_id":"q1"}`), Usage: Usage{InputTokens: 12, OutputTokens: 3}},
		MockResponse{Err: errors.New("upstream 500")},
	)
	p := WithLogging(m, ProviderMock, sink, nil)

	ctx := WithAssessment(WithPurpose(context.Background(), "next-question"), "a1")
	req := Request{
		System:   "pick one",
		Messages: []Message{{Role: RoleUser, Content: "candidates: q1"}},
		Schema:   pickSchema,
	}
	_, err := p.Generate(ctx, req)
	require.NoError(t, err)
	_, err = p.Generate(ctx, req)
	require.Error(t, err)

	require.Len(t, sink.events, 2)
	ok := sink.events[0]
	assert.True(t, ok.Success)
	assert.Equal(t, "a1", ok.AssessmentID)
	assert.Equal(t, "next-question", ok.Purpose)
	assert.Equal(t, ProviderMock, ok.Provider)
	assert.Equal(t, 12, ok.InputTokens)
	assert.Equal(t, 3, ok.OutputTokens)
	assert.Contains(t, ok.RequestBody, "[system]\npick one")
	assert.Contains(t, ok.RequestBody, "[user]\ncandidates: q1")
	assert.Contains(t, ok.RequestBody, "[schema: test-pick]")
	assert.JSONEq(t, `{"question_id":"q1"}`, ok.ResponseBody)

	failed := sink.events[1]
	assert.False(t, failed.Success)
	assert.Equal(t, "upstream 500", failed.ErrorMessage)
}

func TestLoggingFailureDoesNotFailRequest(t *testing.T) {
	sink := &eventSink{err: errors.New("disk full")}
	m := NewMockProvider(MockResponse{Content: json.RawMessage(`{}`)})
	_, err := WithLogging(m, ProviderMock, sink, nil).Generate(context.Background(), Request{})
	assert.NoError(t, err)
	assert.Equal(t, "unknown", sink.events[0].Purpose)
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("VITALQ_LLM_PROVIDER", "openai")
	t.Setenv("VITALQ_OPENAI_API_KEY", "sk-test")
	t.Setenv("VITALQ_OPENAI_MODEL", "gpt-4o")

	cfg := ConfigFromEnv()
	assert.Equal(t, ProviderOpenAI, cfg.Provider)
	assert.Equal(t, "sk-test", cfg.OpenAI.APIKey)
	assert.Equal(t, "gpt-4o", cfg.OpenAI.Model)
	assert.Equal(t, "claude-haiku", cfg.Anthropic.Model, "untouched default")
	assert.True(t, cfg.HasKey())
}

func TestDiscoverConfig(t *testing.T) {
	for _, k := range []string{"GEMINI_API_KEY", "OPENAI_API_KEY", "ANTHROPIC_API_KEY", "OPENROUTER_API_KEY"} {
		t.Setenv(k, "")
	}
	_, ok := DiscoverConfig()
	assert.False(t, ok)

	t.Setenv("ANTHROPIC_API_KEY", "a-key")
	t.Setenv("OPENROUTER_API_KEY", "or-key")
	cfg, ok := DiscoverConfig()
	require.True(t, ok)
	assert.Equal(t, ProviderAnthropic, cfg.Provider, "anthropic wins over openrouter")
	assert.Equal(t, "a-key", cfg.Anthropic.APIKey)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"mock needs no key", Config{Provider: ProviderMock}, ""},
		{"missing key", Config{Provider: ProviderGemini}, "API key is required"},
		{"unknown provider", Config{Provider: "llama"}, "unknown LLM provider"},
		{"ok", Config{Provider: ProviderOpenRouter, OpenRouter: OpenRouterConfig{APIKey: "k"}}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestNewProviderMock(t *testing.T) {
	sink := &eventSink{}
	p, err := NewProvider(context.Background(), Config{Provider: ProviderMock, Retry: fastRetry(1)}, sink, nil)
	require.NoError(t, err)
	assert.Equal(t, "mock", p.ModelID())

	_, err = NewProvider(context.Background(), Config{Provider: ProviderAnthropic}, sink, nil)
	assert.Error(t, err)
}
