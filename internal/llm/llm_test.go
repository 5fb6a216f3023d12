package llm

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/lexiz/internal/store"
)

func hintTestSchema() *Schema {
	return MustSchema("test-hint", "A mnemonic", map[string]any{
		"type": "object",
		"properties": map[string]any{
			"mnemonic": map[string]any{"type": "string", "minLength": 1},
			"kind":     map[string]any{"type": "string", "enum": []any{"sound", "image"}},
		},
		"required":             []any{"mnemonic"},
		"additionalProperties": false,
	})
}

func TestSchema_Validate(t *testing.T) {
	s := hintTestSchema()

	tests := []struct {
		name  string
		raw   string
		valid bool
	}{
		{"all fields", `{"mnemonic":"gato sounds like got-o","kind":"sound"}`, true},
		{"required only", `{"mnemonic":"m"}`, true},
		{"missing required", `{"kind":"sound"}`, false},
		{"empty string", `{"mnemonic":""}`, false},
		{"bad enum", `{"mnemonic":"m","kind":"smell"}`, false},
		{"extra field", `{"mnemonic":"m","x":1}`, false},
		{"not json", `mnemonic`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.Validate(json.RawMessage(tt.raw))
			if tt.valid {
				assert.NoError(t, err)
				return
			}
			var inv *ErrInvalidResponse
			assert.True(t, errors.As(err, &inv), "want ErrInvalidResponse, got %v", err)
		})
	}
}

func TestSchema_NilAcceptsAnything(t *testing.T) {
	var s *Schema
	assert.NoError(t, s.Validate(json.RawMessage(`not json`)))
}

func TestSchema_LiteralCompilesOnDemand(t *testing.T) {
	s := &Schema{Name: "lit", Definition: map[string]any{"type": "integer"}}
	assert.NoError(t, s.Validate(json.RawMessage(`3`)))
	assert.Error(t, s.Validate(json.RawMessage(`"3"`)))
}

func TestNewSchema_RejectsBrokenDefinition(t *testing.T) {
	_, err := NewSchema("broken", "", map[string]any{"type": 12})
	assert.Error(t, err)
}

func TestFinish_TruncatedStructuredOutput(t *testing.T) {
	req := Request{Schema: hintTestSchema()}
	_, err := finish(req, json.RawMessage(`{"mnemo`), Usage{}, "m", StopMaxTokens)
	var maxTok *ErrMaxTokensExceeded
	assert.True(t, errors.As(err, &maxTok))

	resp, err := finish(Request{}, json.RawMessage(`free text`), Usage{InputTokens: 3, OutputTokens: 4}, "m", StopMaxTokens)
	require.NoError(t, err)
	assert.Equal(t, 7, resp.Usage.TotalTokens)
}

func TestMockProvider_FIFO(t *testing.T) {
	m := NewMockProvider(MockJSON(map[string]string{"mnemonic": "one"}))
	m.AddResponse(MockResponse{Err: &ErrRateLimit{}})

	resp, err := m.Generate(context.Background(), Request{Messages: UserMessage("a")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"mnemonic":"one"}`, string(resp.Content))
	assert.Equal(t, "mock", resp.Model)

	_, err = m.Generate(context.Background(), Request{})
	var rl *ErrRateLimit
	assert.True(t, errors.As(err, &rl))

	_, err = m.Generate(context.Background(), Request{})
	var unavail *ErrProviderUnavailable
	assert.True(t, errors.As(err, &unavail))

	assert.Equal(t, 3, m.CallCount())
	assert.Equal(t, "a", m.Calls()[0].Messages[0].Content)
}

func TestMockProvider_ValidatesSchema(t *testing.T) {
	m := NewMockProvider(MockJSON(map[string]int{"mnemonic": 1}))
	_, err := m.Generate(context.Background(), Request{Schema: hintTestSchema()})
	var inv *ErrInvalidResponse
	assert.True(t, errors.As(err, &inv))
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	assert.False(t, cfg.Enabled())
	assert.NoError(t, cfg.Validate())

	cfg.Provider = ProviderAnthropic
	assert.ErrorContains(t, cfg.Validate(), "llm.anthropic.api_key")
	cfg.Anthropic.APIKey = "k"
	assert.NoError(t, cfg.Validate())

	cfg.Provider = "palm"
	assert.Error(t, cfg.Validate())
}

func TestNewProvider(t *testing.T) {
	ctx := context.Background()

	p, err := NewProvider(ctx, DefaultConfig(), nil, nil)
	require.NoError(t, err)
	assert.Nil(t, p)

	cfg := DefaultConfig()
	cfg.Provider = ProviderOpenAI
	_, err = NewProvider(ctx, cfg, nil, nil)
	assert.Error(t, err)

	cfg.Provider = ProviderMock
	p, err = NewProvider(ctx, cfg, nil, store.NewMemory())
	require.NoError(t, err)
	assert.Equal(t, "mock", p.ModelID())
}

func TestLoggingProvider_AppendsEvent(t *testing.T) {
	events := store.NewMemory()
	mock := NewMockProvider(MockResponse{Content: json.RawMessage(`"ok"`), Usage: Usage{InputTokens: 10, OutputTokens: 2}})
	p := WithLogging(mock, nil, events)

	ctx := WithUser(WithPurpose(context.Background(), "hint"), "u1")
	_, err := p.Generate(ctx, Request{System: "sys", Messages: UserMessage("hello")})
	require.NoError(t, err)

	_, err = p.Generate(ctx, Request{})
	require.Error(t, err)

	got, err := events.Events(context.Background(), store.EventQuery{Kind: EventRequest})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "u1", got[0].Owner)

	var first, second RequestEvent
	require.NoError(t, json.Unmarshal(got[0].Data, &first))
	require.NoError(t, json.Unmarshal(got[1].Data, &second))
	assert.True(t, first.Success)
	assert.Equal(t, "hint", first.Purpose)
	assert.Equal(t, 10, first.InputTokens)
	assert.Contains(t, first.Request, "[system]\nsys")
	assert.Contains(t, first.Request, "[user]\nhello")
	assert.False(t, second.Success)
	assert.NotEmpty(t, second.Error)
}

type failingLog struct{ store.EventLog }

func (failingLog) Append(context.Context, *store.Event) error { return errors.New("disk full") }

func TestLoggingProvider_EventFailureDoesNotFailRequest(t *testing.T) {
	p := WithLogging(NewMockProvider(MockResponse{Content: json.RawMessage(`"ok"`)}), nil, failingLog{})
	_, err := p.Generate(context.Background(), Request{})
	assert.NoError(t, err)
}

func TestPurposeFrom_Default(t *testing.T) {
	assert.Equal(t, "unknown", PurposeFrom(context.Background()))
}
