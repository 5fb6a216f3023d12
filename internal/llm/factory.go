package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/abhisek/lexiz/internal/logger"
	"github.com/abhisek/lexiz/internal/store"
)

// NewProvider builds the configured provider wrapped as
// caller → retry → logging → base. It returns nil, nil when cfg disables
// LLM features.
func NewProvider(ctx context.Context, cfg Config, log *logger.Logger, events store.EventLog) (Provider, error) {
	if !cfg.Enabled() {
		return nil, nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var (
		base Provider
		err  error
	)
	switch cfg.Provider {
	case ProviderAnthropic:
		base, err = NewAnthropicProvider(cfg.Anthropic)
	case ProviderOpenAI:
		base, err = NewOpenAIProvider(cfg.OpenAI)
	case ProviderGemini:
		base, err = NewGeminiProvider(ctx, cfg.Gemini)
	case ProviderMock:
		base = NewMockProvider()
	}
	if err != nil {
		return nil, fmt.Errorf("init %s provider: %w", cfg.Provider, err)
	}

	log = logger.OrNop(log).With("component", "llm", "provider", cfg.Provider)
	p := WithRetry(WithLogging(base, log, events), cfg.Retry, log)
	if cfg.Timeout > 0 {
		p = &timeoutProvider{Provider: p, timeout: cfg.Timeout}
	}
	return p, nil
}

// timeoutProvider bounds each call, retries included.
type timeoutProvider struct {
	Provider
	timeout time.Duration
}

func (t *timeoutProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.Provider.Generate(ctx, req)
}
