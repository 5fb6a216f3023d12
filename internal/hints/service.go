// Package hints generates mnemonics for items a learner struggles with.
// Generation runs in the background; the study session picks the hint up
// when the item comes back in the repeat phase.
package hints

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/abhisek/lexiz/internal/llm"
	"github.com/abhisek/lexiz/internal/logger"
	"github.com/abhisek/lexiz/internal/vocab"
)

// MaxHintLength caps the mnemonic length.
const MaxHintLength = 280

// Config holds hint generation settings.
type Config struct {
	MaxTokens   int
	Temperature float64

	// PerMinute limits how many hints may be requested per minute. Burst
	// allows short spikes above it.
	PerMinute int
	Burst     int
}

// DefaultConfig returns the hint defaults.
func DefaultConfig() Config {
	return Config{
		MaxTokens:   160,
		Temperature: 0.7,
		PerMinute:   10,
		Burst:       3,
	}
}

// Service generates hints asynchronously and caches them by item.
type Service struct {
	provider llm.Provider
	cfg      Config
	limiter  *rate.Limiter
	log      *logger.Logger

	mu       sync.Mutex
	cache    map[string]string
	inflight map[string]struct{}
	wg       sync.WaitGroup
}

// NewService creates a hint service over provider.
func NewService(provider llm.Provider, cfg Config, log *logger.Logger) *Service {
	limit := rate.Inf
	if cfg.PerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(cfg.PerMinute))
	}
	return &Service{
		provider: provider,
		cfg:      cfg,
		limiter:  rate.NewLimiter(limit, max(cfg.Burst, 1)),
		log:      logger.OrNop(log).With("component", "hints"),
		cache:    make(map[string]string),
		inflight: make(map[string]struct{}),
	}
}

// Request starts generating a hint for it and returns immediately. Items
// with a cached or in-flight hint are skipped, as are requests over the
// rate limit. The generation outlives ctx's cancellation.
func (s *Service) Request(ctx context.Context, it *vocab.Item) {
	if it == nil {
		return
	}

	s.mu.Lock()
	_, cached := s.cache[it.ItemID]
	_, running := s.inflight[it.ItemID]
	if cached || running {
		s.mu.Unlock()
		return
	}
	if !s.limiter.Allow() {
		s.mu.Unlock()
		s.log.Debug("hint request rate limited", "item", it.ItemID)
		return
	}
	s.inflight[it.ItemID] = struct{}{}
	s.wg.Add(1)
	s.mu.Unlock()

	item := *it
	ctx = llm.WithUser(llm.WithPurpose(context.WithoutCancel(ctx), "hint"), item.UserID)
	go func() {
		defer s.wg.Done()

		hint, err := s.generate(ctx, &item)

		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.inflight, item.ItemID)
		if err != nil {
			s.log.Warn("hint generation failed", "item", item.ItemID, "error", err)
			return
		}
		s.cache[item.ItemID] = hint
	}()
}

// Lookup returns the hint for itemID once it is ready.
func (s *Service) Lookup(itemID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.cache[itemID]
	return h, ok
}

// Wait blocks until every in-flight generation has finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

type hintOutput struct {
	Mnemonic string `json:"mnemonic"`
}

func (s *Service) generate(ctx context.Context, it *vocab.Item) (string, error) {
	resp, err := s.provider.Generate(ctx, llm.Request{
		System:      systemPrompt,
		Messages:    llm.UserMessage(buildUserMessage(it)),
		Schema:      Schema,
		MaxTokens:   s.cfg.MaxTokens,
		Temperature: s.cfg.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("hint generation: %w", err)
	}

	var out hintOutput
	if err := json.Unmarshal(resp.Content, &out); err != nil {
		return "", fmt.Errorf("parse hint response: %w", err)
	}
	hint := strings.TrimSpace(out.Mnemonic)
	if hint == "" {
		return "", fmt.Errorf("empty hint for %s", it.ItemID)
	}
	return hint, nil
}
