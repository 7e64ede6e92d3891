// Package llm is the model gateway: the one place that speaks provider
// APIs. Each pipeline stage is bound to a (provider, model) pair by
// configuration; callers say which stage they are and get text plus token
// usage back. Retries, prompt caching, and usage metrics live here.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"sync"
	"time"

	"github.com/satyrpress/satyr/pkg/config"
	"github.com/satyrpress/satyr/pkg/secrets"
)

// Stage names a pipeline call site. The gateway maps each to its
// configured provider and model.
type Stage string

const (
	StageBrainstorm      Stage = "brainstorm"
	StageGenerate        Stage = "generate"
	StageTournamentElim  Stage = "tournament-elim"
	StageTournamentFinal Stage = "tournament-final"
	StagePolish          Stage = "polish"
)

// Request is one completion request. System is optional; when set it is
// marked cacheable for providers that support ephemeral prompt caching, so
// callers must keep it byte-stable across calls.
type Request struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// Usage is the token accounting for one call. Cache counts are zero for
// providers that do not report them.
type Usage struct {
	InputTokens         int
	OutputTokens        int
	CacheCreationTokens int
	CacheReadTokens     int
}

// Completion is a successful provider response.
type Completion struct {
	Text  string
	Usage Usage
}

// apiError is a non-2xx provider response. Status decides retryability.
type apiError struct {
	Provider string
	Status   int
	Body     string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("%s API returned %d: %s", e.Provider, e.Status, e.Body)
}

// retryable reports whether another attempt could succeed: transport
// errors, rate limits, and server errors qualify; other client errors are
// surfaced immediately.
func retryable(err error) bool {
	var apiErr *apiError
	if errors.As(err, &apiErr) {
		return apiErr.Status == http.StatusTooManyRequests || apiErr.Status >= 500
	}
	// Transport-level failure (connection reset, DNS, EOF).
	return true
}

// provider is one upstream API. Implementations are stateless beyond their
// key and base URL and safe for concurrent use.
type provider interface {
	complete(ctx context.Context, model string, req Request) (Completion, error)
}

// Gateway routes stage calls to providers with retries and usage metrics.
// Safe for concurrent use; provider clients are created once, lazily.
type Gateway struct {
	cfg  config.LLMConfig
	http *http.Client
	log  *slog.Logger

	mu        sync.Mutex
	providers map[string]provider

	// backoffBase is the retry backoff unit; tests shrink it.
	backoffBase time.Duration
}

// New creates a gateway from the stage bindings.
func New(cfg config.LLMConfig) *Gateway {
	return &Gateway{
		cfg:         cfg,
		http:        &http.Client{Timeout: cfg.CallTimeout},
		log:         slog.With("component", "llm"),
		providers:   make(map[string]provider),
		backoffBase: 2 * time.Second,
	}
}

// binding returns the model binding for a stage.
func (g *Gateway) binding(stage Stage) config.ModelRef {
	switch stage {
	case StageBrainstorm:
		return g.cfg.Brainstorm
	case StageGenerate:
		return g.cfg.Generate
	case StageTournamentElim:
		return g.cfg.TournamentElimination
	case StageTournamentFinal:
		return g.cfg.TournamentFinals
	default:
		// polish and anything unrecognized use the generic tournament
		// binding.
		return g.cfg.Tournament
	}
}

// Call sends one completion request for a stage, retrying transient
// failures with exponential backoff. The returned usage covers the
// successful attempt only.
func (g *Gateway) Call(ctx context.Context, stage Stage, req Request) (Completion, error) {
	ref := g.binding(stage)

	p, err := g.provider(ref.Provider)
	if err != nil {
		return Completion{}, err
	}

	start := time.Now()
	var lastErr error
	for attempt := 0; attempt < g.cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			// 2s × 2ⁿ plus up to 1s of jitter.
			backoff := g.backoffBase<<(attempt-1) +
				time.Duration(rand.Int64N(int64(time.Second)))
			g.log.Warn("Retrying model call",
				"stage", stage, "model", ref.String(), "attempt", attempt+1, "backoff", backoff)
			select {
			case <-ctx.Done():
				recordRequest(stage, ref.Provider, "cancelled", time.Since(start))
				return Completion{}, ctx.Err()
			case <-time.After(backoff):
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, g.cfg.CallTimeout)
		completion, err := p.complete(callCtx, ref.Model, req)
		cancel()
		if err == nil {
			recordRequest(stage, ref.Provider, "ok", time.Since(start))
			recordUsage(stage, completion.Usage)
			return completion, nil
		}

		lastErr = err
		if ctx.Err() != nil {
			recordRequest(stage, ref.Provider, "cancelled", time.Since(start))
			return Completion{}, fmt.Errorf("%s call aborted: %w", stage, err)
		}
		if !retryable(err) {
			recordRequest(stage, ref.Provider, "fatal", time.Since(start))
			return Completion{}, fmt.Errorf("%s call failed: %w", stage, err)
		}
	}

	recordRequest(stage, ref.Provider, "exhausted", time.Since(start))
	return Completion{}, fmt.Errorf("%s call failed after %d attempts: %w",
		stage, g.cfg.MaxAttempts, lastErr)
}

// provider returns the client for a provider name, creating it on first
// use. Creation resolves the API key, so a missing secret surfaces on the
// first call rather than at startup.
func (g *Gateway) provider(name string) (provider, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if p, ok := g.providers[name]; ok {
		return p, nil
	}

	var (
		p   provider
		err error
	)
	switch name {
	case config.ProviderAnthropic:
		p, err = newAnthropic(g.http)
	case config.ProviderOpenAI:
		p, err = newOpenAI(g.http)
	case config.ProviderGoogle:
		p, err = newGoogle(g.http)
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownProvider, name)
	}
	if err != nil {
		return nil, err
	}

	g.providers[name] = p
	return p, nil
}

// apiKey resolves a provider credential through the secrets cache.
func apiKey(name string) (string, error) {
	key, err := secrets.Get(name)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", name, err)
	}
	return key, nil
}
