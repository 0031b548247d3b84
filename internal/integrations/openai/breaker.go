package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"translator-bot/internal/domain"
)

const (
	DefaultFailureThreshold = 5
	DefaultOpenTimeout      = 30 * time.Second
)

type chatter interface {
	Chat(ctx context.Context, model string, messages []domain.ChatMessage, params domain.ModelParams) (string, error)
}

// GuardedClient short-circuits Chat calls while the provider keeps failing.
type GuardedClient struct {
	next chatter
	cb   *gobreaker.CircuitBreaker

	failureThreshold uint32
	openTimeout      time.Duration
	logger           *slog.Logger
}

type BreakerOption func(*GuardedClient)

// WithFailureThreshold sets how many consecutive failures open the circuit.
func WithFailureThreshold(n uint32) BreakerOption {
	return func(g *GuardedClient) {
		if n > 0 {
			g.failureThreshold = n
		}
	}
}

// WithOpenTimeout sets how long the circuit stays open before a probe call.
func WithOpenTimeout(d time.Duration) BreakerOption {
	return func(g *GuardedClient) {
		if d > 0 {
			g.openTimeout = d
		}
	}
}

func WithBreakerLogger(logger *slog.Logger) BreakerOption {
	return func(g *GuardedClient) {
		if logger != nil {
			g.logger = logger
		}
	}
}

func NewGuardedClient(next chatter, opts ...BreakerOption) (*GuardedClient, error) {
	if next == nil {
		return nil, errors.New("openai: guarded client must not be nil")
	}
	g := &GuardedClient{
		next:             next,
		failureThreshold: DefaultFailureThreshold,
		openTimeout:      DefaultOpenTimeout,
		logger:           slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}

	threshold := g.failureThreshold
	g.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "translation-provider",
		MaxRequests: 1,
		Timeout:     g.openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: countsAsHealthy,
		OnStateChange: func(name string, from, to gobreaker.State) {
			g.logger.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return g, nil
}

// Chat forwards to the wrapped client unless the circuit is open, in which
// case the error wraps domain.ErrProviderUnavailable.
func (g *GuardedClient) Chat(ctx context.Context, model string, messages []domain.ChatMessage, params domain.ModelParams) (string, error) {
	out, err := g.cb.Execute(func() (interface{}, error) {
		return g.next.Chat(ctx, model, messages, params)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return "", fmt.Errorf("openai: %w: %w", domain.ErrProviderUnavailable, err)
	}
	if err != nil {
		return "", err
	}
	text, _ := out.(string)
	return text, nil
}

// State reports the breaker state name.
func (g *GuardedClient) State() string {
	return g.cb.State().String()
}

// countsAsHealthy keeps caller cancellations and client-side request errors
// from tripping the breaker. Throttling, auth and server errors still count.
func countsAsHealthy(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		switch statusErr.StatusCode {
		case http.StatusBadRequest, http.StatusNotFound, http.StatusUnprocessableEntity:
			return true
		}
	}
	return false
}
