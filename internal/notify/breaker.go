package notify

import (
	"context"

	"github.com/djlord-it/easy-remind/internal/domain"
)

type Breaker interface {
	Allow(key string) error
	RecordSuccess(key string)
	RecordFailure(key string)
}

// Guarded wraps a gateway with a circuit breaker keyed by the gateway name.
// While the circuit is open Dispatch fails without calling the gateway.
type Guarded struct {
	Gateway
	cb Breaker
}

func WithBreaker(gw Gateway, cb Breaker) *Guarded {
	return &Guarded{Gateway: gw, cb: cb}
}

func (g *Guarded) Dispatch(ctx context.Context, n domain.Notification) error {
	key := g.Gateway.Name()
	if err := g.cb.Allow(key); err != nil {
		return err
	}
	if err := g.Gateway.Dispatch(ctx, n); err != nil {
		g.cb.RecordFailure(key)
		return err
	}
	g.cb.RecordSuccess(key)
	return nil
}
