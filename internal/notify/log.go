package notify

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/djlord-it/easy-remind/internal/domain"
)

// LogGateway writes notifications to the process log. It grants permission
// on the first request.
type LogGateway struct {
	perm permission
}

func NewLogGateway() *LogGateway {
	return &LogGateway{}
}

func (g *LogGateway) Name() string { return "log" }

func (g *LogGateway) PermissionState() PermissionState {
	return g.perm.State()
}

func (g *LogGateway) RequestPermission(ctx context.Context) (PermissionState, error) {
	return g.perm.request(ctx, func(context.Context) error { return nil })
}

func (g *LogGateway) Dispatch(ctx context.Context, n domain.Notification) error {
	if g.perm.State() != PermissionGranted {
		return ErrPermissionDenied
	}
	log.Info().
		Str("component", "notify").
		Str("source", string(n.Source)).
		Str("entity_id", n.EntityID).
		Str("title", n.Title).
		Str("body", n.Body).
		Msg("notification")
	return nil
}
