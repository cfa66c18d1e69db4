// Package notify delivers reminders to the user.
//
// A Gateway must be granted permission before it delivers anything.
// Permission is asked for at most once at a time: concurrent requests from
// several schedulers share a single prompt.
package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/djlord-it/easy-remind/internal/domain"
)

var ErrPermissionDenied = errors.New("notification permission not granted")

// AttemptRecorder receives per-attempt delivery timings.
type AttemptRecorder interface {
	GatewayAttemptCompleted(gateway string, statusClass string, duration time.Duration)
}

type PermissionState int

const (
	PermissionUnasked PermissionState = iota
	PermissionGranted
	PermissionDenied
)

func (s PermissionState) String() string {
	switch s {
	case PermissionGranted:
		return "granted"
	case PermissionDenied:
		return "denied"
	default:
		return "unasked"
	}
}

type Gateway interface {
	Name() string
	PermissionState() PermissionState
	// RequestPermission prompts unless permission is already granted.
	RequestPermission(ctx context.Context) (PermissionState, error)
	Dispatch(ctx context.Context, n domain.Notification) error
}

// permission is the state every gateway keeps about its grant.
type permission struct {
	mu    sync.Mutex
	state PermissionState
	group singleflight.Group
}

func (p *permission) State() PermissionState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *permission) set(s PermissionState) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

// request runs prompt unless permission is already granted. Callers that
// arrive while a prompt is running get that prompt's answer.
func (p *permission) request(ctx context.Context, prompt func(ctx context.Context) error) (PermissionState, error) {
	if s := p.State(); s == PermissionGranted {
		return s, nil
	}

	v, err, _ := p.group.Do("permission", func() (any, error) {
		if s := p.State(); s == PermissionGranted {
			return s, nil
		}
		if err := prompt(ctx); err != nil {
			p.set(PermissionDenied)
			return PermissionDenied, err
		}
		p.set(PermissionGranted)
		return PermissionGranted, nil
	})
	return v.(PermissionState), err
}
