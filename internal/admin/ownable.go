// Package admin holds the single owner capability that gates every
// administrative mutator in the registry.
package admin

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"phonelease/internal/events"
	"phonelease/pkg/domain"
	dErrors "phonelease/pkg/domain-errors"
)

// Administrable is the owner capability composed into the ledger, pricing
// engine and resolution gateway.
type Administrable interface {
	Owner() domain.Identity
	IsOwner(actor domain.Identity) bool
	Require(actor domain.Identity) error
	TransferOwnership(ctx context.Context, actor, newOwner domain.Identity) error
}

// EventPublisher emits ownership events.
type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

// Ownable is the in-process owner capability.
type Ownable struct {
	mu        sync.RWMutex
	owner     domain.Identity
	publisher EventPublisher
	logger    *slog.Logger
}

// Option configures Ownable.
type Option func(*Ownable)

func WithLogger(logger *slog.Logger) Option {
	return func(o *Ownable) {
		o.logger = logger
	}
}

func WithPublisher(publisher EventPublisher) Option {
	return func(o *Ownable) {
		o.publisher = publisher
	}
}

// New creates an owner capability held by owner.
func New(owner domain.Identity, opts ...Option) (*Ownable, error) {
	if owner == domain.ZeroIdentity {
		return nil, errors.New("initial owner is required")
	}
	o := &Ownable{
		owner:  owner,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

func (o *Ownable) Owner() domain.Identity {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.owner
}

func (o *Ownable) IsOwner(actor domain.Identity) bool {
	return actor != domain.ZeroIdentity && actor == o.Owner()
}

// Require returns an unauthorized error unless actor holds the capability.
func (o *Ownable) Require(actor domain.Identity) error {
	if !o.IsOwner(actor) {
		return dErrors.New(dErrors.CodeUnauthorized, "caller is not the owner")
	}
	return nil
}

// TransferOwnership hands the capability to newOwner. Only the current owner
// may call it and the zero identity is rejected.
func (o *Ownable) TransferOwnership(ctx context.Context, actor, newOwner domain.Identity) error {
	if newOwner == domain.ZeroIdentity {
		return dErrors.New(dErrors.CodeValidation, "new owner must not be the zero identity")
	}

	o.mu.Lock()
	if actor == domain.ZeroIdentity || actor != o.owner {
		o.mu.Unlock()
		return dErrors.New(dErrors.CodeUnauthorized, "caller is not the owner")
	}
	previous := o.owner
	o.owner = newOwner
	o.mu.Unlock()

	o.logger.InfoContext(ctx, "ownership transferred",
		"previous_owner", previous.Hex(),
		"new_owner", newOwner.Hex(),
	)
	if o.publisher != nil {
		if err := o.publisher.Publish(ctx, events.Event{
			Type:   events.TypeOwnershipTransferred,
			Owner:         newOwner,
			PreviousOwner: previous,
		}); err != nil {
			o.logger.WarnContext(ctx, "failed to publish ownership event", "error", err)
		}
	}
	return nil
}
