package ports

import (
	"context"

	"github.com/delinked/delinked/core"
)

// EventPublisher notifies other components about authentication lifecycle
// events. Publishing failures never fail the triggering request.
type EventPublisher interface {
	PublishRegistered(ctx context.Context, user *core.User) error
	PublishAuthenticated(ctx context.Context, user *core.User) error
}
