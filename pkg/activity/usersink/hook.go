// Package usersink forwards resolver events into a go-users activity sink.
package usersink

import (
	"context"
	"strings"

	"github.com/goliatone/go-resolver/pkg/activity"
	usertypes "github.com/goliatone/go-users/pkg/types"
	"github.com/google/uuid"
)

// Hook forwards resolver context events to a go-users ActivitySink so
// refreshes and mapping reloads land in the same audit trail as user actions.
type Hook struct {
	Sink usertypes.ActivitySink
}

// Notify records the event as an ActivityRecord on the resolver context
// object. Actor and tenant ids that are not UUIDs are recorded as uuid.Nil.
func (h Hook) Notify(ctx context.Context, event activity.Event) error {
	if h.Sink == nil {
		return nil
	}
	event = event.Normalize()
	if !event.Valid() {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	return h.Sink.Log(ctx, usertypes.ActivityRecord{
		ActorID:    parseUUID(event.ActorID),
		TenantID:   parseUUID(event.TenantID),
		Verb:       event.Verb,
		ObjectType: activity.ObjectTypeContext,
		ObjectID:   event.ContextID,
		Channel:    event.Channel,
		Data:       event.Data(),
		OccurredAt: event.OccurredAt,
	})
}

func parseUUID(input string) uuid.UUID {
	id, err := uuid.Parse(strings.TrimSpace(input))
	if err != nil {
		return uuid.Nil
	}
	return id
}
