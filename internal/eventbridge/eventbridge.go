// Package eventbridge publishes domain events onto an embedded NATS
// subject tree so an external extension/MCP bridge can subscribe to
// Memory/Insight/Stall state changes, per spec.md §6's collaborator hook
// for "hooks to the extension registry". Grounded on the teacher's
// internal/nats (embedded server + client) and cmd/nats-bridge's
// subject-forwarding convention, generalized from captain/sergeant
// subjects to this module's domain events.
package eventbridge

import (
	"fmt"

	"github.com/rdvcore/core/internal/events"
	"github.com/rdvcore/core/internal/nats"
)

// subjectPrefix roots every published subject, keeping this module's
// traffic distinguishable on a shared NATS deployment.
const subjectPrefix = "rdvcore.events"

// Bridge publishes domain events to NATS subjects shaped
// "rdvcore.events.<type>", mirroring the teacher's captain.*/agent.*
// subject convention.
type Bridge struct {
	client *nats.Client
}

// New wraps an already-connected NATS client. Publish failures are
// returned to the caller rather than swallowed — unlike the Audit Log,
// a dropped event here is a externally-visible gap the caller may want to
// retry or log loudly.
func New(client *nats.Client) *Bridge {
	return &Bridge{client: client}
}

// Publish sends an event to its type-derived subject as JSON.
func (b *Bridge) Publish(event *events.Event) error {
	subject := fmt.Sprintf("%s.%s", subjectPrefix, event.Type)
	return b.client.PublishJSON(subject, event)
}

// Subscribe subscribes a handler to every event of the given type.
func (b *Bridge) Subscribe(eventType events.EventType, handler func(*events.Event)) error {
	subject := fmt.Sprintf("%s.%s", subjectPrefix, eventType)
	_, err := b.client.Subscribe(subject, func(msg *nats.Message) {
		// Best-effort decode: a malformed payload (e.g. from a future
		// incompatible publisher) is dropped rather than panicking the
		// subscriber's dispatch goroutine.
		var event events.Event
		if err := decodeEvent(msg.Data, &event); err != nil {
			return
		}
		handler(&event)
	})
	return err
}

// SubscribeAll subscribes a handler to every event type this bridge
// knows about, using NATS's "*" wildcard at the type segment.
func (b *Bridge) SubscribeAll(handler func(*events.Event)) error {
	subject := subjectPrefix + ".*"
	_, err := b.client.Subscribe(subject, func(msg *nats.Message) {
		var event events.Event
		if err := decodeEvent(msg.Data, &event); err != nil {
			return
		}
		handler(&event)
	})
	return err
}
