package redis

import (
	"context"
	"encoding/json"

	"github.com/storyscout/server/internal/repository/party"
)

// SubscribeEvents streams change notifications for one party in publish
// order. The returned cancel func must be called to release the underlying
// pubsub connection; the channel closes on cancel or ctx cancellation.
func (r repo) SubscribeEvents(ctx context.Context, code string) (<-chan party.Event, func()) {
	return r.subscribe(ctx, r.getEventsChannel(code))
}

// SubscribeVoiceEvents streams voice-record change notifications for one
// party with the same contract as SubscribeEvents.
func (r repo) SubscribeVoiceEvents(ctx context.Context, code string) (<-chan party.Event, func()) {
	return r.subscribe(ctx, r.getVoiceEventsChannel(code))
}

func (r repo) subscribe(ctx context.Context, channel string) (<-chan party.Event, func()) {
	pubsub := r.rc.Subscribe(ctx, channel)
	events := make(chan party.Event)

	subCtx, cancel := context.WithCancel(ctx)
	go func() {
		defer close(events)
		defer pubsub.Close()

		incoming := pubsub.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-incoming:
				if !ok {
					return
				}

				var event party.Event
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					r.logger.ErrorContext(subCtx, "failed to unmarshal event", "channel", channel, "error", err)
					continue
				}

				select {
				case events <- event:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return events, cancel
}
