// Package notify publishes record changes to realtime subscribers.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"

	"cms-go/internal/cms"
)

// ChannelPrefix prefixes every change channel; the collection name follows.
const ChannelPrefix = "cms:changes:"

// Channel returns the pub/sub channel carrying changes to collection.
func Channel(collection string) string {
	return ChannelPrefix + collection
}

// RedisNotifier publishes change events over Redis pub/sub.
type RedisNotifier struct {
	client *redis.Client
	logger cms.Logger
}

var _ cms.Notifier = (*RedisNotifier)(nil)

// NewRedisNotifier wraps client. A nil logger discards output.
func NewRedisNotifier(client *redis.Client, logger cms.Logger) *RedisNotifier {
	if logger == nil {
		logger = cms.NewNopLogger()
	}
	return &RedisNotifier{client: client, logger: logger}
}

// Publish sends event on the channel of its collection.
func (n *RedisNotifier) Publish(ctx context.Context, event cms.ChangeEvent) error {
	data, err := encodeEvent(event)
	if err != nil {
		return err
	}
	if err := n.client.Publish(ctx, Channel(event.Collection), data).Err(); err != nil {
		return fmt.Errorf("publishing %s change on %s: %w", event.Type, event.Collection, err)
	}
	return nil
}

// Subscribe streams events for the given collections, or for every
// collection when none are named. The returned channel is closed when ctx is
// done or the subscription fails.
func (n *RedisNotifier) Subscribe(ctx context.Context, collections ...string) (<-chan cms.ChangeEvent, error) {
	var sub *redis.PubSub
	if len(collections) == 0 {
		sub = n.client.PSubscribe(ctx, ChannelPrefix+"*")
	} else {
		channels := make([]string, len(collections))
		for i, c := range collections {
			channels[i] = Channel(c)
		}
		sub = n.client.Subscribe(ctx, channels...)
	}

	// Receive blocks until the subscription is confirmed.
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("subscribing to changes: %w", err)
	}

	out := make(chan cms.ChangeEvent)
	go func() {
		defer close(out)
		defer sub.Close()

		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				event, err := decodeEvent(msg.Channel, msg.Payload)
				if err != nil {
					n.logger.Warn("dropping malformed change event", "channel", msg.Channel, "error", err)
					continue
				}
				select {
				case out <- event:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// Ping checks that Redis is reachable.
func (n *RedisNotifier) Ping(ctx context.Context) error {
	return n.client.Ping(ctx).Err()
}

// Close closes the Redis client.
func (n *RedisNotifier) Close() error {
	return n.client.Close()
}

func encodeEvent(event cms.ChangeEvent) ([]byte, error) {
	if event.Collection == "" {
		return nil, fmt.Errorf("change event has no collection: %w", cms.ErrInvalidArgument)
	}
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("encoding change event: %w", err)
	}
	return data, nil
}

// decodeEvent parses a payload received on channel. Events without a
// collection take it from the channel name.
func decodeEvent(channel, payload string) (cms.ChangeEvent, error) {
	var event cms.ChangeEvent
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		return cms.ChangeEvent{}, fmt.Errorf("decoding change event: %w", err)
	}
	if event.Collection == "" {
		event.Collection = strings.TrimPrefix(channel, ChannelPrefix)
	}
	return event, nil
}
