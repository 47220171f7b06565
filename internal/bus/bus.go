package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"levelscout/internal/model"
)

// Channel names shared with upstream feeds and downstream consumers.
const (
	TriggerChannel    = "levelscout:run-triggers"
	CandleChannel     = "levelscout:candles"
	PriceLevelChannel = "levelscout:price-levels"
)

const (
	initialBackoff = time.Second
	maxBackoff     = 30 * time.Second
)

// Bus is the message transport: run triggers and candle batches in, price
// level fan-out. Undecodable payloads are logged and dropped; subscriber
// loops reconnect with bounded exponential backoff until the context ends.
type Bus struct {
	client *redis.Client
}

// New connects to Redis and verifies the connection.
func New(addr, password string, db int) (*Bus, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return &Bus{client: client}, nil
}

// PublishPriceLevels fans a newly recorded level out to downstream consumers.
func (b *Bus) PublishPriceLevels(ctx context.Context, msg model.PriceLevelMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal price level message: %w", err)
	}
	if err := b.client.Publish(ctx, PriceLevelChannel, payload).Err(); err != nil {
		return fmt.Errorf("publish price levels: %w", err)
	}
	return nil
}

// PublishTrigger asks any listening runner to process one pair. Used by the
// scheduler; external services publish the same payload.
func (b *Bus) PublishTrigger(ctx context.Context, trigger model.RunTrigger) error {
	payload, err := json.Marshal(trigger)
	if err != nil {
		return fmt.Errorf("marshal trigger: %w", err)
	}
	if err := b.client.Publish(ctx, TriggerChannel, payload).Err(); err != nil {
		return fmt.Errorf("publish trigger: %w", err)
	}
	return nil
}

// SubscribeTriggers delivers inbound run triggers until ctx is cancelled.
// The returned channel closes on cancellation.
func (b *Bus) SubscribeTriggers(ctx context.Context) <-chan model.RunTrigger {
	out := make(chan model.RunTrigger)
	go func() {
		defer close(out)
		b.consume(ctx, TriggerChannel, func(payload []byte) {
			var trigger model.RunTrigger
			if err := json.Unmarshal(payload, &trigger); err != nil {
				log.Printf("[WARN] dropping malformed trigger: %v", err)
				return
			}
			select {
			case out <- trigger:
			case <-ctx.Done():
			}
		})
	}()
	return out
}

// SubscribeCandles delivers inbound candle batches until ctx is cancelled.
func (b *Bus) SubscribeCandles(ctx context.Context) <-chan model.CandleBatch {
	out := make(chan model.CandleBatch)
	go func() {
		defer close(out)
		b.consume(ctx, CandleChannel, func(payload []byte) {
			var batch model.CandleBatch
			if err := json.Unmarshal(payload, &batch); err != nil {
				log.Printf("[WARN] dropping malformed candle batch: %v", err)
				return
			}
			select {
			case out <- batch:
			case <-ctx.Done():
			}
		})
	}()
	return out
}

func (b *Bus) consume(ctx context.Context, channel string, handle func([]byte)) {
	backoff := initialBackoff
	for {
		sub := b.client.Subscribe(ctx, channel)
		if _, err := sub.Receive(ctx); err != nil {
			sub.Close()
			if ctx.Err() != nil {
				return
			}
			log.Printf("[WARN] subscribe %s failed: %v, retrying in %s", channel, err, backoff)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		backoff = initialBackoff
		log.Printf("[INFO] subscribed to %s", channel)

		msgs := sub.Channel()
	recv:
		for {
			select {
			case <-ctx.Done():
				sub.Close()
				return
			case msg, ok := <-msgs:
				if !ok {
					sub.Close()
					break recv
				}
				handle([]byte(msg.Payload))
			}
		}
	}
}

func (b *Bus) Close() error {
	return b.client.Close()
}
