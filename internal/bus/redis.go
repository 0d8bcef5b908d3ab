// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package bus

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/ManuGH/streamplay/internal/log"
	"github.com/ManuGH/streamplay/internal/metrics"
)

// RedisBus carries messages over Redis pub/sub so a viewer may be attached
// to any daemon replica. Delivery is at-most-once: a subscriber whose queue
// is full loses messages.
type RedisBus struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisBus publishes on channels named prefix+topic.
func NewRedisBus(client redis.UniversalClient, prefix string) *RedisBus {
	if prefix == "" {
		prefix = "streamplay:bus:"
	}
	return &RedisBus{client: client, prefix: prefix}
}

func (b *RedisBus) Publish(ctx context.Context, topic string, msg Message) error {
	if ctx == nil {
		return fmt.Errorf("publish context is nil")
	}
	if err := b.client.Publish(ctx, b.prefix+topic, []byte(msg)).Err(); err != nil {
		recordDrop(topic, "redis_error")
		return fmt.Errorf("publish topic %q: %w", topic, err)
	}
	metrics.IncBusPublished(topic)
	return nil
}

// Subscribe returns once Redis confirmed the subscription, so messages
// published afterwards are delivered.
func (b *RedisBus) Subscribe(ctx context.Context, topic string) (Subscriber, error) {
	ps := b.client.Subscribe(ctx, b.prefix+topic)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe topic %q: %w", topic, err)
	}

	s := &redisSub{
		ps:    ps,
		topic: topic,
		ch:    make(chan Message, subscriberBuffer),
		done:  make(chan struct{}),
	}
	s.wg.Add(1)
	go s.pump()
	return s, nil
}

type redisSub struct {
	ps    *redis.PubSub
	topic string
	ch    chan Message
	done  chan struct{}
	once  sync.Once
	wg    sync.WaitGroup
}

func (s *redisSub) pump() {
	defer s.wg.Done()
	defer close(s.ch)
	in := s.ps.Channel()
	for {
		select {
		case <-s.done:
			return
		case m, ok := <-in:
			if !ok {
				return
			}
			select {
			case s.ch <- Message(m.Payload):
			case <-s.done:
				return
			default:
				recordDrop(s.topic, "subscriber_full")
			}
		}
	}
}

func (s *redisSub) C() <-chan Message { return s.ch }

func (s *redisSub) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.ps.Close()
		s.wg.Wait()
		if err != nil {
			log.L().Debug().Err(err).Str(log.FieldTopic, s.topic).Msg("redis unsubscribe failed")
		}
	})
	return err
}

var _ Bus = (*RedisBus)(nil)
