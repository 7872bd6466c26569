// Package queue carries work from the API to the background worker. The
// only message type today is an achievement evaluation request enqueued
// after a successful mark.
package queue

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// TypeEvaluate asks the worker to evaluate achievements for the student id
// carried in Body.
const TypeEvaluate = "evaluate"

// Message represents work to be processed.
type Message struct {
	Type string
	Body []byte
}

// Queue is the abstraction over different backends.
type Queue interface {
	Publish(ctx context.Context, msg Message) error
	Consume(ctx context.Context) (<-chan Message, error)
}

// InMemory is a minimal channel-backed queue for dev/testing.
type InMemory struct {
	ch chan Message
}

// NewInMemory creates a bounded in-memory queue.
func NewInMemory(size int) *InMemory {
	return &InMemory{ch: make(chan Message, size)}
}

// Publish enqueues a message.
func (q *InMemory) Publish(ctx context.Context, msg Message) error {
	select {
	case q.ch <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Consume returns a channel for workers.
func (q *InMemory) Consume(ctx context.Context) (<-chan Message, error) {
	out := make(chan Message)
	go func() {
		defer close(out)
		for {
			select {
			case msg := <-q.ch:
				select {
				case out <- msg:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// RedisQueue is a list-backed queue shared between processes.
type RedisQueue struct {
	client *redis.Client
	key    string
}

// NewRedisQueue creates a queue over the given list key.
func NewRedisQueue(client *redis.Client, key string) *RedisQueue {
	return &RedisQueue{client: client, key: key}
}

// Publish pushes the message body onto the list. The type rides in a
// prefix so mixed message kinds stay possible.
func (q *RedisQueue) Publish(ctx context.Context, msg Message) error {
	payload := msg.Type + ":" + string(msg.Body)
	return q.client.LPush(ctx, q.key, payload).Err()
}

// Consume pops messages with a blocking wait, delivering them on a channel
// until the context ends.
func (q *RedisQueue) Consume(ctx context.Context) (<-chan Message, error) {
	out := make(chan Message)
	go func() {
		defer close(out)
		for {
			if ctx.Err() != nil {
				return
			}
			res, err := q.client.BRPop(ctx, 2*time.Second, q.key).Result()
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				continue
			}
			if len(res) != 2 {
				continue
			}
			out <- decode(res[1])
		}
	}()
	return out, nil
}

func decode(payload string) Message {
	for i := 0; i < len(payload); i++ {
		if payload[i] == ':' {
			return Message{Type: payload[:i], Body: []byte(payload[i+1:])}
		}
	}
	return Message{Type: payload}
}
