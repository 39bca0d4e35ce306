package fabric

import (
	"context"
	"fmt"
)

// Queue is a named many-to-one work queue backed by a Redis list.
// Messages are delivered exactly once, in arrival order, to a single puller.
type Queue struct {
	client *Client
	name   string
}

// Push appends a message made of one or more frames to the queue.
// The frames are stored as one list element so they are never interleaved
// with frames pushed by another producer.
func (q *Queue) Push(ctx context.Context, frames ...string) error {
	raw, err := EncodeFrames(frames)
	if err != nil {
		return err
	}

	key := QueueKey(q.client.instanceName, q.name)
	if err := q.client.rdb.RPush(ctx, key, raw).Err(); err != nil {
		return fmt.Errorf("failed to push to %s: %w", q.name, err)
	}
	return nil
}

// Pull removes and returns the next message, blocking until one is available.
func (q *Queue) Pull(ctx context.Context) ([]string, error) {
	key := QueueKey(q.client.instanceName, q.name)
	raw, err := q.client.popBlocking(ctx, key)
	if err != nil {
		return nil, err
	}
	return DecodeFrames(raw)
}
