package audio

import (
	"context"
	"errors"
	"sync/atomic"
)

// ErrQueueFull is returned by [FrameQueue.Push] when the queue is at capacity.
// The offered frame is dropped; the caller must not block or retry.
var ErrQueueFull = errors.New("audio: frame queue full")

// DefaultQueueCapacity bounds the hand-off buffer between packet arrival and
// transcription transmission. 256 canonical frames is roughly five seconds of
// audio, enough to ride out a reconnect without unbounded growth.
const DefaultQueueCapacity = 256

// FrameQueue is the bounded FIFO buffer between the packet-arrival callback
// (producer) and the transcription sender (consumer).
//
// Push never blocks: when the consumer falls behind and the queue fills, the
// newest frame is dropped and [ErrQueueFull] returned, because the capture
// transport cannot be paused. Pop blocks until a frame arrives or the context
// is cancelled. Frames are popped in exactly the order they were pushed.
type FrameQueue struct {
	ch      chan Frame
	dropped atomic.Int64
}

// NewFrameQueue creates a queue holding at most capacity frames.
// Non-positive capacities fall back to [DefaultQueueCapacity].
func NewFrameQueue(capacity int) *FrameQueue {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &FrameQueue{ch: make(chan Frame, capacity)}
}

// Push offers a frame to the queue without blocking. If the queue is full the
// frame is dropped and [ErrQueueFull] is returned.
func (q *FrameQueue) Push(f Frame) error {
	select {
	case q.ch <- f:
		return nil
	default:
		q.dropped.Add(1)
		return ErrQueueFull
	}
}

// Pop removes and returns the oldest frame, blocking until one is available
// or ctx is cancelled.
func (q *FrameQueue) Pop(ctx context.Context) (Frame, error) {
	select {
	case f := <-q.ch:
		return f, nil
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	}
}

// Len returns the number of frames currently buffered.
func (q *FrameQueue) Len() int { return len(q.ch) }

// Cap returns the queue capacity.
func (q *FrameQueue) Cap() int { return cap(q.ch) }

// Dropped returns the total number of frames dropped by Push since creation.
func (q *FrameQueue) Dropped() int64 { return q.dropped.Load() }
