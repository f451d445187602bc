// Package shard provides the generic mailbox and goroutine-lifecycle
// plumbing that every sequencer and matcher shard is built on: one
// dedicated worker goroutine per shard, an unbounded-by-convention inbound
// mailbox, and a one-shot reply channel per request.
package shard

import (
	"gopkg.in/tomb.v2"
)

// Mailbox is one shard's inbound message queue. Go's channel send/receive
// already gives strict per-mailbox FIFO ordering.
type Mailbox[T any] chan T

// NewMailbox allocates a mailbox with the given buffer. The core treats
// queues as unbounded by convention; back-pressure, if any, is an
// edge-layer concern, so callers typically pass a generous buffer rather
// than an unbuffered channel.
func NewMailbox[T any](buffer int) Mailbox[T] {
	return make(Mailbox[T], buffer)
}

// Reply is the one-shot response channel attached to every request.
// It is buffered to capacity 1: a shard that finalizes a command always
// completes its send even if the caller already stopped listening, and a
// caller that drops the reply (timeout, disconnect) never blocks the shard.
type Reply[T any] chan T

// NewReply allocates a one-shot reply channel.
func NewReply[T any]() Reply[T] {
	return make(Reply[T], 1)
}

// Send delivers v without blocking. If the buffer is already full (a
// duplicate send, which should never happen given the "exactly once"
// contract) or the receiver already gave up, Send is a safe no-op.
func (r Reply[T]) Send(v T) {
	select {
	case r <- v:
	default:
	}
}

// Worker supervises one shard's goroutine: a single dedicated worker that
// owns its state exclusively, suspending only on its mailboxes. It
// wraps gopkg.in/tomb.v2 so bootstrap can kill and join every shard
// uniformly on shutdown.
type Worker struct {
	t tomb.Tomb
}

// Go starts run as the shard's supervised goroutine. run must select on
// the provided dying channel alongside its own mailboxes and return nil
// promptly once it fires; that is the shard's only suspension/exit point.
// The core keeps no internal timers — a shard goroutine suspends only
// while waiting on its mailboxes.
func (w *Worker) Go(run func(dying <-chan struct{}) error) {
	w.t.Go(func() error {
		return run(w.t.Dying())
	})
}

// Stop signals the shard to exit at its next select iteration.
func (w *Worker) Stop() {
	w.t.Kill(nil)
}

// Wait blocks until the shard goroutine has returned.
func (w *Worker) Wait() error {
	return w.t.Wait()
}
