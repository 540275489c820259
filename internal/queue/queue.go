package queue

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrUnavailable wraps infrastructure failures. Ingestion propagates it
	// loudly rather than accepting an artifact it cannot durably enqueue.
	ErrUnavailable = errors.New("queue: unavailable")

	ErrInvalidArgument = errors.New("queue: invalid argument")
)

// Job is the ephemeral queue entry referencing a call record. It is not
// persisted beyond queue lifetime and is reconstructible from record state on
// crash recovery.
type Job struct {
	ID      string `json:"id"`
	CallID  string `json:"call_id"`
	Attempt int    `json:"attempt"`

	EnqueuedAt time.Time `json:"enqueued_at"`

	// receipt is backend-specific delivery state used by Ack/Nack.
	receipt string
}

// Queue is an ordered, durable handoff between ingestion and the worker pool
// with at-least-once delivery.
//
// A job may be delivered more than once after a crash; the atomic claim on
// the call record converts at-least-once delivery into effectively-once
// processing.
type Queue interface {
	// Enqueue makes the job deliverable after delay (immediately when zero).
	Enqueue(ctx context.Context, job Job, delay time.Duration) error

	// Dequeue blocks until a job is available or ctx is done.
	Dequeue(ctx context.Context) (Job, error)

	// Ack marks a delivered job as done; it will not be redelivered.
	Ack(ctx context.Context, job Job) error

	// Nack returns a delivered job to the queue after requeueDelay, with the
	// attempt counter advanced.
	Nack(ctx context.Context, job Job, requeueDelay time.Duration) error
}
