// Package relay forwards model output to a client and tracks running generations.
package relay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/localmind/backend/internal/inference"
)

// Outcome is how a generation ended
type Outcome string

const (
	// OutcomeCompleted means the model finished its reply
	OutcomeCompleted Outcome = "completed"
	// OutcomeCancelled means the client went away, asked to stop, or could not be written to
	OutcomeCancelled Outcome = "cancelled"
	// OutcomeFailed means the model server errored or the generation timed out
	OutcomeFailed Outcome = "failed"
)

var (
	// ErrStopped is the cancel cause of an explicit stop request
	ErrStopped = errors.New("generation stopped by user")
	// ErrSinkClosed is reported when the client can no longer be written to
	ErrSinkClosed = errors.New("client stream closed")
)

// ContentFrame carries one delta to the client
type ContentFrame struct {
	Content string `json:"content"`
}

// Sink receives frames destined for the client. Send must flush before returning.
type Sink interface {
	Send(frame any) error
}

// Result summarizes a finished relay
type Result struct {
	Outcome Outcome
	// Content is everything forwarded to the client, in order
	Content string
	Chunks  int
	// Err explains cancelled and failed outcomes
	Err             error
	FirstTokenAfter time.Duration
	Duration        time.Duration
}

// Stopped reports whether the generation ended because of an explicit stop request
func (r Result) Stopped() bool {
	return r.Outcome == OutcomeCancelled && errors.Is(r.Err, ErrStopped)
}

// Relay copies deltas from a model stream to a sink
type Relay struct {
	now func() time.Time
	// OnChunk is called after each forwarded delta
	OnChunk func()
}

// New creates a Relay
func New() *Relay {
	return &Relay{now: time.Now}
}

// Run forwards every delta of stream to sink until the stream ends or ctx is done.
// ctx must be the context the stream was opened with so that cancelling it aborts the
// upstream request. Once ctx is done nothing more is written to sink. Run always
// closes the stream.
func (r *Relay) Run(ctx context.Context, stream inference.TokenStream, sink Sink) Result {
	start := r.now()
	var res Result
	buf := make([]byte, 0, 1024)

	defer func() {
		_ = stream.Close()
	}()

	finish := func(outcome Outcome, err error) Result {
		res.Outcome = outcome
		res.Err = err
		res.Content = string(buf)
		res.Duration = r.now().Sub(start)
		return res
	}

	for stream.Next() {
		if ctx.Err() != nil {
			return finish(cancelOutcome(ctx))
		}

		delta := stream.Delta()
		if err := sink.Send(ContentFrame{Content: delta}); err != nil {
			return finish(OutcomeCancelled, fmt.Errorf("%w: %v", ErrSinkClosed, err))
		}

		if res.Chunks == 0 {
			res.FirstTokenAfter = r.now().Sub(start)
		}
		res.Chunks++
		buf = append(buf, delta...)
		if r.OnChunk != nil {
			r.OnChunk()
		}
	}

	if ctx.Err() != nil {
		return finish(cancelOutcome(ctx))
	}
	if err := stream.Err(); err != nil {
		return finish(OutcomeFailed, err)
	}
	return finish(OutcomeCompleted, nil)
}

// cancelOutcome maps the context's cancel cause to an outcome.
// A deadline is the generation timeout and counts as a failure.
func cancelOutcome(ctx context.Context) (Outcome, error) {
	cause := context.Cause(ctx)
	if errors.Is(cause, context.DeadlineExceeded) {
		return OutcomeFailed, cause
	}
	return OutcomeCancelled, cause
}
