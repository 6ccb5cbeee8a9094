// Package purge implements the scan and delete loop that removes the caller's
// own messages from a single destination.
//
// The engine pages backwards through the destination history, 100 messages at
// a time, deleting every message authored by the caller, one by one, with
// fixed pauses between the calls to stay under the remote rate limits.  Remote
// failures never escape Run: a refused history read stops the run, everything
// else is reported and skipped.
package purge

import (
	"context"
	"errors"
	"fmt"
	"runtime/trace"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/rusq/dlog"
)

const (
	defPageSize       = 100
	defDeleteDelay    = 350 * time.Millisecond
	defFailureBackoff = 1500 * time.Millisecond
	defPageDelay      = 500 * time.Millisecond
	defMaxPageErrors  = 0 // never give up
)

// Message is the part of the remote message the engine cares about.
type Message struct {
	ID       snowflake.ID
	AuthorID snowflake.ID
}

// Destination is a message-bearing location: a server channel, a thread, a
// group chat or a direct message.
type Destination interface {
	ID() snowflake.ID
	// ListPage returns up to limit messages strictly older than before,
	// newest first.  Zero before means "start from the most recent message".
	ListPage(ctx context.Context, before snowflake.ID, limit int) ([]Message, error)
	// Delete deletes a single message.
	Delete(ctx context.Context, id snowflake.ID) error
}

// Describe returns the title of the destination if it has one, or its ID.
func Describe(d Destination) string {
	if t, ok := d.(interface{ Title() string }); ok && t.Title() != "" {
		return t.Title()
	}
	return d.ID().String()
}

// Resolver turns an identifier into a Destination.  It should return an
// error that satisfies errors.Is(err, ErrUnavailable) if the destination
// can't be opened.
type Resolver interface {
	Resolve(ctx context.Context, kind Kind, id snowflake.ID) (Destination, error)
}

// SleepFunc pauses for d or until ctx is done, whichever happens first.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Engine runs purges.  It keeps no state between runs, so the same Engine
// can serve any number of runs, including concurrent ones on different
// destinations.
type Engine struct {
	self snowflake.ID

	pageSize       int
	deleteDelay    time.Duration
	failureBackoff time.Duration
	pageDelay      time.Duration
	maxPageErrors  int

	sleep SleepFunc
}

type Option func(e *Engine)

// WithPageSize sets the number of messages requested per page.
func WithPageSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.pageSize = n
		}
	}
}

// WithDelays overrides the pause after a successful deletion, the backoff
// after a failure and the pause between pages.  Negative values are ignored.
func WithDelays(deleted, failed, page time.Duration) Option {
	return func(e *Engine) {
		if deleted >= 0 {
			e.deleteDelay = deleted
		}
		if failed >= 0 {
			e.failureBackoff = failed
		}
		if page >= 0 {
			e.pageDelay = page
		}
	}
}

// WithMaxPageErrors sets the number of consecutive transient page read
// failures after which the run gives up.  Zero, the default, means the run
// keeps retrying until the page is read or ctx is cancelled.
func WithMaxPageErrors(n int) Option {
	return func(e *Engine) {
		if n >= 0 {
			e.maxPageErrors = n
		}
	}
}

// WithSleepFunc replaces the function used for the pauses.
func WithSleepFunc(fn SleepFunc) Option {
	return func(e *Engine) {
		if fn != nil {
			e.sleep = fn
		}
	}
}

// New returns the engine that deletes messages authored by self.
func New(self snowflake.ID, opts ...Option) *Engine {
	e := &Engine{
		self: self,

		pageSize:       defPageSize,
		deleteDelay:    defDeleteDelay,
		failureBackoff: defFailureBackoff,
		pageDelay:      defPageDelay,
		maxPageErrors:  defMaxPageErrors,

		sleep: sleep,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Self returns the ID of the user whose messages are deleted.
func (e *Engine) Self() snowflake.ID {
	return e.self
}

// StopReason explains why the run has finished.
type StopReason int

const (
	ReasonExhausted StopReason = iota
	ReasonTargetReached
	ReasonPermissionDenied
	ReasonUnavailable
	ReasonCancelled
	ReasonTooManyFailures
)

func (r StopReason) String() string {
	switch r {
	case ReasonExhausted:
		return "no more messages"
	case ReasonTargetReached:
		return "target reached"
	case ReasonPermissionDenied:
		return "permission denied"
	case ReasonUnavailable:
		return "destination unavailable"
	case ReasonCancelled:
		return "cancelled"
	case ReasonTooManyFailures:
		return "too many failures"
	default:
		return fmt.Sprintf("StopReason(%d)", int(r))
	}
}

// Result is the outcome of a single run.  Scanned >= Deleted >= 0.
type Result struct {
	Scanned int
	Deleted int
	Reason  StopReason
}

func (r Result) String() string {
	return fmt.Sprintf("deleted %d of %d scanned (%s)", r.Deleted, r.Scanned, r.Reason)
}

// runState belongs to exactly one run.
type runState struct {
	cursor  snowflake.ID
	scanned int
	deleted int
}

func (st *runState) result(reason StopReason) Result {
	return Result{Scanned: st.scanned, Deleted: st.deleted, Reason: reason}
}

// unseen returns messages of the page that are strictly older than the
// cursor, keeping the newest-first order.
func (st *runState) unseen(page []Message) []Message {
	last := st.cursor
	fresh := make([]Message, 0, len(page))
	for _, m := range page {
		if last != 0 && m.ID >= last {
			continue
		}
		fresh = append(fresh, m)
		last = m.ID
	}
	return fresh
}

// Run deletes the messages of the engine user from dst until the target is
// reached, the history is exhausted, the history can't be read, or ctx is
// cancelled.  r receives the progress, it may be nil.  The final summary is
// always reported, even if the run stopped early.
func (e *Engine) Run(ctx context.Context, dst Destination, target Target, r Reporter) Result {
	ctx, task := trace.NewTask(ctx, "Run")
	defer task.End()

	if r == nil {
		r = nopReporter{}
	}

	r.Report("Collecting messages")
	res := e.scan(ctx, dst, target, r)
	trace.Logf(ctx, "result", "%s", res)
	dlog.Debugf("purge %s: %s", dst.ID(), res)
	r.Report(fmt.Sprintf("Done • Deleted %d of %d scanned", res.Deleted, res.Scanned))
	return res
}

func (e *Engine) scan(ctx context.Context, dst Destination, target Target, r Reporter) Result {
	var (
		st       runState
		failures int // consecutive page read failures

		limit, bounded = target.Limit()
	)
	for {
		if ctx.Err() != nil {
			return st.result(ReasonCancelled)
		}
		trace.Logf(ctx, "page", "before=%s", st.cursor)
		page, err := dst.ListPage(ctx, st.cursor, e.pageSize)
		if err != nil {
			switch {
			case ctx.Err() != nil:
				return st.result(ReasonCancelled)
			case errors.Is(err, ErrPermissionDenied):
				r.Report("Missing permissions to view history")
				return st.result(ReasonPermissionDenied)
			case errors.Is(err, ErrUnavailable):
				r.Report(fmt.Sprintf("Destination unavailable: %s", err))
				return st.result(ReasonUnavailable)
			}
			failures++
			r.Report(fmt.Sprintf("Discord error: %s", err))
			if e.maxPageErrors > 0 && failures >= e.maxPageErrors {
				return st.result(ReasonTooManyFailures)
			}
			if e.sleep(ctx, e.failureBackoff) != nil {
				return st.result(ReasonCancelled)
			}
			continue
		}
		failures = 0

		fresh := st.unseen(page)
		if len(fresh) == 0 {
			return st.result(ReasonExhausted)
		}
		for _, m := range fresh {
			st.scanned++
			st.cursor = m.ID
			if m.AuthorID != e.self {
				continue
			}
			if err := dst.Delete(ctx, m.ID); err != nil {
				if ctx.Err() != nil {
					return st.result(ReasonCancelled)
				}
				r.Report(fmt.Sprintf("Failed to delete %s: %s", m.ID, err))
				if e.sleep(ctx, e.failureBackoff) != nil {
					return st.result(ReasonCancelled)
				}
				continue
			}
			st.deleted++
			r.Report(fmt.Sprintf("Deleted %d • Scanned %d", st.deleted, st.scanned))
			if bounded && st.deleted >= limit {
				return st.result(ReasonTargetReached)
			}
			if e.sleep(ctx, e.deleteDelay) != nil {
				return st.result(ReasonCancelled)
			}
		}

		if e.sleep(ctx, e.pageDelay) != nil {
			return st.result(ReasonCancelled)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
