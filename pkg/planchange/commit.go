package planchange

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/saazpayhq/saazpay/pkg/billing"
)

const (
	// DefaultSettleDelay gives the provider's webhooks time to update the
	// subscription before the host re-reads it
	DefaultSettleDelay = 5 * time.Second
	// DefaultCommitTimeout bounds a single ChangePlan call
	DefaultCommitTimeout = 30 * time.Second
)

// Clock schedules the settle wait
type Clock interface {
	After(d time.Duration) <-chan time.Time
}

// SystemClock is the wall clock
type SystemClock struct{}

// After waits for d on the wall clock
func (SystemClock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

// CommitOutcome tags a CommitResult
type CommitOutcome string

const (
	CommitSucceeded CommitOutcome = "success"
	CommitFailed    CommitOutcome = "failure"
)

// CommitResult is the tagged outcome of a plan change: Success carries the
// provider acknowledgement, Failure carries the reason.
type CommitResult struct {
	Outcome CommitOutcome       `json:"outcome"`
	Change  *billing.PlanChange `json:"change,omitempty"`
	Reason  string              `json:"reason,omitempty"`

	err error
}

// Success builds a successful result
func Success(change *billing.PlanChange) CommitResult {
	return CommitResult{Outcome: CommitSucceeded, Change: change}
}

// Failure builds a failed result
func Failure(err error) CommitResult {
	r := CommitResult{Outcome: CommitFailed, err: err}
	if err != nil {
		r.Reason = err.Error()
	}
	return r
}

// OK reports whether the change succeeded
func (r CommitResult) OK() bool {
	return r.Outcome == CommitSucceeded
}

// Err returns the failure reason
func (r CommitResult) Err() error {
	return r.err
}

// SettlePolicy decides whether a commit result proceeds to the settle wait
type SettlePolicy string

const (
	// SettleAlways settles after success and failure alike
	SettleAlways SettlePolicy = "always"
	// SettleOnSuccess settles only after success; failures return to confirmation
	SettleOnSuccess SettlePolicy = "on_success"
)

// ParseSettlePolicy parses a configured policy name
func ParseSettlePolicy(s string) (SettlePolicy, error) {
	switch SettlePolicy(s) {
	case SettleAlways, SettleOnSuccess:
		return SettlePolicy(s), nil
	case "":
		return SettleAlways, nil
	}
	return "", fmt.Errorf("unknown settle policy %q", s)
}

// ShouldSettle applies the policy to a result
func (p SettlePolicy) ShouldSettle(r CommitResult) bool {
	if p == SettleOnSuccess {
		return r.OK()
	}
	return true
}

// Committer executes a confirmed plan change and the settle wait that follows
type Committer struct {
	client      billing.Client
	timeout     time.Duration
	settleDelay time.Duration
	clock       Clock
}

// NewCommitter creates a committer. Zero durations fall back to the defaults.
func NewCommitter(client billing.Client, timeout, settleDelay time.Duration, clock Clock) *Committer {
	if timeout <= 0 {
		timeout = DefaultCommitTimeout
	}
	if settleDelay <= 0 {
		settleDelay = DefaultSettleDelay
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &Committer{
		client:      client,
		timeout:     timeout,
		settleDelay: settleDelay,
		clock:       clock,
	}
}

// Commit calls ChangePlan exactly once. Cancellation of ctx and the commit
// timeout both end the call and are reported as failures.
func (c *Committer) Commit(ctx context.Context, planID string) CommitResult {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	change, err := c.client.ChangePlan(callCtx, planID)
	switch {
	case err == nil:
		return Success(change)
	case ctx.Err() != nil:
		return Failure(fmt.Errorf("%w: %v", ErrCommitCanceled, err))
	case errors.Is(callCtx.Err(), context.DeadlineExceeded):
		return Failure(fmt.Errorf("%w after %s", ErrCommitTimeout, c.timeout))
	default:
		return Failure(fmt.Errorf("failed to change plan: %w", err))
	}
}

// SettleDelay returns the fixed settle wait
func (c *Committer) SettleDelay() time.Duration {
	return c.settleDelay
}

// Settle waits for the settle delay once. It returns early only when ctx ends.
func (c *Committer) Settle(ctx context.Context) error {
	select {
	case <-c.clock.After(c.settleDelay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
