// Package scheduler implements the Scheduler (C3) and Dispatcher (C8):
// a pool of workers pulls READY actions and runs them to completion,
// enforcing per-action timeouts, cooperative cancellation, and
// exponential-backoff retry of actions whose handler returns RETRY.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cuemby/clusterd/pkg/action"
	"github.com/cuemby/clusterd/pkg/domain"
	"github.com/cuemby/clusterd/pkg/log"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Handler executes one action to completion (or to a WAITING yield
// point, which it signals by returning ResultRetry). A handler must
// itself check ctx.Done/IsCancelled at sub-steps (§5).
type Handler func(ctx context.Context, a *domain.Action) (domain.ResultCode, map[string]any, error)

// Backoff bounds the error-retry backoff curve (§5: exponential,
// capped, bounded number of attempts before promotion to RES_ERROR).
type Backoff struct {
	Initial    time.Duration
	Max        time.Duration
	MaxRetries int
}

// DefaultBackoff matches §5's retry policy: exponential backoff capped
// at 60s, up to 5 attempts, then promoted to RES_ERROR.
var DefaultBackoff = Backoff{Initial: 10 * time.Millisecond, Max: 60 * time.Second, MaxRetries: 5}

func (b Backoff) delay(attempt int) time.Duration {
	d := b.Initial
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= b.Max {
			return b.Max
		}
	}
	return d
}

// Scheduler pulls READY actions from the Action Store and dispatches
// them to a bounded worker pool (C8's fan-out).
type Scheduler struct {
	actions *action.Store
	backoff Backoff
	limiter *rate.Limiter

	handlersMu sync.RWMutex
	handlers   map[string]Handler

	sem chan struct{}

	mu       sync.Mutex
	inflight map[string]context.CancelFunc
	attempts map[string]int

	logger zerolog.Logger
}

// New builds a Scheduler with poolSize concurrent workers.
func New(actions *action.Store, poolSize int) *Scheduler {
	if poolSize <= 0 {
		poolSize = 4
	}
	return &Scheduler{
		actions:  actions,
		backoff:  DefaultBackoff,
		limiter:  rate.NewLimiter(rate.Every(20*time.Millisecond), 1),
		handlers: make(map[string]Handler),
		sem:      make(chan struct{}, poolSize),
		inflight: make(map[string]context.CancelFunc),
		attempts: make(map[string]int),
		logger:   log.WithComponent("scheduler"),
	}
}

// SetBackoff overrides the default error-retry backoff curve, e.g.
// from a loaded config.BackoffConfig.
func (s *Scheduler) SetBackoff(b Backoff) {
	s.backoff = b
}

// RegisterHandler installs the handler for actionName (e.g. NODE_CREATE,
// CLUSTER_SCALE_OUT). Engine runtimes call this at startup.
func (s *Scheduler) RegisterHandler(actionName string, h Handler) {
	s.handlersMu.Lock()
	defer s.handlersMu.Unlock()
	s.handlers[actionName] = h
}

func (s *Scheduler) handlerFor(actionName string) (Handler, bool) {
	s.handlersMu.RLock()
	defer s.handlersMu.RUnlock()
	h, ok := s.handlers[actionName]
	return h, ok
}

// Run polls get_ready() until ctx is cancelled, dispatching each READY
// action to a free worker slot. Run blocks; callers typically start it
// in its own goroutine.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil // context cancelled
		}
		ready, err := s.actions.GetReady()
		if err != nil {
			s.logger.Error().Err(err).Msg("get_ready failed")
			continue
		}
		for _, a := range ready {
			a := a
			if s.isInflight(a.ID) {
				continue
			}
			select {
			case s.sem <- struct{}{}:
				go s.run(ctx, a)
			case <-ctx.Done():
				return nil
			default:
				// pool saturated this tick; a will be picked up next poll
			}
		}
		select {
		case <-ctx.Done():
			return nil
		default:
		}
	}
}

func (s *Scheduler) isInflight(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.inflight[id]
	return ok
}

// Start signals a worker for actionID immediately rather than waiting
// for the next poll tick (C3's start(action_id), idempotent).
func (s *Scheduler) Start(ctx context.Context, actionID string) error {
	if s.isInflight(actionID) {
		return nil
	}
	a, err := s.actions.Get(actionID)
	if err != nil {
		return err
	}
	if a.Status != domain.ActionReady {
		return nil
	}
	select {
	case s.sem <- struct{}{}:
		go s.run(ctx, a)
	default:
		// pool saturated; the regular poll loop will pick it up
	}
	return nil
}

func (s *Scheduler) run(ctx context.Context, a *domain.Action) {
	defer func() { <-s.sem }()

	// The deadline is anchored to the action's first start, not to this
	// dispatch: an action re-entering READY after a WAITING/SUSPENDED
	// yield must not get a fresh full-length timeout each time (§5:
	// "per-action timeout", cumulative across suspensions).
	start := a.StartedAt
	if start.IsZero() {
		start = time.Now()
	}

	runCtx := ctx
	var cancel context.CancelFunc
	if a.Timeout > 0 {
		remaining := a.Timeout - time.Since(start)
		if remaining <= 0 {
			s.finish(a, domain.ActionFailed, domain.ResultTimeout, domain.CodeResTimeout, nil)
			return
		}
		runCtx, cancel = context.WithTimeout(ctx, remaining)
	} else {
		runCtx, cancel = context.WithCancel(ctx)
	}
	s.mu.Lock()
	s.inflight[a.ID] = cancel
	s.mu.Unlock()
	defer func() {
		cancel()
		s.mu.Lock()
		delete(s.inflight, a.ID)
		s.mu.Unlock()
	}()

	if err := s.actions.UpdateStatus(a.ID, domain.ActionRunning, ""); err != nil {
		s.logger.Error().Err(err).Str("action_id", a.ID).Msg("transition to RUNNING failed")
		return
	}

	handler, ok := s.handlerFor(a.ActionName)
	if !ok {
		s.fail(a, fmt.Sprintf("no handler registered for action %s", a.ActionName))
		return
	}

	code, outputs, err := handler(runCtx, a)
	if runCtx.Err() != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			s.finish(a, domain.ActionFailed, domain.ResultTimeout, domain.CodeResTimeout, outputs)
			return
		}
		s.finish(a, domain.ActionCancelled, domain.ResultCancel, domain.CodeResCancel, outputs)
		return
	}

	switch code {
	case domain.ResultOK:
		s.finish(a, domain.ActionSucceeded, domain.ResultOK, domain.CodeResOK, outputs)
	case domain.ResultCancel:
		s.finish(a, domain.ActionCancelled, domain.ResultCancel, domain.CodeResCancel, outputs)
	case domain.ResultRetry:
		if truthy(outputs[domain.DependentsWaitKey]) {
			s.yieldWait(a)
		} else {
			s.retry(a)
		}
	default:
		reason := domain.CodeResError
		if err != nil {
			reason = err.Error()
		}
		s.fail(a, reason)
	}
}

func (s *Scheduler) finish(a *domain.Action, status domain.ActionStatus, code domain.ResultCode, reason string, outputs map[string]any) {
	if outputs != nil {
		a.Outputs = outputs
	}
	a.ResultCode = code
	if err := s.actions.UpdateStatus(a.ID, status, reason); err != nil {
		s.logger.Error().Err(err).Str("action_id", a.ID).Msg("finish transition failed")
	}
}

func (s *Scheduler) fail(a *domain.Action, reason string) {
	a.ResultCode = domain.ResultError
	if err := s.actions.UpdateStatus(a.ID, domain.ActionFailed, reason); err != nil {
		s.logger.Error().Err(err).Str("action_id", a.ID).Msg("fail transition failed")
	}
}

// retry yields a via RUNNING->WAITING->READY (§5's cooperative
// suspension), waiting Backoff's exponential delay before rejoining
// the READY pool, and promotes it to a terminal ERROR once
// Backoff.MaxRetries is exceeded.
func (s *Scheduler) retry(a *domain.Action) {
	s.mu.Lock()
	s.attempts[a.ID]++
	n := s.attempts[a.ID]
	s.mu.Unlock()

	if n > s.backoff.MaxRetries {
		s.fail(a, fmt.Sprintf("exceeded %d retries", s.backoff.MaxRetries))
		return
	}
	if err := s.actions.UpdateStatus(a.ID, domain.ActionWaiting, domain.CodeResRetry); err != nil {
		s.logger.Error().Err(err).Str("action_id", a.ID).Msg("yield to WAITING failed")
		return
	}
	delay := s.backoff.delay(n - 1)
	time.AfterFunc(delay, func() {
		if err := s.actions.UpdateStatus(a.ID, domain.ActionReady, ""); err != nil {
			s.logger.Error().Err(err).Str("action_id", a.ID).Msg("requeue after retry failed")
		}
	})
}

// waitPollInterval is the fixed reschedule delay for a dependents-wait
// yield (§4.5); unlike retry()'s error backoff this never grows and
// never promotes to FAILED on its own — the action's own timeout is
// what bounds a stuck wait.
const waitPollInterval = 50 * time.Millisecond

// yieldWait transitions a via RUNNING->WAITING->READY at a short fixed
// interval, for the "waiting loop for dependents" suspension point
// (§4.5), which is not an error condition and must not consume the
// retry backoff budget.
func (s *Scheduler) yieldWait(a *domain.Action) {
	if err := s.actions.UpdateStatus(a.ID, domain.ActionWaiting, ""); err != nil {
		s.logger.Error().Err(err).Str("action_id", a.ID).Msg("yield to WAITING failed")
		return
	}
	time.AfterFunc(waitPollInterval, func() {
		if err := s.actions.UpdateStatus(a.ID, domain.ActionReady, ""); err != nil {
			s.logger.Error().Err(err).Str("action_id", a.ID).Msg("requeue after dependents-wait failed")
		}
	})
}

func truthy(v any) bool {
	b, ok := v.(bool)
	return ok && b
}

// Cancel implements lock.Canceller: it sets the action's cooperative
// cancel flag and, if the action is currently running, cancels its
// execution context so the worker observes cancellation immediately
// instead of at its next sub-step check.
func (s *Scheduler) Cancel(actionID string) {
	_ = s.actions.Cancel(actionID)
	s.mu.Lock()
	cancel, ok := s.inflight[actionID]
	s.mu.Unlock()
	if ok {
		cancel()
	}
}
