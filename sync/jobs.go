package sync

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-bankfeeds/core"
	glog "github.com/goliatone/go-logger/glog"
	"golang.org/x/sync/errgroup"
)

const (
	JobIDSyncAccount    = "bankfeeds.sync.account"
	ParamAccountID      = "account_id"
	DedupPolicyDrop     = "drop"
	DefaultRetryDelay   = 30 * time.Second
	DefaultWorkerCount  = 2
	syncIdempotencyBase = "sync:"
)

// SyncIdempotencyKey keeps at most one queued sync per account.
func SyncIdempotencyKey(accountID string) string {
	return syncIdempotencyBase + strings.TrimSpace(accountID)
}

func NewSyncJobMessage(accountID string) *core.JobExecutionMessage {
	accountID = strings.TrimSpace(accountID)
	return &core.JobExecutionMessage{
		JobID:          JobIDSyncAccount,
		ScriptPath:     JobIDSyncAccount,
		Parameters:     map[string]any{ParamAccountID: accountID},
		IdempotencyKey: SyncIdempotencyKey(accountID),
		DedupPolicy:    DedupPolicyDrop,
	}
}

type AccountLister interface {
	List(ctx context.Context, providerKey string) ([]core.Account, error)
}

type AccountReader interface {
	Get(ctx context.Context, id string) (core.Account, error)
}

// Scheduler enqueues one sync job per stored account.
type Scheduler struct {
	enqueuer core.JobEnqueuer
	accounts AccountLister
}

func NewScheduler(enqueuer core.JobEnqueuer, accounts AccountLister) *Scheduler {
	return &Scheduler{enqueuer: enqueuer, accounts: accounts}
}

// EnqueueAccounts schedules every account of providerKey, or all accounts
// when providerKey is empty, and returns how many jobs were enqueued.
func (s *Scheduler) EnqueueAccounts(ctx context.Context, providerKey string) (int, error) {
	if s == nil || s.enqueuer == nil || s.accounts == nil {
		return 0, core.NewConfigurationError("sync: job enqueuer and account lister are required", nil)
	}
	accounts, err := s.accounts.List(ctx, strings.TrimSpace(providerKey))
	if err != nil {
		return 0, err
	}
	enqueued := 0
	for _, account := range accounts {
		if err := s.enqueuer.Enqueue(ctx, NewSyncJobMessage(account.ID)); err != nil {
			return enqueued, fmt.Errorf("sync: enqueue account %s: %w", account.ID, err)
		}
		enqueued++
	}
	return enqueued, nil
}

// Worker consumes sync jobs and settles each delivery according to the
// error kind the pass returned.
type Worker struct {
	dequeuer   core.JobDequeuer
	accounts   AccountReader
	runner     *Runner
	hook       core.JobWorkerHook
	logger     core.Logger
	retryDelay time.Duration
	workers    int
	now        func() time.Time
}

type WorkerOption func(*Worker)

func WithWorkerHook(hook core.JobWorkerHook) WorkerOption {
	return func(w *Worker) {
		w.hook = hook
	}
}

func WithWorkerLogger(logger core.Logger) WorkerOption {
	return func(w *Worker) {
		w.logger = logger
	}
}

func WithRetryDelay(delay time.Duration) WorkerOption {
	return func(w *Worker) {
		if delay >= 0 {
			w.retryDelay = delay
		}
	}
}

func WithWorkerCount(n int) WorkerOption {
	return func(w *Worker) {
		if n > 0 {
			w.workers = n
		}
	}
}

func NewWorker(dequeuer core.JobDequeuer, accounts AccountReader, runner *Runner, opts ...WorkerOption) *Worker {
	w := &Worker{
		dequeuer:   dequeuer,
		accounts:   accounts,
		runner:     runner,
		retryDelay: DefaultRetryDelay,
		workers:    DefaultWorkerCount,
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}
	w.logger = glog.Ensure(w.logger)
	return w
}

// Run processes jobs until ctx is cancelled or the dequeuer fails.
func (w *Worker) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for range w.workers {
		g.Go(func() error {
			for {
				if err := w.ProcessNext(gctx); err != nil {
					if gctx.Err() != nil {
						return nil
					}
					return err
				}
			}
		})
	}
	return g.Wait()
}

// ProcessNext dequeues a single job and settles it. Job failures are
// settled on the delivery; only dequeue and settle failures are returned.
func (w *Worker) ProcessNext(ctx context.Context) error {
	if w == nil || w.dequeuer == nil || w.accounts == nil || w.runner == nil {
		return core.NewConfigurationError("sync: worker dequeuer, account reader and runner are required", nil)
	}
	delivery, err := w.dequeuer.Dequeue(ctx)
	if err != nil {
		return err
	}
	if delivery == nil {
		return nil
	}

	msg := delivery.Message()
	event := core.JobWorkerEvent{Message: msg, Attempt: 1, StartedAt: w.now()}
	if counter, ok := delivery.(interface{ Attempt() int }); ok && counter.Attempt() > 0 {
		event.Attempt = counter.Attempt()
	}
	w.emit(ctx, w.hookStart, event)

	runErr := w.execute(ctx, msg)
	event.Duration = w.now().Sub(event.StartedAt)
	if runErr == nil {
		w.emit(ctx, w.hookSuccess, event)
		return delivery.Ack(ctx)
	}

	opts := w.nackOptions(runErr)
	event.Err = runErr
	event.Delay = opts.Delay
	if opts.DeadLetter {
		w.emit(ctx, w.hookFailure, event)
	} else {
		w.emit(ctx, w.hookRetry, event)
	}
	w.logger.WithContext(ctx).Warn("sync job not completed",
		"account_id", accountIDFrom(msg),
		"requeue", opts.Requeue,
		"dead_letter", opts.DeadLetter,
		"error", runErr,
	)
	return delivery.Nack(ctx, opts)
}

func (w *Worker) execute(ctx context.Context, msg *core.JobExecutionMessage) error {
	if msg == nil || msg.JobID != JobIDSyncAccount {
		return core.NewConfigurationError("sync: unsupported job", nil)
	}
	accountID := accountIDFrom(msg)
	if accountID == "" {
		return core.NewConfigurationError("sync: job is missing account id", nil)
	}
	account, err := w.accounts.Get(ctx, accountID)
	if err != nil {
		if errors.Is(err, core.ErrAccountNotFound) {
			return core.NewNotFoundError("sync: account not found", map[string]any{"account_id": accountID})
		}
		return err
	}
	_, err = w.runner.SyncAccount(ctx, account)
	return err
}

// nackOptions dead-letters jobs that cannot succeed on retry.
func (w *Worker) nackOptions(err error) core.JobNackOptions {
	switch {
	case errors.Is(err, ErrAccountBusy):
		return core.JobNackOptions{Requeue: true, Delay: w.retryDelay, Reason: "account busy"}
	case core.IsErrorKind(err, core.ErrorConfiguration),
		core.IsErrorKind(err, core.ErrorCredentialEnvelope),
		core.IsErrorKind(err, core.ErrorUnsupportedProvider),
		core.IsErrorKind(err, core.ErrorNotFound),
		core.IsErrorKind(err, core.ErrorAuthFailure):
		return core.JobNackOptions{DeadLetter: true, Reason: err.Error()}
	default:
		return core.JobNackOptions{Requeue: true, Delay: w.retryDelay, Reason: err.Error()}
	}
}

func (w *Worker) emit(ctx context.Context, fn func(context.Context, core.JobWorkerEvent), event core.JobWorkerEvent) {
	if w.hook == nil {
		return
	}
	fn(ctx, event)
}

func (w *Worker) hookStart(ctx context.Context, e core.JobWorkerEvent)   { w.hook.OnStart(ctx, e) }
func (w *Worker) hookSuccess(ctx context.Context, e core.JobWorkerEvent) { w.hook.OnSuccess(ctx, e) }
func (w *Worker) hookFailure(ctx context.Context, e core.JobWorkerEvent) { w.hook.OnFailure(ctx, e) }
func (w *Worker) hookRetry(ctx context.Context, e core.JobWorkerEvent)   { w.hook.OnRetry(ctx, e) }

func accountIDFrom(msg *core.JobExecutionMessage) string {
	if msg == nil || msg.Parameters == nil {
		return ""
	}
	value, ok := msg.Parameters[ParamAccountID]
	if !ok || value == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(value))
}
