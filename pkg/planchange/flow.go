package planchange

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/saazpayhq/saazpay/pkg/async"
	"github.com/saazpayhq/saazpay/pkg/billing"
	"github.com/saazpayhq/saazpay/pkg/observability"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// CatalogStatus is the load state of the plan catalog
type CatalogStatus string

const (
	CatalogIdle    CatalogStatus = "idle"
	CatalogLoading CatalogStatus = "loading"
	CatalogError   CatalogStatus = "error"
	CatalogLoaded  CatalogStatus = "loaded"
)

// CatalogState is the plan grid as currently shown
type CatalogState struct {
	Status    CatalogStatus    `json:"status"`
	Tab       billing.Interval `json:"tab"`
	Plans     []billing.Plan   `json:"plans"`
	Current   *billing.Plan    `json:"current,omitempty"`
	Error     string           `json:"error,omitempty"`
	EmptyText string           `json:"empty_text,omitempty"`
}

// Snapshot is a consistent view of a flow. Version increases with every
// change so that consumers can drop snapshots delivered out of order.
type Snapshot struct {
	ID           string                `json:"id"`
	Version      uint64                `json:"version"`
	Phase        Phase                 `json:"phase"`
	Subscription *billing.Subscription `json:"subscription,omitempty"`
	Catalog      CatalogState          `json:"catalog"`
	Selected     *billing.Plan         `json:"selected,omitempty"`
	Preview      PreviewState          `json:"preview"`
	Pending      *Pending              `json:"pending,omitempty"`
	CanConfirm   bool                  `json:"can_confirm"`
	CanGoBack    bool                  `json:"can_go_back"`
	Processing   bool                  `json:"processing"`
	CommitError  string                `json:"commit_error,omitempty"`
	Result       *CommitResult         `json:"result,omitempty"`
	Completed    bool                  `json:"completed"`
}

// Config tunes a flow. Zero values fall back to defaults.
type Config struct {
	SettleDelay    time.Duration
	CommitTimeout  time.Duration
	PreviewTimeout time.Duration
	CatalogTimeout time.Duration
	SettlePolicy   SettlePolicy
	Clock          Clock
}

// DefaultConfig returns the standard flow timings
func DefaultConfig() Config {
	return Config{
		SettleDelay:    DefaultSettleDelay,
		CommitTimeout:  DefaultCommitTimeout,
		PreviewTimeout: 15 * time.Second,
		CatalogTimeout: 15 * time.Second,
		SettlePolicy:   SettleAlways,
		Clock:          SystemClock{},
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.SettleDelay <= 0 {
		c.SettleDelay = d.SettleDelay
	}
	if c.CommitTimeout <= 0 {
		c.CommitTimeout = d.CommitTimeout
	}
	if c.PreviewTimeout <= 0 {
		c.PreviewTimeout = d.PreviewTimeout
	}
	if c.CatalogTimeout <= 0 {
		c.CatalogTimeout = d.CatalogTimeout
	}
	if c.SettlePolicy == "" {
		c.SettlePolicy = d.SettlePolicy
	}
	if c.Clock == nil {
		c.Clock = d.Clock
	}
	return c
}

// Option configures a Flow
type Option func(*Flow)

// WithID sets the flow ID instead of a generated UUID
func WithID(id string) Option {
	return func(f *Flow) {
		if id != "" {
			f.id = id
		}
	}
}

// WithLogger sets the flow logger
func WithLogger(logger *observability.Logger) Option {
	return func(f *Flow) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithObserver adds an event observer
func WithObserver(o Observer) Option {
	return func(f *Flow) {
		if o != nil {
			f.observers = append(f.observers, o)
		}
	}
}

// Flow drives one plan change for one subscription: catalog loading, plan
// selection with proration previews, explicit confirmation, the commit and
// the settle wait. All methods are safe for concurrent use. Previews and the
// commit run in the background; hosts follow progress through Subscribe and
// OnComplete.
type Flow struct {
	id        string
	client    billing.Client
	sub       *billing.Subscription
	cfg       Config
	committer *Committer
	logger    *observability.Logger
	observers []Observer
	runner    *async.Runner

	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.Mutex
	version      uint64
	gate         *Gate
	catalog      CatalogState
	openSeq      uint64
	current      *billing.Plan
	selection    *Selection
	preview      *Preview
	processing   bool
	commitErr    string
	result       *CommitResult
	cancelCommit context.CancelFunc
	completion   *Completion
	closed       bool
	nextListener int
	listeners    map[int]func(Snapshot)
	onComplete   []completionListener

	done     chan struct{}
	doneOnce sync.Once
}

// NewFlow creates a flow in the browsing phase. sub may be nil when the
// caller has no active subscription.
func NewFlow(client billing.Client, sub *billing.Subscription, cfg Config, opts ...Option) *Flow {
	cfg = cfg.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())

	f := &Flow{
		id:        uuid.NewString(),
		client:    client,
		sub:       sub,
		cfg:       cfg,
		committer: NewCommitter(client, cfg.CommitTimeout, cfg.SettleDelay, cfg.Clock),
		logger:    observability.NopLogger(),
		ctx:       ctx,
		cancel:    cancel,
		gate:      NewGate(),
		catalog:   CatalogState{Status: CatalogIdle, Tab: DefaultTab},
		preview:   NewPreview(),
		listeners: make(map[int]func(Snapshot)),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.logger = f.logger.WithFlow(f.id)
	f.runner = async.NewRunner(f.logger)
	return f
}

// ID returns the flow ID
func (f *Flow) ID() string {
	return f.id
}

// Subscription returns the subscription the flow changes, or nil
func (f *Flow) Subscription() *billing.Subscription {
	return f.sub
}

// Open starts plan selection and loads the catalog. On failure the catalog is
// left in the error state; there is no automatic retry.
func (f *Flow) Open(ctx context.Context) error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return ErrFlowClosed
	}
	if err := f.gate.Open(); err != nil {
		f.mu.Unlock()
		return err
	}
	f.openSeq++
	seq := f.openSeq
	f.catalog = CatalogState{Status: CatalogLoading, Tab: DefaultTab}
	snap := f.changedLocked()
	ev := f.eventLocked(EventFlowOpened, "", 0, nil)
	f.mu.Unlock()
	f.publish(snap, ev)

	loadCtx, cancel := context.WithTimeout(ctx, f.cfg.CatalogTimeout)
	defer cancel()
	start := time.Now()
	plans, err := f.client.GetPlans(loadCtx)

	f.mu.Lock()
	if seq != f.openSeq || f.gate.Phase() != PhaseSelecting {
		f.mu.Unlock()
		return nil
	}
	if err != nil {
		f.catalog.Status = CatalogError
		f.catalog.Error = CatalogErrorText
		snap = f.changedLocked()
		ev = f.eventLocked(EventCatalogFailed, "", 0, err)
		ev.Duration = time.Since(start)
		f.mu.Unlock()
		f.publish(snap, ev)
		return fmt.Errorf("failed to load plans: %w", err)
	}

	current, others := billing.SplitCatalog(plans, f.sub)
	f.current = current
	f.selection = NewSelection(others)
	f.catalog.Status = CatalogLoaded
	snap = f.changedLocked()
	ev = f.eventLocked(EventCatalogLoaded, "", 0, nil)
	ev.Duration = time.Since(start)
	f.mu.Unlock()
	f.publish(snap, ev)
	return nil
}

// SetTab switches the billing interval tab
func (f *Flow) SetTab(tab billing.Interval) error {
	f.mu.Lock()
	if err := f.requireSelectingLocked("switch tabs"); err != nil {
		f.mu.Unlock()
		return err
	}
	if err := f.selection.SetTab(tab); err != nil {
		f.mu.Unlock()
		return err
	}
	snap := f.changedLocked()
	f.mu.Unlock()
	f.publish(snap)
	return nil
}

// Select marks planID as the candidate plan and starts a proration preview
// for it. Every call starts a new preview, including re-selection of the
// current candidate; only the latest preview is ever displayed.
func (f *Flow) Select(planID string) error {
	f.mu.Lock()
	if err := f.requireSelectingLocked("select a plan"); err != nil {
		f.mu.Unlock()
		return err
	}
	plan, err := f.selection.Select(planID)
	if err != nil {
		f.mu.Unlock()
		return err
	}
	gen := f.preview.Begin(plan.ID)
	snap := f.changedLocked()
	ev := f.eventLocked(EventPlanSelected, plan.ID, gen, nil)
	f.mu.Unlock()
	f.publish(snap, ev)

	started := f.runner.Go(f.ctx, f.cfg.PreviewTimeout, "proration preview", func(ctx context.Context) error {
		return f.runPreview(ctx, plan.ID, gen)
	})
	if !started {
		return ErrFlowClosed
	}
	return nil
}

func (f *Flow) runPreview(ctx context.Context, planID string, gen uint64) error {
	start := time.Now()
	data, err := f.client.PreviewPlan(ctx, planID)
	if err == nil && data == nil {
		err = ErrEmptyPreview
	}

	f.mu.Lock()
	var applied bool
	if err != nil {
		applied = f.preview.Fail(gen, err)
	} else {
		applied = f.preview.Resolve(gen, data)
	}

	if !applied {
		ev := f.eventLocked(EventPreviewStale, planID, gen, err)
		ev.Duration = time.Since(start)
		f.mu.Unlock()
		f.publish(Snapshot{}, ev)
		return nil
	}

	evType := EventPreviewSucceeded
	if err != nil {
		evType = EventPreviewFailed
	}
	snap := f.changedLocked()
	ev := f.eventLocked(evType, planID, gen, err)
	ev.Duration = time.Since(start)
	f.mu.Unlock()
	f.publish(snap, ev)

	if err != nil {
		return fmt.Errorf("failed to preview plan %s: %w", planID, err)
	}
	return nil
}

// RequestConfirm moves the selected plan into confirmation, summarising the
// current and new plans in the preview's currency
func (f *Flow) RequestConfirm() error {
	f.mu.Lock()
	if err := f.requireSelectingLocked("request confirmation"); err != nil {
		f.mu.Unlock()
		return err
	}
	selected := f.selection.Selected()
	if selected == nil {
		f.mu.Unlock()
		return ErrNoSelection
	}
	if !f.preview.Ready(selected.ID) {
		f.mu.Unlock()
		return ErrPreviewNotReady
	}
	if f.current == nil {
		f.mu.Unlock()
		return ErrNoSubscription
	}

	code := f.preview.State().Data.CurrencyCode
	pending := Pending{
		From:   billing.PlanSummary(*f.current, code),
		To:     billing.PlanSummary(*selected, code),
		PlanID: selected.ID,
	}
	if err := f.gate.RequestConfirm(pending); err != nil {
		f.mu.Unlock()
		return err
	}
	snap := f.changedLocked()
	ev := f.eventLocked(EventConfirmRequested, selected.ID, 0, nil)
	f.mu.Unlock()
	f.publish(snap, ev)
	return nil
}

// Back discards the pending change and returns to a fresh plan grid
func (f *Flow) Back() error {
	f.mu.Lock()
	pending := f.gate.Pending()
	if err := f.gate.Back(); err != nil {
		f.mu.Unlock()
		return err
	}
	f.selection = NewSelection(f.selection.Catalog())
	f.preview.Reset()
	f.commitErr = ""
	snap := f.changedLocked()
	planID := ""
	if pending != nil {
		planID = pending.PlanID
	}
	ev := f.eventLocked(EventConfirmDiscarded, planID, 0, nil)
	f.mu.Unlock()
	f.publish(snap, ev)
	return nil
}

// Dashboard leaves plan selection for the subscription summary
func (f *Flow) Dashboard() error {
	f.mu.Lock()
	if err := f.gate.Dashboard(); err != nil {
		f.mu.Unlock()
		return err
	}
	f.openSeq++
	f.catalog = CatalogState{Status: CatalogIdle, Tab: DefaultTab}
	f.selection = nil
	f.current = nil
	f.preview.Reset()
	snap := f.changedLocked()
	f.mu.Unlock()
	f.publish(snap)
	return nil
}

// Confirm commits the pending change. The commit and the settle wait run in
// the background; Confirm returns once the commit has started.
func (f *Flow) Confirm() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return ErrFlowClosed
	}
	pending, err := f.gate.Confirm()
	if err != nil {
		f.mu.Unlock()
		return err
	}
	commitCtx, cancel := context.WithCancel(f.ctx)
	f.cancelCommit = cancel
	f.commitErr = ""
	f.result = nil
	f.processing = false
	snap := f.changedLocked()
	ev := f.eventLocked(EventCommitStarted, pending.PlanID, 0, nil)
	f.mu.Unlock()
	f.publish(snap, ev)

	started := f.runner.Go(commitCtx, 0, "plan change commit", func(ctx context.Context) error {
		defer cancel()
		f.runCommit(ctx, pending)
		return nil
	})
	if !started {
		cancel()
		return ErrFlowClosed
	}
	return nil
}

// Cancel aborts an in-flight commit. The canceled commit is a failure and
// follows the settle policy like any other failure.
func (f *Flow) Cancel() error {
	f.mu.Lock()
	if f.gate.Phase() != PhaseCommitting || f.cancelCommit == nil {
		f.mu.Unlock()
		return ErrNothingToCancel
	}
	cancel := f.cancelCommit
	var planID string
	if p := f.gate.Pending(); p != nil {
		planID = p.PlanID
	}
	ev := f.eventLocked(EventCommitCanceled, planID, 0, nil)
	f.mu.Unlock()

	cancel()
	f.publish(Snapshot{}, ev)
	return nil
}

func (f *Flow) runCommit(ctx context.Context, pending Pending) {
	start := time.Now()
	ctx, span := observability.Tracer().Start(ctx, "planchange.commit", trace.WithAttributes(
		attribute.String("saazpay.flow_id", f.id),
		attribute.String("saazpay.plan_id", pending.PlanID),
	))
	result := f.committer.Commit(ctx, pending.PlanID)
	if !result.OK() {
		span.SetStatus(codes.Error, result.Reason)
	}
	observability.UpdateLoggerWithTraceContext(ctx, f.logger).
		WithPlan(pending.PlanID).
		WithField("outcome", string(result.Outcome)).
		Debug("plan change commit returned")
	span.End()

	f.mu.Lock()
	f.cancelCommit = nil
	f.result = &result
	evType := EventCommitSucceeded
	if !result.OK() {
		evType = EventCommitFailed
	}
	ev := f.eventLocked(evType, pending.PlanID, 0, result.Err())
	ev.Duration = time.Since(start)

	if !f.cfg.SettlePolicy.ShouldSettle(result) {
		_ = f.gate.Reject()
		f.commitErr = result.Reason
		snap := f.changedLocked()
		f.mu.Unlock()
		f.publish(snap, ev)
		return
	}

	_ = f.gate.BeginSettle()
	f.processing = true
	snap := f.changedLocked()
	settleEv := f.eventLocked(EventSettleStarted, pending.PlanID, 0, nil)
	settleEv.Duration = f.committer.SettleDelay()
	f.mu.Unlock()
	f.publish(snap, ev, settleEv)

	settleErr := f.committer.Settle(f.ctx)

	f.mu.Lock()
	settled := settleErr == nil
	if settled {
		_ = f.gate.Finish()
		f.processing = false
	}
	completion := Completion{FlowID: f.id, Result: result, Settled: settled}
	f.completion = &completion
	callbacks := make([]func(Completion), 0, len(f.onComplete))
	for _, l := range f.onComplete {
		callbacks = append(callbacks, l.fn)
	}
	f.onComplete = nil
	snap = f.changedLocked()
	doneEv := f.eventLocked(EventFlowCompleted, pending.PlanID, 0, settleErr)
	doneEv.Duration = time.Since(start)
	f.mu.Unlock()

	f.publish(snap, doneEv)
	for _, fn := range callbacks {
		fn(completion)
	}
	f.doneOnce.Do(func() { close(f.done) })
}

// Snapshot returns the current state
func (f *Flow) Snapshot() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshotLocked()
}

// Subscribe registers fn to receive a snapshot after every change and returns
// a function that removes it. fn must not block and must not call Close.
func (f *Flow) Subscribe(fn func(Snapshot)) func() {
	f.mu.Lock()
	id := f.nextListener
	f.nextListener++
	f.listeners[id] = fn
	f.mu.Unlock()

	return func() {
		f.mu.Lock()
		delete(f.listeners, id)
		f.mu.Unlock()
	}
}

type completionListener struct {
	id int
	fn func(Completion)
}

// OnComplete registers fn to run once the flow completes. If the flow has
// already completed fn runs immediately. The returned func unregisters fn.
func (f *Flow) OnComplete(fn func(Completion)) func() {
	f.mu.Lock()
	if f.completion != nil {
		c := *f.completion
		f.mu.Unlock()
		fn(c)
		return func() {}
	}
	id := f.nextListener
	f.nextListener++
	f.onComplete = append(f.onComplete, completionListener{id: id, fn: fn})
	f.mu.Unlock()

	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		for i, l := range f.onComplete {
			if l.id == id {
				f.onComplete = append(f.onComplete[:i], f.onComplete[i+1:]...)
				return
			}
		}
	}
}

// Done is closed when the flow completes or is closed
func (f *Flow) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the flow completes
func (f *Flow) Wait(ctx context.Context) (Completion, error) {
	select {
	case <-f.done:
	case <-ctx.Done():
		return Completion{}, ctx.Err()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.completion == nil {
		return Completion{}, ErrFlowClosed
	}
	return *f.completion, nil
}

// Close cancels background work and waits for it to stop
func (f *Flow) Close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	ev := f.eventLocked(EventFlowClosed, "", 0, nil)
	f.mu.Unlock()

	f.cancel()
	f.runner.Close()
	f.doneOnce.Do(func() { close(f.done) })
	f.publish(Snapshot{}, ev)
}

func (f *Flow) requireSelectingLocked(action string) error {
	if f.closed {
		return ErrFlowClosed
	}
	if phase := f.gate.Phase(); phase != PhaseSelecting {
		return transitionError(phase, action)
	}
	if f.selection == nil {
		return ErrCatalogNotLoaded
	}
	return nil
}

func (f *Flow) changedLocked() Snapshot {
	f.version++
	return f.snapshotLocked()
}

func (f *Flow) snapshotLocked() Snapshot {
	catalog := f.catalog
	var selected *billing.Plan
	if f.selection != nil {
		catalog.Tab = f.selection.Tab()
		catalog.Plans = f.selection.Visible()
		if len(catalog.Plans) == 0 {
			catalog.EmptyText = EmptyTabText
		}
		selected = f.selection.Selected()
	}
	if f.current != nil {
		c := *f.current
		catalog.Current = &c
	}

	snap := Snapshot{
		ID:           f.id,
		Version:      f.version,
		Phase:        f.gate.Phase(),
		Subscription: f.sub,
		Catalog:      catalog,
		Selected:     selected,
		Preview:      f.preview.State(),
		Pending:      f.gate.Pending(),
		CanConfirm:   f.gate.CanConfirm(),
		CanGoBack:    f.gate.Phase() == PhaseConfirmPending,
		Processing:   f.processing,
		CommitError:  f.commitErr,
		Completed:    f.completion != nil,
	}
	if f.result != nil {
		r := *f.result
		snap.Result = &r
	}
	return snap
}

func (f *Flow) eventLocked(t EventType, planID string, gen uint64, err error) Event {
	ev := Event{
		FlowID:     f.id,
		Type:       t,
		Phase:      f.gate.Phase(),
		PlanID:     planID,
		Generation: gen,
		At:         time.Now(),
	}
	if f.sub != nil {
		ev.SubscriptionID = f.sub.ID
	}
	if err != nil {
		ev.Error = err.Error()
	}
	return ev
}

// publish delivers events to observers and, when snap carries a version, the
// snapshot to listeners. Must be called without holding mu.
func (f *Flow) publish(snap Snapshot, events ...Event) {
	for _, ev := range events {
		logger := f.logger.WithField("event", string(ev.Type)).WithField("phase", string(ev.Phase))
		if ev.PlanID != "" {
			logger = logger.WithPlan(ev.PlanID)
		}
		if ev.Error != "" {
			logger.WithField("error", ev.Error).Warn("plan change flow event")
		} else {
			logger.Debug("plan change flow event")
		}
		for _, o := range f.observers {
			o.ObserveFlowEvent(ev)
		}
	}

	if snap.Version == 0 {
		return
	}
	f.mu.Lock()
	listeners := make([]func(Snapshot), 0, len(f.listeners))
	for _, fn := range f.listeners {
		listeners = append(listeners, fn)
	}
	f.mu.Unlock()
	for _, fn := range listeners {
		fn(snap)
	}
}
