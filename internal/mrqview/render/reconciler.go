package render

import (
	"log/slog"
	"sync"
	"time"
)

// ChangeHandler is notified after the visible render state changed. It runs
// on the reconciler goroutine, one notification at a time in apply order.
type ChangeHandler func(state State)

// Reconciler merges snapshots from the push channel and the poller into one
// monotonic render state. All applies are funneled through a single
// goroutine so conflicting sources are ordered by arrival, and the rules
// make the channels commutative and idempotent:
//
//   - the snapshot with the latest ObservedAt wins regardless of source
//   - at equal stamps push beats poll
//   - a broadcast supersedes any poll whose observation began before the
//     broadcast arrived, because broadcasts announce a confirmed change
//     while polls are only freshness checks
type Reconciler struct {
	mu       sync.RWMutex
	state    State
	lastPush time.Time // receipt time of the newest broadcast

	applyCh  chan Snapshot
	stopCh   chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	onChange ChangeHandler
	logger   *slog.Logger
}

// NewReconciler creates a reconciler in the empty state and starts its
// apply loop. Stop must be called to release the goroutine.
func NewReconciler(onChange ChangeHandler, logger *slog.Logger) *Reconciler {
	r := &Reconciler{
		state:    State{Source: SourceNone},
		applyCh:  make(chan Snapshot, 16),
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
		onChange: onChange,
		logger:   logger,
	}
	go r.run()
	return r
}

// State returns a copy of the current render state
func (r *Reconciler) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// Apply enqueues a snapshot for reconciliation. Snapshots arriving after
// Stop are dropped.
func (r *Reconciler) Apply(snapshot Snapshot) {
	select {
	case <-r.stopCh:
	case r.applyCh <- snapshot:
	}
}

// Stop shuts the apply loop down. It is idempotent and waits for the loop
// to exit so no notification can fire after Stop returns.
func (r *Reconciler) Stop() {
	r.stopOnce.Do(func() {
		close(r.stopCh)
	})
	<-r.done
}

func (r *Reconciler) run() {
	defer close(r.done)
	for {
		select {
		case <-r.stopCh:
			return
		case snapshot := <-r.applyCh:
			r.reconcile(snapshot)
		}
	}
}

func (r *Reconciler) reconcile(s Snapshot) {
	r.mu.Lock()

	if !r.accept(s) {
		r.mu.Unlock()
		return
	}

	prev := r.state
	r.state = State{
		ActiveContent: s.Content,
		Source:        s.Source,
		ObservedAt:    s.ObservedAt,
		Reason:        s.Reason,
	}
	if s.Broadcast && s.ObservedAt.After(r.lastPush) {
		r.lastPush = s.ObservedAt
	}

	changed := !sameContent(prev.ActiveContent, r.state.ActiveContent) ||
		prev.Reason != r.state.Reason ||
		prev.Source == SourceNone

	state := r.state
	r.mu.Unlock()

	if !changed {
		return
	}

	r.logger.Info("render state changed",
		"source", state.Source,
		"hasContent", state.ActiveContent != nil,
	)
	if r.onChange != nil {
		r.onChange(state)
	}
}

// accept decides whether s may overwrite the current state. Caller holds
// the write lock.
func (r *Reconciler) accept(s Snapshot) bool {
	// A poll that was already in flight when a broadcast landed is stale by
	// definition, whatever its receipt stamp says.
	if s.Source == SourcePoll && !r.lastPush.IsZero() && !s.StartedAt.After(r.lastPush) {
		return false
	}

	cur := r.state
	if cur.Source == SourceNone {
		return true
	}
	if s.ObservedAt.After(cur.ObservedAt) {
		return true
	}
	if s.ObservedAt.Equal(cur.ObservedAt) {
		// Ties go to push over poll; an exact replay changes nothing either way
		return s.Source == SourcePush && cur.Source == SourcePoll
	}
	return false
}
