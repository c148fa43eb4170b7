package service

import (
	"context"
	"log"
	"time"
)

const DefaultReconcileInterval = 15 * time.Minute

// ReconcileWorker periodically raises link counters that fell behind the
// analytics event log.
type ReconcileWorker struct {
	store    CounterReconciler
	interval time.Duration
	notifier Notifier
	onDone   func(updated int64)
}

func NewReconcileWorker(store CounterReconciler, interval time.Duration) *ReconcileWorker {
	if interval <= 0 {
		interval = DefaultReconcileInterval
	}
	return &ReconcileWorker{
		store:    store,
		interval: interval,
		notifier: nopNotifier{},
	}
}

func (w *ReconcileWorker) SetNotifier(n Notifier) {
	w.notifier = n
}

// OnReconciled registers a callback receiving the number of corrected links
// after every successful pass.
func (w *ReconcileWorker) OnReconciled(fn func(updated int64)) {
	w.onDone = fn
}

func (w *ReconcileWorker) Start(ctx context.Context) {
	log.Printf("[Reconcile Worker] Started, reconciling every %v", w.interval)

	// Initial pass
	w.RunOnce(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[Reconcile Worker] Stopped")
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

func (w *ReconcileWorker) RunOnce(ctx context.Context) (int64, error) {
	updated, err := w.store.ReconcileLinkCounters(ctx)
	if err != nil {
		if ctx.Err() == nil {
			log.Printf("[Reconcile Worker] Failed to reconcile link counters: %v", err)
			if nerr := w.notifier.NotifyStorageFailure("reconcile link counters", err); nerr != nil {
				log.Printf("[Reconcile Worker] Failed to send alert: %v", nerr)
			}
		}
		return 0, err
	}
	if updated > 0 {
		log.Printf("[Reconcile Worker] Raised counters on %d links", updated)
	}
	if w.onDone != nil {
		w.onDone(updated)
	}
	return updated, nil
}
