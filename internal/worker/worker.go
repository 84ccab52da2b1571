// Package worker implements the single-consumer task loop that drives one
// reconciler.Reconciler: a bounded FIFO of update-net / clear-all / exit
// tasks, served by one goroutine per OFC so that all reconciliation work
// for a given controller happens serially.
package worker

import (
	"context"
	"errors"
	"log"
	"time"

	"ofcd/internal/eventhub"
	"ofcd/internal/metrics"
	"ofcd/internal/ofcdriver"
	"ofcd/internal/planner"
	"ofcd/internal/reconciler"
	"ofcd/internal/store"
)

// ErrQueueFull is returned by Enqueue when the task does not fit in the
// queue within enqueueTimeout.
var ErrQueueFull = errors.New("worker: task queue full")

// TaskKind identifies what a Task asks the worker to do.
type TaskKind int

const (
	TaskUpdateNet TaskKind = iota
	TaskClearAll
	TaskExit
)

func (k TaskKind) String() string {
	switch k {
	case TaskUpdateNet:
		return "update-net"
	case TaskClearAll:
		return "clear-all"
	case TaskExit:
		return "exit"
	default:
		return "unknown"
	}
}

// Task is one unit of work enqueued for a worker. NetID is only meaningful
// for TaskUpdateNet.
type Task struct {
	Kind  TaskKind
	NetID string
}

const (
	queueCapacity  = 2000
	enqueueTimeout = 5 * time.Second
	idlePoll       = 1 * time.Second
)

// Worker serves exactly one OFC. All reconciliation for that OFC happens on
// the goroutine that calls Run.
type Worker struct {
	OFCUUID    string
	Reconciler *reconciler.Reconciler
	Hub        *eventhub.Hub
	Metrics    *metrics.Metrics
	Logger     *log.Logger

	queue chan Task
}

// New builds a Worker around an already-configured Reconciler. hub and m
// may be nil — events and metrics are simply not emitted.
func New(ofcUUID string, r *reconciler.Reconciler, hub *eventhub.Hub, m *metrics.Metrics, logger *log.Logger) *Worker {
	return &Worker{
		OFCUUID:    ofcUUID,
		Reconciler: r,
		Hub:        hub,
		Metrics:    m,
		Logger:     logger,
		queue:      make(chan Task, queueCapacity),
	}
}

func (w *Worker) logf(format string, args ...interface{}) {
	if w.Logger == nil {
		log.Printf(format, args...)
		return
	}
	w.Logger.Printf(format, args...)
}

// Enqueue adds a task to the queue, blocking up to 5 seconds if it is full.
// Safe to call concurrently from any number of goroutines.
func (w *Worker) Enqueue(t Task) error {
	select {
	case w.queue <- t:
		w.reportQueueDepth()
		return nil
	case <-time.After(enqueueTimeout):
		return ErrQueueFull
	}
}

// QueueDepth returns the number of tasks currently buffered.
func (w *Worker) QueueDepth() int {
	return len(w.queue)
}

func (w *Worker) reportQueueDepth() {
	if w.Metrics != nil {
		w.Metrics.SetQueueDepth(w.OFCUUID, len(w.queue))
	}
}

// Run serves tasks until a TaskExit is processed or ctx is cancelled.
// Dequeue is non-blocking: when the queue is empty the worker sleeps
// idlePoll and checks again, so Run never blocks indefinitely on an idle
// OFC.
func (w *Worker) Run(ctx context.Context) {
	w.logf("[worker %s] started", w.OFCUUID)
	for {
		select {
		case <-ctx.Done():
			w.logf("[worker %s] context cancelled, stopping", w.OFCUUID)
			return
		case t := <-w.queue:
			w.reportQueueDepth()
			exit := w.dispatch(ctx, t)
			if exit {
				return
			}
		default:
			time.Sleep(idlePoll)
		}
	}
}

// dispatch runs one task and reports its outcome. It returns true when the
// worker should stop serving (TaskExit observed).
func (w *Worker) dispatch(ctx context.Context, t Task) bool {
	switch t.Kind {
	case TaskUpdateNet:
		res, err := w.Reconciler.UpdateNet(ctx, t.NetID)
		w.reportUpdateNet(t.NetID, res, err)
		return false

	case TaskClearAll:
		err := w.Reconciler.ClearAll(ctx)
		w.reportClearAll(err)
		return false

	case TaskExit:
		w.logf("[worker %s] exit task received, shutting down", w.OFCUUID)
		if err := store.SetOFCStatus(w.Reconciler.DB, w.OFCUUID, store.StatusInactive, ""); err != nil {
			w.logf("[worker %s] failed to record INACTIVE status: %v", w.OFCUUID, err)
		}
		if w.Hub != nil {
			w.Hub.Broadcast(eventhub.Event{Type: eventhub.EventOFCStatus, OFCUUID: w.OFCUUID, Status: store.StatusInactive})
		}
		if w.Metrics != nil {
			w.Metrics.SetOFCStatus(w.OFCUUID, store.StatusInactive)
		}
		return true

	default:
		w.logf("[worker %s] discarding unknown task kind %v", w.OFCUUID, t.Kind)
		return false
	}
}

func (w *Worker) reportUpdateNet(netID string, res reconciler.Result, err error) {
	outcome := "ok"
	if err != nil {
		var ofcErr *ofcdriver.OfcError
		var topoErr *planner.TopologyError
		switch {
		case errors.As(err, &ofcErr):
			outcome = "ofc_error"
			w.logf("[worker %s] net %s: reconcile failed (%s): %v", w.OFCUUID, netID, outcome, err)
		case errors.As(err, &topoErr):
			outcome = "topology_error"
			w.logf("[worker %s] net %s: reconcile failed (%s): %v", w.OFCUUID, netID, outcome, err)
		default:
			outcome = "error"
			w.logf("[worker %s] net %s: CRITICAL unexpected reconciliation error: %v", w.OFCUUID, netID, err)
		}
	} else if res.Created > 0 || res.Deleted > 0 {
		w.logf("[worker %s] net %s: reconciled (+%d/-%d flows)", w.OFCUUID, netID, res.Created, res.Deleted)
	}

	if w.Metrics != nil {
		w.Metrics.IncReconcile(w.OFCUUID, outcome)
		w.Metrics.AddFlowsCreated(w.OFCUUID, res.Created)
		w.Metrics.AddFlowsDeleted(w.OFCUUID, res.Deleted)
		if res.Status != "" {
			w.Metrics.SetOFCStatus(w.OFCUUID, res.Status)
		}
	}
	if w.Hub != nil && res.Status != "" {
		w.Hub.Broadcast(eventhub.Event{
			Type:    eventhub.EventReconcile,
			OFCUUID: w.OFCUUID,
			NetID:   netID,
			Status:  res.Status,
			Created: res.Created,
			Deleted: res.Deleted,
		})
	}
}

func (w *Worker) reportClearAll(err error) {
	status := store.StatusActive
	if err != nil {
		status = store.StatusError
		w.logf("[worker %s] clear-all failed: %v", w.OFCUUID, err)
	} else {
		w.logf("[worker %s] clear-all complete", w.OFCUUID)
	}
	if w.Metrics != nil {
		outcome := "ok"
		if err != nil {
			outcome = "ofc_error"
		}
		w.Metrics.IncReconcile(w.OFCUUID, outcome)
		w.Metrics.SetOFCStatus(w.OFCUUID, status)
	}
	if w.Hub != nil {
		w.Hub.Broadcast(eventhub.Event{Type: eventhub.EventClearAll, OFCUUID: w.OFCUUID, Status: status})
	}
}
