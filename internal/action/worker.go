package action

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// job is one queued consequence set run.
type job struct {
	valid   bool
	trigger string
	at      time.Time
}

// worker runs jobs one at a time, in order, on its own goroutine.
// The goroutine starts with the first job and ends with stop.
type worker struct {
	run func(job)

	mu      sync.Mutex
	queue   []job
	busy    bool
	stopped bool
	started bool
	wake    chan struct{}
	done    chan struct{}
}

func (w *worker) enqueue(j job) {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.queue = append(w.queue, j)
	if !w.started {
		w.started = true
		w.wake = make(chan struct{}, 1)
		w.done = make(chan struct{})
		go w.loop(w.wake, w.done)
	}
	wake := w.wake
	w.mu.Unlock()

	select {
	case wake <- struct{}{}:
	default:
	}
}

func (w *worker) loop(wake <-chan struct{}, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case <-wake:
		}
		for {
			w.mu.Lock()
			if w.stopped || len(w.queue) == 0 {
				w.busy = false
				w.mu.Unlock()
				break
			}
			j := w.queue[0]
			w.queue = w.queue[1:]
			w.busy = true
			w.mu.Unlock()

			w.run(j)
		}
	}
}

// stop drops queued jobs and ends the goroutine. A job already running
// completes. stop does not wait for it, so a consequence may remove its
// own action.
func (w *worker) stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	w.stopped = true
	w.queue = nil
	if w.started {
		close(w.done)
	}
}

// idle reports whether no job is queued or running.
func (w *worker) idle() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.queue) == 0 && !w.busy
}

func (a *Action) execute(j job) {
	set := a.onFalse
	if j.valid {
		set = a.onTrue
	}

	ctx := context.Background()
	res := set.Trigger(ctx)

	if a.deps.Recorder != nil {
		a.deps.Recorder.RecordExecution(ctx, Execution{
			ID:           uuid.NewString(),
			Action:       a.Address(),
			Valid:        j.valid,
			Trigger:      j.trigger,
			StartedAt:    j.at,
			Consequences: res,
		})
	}
}
