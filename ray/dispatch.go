package ray

import "sync"

// Job processes a single ray to completion or to a forwarding decision
// and returns the resulting buffer ops, forwards, and counters. A job
// never blocks mid-ray; the traversal token on the ray itself carries any
// suspension.
type Job func(r *FatRay) *WorkResults

// Dispatcher bounds concurrent job execution with a semaphore channel and
// funnels each job's WorkResults back to the single event-loop goroutine
// that owns the library, image, and ray queue. Jobs read post-sync scene
// state only; every mutation happens on the event loop.
type Dispatcher struct {
	sem     chan struct{}
	results chan *WorkResults
	wg      sync.WaitGroup
}

// NewDispatcher creates a dispatcher allowing at most jobs concurrent
// in-flight jobs (the -j flag, default 10).
func NewDispatcher(jobs int) *Dispatcher {
	if jobs < 1 {
		jobs = 1
	}
	return &Dispatcher{
		sem:     make(chan struct{}, jobs),
		results: make(chan *WorkResults, jobs*2),
	}
}

// TrySubmit attempts to start a job for r without blocking. It returns
// false if every slot is currently occupied, so the caller (the event
// loop) can try another ray or move on to other work instead of stalling.
func (d *Dispatcher) TrySubmit(r *FatRay, job Job) bool {
	select {
	case d.sem <- struct{}{}:
	default:
		return false
	}

	d.wg.Add(1)
	go func() {
		defer func() {
			<-d.sem
			d.wg.Done()
		}()
		d.results <- job(r)
	}()
	return true
}

// Results returns the channel the event loop drains completed WorkResults
// from.
func (d *Dispatcher) Results() <-chan *WorkResults {
	return d.results
}

// InFlight reports how many jobs are currently running.
func (d *Dispatcher) InFlight() int {
	return len(d.sem)
}

// Wait blocks until every submitted job has completed. Used during
// RENDER_STOP to drain the pipeline before reporting the final image.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
