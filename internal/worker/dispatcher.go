package worker

import (
	"container/list"
	"sync"
	"time"
)

type sessionQueue struct {
	jobs     []Job
	enqueued bool // session is in the ready list
	running  bool // a job for this session is in flight
}

type Dispatcher struct {
	pool     *jobChannelPool
	JobQueue chan Job // interface for outer jobs get in the dispatcher
	wake     chan struct{}

	mu        sync.Mutex
	queues    map[string]*sessionQueue // job queue for each session
	ready     *list.List               // LRU queue storing session IDs
	positions map[string]*list.Element
}

func NewDispatcher(minWorkers, maxWorkers, queueSize int, manager *Manager, idleTimeout time.Duration) *Dispatcher {
	pool := newJobChannelPool(minWorkers, maxWorkers, idleTimeout, manager)
	jobQueue := make(chan Job, queueSize)

	d := &Dispatcher{
		queues:    make(map[string]*sessionQueue),
		ready:     list.New(),
		positions: make(map[string]*list.Element),
		pool:      pool,
		JobQueue:  jobQueue,
		wake:      make(chan struct{}, 1),
	}

	// Warm up workers to keep latency down for the first actions.
	for i := 0; i < minWorkers; i++ {
		d.pool.spawnWorker()
	}

	go d.run()
	return d
}

// Submit hands a job to the dispatcher without blocking.
func (d *Dispatcher) Submit(job Job) bool {
	select {
	case d.JobQueue <- job:
		return true
	default:
		return false
	}
}

func (d *Dispatcher) run() {
	for {
		// dispatch one job of the session in the front of the LRU queue
		if !d.dispatchOne() {
			select {
			case job := <-d.JobQueue: // force congestion
				d.enqueueJob(job)
			case <-d.wake: // a running session finished a job
			}
			continue
		}
		// if we have a new job, enqueue it and its caller session
		select {
		case job := <-d.JobQueue: // non-congestion
			d.enqueueJob(job)
		default:
		}
	}
}

// CancelSession drops all queued jobs for the session. Waiting callers get
// ErrSessionCancelled; an in-flight job runs to completion.
func (d *Dispatcher) CancelSession(sessionID string) {
	d.mu.Lock()
	var dropped []Job
	if q, ok := d.queues[sessionID]; ok {
		dropped = q.jobs
		q.jobs = nil
		if !q.running {
			delete(d.queues, sessionID)
		}
	}
	if elem, ok := d.positions[sessionID]; ok {
		d.ready.Remove(elem)
		delete(d.positions, sessionID)
		if q := d.queues[sessionID]; q != nil {
			q.enqueued = false
		}
	}
	d.mu.Unlock()

	for _, job := range dropped {
		job.fail(ErrSessionCancelled)
	}
}

func (d *Dispatcher) enqueueJob(job Job) {
	sessionID := job.sessionID()

	d.mu.Lock()
	defer d.mu.Unlock()

	q := d.queues[sessionID]
	if q == nil {
		q = &sessionQueue{}
		d.queues[sessionID] = q
	}
	q.jobs = append(q.jobs, job)
	if q.enqueued || q.running {
		// session already queued or mid-dispatch, its jobs wait
		return
	}
	q.enqueued = true
	elem := d.ready.PushBack(sessionID)
	d.positions[sessionID] = elem
}

// dispatchOne takes the first ready session and dispatches its next job. The
// session leaves the ready list until the job completes, so no two jobs for
// one session ever overlap.
func (d *Dispatcher) dispatchOne() bool {
	d.mu.Lock()
	elem := d.ready.Front()
	if elem == nil {
		d.mu.Unlock()
		return false
	}
	sessionID := elem.Value.(string)
	q := d.queues[sessionID]
	job := q.jobs[0]
	q.jobs = q.jobs[1:]
	q.enqueued = false
	q.running = true
	d.ready.Remove(elem)
	delete(d.positions, sessionID)
	if len(q.jobs) == 0 && !q.running {
		delete(d.queues, sessionID)
	}
	d.mu.Unlock()

	workerChan := d.pool.acquire()
	debugLog("[dispatcher] assign job %d for session %s to worker-%d", job.Type, sessionID, d.pool.workerID(workerChan))
	workerChan <- job
	return true
}

// jobDone re-readies the session once its in-flight job finished.
func (d *Dispatcher) jobDone(sessionID string) {
	d.mu.Lock()
	q := d.queues[sessionID]
	if q != nil {
		q.running = false
		if len(q.jobs) > 0 && !q.enqueued {
			q.enqueued = true
			elem := d.ready.PushBack(sessionID)
			d.positions[sessionID] = elem
		} else if len(q.jobs) == 0 {
			delete(d.queues, sessionID)
		}
	}
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
}
