package worker

// Worker executes jobs handed over by the dispatcher. It parks itself in the
// pool's idle list between jobs and retires on a Stop job.
type Worker struct {
	pool       *jobChannelPool
	manager    *Manager
	jobChannel chan Job
}

func NewWorker(pool *jobChannelPool, manager *Manager) *Worker {
	return &Worker{
		pool:       pool,
		manager:    manager,
		jobChannel: make(chan Job),
	}
}

func (w *Worker) Start() {
	go func() {
		w.pool.Release(w.jobChannel)
		for job := range w.jobChannel {
			if job.Type == Stop {
				w.pool.retire(w.jobChannel)
				return
			}
			w.manager.handleJob(job)
			w.pool.Release(w.jobChannel)
		}
	}()
}
