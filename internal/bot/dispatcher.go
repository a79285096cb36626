package bot

import "sync"

// dispatcher runs jobs in arrival order per key. Each key with pending work
// has exactly one draining goroutine; different keys run in parallel.
type dispatcher struct {
	mu     sync.Mutex
	queues map[int64][]func()
	wg     sync.WaitGroup
}

func newDispatcher() *dispatcher {
	return &dispatcher{queues: make(map[int64][]func())}
}

func (d *dispatcher) Dispatch(key int64, job func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	q, active := d.queues[key]
	d.queues[key] = append(q, job)
	if !active {
		d.wg.Add(1)
		go d.drain(key)
	}
}

func (d *dispatcher) drain(key int64) {
	defer d.wg.Done()

	for {
		d.mu.Lock()
		q := d.queues[key]
		if len(q) == 0 {
			delete(d.queues, key)
			d.mu.Unlock()
			return
		}
		job := q[0]
		q[0] = nil
		d.queues[key] = q[1:]
		d.mu.Unlock()

		job()
	}
}

// Wait blocks until every dispatched job has finished.
func (d *dispatcher) Wait() {
	d.wg.Wait()
}
