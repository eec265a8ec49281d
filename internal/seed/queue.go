package seed

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Queue is the topic DAG over seed modules: modules are items;
// dequeuing one module blocks until every topic it Requires has been
// provided by already-Complete'd modules.
type Queue struct {
	mu          sync.Mutex
	cond        *sync.Cond
	items       []*queueItem
	workerCount int
	pending     int
	cancelled   bool
	cancelErr   error
}

type queueItem struct {
	module    *SeedModule
	claimedBy map[int]bool
	doneBy    map[int]bool
	done      bool
}

// NewQueue builds a queue over modules. workerCount is the number of
// workers the applicator will spawn — needed to know when an
// AllWorkers-pinned module (WorkerId == -1, "every worker") has truly
// finished.
func NewQueue(modules []*SeedModule, workerCount int) *Queue {
	q := &Queue{workerCount: workerCount}
	q.cond = sync.NewCond(&q.mu)
	for _, m := range modules {
		q.items = append(q.items, &queueItem{
			module:    m,
			claimedBy: make(map[int]bool),
			doneBy:    make(map[int]bool),
		})
	}
	q.pending = len(q.items)
	return q
}

// Validate returns one error per required topic with no provider and one
// per dependency cycle. An empty result means the queue is safe to
// dispatch.
func (q *Queue) Validate() []error {
	var errs []error

	providers := make(map[string][]*queueItem)
	for _, it := range q.items {
		for topic := range it.module.Provides {
			providers[topic] = append(providers[topic], it)
		}
	}

	for _, it := range q.items {
		var missing []string
		for topic := range it.module.Requires {
			if len(providers[topic]) == 0 {
				missing = append(missing, topic)
			}
		}
		sort.Strings(missing)
		for _, topic := range missing {
			errs = append(errs, fmt.Errorf("seed graph: module %q requires topic %q, which no module provides", it.module.Name, topic))
		}
	}

	if cycle := q.findCycle(providers); cycle != "" {
		errs = append(errs, fmt.Errorf("seed graph: dependency cycle detected involving module %q", cycle))
	}

	return errs
}

// findCycle runs a DFS over the provider->requirer edges and returns the
// name of a module participating in a cycle, or "" if none exists.
func (q *Queue) findCycle(providers map[string][]*queueItem) string {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[*queueItem]int, len(q.items))
	for _, it := range q.items {
		color[it] = white
	}

	var visit func(it *queueItem) string
	visit = func(it *queueItem) string {
		color[it] = gray
		for topic := range it.module.Requires {
			for _, dep := range providers[topic] {
				switch color[dep] {
				case gray:
					return dep.module.Name
				case white:
					if name := visit(dep); name != "" {
						return name
					}
				}
			}
		}
		color[it] = black
		return ""
	}

	for _, it := range q.items {
		if color[it] == white {
			if name := visit(it); name != "" {
				return name
			}
		}
	}
	return ""
}

// Dequeue blocks until an item is ready for workerId, the queue drains
// with nothing left to give it, or ctx is cancelled / the queue is
// aborted. A nil, nil return means the queue is drained.
func (q *Queue) Dequeue(ctx context.Context, workerId int) (*SeedModule, error) {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			q.mu.Lock()
			q.cond.Broadcast()
			q.mu.Unlock()
		case <-stop:
		}
	}()

	q.mu.Lock()
	defer q.mu.Unlock()

	for {
		if q.cancelled {
			return nil, q.cancelErr
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if it := q.pickReady(workerId); it != nil {
			it.claimedBy[workerId] = true
			return it.module, nil
		}

		if q.pending == 0 {
			return nil, nil
		}
		if q.nothingLeftFor(workerId) {
			return nil, nil
		}

		q.cond.Wait()
	}
}

// pickReady returns an item ready for workerId, or nil. Caller holds q.mu.
func (q *Queue) pickReady(workerId int) *queueItem {
	for _, it := range q.items {
		if it.done || !CanTake(it.module, workerId) {
			continue
		}
		if it.module.WorkerId == AllWorkers {
			if it.claimedBy[workerId] || it.doneBy[workerId] {
				continue
			}
		} else if len(it.claimedBy) > 0 {
			continue
		}
		if q.requirementsSatisfied(it) {
			return it
		}
	}
	return nil
}

// nothingLeftFor reports whether every remaining item is either already
// claimed (non-broadcast) or already claimed by this worker (broadcast),
// meaning workerId has nothing further to ever dequeue even though other
// workers may still be draining the queue.
func (q *Queue) nothingLeftFor(workerId int) bool {
	for _, it := range q.items {
		if it.done || !CanTake(it.module, workerId) {
			continue
		}
		if it.module.WorkerId == AllWorkers {
			if !it.claimedBy[workerId] && !it.doneBy[workerId] {
				return false
			}
		} else if len(it.claimedBy) == 0 {
			return false
		}
	}
	return true
}

func (q *Queue) requirementsSatisfied(it *queueItem) bool {
	for topic := range it.module.Requires {
		if !q.topicSatisfied(topic) {
			return false
		}
	}
	return true
}

func (q *Queue) topicSatisfied(topic string) bool {
	hasProvider := false
	for _, other := range q.items {
		if _, provides := other.module.Provides[topic]; provides {
			hasProvider = true
			if !other.done {
				return false
			}
		}
	}
	return hasProvider
}

// Complete marks module done for workerId, unblocking any item whose
// Requires it was the last outstanding provider for.
func (q *Queue) Complete(module *SeedModule, workerId int) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, it := range q.items {
		if it.module != module {
			continue
		}
		it.doneBy[workerId] = true
		if it.module.WorkerId == AllWorkers && len(it.doneBy) < q.workerCount {
			break
		}
		if !it.done {
			it.done = true
			q.pending--
		}
		break
	}
	q.cond.Broadcast()
}

// Abort cancels the queue: every blocked and future Dequeue call returns
// err immediately.
func (q *Queue) Abort(err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.cancelled {
		return
	}
	q.cancelled = true
	q.cancelErr = err
	q.cond.Broadcast()
}
