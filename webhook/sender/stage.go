package sender

import (
	"sync"
	"time"

	"github.com/marcelsud/webhook-sender/webhook"
)

type task struct {
	item    *webhook.WorkItem
	readyAt time.Time
}

/* stage is one worker pool of the retry schedule.
 * The queue is an unbounded FIFO so submission never blocks; the only
 * bound is the number of workers. Once closing, workers drain what is
 * queued and exit.
 */
type stage struct {
	index   int
	delay   time.Duration
	workers int

	mu       sync.Mutex
	cond     *sync.Cond
	queue    []task
	inFlight int
	active   int
	closing  bool

	wg sync.WaitGroup
}

func newStage(index int, delay time.Duration, workers int) *stage {
	s := &stage{
		index:   index,
		delay:   delay,
		workers: workers,
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

func (s *stage) start(process func(*stage, task)) {
	s.mu.Lock()
	s.active = s.workers
	s.mu.Unlock()

	s.wg.Add(s.workers)
	for i := 0; i < s.workers; i++ {
		go func() {
			defer s.wg.Done()
			for {
				t, ok := s.next()
				if !ok {
					return
				}
				process(s, t)
				s.finish()
			}
		}()
	}
}

// push enqueues an item; false means the workers are gone
func (s *stage) push(item *webhook.WorkItem) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closing && s.active == 0 {
		return false
	}
	s.queue = append(s.queue, task{item: item, readyAt: time.Now().Add(s.delay)})
	s.cond.Signal()
	return true
}

func (s *stage) next() (task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for len(s.queue) == 0 && !s.closing {
		s.cond.Wait()
	}
	if len(s.queue) == 0 {
		s.active--
		return task{}, false
	}

	t := s.queue[0]
	s.queue[0] = task{}
	s.queue = s.queue[1:]
	s.inFlight++
	return t, true
}

func (s *stage) finish() {
	s.mu.Lock()
	s.inFlight--
	s.mu.Unlock()
}

// close stops the workers once the queue is empty
func (s *stage) close() {
	s.mu.Lock()
	s.closing = true
	s.cond.Broadcast()
	s.mu.Unlock()
}

func (s *stage) wait() {
	s.wg.Wait()
}

func (s *stage) stats() StageStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return StageStats{
		Index:      s.index,
		Delay:      s.delay,
		QueueDepth: len(s.queue),
		InFlight:   s.inFlight,
	}
}
