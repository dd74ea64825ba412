package core

import "sync"

// QueuedJob is an expanded job waiting for a runner, tagged with its plan.
type QueuedJob struct {
	PlanID string `json:"planId"`
	Job    Job    `json:"job"`
}

// Scheduler hands expanded jobs out to runners in submission order.
type Scheduler struct {
	mu    sync.Mutex
	queue []QueuedJob
}

// NewScheduler creates a new scheduler
func NewScheduler() *Scheduler {
	return &Scheduler{}
}

// Enqueue appends the jobs of a plan to the queue.
func (s *Scheduler) Enqueue(planID string, jobs []Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range jobs {
		s.queue = append(s.queue, QueuedJob{PlanID: planID, Job: j})
	}
}

// Next pops the oldest queued job.
func (s *Scheduler) Next() (QueuedJob, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return QueuedJob{}, false
	}
	next := s.queue[0]
	s.queue = s.queue[1:]
	return next, true
}

func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}
