package engine

import "sync"

// Store is the in-memory registry of in-flight and completed jobs.
// Reads dominate, so lookups take the read lock only. Terminal jobs are
// retained up to the bound and evicted oldest first, in the order they
// reached a terminal state; running jobs are never evicted.
type Store struct {
	mu        sync.RWMutex
	jobs      map[string]*jobState
	terminal  []string // terminal job ids in completion order
	retention int
}

// NewStore creates a store retaining at most retention terminal jobs.
func NewStore(retention int) *Store {
	if retention < 1 {
		retention = 64
	}
	return &Store{
		jobs:      make(map[string]*jobState),
		retention: retention,
	}
}

// Put registers a job.
func (s *Store) Put(j *jobState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[j.id] = j
}

// Get returns the job for an id, or nil.
func (s *Store) Get(id string) *jobState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.jobs[id]
}

// MarkTerminal records that a job reached a terminal state and applies
// the retention policy.
func (s *Store) MarkTerminal(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[id]; !ok {
		return
	}
	s.terminal = append(s.terminal, id)

	for len(s.terminal) > s.retention {
		oldest := s.terminal[0]
		s.terminal = s.terminal[1:]
		delete(s.jobs, oldest)
	}
}

// Evict removes a job unconditionally.
func (s *Store) Evict(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.jobs, id)
	for i, t := range s.terminal {
		if t == id {
			s.terminal = append(s.terminal[:i], s.terminal[i+1:]...)
			break
		}
	}
}

// Len returns the number of resident jobs.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}
