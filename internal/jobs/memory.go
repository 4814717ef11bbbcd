package jobs

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps jobs in process memory. It backs DB_DRIVER=none and tests.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[string]*Job
	now  func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs: make(map[string]*Job),
		now:  time.Now,
	}
}

func (s *MemoryStore) Create(_ context.Context, job *Job) (string, error) {
	if job == nil {
		return "", ErrEmptyUpdate
	}
	now := s.now().UTC()
	stored := cloneJob(job)
	stored.ID = uuid.NewString()
	stored.Owner = NormalizeOwner(stored.Owner)
	if stored.Status == "" {
		stored.Status = StatusPending
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now

	s.mu.Lock()
	s.jobs[stored.ID] = stored
	s.mu.Unlock()
	return stored.ID, nil
}

func (s *MemoryStore) Update(_ context.Context, id string, u Update) (bool, error) {
	if _, err := uuid.Parse(id); err != nil {
		return false, ErrInvalidID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return false, nil
	}
	next := cloneJob(job)
	if err := u.Apply(next, s.now().UTC()); err != nil {
		return false, err
	}
	s.jobs[id] = next
	return true, nil
}

func (s *MemoryStore) SaveFeedback(_ context.Context, id string, f Feedback) (*Job, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrInvalidID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	next := cloneJob(job)
	if err := f.Apply(next, s.now().UTC()); err != nil {
		return nil, err
	}
	s.jobs[id] = next
	return cloneJob(next), nil
}

func (s *MemoryStore) FindByID(_ context.Context, id string) (*Job, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrInvalidID
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneJob(job), nil
}

func (s *MemoryStore) FindByOwner(_ context.Context, owner string) ([]*Job, error) {
	owner = NormalizeOwner(owner)
	s.mu.RLock()
	ret := make([]*Job, 0)
	for _, job := range s.jobs {
		if job.Owner == owner {
			ret = append(ret, cloneJob(job))
		}
	}
	s.mu.RUnlock()
	sortNewestFirst(ret)
	return ret, nil
}

func (s *MemoryStore) FindLatestByOwner(ctx context.Context, owner string) (*Job, error) {
	all, err := s.FindByOwner(ctx, owner)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, ErrNotFound
	}
	return all[0], nil
}

func (s *MemoryStore) FindStale(_ context.Context, status Status, before time.Time) ([]*Job, error) {
	s.mu.RLock()
	ret := make([]*Job, 0)
	for _, job := range s.jobs {
		if job.Status == status && job.UpdatedAt.Before(before) {
			ret = append(ret, cloneJob(job))
		}
	}
	s.mu.RUnlock()
	sortNewestFirst(ret)
	return ret, nil
}

func sortNewestFirst(list []*Job) {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].ID > list[j].ID
		}
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
}
