package ipc

import (
	"sync"

	"github.com/dshills/gocontext-indexd/pkg/types"
)

// MemoryNamespace keeps all channels in process memory. Every structure has its
// own lock, held only for the duration of a read or write.
type MemoryNamespace struct {
	id     string
	queue  *memoryQueue
	status *memoryStatus

	mu      sync.Mutex
	results map[int]*memoryResults
}

// NewMemoryNamespace creates an empty in-process namespace
func NewMemoryNamespace(id string) *MemoryNamespace {
	return &MemoryNamespace{
		id:      id,
		queue:   &memoryQueue{},
		status:  &memoryStatus{inFlight: make(map[int]string)},
		results: make(map[int]*memoryResults),
	}
}

func (n *MemoryNamespace) ID() string            { return n.id }
func (n *MemoryNamespace) Queue() WorkQueue      { return n.queue }
func (n *MemoryNamespace) Status() StatusChannel { return n.status }
func (n *MemoryNamespace) Close() error          { return nil }

func (n *MemoryNamespace) Results(slot int) (ResultChannel, error) {
	if err := validateSlot(slot); err != nil {
		return nil, err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	r, ok := n.results[slot]
	if !ok {
		r = &memoryResults{}
		n.results[slot] = r
	}
	return r, nil
}

type memoryQueue struct {
	mu    sync.Mutex
	units []types.WorkUnit
}

func (q *memoryQueue) Push(units []types.WorkUnit) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.units = append(q.units, units...)
	return nil
}

func (q *memoryQueue) Pop() (types.WorkUnit, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.units) == 0 {
		return types.WorkUnit{}, false, nil
	}
	unit := q.units[0]
	q.units = q.units[1:]
	return unit, true, nil
}

func (q *memoryQueue) Len() (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.units), nil
}

func (q *memoryQueue) Clear() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.units = nil
	return nil
}

type memoryStatus struct {
	mu       sync.Mutex
	inFlight map[int]string
	finished []int
	crashed  []string
}

func (s *memoryStatus) StartUnit(slot int, path string) error {
	if err := validateSlot(slot); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if stale, ok := s.inFlight[slot]; ok {
		s.crashed = append(s.crashed, stale)
	}
	s.inFlight[slot] = path
	return nil
}

func (s *memoryStatus) FinishUnit(slot int) error {
	if err := validateSlot(slot); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, slot)
	s.finished = append(s.finished, slot)
	return nil
}

func (s *memoryStatus) MarkCrashed(slot int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if path, ok := s.inFlight[slot]; ok {
		s.crashed = append(s.crashed, path)
		delete(s.inFlight, slot)
	}
	return nil
}

func (s *memoryStatus) InFlight() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	paths := make([]string, 0, len(s.inFlight))
	for _, p := range s.inFlight {
		paths = append(paths, p)
	}
	return paths, nil
}

func (s *memoryStatus) NextFinished() (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.finished) == 0 {
		return 0, false, nil
	}
	slot := s.finished[0]
	s.finished = s.finished[1:]
	return slot, true, nil
}

func (s *memoryStatus) Crashed() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.crashed...), nil
}

type memoryResults struct {
	mu      sync.Mutex
	bundles []*types.ResultBundle
}

func (r *memoryResults) Push(bundle *types.ResultBundle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bundles = append(r.bundles, bundle)
	return nil
}

func (r *memoryResults) Pop() (*types.ResultBundle, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.bundles) == 0 {
		return nil, false, nil
	}
	b := r.bundles[0]
	r.bundles[0] = nil
	r.bundles = r.bundles[1:]
	return b, true, nil
}

func (r *memoryResults) Len() (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.bundles), nil
}
