package ipc

import (
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/gocontext-indexd/pkg/types"
)

// namespaceCases runs fn against both namespace implementations
func namespaceCases(t *testing.T, fn func(t *testing.T, ns Namespace)) {
	t.Run("memory", func(t *testing.T) {
		fn(t, NewMemoryNamespace("mem"))
	})
	t.Run("sqlite", func(t *testing.T) {
		ns, err := CreateSQLiteNamespace(t.TempDir(), NewNamespaceID())
		require.NoError(t, err)
		defer ns.Close()
		fn(t, ns)
	})
}

func units(n int) []types.WorkUnit {
	out := make([]types.WorkUnit, n)
	for i := range out {
		out[i] = types.WorkUnit{ID: fmt.Sprint(i), SourcePath: fmt.Sprintf("/src/f%d.go", i)}
	}
	return out
}

func TestQueuePushPopClear(t *testing.T) {
	namespaceCases(t, func(t *testing.T, ns Namespace) {
		q := ns.Queue()
		require.NoError(t, q.Push(units(3)))

		n, err := q.Len()
		require.NoError(t, err)
		assert.Equal(t, 3, n)

		u, ok, err := q.Pop()
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "/src/f0.go", u.SourcePath)

		n, _ = q.Len()
		assert.Equal(t, 2, n)

		require.NoError(t, q.Clear())
		n, _ = q.Len()
		assert.Equal(t, 0, n)

		_, ok, err = q.Pop()
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestQueueConcurrentPopDeliversEachUnitOnce(t *testing.T) {
	namespaceCases(t, func(t *testing.T, ns Namespace) {
		q := ns.Queue()
		require.NoError(t, q.Push(units(40)))

		var mu sync.Mutex
		seen := make(map[string]int)
		var wg sync.WaitGroup
		for w := 0; w < 4; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for {
					u, ok, err := q.Pop()
					if err != nil || !ok {
						return
					}
					mu.Lock()
					seen[u.ID]++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		assert.Len(t, seen, 40)
		for id, count := range seen {
			assert.Equal(t, 1, count, "unit %s delivered more than once", id)
		}
	})
}

func TestStatusLifecycle(t *testing.T) {
	namespaceCases(t, func(t *testing.T, ns Namespace) {
		st := ns.Status()

		require.NoError(t, st.StartUnit(1, "/a.go"))
		require.NoError(t, st.StartUnit(2, "/b.go"))

		paths, err := st.InFlight()
		require.NoError(t, err)
		sort.Strings(paths)
		assert.Equal(t, []string{"/a.go", "/b.go"}, paths)

		require.NoError(t, st.FinishUnit(2))
		require.NoError(t, st.FinishUnit(1))

		slot, ok, err := st.NextFinished()
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, 2, slot)

		slot, ok, _ = st.NextFinished()
		require.True(t, ok)
		assert.Equal(t, 1, slot)

		_, ok, _ = st.NextFinished()
		assert.False(t, ok)

		paths, _ = st.InFlight()
		assert.Empty(t, paths)
	})
}

func TestStatusCrashDetection(t *testing.T) {
	namespaceCases(t, func(t *testing.T, ns Namespace) {
		st := ns.Status()

		// A new incarnation starting on a slot with a stale path records the crash
		require.NoError(t, st.StartUnit(1, "/dies.go"))
		require.NoError(t, st.StartUnit(1, "/next.go"))

		// The supervisor reports the second crash
		require.NoError(t, st.MarkCrashed(1))
		require.NoError(t, st.MarkCrashed(1)) // nothing in flight, no-op

		crashed, err := st.Crashed()
		require.NoError(t, err)
		assert.Equal(t, []string{"/dies.go", "/next.go"}, crashed)

		paths, _ := st.InFlight()
		assert.Empty(t, paths)
	})
}

func TestStatusRejectsCoordinatorSlot(t *testing.T) {
	namespaceCases(t, func(t *testing.T, ns Namespace) {
		assert.ErrorIs(t, ns.Status().StartUnit(CoordinatorSlot, "/a.go"), ErrInvalidSlot)
		_, err := ns.Results(0)
		assert.ErrorIs(t, err, ErrInvalidSlot)
	})
}

func TestResultChannelsArePerSlotFIFO(t *testing.T) {
	namespaceCases(t, func(t *testing.T, ns Namespace) {
		r1, err := ns.Results(1)
		require.NoError(t, err)
		r2, err := ns.Results(2)
		require.NoError(t, err)

		require.NoError(t, r1.Push(&types.ResultBundle{SourcePaths: []string{"/1a.go"}}))
		require.NoError(t, r2.Push(&types.ResultBundle{SourcePaths: []string{"/2a.go"}}))
		require.NoError(t, r1.Push(&types.ResultBundle{SourcePaths: []string{"/1b.go"}}))

		n, _ := r1.Len()
		assert.Equal(t, 2, n)
		n, _ = r2.Len()
		assert.Equal(t, 1, n)

		b, ok, err := r1.Pop()
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, []string{"/1a.go"}, b.SourcePaths)

		b, ok, _ = r1.Pop()
		require.True(t, ok)
		assert.Equal(t, []string{"/1b.go"}, b.SourcePaths)

		_, ok, _ = r1.Pop()
		assert.False(t, ok)
	})
}

func TestSQLiteNamespaceOpenedByWorker(t *testing.T) {
	dir := t.TempDir()
	id := NewNamespaceID()

	coordinator, err := CreateSQLiteNamespace(dir, id)
	require.NoError(t, err)
	defer coordinator.Close()
	require.NoError(t, coordinator.Queue().Push(units(2)))

	worker, err := OpenSQLiteNamespace(dir, id)
	require.NoError(t, err)
	defer worker.Close()

	u, ok, err := worker.Queue().Pop()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "0", u.ID)

	n, err := coordinator.Queue().Len()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestOpenMissingNamespace(t *testing.T) {
	_, err := OpenSQLiteNamespace(t.TempDir(), "missing")
	assert.Error(t, err)

	_, err = NewMemoryFactory().Open("missing")
	assert.Error(t, err)
}

func TestCreateDiscardsStaleState(t *testing.T) {
	f := SQLiteFactory{Dir: t.TempDir()}
	id := NewNamespaceID()

	ns, err := f.Create(id)
	require.NoError(t, err)
	require.NoError(t, ns.Queue().Push(units(5)))
	require.NoError(t, ns.Close())

	ns, err = f.Create(id)
	require.NoError(t, err)
	defer ns.Close()
	n, err := ns.Queue().Len()
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	require.NoError(t, f.Remove(id))
}
