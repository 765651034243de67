package mpool

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/sync/errgroup"

	"github.com/rageworx/mpool/testhelpers"
)

func newTestModule(t *testing.T) *Module {
	t.Helper()
	m := NewModule()
	require.NoError(t, m.Init())
	t.Cleanup(m.Finalize)
	return m
}

func TestInitFinalizeIsRefcounted(t *testing.T) {
	m := NewModule()
	require.NoError(t, m.Init())
	require.NoError(t, m.Init())

	h, err := m.Create(Handle{}, 64, nil, nil)
	require.NoError(t, err)

	m.Finalize()
	require.True(t, h.Valid(), "pool must survive an inner Finalize while refcount is still positive")

	m.Finalize()
	require.False(t, h.Valid(), "pool must be torn down once refcount reaches zero")
}

func TestAllocFreeRoundTrip(t *testing.T) {
	m := newTestModule(t)
	h, err := m.Create(Handle{}, 128, nil, nil)
	require.NoError(t, err)

	b, err := m.Alloc(h)
	require.NoError(t, err)
	require.Len(t, b.Bytes(), 128)

	require.NoError(t, m.Free(b))
}

func TestHandleInvalidAfterDestroy(t *testing.T) {
	m := newTestModule(t)
	h, err := m.Create(Handle{}, 64, nil, nil)
	require.NoError(t, err)
	require.True(t, h.Valid())

	require.NoError(t, m.Destroy(h))
	require.False(t, h.Valid())

	_, err = m.Alloc(h)
	require.Error(t, err)
}

func TestDestroySubtreeInvalidatesChildren(t *testing.T) {
	m := newTestModule(t)
	parent, err := m.Create(Handle{}, 64, nil, nil)
	require.NoError(t, err)

	child, err := m.Create(parent, 32, nil, nil)
	require.NoError(t, err)
	require.True(t, child.Valid())

	require.NoError(t, m.Destroy(parent))
	require.False(t, child.Valid())
}

func TestCreateUnderArbitraryParentBuildsDeepForest(t *testing.T) {
	m := newTestModule(t)
	grandparent, err := m.Create(Handle{}, 64, nil, nil)
	require.NoError(t, err)
	parent, err := m.Create(grandparent, 48, nil, nil)
	require.NoError(t, err)
	child, err := m.Create(parent, 32, nil, nil)
	require.NoError(t, err)
	require.True(t, child.Valid())

	b, err := m.Alloc(child)
	require.NoError(t, err)
	require.Len(t, b.Bytes(), 32)

	_, err = m.AvailBytes(child)
	require.NoError(t, err)

	require.NoError(t, m.Destroy(grandparent))
	require.False(t, parent.Valid())
	require.False(t, child.Valid())
	_, err = m.AvailBytes(child)
	require.Error(t, err)
}

func TestCreateRejectsHandleFromAnotherModule(t *testing.T) {
	m := newTestModule(t)
	other := newTestModule(t)
	foreign, err := other.Create(Handle{}, 64, nil, nil)
	require.NoError(t, err)

	_, err = m.Create(foreign, 32, nil, nil)
	require.Error(t, err)
}

func TestDestroyInvokesOnFreeForEachLiveBlock(t *testing.T) {
	m := newTestModule(t)
	var freed [][]byte
	onFree := func(p []byte) { freed = append(freed, p) }
	parent, err := m.Create(Handle{}, 64, nil, onFree)
	require.NoError(t, err)

	child, err := m.Create(parent, 32, nil, onFree)
	require.NoError(t, err)

	const liveFromParent = 3
	const liveFromChild = 2
	for i := 0; i < liveFromParent; i++ {
		_, err := m.Alloc(parent)
		require.NoError(t, err)
	}
	for i := 0; i < liveFromChild; i++ {
		_, err := m.Alloc(child)
		require.NoError(t, err)
	}

	require.NoError(t, m.Destroy(parent))
	require.Len(t, freed, liveFromParent+liveFromChild, "on_free must fire once per block still live when an ancestor is destroyed")
}

func TestFreeListReusesSlices(t *testing.T) {
	m := newTestModule(t)
	h, err := m.Create(Handle{}, 64, nil, nil)
	require.NoError(t, err)

	var blocks []*Block
	for i := 0; i < 100; i++ {
		b, err := m.Alloc(h)
		require.NoError(t, err)
		blocks = append(blocks, b)
	}
	for _, b := range blocks {
		require.NoError(t, m.Free(b))
	}

	nodesBefore := 0
	for n := h.pool.firstNode; n != nil; n = n.next {
		nodesBefore++
	}

	for i := 0; i < 100; i++ {
		_, err := m.Alloc(h)
		require.NoError(t, err)
	}

	nodesAfter := 0
	for n := h.pool.firstNode; n != nil; n = n.next {
		nodesAfter++
	}
	require.Equal(t, nodesBefore, nodesAfter, "reallocating after freeing everything must reuse existing nodes, not grow")
}

func TestTagStrictlyIncreasesAcrossReuse(t *testing.T) {
	m := newTestModule(t)
	h, err := m.Create(Handle{}, 64, nil, nil)
	require.NoError(t, err)

	b, err := m.Alloc(h)
	require.NoError(t, err)
	firstTag := b.slice.tag
	require.NoError(t, m.Free(b))

	b2, err := m.Alloc(h)
	require.NoError(t, err)
	require.Greater(t, b2.slice.tag, firstTag)
}

func TestCallbacksFireOncePerAllocAndFree(t *testing.T) {
	m := newTestModule(t)
	var allocSeen, freeSeen int
	h, err := m.Create(Handle{}, 64, func(p []byte) { allocSeen++ }, func(p []byte) { freeSeen++ })
	require.NoError(t, err)

	b, err := m.Alloc(h)
	require.NoError(t, err)
	require.Equal(t, 1, allocSeen)

	require.NoError(t, m.Free(b))
	require.Equal(t, 1, freeSeen)
}

func TestConcurrentAllocFreeOnSyncPool(t *testing.T) {
	defer goleak.VerifyNone(t)
	m := NewModule()
	require.NoError(t, m.Init())
	defer m.Finalize()

	h, err := m.CreateSync(Handle{}, 64, nil, nil)
	require.NoError(t, err)

	const workers = 4
	const pairs = 5000

	var g errgroup.Group
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			for j := 0; j < pairs; j++ {
				b, err := m.Alloc(h)
				if err != nil {
					return err
				}
				if err := m.Free(b); err != nil {
					return err
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
}

func TestAutoReleaseReturnsNodeAboveThreshold(t *testing.T) {
	limits := DefaultLimits()
	limits.AutoFreeThreshold = 0
	m := NewModuleWithLimits(limits)
	require.NoError(t, m.Init())
	t.Cleanup(m.Finalize)

	// 72 is not a rung of DefaultLadder, so this pool is the only
	// top-level pool of that size in the snapshot below.
	h, err := m.Create(Handle{}, 72, nil, nil)
	require.NoError(t, err)

	b, err := m.Alloc(h)
	require.NoError(t, err)

	before := m.Occupation()
	require.NoError(t, m.Free(b))
	after := m.Occupation()
	require.Less(t, after, before, "freeing the last slice of a node above the auto-free threshold must release it back to the system allocator")

	stats := m.Snapshot()
	var found bool
	for _, p := range stats.Pools {
		if p.ObjectSize == 72 {
			found = true
			require.Equal(t, 0, p.NodeCount, "the released node must no longer be counted")
			require.Equal(t, int64(1), p.AutoReleaseCount)
		}
	}
	require.True(t, found, "expected to find the 72-byte pool in the snapshot")
}

func TestIsolateTestHelperRunsCleanModuleWithoutLeaks(t *testing.T) {
	testhelpers.IsolateTest(t, "module-smoke", func(t *testing.T) {
		m := newTestModule(t)
		_, err := m.Create(Handle{}, 16, nil, nil)
		require.NoError(t, err)
	})
}
