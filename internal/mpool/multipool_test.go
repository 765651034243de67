package mpool

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAllocMultiPicksSmallestFittingBucket(t *testing.T) {
	m := newTestModule(t)
	h, err := m.CreateMulti(Handle{}, []int{32, 64, 128}, nil, nil)
	require.NoError(t, err)

	b, err := m.AllocMulti(h, 50)
	require.NoError(t, err)
	owner := b.slice.node.owner
	require.Equal(t, 64, owner.objectSize)
}

func TestAllocMultiSynthesizesOverflow(t *testing.T) {
	m := newTestModule(t)
	h, err := m.CreateMulti(Handle{}, []int{32, 64, 128}, nil, nil)
	require.NoError(t, err)

	b, err := m.AllocMulti(h, 5000)
	require.NoError(t, err)
	owner := b.slice.node.owner
	require.GreaterOrEqual(t, owner.objectSize, 5000)
	require.Equal(t, 0, owner.objectSize%m.limits.OverrangeUnit)
	require.Same(t, h.pool.overflowParent, owner.parent, "an overflow pool must be a child of the top ladder rung, not of the multi-pool's own parent")
	require.Same(t, h.pool.multi[len(h.pool.multi)-1], h.pool.overflowParent)

	b2, err := m.AllocMulti(h, 5000)
	require.NoError(t, err)
	require.Same(t, owner, b2.slice.node.owner, "a second request for the same overflow size should reuse the synthesized pool")
}

func TestCreateMultiRejectsNonIncreasingLadder(t *testing.T) {
	m := newTestModule(t)
	_, err := m.CreateMulti(Handle{}, []int{64, 64, 128}, nil, nil)
	require.Error(t, err)
}

func TestDestroyMultiPrimaryTearsDownSiblings(t *testing.T) {
	m := newTestModule(t)
	h, err := m.CreateMulti(Handle{}, []int{32, 64, 128}, nil, nil)
	require.NoError(t, err)

	siblings := append([]*Pool(nil), h.pool.multi...)
	siblingHandles := make([]Handle, len(siblings))
	for i, s := range siblings {
		siblingHandles[i] = handleFor(s)
	}

	require.NoError(t, m.Destroy(h))
	for _, hh := range siblingHandles {
		require.False(t, hh.Valid())
	}
}

func TestSizeReportsOwningPoolObjectSize(t *testing.T) {
	m := newTestModule(t)
	h, err := m.Create(Handle{}, 96, nil, nil)
	require.NoError(t, err)

	b, err := m.Alloc(h)
	require.NoError(t, err)

	size, err := m.Size(b)
	require.NoError(t, err)
	require.Equal(t, 96, size)
}

func TestAvailBytesTracksBumpRegion(t *testing.T) {
	m := newTestModule(t)
	h, err := m.Create(Handle{}, 64, nil, nil)
	require.NoError(t, err)

	_, err = m.Alloc(h) // triggers node creation
	require.NoError(t, err)
	afterFirst, err := m.AvailBytes(h)
	require.NoError(t, err)

	_, err = m.Alloc(h)
	require.NoError(t, err)
	afterSecond, err := m.AvailBytes(h)
	require.NoError(t, err)

	require.Less(t, afterSecond, afterFirst, "each bump allocation from the same node must shrink remaining capacity")
}
