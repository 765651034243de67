package mpool

// node is a contiguous arena carved into a fixed number of equal-sized
// slices for one pool. using_slice_count tracks handed-out-and-not-yet-
// freed slices; used_slice_count tracks ever-handed-out, and never
// decreases — it is what decides when the bump region is exhausted.
type node struct {
	owner *Pool
	prev  *node
	next  *node

	freeSliceHead *sliceHeader
	freeSliceTail *sliceHeader

	usingSliceCount int
	usedSliceCount  int

	buf        []byte
	sliceCount int
	firstAvail int // byte offset into buf of the next never-used slice
}

func newNode(owner *Pool) *node {
	return &node{
		owner:      owner,
		sliceCount: owner.sliceCount,
		buf:        make([]byte, owner.sliceCount*owner.objectSize),
	}
}

// sliceFromBump carves the next never-used slice from the node's bump
// region, per spec.md §4.1 step 2. Returns nil once the region is
// exhausted — the caller is responsible for checking used_slice_count
// before calling, mirroring the C source's contract.
func (n *node) sliceFromBump() *sliceHeader {
	if n.usedSliceCount >= n.sliceCount {
		return nil
	}
	objSize := n.owner.objectSize
	off := n.firstAvail
	s := &sliceHeader{
		node:    n,
		tag:     1,
		payload: n.buf[off : off+objSize],
	}
	n.firstAvail += objSize
	n.usedSliceCount++
	n.usingSliceCount++
	if n.usedSliceCount == n.sliceCount {
		n.owner.newlyAllocNode = nil
	}
	return s
}
