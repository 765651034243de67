package mpool

import (
	"sync"

	mpoolerrors "github.com/rageworx/mpool/internal/errors"
)

// Callback is the embedder's hook for alloc/free notifications. The
// core only invokes it at the moments spec.md §4.5 specifies and
// otherwise treats it as opaque; a callback must not re-enter the pool
// that invoked it.
type Callback func(payload []byte)

// Pool is a family of nodes serving one fixed object size. It is also
// a tree node: parent+sibling links let destroy recurse over a whole
// subtree. A Pool's own control block is conceptually a slice of the
// global pool (see selfSlice below) so that creating a pool costs one
// allocation and destroying it returns that allocation to the global
// pool, exactly as spec.md §4.3 describes.
type Pool struct {
	mu   sync.Mutex
	sync bool

	parent     *Pool
	firstChild *Pool
	prev       *Pool
	next       *Pool

	objectSize int
	sliceSize  int
	sliceCount int
	nodeSize   int

	firstNode      *node
	newlyAllocNode *node

	firstFreeSlice     *sliceHeader
	firstOccupiedSlice *sliceHeader

	onAlloc Callback
	onFree  Callback

	// multi is non-nil on a multi-pool primary: the ladder of sibling
	// pools sorted ascending by object size, fixed at createMulti time
	// (see multipool.go). overflowParent is the last ladder rung — the
	// pool under which synthesizeOverflowLocked creates on-demand pools
	// for requests past every bucket, per spec.md §4.2's "overflow
	// parent". Those on-demand pools are real children of overflowParent
	// in the tree, not entries appended to multi.
	multi          []*Pool
	overflowParent *Pool

	// sliceTag and selfSlice together implement the two-level stale-
	// handle check spec.md §3/§4.1 describes: sliceTag is a local copy
	// of the tag stamped on the slice backing this Pool's own control
	// block, taken at creation time. The Go struct itself lives on the
	// normal heap (see slice.go's sliceHeader doc comment) — selfSlice
	// is a placeholder allocation from the global pool that exists
	// purely to carry that tag and to make pool creation/destruction
	// cost one global-pool allocation/free, matching spec.md's
	// occupation accounting.
	sliceTag  int32
	selfSlice *sliceHeader

	module *Module

	allocCount       int64
	freeCount        int64
	autoReleaseCount int64
}

// isValid implements the handle validity rule from spec.md §3: a
// handle is valid iff the pool's recorded tag matches AND the backing
// slice (if any — the global pool has none) still carries that tag.
func (p *Pool) isValid(tag int32) bool {
	if tag == 0 {
		return false
	}
	if p.sliceTag != tag {
		return false
	}
	if p.selfSlice != nil && p.selfSlice.tag != tag {
		return false
	}
	return true
}

func (p *Pool) lock() {
	if p.sync {
		p.mu.Lock()
	}
}

func (p *Pool) unlock() {
	if p.sync {
		p.mu.Unlock()
	}
}

func computeSliceCount(sliceSize, maxSliceBytes, sliceCap int) int {
	if sliceSize < maxSliceBytes {
		return sliceCap - sliceSize*(sliceCap-1)/maxSliceBytes
	}
	return 1
}

// newChild allocates the new child's control-block slice from the global pool,
// computes its sizing per spec.md §4.1, and splices it into p's child
// list under p's lock (briefly acquired, per spec.md §5).
func (p *Pool) newChild(objectSize int, sync bool, onAlloc, onFree Callback) (*Pool, error) {
	if objectSize <= 0 {
		return nil, mpoolerrors.NewInvalidArgumentError("create", "size", objectSize)
	}

	global := p.module.global
	selfBlock, err := global.alloc()
	if err != nil {
		return nil, err
	}
	selfSlice := selfBlock.slice

	child := &Pool{
		module:    p.module,
		parent:    p,
		sync:      sync,
		onAlloc:   onAlloc,
		onFree:    onFree,
		selfSlice: selfSlice,
		sliceTag:  selfSlice.tag,
	}
	child.objectSize = objectSize
	child.sliceSize = alignUp(sliceHeaderOverhead, intAlign) + alignUp(objectSize, intAlign)
	child.sliceCount = computeSliceCount(child.sliceSize, p.module.limits.MaxSliceBytes, p.module.limits.SliceCap)
	child.nodeSize = child.sliceSize*child.sliceCount + alignUp(nodeHeaderOverhead, intAlign)

	p.lock()
	child.prev = nil
	child.next = p.firstChild
	if p.firstChild != nil {
		p.firstChild.prev = child
	}
	p.firstChild = child
	p.unlock()

	return child, nil
}

// alloc is the O(1) hot path of spec.md §4.1: pop the pool-wide free
// list, or carve from the newly-allocated node's bump region, or
// allocate a fresh node first. on_alloc fires after bookkeeping is
// complete and outside the critical section (spec.md §9 design note
// b's documented choice; see SPEC_FULL.md §4.1).
func (p *Pool) alloc() (*Block, error) {
	p.lock()
	slice, err := p.sliceFromPoolLocked()
	if err == nil {
		p.allocCount++
	}
	p.unlock()
	if err != nil {
		return nil, err
	}

	blk := &Block{slice: slice}
	if p.onAlloc != nil {
		p.onAlloc(blk.Bytes())
	}
	return blk, nil
}

func (p *Pool) sliceFromPoolLocked() (*sliceHeader, error) {
	var slice *sliceHeader
	if p.firstFreeSlice != nil {
		slice = p.popFreeSliceLocked()
	} else {
		if p.newlyAllocNode == nil {
			p.allocNodeLocked()
		}
		slice = p.newlyAllocNode.sliceFromBump()
	}
	if slice == nil {
		return nil, mpoolerrors.NewOOMError("alloc", p.objectSize, nil)
	}
	p.pushOccupiedLocked(slice)
	return slice, nil
}

// popFreeSliceLocked pops the pool-wide free-list head, maintaining
// the node-contiguous-sublist invariant from spec.md §3/§4.1 step 1.
func (p *Pool) popFreeSliceLocked() *sliceHeader {
	slice := p.firstFreeSlice
	p.firstFreeSlice = slice.next
	slice.node.freeSliceHead = nil
	if p.firstFreeSlice != nil {
		p.firstFreeSlice.prev = nil
		if p.firstFreeSlice.node == slice.node {
			slice.node.freeSliceHead = p.firstFreeSlice
		}
	}
	if slice.node.freeSliceHead == nil {
		slice.node.freeSliceTail = nil
	}
	slice.next = nil
	slice.prev = nil
	slice.tag++
	slice.node.usingSliceCount++
	return slice
}

func (p *Pool) pushOccupiedLocked(s *sliceHeader) {
	s.prev = nil
	s.next = p.firstOccupiedSlice
	if p.firstOccupiedSlice != nil {
		p.firstOccupiedSlice.prev = s
	}
	p.firstOccupiedSlice = s
}

func (p *Pool) allocNodeLocked() {
	n := newNode(p)
	n.prev = nil
	n.next = p.firstNode
	if p.firstNode != nil {
		p.firstNode.prev = n
	}
	p.firstNode = n
	p.newlyAllocNode = n
	p.module.addOccupation(int64(p.nodeSize))
}

// free returns a block to its pool, auto-releasing the owning node to
// the system allocator if it just went empty and the process-wide
// occupation counter is over AutoFreeThreshold, per spec.md §4.1.
func (p *Pool) free(b *Block) {
	slice := b.slice
	n := slice.node

	p.lock()
	slice.tag++
	n.usingSliceCount--

	if slice.next != nil {
		slice.next.prev = slice.prev
	}
	if slice.prev != nil {
		slice.prev.next = slice.next
	} else {
		p.firstOccupiedSlice = slice.next
	}
	slice.prev = nil
	slice.next = nil

	released := false
	if n.usingSliceCount == 0 && p.module.occupationSnapshot() >= p.module.limits.AutoFreeThreshold {
		p.releaseNodeLocked(n)
		released = true
	} else {
		p.reattachFreeLocked(n, slice)
	}
	p.freeCount++
	if released {
		p.autoReleaseCount++
	}
	p.unlock()

	if p.onFree != nil {
		p.onFree(slice.payload)
	}
}

func (p *Pool) reattachFreeLocked(n *node, slice *sliceHeader) {
	if n.freeSliceHead == nil {
		n.freeSliceHead = slice
		n.freeSliceTail = slice
		slice.prev = nil
		slice.next = p.firstFreeSlice
		if p.firstFreeSlice != nil {
			p.firstFreeSlice.prev = slice
		}
		p.firstFreeSlice = slice
		return
	}
	slice.next = n.freeSliceTail.next
	if slice.next != nil {
		slice.next.prev = slice
	}
	n.freeSliceTail.next = slice
	slice.prev = n.freeSliceTail
	n.freeSliceTail = slice
}

func (p *Pool) releaseNodeLocked(n *node) {
	if n.freeSliceHead != nil {
		if n.freeSliceTail.next != nil {
			n.freeSliceTail.next.prev = n.freeSliceHead.prev
		}
		if n.freeSliceHead.prev != nil {
			n.freeSliceHead.prev.next = n.freeSliceTail.next
		}
		if p.firstFreeSlice == n.freeSliceHead {
			p.firstFreeSlice = n.freeSliceTail.next
		}
	}

	if p.newlyAllocNode == n {
		p.newlyAllocNode = nil
	}
	if n.next != nil {
		n.next.prev = n.prev
	}
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		p.firstNode = n.next
	}

	p.module.addOccupation(-int64(p.nodeSize))
}

// availBytes reports the remaining bump-region capacity in bytes of the
// newly-allocated node, supplementing spec.md with the original
// source's elr_mpl_avail_size (see SPEC_FULL.md §4.10).
func (p *Pool) availBytes() int64 {
	p.lock()
	defer p.unlock()
	if p.newlyAllocNode == nil {
		return 0
	}
	n := p.newlyAllocNode
	return int64((n.sliceCount - n.usedSliceCount) * p.objectSize)
}
