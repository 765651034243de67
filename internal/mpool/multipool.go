package mpool

import (
	"sort"

	mpoolerrors "github.com/rageworx/mpool/internal/errors"
)

// createMulti builds a size-laddered vector of sibling pools under
// parent, per spec.md §4.2. Only the first (primary) pool is given the
// caller's sync flag; every other sibling — including pools synthesized
// later for overflow — is created with sync=false and always accessed
// while holding the primary's lock. This mirrors the C source's
// `_elr_mpl_create(fpool, obj_size[i], on_alloc, on_free, i == 0 ? sync : 0)`.
func createMulti(parent *Pool, ladder []int, sync bool, onAlloc, onFree Callback) (*Pool, error) {
	if len(ladder) == 0 {
		return nil, mpoolerrors.NewInvalidArgumentError("create_multi", "ladder", ladder)
	}
	sorted := append([]int(nil), ladder...)
	sort.Ints(sorted)
	for i := 1; i < len(sorted); i++ {
		if sorted[i] <= sorted[i-1] {
			return nil, mpoolerrors.NewInvalidArgumentError("create_multi", "ladder", ladder)
		}
	}

	siblings := make([]*Pool, len(sorted))
	for i, size := range sorted {
		s := sync && i == 0
		child, err := parent.newChild(size, s, onAlloc, onFree)
		if err != nil {
			for _, done := range siblings[:i] {
				if done != nil {
					destroySingle(done)
				}
			}
			return nil, err
		}
		siblings[i] = child
	}

	primary := siblings[0]
	primary.multi = siblings
	primary.overflowParent = siblings[len(siblings)-1]
	return primary, nil
}

// AllocMulti dispatches to the smallest bucket in primary's ladder that
// is >= requested size, synthesizing an overflow pool rounded up to
// OverrangeUnit when the request exceeds every bucket, per spec.md
// §4.2. All dispatch serializes through the primary's lock regardless
// of which sibling ultimately serves the allocation.
func AllocMulti(primary *Pool, size int) (*Block, error) {
	if size <= 0 {
		return nil, mpoolerrors.NewInvalidArgumentError("alloc_multi", "size", size)
	}
	if primary.multi == nil {
		return nil, mpoolerrors.NewInvalidArgumentError("alloc_multi", "pool", "not a multi-pool primary")
	}

	primary.mu.Lock()
	target := findBucketLocked(primary, size)
	if target == nil {
		var err error
		target, err = synthesizeOverflowLocked(primary, size)
		if err != nil {
			primary.mu.Unlock()
			return nil, err
		}
	}
	primary.mu.Unlock()

	return target.alloc()
}

// findBucketLocked implements spec.md §4.2's two-stage search: first a
// first-fit scan over the sorted ladder itself (primary.multi), then —
// on a miss — a scan of the overflow parent's existing children for an
// already-synthesized on-demand pool that still fits, so a repeated
// oversized request reuses the pool synthesizeOverflowLocked created
// for it instead of growing a new one every time.
func findBucketLocked(primary *Pool, size int) *Pool {
	for _, sib := range primary.multi {
		if sib.objectSize >= size {
			return sib
		}
	}

	var best *Pool
	for c := primary.overflowParent.firstChild; c != nil; c = c.next {
		if c.objectSize >= size && (best == nil || c.objectSize < best.objectSize) {
			best = c
		}
	}
	return best
}

// synthesizeOverflowLocked creates a one-off pool for a request past
// every ladder bucket, sized up to the nearest OverrangeUnit, as a
// child of the overflow parent (the last ladder rung), per spec.md
// §4.2. Later requests find and reuse it via findBucketLocked's
// overflow-parent scan instead of synthesizing a new pool each time.
func synthesizeOverflowLocked(primary *Pool, size int) (*Pool, error) {
	unit := primary.module.limits.OverrangeUnit
	rounded := (size + unit - 1) / unit * unit
	return primary.overflowParent.newChild(rounded, false, primary.onAlloc, primary.onFree)
}

// Size returns the owning pool's object size for a live block, the
// translation of spec.md's elr_mpl_size.
func Size(b *Block) (int, error) {
	if b == nil || b.slice == nil {
		return 0, mpoolerrors.NewInvalidHandleError("size")
	}
	return b.slice.node.owner.objectSize, nil
}

// destroySingle recursively tears down pool and its whole subtree,
// per spec.md §4.4: detach from parent, destroy children depth-first,
// drain the occupied list (invoking on_free for each live block),
// release every node back to the system allocator, then free the
// pool's own control-block slice back to the global pool (skipped for
// the global pool itself, which has none).
func destroySingle(pool *Pool) {
	if parent := pool.parent; parent != nil {
		parent.lock()
		if pool.prev != nil {
			pool.prev.next = pool.next
		} else {
			parent.firstChild = pool.next
		}
		if pool.next != nil {
			pool.next.prev = pool.prev
		}
		parent.unlock()
	}

	if pool.multi != nil && pool.multi[0] == pool {
		for _, sib := range pool.multi[1:] {
			destroySingle(sib)
		}
	}

	for {
		pool.lock()
		child := pool.firstChild
		pool.unlock()
		if child == nil {
			break
		}
		destroySingle(child)
	}

	pool.lock()
	var live [][]byte
	for s := pool.firstOccupiedSlice; s != nil; s = s.next {
		live = append(live, s.payload)
	}
	pool.firstOccupiedSlice = nil
	pool.firstFreeSlice = nil

	for n := pool.firstNode; n != nil; {
		next := n.next
		pool.module.addOccupation(-int64(pool.nodeSize))
		n = next
	}
	pool.firstNode = nil
	pool.newlyAllocNode = nil

	pool.parent = nil
	pool.sliceTag = -1
	onFree := pool.onFree
	pool.unlock()

	if onFree != nil {
		for _, payload := range live {
			onFree(payload)
		}
	}

	if pool.selfSlice != nil && pool != pool.module.global {
		pool.module.global.free(&Block{slice: pool.selfSlice})
	}
}
