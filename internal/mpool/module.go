// Package mpool implements a hierarchical slab allocator: a tree of
// Pools, each serving one fixed object size, carved from bump-pointer
// nodes and backed by a free list with O(1) alloc/free. Module is the
// refcounted lifecycle root; everything else hangs off its global pool.
package mpool

import (
	"sync/atomic"

	mpoolerrors "github.com/rageworx/mpool/internal/errors"
)

// Module is an explicit allocator context: spec.md's C source keeps
// this state in process globals behind an internal refcount, which
// this translation keeps as an ordinary struct so multiple independent
// allocator instances can coexist (e.g. in tests run in parallel).
// The package-level functions in default.go reproduce the original's
// no-argument Init/Finalize surface over a single lazily-created
// instance, for callers that want the singleton behavior verbatim.
type Module struct {
	refs int64 // atomic

	global *Pool
	limits Limits

	occupation int64 // atomic, bytes currently held by all nodes

	defaultMulti Handle
}

// NewModule returns an uninitialized Module using spec.md's default
// compile-time limits. Call Init before use.
func NewModule() *Module {
	return NewModuleWithLimits(DefaultLimits())
}

// NewModuleWithLimits returns an uninitialized Module governed by
// limits instead of the defaults, the entry point config-driven
// callers (cmd/mpoolctl) use to make a loaded
// config.Tunables value actually parameterize allocator behavior.
func NewModuleWithLimits(limits Limits) *Module {
	return &Module{limits: limits}
}

// Init brings up the global pool and its default multi-pool ladder on
// the first call; subsequent calls only bump the refcount, matching
// spec.md §9's decision that Init/Finalize are externally serialized
// and idempotent under a shared refcount.
func (m *Module) Init() error {
	if atomic.AddInt64(&m.refs, 1) != 1 {
		return nil
	}

	global := &Pool{module: m, sync: true, sliceTag: 1}
	global.objectSize = globalObjectSize
	global.sliceSize = alignUp(sliceHeaderOverhead, intAlign) + alignUp(globalObjectSize, intAlign)
	global.sliceCount = computeSliceCount(global.sliceSize, m.limits.MaxSliceBytes, m.limits.SliceCap)
	global.nodeSize = global.sliceSize*global.sliceCount + alignUp(nodeHeaderOverhead, intAlign)
	m.global = global

	primary, err := createMulti(global, DefaultLadder, true, nil, nil)
	if err != nil {
		m.global = nil
		atomic.StoreInt64(&m.refs, 0)
		return err
	}
	m.defaultMulti = handleFor(primary)
	return nil
}

// Finalize drops a reference; the global pool and everything under it
// is torn down only once the refcount returns to zero.
func (m *Module) Finalize() {
	if atomic.AddInt64(&m.refs, -1) != 0 {
		return
	}
	if m.global == nil {
		return
	}
	destroySingle(m.global)
	m.global = nil
	m.defaultMulti = Handle{}
}

func (m *Module) addOccupation(delta int64) {
	atomic.AddInt64(&m.occupation, delta)
}

func (m *Module) occupationSnapshot() int64 {
	return atomic.LoadInt64(&m.occupation)
}

// Occupation returns the total bytes currently held by all nodes of
// all pools in this module, across the system allocator.
func (m *Module) Occupation() int64 {
	return m.occupationSnapshot()
}

// DefaultMulti returns the handle to the ladder built at Init, the
// translation of the C source's process-wide default multi-pool.
func (m *Module) DefaultMulti() Handle {
	return m.defaultMulti
}

func (m *Module) requireGlobal() (*Pool, error) {
	if m.global == nil {
		return nil, mpoolerrors.NewInvalidArgumentError("module", "state", "not initialized")
	}
	return m.global, nil
}

// resolveParent returns the Pool a new pool should be spliced under:
// the global pool when parent is the zero Handle (per spec.md §6,
// "parent handle or null"), or parent.pool when parent is a live
// handle belonging to this Module. This is what lets Create/CreateMulti
// build a forest of arbitrary depth instead of only ever parenting
// directly under the global pool, per spec.md §1 and §8 scenario 4.
func (m *Module) resolveParent(parent Handle) (*Pool, error) {
	if parent == (Handle{}) {
		return m.requireGlobal()
	}
	if !parent.Valid() || parent.pool.module != m {
		return nil, mpoolerrors.NewInvalidHandleError("create")
	}
	return parent.pool, nil
}

// Create makes a new single-size pool as a child of parent (the global
// pool when parent is the zero Handle), unsynchronized (the caller
// must serialize its own use).
func (m *Module) Create(parent Handle, objectSize int, onAlloc, onFree Callback) (Handle, error) {
	return m.createChild(parent, objectSize, false, onAlloc, onFree)
}

// CreateSync is Create with an internal mutex guarding every operation
// on the resulting pool, for concurrent callers.
func (m *Module) CreateSync(parent Handle, objectSize int, onAlloc, onFree Callback) (Handle, error) {
	return m.createChild(parent, objectSize, true, onAlloc, onFree)
}

func (m *Module) createChild(parent Handle, objectSize int, sync bool, onAlloc, onFree Callback) (Handle, error) {
	base, err := m.resolveParent(parent)
	if err != nil {
		return Handle{}, err
	}
	child, err := base.newChild(objectSize, sync, onAlloc, onFree)
	if err != nil {
		return Handle{}, err
	}
	return handleFor(child), nil
}

// CreateMulti builds an unsynchronized size-laddered family of pools
// under parent (the global pool when parent is the zero Handle).
func (m *Module) CreateMulti(parent Handle, ladder []int, onAlloc, onFree Callback) (Handle, error) {
	return m.createMultiFamily(parent, ladder, false, onAlloc, onFree)
}

// CreateMultiSync is CreateMulti with locking on the primary pool.
func (m *Module) CreateMultiSync(parent Handle, ladder []int, onAlloc, onFree Callback) (Handle, error) {
	return m.createMultiFamily(parent, ladder, true, onAlloc, onFree)
}

func (m *Module) createMultiFamily(parent Handle, ladder []int, sync bool, onAlloc, onFree Callback) (Handle, error) {
	base, err := m.resolveParent(parent)
	if err != nil {
		return Handle{}, err
	}
	primary, err := createMulti(base, ladder, sync, onAlloc, onFree)
	if err != nil {
		return Handle{}, err
	}
	return handleFor(primary), nil
}

// Alloc hands out one slice from h's pool.
func (m *Module) Alloc(h Handle) (*Block, error) {
	if !h.Valid() {
		return nil, mpoolerrors.NewInvalidHandleError("alloc")
	}
	return h.pool.alloc()
}

// AllocMulti hands out a slice from the smallest bucket of h's family
// that fits size, synthesizing an overflow bucket if none does.
func (m *Module) AllocMulti(h Handle, size int) (*Block, error) {
	if !h.Valid() {
		return nil, mpoolerrors.NewInvalidHandleError("alloc_multi")
	}
	return AllocMulti(h.pool, size)
}

// Free returns b to its owning pool.
func (m *Module) Free(b *Block) error {
	if b == nil || b.slice == nil {
		return mpoolerrors.NewInvalidHandleError("free")
	}
	b.slice.node.owner.free(b)
	return nil
}

// Size reports b's owning pool's object size.
func (m *Module) Size(b *Block) (int, error) {
	return Size(b)
}

// Destroy tears down h's pool and its whole subtree.
func (m *Module) Destroy(h Handle) error {
	if !h.Valid() {
		return mpoolerrors.NewInvalidHandleError("destroy")
	}
	destroySingle(h.pool)
	return nil
}

// AvailBytes reports the remaining bump-region capacity of h's pool,
// supplementing spec.md with the original source's elr_mpl_avail_size.
func (m *Module) AvailBytes(h Handle) (int64, error) {
	if !h.Valid() {
		return 0, mpoolerrors.NewInvalidHandleError("avail")
	}
	return h.pool.availBytes(), nil
}
