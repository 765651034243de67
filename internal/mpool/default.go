package mpool

import "sync"

// defaultModule backs the package-level Init/Finalize/Create/... API,
// reproducing the C source's process-wide singleton for callers that
// don't need an explicit Module. defaultMu only guards the lazy
// creation of defaultModule itself; Module's own Init/Finalize
// refcount still governs actual lifecycle.
var (
	defaultMu     sync.Mutex
	defaultModule *Module
)

func shared() *Module {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultModule == nil {
		defaultModule = NewModule()
	}
	return defaultModule
}

// Init initializes the package-level default module.
func Init() error { return shared().Init() }

// Finalize releases a reference to the package-level default module.
func Finalize() { shared().Finalize() }

// Create creates a pool under parent (the default module's global pool
// when parent is the zero Handle).
func Create(parent Handle, objectSize int, onAlloc, onFree Callback) (Handle, error) {
	return shared().Create(parent, objectSize, onAlloc, onFree)
}

// CreateSync is Create with internal locking.
func CreateSync(parent Handle, objectSize int, onAlloc, onFree Callback) (Handle, error) {
	return shared().CreateSync(parent, objectSize, onAlloc, onFree)
}

// CreateMulti creates a size-laddered pool family under parent (the
// default module's global pool when parent is the zero Handle).
func CreateMulti(parent Handle, ladder []int, onAlloc, onFree Callback) (Handle, error) {
	return shared().CreateMulti(parent, ladder, onAlloc, onFree)
}

// CreateMultiSync is CreateMulti with internal locking on the primary.
func CreateMultiSync(parent Handle, ladder []int, onAlloc, onFree Callback) (Handle, error) {
	return shared().CreateMultiSync(parent, ladder, onAlloc, onFree)
}

// Alloc allocates one slice from h's pool.
func Alloc(h Handle) (*Block, error) { return shared().Alloc(h) }

// AllocFrom allocates a slice sized for size from h's multi-pool family.
func AllocFrom(h Handle, size int) (*Block, error) { return shared().AllocMulti(h, size) }

// Free returns b to its owning pool.
func Free(b *Block) error { return shared().Free(b) }

// Destroy tears down h's pool and its subtree.
func Destroy(h Handle) error { return shared().Destroy(h) }

// DefaultMulti returns the default module's built-in size ladder.
func DefaultMulti() Handle { return shared().DefaultMulti() }

// Snapshot returns a stats snapshot of the default module.
func Snapshot() Stats { return shared().Snapshot() }

// AvailBytes reports h's pool's remaining bump-region capacity.
func AvailBytes(h Handle) (int64, error) { return shared().AvailBytes(h) }
