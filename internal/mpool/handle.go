package mpool

// Handle is a stable, copyable reference to a Pool that detects use
// after the pool (or an ancestor) has been destroyed, per spec.md §3.
// The zero Handle is always invalid.
type Handle struct {
	pool *Pool
	tag  int32
}

// Valid reports whether h still refers to a live pool.
func (h Handle) Valid() bool {
	if h.pool == nil {
		return false
	}
	return h.pool.isValid(h.tag)
}

func handleFor(p *Pool) Handle {
	return Handle{pool: p, tag: p.sliceTag}
}
