package mpool

// PoolStats is a point-in-time snapshot of one pool, per SPEC_FULL.md
// §4.8. AllocCount, FreeCount and AutoReleaseCount are cumulative since
// the pool's creation; the node and slice counts describe the pool's
// nodes at the moment of the snapshot.
type PoolStats struct {
	ObjectSize       int
	NodeCount        int
	TotalSlices      int
	UsedSlices       int
	FreeSlices       int
	AllocCount       int64
	FreeCount        int64
	AutoReleaseCount int64
	Children         []PoolStats
}

// Stats is a whole-module snapshot returned by Snapshot.
type Stats struct {
	Occupation int64
	Pools      []PoolStats
}

// Snapshot walks the pool tree rooted at the global pool and returns a
// consistent-per-pool (not whole-tree-atomic) picture of its
// occupancy and traffic counters. Each pool's own fields are read
// under its own lock; the walk copies a node's full list of children
// pointers while holding the parent's lock and then releases it before
// recursing, honoring the parent-before-child, never-child-while-
// holding-parent lock ordering spec.md §5 requires elsewhere.
func (m *Module) Snapshot() Stats {
	if m.global == nil {
		return Stats{}
	}
	return Stats{
		Occupation: m.occupationSnapshot(),
		Pools:      snapshotChildren(m.global),
	}
}

func snapshotChildren(parent *Pool) []PoolStats {
	parent.lock()
	children := make([]*Pool, 0, 4)
	for c := parent.firstChild; c != nil; c = c.next {
		children = append(children, c)
	}
	parent.unlock()

	out := make([]PoolStats, 0, len(children))
	for _, c := range children {
		out = append(out, snapshotPool(c))
	}
	return out
}

func snapshotPool(p *Pool) PoolStats {
	p.lock()
	stats := PoolStats{
		ObjectSize:       p.objectSize,
		AllocCount:       p.allocCount,
		FreeCount:        p.freeCount,
		AutoReleaseCount: p.autoReleaseCount,
	}
	for n := p.firstNode; n != nil; n = n.next {
		stats.NodeCount++
		stats.TotalSlices += n.sliceCount
		stats.UsedSlices += n.usingSliceCount
		stats.FreeSlices += n.sliceCount - n.usingSliceCount
	}
	p.unlock()

	stats.Children = snapshotChildren(p)
	return stats
}
