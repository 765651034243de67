// Package metrics renders mpool.Stats snapshots as human-readable
// text and JSON, for the mpoolctl status command and the pool_stats
// MCP tool.
package metrics

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rageworx/mpool/internal/mpool"
)

// Report wraps a single Stats snapshot and its derived totals.
type Report struct {
	Occupation  int64
	TotalPools  int
	TotalNodes  int
	TotalSlices int
	UsedSlices  int
	FreeSlices  int
	Pools       []mpool.PoolStats
}

// NewReport flattens a Stats tree into summary totals alongside the
// per-pool detail, sorted by object size for stable output.
func NewReport(s mpool.Stats) *Report {
	r := &Report{Occupation: s.Occupation, Pools: s.Pools}
	var walk func([]mpool.PoolStats)
	walk = func(pools []mpool.PoolStats) {
		for _, p := range pools {
			r.TotalPools++
			r.TotalNodes += p.NodeCount
			r.TotalSlices += p.TotalSlices
			r.UsedSlices += p.UsedSlices
			r.FreeSlices += p.FreeSlices
			walk(p.Children)
		}
	}
	walk(s.Pools)

	sort.Slice(r.Pools, func(i, j int) bool {
		return r.Pools[i].ObjectSize < r.Pools[j].ObjectSize
	})
	return r
}

// FormatAsText renders a fixed-width table summarizing occupancy and
// traffic per top-level pool, followed by process-wide totals.
func (r *Report) FormatAsText() string {
	var sb strings.Builder

	sb.WriteString("MPOOL REPORT\n")
	sb.WriteString("--------------------------------------------------------------\n")
	sb.WriteString(fmt.Sprintf("  Occupation:   %.2f MB\n", float64(r.Occupation)/1024.0/1024.0))
	sb.WriteString(fmt.Sprintf("  Pools:        %d\n", r.TotalPools))
	sb.WriteString(fmt.Sprintf("  Nodes:        %d\n", r.TotalNodes))
	sb.WriteString(fmt.Sprintf("  Slices:       %d used / %d total\n", r.UsedSlices, r.TotalSlices))

	sb.WriteString("\nPOOLS BY OBJECT SIZE\n")
	sb.WriteString("--------------------------------------------------------------\n")
	for _, p := range r.Pools {
		sb.WriteString(fmt.Sprintf("  %-8d bytes  %4d nodes  %7d used  %7d free  alloc=%d free=%d auto_release=%d\n",
			p.ObjectSize, p.NodeCount, p.UsedSlices, p.FreeSlices, p.AllocCount, p.FreeCount, p.AutoReleaseCount))
	}
	return sb.String()
}

// FormatAsJSON renders the report as a plain map, ready for
// json.Marshal, matching the shape the pool_stats MCP tool returns.
func (r *Report) FormatAsJSON() map[string]any {
	pools := make([]map[string]any, 0, len(r.Pools))
	for _, p := range r.Pools {
		pools = append(pools, map[string]any{
			"object_size":        p.ObjectSize,
			"node_count":         p.NodeCount,
			"total_slices":       p.TotalSlices,
			"used_slices":        p.UsedSlices,
			"free_slices":        p.FreeSlices,
			"alloc_count":        p.AllocCount,
			"free_count":         p.FreeCount,
			"auto_release_count": p.AutoReleaseCount,
		})
	}
	return map[string]any{
		"occupation_bytes": r.Occupation,
		"total_pools":      r.TotalPools,
		"total_nodes":      r.TotalNodes,
		"total_slices":     r.TotalSlices,
		"used_slices":      r.UsedSlices,
		"free_slices":      r.FreeSlices,
		"pools":            pools,
	}
}
