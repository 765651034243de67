package config

import (
	"fmt"

	mpoolerrors "github.com/rageworx/mpool/internal/errors"
	"github.com/rageworx/mpool/internal/mpool"
)

// Validate checks that t describes a usable ladder and thresholds. The
// ladder must be written in strictly increasing order; createMulti
// itself sorts its input and only rejects duplicates, so this check is
// the stricter of the two and bad config is rejected at load time
// rather than at the first CreateMulti call.
func (t Tunables) Validate() error {
	if len(t.Ladder) == 0 {
		return mpoolerrors.NewConfigError("ladder", fmt.Sprint(t.Ladder), fmt.Errorf("ladder must not be empty"))
	}
	for i := 1; i < len(t.Ladder); i++ {
		if t.Ladder[i] <= t.Ladder[i-1] {
			return mpoolerrors.NewConfigError("ladder", fmt.Sprint(t.Ladder), fmt.Errorf("ladder sizes must be strictly increasing, got duplicate or descending value %d", t.Ladder[i]))
		}
	}
	sorted := t.sortedCopy()
	for _, size := range sorted {
		if size <= 0 {
			return mpoolerrors.NewConfigError("ladder", fmt.Sprint(t.Ladder), fmt.Errorf("ladder sizes must be positive, got %d", size))
		}
	}
	if min := mpool.MinSliceBytes(); t.MaxSliceBytes < min {
		return mpoolerrors.NewConfigError("max_slice_bytes", fmt.Sprint(t.MaxSliceBytes), fmt.Errorf("must be at least %d bytes (one slice header)", min))
	}
	if t.SliceCap <= 0 {
		return mpoolerrors.NewConfigError("slice_cap", fmt.Sprint(t.SliceCap), fmt.Errorf("must be positive"))
	}
	if t.OverrangeUnit <= 0 {
		return mpoolerrors.NewConfigError("overrange_unit", fmt.Sprint(t.OverrangeUnit), fmt.Errorf("must be positive"))
	}
	if t.AutoFreeThreshold <= 0 {
		return mpoolerrors.NewConfigError("auto_free_threshold", fmt.Sprint(t.AutoFreeThreshold), fmt.Errorf("must be positive"))
	}
	return nil
}
