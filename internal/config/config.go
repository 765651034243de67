// Package config loads and validates the tunables that govern a
// Module's global multi-pool ladder and auto-release behavior. Load
// picks a parser by file extension (TOML or KDL), Watch lets a long-
// running process (the mpoolctl serve command) notice edits while it
// runs, and Fingerprint gives callers a cheap way to detect that a
// reload actually changed anything.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/cespare/xxhash/v2"
	toml "github.com/pelletier/go-toml/v2"

	mpoolerrors "github.com/rageworx/mpool/internal/errors"
	"github.com/rageworx/mpool/internal/mpool"
)

// Tunables is the user-editable surface over mpool's compile-time
// constants: the default ladder, the node-footprint ceiling that
// drives slice-per-node packing, the overflow rounding unit, and the
// occupation threshold above which a drained node is returned to the
// system allocator.
type Tunables struct {
	Ladder            []int `toml:"ladder"`
	MaxSliceBytes     int   `toml:"max_slice_bytes"`
	SliceCap          int   `toml:"slice_cap"`
	OverrangeUnit     int   `toml:"overrange_unit"`
	AutoFreeThreshold int64 `toml:"auto_free_threshold"`
}

// Default returns the tunables mpool.Init uses when no config file is
// present: spec.md's compile-time constants, expressed as data.
func Default() Tunables {
	return Tunables{
		Ladder:            []int{64, 98, 128, 192, 256, 384, 512, 768, 1024, 1280, 1536, 1792, 2048},
		MaxSliceBytes:     32 * 1024,
		SliceCap:          64,
		OverrangeUnit:     1024,
		AutoFreeThreshold: 512 * 1024 * 1024,
	}
}

// Load reads tunables from path, dispatching on its extension: ".toml"
// uses github.com/pelletier/go-toml/v2, ".kdl" uses the KDL parser in
// kdl_config.go. A missing file returns Default() with no error, so
// callers can pass an optional --config flag straight through.
func Load(path string) (Tunables, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return Tunables{}, mpoolerrors.NewConfigError("path", path, err)
	}

	t := Default()
	switch filepath.Ext(path) {
	case ".toml":
		if err := toml.Unmarshal(data, &t); err != nil {
			return Tunables{}, mpoolerrors.NewConfigError("toml", path, err)
		}
	case ".kdl":
		if err := unmarshalKDL(data, &t); err != nil {
			return Tunables{}, mpoolerrors.NewConfigError("kdl", path, err)
		}
	default:
		return Tunables{}, mpoolerrors.NewConfigError("extension", path, fmt.Errorf("unrecognized config extension %q", filepath.Ext(path)))
	}

	if err := t.Validate(); err != nil {
		return Tunables{}, err
	}
	return t, nil
}

// Limits converts t into the mpool.Limits a Module is constructed
// with, the point at which a loaded config file actually parameterizes
// allocator behavior rather than just round-tripping through Load and
// Validate. Callers that need config-driven tunables must build their
// Module via mpool.NewModuleWithLimits(tun.Limits()) instead of
// mpool.NewModule().
func (t Tunables) Limits() mpool.Limits {
	return mpool.Limits{
		SliceCap:          t.SliceCap,
		MaxSliceBytes:     t.MaxSliceBytes,
		OverrangeUnit:     t.OverrangeUnit,
		AutoFreeThreshold: t.AutoFreeThreshold,
	}
}

// Fingerprint hashes a canonical encoding of t with xxhash so a caller
// can tell, cheaply, whether a reloaded file actually changed.
func (t Tunables) Fingerprint() uint64 {
	h := xxhash.New()
	fmt.Fprintf(h, "%v|%d|%d|%d|%d", t.Ladder, t.MaxSliceBytes, t.SliceCap, t.OverrangeUnit, t.AutoFreeThreshold)
	return h.Sum64()
}

// sortedCopy returns the ladder sorted ascending, for Validate's
// positive-size check. createMulti (package mpool) sorts its own copy.
func (t Tunables) sortedCopy() []int {
	out := append([]int(nil), t.Ladder...)
	sort.Ints(out)
	return out
}
