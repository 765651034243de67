package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rageworx/mpool/internal/mpool"
)

func TestLoadMissingFileReturnsDefault(t *testing.T) {
	t.Parallel()
	tun, err := Load(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	require.NoError(t, err)
	require.Equal(t, Default(), tun)
}

func TestLoadTOML(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "mpool.toml")
	content := `
ladder = [32, 64, 128]
max_slice_bytes = 16384
slice_cap = 32
overrange_unit = 512
auto_free_threshold = 1048576
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	tun, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, []int{32, 64, 128}, tun.Ladder)
	require.Equal(t, 16384, tun.MaxSliceBytes)
	require.Equal(t, int64(1048576), tun.AutoFreeThreshold)
}

func TestLoadKDL(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "mpool.kdl")
	content := "ladder 32 64 128\nmax_slice_bytes 16384\nslice_cap 32\noverrange_unit 512\nauto_free_threshold 1048576\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	tun, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, []int{32, 64, 128}, tun.Ladder)
	require.Equal(t, 16384, tun.MaxSliceBytes)
}

func TestLoadRejectsUnknownExtension(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "mpool.yaml")
	require.NoError(t, os.WriteFile(path, []byte("ladder: [1]"), 0o644))
	_, err := Load(path)
	require.Error(t, err)
}

func TestValidateRejectsNonIncreasingLadder(t *testing.T) {
	t.Parallel()
	tun := Default()
	tun.Ladder = []int{128, 64, 256}
	err := tun.Validate()
	require.Error(t, err)
}

func TestValidateRejectsZeroThreshold(t *testing.T) {
	t.Parallel()
	tun := Default()
	tun.AutoFreeThreshold = 0
	require.Error(t, tun.Validate())
}

func TestValidateRejectsMaxSliceBytesBelowOneSliceHeader(t *testing.T) {
	t.Parallel()
	tun := Default()
	tun.MaxSliceBytes = mpool.MinSliceBytes() - 1
	require.Error(t, tun.Validate())
}

func TestValidateAcceptsMaxSliceBytesAtOneSliceHeader(t *testing.T) {
	t.Parallel()
	tun := Default()
	tun.MaxSliceBytes = mpool.MinSliceBytes()
	require.NoError(t, tun.Validate())
}

func TestDefaultLimitsMatchMpoolDefaults(t *testing.T) {
	t.Parallel()
	require.Equal(t, mpool.DefaultLimits(), Default().Limits())
}

func TestLoadedTunablesProduceMatchingLimits(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "mpool.toml")
	content := `
ladder = [32, 64, 128]
max_slice_bytes = 16384
slice_cap = 32
overrange_unit = 512
auto_free_threshold = 1048576
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	tun, err := Load(path)
	require.NoError(t, err)

	limits := tun.Limits()
	require.Equal(t, 32, limits.SliceCap)
	require.Equal(t, 16384, limits.MaxSliceBytes)
	require.Equal(t, 512, limits.OverrangeUnit)
	require.Equal(t, int64(1048576), limits.AutoFreeThreshold)
}

func TestFingerprintStableAcrossEqualValues(t *testing.T) {
	t.Parallel()
	a := Default()
	b := Default()
	require.Equal(t, a.Fingerprint(), b.Fingerprint())

	b.MaxSliceBytes++
	require.NotEqual(t, a.Fingerprint(), b.Fingerprint())
}
