package tpk

import (
	"github.com/pkg/errors"
)

const (
	// BundleDim bundles are always 128 rows x 128 columns of tiles.
	// A stored configuration value exists but is unused by the format.
	BundleDim = 128
	// TilesPerBundle number of grid cells in one bundle
	TilesPerBundle = BundleDim * BundleDim

	indexHeaderSize = 16
	indexEntrySize  = 5
)

// BundleIndex holds one byte offset per grid cell of a bundle, addressable
// by index 0..16383. Each offset points at the 4 byte length prefixed tile
// record inside the bundle data blob.
type BundleIndex []uint64

// ParseBundleIndex parses the raw bytes of a .bundlx entry: a 16 byte
// header followed by 16384 consecutive 5 byte little-endian offsets.
func ParseBundleIndex(data []byte) (BundleIndex, error) {
	if len(data) < indexHeaderSize+TilesPerBundle*indexEntrySize {
		return nil, errors.Wrapf(ErrFormat, "bundle index too short: %d bytes", len(data))
	}
	data = data[indexHeaderSize:]

	offsets := make(BundleIndex, TilesPerBundle)
	for i := range offsets {
		offsets[i] = DecodeOffset(data[i*indexEntrySize : (i+1)*indexEntrySize])
	}
	return offsets, nil
}
