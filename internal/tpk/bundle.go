package tpk

import (
	"bytes"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// BundleOrigin is the grid position of a bundle, parsed from its archive
// entry name: R<hex>C<hex> inside a directory named L<level>. Row and
// column offsets are always non-negative multiples of BundleDim.
type BundleOrigin struct {
	RowOffset int
	ColOffset int
	LOD       int
}

var (
	bundleStemPattern = regexp.MustCompile(`^R([0-9a-fA-F]+)C([0-9a-fA-F]+)$`)
	levelDirPattern   = regexp.MustCompile(`^L(\d+)$`)
)

// ParseBundleOrigin parses the origin from a bundle entry name like
// "layer/_alllayers/L02/R0080C0100.bundle". Names not matching the
// expected pattern are a format error, never guessed at.
func ParseBundleOrigin(name string) (BundleOrigin, error) {
	var origin BundleOrigin

	base := path.Base(name)
	stem := strings.TrimSuffix(base, path.Ext(base))
	m := bundleStemPattern.FindStringSubmatch(stem)
	if m == nil {
		return origin, errors.Wrapf(ErrFormat, "invalid bundle name: %s", base)
	}
	row, err := strconv.ParseInt(m[1], 16, 64)
	if err != nil {
		return origin, errors.Wrapf(ErrFormat, "invalid bundle row offset: %s", base)
	}
	col, err := strconv.ParseInt(m[2], 16, 64)
	if err != nil {
		return origin, errors.Wrapf(ErrFormat, "invalid bundle column offset: %s", base)
	}

	lm := levelDirPattern.FindStringSubmatch(path.Base(path.Dir(name)))
	if lm == nil {
		return origin, errors.Wrapf(ErrFormat, "invalid level directory for bundle: %s", name)
	}
	lod, err := strconv.Atoi(lm[1])
	if err != nil {
		return origin, errors.Wrapf(ErrFormat, "invalid level directory for bundle: %s", name)
	}

	origin.RowOffset = int(row)
	origin.ColOffset = int(col)
	origin.LOD = lod
	return origin, nil
}

// bundleTile is one decoded non-empty cell with its absolute grid
// coordinates in the native ArcGIS scheme.
type bundleTile struct {
	Col  int
	Row  int
	Data []byte
}

// decodeBundle walks all 16384 cells of a bundle blob and calls emit for
// every non-empty tile record. The column derives from the outer index
// stride and the row from the inner one; this transposed mapping is a
// verified characteristic of the format.
func decodeBundle(data []byte, index BundleIndex, origin BundleOrigin, emit func(bundleTile) error) error {
	for i, off := range index {
		record, err := readTileRecord(data, off)
		if err != nil {
			return err
		}
		if len(record) == 0 {
			continue
		}
		t := bundleTile{
			Col:  origin.ColOffset + i/BundleDim,
			Row:  origin.RowOffset + i%BundleDim,
			Data: record,
		}
		if err := emit(t); err != nil {
			return err
		}
	}
	return nil
}

// readTileRecord reads the 4 byte length prefixed tile record at the given
// offset. A zero length marks an empty cell and yields a nil payload.
func readTileRecord(data []byte, offset uint64) ([]byte, error) {
	if offset+4 > uint64(len(data)) {
		return nil, errors.Wrapf(ErrFormat, "tile record offset %d beyond bundle of %d bytes", offset, len(data))
	}
	length := DecodeOffset(data[offset : offset+4])
	if length == 0 {
		return nil, nil
	}
	start := offset + 4
	if start+length > uint64(len(data)) {
		return nil, errors.Wrapf(ErrFormat, "truncated tile record at offset %d: need %d bytes", offset, length)
	}
	return bytes.Clone(data[start : start+length]), nil
}
