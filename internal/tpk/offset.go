package tpk

// DecodeOffset converts a byte buffer into an integer according to the
// ArcGIS packing scheme: a little-endian unsigned integer of arbitrary
// width, sum(buf[i] * 256^i). The 5 byte index entries and the 4 byte
// length prefixes are both packed this way. An empty buffer yields 0.
func DecodeOffset(buf []byte) uint64 {
	var v uint64
	for i, b := range buf {
		v |= uint64(b) << (8 * uint(i))
	}
	return v
}
