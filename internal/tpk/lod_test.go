package tpk

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestZoomForResolution(t *testing.T) {
	ast := assert.New(t)
	tt := []struct {
		resolution float64
		tileSize   int
		zoom       int
	}{
		{156543.033928, 256, 0},
		{78271.5169639999, 256, 1},
		{39135.7584820001, 256, 2},
		{611.49622628138, 256, 8},
		{0.597164283559817, 256, 18},
		{78271.516964, 512, 0},
	}
	for _, td := range tt {
		ast.Equal(td.zoom, ZoomForResolution(td.resolution, td.tileSize))
	}
}

func TestZoomForResolutionToleratesDrift(t *testing.T) {
	ast := assert.New(t)
	// stored resolutions drift from the exact pyramid values
	for z := 0; z < 20; z++ {
		exact := WorldCircumference / (float64(uint64(1)<<uint(z)) * 256)
		ast.Equal(z, ZoomForResolution(exact*1.000001, 256))
		ast.Equal(z, ZoomForResolution(exact*0.999999, 256))
	}
}

func TestLODResolverPyramid(t *testing.T) {
	ast := assert.New(t)

	entries := make([]LOD, 0, 8)
	for i := 0; i < 8; i++ {
		entries = append(entries, LOD{ID: i, Resolution: WorldCircumference / (float64(uint64(1)<<uint(i)) * 256)})
	}
	r := NewLODResolver(entries, 256)

	lods := r.LODs()
	zooms := r.ZoomLevels()
	ast.Len(zooms, len(lods))
	for i := 1; i < len(zooms); i++ {
		ast.Greater(zooms[i], zooms[i-1])
		ast.Greater(lods[i], lods[i-1])
	}
}

func TestLODResolverNonContiguousIDs(t *testing.T) {
	ast := assert.New(t)

	// levels do not have to start at 0 or be contiguous
	entries := []LOD{
		{ID: 4, Resolution: Resolution(9, 256)},
		{ID: 6, Resolution: Resolution(11, 256)},
	}
	r := NewLODResolver(entries, 256)

	z, ok := r.ZoomForLOD(4)
	ast.True(ok)
	ast.Equal(9, z)
	z, ok = r.ZoomForLOD(6)
	ast.True(ok)
	ast.Equal(11, z)
	_, ok = r.ZoomForLOD(5)
	ast.False(ok)

	lod, ok := r.LODForZoom(11)
	ast.True(ok)
	ast.Equal(6, lod)
	_, ok = r.LODForZoom(10)
	ast.False(ok)
}

// Resolution helper mirroring the pyramid formula, kept local to the tests.
func Resolution(zoom, tileSize int) float64 {
	return WorldCircumference / (float64(uint64(1)<<uint(zoom)) * float64(tileSize))
}
