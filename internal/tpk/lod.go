package tpk

import "math"

// WorldCircumference circumference of the earth in metres at the equator
const WorldCircumference = 40075016.69

// LOD is one level of detail of the package: the ordinal id assigned by
// the source, its stored resolution in metres per pixel and the resolved
// web map zoom level.
type LOD struct {
	ID         int
	Resolution float64
	Zoom       int
}

// ZoomForResolution resolves a web map zoom level from a stored
// resolution. Given that resolution = circumference / (2^zoom * tileSize),
// the zoom level is log2(circumference / (resolution * tileSize)), rounded
// to the nearest integer to tolerate drift in the stored values.
func ZoomForResolution(resolution float64, tileSize int) int {
	return int(math.Round(math.Log2(WorldCircumference / (resolution * float64(tileSize)))))
}

// LODResolver maps between the package internal ordinal levels and the
// resolved web map zoom levels. Source order is preserved.
type LODResolver struct {
	lods []LOD
}

// NewLODResolver resolves the zoom level for every entry, in the order the
// entries appear in the configuration.
func NewLODResolver(entries []LOD, tileSize int) *LODResolver {
	lods := make([]LOD, 0, len(entries))
	for _, e := range entries {
		e.Zoom = ZoomForResolution(e.Resolution, tileSize)
		lods = append(lods, e)
	}
	return &LODResolver{lods: lods}
}

// LODs the ordinal level ids, as assigned by the source. Not necessarily
// contiguous from 0.
func (r *LODResolver) LODs() []int {
	ids := make([]int, 0, len(r.lods))
	for _, l := range r.lods {
		ids = append(ids, l.ID)
	}
	return ids
}

// ZoomLevels the resolved web zoom levels, parallel to LODs.
func (r *LODResolver) ZoomLevels() []int {
	zooms := make([]int, 0, len(r.lods))
	for _, l := range r.lods {
		zooms = append(zooms, l.Zoom)
	}
	return zooms
}

// ZoomForLOD looks up the resolved zoom for an ordinal level id.
func (r *LODResolver) ZoomForLOD(id int) (int, bool) {
	for _, l := range r.lods {
		if l.ID == id {
			return l.Zoom, true
		}
	}
	return 0, false
}

// LODForZoom looks up the ordinal level id for a resolved zoom.
func (r *LODResolver) LODForZoom(zoom int) (int, bool) {
	for _, l := range r.lods {
		if l.Zoom == zoom {
			return l.ID, true
		}
	}
	return 0, false
}
