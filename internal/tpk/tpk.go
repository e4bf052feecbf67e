// Package tpk reads ArcGIS compact cache tile packages (*.tpk), a zip
// container holding bundled tiles plus xml/json sidecar metadata.
//
// Tile package files:
// *.bundlx: tile index, tile offsets in bundle are stored in 5 byte values
// *.bundle: offsets are stored in bundlx, first 4 bytes at offset are length of tile data
// conf.xml: basic tileset info
package tpk

import (
	"archive/zip"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"iter"
	"os"
	"path"
	"strings"

	"github.com/pkg/errors"
	"github.com/willie68/go_tpkutils/internal/logging"
	"github.com/willie68/go_tpkutils/internal/model"
)

const (
	itemInfoEntry  = "esriinfo/iteminfo.xml"
	mapServerEntry = "servicedescriptions/mapserver/mapserver.json"
)

// Metadata the descriptive package metadata, populated once at open time.
// Version and Attribution carry defaults and are meant to be overwritten
// by the caller before export.
type Metadata struct {
	Version        string
	Attribution    string
	Name           string
	Summary        string
	Tags           string
	Description    string
	Credits        string
	UseConstraints string
	Bounds         [4]float64 // xmin, ymin, xmax, ymax in geographic coordinates
	TileSize       int
	Format         string // PNG, JPEG or MIXED
	Legend         []LegendLayer
}

type LegendLayer struct {
	Name     string          `json:"name"`
	Elements []LegendElement `json:"elements"`
}

type LegendElement struct {
	ImageData string `json:"imageData"`
	Label     string `json:"label,omitempty"`
}

// ReadOptions options for a tile read pass.
type ReadOptions struct {
	// Zoom limits the read to these resolved web zoom levels, nil reads all.
	Zoom []int
	// FlipY converts rows from the native ArcGIS scheme (row 0 at the
	// south) to the xyz scheme (row 0 at the north).
	FlipY bool
}

// TPK is an open tile package. One instance owns the archive handle and
// the derived metadata; do not read tiles concurrently on one instance.
type TPK struct {
	log      *logging.Logger
	zr       *zip.ReadCloser
	closed   bool
	rootName string
	lods     *LODResolver

	Meta Metadata
}

// Open opens a tile package file and reads all sidecar metadata. A missing
// file or a missing required archive entry fails with ErrNotFound, any
// malformed sidecar with ErrFormat; there is no partial open state.
func Open(filename string) (*TPK, error) {
	if _, err := os.Stat(filename); err != nil {
		return nil, errors.Wrapf(ErrNotFound, "tile package %s", filename)
	}
	zr, err := zip.OpenReader(filename)
	if err != nil {
		return nil, errors.Wrapf(ErrFormat, "%s is not a zip archive: %v", filename, err)
	}

	t := &TPK{
		log: logging.New().WithName("tpk"),
		zr:  zr,
	}
	t.Meta.Version = "1.0.0"

	t.log.Debug("reading package metadata")
	if err := t.readConf(); err != nil {
		zr.Close()
		return nil, err
	}
	if err := t.readItemInfo(); err != nil {
		zr.Close()
		return nil, err
	}
	if err := t.readServiceDescription(); err != nil {
		zr.Close()
		return nil, err
	}
	return t, nil
}

// LODs the ordinal level ids of the package.
func (t *TPK) LODs() []int {
	return t.lods.LODs()
}

// ZoomLevels the resolved web zoom levels, parallel to LODs.
func (t *TPK) ZoomLevels() []int {
	return t.lods.ZoomLevels()
}

// VisitTiles streams all non-empty tiles of the package to the visitor,
// one bundle at a time in archive enumeration order. Out of range
// coordinates are logged, counted and dropped. A decode error terminates
// the stream; tiles already delivered stand.
func (t *TPK) VisitTiles(opts ReadOptions, visit func(model.Tile) error) error {
	if t.closed {
		return ErrClosed
	}

	var zoomSet map[int]struct{}
	if opts.Zoom != nil {
		zoomSet = make(map[int]struct{}, len(opts.Zoom))
		for _, z := range opts.Zoom {
			zoomSet[z] = struct{}{}
		}
	}

	discarded := 0
	prefix := t.rootName + "/_alllayers/L"
	for _, f := range t.zr.File {
		if !strings.HasPrefix(f.Name, prefix) || !strings.HasSuffix(f.Name, ".bundle") {
			continue
		}
		origin, err := ParseBundleOrigin(f.Name)
		if err != nil {
			return err
		}
		zoom, ok := t.lods.ZoomForLOD(origin.LOD)
		if !ok {
			return errors.Wrapf(ErrFormat, "bundle %s references unknown level %d", f.Name, origin.LOD)
		}
		if zoomSet != nil {
			if _, ok := zoomSet[zoom]; !ok {
				continue
			}
		}

		t.log.Infof("reading bundle: %s", f.Name)
		indexBytes, err := t.readEntry(strings.TrimSuffix(f.Name, ".bundle") + ".bundlx")
		if err != nil {
			return err
		}
		index, err := ParseBundleIndex(indexBytes)
		if err != nil {
			return errors.Wrapf(err, "bundle %s", f.Name)
		}
		data, err := t.readEntry(f.Name)
		if err != nil {
			return err
		}

		maxRowCol := (1 << zoom) - 1
		err = decodeBundle(data, index, origin, func(bt bundleTile) error {
			if bt.Col < 0 || bt.Col > maxRowCol || bt.Row < 0 || bt.Row > maxRowCol {
				t.log.Debugf("tile out of range, zoom level = %d, column = %d, row = %d", zoom, bt.Col, bt.Row)
				discarded++
				return nil
			}
			row := bt.Row
			if opts.FlipY {
				row = maxRowCol - bt.Row
			}
			return visit(model.Tile{Z: zoom, X: bt.Col, Y: row, Data: bt.Data})
		})
		if err != nil {
			return errors.Wrapf(err, "bundle %s", f.Name)
		}
	}

	t.log.Infof("total number of discarded out of range tiles: %d", discarded)
	return nil
}

var errVisitCancelled = errors.New("visit cancelled")

// Tiles returns a restartable single pass iterator over the package.
// Iteration panics on decode errors; use VisitTiles where errors must be
// handled.
func (t *TPK) Tiles(opts ReadOptions) iter.Seq[model.Tile] {
	return func(yield func(model.Tile) bool) {
		err := t.VisitTiles(opts, func(tile model.Tile) error {
			if !yield(tile) {
				return errVisitCancelled
			}
			return nil
		})
		if err != nil && !errors.Is(err, errVisitCancelled) {
			panic(err)
		}
	}
}

// ReadTile reads a single tile by its web zoom level and native scheme
// column/row, the random access inverse of VisitTiles. Missing bundles and
// empty cells fail with ErrNotFound.
func (t *TPK) ReadTile(zoom, col, row int) ([]byte, error) {
	if t.closed {
		return nil, ErrClosed
	}
	lod, ok := t.lods.LODForZoom(zoom)
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "no level for zoom %d", zoom)
	}
	maxRowCol := (1 << zoom) - 1
	if col < 0 || col > maxRowCol || row < 0 || row > maxRowCol {
		return nil, errors.Wrapf(ErrValidation, "tile %d/%d/%d out of range", zoom, col, row)
	}

	rOff := (row / BundleDim) * BundleDim
	cOff := (col / BundleDim) * BundleDim
	base := fmt.Sprintf("%s/_alllayers/L%02d/R%04xC%04x", t.rootName, lod, rOff, cOff)

	indexBytes, err := t.readEntry(base + ".bundlx")
	if err != nil {
		return nil, err
	}
	index, err := ParseBundleIndex(indexBytes)
	if err != nil {
		return nil, errors.Wrapf(err, "bundle %s", base)
	}

	// column from the outer stride, row from the inner one
	offset := index[(col-cOff)*BundleDim+(row-rOff)]

	rc, err := t.openEntry(base + ".bundle")
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	if _, err := io.CopyN(io.Discard, rc, int64(offset)); err != nil {
		return nil, errors.Wrapf(ErrFormat, "tile record offset %d beyond bundle %s", offset, base)
	}
	lenBuf := make([]byte, 4)
	if _, err := io.ReadFull(rc, lenBuf); err != nil {
		return nil, errors.Wrapf(ErrFormat, "truncated tile record in bundle %s", base)
	}
	length := DecodeOffset(lenBuf)
	if length == 0 {
		return nil, errors.Wrapf(ErrNotFound, "empty tile %d/%d/%d", zoom, col, row)
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(rc, payload); err != nil {
		return nil, errors.Wrapf(ErrFormat, "truncated tile record in bundle %s", base)
	}
	return payload, nil
}

// Close releases the archive handle. Reads after Close fail with
// ErrClosed; calling Close again is safe.
func (t *TPK) Close() error {
	if t.closed {
		return nil
	}
	t.closed = true
	return t.zr.Close()
}

type confXML struct {
	TileCacheInfo struct {
		TileCols int `xml:"TileCols"`
		LODInfos struct {
			LODInfo []struct {
				LevelID    int     `xml:"LevelID"`
				Resolution float64 `xml:"Resolution"`
			} `xml:"LODInfo"`
		} `xml:"LODInfos"`
	} `xml:"TileCacheInfo"`
	TileImageInfo struct {
		CacheTileFormat string `xml:"CacheTileFormat"`
	} `xml:"TileImageInfo"`
}

// readConf reads the single configuration entry matching *conf.xml: root
// layer name, raster format, tile pixel size and the per level resolutions.
func (t *TPK) readConf() error {
	var confName string
	for _, f := range t.zr.File {
		if strings.Contains(f.Name, "conf.xml") {
			confName = f.Name
			break
		}
	}
	if confName == "" {
		return errors.Wrap(ErrNotFound, "conf.xml")
	}
	// keep the full directory of conf.xml, bundle entry names are
	// reconstructed from it
	t.rootName = path.Dir(confName)

	data, err := t.readEntry(confName)
	if err != nil {
		return err
	}
	var conf confXML
	if err := xml.Unmarshal(data, &conf); err != nil {
		return errors.Wrapf(ErrFormat, "%s: %v", confName, err)
	}
	if conf.TileCacheInfo.TileCols <= 0 {
		return errors.Wrapf(ErrFormat, "%s: missing tile size", confName)
	}

	t.Meta.Format = conf.TileImageInfo.CacheTileFormat
	t.Meta.TileSize = conf.TileCacheInfo.TileCols

	entries := make([]LOD, 0, len(conf.TileCacheInfo.LODInfos.LODInfo))
	for _, li := range conf.TileCacheInfo.LODInfos.LODInfo {
		entries = append(entries, LOD{ID: li.LevelID, Resolution: li.Resolution})
	}
	t.lods = NewLODResolver(entries, t.Meta.TileSize)
	return nil
}

type itemInfoXML struct {
	Title             *string `xml:"title"`
	Summary           *string `xml:"summary"`
	Tags              *string `xml:"tags"`
	Description       string  `xml:"description"`
	AccessInformation string  `xml:"accessinformation"`
	LicenseInfo       string  `xml:"licenseinfo"`
}

// readItemInfo reads the descriptive metadata. title, summary and tags are
// required by ArcGIS to create a tile package in the first place.
func (t *TPK) readItemInfo() error {
	data, err := t.readEntry(itemInfoEntry)
	if err != nil {
		return err
	}
	var info itemInfoXML
	if err := xml.Unmarshal(data, &info); err != nil {
		return errors.Wrapf(ErrFormat, "%s: %v", itemInfoEntry, err)
	}
	for name, f := range map[string]*string{"title": info.Title, "summary": info.Summary, "tags": info.Tags} {
		if f == nil {
			return errors.Wrapf(ErrFormat, "%s: missing required field %s", itemInfoEntry, name)
		}
	}

	t.Meta.Name = *info.Title
	t.Meta.Summary = *info.Summary
	t.Meta.Tags = *info.Tags
	t.Meta.Description = info.Description
	t.Meta.Credits = info.AccessInformation
	t.Meta.UseConstraints = info.LicenseInfo
	return nil
}

type mapServerJSON struct {
	ResourceInfo struct {
		GeoFullExtent struct {
			XMin float64 `json:"xmin"`
			YMin float64 `json:"ymin"`
			XMax float64 `json:"xmax"`
			YMax float64 `json:"ymax"`
		} `json:"geoFullExtent"`
	} `json:"resourceInfo"`
	Resources []struct {
		Name     string `json:"name"`
		Contents struct {
			Layers []struct {
				LayerName string `json:"layerName"`
				Legend    []struct {
					ContentType string   `json:"contentType"`
					ImageData   string   `json:"imageData"`
					Label       string   `json:"label"`
					Values      []string `json:"values"`
				} `json:"legend"`
			} `json:"layers"`
		} `json:"contents"`
	} `json:"resources"`
}

// readServiceDescription reads the geographic bounds and the optional
// legend. The bounds may not accurately represent the outer bounds of the
// available tiles.
func (t *TPK) readServiceDescription() error {
	data, err := t.readEntry(mapServerEntry)
	if err != nil {
		return err
	}
	var sd mapServerJSON
	if err := json.Unmarshal(data, &sd); err != nil {
		return errors.Wrapf(ErrFormat, "%s: %v", mapServerEntry, err)
	}

	ext := sd.ResourceInfo.GeoFullExtent
	t.Meta.Bounds = [4]float64{ext.XMin, ext.YMin, ext.XMax, ext.YMax}

	for _, res := range sd.Resources {
		if res.Name != "legend" {
			continue
		}
		for _, layer := range res.Contents.Layers {
			ll := LegendLayer{Name: layer.LayerName}
			for _, le := range layer.Legend {
				label := le.Label
				if label == "" {
					label = strings.Join(le.Values, ", ")
				}
				ll.Elements = append(ll.Elements, LegendElement{
					ImageData: fmt.Sprintf("data:%s;base64,%s", le.ContentType, le.ImageData),
					Label:     label,
				})
			}
			t.Meta.Legend = append(t.Meta.Legend, ll)
		}
	}
	return nil
}

func (t *TPK) openEntry(name string) (io.ReadCloser, error) {
	for _, f := range t.zr.File {
		if f.Name == name {
			rc, err := f.Open()
			if err != nil {
				return nil, errors.Wrapf(ErrFormat, "entry %s: %v", name, err)
			}
			return rc, nil
		}
	}
	return nil, errors.Wrap(ErrNotFound, name)
}

func (t *TPK) readEntry(name string) ([]byte, error) {
	rc, err := t.openEntry(name)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, errors.Wrapf(ErrFormat, "entry %s: %v", name, err)
	}
	return data, nil
}
