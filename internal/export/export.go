// Package export drives the tile package reader into the output sinks:
// mbtiles files and plain directory trees.
package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/paulmach/orb/maptile"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"

	"github.com/willie68/go_tpkutils/internal/logging"
	"github.com/willie68/go_tpkutils/internal/mbtiles"
	"github.com/willie68/go_tpkutils/internal/model"
	"github.com/willie68/go_tpkutils/internal/tpk"
	"github.com/willie68/go_tpkutils/internal/utils/measurement"
	"github.com/willie68/go_tpkutils/pkg/fileutils"
)

// tiles per insert transaction
const batchSize = 1000

// isEmptyTile is indirected so tests can exercise the drop-empty path
// without checking a real blank ArcGIS tile payload into the repo.
var isEmptyTile = tpk.IsEmptyTile

// MBTilesOptions options for the mbtiles export.
type MBTilesOptions struct {
	// Zoom limits the export to these web zoom levels, nil exports all.
	Zoom []int
	// TileBounds derives the bounds metadata from the tile extent written
	// at the highest zoom instead of the declared package bounds.
	TileBounds bool
	// DropEmpty filters tiles matching the known empty tile hashes.
	DropEmpty bool
	// Progress renders a progress bar on the terminal.
	Progress bool
}

// DiskOptions options for the directory export.
type DiskOptions struct {
	Zoom []int
	// Scheme is the tile numbering scheme, "xyz" or "arcgis".
	Scheme     string
	DropEmpty  bool
	PathFormat string
	Progress   bool
}

type Exporter struct {
	log     *logging.Logger
	metrics *measurement.Service
}

func NewExporter(metrics *measurement.Service) *Exporter {
	return &Exporter{
		log:     logging.New().WithName("export"),
		metrics: metrics,
	}
}

// zoomExtent tracks the column/row extent actually written at one zoom.
type zoomExtent struct {
	minCol, maxCol int
	minRow, maxRow int
}

func (e *zoomExtent) track(x, y int) {
	if x < e.minCol {
		e.minCol = x
	}
	if x > e.maxCol {
		e.maxCol = x
	}
	if y < e.minRow {
		e.minRow = y
	}
	if y > e.maxRow {
		e.maxRow = y
	}
}

// ToMBTiles exports the package into an mbtiles file, overwriting any
// existing file. The suffix .mbtiles is added when missing.
func (e *Exporter) ToMBTiles(p *tpk.TPK, filename string, opts MBTilesOptions) error {
	if err := rejectMixed(p, "mbtiles"); err != nil {
		return err
	}
	if !strings.HasSuffix(filename, ".mbtiles") {
		filename += ".mbtiles"
	}

	sink, err := mbtiles.Open(filename, "w")
	if err != nil {
		return err
	}
	defer sink.Close()

	zoom := opts.Zoom
	if zoom == nil {
		zoom = p.ZoomLevels()
	}
	zoom = append([]int(nil), zoom...)
	sort.Ints(zoom)

	// zooms for which at least some tiles have not been dropped
	extents := make(map[int]*zoomExtent)
	batch := make([]model.Tile, 0, batchSize)
	bar := e.progressBar(opts.Progress)

	err = p.VisitTiles(tpk.ReadOptions{Zoom: zoom, FlipY: true}, func(t model.Tile) error {
		if opts.DropEmpty && isEmptyTile(t.Data) {
			return nil
		}
		ext, ok := extents[t.Z]
		if !ok {
			ext = &zoomExtent{minCol: t.X, maxCol: t.X, minRow: t.Y, maxRow: t.Y}
			extents[t.Z] = ext
		} else {
			ext.track(t.X, t.Y)
		}

		batch = append(batch, t)
		bar.Add(1)
		if len(batch) >= batchSize {
			md := e.metrics.Start("writeTileBatch")
			defer md.Stop()
			if err := sink.AddTiles(batch); err != nil {
				return err
			}
			batch = batch[:0]
		}
		return nil
	})
	if err != nil {
		return err
	}
	if len(batch) > 0 {
		if err := sink.AddTiles(batch); err != nil {
			return err
		}
	}
	bar.Finish()

	written := make([]int, 0, len(extents))
	for z := range extents {
		written = append(written, z)
	}
	sort.Ints(written)

	meta := e.summaryMetadata(p, written, extents, opts.TileBounds)
	return sink.SetMetadata(meta)
}

// summaryMetadata builds the metadata map for the tile store. When no
// tiles were written the zoom and center entries are left out.
func (e *Exporter) summaryMetadata(p *tpk.TPK, written []int, extents map[int]*zoomExtent, tileBounds bool) map[string]string {
	legend := ""
	if len(p.Meta.Legend) > 0 {
		if data, err := json.Marshal(p.Meta.Legend); err == nil {
			legend = string(data)
		}
	}

	meta := map[string]string{
		"name":            p.Meta.Name,
		"description":     p.Meta.Summary, // not description, which is optional
		"version":         p.Meta.Version,
		"attribution":     p.Meta.Attribution,
		"tags":            p.Meta.Tags,
		"credits":         p.Meta.Credits,
		"use_constraints": p.Meta.UseConstraints,
		"type":            "overlay",
		"format":          tileExtension(p.Meta.Format),
		"legend":          legend,
	}

	if len(written) == 0 {
		e.log.Warnf("no tiles written, zoom and center metadata left out")
		meta["bounds"] = joinBounds(p.Meta.Bounds)
		return meta
	}

	bounds := p.Meta.Bounds
	if tileBounds {
		// calculate bounds based on the maximum zoom exported
		highest := written[len(written)-1]
		bounds = extentBounds(extents[highest], highest)
	}
	minzoom, maxzoom := written[0], written[len(written)-1]

	meta["bounds"] = joinBounds(bounds)
	meta["center"] = fmt.Sprintf("%f,%f,%d",
		bounds[0]+(bounds[2]-bounds[0])/2.0,
		bounds[1]+(bounds[3]-bounds[1])/2.0,
		(minzoom+maxzoom)/2)
	meta["minzoom"] = strconv.Itoa(minzoom)
	meta["maxzoom"] = strconv.Itoa(maxzoom)
	return meta
}

// ToDisk exports the package into a directory tree. The destination must
// not exist yet or be empty.
func (e *Exporter) ToDisk(p *tpk.TPK, path string, opts DiskOptions) error {
	ext := tileExtension(p.Meta.Format)
	if ext == "mix" {
		return errors.Wrap(tpk.ErrUnsupportedFormat, "mixed format tiles are not supported for export to disk")
	}

	scheme := opts.Scheme
	if scheme == "" {
		scheme = "arcgis"
	}
	if scheme != "xyz" && scheme != "arcgis" {
		return errors.Wrapf(tpk.ErrValidation, "scheme must be xyz or arcgis, got %q", scheme)
	}

	pathFormat := opts.PathFormat
	if pathFormat == "" {
		pathFormat = DefaultPathFormat
	}
	if err := validatePattern(pathFormat); err != nil {
		return err
	}

	if !fileutils.FileExists(path) {
		if err := os.MkdirAll(path, 0o755); err != nil {
			return errors.Wrapf(err, "create output directory %s", path)
		}
	} else if !fileutils.DirEmpty(path) {
		return errors.Wrapf(tpk.ErrAlreadyExists, "output directory %s must be empty", path)
	}

	zoom := opts.Zoom
	if zoom == nil {
		zoom = p.ZoomLevels()
	}
	zoom = append([]int(nil), zoom...)
	sort.Ints(zoom)

	bar := e.progressBar(opts.Progress)
	err := p.VisitTiles(tpk.ReadOptions{Zoom: zoom, FlipY: scheme == "xyz"}, func(t model.Tile) error {
		if opts.DropEmpty && isEmptyTile(t.Data) {
			return nil
		}
		fn := filepath.Join(path, filepath.FromSlash(formatPattern(pathFormat, t, ext)))
		if err := os.MkdirAll(filepath.Dir(fn), 0o755); err != nil {
			return errors.Wrapf(err, "create directory for %s", fn)
		}
		bar.Add(1)
		return errors.Wrapf(os.WriteFile(fn, t.Data, 0o644), "write tile %s", fn)
	})
	bar.Finish()
	return err
}

func rejectMixed(p *tpk.TPK, target string) error {
	if strings.EqualFold(p.Meta.Format, "mixed") {
		return errors.Wrapf(tpk.ErrUnsupportedFormat, "mixed format tiles are not supported for export to %s", target)
	}
	return nil
}

// tileExtension the 3 letter lowercased file extension for a raster
// format, jpeg becomes jpg.
func tileExtension(format string) string {
	ext := strings.ReplaceAll(strings.ToLower(format), "jpeg", "jpg")
	if len(ext) > 3 {
		ext = ext[:3]
	}
	return ext
}

func joinBounds(bounds [4]float64) string {
	parts := make([]string, 0, 4)
	for _, v := range bounds {
		parts = append(parts, fmt.Sprintf("%f", v))
	}
	return strings.Join(parts, ",")
}

// extentBounds converts a written tile extent to geographic bounds via
// the web mercator tile projection. Rows are in the xyz scheme.
func extentBounds(ext *zoomExtent, zoom int) [4]float64 {
	z := maptile.Zoom(zoom)
	ul := maptile.New(uint32(ext.minCol), uint32(ext.minRow), z).Bound()
	lr := maptile.New(uint32(ext.maxCol), uint32(ext.maxRow), z).Bound()
	return [4]float64{ul.Left(), lr.Bottom(), lr.Right(), ul.Top()}
}

func (e *Exporter) progressBar(active bool) *progressbar.ProgressBar {
	if !active {
		return progressbar.NewOptions(-1, progressbar.OptionSetVisibility(false))
	}
	return progressbar.NewOptions(-1, progressbar.OptionShowIts(), progressbar.OptionShowCount())
}
